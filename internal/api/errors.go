package api

import "errors"

var (
	// ErrAuth means the credentials were rejected. Fatal; there is no point
	// retrying without new credentials.
	ErrAuth = errors.New("calendar api: unauthorized")
	// ErrForbidden means the account has no access to the calendar.
	ErrForbidden = errors.New("calendar api: forbidden")
	// ErrSyncTokenInvalid means the server expired the sync token. The sync
	// engine recovers by dropping the cache and running one full resync.
	ErrSyncTokenInvalid = errors.New("calendar api: sync token invalid")
	// ErrProtocol means a response violated the sync protocol contract,
	// such as a final page without a new sync token.
	ErrProtocol = errors.New("calendar api: protocol violation")
	// ErrInvalidRequest means caller misuse, detected before any network call.
	ErrInvalidRequest = errors.New("calendar api: invalid request")
)
