package model

// ParseError reports a malformed calendar payload or recurrence rule. The
// detail carries the offending input for debugging.
type ParseError struct {
	Message string
	Detail  string
}

func NewParseError(message, detail string) *ParseError {
	return &ParseError{Message: message, Detail: detail}
}

func (e *ParseError) Error() string {
	if e.Detail == "" {
		return e.Message
	}
	return e.Message + ": " + e.Detail
}
