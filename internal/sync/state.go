package sync

import (
	"encoding/json"
	"fmt"

	"github.com/rmoroz/gcalcache/internal/store"
)

// schemaVersion is bumped whenever the cached item layout changes in a way
// an old sync token cannot express. A cache persisted under an older version
// is discarded on load and repopulated by a full sync.
const schemaVersion = 1

// state is the persisted sync state for one target: the cached items keyed
// by id, the incremental sync token, and the schema version the token was
// obtained under.
type state struct {
	Items            map[string]json.RawMessage `json:"items"`
	SyncToken        string                     `json:"sync_token,omitempty"`
	SyncTokenVersion int                        `json:"sync_token_schema_version,omitempty"`
	Timezone         string                     `json:"timezone,omitempty"`
}

func loadState(s store.Store) (state, error) {
	st := state{Items: make(map[string]json.RawMessage)}

	blob, err := s.Load()
	if err != nil {
		return state{}, fmt.Errorf("load sync state: %w", err)
	}
	if blob == nil {
		return st, nil
	}
	if err := json.Unmarshal(blob, &st); err != nil {
		return state{}, fmt.Errorf("unmarshal sync state: %w", err)
	}
	if st.Items == nil {
		st.Items = make(map[string]json.RawMessage)
	}

	st.ensureVersion(schemaVersion)
	return st, nil
}

// ensureVersion drops the token and items when they were persisted under an
// older schema version.
func (st *state) ensureVersion(current int) {
	if st.SyncToken != "" && st.SyncTokenVersion < current {
		st.invalidate()
	}
}

func (st *state) invalidate() {
	st.SyncToken = ""
	st.SyncTokenVersion = 0
	st.Items = make(map[string]json.RawMessage)
}

// persist writes the whole state as one blob, so readers observe either the
// previous sync run or this one, never a mix.
func (st *state) persist(s store.Store) error {
	blob, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("marshal sync state: %w", err)
	}
	if err := s.Save(blob); err != nil {
		return fmt.Errorf("save sync state: %w", err)
	}
	return nil
}
