// Package sync keeps a local mirror of a remote calendar current through
// the token-driven incremental fetch protocol, and exposes the mirror
// through store services.
package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/rmoroz/gcalcache/internal/api"
	"github.com/rmoroz/gcalcache/internal/model"
	"github.com/rmoroz/gcalcache/internal/store"
)

// fullSyncHorizon bounds full event syncs to recent history so a fresh
// cache does not re-fetch years of events.
const fullSyncHorizon = 28 * 24 * time.Hour

type Clock interface {
	Now() time.Time
}

// page is one response of a paginated listing, reduced to what the state
// machine needs.
type page struct {
	items         map[string]json.RawMessage
	nextPageToken string
	nextSyncToken string
	timezone      string
}

type fetchFunc func(ctx context.Context, w api.SyncWindow) (page, error)

// runSync drives the fetch state machine: paginate, merge pages into the
// state last-response-wins, and record the new sync token from the final
// page. A server-signaled token expiry drops the cache and restarts as a
// full sync, once; a second expiry within the same call is a hard failure.
func runSync(ctx context.Context, st *state, fetch fetchFunc) error {
	retried := false

	w := api.SyncWindow{SyncToken: st.SyncToken}
	for {
		p, err := fetch(ctx, w)
		if errors.Is(err, api.ErrSyncTokenInvalid) {
			if retried {
				return fmt.Errorf("sync token invalidated twice in one run: %w", err)
			}
			retried = true
			st.invalidate()
			w = api.SyncWindow{}
			continue
		}
		if err != nil {
			return err
		}

		for id, item := range p.items {
			st.Items[id] = item
		}
		if p.timezone != "" {
			st.Timezone = p.timezone
		}

		if p.nextPageToken != "" {
			w = w.WithPageToken(p.nextPageToken)
			continue
		}
		if p.nextSyncToken == "" {
			return fmt.Errorf("%w: final page carries no sync token", api.ErrProtocol)
		}
		st.SyncToken = p.nextSyncToken
		st.SyncTokenVersion = schemaVersion
		return nil
	}
}

// CalendarListSyncManager mirrors the user's calendar list.
type CalendarListSyncManager struct {
	api   api.Service
	store store.Store

	mx  sync.Mutex
	log *slog.Logger
}

// NewCalendarListSyncManager builds a manager on the given store; a nil
// store means an in-memory cache lost on restart.
func NewCalendarListSyncManager(svc api.Service, st store.Store, log *slog.Logger) *CalendarListSyncManager {
	if st == nil {
		st = store.NewInMemoryStore()
	}
	return &CalendarListSyncManager{
		api:   svc,
		store: store.NewScopedStore(st, "calendar_list_sync"),
		log:   log.With("component", "calendar_list_sync"),
	}
}

// Run performs one sync pass. Calls for the same manager are serialized.
func (m *CalendarListSyncManager) Run(ctx context.Context) error {
	m.mx.Lock()
	defer m.mx.Unlock()

	st, err := loadState(m.store)
	if err != nil {
		return err
	}

	incremental := st.SyncToken != ""
	if err := runSync(ctx, &st, m.fetch); err != nil {
		return err
	}
	if err := st.persist(m.store); err != nil {
		return err
	}

	m.log.InfoContext(ctx, "Calendar list synced",
		"calendars", len(st.Items),
		"incremental", incremental)
	return nil
}

func (m *CalendarListSyncManager) fetch(ctx context.Context, w api.SyncWindow) (page, error) {
	resp, err := m.api.ListCalendars(ctx, api.CalendarListRequest{SyncWindow: w})
	if err != nil {
		return page{}, err
	}

	items := make(map[string]json.RawMessage, len(resp.Items))
	for _, cal := range resp.Items {
		if cal.ID == "" {
			continue
		}
		data, err := json.Marshal(cal)
		if err != nil {
			return page{}, fmt.Errorf("marshal calendar %s: %w", cal.ID, err)
		}
		items[cal.ID] = data
	}
	return page{
		items:         items,
		nextPageToken: resp.NextPageToken,
		nextSyncToken: resp.NextSyncToken,
	}, nil
}

// EventSyncManager mirrors the events of one calendar.
type EventSyncManager struct {
	api        api.Service
	store      store.Store
	calendarID string
	clock      Clock

	// template carries caller-supplied search text or time bounds for full
	// syncs. Incremental requests never use it: the protocol forbids
	// combining a sync token with filters.
	template *api.ListEventsRequest

	mx  sync.Mutex
	log *slog.Logger
}

// NewEventSyncManager builds a manager for one calendar; a nil store means
// an in-memory cache lost on restart.
func NewEventSyncManager(svc api.Service, st store.Store, calendarID string, clk Clock, log *slog.Logger) *EventSyncManager {
	if st == nil {
		st = store.NewInMemoryStore()
	}
	return &EventSyncManager{
		api:        svc,
		store:      EventStore(st, calendarID),
		calendarID: calendarID,
		clock:      clk,
		log:        log.With("component", "event_sync", "calendar_id", calendarID),
	}
}

// WithTemplate sets the full-sync request template and returns the manager.
func (m *EventSyncManager) WithTemplate(template api.ListEventsRequest) *EventSyncManager {
	m.template = &template
	return m
}

// EventStore returns the store scope holding one calendar's event sync
// state, nested so multiple calendars share one physical store.
func EventStore(st store.Store, calendarID string) store.Store {
	return store.NewScopedStore(store.NewScopedStore(st, "event_sync"), calendarID)
}

// Run performs one sync pass. Calls for the same manager are serialized.
func (m *EventSyncManager) Run(ctx context.Context) error {
	m.mx.Lock()
	defer m.mx.Unlock()

	st, err := loadState(m.store)
	if err != nil {
		return err
	}

	incremental := st.SyncToken != ""
	if err := runSync(ctx, &st, m.fetch); err != nil {
		return err
	}
	if err := st.persist(m.store); err != nil {
		return err
	}

	m.log.InfoContext(ctx, "Events synced",
		"events", len(st.Items),
		"incremental", incremental)
	return nil
}

func (m *EventSyncManager) fetch(ctx context.Context, w api.SyncWindow) (page, error) {
	req := api.ListEventsRequest{
		SyncWindow: w,
		CalendarID: m.calendarID,
	}
	if w.SyncToken == "" {
		if m.template != nil {
			req.Search = m.template.Search
			req.MinStart = m.template.MinStart
			req.MaxStart = m.template.MaxStart
		}
		if req.MinStart.IsZero() {
			req.MinStart = m.clock.Now().Add(-fullSyncHorizon)
		}
	}

	resp, err := m.api.ListEvents(ctx, req)
	if err != nil {
		return page{}, err
	}

	items := make(map[string]json.RawMessage, len(resp.Items))
	for _, ev := range resp.Items {
		if ev.ID == "" {
			continue
		}
		data, err := json.Marshal(ev)
		if err != nil {
			return page{}, fmt.Errorf("marshal event %s: %w", ev.ID, err)
		}
		items[ev.ID] = data
	}
	return page{
		items:         items,
		nextPageToken: resp.NextPageToken,
		nextSyncToken: resp.NextSyncToken,
		timezone:      resp.Timezone,
	}, nil
}

// decodeEvents rebuilds typed events from the cached blob, ordered by id so
// downstream tie-breaking stays deterministic across runs.
func decodeEvents(st state) ([]model.Event, error) {
	ids := make([]string, 0, len(st.Items))
	for id := range st.Items {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	events := make([]model.Event, 0, len(ids))
	for _, id := range ids {
		ev, err := model.ParseEvent(st.Items[id])
		if err != nil {
			return nil, fmt.Errorf("decode cached event %s: %w", id, err)
		}
		events = append(events, ev)
	}
	return events, nil
}
