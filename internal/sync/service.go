package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/rmoroz/gcalcache/internal/api"
	"github.com/rmoroz/gcalcache/internal/model"
	"github.com/rmoroz/gcalcache/internal/recurrence"
	"github.com/rmoroz/gcalcache/internal/store"
	"github.com/rmoroz/gcalcache/internal/timeline"
)

// Range selects how much of a recurring series a delete affects.
type Range string

const (
	// SingleInstance tombstones one occurrence and leaves the rest alone.
	SingleInstance Range = "SINGLE_INSTANCE"
	// ThisAndFuture terminates the series right before the occurrence.
	ThisAndFuture Range = "THIS_AND_FUTURE"
)

var ErrEventNotFound = errors.New("event not found")

// CalendarListStoreService reads the mirrored calendar list.
type CalendarListStoreService struct {
	store store.Store
}

func NewCalendarListStoreService(st store.Store) *CalendarListStoreService {
	return &CalendarListStoreService{store: store.NewScopedStore(st, "calendar_list_sync")}
}

// ListCalendars returns the cached calendar list ordered by id.
func (s *CalendarListStoreService) ListCalendars() ([]model.Calendar, error) {
	st, err := loadState(s.store)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(st.Items))
	for id := range st.Items {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	calendars := make([]model.Calendar, 0, len(ids))
	for _, id := range ids {
		var cal model.Calendar
		if err := json.Unmarshal(st.Items[id], &cal); err != nil {
			return nil, fmt.Errorf("decode cached calendar %s: %w", id, err)
		}
		calendars = append(calendars, cal)
	}
	return calendars, nil
}

// EventStoreService answers queries over one calendar's mirrored events and
// applies the two supported write operations, keeping the mirror current.
type EventStoreService struct {
	api        api.Service
	store      store.Store
	calendarID string

	log *slog.Logger
}

func NewEventStoreService(svc api.Service, st store.Store, calendarID string, log *slog.Logger) *EventStoreService {
	return &EventStoreService{
		api:        svc,
		store:      EventStore(st, calendarID),
		calendarID: calendarID,
		log:        log.With("component", "event_store", "calendar_id", calendarID),
	}
}

// GetTimeline builds a timeline over the cached events. The default zone
// is loc when given, else the calendar's zone captured during sync, else UTC.
func (s *EventStoreService) GetTimeline(loc *time.Location) (*timeline.Timeline, error) {
	st, err := loadState(s.store)
	if err != nil {
		return nil, err
	}
	events, err := decodeEvents(st)
	if err != nil {
		return nil, err
	}

	if loc == nil && st.Timezone != "" {
		if l, err := time.LoadLocation(st.Timezone); err == nil {
			loc = l
		}
	}
	return timeline.New(events, loc)
}

// ListEvents returns events overlapping [start, end), or, when end is nil,
// events still active after start. With no end bound an unbounded recurring
// series makes the result unbounded too; callers wanting a finite slice
// pass an end.
func (s *EventStoreService) ListEvents(start time.Time, end *time.Time) ([]model.Event, error) {
	tl, err := s.GetTimeline(nil)
	if err != nil {
		return nil, err
	}

	seq := tl.ActiveAfter(start)
	if end != nil {
		seq = tl.Overlapping(start, *end)
	}

	var events []model.Event
	for ev := range seq {
		events = append(events, ev)
	}
	return events, nil
}

// AddEvent creates the event remotely and merges the created form into the
// cache so queries see it before the next sync pass.
func (s *EventStoreService) AddEvent(ctx context.Context, ev model.Event) (model.Event, error) {
	created, err := s.api.CreateEvent(ctx, s.calendarID, ev)
	if err != nil {
		return model.Event{}, err
	}

	if err := s.mergeItem(created); err != nil {
		return model.Event{}, err
	}
	s.log.InfoContext(ctx, "Event created", "event_id", created.ID)
	return created, nil
}

// DeleteEvent removes an event identified by its stable iCalUID. With no
// occurrence id the whole series goes. A SingleInstance delete tombstones
// just that occurrence; ThisAndFuture rewrites the series rule to end one
// unit before the occurrence, collapsing to a whole-series delete when the
// occurrence is the first.
func (s *EventStoreService) DeleteEvent(ctx context.Context, icalUID, occurrenceID string, rng Range) error {
	base, err := s.findByICalUID(icalUID)
	if err != nil {
		return err
	}

	// A non-recurring event has no occurrences to carve out; any delete
	// removes the event itself.
	if occurrenceID == "" || !base.IsRecurringBase() {
		return s.deleteSeries(ctx, base)
	}

	sid, err := model.ParseSyntheticEventID(occurrenceID)
	if err != nil {
		return fmt.Errorf("%w: occurrence id %q", api.ErrInvalidRequest, occurrenceID)
	}
	if sid.OriginalEventID() != base.ID {
		return fmt.Errorf("%w: occurrence %q does not belong to series %q", api.ErrInvalidRequest, occurrenceID, base.ID)
	}

	switch rng {
	case SingleInstance:
		cancelled := model.StatusCancelled
		patched, err := s.api.PatchEvent(ctx, s.calendarID, occurrenceID, api.EventPatch{Status: &cancelled})
		if err != nil {
			return err
		}
		if err := s.mergeItem(patched); err != nil {
			return err
		}
		s.log.InfoContext(ctx, "Occurrence cancelled", "event_id", occurrenceID)
		return nil
	case ThisAndFuture:
		if sid.Start().Equal(base.Start) {
			// Terminating before the first occurrence leaves an empty
			// series; drop it entirely instead.
			return s.deleteSeries(ctx, base)
		}
		rules, err := recurrence.TerminateBefore(base.Recurrence, sid.Start())
		if err != nil {
			return err
		}
		patched, err := s.api.PatchEvent(ctx, s.calendarID, base.ID, api.EventPatch{Recurrence: &rules})
		if err != nil {
			return err
		}
		if err := s.mergeItem(patched); err != nil {
			return err
		}
		s.log.InfoContext(ctx, "Series terminated", "event_id", base.ID, "before", occurrenceID)
		return nil
	default:
		return fmt.Errorf("%w: unknown delete range %q", api.ErrInvalidRequest, rng)
	}
}

func (s *EventStoreService) deleteSeries(ctx context.Context, base model.Event) error {
	if err := s.api.DeleteEvent(ctx, s.calendarID, base.ID); err != nil {
		return err
	}

	// The next incremental sync delivers the tombstone; record one locally
	// so queries stop returning the series immediately.
	tombstone := model.Event{ID: base.ID, ICalUID: base.ICalUID, Status: model.StatusCancelled}
	if err := s.mergeItem(tombstone); err != nil {
		return err
	}
	s.log.Info("Series deleted", "event_id", base.ID)
	return nil
}

// findByICalUID locates the series base (or plain event) carrying the uid.
// Exception instances share the uid but never stand for the series.
func (s *EventStoreService) findByICalUID(icalUID string) (model.Event, error) {
	st, err := loadState(s.store)
	if err != nil {
		return model.Event{}, err
	}
	events, err := decodeEvents(st)
	if err != nil {
		return model.Event{}, err
	}

	for _, ev := range events {
		if ev.ICalUID == icalUID && ev.RecurringEventID == "" {
			return ev, nil
		}
	}
	return model.Event{}, fmt.Errorf("%w: iCalUID %q", ErrEventNotFound, icalUID)
}

func (s *EventStoreService) mergeItem(ev model.Event) error {
	st, err := loadState(s.store)
	if err != nil {
		return err
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event %s: %w", ev.ID, err)
	}
	st.Items[ev.ID] = data
	return st.persist(s.store)
}
