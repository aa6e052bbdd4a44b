// Package timeline presents a set of cached calendar events as one
// chronologically ordered sequence, expanding recurring events into
// concrete instances on the fly.
package timeline

import (
	"iter"
	"sort"
	"time"

	"github.com/rmoroz/gcalcache/internal/model"
	"github.com/rmoroz/gcalcache/internal/recurrence"
)

// Timeline is an ordered, lazily expanded view over a snapshot of events.
// It is immutable: iterating it, or running the same range query twice,
// always produces identical results. A Timeline is created by the local
// sync API and not usually constructed directly.
type Timeline struct {
	loc     *time.Location
	sources []func() cursor
}

// New builds a timeline from the full cached event set. loc is the default
// zone used to normalize all-day and floating values (UTC when nil).
//
// Events partition into plain events, recurring bases, and exceptions
// (overrides or cancellations of a single occurrence). Occurrence starts
// claimed by an exception are suppressed during expansion; the override
// event itself, unless cancelled, is merged in at its own start instead.
func New(events []model.Event, loc *time.Location) (*Timeline, error) {
	if loc == nil {
		loc = time.UTC
	}

	var plain []model.Event
	var bases []model.Event
	excluded := make(map[string][]time.Time)
	for _, ev := range events {
		if ev.IsRecurringBase() {
			bases = append(bases, ev)
			continue
		}
		if ev.IsException() {
			excluded[ev.RecurringEventID] = append(
				excluded[ev.RecurringEventID], ev.OriginalStartTime.Normalize(loc))
		}
		if ev.Status == model.StatusCancelled {
			continue
		}
		plain = append(plain, ev)
	}

	t := &Timeline{loc: loc}
	t.sources = append(t.sources, plainSource(plain, loc))
	for i, base := range bases {
		rs, err := recurrence.Parse(base.Recurrence, base.Start)
		if err != nil {
			return nil, err
		}
		t.sources = append(t.sources, recurSource(base, rs, excluded[base.ID], i+1, loc))
	}
	return t, nil
}

func plainSource(events []model.Event, loc *time.Location) func() cursor {
	items := make([]item, len(events))
	for i, ev := range events {
		items[i] = item{
			start: ev.Start.Normalize(loc),
			end:   ev.End.Normalize(loc),
			seq:   i,
			build: func() model.Event { return ev },
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].less(items[j]) })

	return func() cursor {
		i := 0
		return func() (item, bool) {
			if i >= len(items) {
				return item{}, false
			}
			it := items[i]
			i++
			return it, true
		}
	}
}

func recurSource(base model.Event, rs *recurrence.RuleSet, excluded []time.Time, src int, loc *time.Location) func() cursor {
	duration := base.ComputedDuration()
	return func() cursor {
		next := rs.Iterate()
		seq := 0
		return func() (item, bool) {
			for {
				occ, ok := next()
				if !ok {
					return item{}, false
				}
				start := occ.Normalize(loc)
				if containsTime(excluded, start) {
					continue
				}
				it := item{
					start: start,
					end:   start.Add(duration),
					src:   src,
					seq:   seq,
					build: func() model.Event { return recurrence.Materialize(base, occ) },
				}
				seq++
				return it, true
			}
		}
	}
}

func containsTime(ts []time.Time, t time.Time) bool {
	for _, v := range ts {
		if v.Equal(t) {
			return true
		}
	}
	return false
}

// All yields every event in chronological order. The sequence may be
// infinite for unbounded recurrences; stop ranging when done.
func (t *Timeline) All() iter.Seq[model.Event] {
	return func(yield func(model.Event) bool) {
		m := newMerge(t.sources)
		for it, ok := m.pop(); ok; it, ok = m.pop() {
			if !yield(it.build()) {
				return
			}
		}
	}
}

// Overlapping yields events whose span intersects [start, end).
func (t *Timeline) Overlapping(start, end time.Time) iter.Seq[model.Event] {
	return func(yield func(model.Event) bool) {
		m := newMerge(t.sources)
		for it, ok := m.pop(); ok; it, ok = m.pop() {
			if !it.start.Before(end) {
				return
			}
			if spanIntersects(it.start, it.end, start, end) && !yield(it.build()) {
				return
			}
		}
	}
}

// ActiveAfter yields events whose start or end is strictly after ts.
func (t *Timeline) ActiveAfter(ts time.Time) iter.Seq[model.Event] {
	return func(yield func(model.Event) bool) {
		m := newMerge(t.sources)
		for it, ok := m.pop(); ok; it, ok = m.pop() {
			if (it.start.After(ts) || it.end.After(ts)) && !yield(it.build()) {
				return
			}
		}
	}
}

// StartAfter yields events whose start is strictly after ts.
func (t *Timeline) StartAfter(ts time.Time) iter.Seq[model.Event] {
	return func(yield func(model.Event) bool) {
		m := newMerge(t.sources)
		for it, ok := m.pop(); ok; it, ok = m.pop() {
			if it.start.After(ts) && !yield(it.build()) {
				return
			}
		}
	}
}

// AtInstant yields events whose [start, end) includes ts.
func (t *Timeline) AtInstant(ts time.Time) iter.Seq[model.Event] {
	return func(yield func(model.Event) bool) {
		m := newMerge(t.sources)
		for it, ok := m.pop(); ok; it, ok = m.pop() {
			if it.start.After(ts) {
				return
			}
			if !ts.Before(it.start) && ts.Before(it.end) && !yield(it.build()) {
				return
			}
		}
	}
}

// OnDate yields events active on the given day in the timeline's zone.
func (t *Timeline) OnDate(day model.Date) iter.Seq[model.Event] {
	return t.Overlapping(day.Midnight(t.loc), day.AddDays(1).Midnight(t.loc))
}

// Today yields events active on the current day.
func (t *Timeline) Today() iter.Seq[model.Event] {
	return t.OnDate(model.DateOf(time.Now().In(t.loc)))
}

// Now yields events in progress at this moment.
func (t *Timeline) Now() iter.Seq[model.Event] {
	return t.AtInstant(time.Now())
}

// spanIntersects reports whether [aStart, aEnd) and [bStart, bEnd)
// intersect; zero-length spans count when they fall inside the other span.
func spanIntersects(aStart, aEnd, bStart, bEnd time.Time) bool {
	if aStart.Equal(aEnd) {
		return !aStart.Before(bStart) && aStart.Before(bEnd)
	}
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}
