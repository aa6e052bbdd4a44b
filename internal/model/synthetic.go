package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Timelines generate one synthetic event per instance of a recurring event.
// The synthetic id encodes the base event id and the occurrence start so it
// can be mapped back, e.g. "someEventId_20220801" for an all-day instance
// or "someEventId_20220801T090000Z" for a timed one.

const syntheticIDDelim = "_"

const (
	compactDateLayout     = "20060102"
	compactDateTimeLayout = "20060102T150405"
)

var ErrInvalidSyntheticID = errors.New("invalid synthetic event id")

// SyntheticEventID is a reversible (event id, occurrence start) pair.
type SyntheticEventID struct {
	eventID string
	start   DateOrDatetime
}

func NewSyntheticEventID(eventID string, start DateOrDatetime) SyntheticEventID {
	return SyntheticEventID{eventID: eventID, start: start}
}

// ParseSyntheticEventID splits a synthetic id back into the original event
// id and occurrence start. Timed suffixes must be UTC-normalized (trailing
// "Z"); anything else fails.
func ParseSyntheticEventID(s string) (SyntheticEventID, error) {
	idx := strings.LastIndex(s, syntheticIDDelim)
	if idx <= 0 || idx == len(s)-1 {
		return SyntheticEventID{}, fmt.Errorf("%w: %q", ErrInvalidSyntheticID, s)
	}
	eventID, suffix := s[:idx], s[idx+1:]
	if len(suffix) == len(compactDateLayout) {
		t, err := time.Parse(compactDateLayout, suffix)
		if err != nil {
			return SyntheticEventID{}, fmt.Errorf("%w: bad date suffix %q", ErrInvalidSyntheticID, s)
		}
		return SyntheticEventID{eventID: eventID, start: NewAllDay(DateOf(t))}, nil
	}
	if !strings.HasSuffix(suffix, "Z") {
		return SyntheticEventID{}, fmt.Errorf("%w: datetime suffix missing Z %q", ErrInvalidSyntheticID, s)
	}
	t, err := time.Parse(compactDateTimeLayout, strings.TrimSuffix(suffix, "Z"))
	if err != nil {
		return SyntheticEventID{}, fmt.Errorf("%w: bad datetime suffix %q", ErrInvalidSyntheticID, s)
	}
	return SyntheticEventID{eventID: eventID, start: NewDateTime(t.UTC())}, nil
}

// IsValidSyntheticEventID reports whether s parses as a synthetic id.
func IsValidSyntheticEventID(s string) bool {
	_, err := ParseSyntheticEventID(s)
	return err == nil
}

func (s SyntheticEventID) String() string {
	if s.start.IsAllDay() {
		return s.eventID + syntheticIDDelim + s.start.Date().Midnight(time.UTC).Format(compactDateLayout)
	}
	utc := s.start.Normalize(time.UTC).UTC()
	return s.eventID + syntheticIDDelim + utc.Format(compactDateTimeLayout) + "Z"
}

// OriginalEventID returns the base event id the synthetic id was built from.
func (s SyntheticEventID) OriginalEventID() string {
	return s.eventID
}

// Start returns the occurrence start: an all-day date, or a UTC instant.
func (s SyntheticEventID) Start() DateOrDatetime {
	return s.start
}
