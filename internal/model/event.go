package model

import (
	"encoding/json"
	"time"
)

type EventStatus string

const (
	StatusConfirmed EventStatus = "confirmed"
	StatusTentative EventStatus = "tentative"
	StatusCancelled EventStatus = "cancelled"
)

type EventType string

const (
	EventTypeDefault     EventType = "default"
	EventTypeOutOfOffice EventType = "outOfOffice"
	EventTypeFocusTime   EventType = "focusTime"
)

type Visibility string

const (
	VisibilityDefault Visibility = "default"
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
)

type ResponseStatus string

const (
	ResponseNeedsAction ResponseStatus = "needsAction"
	ResponseDeclined    ResponseStatus = "declined"
	ResponseTentative   ResponseStatus = "tentative"
	ResponseAccepted    ResponseStatus = "accepted"
)

type Attendee struct {
	ID             string         `json:"id,omitempty"`
	Email          string         `json:"email,omitempty"`
	DisplayName    string         `json:"displayName,omitempty"`
	Optional       bool           `json:"optional,omitempty"`
	Comment        string         `json:"comment,omitempty"`
	ResponseStatus ResponseStatus `json:"responseStatus,omitempty"`
}

// Event is a single event on a calendar, in the calendar API wire shape.
// Cancelled tombstones carry only an id and a sentinel start/end; every
// other event has a concrete start and end.
type Event struct {
	// ID is assigned by the server and absent for not-yet-created events.
	ID string `json:"id,omitempty"`

	// ICalUID is stable across all instances of a recurring series,
	// unlike ID which differs per instance.
	ICalUID string `json:"iCalUID,omitempty"`

	Summary     string `json:"summary,omitempty"`
	Description string `json:"description,omitempty"`
	Location    string `json:"location,omitempty"`

	Start DateOrDatetime `json:"start"`
	End   DateOrDatetime `json:"end"`

	Transparency string      `json:"transparency,omitempty"`
	Status       EventStatus `json:"status,omitempty"`
	EventType    EventType   `json:"eventType,omitempty"`
	Visibility   Visibility  `json:"visibility,omitempty"`

	Attendees        []Attendee `json:"attendees,omitempty"`
	AttendeesOmitted bool       `json:"attendeesOmitted,omitempty"`

	// Recurrence holds raw RRULE/RDATE/EXDATE lines for a recurring base
	// event, per RFC5545.
	Recurrence []string `json:"recurrence,omitempty"`

	// RecurringEventID points back at the base event; set only on
	// generated or overridden instances.
	RecurringEventID string `json:"recurringEventId,omitempty"`

	// OriginalStartTime is the un-overridden occurrence start this
	// instance replaces; unset on base events.
	OriginalStartTime *DateOrDatetime `json:"originalStartTime,omitempty"`
}

// sentinelDate marks the start/end of cancelled tombstones that the API
// returns without concrete times.
var sentinelDate = NewAllDay(Date{Year: 1, Month: time.January, Day: 1})

type eventAlias Event

func (e *Event) UnmarshalJSON(data []byte) error {
	var raw eventAlias
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	ev := Event(raw)
	if err := ev.repair(); err != nil {
		return err
	}
	*e = ev
	return nil
}

// repair applies defaults plus the defensive fixes for malformed upstream
// payloads: tombstone sentinels and a minimum positive duration.
func (e *Event) repair() error {
	if e.Status == "" {
		e.Status = StatusConfirmed
	}
	if e.Transparency == "" {
		e.Transparency = "opaque"
	}
	if e.EventType == "" {
		e.EventType = EventTypeDefault
	}
	switch e.Visibility {
	case "":
		e.Visibility = VisibilityDefault
	case "confidential": // legacy API value
		e.Visibility = VisibilityPrivate
	}

	if e.Status == StatusCancelled {
		if e.Start.IsZero() {
			e.Start = sentinelDate
		}
		if e.End.IsZero() {
			e.End = sentinelDate
		}
		return nil
	}

	if e.Start.IsZero() || e.End.IsZero() {
		return NewParseError("event missing required start or end", e.ID)
	}

	if e.Start.IsAllDay() {
		if !e.Start.Date().Before(e.End.Date()) {
			e.End = NewAllDay(e.Start.Date().AddDays(1))
		}
	} else if e.End.Normalize(time.UTC).Before(e.Start.Normalize(time.UTC)) {
		e.End = e.Start
	}
	return nil
}

// ParseEvent decodes a stored or API event payload, applying repairs.
func ParseEvent(data []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return Event{}, err
	}
	return e, nil
}

// ComputedDuration returns end minus start. For all-day events this is a
// whole number of days.
func (e Event) ComputedDuration() time.Duration {
	return e.End.Normalize(time.UTC).Sub(e.Start.Normalize(time.UTC))
}

// IsRecurringBase reports whether this event defines a recurring series.
func (e Event) IsRecurringBase() bool {
	return len(e.Recurrence) > 0
}

// IsException reports whether this event overrides or cancels a single
// occurrence of a recurring series.
func (e Event) IsException() bool {
	return e.RecurringEventID != "" && e.OriginalStartTime != nil
}
