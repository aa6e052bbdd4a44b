package model

import (
	"encoding/json"
	"fmt"
	"time"
)

const (
	dateLayout         = "2006-01-02"
	floatingTimeLayout = "2006-01-02T15:04:05"
)

type Date struct {
	Year  int
	Month time.Month
	Day   int
}

func NewDate(year int, month time.Month, day int) Date {
	return Date{Year: year, Month: month, Day: day}
}

func DateOf(t time.Time) Date {
	return Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}
}

func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return DateOf(t), nil
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

func (d Date) IsZero() bool {
	return d == Date{}
}

// Midnight returns the start of the day in loc.
func (d Date) Midnight(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}

func (d Date) AddDays(days int) Date {
	return DateOf(d.Midnight(time.UTC).AddDate(0, 0, days))
}

// DaysUntil returns the number of whole days from d to other.
func (d Date) DaysUntil(other Date) int {
	return int(other.Midnight(time.UTC).Sub(d.Midnight(time.UTC)) / (24 * time.Hour))
}

func (d Date) Before(other Date) bool {
	return d.Midnight(time.UTC).Before(other.Midnight(time.UTC))
}

// DateOrDatetime is the start or end of an event: either a whole day
// (all-day events) or a point in time. A datetime without a UTC offset in
// the API payload is "floating" and is ordered as if it were UTC. A named
// zone, when present, re-interprets the wall-clock value and wins over any
// numeric offset the payload carried.
type DateOrDatetime struct {
	date     Date
	allDay   bool
	dateTime time.Time
	floating bool
	zone     string
}

// NewAllDay returns an all-day value for the given date.
func NewAllDay(d Date) DateOrDatetime {
	return DateOrDatetime{date: d, allDay: true}
}

// NewDateTime returns a value for a point in time carrying its own offset.
// Sub-second precision is dropped; the API never reports it reliably.
func NewDateTime(t time.Time) DateOrDatetime {
	return DateOrDatetime{dateTime: truncateSeconds(t)}
}

// NewFloatingDateTime returns a wall-clock value with no zone attached.
// The wall-clock fields of t are kept; its location is ignored.
func NewFloatingDateTime(t time.Time) DateOrDatetime {
	wall := time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, time.UTC)
	return DateOrDatetime{dateTime: wall, floating: true}
}

// NewZonedDateTime returns a value whose wall clock is re-interpreted in the
// named zone.
func NewZonedDateTime(t time.Time, zone string) DateOrDatetime {
	v := NewDateTime(t)
	v.zone = zone
	return v
}

func (v DateOrDatetime) IsZero() bool {
	return !v.allDay && v.dateTime.IsZero()
}

func (v DateOrDatetime) IsAllDay() bool {
	return v.allDay
}

func (v DateOrDatetime) Date() Date {
	return v.date
}

func (v DateOrDatetime) Zone() string {
	return v.zone
}

func (v DateOrDatetime) Floating() bool {
	return v.floating
}

// Time returns the datetime value with the named zone applied, if any.
// For all-day values it returns the zero time; use Normalize instead.
func (v DateOrDatetime) Time() time.Time {
	if v.allDay {
		return time.Time{}
	}
	if v.zone != "" {
		if loc, err := time.LoadLocation(v.zone); err == nil {
			if v.floating {
				t := v.dateTime
				return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, loc)
			}
			return v.dateTime.In(loc)
		}
		// Unknown zone names are ignored, same as the upstream API client.
	}
	return v.dateTime
}

// Normalize converts the value to a concrete instant usable for comparison.
// All-day values become midnight in loc (UTC when nil); floating values
// keep their wall clock read as UTC.
func (v DateOrDatetime) Normalize(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	if v.allDay {
		return v.date.Midnight(loc)
	}
	return v.Time()
}

// Equal reports whether two values name the same instant, regardless of
// representation. All-day values are compared at UTC midnight.
func (v DateOrDatetime) Equal(other DateOrDatetime) bool {
	return v.Normalize(time.UTC).Equal(other.Normalize(time.UTC))
}

type dateOrDatetimeJSON struct {
	Date     string `json:"date,omitempty"`
	DateTime string `json:"dateTime,omitempty"`
	TimeZone string `json:"timeZone,omitempty"`
}

func (v DateOrDatetime) MarshalJSON() ([]byte, error) {
	var out dateOrDatetimeJSON
	switch {
	case v.allDay:
		out.Date = v.date.String()
	case v.floating:
		out.DateTime = v.dateTime.Format(floatingTimeLayout)
	default:
		out.DateTime = v.dateTime.Format(time.RFC3339)
	}
	out.TimeZone = v.zone
	return json.Marshal(out)
}

func (v *DateOrDatetime) UnmarshalJSON(data []byte) error {
	var raw dateOrDatetimeJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := parseDateOrDatetime(raw)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

func parseDateOrDatetime(raw dateOrDatetimeJSON) (DateOrDatetime, error) {
	if raw.Date != "" && raw.DateTime != "" {
		return DateOrDatetime{}, NewParseError("value has both date and dateTime", raw.Date+" / "+raw.DateTime)
	}
	if raw.Date != "" {
		if raw.TimeZone != "" {
			return DateOrDatetime{}, NewParseError("timeZone is not supported with a date value", raw.Date)
		}
		d, err := ParseDate(raw.Date)
		if err != nil {
			return DateOrDatetime{}, NewParseError("invalid date value", raw.Date)
		}
		return NewAllDay(d), nil
	}
	if raw.DateTime == "" {
		return DateOrDatetime{}, NewParseError("missing date or dateTime value", "")
	}
	if t, err := time.Parse(time.RFC3339, raw.DateTime); err == nil {
		v := NewDateTime(t)
		v.zone = raw.TimeZone
		return v, nil
	}
	t, err := time.Parse(floatingTimeLayout, raw.DateTime)
	if err != nil {
		return DateOrDatetime{}, NewParseError("invalid dateTime value", raw.DateTime)
	}
	v := NewFloatingDateTime(t)
	v.zone = raw.TimeZone
	return v, nil
}

func truncateSeconds(t time.Time) time.Time {
	return t.Add(-time.Duration(t.Nanosecond()) * time.Nanosecond)
}
