// Package recurrence expands the raw RRULE/RDATE/EXDATE lines of a
// recurring calendar event into a lazy sequence of occurrence starts, and
// materializes individual occurrences into full events.
package recurrence

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/teambition/rrule-go"

	"github.com/rmoroz/gcalcache/internal/model"
)

const (
	compactDate     = "20060102"
	compactDateTime = "20060102T150405"
)

// RuleSet is the parsed, immutable recurrence of one base event. The
// occurrence stream is (rrule1 ∪ rrule2 ∪ ... ∪ rdate) \ exdate, seeded at
// the base event's start. Iteration is restartable: every call to Iterate
// produces a fresh cursor over the same set.
type RuleSet struct {
	set      *rrule.Set
	allDay   bool
	floating bool
}

// Parse builds a RuleSet from raw recurrence lines and the base event start.
// Inconsistent UNTIL bounds observed from the upstream API are repaired
// before evaluation; unparsable rule syntax is reported with the offending
// rule text.
func Parse(recurrence []string, start model.DateOrDatetime) (*RuleSet, error) {
	rs := &RuleSet{
		set:    &rrule.Set{},
		allDay: start.IsAllDay(),
		// A wall-clock start that names a zone is zoned, not floating:
		// the zone re-interprets the wall clock, and so must every
		// generated occurrence.
		floating: start.Floating() && start.Zone() == "",
	}

	dtstart := start.Normalize(nil)
	loc := dtstart.Location()
	rs.set.DTStart(dtstart)

	for _, line := range recurrence {
		name, value, ok := splitRuleLine(line)
		if !ok {
			return nil, model.NewParseError("recurrence line missing value", line)
		}
		switch {
		case name == "RRULE":
			if err := rs.addRRule(value, start, dtstart, loc); err != nil {
				return nil, err
			}
		case strings.HasPrefix(name, "RDATE"):
			times, err := parseDateValues(name, value, loc)
			if err != nil {
				return nil, err
			}
			for _, t := range times {
				rs.set.RDate(t)
			}
		case strings.HasPrefix(name, "EXDATE"):
			times, err := parseDateValues(name, value, loc)
			if err != nil {
				return nil, err
			}
			for _, t := range times {
				rs.set.ExDate(t)
			}
		default:
			return nil, model.NewParseError("unsupported recurrence property", line)
		}
	}
	return rs, nil
}

func (rs *RuleSet) addRRule(value string, start model.DateOrDatetime, dtstart time.Time, loc *time.Location) error {
	repaired, err := repairRule(value, start)
	if err != nil {
		return err
	}
	opt, err := rrule.StrToROptionInLocation(repaired, loc)
	if err != nil {
		return model.NewParseError("invalid RRULE", value)
	}
	opt.Dtstart = dtstart
	rule, err := rrule.NewRRule(*opt)
	if err != nil {
		return model.NewParseError("invalid RRULE", value)
	}
	rs.set.RRule(rule)
	return nil
}

// Iterate returns a fresh cursor over occurrence starts in ascending order.
// The sequence may be infinite; the caller decides when to stop.
func (rs *RuleSet) Iterate() func() (model.DateOrDatetime, bool) {
	next := rs.set.Iterator()
	return func() (model.DateOrDatetime, bool) {
		t, ok := next()
		if !ok {
			return model.DateOrDatetime{}, false
		}
		switch {
		case rs.allDay:
			return model.NewAllDay(model.DateOf(t)), true
		case rs.floating:
			return model.NewFloatingDateTime(t), true
		default:
			return model.NewDateTime(t), true
		}
	}
}

// Materialize builds the concrete event for one occurrence of base,
// preserving the base duration and assigning the synthetic instance id.
func Materialize(base model.Event, start model.DateOrDatetime) model.Event {
	ev := base
	ev.Recurrence = nil
	ev.Attendees = slices.Clone(base.Attendees)
	ev.ID = model.NewSyntheticEventID(base.ID, start).String()
	ev.RecurringEventID = base.ID
	orig := start
	ev.OriginalStartTime = &orig
	ev.Start = start

	if start.IsAllDay() {
		days := base.Start.Date().DaysUntil(base.End.Date())
		if days < 1 {
			days = 1
		}
		ev.End = model.NewAllDay(start.Date().AddDays(days))
		return ev
	}

	end := start.Time().Add(base.ComputedDuration())
	if start.Floating() {
		ev.End = model.NewFloatingDateTime(end)
	} else {
		ev.End = model.NewDateTime(end)
	}
	return ev
}

// TerminateBefore rewrites the base event's recurrence lines so the series
// ends strictly before the given occurrence start. UNTIL is inclusive and
// DAILY is the smallest supported frequency, so stepping back one day is
// safe for both dates and datetimes. Events with zero or multiple RRULEs
// cannot be rewritten.
func TerminateBefore(recurrence []string, before model.DateOrDatetime) ([]string, error) {
	ruleIdx := -1
	for i, line := range recurrence {
		name, _, _ := splitRuleLine(line)
		if name == "RRULE" {
			if ruleIdx >= 0 {
				return nil, fmt.Errorf("cannot rewrite recurrence with multiple RRULEs: %v", recurrence)
			}
			ruleIdx = i
		}
	}
	if ruleIdx < 0 {
		return nil, fmt.Errorf("cannot rewrite recurrence without an RRULE: %v", recurrence)
	}

	_, value, _ := splitRuleLine(recurrence[ruleIdx])
	var kept []string
	for part := range strings.SplitSeq(value, ";") {
		key, _, ok := strings.Cut(part, "=")
		if !ok {
			return nil, model.NewParseError("recurrence rule part missing '='", value)
		}
		// COUNT and UNTIL are mutually exclusive; both are replaced by
		// the new bound.
		if key == "COUNT" || key == "UNTIL" {
			continue
		}
		kept = append(kept, part)
	}

	var until string
	if before.IsAllDay() {
		until = before.Date().AddDays(-1).Midnight(time.UTC).Format(compactDate)
	} else {
		until = before.Normalize(nil).UTC().Add(-24 * time.Hour).Format(compactDateTime) + "Z"
	}
	kept = append(kept, "UNTIL="+until)

	out := slices.Clone(recurrence)
	out[ruleIdx] = "RRULE:" + strings.Join(kept, ";")
	return out, nil
}

// splitRuleLine splits "RRULE:FREQ=..." or "EXDATE;TZID=X:2022..." into the
// property name (with parameters) and its value.
func splitRuleLine(line string) (name, value string, ok bool) {
	name, value, ok = strings.Cut(line, ":")
	return strings.TrimSpace(name), value, ok
}

// repairRule fixes the inconsistent UNTIL forms the upstream API emits:
// a date-only UNTIL with a zoned start is promoted to midnight UTC, a UTC
// marker with a floating start is stripped, and a time component with an
// all-day start is truncated to the date.
func repairRule(value string, start model.DateOrDatetime) (string, error) {
	parts := strings.Split(value, ";")
	for i, part := range parts {
		key, val, ok := strings.Cut(part, "=")
		if !ok {
			return "", model.NewParseError("recurrence rule part missing '='", value)
		}
		if key != "UNTIL" {
			continue
		}
		fixed, err := repairUntil(val, start)
		if err != nil {
			return "", model.NewParseError(err.Error(), value)
		}
		parts[i] = "UNTIL=" + fixed
	}
	return strings.Join(parts, ";"), nil
}

func repairUntil(val string, start model.DateOrDatetime) (string, error) {
	dateOnly := len(val) == len(compactDate)
	zulu := strings.HasSuffix(val, "Z")

	base := strings.TrimSuffix(val, "Z")
	var err error
	if dateOnly {
		_, err = time.Parse(compactDate, base)
	} else {
		_, err = time.Parse(compactDateTime, base)
	}
	if err != nil {
		return "", fmt.Errorf("invalid UNTIL value %q", val)
	}

	switch {
	case start.IsAllDay():
		if !dateOnly {
			return base[:len(compactDate)], nil
		}
	case start.Floating() && start.Zone() == "":
		if zulu {
			return base, nil
		}
	default:
		if dateOnly {
			return val + "T000000Z", nil
		}
	}
	return val, nil
}

// parseDateValues parses the comma-separated values of an RDATE or EXDATE
// line, honoring VALUE=DATE and TZID parameters.
func parseDateValues(name, value string, defaultLoc *time.Location) ([]time.Time, error) {
	loc := defaultLoc
	params := strings.Split(name, ";")
	for _, p := range params[1:] {
		key, val, ok := strings.Cut(p, "=")
		if !ok {
			return nil, model.NewParseError("recurrence parameter missing '='", name+":"+value)
		}
		if key == "TZID" {
			tz, err := time.LoadLocation(val)
			if err != nil {
				return nil, model.NewParseError("unknown TZID in recurrence", val)
			}
			loc = tz
		}
	}

	var out []time.Time
	for v := range strings.SplitSeq(value, ",") {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		t, err := parseCompactTime(v, loc)
		if err != nil {
			return nil, model.NewParseError("invalid recurrence date value", v)
		}
		out = append(out, t)
	}
	return out, nil
}

func parseCompactTime(v string, loc *time.Location) (time.Time, error) {
	if strings.HasSuffix(v, "Z") {
		return time.Parse(compactDateTime+"Z0700", v)
	}
	if strings.Contains(v, "T") {
		return time.ParseInLocation(compactDateTime, v, loc)
	}
	return time.ParseInLocation(compactDate, v, loc)
}
