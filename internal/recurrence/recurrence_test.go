package recurrence_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmoroz/gcalcache/internal/model"
	"github.com/rmoroz/gcalcache/internal/recurrence"
)

func collect(t *testing.T, rs *recurrence.RuleSet, limit int) []model.DateOrDatetime {
	t.Helper()
	var out []model.DateOrDatetime
	next := rs.Iterate()
	for len(out) < limit {
		v, ok := next()
		if !ok {
			break
		}
		out = append(out, v)
	}
	return out
}

func TestParse_DailyAllDay(t *testing.T) {
	start := model.NewAllDay(model.NewDate(2022, time.August, 1))
	rs, err := recurrence.Parse([]string{"RRULE:FREQ=DAILY;COUNT=3"}, start)
	require.NoError(t, err)

	got := collect(t, rs, 10)
	require.Len(t, got, 3)
	assert.Equal(t, model.NewDate(2022, time.August, 1), got[0].Date())
	assert.Equal(t, model.NewDate(2022, time.August, 2), got[1].Date())
	assert.Equal(t, model.NewDate(2022, time.August, 3), got[2].Date())
	for _, v := range got {
		assert.True(t, v.IsAllDay())
	}
}

func TestParse_WeeklyTimed(t *testing.T) {
	start := model.NewDateTime(time.Date(2022, time.August, 1, 9, 0, 0, 0, time.UTC))
	rs, err := recurrence.Parse([]string{"RRULE:FREQ=WEEKLY;COUNT=2"}, start)
	require.NoError(t, err)

	got := collect(t, rs, 10)
	require.Len(t, got, 2)
	assert.True(t, got[0].Equal(start))
	assert.True(t, got[1].Equal(model.NewDateTime(time.Date(2022, time.August, 8, 9, 0, 0, 0, time.UTC))))
}

func TestParse_WallClockStartWithZone(t *testing.T) {
	// A zone-less dateTime plus a timeZone name is a zoned value: every
	// occurrence keeps the named zone's instant, not a UTC reading of the
	// wall clock.
	var start model.DateOrDatetime
	require.NoError(t, json.Unmarshal(
		[]byte(`{"dateTime":"2022-08-01T09:00:00","timeZone":"America/New_York"}`), &start))

	rs, err := recurrence.Parse([]string{"RRULE:FREQ=DAILY;COUNT=3"}, start)
	require.NoError(t, err)

	got := collect(t, rs, 10)
	require.Len(t, got, 3)
	assert.True(t, got[0].Equal(start), "first occurrence is the base start")
	// 09:00 in New York is 13:00Z during August.
	assert.True(t, got[1].Equal(model.NewDateTime(time.Date(2022, time.August, 2, 13, 0, 0, 0, time.UTC))))
	for _, v := range got {
		assert.False(t, v.Floating())
	}
}

func TestParse_RestartableIteration(t *testing.T) {
	start := model.NewAllDay(model.NewDate(2022, time.August, 1))
	rs, err := recurrence.Parse([]string{"RRULE:FREQ=DAILY;COUNT=5"}, start)
	require.NoError(t, err)

	first := collect(t, rs, 10)
	second := collect(t, rs, 10)
	assert.Equal(t, first, second)
}

func TestParse_ExdateAndRdate(t *testing.T) {
	start := model.NewAllDay(model.NewDate(2022, time.August, 1))
	rs, err := recurrence.Parse([]string{
		"RRULE:FREQ=DAILY;COUNT=3",
		"EXDATE;VALUE=DATE:20220802",
		"RDATE;VALUE=DATE:20220810",
	}, start)
	require.NoError(t, err)

	got := collect(t, rs, 10)
	require.Len(t, got, 3)
	assert.Equal(t, model.NewDate(2022, time.August, 1), got[0].Date())
	assert.Equal(t, model.NewDate(2022, time.August, 3), got[1].Date())
	assert.Equal(t, model.NewDate(2022, time.August, 10), got[2].Date())
}

func TestParse_UntilRepairs(t *testing.T) {
	tests := []struct {
		name  string
		rule  string
		start model.DateOrDatetime
		want  int
	}{
		{
			// UNTIL is date-only while dtstart is zoned: promoted to
			// midnight UTC of that date.
			name:  "date until with zoned start",
			rule:  "RRULE:FREQ=DAILY;UNTIL=20220803",
			start: model.NewDateTime(time.Date(2022, time.August, 1, 9, 0, 0, 0, time.FixedZone("E2", 2*3600))),
			want:  2, // Aug 1 and Aug 2 07:00Z; Aug 3 09:00+02 is past 03T000000Z
		},
		{
			// UNTIL carries a UTC marker while dtstart is floating:
			// marker stripped.
			name:  "zulu until with floating start",
			rule:  "RRULE:FREQ=DAILY;UNTIL=20220803T090000Z",
			start: model.NewFloatingDateTime(time.Date(2022, time.August, 1, 9, 0, 0, 0, time.UTC)),
			want:  3,
		},
		{
			// UNTIL has a time component while dtstart is date-only:
			// truncated to the date.
			name:  "datetime until with all-day start",
			rule:  "RRULE:FREQ=DAILY;UNTIL=20220803T090000Z",
			start: model.NewAllDay(model.NewDate(2022, time.August, 1)),
			want:  3,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rs, err := recurrence.Parse([]string{tt.rule}, tt.start)
			require.NoError(t, err)
			assert.Len(t, collect(t, rs, 10), tt.want)
		})
	}
}

func TestParse_Invalid(t *testing.T) {
	start := model.NewAllDay(model.NewDate(2022, time.August, 1))
	tests := []struct {
		name string
		rule string
	}{
		{name: "missing separator", rule: "RRULE:FREQ"},
		{name: "non numeric until", rule: "RRULE:FREQ=DAILY;UNTIL=notadate"},
		{name: "missing value", rule: "RRULE"},
		{name: "unknown property", rule: "XRULE:FREQ=DAILY"},
		{name: "bad exdate", rule: "EXDATE:tomorrow"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := recurrence.Parse([]string{tt.rule}, start)
			require.Error(t, err)
			var parseErr *model.ParseError
			assert.ErrorAs(t, err, &parseErr)
		})
	}
}

func TestMaterialize_AllDay(t *testing.T) {
	base := model.Event{
		ID:         "E",
		ICalUID:    "E@x",
		Summary:    "Daily standup",
		Start:      model.NewAllDay(model.NewDate(2022, time.August, 1)),
		End:        model.NewAllDay(model.NewDate(2022, time.August, 2)),
		Recurrence: []string{"RRULE:FREQ=DAILY;COUNT=5"},
	}
	occ := model.NewAllDay(model.NewDate(2022, time.August, 3))

	got := recurrence.Materialize(base, occ)
	assert.Equal(t, "E_20220803", got.ID)
	assert.Equal(t, "E", got.RecurringEventID)
	assert.Equal(t, "E@x", got.ICalUID)
	assert.Empty(t, got.Recurrence)
	require.NotNil(t, got.OriginalStartTime)
	assert.True(t, occ.Equal(*got.OriginalStartTime))
	assert.Equal(t, model.NewDate(2022, time.August, 4), got.End.Date())
	assert.Equal(t, base.ComputedDuration(), got.ComputedDuration())
}

func TestMaterialize_TimedPreservesDuration(t *testing.T) {
	base := model.Event{
		ID:         "E",
		Start:      model.NewDateTime(time.Date(2022, time.August, 1, 9, 0, 0, 0, time.UTC)),
		End:        model.NewDateTime(time.Date(2022, time.August, 1, 10, 30, 0, 0, time.UTC)),
		Recurrence: []string{"RRULE:FREQ=WEEKLY"},
	}
	occ := model.NewDateTime(time.Date(2022, time.August, 8, 9, 0, 0, 0, time.UTC))

	got := recurrence.Materialize(base, occ)
	assert.Equal(t, "E_20220808T090000Z", got.ID)
	assert.Equal(t, 90*time.Minute, got.ComputedDuration())
	assert.True(t, got.End.Equal(model.NewDateTime(time.Date(2022, time.August, 8, 10, 30, 0, 0, time.UTC))))
}

func TestTerminateBefore(t *testing.T) {
	tests := []struct {
		name       string
		recurrence []string
		before     model.DateOrDatetime
		want       []string
		wantErr    bool
	}{
		{
			name:       "count replaced by until",
			recurrence: []string{"RRULE:FREQ=DAILY;COUNT=5"},
			before:     model.NewAllDay(model.NewDate(2022, time.August, 3)),
			want:       []string{"RRULE:FREQ=DAILY;UNTIL=20220802"},
		},
		{
			name:       "timed bound normalized to utc",
			recurrence: []string{"RRULE:FREQ=WEEKLY"},
			before:     model.NewDateTime(time.Date(2022, time.August, 8, 9, 0, 0, 0, time.UTC)),
			want:       []string{"RRULE:FREQ=WEEKLY;UNTIL=20220807T090000Z"},
		},
		{
			name:       "other lines preserved",
			recurrence: []string{"EXDATE;VALUE=DATE:20220802", "RRULE:FREQ=DAILY;UNTIL=20221001"},
			before:     model.NewAllDay(model.NewDate(2022, time.August, 5)),
			want:       []string{"EXDATE;VALUE=DATE:20220802", "RRULE:FREQ=DAILY;UNTIL=20220804"},
		},
		{
			name:       "multiple rrules rejected",
			recurrence: []string{"RRULE:FREQ=DAILY", "RRULE:FREQ=WEEKLY"},
			before:     model.NewAllDay(model.NewDate(2022, time.August, 5)),
			wantErr:    true,
		},
		{
			name:       "no rrule rejected",
			recurrence: []string{"RDATE;VALUE=DATE:20220802"},
			before:     model.NewAllDay(model.NewDate(2022, time.August, 5)),
			wantErr:    true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := recurrence.TerminateBefore(tt.recurrence, tt.before)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
