package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDateOrDatetime_UnmarshalDate(t *testing.T) {
	var v DateOrDatetime
	require.NoError(t, json.Unmarshal([]byte(`{"date":"2022-08-01"}`), &v))
	assert.True(t, v.IsAllDay())
	assert.Equal(t, NewDate(2022, time.August, 1), v.Date())
	assert.Equal(t, time.Date(2022, time.August, 1, 0, 0, 0, 0, time.UTC), v.Normalize(nil))

	loc := time.FixedZone("X", -7*3600)
	assert.Equal(t, time.Date(2022, time.August, 1, 0, 0, 0, 0, loc), v.Normalize(loc))
}

func TestDateOrDatetime_UnmarshalDateTime(t *testing.T) {
	tests := []struct {
		name     string
		payload  string
		want     time.Time
		floating bool
	}{
		{
			name:    "offset",
			payload: `{"dateTime":"2022-04-12T16:30:00-07:00"}`,
			want:    time.Date(2022, time.April, 12, 23, 30, 0, 0, time.UTC),
		},
		{
			name:    "utc",
			payload: `{"dateTime":"2022-04-12T16:30:00Z"}`,
			want:    time.Date(2022, time.April, 12, 16, 30, 0, 0, time.UTC),
		},
		{
			name:     "floating is ordered as utc",
			payload:  `{"dateTime":"2022-04-12T16:30:00"}`,
			want:     time.Date(2022, time.April, 12, 16, 30, 0, 0, time.UTC),
			floating: true,
		},
		{
			name:    "sub-second precision is truncated",
			payload: `{"dateTime":"2022-04-12T16:30:00.123456Z"}`,
			want:    time.Date(2022, time.April, 12, 16, 30, 0, 0, time.UTC),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var v DateOrDatetime
			require.NoError(t, json.Unmarshal([]byte(tt.payload), &v))
			assert.False(t, v.IsAllDay())
			assert.Equal(t, tt.floating, v.Floating())
			assert.True(t, tt.want.Equal(v.Normalize(nil)), "got %v", v.Normalize(nil))
		})
	}
}

func TestDateOrDatetime_ZoneOverridesOffset(t *testing.T) {
	// The named zone re-interprets the wall clock and wins over the
	// numeric offset carried by the payload.
	var v DateOrDatetime
	require.NoError(t, json.Unmarshal(
		[]byte(`{"dateTime":"2022-04-12T16:30:00Z","timeZone":"America/New_York"}`), &v))
	norm := v.Normalize(nil)
	assert.True(t, norm.Equal(time.Date(2022, time.April, 12, 16, 30, 0, 0, time.UTC)))
	assert.Equal(t, "America/New_York", norm.Location().String())

	// Floating wall clock with a zone name is read in that zone.
	require.NoError(t, json.Unmarshal(
		[]byte(`{"dateTime":"2022-04-12T16:30:00","timeZone":"America/New_York"}`), &v))
	assert.True(t, v.Normalize(nil).Equal(time.Date(2022, time.April, 12, 20, 30, 0, 0, time.UTC)))

	// Unknown zone names are ignored rather than failing the payload.
	require.NoError(t, json.Unmarshal(
		[]byte(`{"dateTime":"2022-04-12T16:30:00Z","timeZone":"Not/AZone"}`), &v))
	assert.True(t, v.Normalize(nil).Equal(time.Date(2022, time.April, 12, 16, 30, 0, 0, time.UTC)))
}

func TestDateOrDatetime_UnmarshalInvalid(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{name: "empty", payload: `{}`},
		{name: "both set", payload: `{"date":"2022-08-01","dateTime":"2022-08-01T00:00:00Z"}`},
		{name: "zone with date", payload: `{"date":"2022-08-01","timeZone":"UTC"}`},
		{name: "bad date", payload: `{"date":"yesterday"}`},
		{name: "bad dateTime", payload: `{"dateTime":"soon"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var v DateOrDatetime
			err := json.Unmarshal([]byte(tt.payload), &v)
			require.Error(t, err)
			var parseErr *ParseError
			assert.ErrorAs(t, err, &parseErr)
		})
	}
}

func TestDateOrDatetime_Equal(t *testing.T) {
	date := NewAllDay(NewDate(2022, time.August, 1))
	midnight := NewDateTime(time.Date(2022, time.August, 1, 0, 0, 0, 0, time.UTC))
	assert.True(t, date.Equal(midnight))

	offset := NewDateTime(time.Date(2022, time.August, 1, 9, 0, 0, 0, time.FixedZone("E2", 2*3600)))
	utc := NewDateTime(time.Date(2022, time.August, 1, 7, 0, 0, 0, time.UTC))
	assert.True(t, offset.Equal(utc))

	floating := NewFloatingDateTime(time.Date(2022, time.August, 1, 7, 0, 0, 0, time.Local))
	assert.True(t, floating.Equal(utc))
}

func TestDateOrDatetime_MarshalRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		in   DateOrDatetime
	}{
		{name: "date", in: NewAllDay(NewDate(2022, time.August, 1))},
		{name: "datetime", in: NewDateTime(time.Date(2022, time.August, 1, 9, 30, 0, 0, time.UTC))},
		{name: "floating", in: NewFloatingDateTime(time.Date(2022, time.August, 1, 9, 30, 0, 0, time.UTC))},
		{name: "zoned", in: NewZonedDateTime(time.Date(2022, time.August, 1, 9, 30, 0, 0, time.UTC), "America/New_York")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.in)
			require.NoError(t, err)
			var out DateOrDatetime
			require.NoError(t, json.Unmarshal(data, &out))
			assert.True(t, tt.in.Equal(out), "round trip changed instant: %s", data)
			assert.Equal(t, tt.in.IsAllDay(), out.IsAllDay())
			assert.Equal(t, tt.in.Floating(), out.Floating())
		})
	}
}

func TestDate_Arithmetic(t *testing.T) {
	d := NewDate(2022, time.August, 31)
	assert.Equal(t, NewDate(2022, time.September, 1), d.AddDays(1))
	assert.Equal(t, 2, d.DaysUntil(NewDate(2022, time.September, 2)))
	assert.True(t, d.Before(NewDate(2022, time.September, 1)))
	assert.Equal(t, "2022-08-31", d.String())
}
