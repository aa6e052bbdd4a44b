package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvent_UnmarshalDefaults(t *testing.T) {
	payload := `{
		"id": "some-event-id",
		"iCalUID": "some-event-id@google.com",
		"summary": "Team meeting",
		"start": {"dateTime": "2022-04-12T16:30:00Z"},
		"end": {"dateTime": "2022-04-12T17:00:00Z"}
	}`
	ev, err := ParseEvent([]byte(payload))
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, ev.Status)
	assert.Equal(t, "opaque", ev.Transparency)
	assert.Equal(t, EventTypeDefault, ev.EventType)
	assert.Equal(t, VisibilityDefault, ev.Visibility)
	assert.Equal(t, 30*time.Minute, ev.ComputedDuration())
	assert.False(t, ev.IsRecurringBase())
	assert.False(t, ev.IsException())
}

func TestEvent_UnmarshalTombstone(t *testing.T) {
	ev, err := ParseEvent([]byte(`{"id": "gone", "status": "cancelled"}`))
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, ev.Status)
	assert.False(t, ev.Start.IsZero())
	assert.False(t, ev.End.IsZero())
	assert.True(t, ev.Start.Equal(ev.End))
}

func TestEvent_UnmarshalMissingTimes(t *testing.T) {
	_, err := ParseEvent([]byte(`{"id": "bad", "summary": "No times"}`))
	require.Error(t, err)
	var parseErr *ParseError
	assert.ErrorAs(t, err, &parseErr)
}

func TestEvent_UnmarshalLegacyVisibility(t *testing.T) {
	payload := `{
		"id": "v",
		"visibility": "confidential",
		"start": {"date": "2022-08-01"},
		"end": {"date": "2022-08-02"}
	}`
	ev, err := ParseEvent([]byte(payload))
	require.NoError(t, err)
	assert.Equal(t, VisibilityPrivate, ev.Visibility)
}

func TestEvent_RepairsDuration(t *testing.T) {
	// All-day with end before start gets a one day duration.
	ev, err := ParseEvent([]byte(`{
		"id": "d",
		"start": {"date": "2022-08-02"},
		"end": {"date": "2022-08-01"}
	}`))
	require.NoError(t, err)
	assert.Equal(t, NewDate(2022, time.August, 3), ev.End.Date())

	// Timed with end before start collapses to zero duration.
	ev, err = ParseEvent([]byte(`{
		"id": "d2",
		"start": {"dateTime": "2022-08-01T10:00:00Z"},
		"end": {"dateTime": "2022-08-01T09:00:00Z"}
	}`))
	require.NoError(t, err)
	assert.Equal(t, time.Duration(0), ev.ComputedDuration())
}

func TestEvent_Exception(t *testing.T) {
	orig := NewAllDay(NewDate(2022, time.August, 3))
	ev := Event{
		ID:                "E_20220803",
		RecurringEventID:  "E",
		OriginalStartTime: &orig,
		Start:             NewAllDay(NewDate(2022, time.August, 3)),
		End:               NewAllDay(NewDate(2022, time.August, 4)),
	}
	assert.True(t, ev.IsException())

	data, err := json.Marshal(ev)
	require.NoError(t, err)
	parsed, err := ParseEvent(data)
	require.NoError(t, err)
	require.NotNil(t, parsed.OriginalStartTime)
	assert.True(t, orig.Equal(*parsed.OriginalStartTime))
}
