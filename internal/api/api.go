// Package api defines the calendar transport interface consumed by the sync
// engine, and its Google Calendar implementation.
package api

import (
	"context"
	"fmt"
	"time"

	"github.com/rmoroz/gcalcache/internal/model"
)

//go:generate go run go.uber.org/mock/mockgen@latest -package mocks -destination mocks/api.go . Service

// SyncWindow carries the pagination and incremental-sync cursors shared by
// all list requests.
type SyncWindow struct {
	PageToken string
	SyncToken string
}

// WithPageToken returns a copy of the window advanced to the next page.
func (w SyncWindow) WithPageToken(token string) SyncWindow {
	w.PageToken = token
	return w
}

type CalendarListRequest struct {
	SyncWindow
}

type CalendarListResponse struct {
	Items         []model.Calendar
	NextPageToken string
	NextSyncToken string
}

// ListEventsRequest lists events of one calendar. Search and the time bounds
// apply to full syncs only: the remote protocol forbids combining a sync
// token with filters, so a request carrying both is rejected before any
// network call.
type ListEventsRequest struct {
	SyncWindow
	CalendarID string
	Search     string
	MinStart   time.Time
	MaxStart   time.Time
}

func (r ListEventsRequest) Validate() error {
	if r.CalendarID == "" {
		return fmt.Errorf("%w: calendar id is required", ErrInvalidRequest)
	}
	if r.SyncToken == "" {
		return nil
	}
	if r.Search != "" {
		return fmt.Errorf("%w: sync token cannot be combined with search", ErrInvalidRequest)
	}
	if !r.MinStart.IsZero() || !r.MaxStart.IsZero() {
		return fmt.Errorf("%w: sync token cannot be combined with time bounds", ErrInvalidRequest)
	}
	return nil
}

type ListEventsResponse struct {
	Items []model.Event
	// Timezone is the calendar's default zone as reported by the server,
	// used to normalize all-day and floating values at query time.
	Timezone      string
	NextPageToken string
	NextSyncToken string
}

// EventPatch is a partial event update. Nil fields are left untouched.
type EventPatch struct {
	Status     *model.EventStatus
	Recurrence *[]string
}

// Service is the remote calendar surface the sync engine talks to.
type Service interface {
	ListCalendars(ctx context.Context, req CalendarListRequest) (CalendarListResponse, error)
	ListEvents(ctx context.Context, req ListEventsRequest) (ListEventsResponse, error)
	GetCalendar(ctx context.Context, calendarID string) (model.CalendarBasic, error)
	CreateEvent(ctx context.Context, calendarID string, ev model.Event) (model.Event, error)
	PatchEvent(ctx context.Context, calendarID, eventID string, patch EventPatch) (model.Event, error)
	DeleteEvent(ctx context.Context, calendarID, eventID string) error
}
