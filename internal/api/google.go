package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/rmoroz/gcalcache/internal/model"
)

// Partial-response projections, so list responses only carry the fields the
// model decodes.
const (
	calendarListFields googleapi.Field = "items(id,summary,description,location,timeZone,accessRole,selected,primary),nextPageToken,nextSyncToken"
	eventListFields    googleapi.Field = "items(id,iCalUID,summary,description,location,start,end,transparency,status,eventType,visibility,attendees,attendeesOmitted,recurrence,recurringEventId,originalStartTime),timeZone,nextPageToken,nextSyncToken"
)

// Google implements Service on the Google Calendar API.
type Google struct {
	svc *calendar.Service
}

// NewGoogle builds a Calendar API client using a service account JSON key
// file. Scope is calendar (read/write).
func NewGoogle(ctx context.Context, credentialsPath string) (*Google, error) {
	srv, err := calendar.NewService(ctx,
		option.WithCredentialsFile(credentialsPath),
		option.WithScopes(calendar.CalendarScope),
	)
	if err != nil {
		return nil, fmt.Errorf("create calendar service: %w", err)
	}

	return &Google{svc: srv}, nil
}

// NewGoogleFromService wraps an already-built calendar service. Used by
// tests and callers with their own credential setup.
func NewGoogleFromService(svc *calendar.Service) *Google {
	return &Google{svc: svc}
}

func (c *Google) ListCalendars(ctx context.Context, req CalendarListRequest) (CalendarListResponse, error) {
	call := c.svc.CalendarList.List().Context(ctx).Fields(calendarListFields)
	if req.SyncToken != "" {
		call = call.SyncToken(req.SyncToken)
	}
	if req.PageToken != "" {
		call = call.PageToken(req.PageToken)
	}

	list, err := call.Do()
	if err != nil {
		return CalendarListResponse{}, mapError("list calendars", err)
	}

	res := CalendarListResponse{
		NextPageToken: list.NextPageToken,
		NextSyncToken: list.NextSyncToken,
	}
	for _, entry := range list.Items {
		res.Items = append(res.Items, model.Calendar{
			ID:          entry.Id,
			Summary:     entry.Summary,
			Description: entry.Description,
			Location:    entry.Location,
			Timezone:    entry.TimeZone,
			AccessRole:  model.AccessRole(entry.AccessRole),
			Selected:    entry.Selected,
			Primary:     entry.Primary,
		})
	}
	return res, nil
}

func (c *Google) ListEvents(ctx context.Context, req ListEventsRequest) (ListEventsResponse, error) {
	if err := req.Validate(); err != nil {
		return ListEventsResponse{}, err
	}

	call := c.svc.Events.List(req.CalendarID).Context(ctx).Fields(eventListFields)
	if req.SyncToken != "" {
		call = call.SyncToken(req.SyncToken)
	} else {
		if req.Search != "" {
			call = call.Q(req.Search)
		}
		if !req.MinStart.IsZero() {
			call = call.TimeMin(req.MinStart.Format(time.RFC3339))
		}
		if !req.MaxStart.IsZero() {
			call = call.TimeMax(req.MaxStart.Format(time.RFC3339))
		}
	}
	if req.PageToken != "" {
		call = call.PageToken(req.PageToken)
	}

	list, err := call.Do()
	if err != nil {
		return ListEventsResponse{}, mapError("list events", err)
	}

	res := ListEventsResponse{
		Timezone:      list.TimeZone,
		NextPageToken: list.NextPageToken,
		NextSyncToken: list.NextSyncToken,
	}
	for _, item := range list.Items {
		ev, err := toModelEvent(item)
		if err != nil {
			return ListEventsResponse{}, err
		}
		res.Items = append(res.Items, ev)
	}
	return res, nil
}

func (c *Google) GetCalendar(ctx context.Context, calendarID string) (model.CalendarBasic, error) {
	cal, err := c.svc.Calendars.Get(calendarID).Context(ctx).Do()
	if err != nil {
		return model.CalendarBasic{}, mapError("get calendar "+calendarID, err)
	}
	return model.CalendarBasic{
		ID:          cal.Id,
		Summary:     cal.Summary,
		Description: cal.Description,
		Location:    cal.Location,
		Timezone:    cal.TimeZone,
	}, nil
}

func (c *Google) CreateEvent(ctx context.Context, calendarID string, ev model.Event) (model.Event, error) {
	payload, err := toAPIEvent(ev)
	if err != nil {
		return model.Event{}, err
	}

	created, err := c.svc.Events.Insert(calendarID, payload).Context(ctx).Do()
	if err != nil {
		return model.Event{}, mapError("insert event", err)
	}
	return toModelEvent(created)
}

func (c *Google) PatchEvent(ctx context.Context, calendarID, eventID string, patch EventPatch) (model.Event, error) {
	payload := &calendar.Event{}
	if patch.Status != nil {
		payload.Status = string(*patch.Status)
		payload.ForceSendFields = append(payload.ForceSendFields, "Status")
	}
	if patch.Recurrence != nil {
		payload.Recurrence = *patch.Recurrence
		payload.ForceSendFields = append(payload.ForceSendFields, "Recurrence")
	}

	patched, err := c.svc.Events.Patch(calendarID, eventID, payload).Context(ctx).Do()
	if err != nil {
		return model.Event{}, mapError("patch event "+eventID, err)
	}
	return toModelEvent(patched)
}

func (c *Google) DeleteEvent(ctx context.Context, calendarID, eventID string) error {
	if err := c.svc.Events.Delete(calendarID, eventID).Context(ctx).Do(); err != nil {
		return mapError("delete event "+eventID, err)
	}
	return nil
}

// toModelEvent round-trips the generated struct through its wire form so
// event parsing and repair live in one place, the model package.
func toModelEvent(item *calendar.Event) (model.Event, error) {
	data, err := item.MarshalJSON()
	if err != nil {
		return model.Event{}, fmt.Errorf("marshal event %s: %w", item.Id, err)
	}
	ev, err := model.ParseEvent(data)
	if err != nil {
		return model.Event{}, fmt.Errorf("parse event %s: %w", item.Id, err)
	}
	return ev, nil
}

func toAPIEvent(ev model.Event) (*calendar.Event, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	var out calendar.Event
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("convert event to api form: %w", err)
	}
	return &out, nil
}

func mapError(op string, err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusUnauthorized:
			return fmt.Errorf("%s: %w: %s", op, ErrAuth, apiErr.Message)
		case http.StatusForbidden:
			return fmt.Errorf("%s: %w: %s", op, ErrForbidden, apiErr.Message)
		case http.StatusGone:
			return fmt.Errorf("%s: %w", op, ErrSyncTokenInvalid)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
