package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"calmirror/internal/models"

	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// CalendarClient provides a client for interacting with the Google Calendar API.
type CalendarClient struct {
	service *calendar.Service
	logger  *slog.Logger
}

// NewClient creates a new Google Calendar client authorized with the token
// stored in tokenFile by the auth command.
func NewClient(ctx context.Context, logger *slog.Logger, clientID, clientSecret, tokenFile string) (*CalendarClient, error) {
	config, err := getOAuthConfig(clientID, clientSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to get OAuth config: %w", err)
	}

	token, err := tokenFromFile(tokenFile)
	if err != nil {
		return nil, fmt.Errorf("could not load token %s: %w. Please run the 'auth' command first", tokenFile, err)
	}

	client := config.Client(ctx, token)
	return NewClientWithOptions(ctx, logger, option.WithHTTPClient(client))
}

// NewClientWithOptions creates a client from raw API options.
func NewClientWithOptions(ctx context.Context, logger *slog.Logger, opts ...option.ClientOption) (*CalendarClient, error) {
	service, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar service: %w", err)
	}
	return &CalendarClient{service: service, logger: logger}, nil
}

// ListFull fetches one page of a full listing of the calendar.
func (c *CalendarClient) ListFull(ctx context.Context, calendarID, pageToken string) (*models.EventPage, error) {
	call := c.service.Events.List(calendarID).Context(ctx)
	if pageToken != "" {
		call = call.PageToken(pageToken)
	}

	events, err := call.Do()
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}

	c.logger.Debug("Listed events page", "calendarID", calendarID, "count", len(events.Items), "hasNextPage", events.NextPageToken != "")
	return toPage(events)
}

// ListChanged fetches every event changed since syncToken, following
// pagination until the page that carries the next sync token.
func (c *CalendarClient) ListChanged(ctx context.Context, calendarID, syncToken string) (*models.EventPage, error) {
	result := &models.EventPage{}
	pageToken := ""

	for {
		call := c.service.Events.List(calendarID).SyncToken(syncToken).Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		events, err := call.Do()
		if err != nil {
			if isStatus(err, http.StatusGone) {
				return nil, fmt.Errorf("failed to list changed events: %w", models.ErrCursorExpired)
			}
			return nil, fmt.Errorf("failed to list changed events: %w", err)
		}

		page, err := toPage(events)
		if err != nil {
			return nil, err
		}
		result.Items = append(result.Items, page.Items...)

		if page.NextPageToken == "" || page.NextPageToken == pageToken {
			result.NextSyncToken = page.NextSyncToken
			break
		}
		pageToken = page.NextPageToken
	}

	c.logger.Info("Fetched changed events from Google Calendar", "count", len(result.Items), "calendarID", calendarID)
	return result, nil
}

// SubmitUpdate replaces the event. An If-Match precondition failure is
// reported as models.ErrUpdateConflict.
func (c *CalendarClient) SubmitUpdate(ctx context.Context, calendarID, eventID string, event *models.Event, opts models.UpdateOptions) (*models.Event, error) {
	body, err := fromModel(event)
	if err != nil {
		return nil, err
	}

	call := c.service.Events.Update(calendarID, eventID, body).Context(ctx)
	if opts.SendUpdates != "" {
		call = call.SendUpdates(opts.SendUpdates)
	}
	if opts.IfMatch != "" {
		call.Header().Set("If-Match", opts.IfMatch)
	}

	updated, err := call.Do()
	if err != nil {
		if isStatus(err, http.StatusPreconditionFailed) {
			return nil, fmt.Errorf("failed to update event %s: %w", eventID, models.ErrUpdateConflict)
		}
		return nil, fmt.Errorf("failed to update event %s: %w", eventID, err)
	}

	return toModel(updated)
}

// Calendars lists the IDs of all calendars of the authenticated account.
func (c *CalendarClient) Calendars(ctx context.Context) ([]string, error) {
	list, err := c.service.CalendarList.List().Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to list calendars: %w", err)
	}

	var calendarIDs []string
	for _, item := range list.Items {
		calendarIDs = append(calendarIDs, item.Id)
	}
	return calendarIDs, nil
}

func toPage(events *calendar.Events) (*models.EventPage, error) {
	page := &models.EventPage{
		NextPageToken: events.NextPageToken,
		NextSyncToken: events.NextSyncToken,
	}
	for _, item := range events.Items {
		ev, err := toModel(item)
		if err != nil {
			return nil, err
		}
		page.Items = append(page.Items, ev)
	}
	return page, nil
}

// toModel converts an API event to the internal model through its JSON form,
// which keeps every field the API returned.
func toModel(item *calendar.Event) (*models.Event, error) {
	b, err := json.Marshal(item)
	if err != nil {
		return nil, fmt.Errorf("failed to encode event %s: %w", item.Id, err)
	}
	ev := &models.Event{}
	if err := json.Unmarshal(b, ev); err != nil {
		return nil, fmt.Errorf("failed to decode event %s: %w", item.Id, err)
	}
	return ev, nil
}

// fromModel converts the internal model back to an API event. Attendees with
// an explicit optional=false keep the field on the wire.
func fromModel(ev *models.Event) (*calendar.Event, error) {
	b, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("failed to encode event %s: %w", ev.ID, err)
	}
	out := &calendar.Event{}
	if err := json.Unmarshal(b, out); err != nil {
		return nil, fmt.Errorf("failed to decode event %s: %w", ev.ID, err)
	}
	for i, a := range ev.Attendees {
		if i < len(out.Attendees) && a.Optional != nil && !*a.Optional {
			out.Attendees[i].ForceSendFields = append(out.Attendees[i].ForceSendFields, "Optional")
		}
	}
	return out, nil
}

func isStatus(err error, code int) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == code
}
