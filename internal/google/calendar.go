package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"agendabot/internal/agenda"
	"agendabot/internal/models"

	"golang.org/x/oauth2"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// CalendarClient provides a client for interacting with the Google Calendar API.
type CalendarClient struct {
	service    *calendar.Service
	logger     *slog.Logger
	calendarID string
	location   *time.Location
}

// NewClient creates a new Google Calendar client on top of an authorized
// HTTP client. Day boundaries are computed in loc.
func NewClient(ctx context.Context, logger *slog.Logger, httpClient *http.Client, calendarID string, loc *time.Location, opts ...option.ClientOption) (*CalendarClient, error) {
	opts = append([]option.ClientOption{option.WithHTTPClient(httpClient)}, opts...)
	service, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar service: %w", err)
	}
	if loc == nil {
		loc = time.UTC
	}
	return &CalendarClient{service: service, logger: logger, calendarID: calendarID, location: loc}, nil
}

// TodayEvents fetches the events of the day containing ref, with recurring
// events expanded into instances and ordered by start time.
func (c *CalendarClient) TodayEvents(ctx context.Context, ref time.Time) ([]models.Event, error) {
	start, end := agenda.DayBounds(ref, c.location)
	c.logger.Debug("Fetching events", "calendarID", c.calendarID, "timeMin", start, "timeMax", end)

	var items []*calendar.Event
	err := c.service.Events.List(c.calendarID).
		ShowDeleted(false).
		SingleEvents(true).
		TimeMin(start.Format(time.RFC3339)).
		TimeMax(end.Format(time.RFC3339)).
		OrderBy("startTime").
		Pages(ctx, func(page *calendar.Events) error {
			items = append(items, page.Items...)
			return nil
		})
	if err != nil {
		if isAuthFailure(err) && !errors.Is(err, models.ErrAuth) {
			return nil, fmt.Errorf("%w: failed to retrieve events: %w", models.ErrAuth, err)
		}
		return nil, fmt.Errorf("failed to retrieve events: %w", err)
	}

	c.logger.Info("Successfully fetched events from Google Calendar", "count", len(items), "calendarID", c.calendarID)
	return c.toInternalEvents(items), nil
}

// toInternalEvents converts Google Calendar events to the internal Event model.
func (c *CalendarClient) toInternalEvents(googleEvents []*calendar.Event) []models.Event {
	events := make([]models.Event, 0, len(googleEvents))
	for _, item := range googleEvents {
		if item.Status == "cancelled" {
			continue
		}
		ev := models.Event{
			ID:       item.Id,
			Summary:  item.Summary,
			Location: item.Location,
			Source:   "google-" + c.calendarID,
		}
		if item.Start != nil {
			ev.Start = models.EventStart{Date: item.Start.Date, DateTime: item.Start.DateTime}
		} else {
			c.logger.Warn("Event has no start boundary", "id", item.Id, "title", item.Summary)
		}
		events = append(events, ev)
	}
	return events
}

// ListCalendars returns the IDs and names of every calendar the account can see.
func (c *CalendarClient) ListCalendars(ctx context.Context) ([]CalendarInfo, error) {
	var out []CalendarInfo
	err := c.service.CalendarList.List().Pages(ctx, func(list *calendar.CalendarList) error {
		for _, item := range list.Items {
			out = append(out, CalendarInfo{ID: item.Id, Name: item.Summary, Primary: item.Primary})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list calendars: %w", err)
	}
	return out, nil
}

// CalendarInfo describes a calendar visible to the account.
type CalendarInfo struct {
	ID      string
	Name    string
	Primary bool
}

// isAuthFailure reports whether err comes from the token endpoint or from
// the API rejecting the credential.
func isAuthFailure(err error) bool {
	var rerr *oauth2.RetrieveError
	if errors.As(err, &rerr) {
		return true
	}
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == http.StatusUnauthorized
}
