package google

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/harrisonrobin/lwtt/pkg/colors"
	"github.com/harrisonrobin/lwtt/pkg/index"
	"github.com/harrisonrobin/lwtt/pkg/model"
	"github.com/harrisonrobin/lwtt/pkg/util"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
)

// CalendarClient publishes timesheet events to one Google Calendar.
type CalendarClient struct {
	srv        *calendar.Service
	calendarID string
	index      *index.EventIndex
	colors     *colors.ColorCache
	logger     *slog.Logger
}

// NewCalendarClient wraps an authenticated service. idx may be nil.
func NewCalendarClient(srv *calendar.Service, calendarID string, idx *index.EventIndex, logger *slog.Logger) *CalendarClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &CalendarClient{srv: srv, calendarID: calendarID, index: idx, logger: logger}
}

// SetColors makes published events carry a per-task color.
func (c *CalendarClient) SetColors(cache *colors.ColorCache) {
	c.colors = cache
}

// PublishTask creates or updates the event for rec on day. An event that
// already matches is left alone and returned as is.
func (c *CalendarClient) PublishTask(rec model.Record, day time.Time) (*calendar.Event, error) {
	event, err := util.ConvertRecordToCalendarEvent(rec, day)
	if err != nil {
		return nil, err
	}
	if c.colors != nil {
		event.ColorId = c.colors.ColorID(rec.ID)
	}
	dayKey := event.ExtendedProperties.Private[util.EventDayProperty]

	var existingEvent *calendar.Event
	if c.index != nil {
		if eventID := c.index.Get(rec.ID, dayKey); eventID != "" {
			existingEvent, err = c.srv.Events.Get(c.calendarID, eventID).Do()
			if err != nil || existingEvent.Status == "cancelled" {
				c.logger.Debug("indexed event unusable, searching", "task", rec.ID, "event", eventID, "err", err)
				existingEvent = nil
			}
		}
	}

	if existingEvent == nil {
		existingEvent, err = c.GetEventByTask(rec.ID, dayKey)
		if err != nil {
			return nil, fmt.Errorf("error searching for event: %w", err)
		}
	}

	if existingEvent != nil {
		patch, err := util.EventNeedsUpdate(existingEvent, event)
		if err != nil {
			return nil, fmt.Errorf("could not compare task %d with its calendar event: %w", rec.ID, err)
		}
		if c.index != nil {
			c.index.Set(rec.ID, dayKey, existingEvent.Id)
		}
		if patch == nil {
			return existingEvent, nil
		}
		return c.PatchEvent(existingEvent.Id, patch)
	}

	createdEvent, err := c.srv.Events.Insert(c.calendarID, event).Do()
	if err != nil {
		return nil, fmt.Errorf("unable to create event for task %d: %w", rec.ID, err)
	}
	if c.index != nil {
		c.index.Set(rec.ID, dayKey, createdEvent.Id)
	}
	return createdEvent, nil
}

// PatchEvent performs a partial update on an event.
func (c *CalendarClient) PatchEvent(eventID string, patch *calendar.Event) (*calendar.Event, error) {
	return c.srv.Events.Patch(c.calendarID, eventID, patch).Do()
}

// DeleteEvent deletes an event from the calendar. An event that is
// already gone counts as deleted.
func (c *CalendarClient) DeleteEvent(eventID string) error {
	err := c.srv.Events.Delete(c.calendarID, eventID).Do()
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && (apiErr.Code == http.StatusNotFound || apiErr.Code == http.StatusGone) {
		c.logger.Debug("event already deleted", "event", eventID)
		return nil
	}
	return err
}

// GetEventByTask finds the event published for a task on day by its
// private extended properties. It returns nil when there is none.
func (c *CalendarClient) GetEventByTask(taskID int, day string) (*calendar.Event, error) {
	events, err := c.srv.Events.List(c.calendarID).
		PrivateExtendedProperty(fmt.Sprintf("%s=%s", util.EventIDProperty, strconv.Itoa(taskID))).
		PrivateExtendedProperty(fmt.Sprintf("%s=%s", util.EventDayProperty, day)).
		Do()
	if err != nil {
		return nil, err
	}
	if len(events.Items) > 0 {
		return events.Items[0], nil
	}
	return nil, nil
}
