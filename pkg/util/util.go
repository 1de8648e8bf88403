package util

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/harrisonrobin/lwtt/pkg/model"
	"google.golang.org/api/calendar/v3"
)

// Private extended properties that tie a calendar event to the task and
// day it was published for.
const (
	EventIDProperty  = "lwtt_id"
	EventDayProperty = "lwtt_day"

	DayLayout = "2006-01-02"
)

// WorkdayStart is when published timesheet events begin on their day.
const WorkdayStart = 9 * time.Hour

// ErrBadHoursMinutes reports input that is not in <hours>:<minutes> form.
var ErrBadHoursMinutes = errors.New("please enter a time in '<hours>:<minutes>' format, e.g. '1:16'")

var hoursMinutesRegex = regexp.MustCompile(`^(\d+):(\d+)$`)

// ParseHoursMinutes parses "H:MM" (e.g. "1:16") into a duration. Minutes
// may exceed 59; "0:90" is an hour and a half.
func ParseHoursMinutes(s string) (time.Duration, error) {
	matches := hoursMinutesRegex.FindStringSubmatch(strings.TrimSpace(s))
	if matches == nil {
		return 0, fmt.Errorf("%w: got %q", ErrBadHoursMinutes, s)
	}
	hours, err := strconv.ParseInt(matches[1], 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: hours %q: %v", ErrBadHoursMinutes, matches[1], err)
	}
	minutes, err := strconv.ParseInt(matches[2], 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: minutes %q: %v", ErrBadHoursMinutes, matches[2], err)
	}
	total := hours*60 + minutes
	if total > maxMinutes {
		return 0, fmt.Errorf("%w: %q is too long", ErrBadHoursMinutes, s)
	}
	return time.Duration(total) * time.Minute, nil
}

// maxMinutes is the longest duration, in minutes, a time.Duration holds.
const maxMinutes = math.MaxInt64 / int64(time.Minute)

// FormatHoursMinutes renders whole minutes of d as "H:MM".
func FormatHoursMinutes(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	mins := int64(d / time.Minute)
	return fmt.Sprintf("%d:%02d", mins/60, mins%60)
}

// FormatPrice renders a price truncated to cents with a '.' separator,
// independent of locale.
func FormatPrice(p float64) string {
	if p < 0 || math.IsNaN(p) {
		p = 0
	}
	// the epsilon absorbs binary error such as 0.29*100 = 28.999...
	cents := math.Floor(p*100 + 1e-9)
	return strconv.FormatFloat(cents/100, 'f', 2, 64)
}

// EventNeedsUpdate returns a patch event if the fields shared between a
// published task and its existing calendar event differ, or nil.
func EventNeedsUpdate(existingEvent *calendar.Event, targetEvent *calendar.Event) (*calendar.Event, error) {
	patch := &calendar.Event{}
	needsUpdate := false

	if existingEvent.Summary != targetEvent.Summary {
		patch.Summary = targetEvent.Summary
		needsUpdate = true
	}
	if existingEvent.Description != targetEvent.Description {
		patch.Description = targetEvent.Description
		needsUpdate = true
	}
	if targetEvent.ColorId != "" && existingEvent.ColorId != targetEvent.ColorId {
		patch.ColorId = targetEvent.ColorId
		needsUpdate = true
	}

	if existingEvent.Start == nil || existingEvent.End == nil {
		patch.Start = targetEvent.Start
		patch.End = targetEvent.End
		return patch, nil
	}
	existingStartTime, err := time.Parse(time.RFC3339, existingEvent.Start.DateTime)
	if err != nil {
		return nil, err
	}
	targetStartTime, err := time.Parse(time.RFC3339, targetEvent.Start.DateTime)
	if err != nil {
		return nil, err
	}
	existingEndTime, err := time.Parse(time.RFC3339, existingEvent.End.DateTime)
	if err != nil {
		return nil, err
	}
	targetEndTime, err := time.Parse(time.RFC3339, targetEvent.End.DateTime)
	if err != nil {
		return nil, err
	}
	if !existingStartTime.Equal(targetStartTime) || !existingEndTime.Equal(targetEndTime) {
		patch.Start = targetEvent.Start
		patch.End = targetEvent.End
		needsUpdate = true
	}

	if needsUpdate {
		return patch, nil
	}
	return nil, nil
}

// ConvertRecordToCalendarEvent builds the timesheet event for one task on
// day: it starts at WorkdayStart in day's location and lasts as long as
// the task's consumption.
func ConvertRecordToCalendarEvent(rec model.Record, day time.Time) (*calendar.Event, error) {
	if rec.Consumption < time.Minute {
		return nil, fmt.Errorf("task %d has less than a minute tracked", rec.ID)
	}

	y, m, d := day.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, day.Location()).Add(WorkdayStart)
	end := start.Add(rec.Consumption.Truncate(time.Minute))
	price := rec.Rate * rec.Consumption.Hours()

	var descBuilder strings.Builder
	descBuilder.WriteString(fmt.Sprintf("Task: %s\n", rec.Name))
	descBuilder.WriteString(fmt.Sprintf("ID: %d\n", rec.ID))
	descBuilder.WriteString("\nAccounting:\n")
	descBuilder.WriteString(fmt.Sprintf("• spent: %s\n", FormatHoursMinutes(rec.Consumption)))
	descBuilder.WriteString(fmt.Sprintf("• rate: %s/h\n", FormatPrice(rec.Rate)))
	descBuilder.WriteString(fmt.Sprintf("• total: %s\n", FormatPrice(price)))

	event := &calendar.Event{
		Summary: fmt.Sprintf("%s (%s)", rec.Name, FormatHoursMinutes(rec.Consumption)),
		Start: &calendar.EventDateTime{
			DateTime: start.UTC().Format(time.RFC3339),
		},
		End: &calendar.EventDateTime{
			DateTime: end.UTC().Format(time.RFC3339),
		},
		Description: descBuilder.String(),
		ExtendedProperties: &calendar.EventExtendedProperties{
			Private: map[string]string{
				EventIDProperty:  strconv.Itoa(rec.ID),
				EventDayProperty: start.Format(DayLayout),
			},
		},
	}
	return event, nil
}
