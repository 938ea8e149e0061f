package calendar

import (
	"bytes"
	"fmt"
	"time"

	ics "github.com/arran4/golang-ical"

	"github.com/TaiJP119/vet-vetconnect-some/internal/domain/entity"
)

const productID = "-//Event Reminders//EN"

// ExportEventsToICS renders events as an iCalendar file. Each event carries a display
// alarm that fires when it enters the reminder window, so calendar apps remind
// at the same moment the in-app reminder appears.
func ExportEventsToICS(events []entity.Event, window time.Duration, now time.Time) ([]byte, error) {
	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId(productID)
	cal.SetVersion("2.0")
	cal.SetCalscale("GREGORIAN")

	for _, event := range events {
		e := cal.AddEvent(fmt.Sprintf("%s@event-reminders", event.ID))
		e.SetDtStampTime(now)
		e.SetCreatedTime(event.CreatedAt)
		e.SetModifiedAt(event.UpdatedAt)
		e.SetStartAt(event.Date)
		e.SetEndAt(event.Date.Add(time.Hour))
		e.SetSummary(event.Title)
		e.SetStatus(ics.ObjectStatusConfirmed)
		e.SetTimeTransparency(ics.TransparencyOpaque)

		alarm := e.AddAlarm()
		alarm.SetAction(ics.ActionDisplay)
		alarm.SetTrigger(alarmTrigger(window))
		alarm.SetDescription(fmt.Sprintf("%s: %s", entity.ReminderTitle, event.Title))
	}

	var buf bytes.Buffer
	if err := cal.SerializeTo(&buf); err != nil {
		return nil, fmt.Errorf("error serializing calendar: %w", err)
	}
	return buf.Bytes(), nil
}

// alarmTrigger formats a negative RFC 5545 duration, e.g. 24h -> -PT24H.
func alarmTrigger(window time.Duration) string {
	window = window.Round(time.Minute)
	hours := int(window / time.Hour)
	minutes := int((window % time.Hour) / time.Minute)
	switch {
	case minutes == 0:
		return fmt.Sprintf("-PT%dH", hours)
	case hours == 0:
		return fmt.Sprintf("-PT%dM", minutes)
	default:
		return fmt.Sprintf("-PT%dH%dM", hours, minutes)
	}
}
