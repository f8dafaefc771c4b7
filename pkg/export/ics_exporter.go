package export

import (
	"fmt"
	"time"

	ics "github.com/arran4/golang-ical"
)

// CalendarEvent is one dated entry of an iCalendar export.
type CalendarEvent struct {
	UID         string
	Summary     string
	Description string
	Location    string
	Start       time.Time
	End         time.Time
}

// ICSExporter renders events into an iCalendar document.
type ICSExporter struct {
	name string
}

// NewICSExporter builds an exporter whose calendar carries the given display name.
func NewICSExporter(name string) *ICSExporter {
	return &ICSExporter{name: name}
}

// Render serialises the events. Events without a UID or with an end before their start are rejected.
func (e *ICSExporter) Render(events []CalendarEvent) ([]byte, error) {
	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	if e.name != "" {
		cal.SetName(e.name)
		cal.SetXWRCalName(e.name)
	}
	stamp := time.Now().UTC()
	for _, event := range events {
		if event.UID == "" {
			return nil, fmt.Errorf("calendar event requires a uid")
		}
		if event.End.Before(event.Start) {
			return nil, fmt.Errorf("calendar event %s ends before it starts", event.UID)
		}
		vevent := cal.AddEvent(event.UID)
		vevent.SetDtStampTime(stamp)
		vevent.SetSummary(event.Summary)
		if event.Description != "" {
			vevent.SetDescription(event.Description)
		}
		if event.Location != "" {
			vevent.SetLocation(event.Location)
		}
		vevent.SetStartAt(event.Start)
		vevent.SetEndAt(event.End)
	}
	return []byte(cal.Serialize()), nil
}
