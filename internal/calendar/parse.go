package calendar

import (
	"bytes"
	"errors"
	"time"

	ical "github.com/arran4/golang-ical"

	"github.com/teemow/duety/internal/sync"
)

var errEmptyFeed = errors.New("empty feed")

// Parse extracts events from an ICS payload. VEVENTs without a UID or a
// SUMMARY are skipped; the first occurrence of a repeated UID is kept by
// the planner, not here.
func Parse(body []byte) ([]sync.Event, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, &ParseError{Err: errEmptyFeed}
	}

	// Some feeds put properties between components; keep them instead of
	// rejecting the whole feed.
	cal, err := ical.ParseCalendarWithOptions(bytes.NewReader(body),
		ical.WithUnknownPropertyHandler(ical.AcceptUnknownPropertyHandler))
	if err != nil {
		return nil, &ParseError{Err: err}
	}

	vevents := cal.Events()
	events := make([]sync.Event, 0, len(vevents))
	for _, ve := range vevents {
		ev, ok := eventFromVEvent(ve)
		if !ok {
			continue
		}
		events = append(events, ev)
	}
	return events, nil
}

func eventFromVEvent(ve *ical.VEvent) (sync.Event, bool) {
	ev := sync.Event{
		UID:         propertyValue(ve, ical.ComponentPropertyUniqueId),
		Summary:     propertyValue(ve, ical.ComponentPropertySummary),
		Description: propertyValue(ve, ical.ComponentPropertyDescription),
	}
	if ev.UID == "" || ev.Summary == "" {
		return sync.Event{}, false
	}
	ev.Due = dueDate(ve)
	return ev, true
}

func propertyValue(ve *ical.VEvent, prop ical.ComponentProperty) string {
	p := ve.GetProperty(prop)
	if p == nil {
		return ""
	}
	return p.Value
}

// dueDate is DTEND, falling back to DTSTART. Unparseable values count as
// absent.
func dueDate(ve *ical.VEvent) *time.Time {
	if t, err := ve.GetEndAt(); err == nil && !t.IsZero() {
		return &t
	}
	if t, err := ve.GetStartAt(); err == nil && !t.IsZero() {
		return &t
	}
	return nil
}
