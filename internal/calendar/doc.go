// Package calendar reads deadline-bearing events from iCalendar (ICS)
// feeds.
//
// A Fetcher downloads a feed over HTTP and parses its VEVENT components
// into sync.Event values. The due date of an event is its DTEND, or its
// DTSTART when the event has no end. Events without a UID or a SUMMARY
// are dropped.
//
// Example usage:
//
//	f := calendar.NewFetcher(calendar.Options{Logger: logger})
//	events, err := f.FetchEvents(ctx, "https://example.com/school.ics")
//	if err != nil {
//	    return err
//	}
package calendar
