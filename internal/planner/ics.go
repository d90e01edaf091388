package planner

import (
	"context"
	"fmt"
	"time"

	ics "github.com/arran4/golang-ical"
)

var icsByDay = map[int]string{
	1: "MO", 2: "TU", 3: "WE", 4: "TH", 5: "FR", 6: "SA", 7: "SU",
}

// defaultEventLength pads exported events so calendar apps render a block
// instead of a zero-length marker. Events store no duration of their own.
const defaultEventLength = time.Hour

// ExportICS renders the current user's planner as an iCalendar document
// with one weekly-recurring VEVENT per planner event.
func (s *Service) ExportICS(ctx context.Context) (string, error) {
	evs, err := s.List(ctx)
	if err != nil {
		return "", err
	}

	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId("-//smartzone//planner//EN")

	now := s.now()
	for _, ev := range evs {
		occ, err := NextOccurrence(ev, now)
		if err != nil {
			return "", fmt.Errorf("event %s: %w", ev.ID, err)
		}
		e := cal.AddEvent(ev.ID)
		e.SetSummary(ev.Title)
		e.SetDtStampTime(now)
		e.SetStartAt(occ)
		e.SetEndAt(occ.Add(defaultEventLength))
		e.AddRrule("FREQ=WEEKLY;BYDAY=" + icsByDay[ev.Weekday])
	}
	return cal.Serialize(), nil
}
