package planner

import (
	"errors"
	"fmt"
	"time"

	"smartzone/internal/store"
)

var (
	// ErrInvalidTimezone means the event's IANA timezone id cannot be
	// resolved on this host.
	ErrInvalidTimezone = errors.New("invalid timezone")

	ErrInvalidWeekday = errors.New("weekday must be 1 (Monday) through 7 (Sunday)")
	ErrInvalidMinutes = errors.New("start minutes must be in [0, 1440)")
	ErrInvalidLead    = errors.New("reminder lead must be >= 0 minutes")
)

// isoWeekday maps Go's Sunday-based weekday to ISO numbering (1 = Monday).
func isoWeekday(d time.Weekday) int {
	if d == time.Sunday {
		return 7
	}
	return int(d)
}

// ValidateEvent checks the recurrence fields of ev. The timezone must be a
// resolvable IANA identifier.
func ValidateEvent(ev store.PlannerEvent) error {
	if ev.Weekday < 1 || ev.Weekday > 7 {
		return fmt.Errorf("%w: got %d", ErrInvalidWeekday, ev.Weekday)
	}
	if ev.StartMinutes < 0 || ev.StartMinutes >= 24*60 {
		return fmt.Errorf("%w: got %d", ErrInvalidMinutes, ev.StartMinutes)
	}
	if ev.ReminderMinutesBefore < 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidLead, ev.ReminderMinutesBefore)
	}
	if _, err := time.LoadLocation(ev.Timezone); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidTimezone, ev.Timezone)
	}
	return nil
}

// NextOccurrence computes the next instant ev occurs, evaluated at now.
//
// The event's wall-clock time is resolved in its own timezone. If today (in
// that zone) is the event's weekday and the local time is still strictly
// before the event's time-of-day, the occurrence is today; otherwise the
// date advances day by day, wrapping the week, until the weekday matches.
// The result is therefore always strictly in the future and at most 7 days
// out. At the exact boundary instant (local time equals the event time) the
// occurrence counts as already passed and lands a full week ahead.
func NextOccurrence(ev store.PlannerEvent, now time.Time) (time.Time, error) {
	loc, err := time.LoadLocation(ev.Timezone)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidTimezone, ev.Timezone)
	}

	local := now.In(loc)
	hour := ev.StartMinutes / 60
	minute := ev.StartMinutes % 60

	year, month, day := local.Date()
	todayAt := time.Date(year, month, day, hour, minute, 0, 0, loc)

	if isoWeekday(local.Weekday()) == ev.Weekday && local.Before(todayAt) {
		return todayAt, nil
	}

	date := todayAt
	for {
		// AddDate walks calendar days, so DST transitions cannot skew the
		// wall-clock time of the result.
		date = date.AddDate(0, 0, 1)
		if isoWeekday(date.Weekday()) == ev.Weekday {
			return date, nil
		}
	}
}

// ReminderFireTime derives the reminder instant from an occurrence: exactly
// ReminderMinutesBefore minutes earlier. It may be in the past when the lead
// exceeds the time remaining; the trigger service fires such armings asap.
func ReminderFireTime(ev store.PlannerEvent, occurrence time.Time) time.Time {
	return occurrence.Add(-time.Duration(ev.ReminderMinutesBefore) * time.Minute)
}

// ReminderToken derives the trigger token for an event id. Deterministic, so
// re-scheduling an event always addresses the same armed trigger.
func ReminderToken(eventID string) string {
	return "planner:" + eventID
}
