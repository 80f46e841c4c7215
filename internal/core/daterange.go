package core

import (
	"errors"
	"fmt"
	"time"
)

const (
	PeriodDay    Period = "day"
	PeriodWeek   Period = "week"
	PeriodMonth  Period = "month"
	PeriodCustom Period = "custom"
)

type (
	// Period is a symbolic range selection resolved into a concrete DateRange.
	Period string

	// DateRange is a concrete half-open interval [Start, End) in local time,
	// tagged with the period token it was resolved from.
	DateRange struct {
		Start  time.Time
		End    time.Time
		Period Period
	}
)

// ErrInvalidRange reports a custom range whose start is after its end.
// Callers must never silently swap the bounds.
var ErrInvalidRange = errors.New("invalid date range: start after end")

func (p Period) Validate() error {
	switch p {
	case PeriodDay, PeriodWeek, PeriodMonth, PeriodCustom:
		return nil
	default:
		return fmt.Errorf("unknown period %q", p)
	}
}

// Resolve maps a period token to the live range ending at now:
// day starts at local midnight, week at the most recent Sunday midnight,
// month at the first of the month. The custom token carries explicit bounds
// and cannot be resolved from a clock; use NewCustomRange instead.
func Resolve(p Period, now time.Time) (DateRange, error) {
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	switch p {
	case PeriodDay:
		return DateRange{Start: midnight, End: now, Period: PeriodDay}, nil
	case PeriodWeek:
		start := midnight.AddDate(0, 0, -int(now.Weekday()))
		return DateRange{Start: start, End: now, Period: PeriodWeek}, nil
	case PeriodMonth:
		start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
		return DateRange{Start: start, End: now, Period: PeriodMonth}, nil
	case PeriodCustom:
		return DateRange{}, fmt.Errorf("custom period requires explicit bounds: %w", ErrInvalidRange)
	default:
		return DateRange{}, fmt.Errorf("unknown period %q", p)
	}
}

// CalendarDay returns the full calendar-day bucket containing now,
// from local midnight to 23:59:59.999.
func CalendarDay(now time.Time) DateRange {
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	end := start.Add(24*time.Hour - time.Millisecond)
	return DateRange{Start: start, End: end, Period: PeriodDay}
}

// NewCustomRange builds a caller-supplied range, validating bound order.
func NewCustomRange(start, end time.Time) (DateRange, error) {
	if start.After(end) {
		return DateRange{}, ErrInvalidRange
	}
	return DateRange{Start: start, End: end, Period: PeriodCustom}, nil
}

// Previous returns the immediately-preceding window of identical length,
// used for trend comparison.
func (r DateRange) Previous() DateRange {
	span := r.End.Sub(r.Start)
	return DateRange{
		Start:  r.Start.Add(-span),
		End:    r.Start,
		Period: PeriodCustom,
	}
}

// Days returns the number of calendar days the range touches, never less
// than one. Used as the daily-average denominator.
func (r DateRange) Days() int {
	startDay := time.Date(r.Start.Year(), r.Start.Month(), r.Start.Day(), 0, 0, 0, 0, r.Start.Location())
	endDay := time.Date(r.End.Year(), r.End.Month(), r.End.Day(), 0, 0, 0, 0, r.End.Location())
	days := int(endDay.Sub(startDay).Hours()/24) + 1
	if days < 1 {
		return 1
	}
	return days
}

// Contains reports whether t falls inside the range. The end bound is
// inclusive so that live ranges ending at "now" cover the newest rows.
func (r DateRange) Contains(t time.Time) bool {
	return !t.Before(r.Start) && !t.After(r.End)
}
