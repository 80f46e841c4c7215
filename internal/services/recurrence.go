// Package services provides business logic and orchestration services.
//
// This file implements the Strategy Pattern for recurring-template dueness
// and next-occurrence computation. Each interval (weekly, monthly, yearly)
// has its own rule; the two calendar granularities (exact day count for
// weekly, calendar bucket for monthly/yearly) are deliberately kept apart.
package services

import (
	"fmt"
	"time"

	"finsync/internal/core"
)

// IntervalRule is the strategy interface for one recurrence interval.
// Implementations are pure: they never mutate the template.
type IntervalRule interface {
	// IsDue reports whether a new occurrence is owed given the last
	// materialized date and the current time.
	IsDue(lastMaterialized, now time.Time) bool

	// Next returns the date of the next occurrence after lastMaterialized.
	// anchorDay is the template's day-of-month anchor (0 when unset).
	Next(lastMaterialized time.Time, anchorDay int) time.Time
}

// WeeklyRule counts elapsed days: due once 7 full days have passed.
type WeeklyRule struct{}

func (WeeklyRule) IsDue(lastMaterialized, now time.Time) bool {
	return now.Sub(lastMaterialized).Hours()/24 >= 7
}

func (WeeklyRule) Next(lastMaterialized time.Time, _ int) time.Time {
	return lastMaterialized.AddDate(0, 0, 7)
}

// MonthlyRule works on calendar buckets: due at most once per calendar
// month, regardless of day-of-month granularity.
type MonthlyRule struct{}

func (MonthlyRule) IsDue(lastMaterialized, now time.Time) bool {
	if now.Year() != lastMaterialized.Year() {
		return now.Year() > lastMaterialized.Year()
	}
	return now.Month() > lastMaterialized.Month()
}

func (MonthlyRule) Next(lastMaterialized time.Time, anchorDay int) time.Time {
	year, month := lastMaterialized.Year(), lastMaterialized.Month()+1
	day := lastMaterialized.Day()
	if anchorDay > 0 {
		day = anchorDay
	}
	// Clamp to the last valid day so Jan 31 + 1 month lands on Feb 28/29,
	// never overflows into March.
	if last := daysInMonth(year, month); day > last {
		day = last
	}
	return time.Date(year, month, day,
		lastMaterialized.Hour(), lastMaterialized.Minute(), lastMaterialized.Second(),
		lastMaterialized.Nanosecond(), lastMaterialized.Location())
}

// YearlyRule works on calendar years: due once the year rolls over.
type YearlyRule struct{}

func (YearlyRule) IsDue(lastMaterialized, now time.Time) bool {
	return now.Year() > lastMaterialized.Year()
}

func (YearlyRule) Next(lastMaterialized time.Time, anchorDay int) time.Time {
	year, month := lastMaterialized.Year()+1, lastMaterialized.Month()
	day := lastMaterialized.Day()
	if anchorDay > 0 {
		day = anchorDay
	}
	if last := daysInMonth(year, month); day > last {
		day = last
	}
	return time.Date(year, month, day,
		lastMaterialized.Hour(), lastMaterialized.Minute(), lastMaterialized.Second(),
		lastMaterialized.Nanosecond(), lastMaterialized.Location())
}

func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// intervalRules maps recurrence intervals to their rules.
var intervalRules = map[core.RecurrenceInterval]IntervalRule{
	core.WeeklyInterval:  WeeklyRule{},
	core.MonthlyInterval: MonthlyRule{},
	core.YearlyInterval:  YearlyRule{},
}

// GetIntervalRule returns the rule for a recurrence interval.
func GetIntervalRule(interval core.RecurrenceInterval) (IntervalRule, error) {
	rule, ok := intervalRules[interval]
	if !ok {
		return nil, fmt.Errorf("unknown recurrence interval: %s", interval)
	}
	return rule, nil
}

// IsDue reports whether the template owes a new occurrence as of now.
// Deterministic: identical inputs always agree.
func IsDue(tmpl core.RecurringTemplate, now time.Time) (bool, error) {
	rule, err := GetIntervalRule(tmpl.Interval)
	if err != nil {
		return false, err
	}
	return rule.IsDue(tmpl.LastMaterialized, now), nil
}

// NextOccurrence returns the date of the template's next occurrence,
// advancing the last materialized date by exactly one interval unit.
// Weekly occurrences stay pinned to the template's anchor weekday: a last
// materialized date that drifted off it (mid-week start, manual edit) rolls
// forward to the next anchor weekday instead of perpetuating the drift.
func NextOccurrence(tmpl core.RecurringTemplate) (time.Time, error) {
	rule, err := GetIntervalRule(tmpl.Interval)
	if err != nil {
		return time.Time{}, err
	}
	next := rule.Next(tmpl.LastMaterialized, tmpl.AnchorDay)
	if tmpl.Interval == core.WeeklyInterval {
		offset := (int(tmpl.AnchorWeekday) - int(next.Weekday()) + 7) % 7
		next = next.AddDate(0, 0, offset)
	}
	return next, nil
}

// Retired reports whether the template has run past its end date: the next
// occurrence falls after EndDate, so it must never be materialized again.
// Checked before materialization, not after.
func Retired(tmpl core.RecurringTemplate) (bool, error) {
	if tmpl.EndDate.IsZero() {
		return false, nil
	}
	next, err := NextOccurrence(tmpl)
	if err != nil {
		return false, err
	}
	return next.After(tmpl.EndDate), nil
}
