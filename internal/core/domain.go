package core

import (
	"errors"
	"strings"
	"time"
)

const (
	Income  TransactionType = "income"
	Expense TransactionType = "expense"
)

const (
	WeeklyInterval  RecurrenceInterval = "weekly"
	MonthlyInterval RecurrenceInterval = "monthly"
	YearlyInterval  RecurrenceInterval = "yearly"
)

type (
	TransactionType    string
	RecurrenceInterval string

	// Transaction is a single financial movement. Amount is always positive;
	// direction is carried by Type.
	Transaction struct {
		ID          string
		Amount      Money
		Type        TransactionType
		Category    string
		Description string
		Notes       string
		Date        time.Time
		AccountID   string
		ReceiptID   string

		// Set only on transactions materialized from a recurring template.
		ParentTemplateID string
		OccurrenceKey    string

		CreatedAt time.Time
		UpdatedAt time.Time
	}

	// RecurringTemplate is a transaction blueprint plus recurrence metadata.
	// LastMaterialized advances each time an occurrence is created; the
	// template itself is never mutated by the recurrence math.
	RecurringTemplate struct {
		ID          string
		Amount      Money
		Type        TransactionType
		Category    string
		Description string
		AccountID   string

		Interval         RecurrenceInterval
		AnchorDay        int          // day of month, monthly/yearly templates
		AnchorWeekday    time.Weekday // weekly templates
		EndDate          time.Time    // zero means no end
		LastMaterialized time.Time    // defaults to template creation date

		CreatedAt time.Time
	}
)

var (
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrInvalidType      = errors.New("invalid transaction type")
	ErrInvalidInterval  = errors.New("invalid recurrence interval")
	ErrEmptyCategory    = errors.New("empty category")
	ErrEmptyDescription = errors.New("empty description")
	ErrZeroDate         = errors.New("date cannot be zero")

	// ErrDuplicateOccurrence reports that a transaction with the same
	// occurrence key already exists: the occurrence was materialized by an
	// earlier or concurrent processor run.
	ErrDuplicateOccurrence = errors.New("occurrence already materialized")

	// ErrTemplateNotFound reports that no live recurring template matches
	// the given id.
	ErrTemplateNotFound = errors.New("recurring template not found")
)

func (t TransactionType) Validate() error {
	switch t {
	case Income, Expense:
		return nil
	default:
		return ErrInvalidType
	}
}

func (i RecurrenceInterval) Validate() error {
	switch i {
	case WeeklyInterval, MonthlyInterval, YearlyInterval:
		return nil
	default:
		return ErrInvalidInterval
	}
}

func (t Transaction) Validate() error {
	if err := t.Amount.Validate(); err != nil {
		return err
	}
	if err := t.Type.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(t.Category) == "" {
		return ErrEmptyCategory
	}
	if len(strings.TrimSpace(t.Description)) == 0 {
		return ErrEmptyDescription
	}
	if len(t.Description) > 200 {
		return errors.New("description too long (max 200 characters)")
	}
	if t.Date.IsZero() {
		return ErrZeroDate
	}
	return nil
}

func (rt RecurringTemplate) Validate() error {
	if err := rt.Amount.Validate(); err != nil {
		return err
	}
	if err := rt.Type.Validate(); err != nil {
		return err
	}
	if err := rt.Interval.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(rt.Category) == "" {
		return ErrEmptyCategory
	}
	if len(strings.TrimSpace(rt.Description)) == 0 {
		return ErrEmptyDescription
	}
	if rt.Interval != WeeklyInterval {
		if rt.AnchorDay < 1 || rt.AnchorDay > 31 {
			return errors.New("anchor day must be between 1 and 31")
		}
	}
	if !rt.EndDate.IsZero() && !rt.LastMaterialized.IsZero() && rt.EndDate.Before(rt.LastMaterialized) {
		return errors.New("end date must not precede last materialized date")
	}
	return nil
}
