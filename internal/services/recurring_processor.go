package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"finsync/internal/core"
)

// TemplateStore enumerates recurring templates and records materialization
// progress. Implemented by the storage layer.
type TemplateStore interface {
	ListRecurringTemplates(ctx context.Context) ([]core.RecurringTemplate, error)
	AdvanceLastMaterialized(ctx context.Context, templateID string, date time.Time) error
}

// TransactionCreator persists a new transaction. Implemented by
// TransactionService so materialized occurrences flow through the same
// create path (and event fan-out) as user-entered transactions.
type TransactionCreator interface {
	CreateTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error)
}

// ProcessResult reports the outcome of one processor run. Failures are
// collected per template, never thrown: a batch run partially succeeds.
type ProcessResult struct {
	Processed int
	Errors    []error
}

// RecurringProcessor materializes concrete transactions from recurring
// templates that are due as of a given time.
type RecurringProcessor struct {
	store   TemplateStore
	creator TransactionCreator
}

func NewRecurringProcessor(store TemplateStore, creator TransactionCreator) *RecurringProcessor {
	return &RecurringProcessor{store: store, creator: creator}
}

// ProcessDue checks every recurring template and materializes one occurrence
// for each that is due. Templates are independent: one failure never blocks
// the rest, and a failed template keeps its last materialized date so the
// same occurrence is retried on the next run.
func (p *RecurringProcessor) ProcessDue(ctx context.Context, now time.Time) (ProcessResult, error) {
	var result ProcessResult

	if p.store == nil || p.creator == nil {
		return result, fmt.Errorf("processor not properly initialized")
	}

	templates, err := p.store.ListRecurringTemplates(ctx)
	if err != nil {
		return result, fmt.Errorf("list recurring templates: %w", err)
	}

	slog.InfoContext(ctx, "Processing recurring templates",
		"total", len(templates),
		"processing_date", now.Format("2006-01-02"))

	for _, tmpl := range templates {
		if err := p.processTemplate(ctx, tmpl, now); err != nil {
			if errors.Is(err, errNotDue) {
				continue
			}
			result.Errors = append(result.Errors, fmt.Errorf("template %s: %w", tmpl.ID, err))
			continue
		}
		result.Processed++
	}

	slog.InfoContext(ctx, "Recurring template processing complete",
		"processed", result.Processed,
		"failed", len(result.Errors),
		"total_checked", len(templates))

	return result, nil
}

// errNotDue marks templates skipped without an occurrence owed.
var errNotDue = errors.New("not due")

func (p *RecurringProcessor) processTemplate(ctx context.Context, tmpl core.RecurringTemplate, now time.Time) error {
	due, err := IsDue(tmpl, now)
	if err != nil {
		return fmt.Errorf("dueness check: %w", err)
	}
	if !due {
		return errNotDue
	}

	// Retirement is checked before materialization: a template whose next
	// occurrence falls past its end date is never materialized again.
	retired, err := Retired(tmpl)
	if err != nil {
		return fmt.Errorf("retirement check: %w", err)
	}
	if retired {
		slog.DebugContext(ctx, "Recurring template retired",
			"template_id", tmpl.ID,
			"end_date", tmpl.EndDate.Format("2006-01-02"))
		return errNotDue
	}

	next, err := NextOccurrence(tmpl)
	if err != nil {
		return fmt.Errorf("next occurrence: %w", err)
	}

	occurrence := core.Transaction{
		Amount:           tmpl.Amount,
		Type:             tmpl.Type,
		Category:         tmpl.Category,
		Description:      tmpl.Description,
		AccountID:        tmpl.AccountID,
		Date:             next,
		ParentTemplateID: tmpl.ID,
		OccurrenceKey:    OccurrenceKey(tmpl.ID, next),
	}

	created, err := p.creator.CreateTransaction(ctx, occurrence)
	switch {
	case errors.Is(err, core.ErrDuplicateOccurrence):
		// A previous or concurrent run already booked this occurrence but
		// did not advance the template. Advancing below is the recovery.
		slog.WarnContext(ctx, "Occurrence already materialized, advancing template",
			"template_id", tmpl.ID,
			"occurrence_key", occurrence.OccurrenceKey)
	case err != nil:
		// Last materialized date stays unchanged so the same occurrence is
		// retried on the next run.
		return fmt.Errorf("materialize occurrence: %w", err)
	default:
		slog.InfoContext(ctx, "Materialized transaction from recurring template",
			"template_id", tmpl.ID,
			"transaction_id", created.ID,
			"description", tmpl.Description,
			"amount_cents", tmpl.Amount.Cents,
			"occurrence_date", next.Format("2006-01-02"))
	}

	if err := p.store.AdvanceLastMaterialized(ctx, tmpl.ID, next); err != nil {
		// The occurrence exists; the unique occurrence key shields the next
		// run from double-booking while this advance is retried.
		return fmt.Errorf("advance last materialized: %w", err)
	}

	return nil
}

// OccurrenceKey is the deterministic identity of one occurrence: a unique
// index on it at the persistence layer prevents double materialization
// across duplicate or concurrent processor runs.
func OccurrenceKey(templateID string, occurrenceDate time.Time) string {
	return templateID + "@" + occurrenceDate.Format("2006-01-02")
}
