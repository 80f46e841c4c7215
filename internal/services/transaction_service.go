package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"finsync/internal/core"
)

// TransactionStore is the persistence surface the service writes through.
type TransactionStore interface {
	InsertTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error)
	UpdateTransaction(ctx context.Context, tx core.Transaction) error
	SoftDeleteTransaction(ctx context.Context, id string) error
}

// EventPublisher fans out transaction lifecycle events. Nil-safe at the
// service level: a missing broker degrades to local-only operation.
type EventPublisher interface {
	PublishTransactionCreated(ctx context.Context, id string) error
	PublishTransactionDeleted(ctx context.Context, id string) error
}

// TransactionService persists transactions and publishes created/deleted
// events for downstream consumers (the export worker).
type TransactionService struct {
	store  TransactionStore
	events EventPublisher
}

func NewTransactionService(store TransactionStore, events EventPublisher) *TransactionService {
	return &TransactionService{store: store, events: events}
}

// CreateTransaction validates and saves a transaction locally, then
// publishes a created event. Publish failures are logged, not returned:
// the transaction is already durable.
func (s *TransactionService) CreateTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	now := time.Now()
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = now
	}
	tx.UpdatedAt = now

	if err := tx.Validate(); err != nil {
		return core.Transaction{}, fmt.Errorf("validate transaction: %w", err)
	}

	created, err := s.store.InsertTransaction(ctx, tx)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("save transaction: %w", err)
	}

	if s.events != nil {
		if err := s.events.PublishTransactionCreated(ctx, created.ID); err != nil {
			slog.ErrorContext(ctx, "Failed to publish transaction created event",
				"id", created.ID, "error", err)
		}
	}

	return created, nil
}

// UpdateTransaction applies the mutable fields (description, category,
// notes, amount, date) of tx to the stored row.
func (s *TransactionService) UpdateTransaction(ctx context.Context, tx core.Transaction) error {
	if err := tx.Amount.Validate(); err != nil {
		return err
	}
	tx.UpdatedAt = time.Now()
	if err := s.store.UpdateTransaction(ctx, tx); err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	return nil
}

// DeleteTransaction soft deletes a transaction and publishes a deleted event.
func (s *TransactionService) DeleteTransaction(ctx context.Context, id string) error {
	if err := s.store.SoftDeleteTransaction(ctx, id); err != nil {
		return fmt.Errorf("soft delete transaction: %w", err)
	}

	if s.events != nil {
		if err := s.events.PublishTransactionDeleted(ctx, id); err != nil {
			slog.ErrorContext(ctx, "Failed to publish transaction deleted event",
				"id", id, "error", err)
		}
	}

	return nil
}
