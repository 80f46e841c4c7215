package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"finsync/internal/core"
)

type fakeTxStore struct {
	inserted  []core.Transaction
	deleted   []string
	insertErr error
}

func (f *fakeTxStore) InsertTransaction(_ context.Context, tx core.Transaction) (core.Transaction, error) {
	if f.insertErr != nil {
		return core.Transaction{}, f.insertErr
	}
	f.inserted = append(f.inserted, tx)
	return tx, nil
}

func (f *fakeTxStore) UpdateTransaction(context.Context, core.Transaction) error { return nil }

func (f *fakeTxStore) SoftDeleteTransaction(_ context.Context, id string) error {
	f.deleted = append(f.deleted, id)
	return nil
}

type fakePublisher struct {
	created []string
	deleted []string
	err     error
}

func (f *fakePublisher) PublishTransactionCreated(_ context.Context, id string) error {
	f.created = append(f.created, id)
	return f.err
}

func (f *fakePublisher) PublishTransactionDeleted(_ context.Context, id string) error {
	f.deleted = append(f.deleted, id)
	return f.err
}

func validTx() core.Transaction {
	return core.Transaction{
		Amount:      core.Money{Cents: 1500},
		Type:        core.Expense,
		Category:    "Dining",
		Description: "lunch",
		Date:        time.Date(2025, 3, 10, 12, 0, 0, 0, time.Local),
	}
}

func TestCreateTransactionGeneratesIDAndPublishes(t *testing.T) {
	store := &fakeTxStore{}
	events := &fakePublisher{}
	svc := NewTransactionService(store, events)

	created, err := svc.CreateTransaction(context.Background(), validTx())
	if err != nil {
		t.Fatalf("CreateTransaction: %v", err)
	}
	if created.ID == "" {
		t.Error("expected generated ID")
	}
	if created.CreatedAt.IsZero() || created.UpdatedAt.IsZero() {
		t.Error("expected timestamps to be set")
	}
	if len(events.created) != 1 || events.created[0] != created.ID {
		t.Errorf("published created events = %v, want [%s]", events.created, created.ID)
	}
}

func TestCreateTransactionRejectsInvalid(t *testing.T) {
	store := &fakeTxStore{}
	svc := NewTransactionService(store, nil)

	tx := validTx()
	tx.Category = ""
	if _, err := svc.CreateTransaction(context.Background(), tx); !errors.Is(err, core.ErrEmptyCategory) {
		t.Errorf("error = %v, want ErrEmptyCategory", err)
	}
	if len(store.inserted) != 0 {
		t.Error("invalid transaction must not reach the store")
	}
}

func TestCreateTransactionPublishFailureIsNotFatal(t *testing.T) {
	store := &fakeTxStore{}
	events := &fakePublisher{err: errors.New("broker down")}
	svc := NewTransactionService(store, events)

	if _, err := svc.CreateTransaction(context.Background(), validTx()); err != nil {
		t.Errorf("CreateTransaction = %v, publish failure must not surface", err)
	}
	if len(store.inserted) != 1 {
		t.Error("transaction must be persisted despite publish failure")
	}
}

func TestDeleteTransactionPublishesEvent(t *testing.T) {
	store := &fakeTxStore{}
	events := &fakePublisher{}
	svc := NewTransactionService(store, events)

	if err := svc.DeleteTransaction(context.Background(), "tx-1"); err != nil {
		t.Fatalf("DeleteTransaction: %v", err)
	}
	if len(store.deleted) != 1 || store.deleted[0] != "tx-1" {
		t.Errorf("deleted = %v, want [tx-1]", store.deleted)
	}
	if len(events.deleted) != 1 || events.deleted[0] != "tx-1" {
		t.Errorf("published deleted events = %v, want [tx-1]", events.deleted)
	}
}
