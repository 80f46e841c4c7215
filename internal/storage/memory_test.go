package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"finsync/internal/core"
)

func seedTx(id string, date time.Time, txType core.TransactionType, category string, cents int64) core.Transaction {
	return core.Transaction{
		ID:          id,
		Amount:      core.Money{Cents: cents},
		Type:        txType,
		Category:    category,
		Description: "seed",
		Date:        date,
		CreatedAt:   date,
		UpdatedAt:   date,
	}
}

func TestMemoryStoreDuplicateOccurrenceKey(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	date := time.Date(2024, 2, 1, 0, 0, 0, 0, time.Local)

	first := seedTx("tx-1", date, core.Expense, "Housing", 99900)
	first.OccurrenceKey = "rt-1@2024-02-01"
	if _, err := store.InsertTransaction(ctx, first); err != nil {
		t.Fatalf("first insert: %v", err)
	}

	second := seedTx("tx-2", date, core.Expense, "Housing", 99900)
	second.OccurrenceKey = "rt-1@2024-02-01"
	if _, err := store.InsertTransaction(ctx, second); !errors.Is(err, core.ErrDuplicateOccurrence) {
		t.Errorf("second insert error = %v, want ErrDuplicateOccurrence", err)
	}
}

func TestMemoryStoreRangeQueryAndSpendingData(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	inRange := time.Date(2025, 3, 10, 12, 0, 0, 0, time.Local)
	previous := time.Date(2025, 3, 3, 12, 0, 0, 0, time.Local)
	outOfRange := time.Date(2025, 1, 1, 12, 0, 0, 0, time.Local)

	for _, tx := range []core.Transaction{
		seedTx("tx-1", inRange, core.Expense, "Groceries", 5000),
		seedTx("tx-2", inRange, core.Income, "Salary", 200000),
		seedTx("tx-3", previous, core.Expense, "Groceries", 7000),
		seedTx("tx-4", outOfRange, core.Expense, "Groceries", 100000),
	} {
		if _, err := store.InsertTransaction(ctx, tx); err != nil {
			t.Fatalf("insert %s: %v", tx.ID, err)
		}
	}

	rng, err := core.NewCustomRange(
		time.Date(2025, 3, 9, 0, 0, 0, 0, time.Local),
		time.Date(2025, 3, 15, 23, 59, 59, 0, time.Local),
	)
	if err != nil {
		t.Fatalf("range: %v", err)
	}

	data, err := store.FetchSpendingData(ctx, rng)
	if err != nil {
		t.Fatalf("FetchSpendingData: %v", err)
	}
	if data.TotalExpenses.Cents != 5000 {
		t.Errorf("total expenses = %d, want 5000 (out-of-range row must be excluded)", data.TotalExpenses.Cents)
	}
	if data.TotalIncome.Cents != 200000 {
		t.Errorf("total income = %d, want 200000", data.TotalIncome.Cents)
	}
	if len(data.Breakdown) != 1 {
		t.Fatalf("breakdown = %d entries, want 1", len(data.Breakdown))
	}
	// 5000 now vs 7000 the week before.
	if data.Breakdown[0].Trend != core.TrendDown {
		t.Errorf("trend = %s, want down", data.Breakdown[0].Trend)
	}
	if data.Breakdown[0].PreviousAmount.Cents != 7000 {
		t.Errorf("previous amount = %d, want 7000", data.Breakdown[0].PreviousAmount.Cents)
	}
}

func TestMemoryStoreSoftDeleteHidesTransaction(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	date := time.Date(2025, 3, 10, 12, 0, 0, 0, time.Local)

	if _, err := store.InsertTransaction(ctx, seedTx("tx-1", date, core.Expense, "Dining", 1500)); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := store.SoftDeleteTransaction(ctx, "tx-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	if _, err := store.GetTransaction(ctx, "tx-1"); err == nil {
		t.Error("deleted transaction must not be readable")
	}
	recent, err := store.ListRecentTransactions(ctx, 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(recent) != 0 {
		t.Errorf("recent = %d rows, want 0", len(recent))
	}
}

func TestMemoryStoreTemplateAdvance(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	tmpl := core.RecurringTemplate{
		ID:               "rt-1",
		Amount:           core.Money{Cents: 1000},
		Type:             core.Expense,
		Category:         "Subscriptions",
		Description:      "music",
		Interval:         core.MonthlyInterval,
		AnchorDay:        1,
		LastMaterialized: time.Date(2024, 1, 1, 0, 0, 0, 0, time.Local),
	}
	if err := store.InsertRecurringTemplate(ctx, tmpl); err != nil {
		t.Fatalf("insert template: %v", err)
	}

	next := time.Date(2024, 2, 1, 0, 0, 0, 0, time.Local)
	if err := store.AdvanceLastMaterialized(ctx, "rt-1", next); err != nil {
		t.Fatalf("advance: %v", err)
	}

	templates, err := store.ListRecurringTemplates(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(templates) != 1 || !templates[0].LastMaterialized.Equal(next) {
		t.Errorf("template not advanced: %+v", templates)
	}

	if err := store.AdvanceLastMaterialized(ctx, "rt-missing", next); err == nil {
		t.Error("expected error for unknown template")
	}
}

func TestMemoryStoreTemplateUpdateAndDelete(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	tmpl := core.RecurringTemplate{
		ID:               "rt-1",
		Amount:           core.Money{Cents: 1000},
		Type:             core.Expense,
		Category:         "Subscriptions",
		Description:      "music",
		Interval:         core.MonthlyInterval,
		AnchorDay:        1,
		LastMaterialized: time.Date(2024, 1, 1, 0, 0, 0, 0, time.Local),
	}
	if err := store.InsertRecurringTemplate(ctx, tmpl); err != nil {
		t.Fatalf("insert template: %v", err)
	}

	edited := tmpl
	edited.Amount = core.Money{Cents: 1500}
	edited.AnchorDay = 15
	edited.LastMaterialized = time.Date(2023, 6, 1, 0, 0, 0, 0, time.Local)
	if err := store.UpdateRecurringTemplate(ctx, edited); err != nil {
		t.Fatalf("update template: %v", err)
	}

	templates, err := store.ListRecurringTemplates(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if templates[0].Amount.Cents != 1500 || templates[0].AnchorDay != 15 {
		t.Errorf("template not updated: %+v", templates[0])
	}
	if !templates[0].LastMaterialized.Equal(tmpl.LastMaterialized) {
		t.Errorf("update must not touch last materialized: got %v", templates[0].LastMaterialized)
	}

	if err := store.UpdateRecurringTemplate(ctx, core.RecurringTemplate{ID: "rt-missing"}); !errors.Is(err, core.ErrTemplateNotFound) {
		t.Errorf("update unknown template error = %v, want ErrTemplateNotFound", err)
	}

	if err := store.DeleteRecurringTemplate(ctx, "rt-1"); err != nil {
		t.Fatalf("delete template: %v", err)
	}
	templates, err = store.ListRecurringTemplates(ctx)
	if err != nil {
		t.Fatalf("list after delete: %v", err)
	}
	if len(templates) != 0 {
		t.Errorf("templates after delete = %d, want 0", len(templates))
	}
	if err := store.DeleteRecurringTemplate(ctx, "rt-1"); !errors.Is(err, core.ErrTemplateNotFound) {
		t.Errorf("delete again error = %v, want ErrTemplateNotFound", err)
	}
}
