package core

import (
	"testing"
	"time"
)

func TestTransactionValidate(t *testing.T) {
	good := Transaction{
		ID:          "tx-1",
		Amount:      Money{Cents: 1250},
		Type:        Expense,
		Category:    "Groceries",
		Description: "weekly shop",
		Date:        time.Date(2025, 3, 10, 0, 0, 0, 0, time.Local),
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bads := []Transaction{
		{Amount: Money{Cents: 0}, Type: Expense, Category: "c", Description: "d", Date: good.Date},
		{Amount: Money{Cents: 100}, Type: "transfer", Category: "c", Description: "d", Date: good.Date},
		{Amount: Money{Cents: 100}, Type: Income, Category: " ", Description: "d", Date: good.Date},
		{Amount: Money{Cents: 100}, Type: Income, Category: "c", Description: "", Date: good.Date},
		{Amount: Money{Cents: 100}, Type: Income, Category: "c", Description: "d"},
	}
	for i, tx := range bads {
		if err := tx.Validate(); err == nil {
			t.Errorf("case %d expected error", i)
		}
	}
}

func TestRecurringTemplateValidate(t *testing.T) {
	base := RecurringTemplate{
		ID:               "rt-1",
		Amount:           Money{Cents: 99900},
		Type:             Expense,
		Category:         "Housing",
		Description:      "rent",
		Interval:         MonthlyInterval,
		AnchorDay:        1,
		LastMaterialized: time.Date(2025, 1, 1, 0, 0, 0, 0, time.Local),
	}
	if err := base.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	badInterval := base
	badInterval.Interval = "biweekly"
	if err := badInterval.Validate(); err == nil {
		t.Error("expected error for unknown interval")
	}

	badAnchor := base
	badAnchor.AnchorDay = 32
	if err := badAnchor.Validate(); err == nil {
		t.Error("expected error for anchor day out of range")
	}

	weekly := base
	weekly.Interval = WeeklyInterval
	weekly.AnchorDay = 0
	weekly.AnchorWeekday = time.Monday
	if err := weekly.Validate(); err != nil {
		t.Errorf("weekly template should not require anchor day: %v", err)
	}

	ended := base
	ended.EndDate = time.Date(2024, 12, 1, 0, 0, 0, 0, time.Local)
	if err := ended.Validate(); err == nil {
		t.Error("expected error for end date before last materialized")
	}
}
