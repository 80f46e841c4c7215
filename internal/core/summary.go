package core

const (
	TrendUp     Trend = "up"
	TrendDown   Trend = "down"
	TrendStable Trend = "stable"
)

type (
	// Trend compares a category's spending against the equivalent prior period.
	Trend string

	// CategorySpending is the per-category slice of a breakdown. Derived,
	// recomputed on every aggregation, never persisted.
	CategorySpending struct {
		CategoryID       string
		Name             string
		Color            string
		Amount           Money
		Percentage       float64 // 0-100, relative to total expenses in range
		TransactionCount int
		Trend            Trend
		BudgetLimit      Money
		BudgetUsed       float64 // 0-100 when BudgetLimit is set
		PreviousAmount   Money
	}

	// SpendingData is the derived aggregate for one resolved range.
	SpendingData struct {
		TotalIncome   Money
		TotalExpenses Money
		NetIncome     Money
		Breakdown     []CategorySpending // sorted by amount descending
		DailyAverage  Money
		TopCategories []CategorySpending // first 5 of Breakdown
		Period        DateRange
	}
)
