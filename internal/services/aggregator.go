package services

import (
	"sort"

	"finsync/internal/core"
)

// topCategoryCount is the size of the SpendingData.TopCategories prefix.
const topCategoryCount = 5

// Aggregate reduces a list of transactions over a resolved range into
// spending totals, a per-category breakdown, and a daily average. It is pure
// arithmetic: callers must already have restricted transactions to the
// range (date filtering belongs to the query layer).
//
// previous carries the transactions of the equivalent immediately-preceding
// window and drives the per-category trend; pass nil to default every trend
// to stable with a zero previous amount.
func Aggregate(transactions []core.Transaction, rng core.DateRange, previous []core.Transaction) core.SpendingData {
	data := core.SpendingData{Period: rng}

	type bucket struct {
		amount int64
		count  int
	}
	buckets := map[string]*bucket{}

	for _, tx := range transactions {
		switch tx.Type {
		case core.Income:
			data.TotalIncome.Cents += tx.Amount.Cents
		case core.Expense:
			data.TotalExpenses.Cents += tx.Amount.Cents
			b := buckets[tx.Category]
			if b == nil {
				b = &bucket{}
				buckets[tx.Category] = b
			}
			b.amount += tx.Amount.Cents
			b.count++
		}
	}
	data.NetIncome.Cents = data.TotalIncome.Cents - data.TotalExpenses.Cents

	prevAmounts := map[string]int64{}
	for _, tx := range previous {
		if tx.Type == core.Expense {
			prevAmounts[tx.Category] += tx.Amount.Cents
		}
	}

	for category, b := range buckets {
		cs := core.CategorySpending{
			CategoryID:       category,
			Name:             category,
			Amount:           core.Money{Cents: b.amount},
			TransactionCount: b.count,
			Trend:            core.TrendStable,
		}
		// Percentage against in-range expenses only, never income or net.
		if data.TotalExpenses.Cents > 0 {
			cs.Percentage = float64(b.amount) / float64(data.TotalExpenses.Cents) * 100
		}
		if previous != nil {
			prev := prevAmounts[category]
			cs.PreviousAmount = core.Money{Cents: prev}
			switch {
			case b.amount > prev:
				cs.Trend = core.TrendUp
			case b.amount < prev:
				cs.Trend = core.TrendDown
			}
		}
		data.Breakdown = append(data.Breakdown, cs)
	}

	// Descending by amount, ties broken by category id for determinism.
	sort.Slice(data.Breakdown, func(i, j int) bool {
		if data.Breakdown[i].Amount.Cents != data.Breakdown[j].Amount.Cents {
			return data.Breakdown[i].Amount.Cents > data.Breakdown[j].Amount.Cents
		}
		return data.Breakdown[i].CategoryID < data.Breakdown[j].CategoryID
	})

	top := topCategoryCount
	if len(data.Breakdown) < top {
		top = len(data.Breakdown)
	}
	data.TopCategories = data.Breakdown[:top]

	data.DailyAverage = core.Money{Cents: data.TotalExpenses.Cents / int64(rng.Days())}

	return data
}
