package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"finsync/internal/core"
	"finsync/internal/services"
)

// MemoryStore is an in-memory implementation of the same surfaces as
// SQLiteRepository. Used for tests and the "memory" data backend.
type MemoryStore struct {
	mu           sync.RWMutex
	transactions map[string]core.Transaction
	templates    map[string]core.RecurringTemplate
	deleted      map[string]bool
	occurrences  map[string]bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		transactions: map[string]core.Transaction{},
		templates:    map[string]core.RecurringTemplate{},
		deleted:      map[string]bool{},
		occurrences:  map[string]bool{},
	}
}

func (m *MemoryStore) InsertTransaction(_ context.Context, tx core.Transaction) (core.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.transactions[tx.ID]; exists {
		return core.Transaction{}, fmt.Errorf("transaction %s already exists", tx.ID)
	}
	if tx.OccurrenceKey != "" {
		if m.occurrences[tx.OccurrenceKey] {
			return core.Transaction{}, fmt.Errorf("insert transaction: %w", core.ErrDuplicateOccurrence)
		}
		m.occurrences[tx.OccurrenceKey] = true
	}
	m.transactions[tx.ID] = tx
	return tx, nil
}

func (m *MemoryStore) UpdateTransaction(_ context.Context, tx core.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.transactions[tx.ID]
	if !ok || m.deleted[tx.ID] {
		return fmt.Errorf("transaction %s not found", tx.ID)
	}
	existing.Description = tx.Description
	existing.Category = tx.Category
	existing.Notes = tx.Notes
	existing.Amount = tx.Amount
	existing.Date = tx.Date
	existing.UpdatedAt = tx.UpdatedAt
	m.transactions[tx.ID] = existing
	return nil
}

func (m *MemoryStore) SoftDeleteTransaction(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.transactions[id]; !ok {
		return fmt.Errorf("transaction %s not found", id)
	}
	m.deleted[id] = true
	return nil
}

func (m *MemoryStore) GetTransaction(_ context.Context, id string) (core.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	tx, ok := m.transactions[id]
	if !ok || m.deleted[id] {
		return core.Transaction{}, fmt.Errorf("transaction %s not found", id)
	}
	return tx, nil
}

func (m *MemoryStore) ListTransactionsInRange(_ context.Context, rng core.DateRange) ([]core.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var txs []core.Transaction
	for id, tx := range m.transactions {
		if m.deleted[id] || !rng.Contains(tx.Date) {
			continue
		}
		txs = append(txs, tx)
	}
	sort.Slice(txs, func(i, j int) bool { return txs[i].Date.After(txs[j].Date) })
	return txs, nil
}

func (m *MemoryStore) ListRecentTransactions(_ context.Context, count int) ([]core.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var txs []core.Transaction
	for id, tx := range m.transactions {
		if m.deleted[id] {
			continue
		}
		txs = append(txs, tx)
	}
	sort.Slice(txs, func(i, j int) bool { return txs[i].Date.After(txs[j].Date) })
	if len(txs) > count {
		txs = txs[:count]
	}
	return txs, nil
}

func (m *MemoryStore) InsertRecurringTemplate(_ context.Context, tmpl core.RecurringTemplate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.templates[tmpl.ID]; exists {
		return fmt.Errorf("template %s already exists", tmpl.ID)
	}
	m.templates[tmpl.ID] = tmpl
	return nil
}

func (m *MemoryStore) UpdateRecurringTemplate(_ context.Context, tmpl core.RecurringTemplate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.templates[tmpl.ID]
	if !ok {
		return fmt.Errorf("template %s: %w", tmpl.ID, core.ErrTemplateNotFound)
	}
	existing.Amount = tmpl.Amount
	existing.Type = tmpl.Type
	existing.Category = tmpl.Category
	existing.Description = tmpl.Description
	existing.Interval = tmpl.Interval
	existing.AnchorDay = tmpl.AnchorDay
	existing.AnchorWeekday = tmpl.AnchorWeekday
	existing.EndDate = tmpl.EndDate
	m.templates[tmpl.ID] = existing
	return nil
}

func (m *MemoryStore) DeleteRecurringTemplate(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.templates[id]; !ok {
		return fmt.Errorf("template %s: %w", id, core.ErrTemplateNotFound)
	}
	delete(m.templates, id)
	return nil
}

func (m *MemoryStore) ListRecurringTemplates(context.Context) ([]core.RecurringTemplate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	templates := make([]core.RecurringTemplate, 0, len(m.templates))
	for _, tmpl := range m.templates {
		templates = append(templates, tmpl)
	}
	sort.Slice(templates, func(i, j int) bool { return templates[i].ID < templates[j].ID })
	return templates, nil
}

func (m *MemoryStore) AdvanceLastMaterialized(_ context.Context, templateID string, date time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	tmpl, ok := m.templates[templateID]
	if !ok {
		return fmt.Errorf("template %s not found", templateID)
	}
	tmpl.LastMaterialized = date
	m.templates[templateID] = tmpl
	return nil
}

func (m *MemoryStore) FetchSpendingData(ctx context.Context, rng core.DateRange) (core.SpendingData, error) {
	current, err := m.ListTransactionsInRange(ctx, rng)
	if err != nil {
		return core.SpendingData{}, err
	}
	previous, err := m.ListTransactionsInRange(ctx, rng.Previous())
	if err != nil {
		return core.SpendingData{}, err
	}
	return services.Aggregate(current, rng, previous), nil
}

func (m *MemoryStore) FetchRecentTransactions(ctx context.Context, count int) ([]core.Transaction, error) {
	return m.ListRecentTransactions(ctx, count)
}

func (m *MemoryStore) FetchCategoryBreakdown(ctx context.Context, rng core.DateRange) ([]core.CategorySpending, error) {
	data, err := m.FetchSpendingData(ctx, rng)
	if err != nil {
		return nil, err
	}
	return data.Breakdown, nil
}
