// Package storage persists transactions and recurring templates in SQLite
// and serves the dashboard's read queries.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"finsync/internal/core"
	"finsync/internal/services"

	_ "modernc.org/sqlite"
)

// timeLayout keeps the fractional seconds at fixed width so the TEXT date
// columns compare lexicographically in chronological order. RFC3339Nano
// trims trailing zeros, which would sort "…00.5Z" before "…00Z".
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// InsertTransaction implements services.TransactionStore.
func (r *SQLiteRepository) InsertTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO transactions (
			id, amount_cents, type, category, description, notes, date,
			account_id, receipt_id, parent_template_id, occurrence_key,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tx.ID, tx.Amount.Cents, string(tx.Type), tx.Category, tx.Description, tx.Notes,
		tx.Date.Format(timeLayout), tx.AccountID, tx.ReceiptID,
		nullString(tx.ParentTemplateID), nullString(tx.OccurrenceKey),
		tx.CreatedAt.Format(timeLayout), tx.UpdatedAt.Format(timeLayout),
	)
	if err != nil {
		if strings.Contains(err.Error(), "idx_transactions_occurrence_key") ||
			strings.Contains(err.Error(), "transactions.occurrence_key") {
			return core.Transaction{}, fmt.Errorf("insert transaction: %w", core.ErrDuplicateOccurrence)
		}
		return core.Transaction{}, fmt.Errorf("insert transaction: %w", err)
	}

	slog.InfoContext(ctx, "Transaction saved",
		"id", tx.ID,
		"type", tx.Type,
		"amount_cents", tx.Amount.Cents,
		"category", tx.Category)

	return tx, nil
}

// UpdateTransaction implements services.TransactionStore. Only the mutable
// fields (description, category, notes, amount, date) are written.
func (r *SQLiteRepository) UpdateTransaction(ctx context.Context, tx core.Transaction) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE transactions
		SET description = ?, category = ?, notes = ?, amount_cents = ?, date = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL`,
		tx.Description, tx.Category, tx.Notes, tx.Amount.Cents,
		tx.Date.Format(timeLayout), tx.UpdatedAt.Format(timeLayout), tx.ID,
	)
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("update transaction %s: %w", tx.ID, sql.ErrNoRows)
	}
	return nil
}

// SoftDeleteTransaction implements services.TransactionStore.
func (r *SQLiteRepository) SoftDeleteTransaction(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE transactions SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`,
		time.Now().Format(timeLayout), id,
	)
	if err != nil {
		return fmt.Errorf("soft delete transaction: %w", err)
	}
	return nil
}

// GetTransaction returns a single transaction by ID.
func (r *SQLiteRepository) GetTransaction(ctx context.Context, id string) (core.Transaction, error) {
	row := r.db.QueryRowContext(ctx, transactionColumns+
		` FROM transactions WHERE id = ? AND deleted_at IS NULL`, id)
	tx, err := scanTransaction(row)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction %s: %w", id, err)
	}
	return tx, nil
}

// ListTransactionsInRange returns non-recurring transactions whose date
// falls inside the range, newest first.
func (r *SQLiteRepository) ListTransactionsInRange(ctx context.Context, rng core.DateRange) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, transactionColumns+`
		FROM transactions
		WHERE is_recurring = 0 AND deleted_at IS NULL AND date >= ? AND date <= ?
		ORDER BY date DESC`,
		rng.Start.Format(timeLayout), rng.End.Format(timeLayout),
	)
	if err != nil {
		return nil, fmt.Errorf("list transactions in range: %w", err)
	}
	defer rows.Close()
	return collectTransactions(rows)
}

// ListRecentTransactions returns the newest count transactions.
func (r *SQLiteRepository) ListRecentTransactions(ctx context.Context, count int) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, transactionColumns+`
		FROM transactions
		WHERE is_recurring = 0 AND deleted_at IS NULL
		ORDER BY date DESC
		LIMIT ?`, count,
	)
	if err != nil {
		return nil, fmt.Errorf("list recent transactions: %w", err)
	}
	defer rows.Close()
	return collectTransactions(rows)
}

// InsertRecurringTemplate stores a template as a transaction row with
// is_recurring = 1 (templates are enumerated by that flag).
func (r *SQLiteRepository) InsertRecurringTemplate(ctx context.Context, tmpl core.RecurringTemplate) error {
	endDate := sql.NullString{}
	if !tmpl.EndDate.IsZero() {
		endDate = sql.NullString{String: tmpl.EndDate.Format(timeLayout), Valid: true}
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO transactions (
			id, amount_cents, type, category, description, date, account_id,
			is_recurring, recurrence_interval, anchor_day, anchor_weekday,
			end_date, last_materialized, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, 1, ?, ?, ?, ?, ?, ?, ?)`,
		tmpl.ID, tmpl.Amount.Cents, string(tmpl.Type), tmpl.Category, tmpl.Description,
		tmpl.LastMaterialized.Format(timeLayout), tmpl.AccountID,
		string(tmpl.Interval), tmpl.AnchorDay, int(tmpl.AnchorWeekday),
		endDate, tmpl.LastMaterialized.Format(timeLayout),
		tmpl.CreatedAt.Format(timeLayout), tmpl.CreatedAt.Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("insert recurring template: %w", err)
	}
	return nil
}

// UpdateRecurringTemplate rewrites a template's definition. The last
// materialized date is untouched so an edit never re-opens past occurrences.
func (r *SQLiteRepository) UpdateRecurringTemplate(ctx context.Context, tmpl core.RecurringTemplate) error {
	endDate := sql.NullString{}
	if !tmpl.EndDate.IsZero() {
		endDate = sql.NullString{String: tmpl.EndDate.Format(timeLayout), Valid: true}
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE transactions
		SET amount_cents = ?, type = ?, category = ?, description = ?,
		    recurrence_interval = ?, anchor_day = ?, anchor_weekday = ?,
		    end_date = ?, updated_at = ?
		WHERE id = ? AND is_recurring = 1 AND deleted_at IS NULL`,
		tmpl.Amount.Cents, string(tmpl.Type), tmpl.Category, tmpl.Description,
		string(tmpl.Interval), tmpl.AnchorDay, int(tmpl.AnchorWeekday),
		endDate, time.Now().Format(timeLayout), tmpl.ID,
	)
	if err != nil {
		return fmt.Errorf("update recurring template: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("update recurring template %s: %w", tmpl.ID, core.ErrTemplateNotFound)
	}
	return nil
}

// DeleteRecurringTemplate soft deletes a template. Transactions already
// materialized from it are kept.
func (r *SQLiteRepository) DeleteRecurringTemplate(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE transactions SET deleted_at = ?
		WHERE id = ? AND is_recurring = 1 AND deleted_at IS NULL`,
		time.Now().Format(timeLayout), id,
	)
	if err != nil {
		return fmt.Errorf("delete recurring template: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("delete recurring template %s: %w", id, core.ErrTemplateNotFound)
	}
	return nil
}

// ListRecurringTemplates implements services.TemplateStore.
func (r *SQLiteRepository) ListRecurringTemplates(ctx context.Context) ([]core.RecurringTemplate, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, amount_cents, type, category, description, account_id,
		       recurrence_interval, anchor_day, anchor_weekday,
		       end_date, last_materialized, created_at
		FROM transactions
		WHERE is_recurring = 1 AND deleted_at IS NULL`)
	if err != nil {
		return nil, fmt.Errorf("list recurring templates: %w", err)
	}
	defer rows.Close()

	var templates []core.RecurringTemplate
	for rows.Next() {
		var (
			tmpl                    core.RecurringTemplate
			amountCents             int64
			txType, interval        string
			anchorDay, anchorWd     int
			endDate, lastMat, crtAt sql.NullString
		)
		if err := rows.Scan(&tmpl.ID, &amountCents, &txType, &tmpl.Category, &tmpl.Description,
			&tmpl.AccountID, &interval, &anchorDay, &anchorWd, &endDate, &lastMat, &crtAt); err != nil {
			return nil, fmt.Errorf("scan recurring template: %w", err)
		}
		tmpl.Amount = core.Money{Cents: amountCents}
		tmpl.Type = core.TransactionType(txType)
		tmpl.Interval = core.RecurrenceInterval(interval)
		tmpl.AnchorDay = anchorDay
		tmpl.AnchorWeekday = time.Weekday(anchorWd)
		if tmpl.EndDate, err = parseNullTime(endDate); err != nil {
			return nil, fmt.Errorf("parse template end date: %w", err)
		}
		if tmpl.LastMaterialized, err = parseNullTime(lastMat); err != nil {
			return nil, fmt.Errorf("parse template last materialized: %w", err)
		}
		if tmpl.CreatedAt, err = parseNullTime(crtAt); err != nil {
			return nil, fmt.Errorf("parse template created at: %w", err)
		}
		templates = append(templates, tmpl)
	}
	return templates, rows.Err()
}

// AdvanceLastMaterialized implements services.TemplateStore.
func (r *SQLiteRepository) AdvanceLastMaterialized(ctx context.Context, templateID string, date time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE transactions
		SET last_materialized = ?, updated_at = ?
		WHERE id = ? AND is_recurring = 1`,
		date.Format(timeLayout), time.Now().Format(timeLayout), templateID,
	)
	if err != nil {
		return fmt.Errorf("advance last materialized: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("advance last materialized: template %s not found", templateID)
	}
	return nil
}

// FetchSpendingData implements dashboard.DataProvider: the range query and
// its previous-period twin feed the aggregator, and the breakdown is
// enriched from the category catalog.
func (r *SQLiteRepository) FetchSpendingData(ctx context.Context, rng core.DateRange) (core.SpendingData, error) {
	current, err := r.ListTransactionsInRange(ctx, rng)
	if err != nil {
		return core.SpendingData{}, err
	}
	previous, err := r.ListTransactionsInRange(ctx, rng.Previous())
	if err != nil {
		return core.SpendingData{}, err
	}

	data := services.Aggregate(current, rng, previous)
	if err := r.enrichBreakdown(ctx, data.Breakdown); err != nil {
		return core.SpendingData{}, err
	}
	return data, nil
}

// FetchRecentTransactions implements dashboard.DataProvider.
func (r *SQLiteRepository) FetchRecentTransactions(ctx context.Context, count int) ([]core.Transaction, error) {
	return r.ListRecentTransactions(ctx, count)
}

// FetchCategoryBreakdown implements dashboard.DataProvider.
func (r *SQLiteRepository) FetchCategoryBreakdown(ctx context.Context, rng core.DateRange) ([]core.CategorySpending, error) {
	data, err := r.FetchSpendingData(ctx, rng)
	if err != nil {
		return nil, err
	}
	return data.Breakdown, nil
}

// enrichBreakdown joins catalog color and budget metadata onto the derived
// per-category rows.
func (r *SQLiteRepository) enrichBreakdown(ctx context.Context, breakdown []core.CategorySpending) error {
	if len(breakdown) == 0 {
		return nil
	}

	rows, err := r.db.QueryContext(ctx, `SELECT name, color, budget_limit_cents FROM categories`)
	if err != nil {
		return fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	type catalogEntry struct {
		color  string
		budget int64
	}
	catalog := map[string]catalogEntry{}
	for rows.Next() {
		var name, color string
		var budget int64
		if err := rows.Scan(&name, &color, &budget); err != nil {
			return fmt.Errorf("scan category: %w", err)
		}
		catalog[name] = catalogEntry{color: color, budget: budget}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for i := range breakdown {
		entry, ok := catalog[breakdown[i].Name]
		if !ok {
			continue
		}
		breakdown[i].Color = entry.color
		if entry.budget > 0 {
			breakdown[i].BudgetLimit = core.Money{Cents: entry.budget}
			breakdown[i].BudgetUsed = float64(breakdown[i].Amount.Cents) / float64(entry.budget) * 100
		}
	}
	return nil
}

const transactionColumns = `
	SELECT id, amount_cents, type, category, description, notes, date,
	       account_id, receipt_id, parent_template_id, occurrence_key,
	       created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (core.Transaction, error) {
	var (
		tx                       core.Transaction
		amountCents              int64
		txType, date             string
		parentTemplate, occKey   sql.NullString
		createdAtStr, updatedStr string
	)
	err := row.Scan(&tx.ID, &amountCents, &txType, &tx.Category, &tx.Description, &tx.Notes,
		&date, &tx.AccountID, &tx.ReceiptID, &parentTemplate, &occKey, &createdAtStr, &updatedStr)
	if err != nil {
		return core.Transaction{}, err
	}
	tx.Amount = core.Money{Cents: amountCents}
	tx.Type = core.TransactionType(txType)
	tx.ParentTemplateID = parentTemplate.String
	tx.OccurrenceKey = occKey.String
	if tx.Date, err = time.Parse(timeLayout, date); err != nil {
		return core.Transaction{}, fmt.Errorf("parse transaction date: %w", err)
	}
	if tx.CreatedAt, err = time.Parse(timeLayout, createdAtStr); err != nil {
		return core.Transaction{}, fmt.Errorf("parse created at: %w", err)
	}
	if tx.UpdatedAt, err = time.Parse(timeLayout, updatedStr); err != nil {
		return core.Transaction{}, fmt.Errorf("parse updated at: %w", err)
	}
	return tx, nil
}

func collectTransactions(rows *sql.Rows) ([]core.Transaction, error) {
	var txs []core.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}

func parseNullTime(s sql.NullString) (time.Time, error) {
	if !s.Valid || s.String == "" {
		return time.Time{}, nil
	}
	return time.Parse(timeLayout, s.String)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
