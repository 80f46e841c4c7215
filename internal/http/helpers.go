package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"finsync/internal/core"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// parsePeriod reads the period query parameter, defaulting to week.
func parsePeriod(r *http.Request) (core.Period, error) {
	token := strings.TrimSpace(r.URL.Query().Get("period"))
	if token == "" {
		return core.PeriodWeek, nil
	}
	p := core.Period(token)
	if err := p.Validate(); err != nil {
		return "", err
	}
	return p, nil
}

type transactionView struct {
	ID               string  `json:"id"`
	Amount           float64 `json:"amount"`
	AmountCents      int64   `json:"amount_cents"`
	Type             string  `json:"type"`
	Category         string  `json:"category"`
	Description      string  `json:"description"`
	Notes            string  `json:"notes,omitempty"`
	Date             string  `json:"date"`
	AccountID        string  `json:"account_id,omitempty"`
	ParentTemplateID string  `json:"parent_template_id,omitempty"`
}

type categoryView struct {
	CategoryID       string  `json:"category_id"`
	Name             string  `json:"name"`
	Color            string  `json:"color,omitempty"`
	Amount           float64 `json:"amount"`
	AmountCents      int64   `json:"amount_cents"`
	Percentage       float64 `json:"percentage"`
	TransactionCount int     `json:"transaction_count"`
	Trend            string  `json:"trend"`
	BudgetLimit      float64 `json:"budget_limit,omitempty"`
	BudgetUsed       float64 `json:"budget_used,omitempty"`
	PreviousAmount   float64 `json:"previous_amount"`
}

type spendingView struct {
	TotalIncome   float64        `json:"total_income"`
	TotalExpenses float64        `json:"total_expenses"`
	NetIncome     float64        `json:"net_income"`
	DailyAverage  float64        `json:"daily_average"`
	Breakdown     []categoryView `json:"breakdown"`
	TopCategories []categoryView `json:"top_categories"`
	Period        string         `json:"period"`
	RangeStart    string         `json:"range_start"`
	RangeEnd      string         `json:"range_end"`
}

type templateView struct {
	ID               string  `json:"id"`
	Amount           float64 `json:"amount"`
	Type             string  `json:"type"`
	Category         string  `json:"category"`
	Description      string  `json:"description"`
	Interval         string  `json:"interval"`
	AnchorDay        int     `json:"anchor_day,omitempty"`
	AnchorWeekday    string  `json:"anchor_weekday,omitempty"`
	EndDate          string  `json:"end_date,omitempty"`
	LastMaterialized string  `json:"last_materialized"`
}

// templateRequest is the create/update payload for a recurring template.
type templateRequest struct {
	Amount        string `json:"amount"`
	Type          string `json:"type"`
	Category      string `json:"category"`
	Description   string `json:"description"`
	AccountID     string `json:"account_id"`
	Interval      string `json:"interval"`
	AnchorDay     int    `json:"anchor_day"`
	AnchorWeekday string `json:"anchor_weekday"`
	StartDate     string `json:"start_date"`
	EndDate       string `json:"end_date"`
}

var weekdaysByName = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

func parseWeekday(s string) (time.Weekday, bool) {
	wd, ok := weekdaysByName[strings.ToLower(strings.TrimSpace(s))]
	return wd, ok
}

// templateFromRequest builds a template from a create/update payload.
// Returns a user-facing message on invalid input. LastMaterialized is set
// from start_date (default today) and ignored by updates.
func templateFromRequest(req templateRequest) (core.RecurringTemplate, string) {
	cents, err := core.ParseDecimalToCents(req.Amount)
	if err != nil {
		return core.RecurringTemplate{}, "invalid amount"
	}

	start := time.Now()
	if v := strings.TrimSpace(req.StartDate); v != "" {
		parsed, err := time.ParseInLocation("2006-01-02", v, time.Local)
		if err != nil {
			return core.RecurringTemplate{}, "invalid start_date, expected YYYY-MM-DD"
		}
		start = parsed
	}

	var endDate time.Time
	if v := strings.TrimSpace(req.EndDate); v != "" {
		parsed, err := time.ParseInLocation("2006-01-02", v, time.Local)
		if err != nil {
			return core.RecurringTemplate{}, "invalid end_date, expected YYYY-MM-DD"
		}
		endDate = parsed
	}

	tmpl := core.RecurringTemplate{
		Amount:           core.Money{Cents: cents},
		Type:             core.TransactionType(strings.TrimSpace(req.Type)),
		Category:         strings.TrimSpace(req.Category),
		Description:      strings.TrimSpace(req.Description),
		AccountID:        strings.TrimSpace(req.AccountID),
		Interval:         core.RecurrenceInterval(strings.TrimSpace(req.Interval)),
		AnchorDay:        req.AnchorDay,
		EndDate:          endDate,
		LastMaterialized: start,
	}

	// Anchors default to the start date when the payload omits them.
	if tmpl.Interval == core.WeeklyInterval {
		if req.AnchorWeekday != "" {
			wd, ok := parseWeekday(req.AnchorWeekday)
			if !ok {
				return core.RecurringTemplate{}, "invalid anchor_weekday"
			}
			tmpl.AnchorWeekday = wd
		} else {
			tmpl.AnchorWeekday = start.Weekday()
		}
	} else if tmpl.AnchorDay == 0 {
		tmpl.AnchorDay = start.Day()
	}

	if err := tmpl.Validate(); err != nil {
		return core.RecurringTemplate{}, err.Error()
	}
	return tmpl, ""
}

type dashboardView struct {
	SelectedPeriod     string            `json:"selected_period"`
	SpendingData       *spendingView     `json:"spending_data"`
	RecentTransactions []transactionView `json:"recent_transactions"`
	CategoryBreakdown  []categoryView    `json:"category_breakdown"`
	IsLoading          bool              `json:"is_loading"`
	IsRefreshing       bool              `json:"is_refreshing"`
	ErrorMessage       string            `json:"error_message,omitempty"`
}

func toTransactionView(tx core.Transaction) transactionView {
	return transactionView{
		ID:               tx.ID,
		Amount:           tx.Amount.Units(),
		AmountCents:      tx.Amount.Cents,
		Type:             string(tx.Type),
		Category:         tx.Category,
		Description:      tx.Description,
		Notes:            tx.Notes,
		Date:             tx.Date.Format("2006-01-02"),
		AccountID:        tx.AccountID,
		ParentTemplateID: tx.ParentTemplateID,
	}
}

func toTransactionViews(txs []core.Transaction) []transactionView {
	views := make([]transactionView, 0, len(txs))
	for _, tx := range txs {
		views = append(views, toTransactionView(tx))
	}
	return views
}

func toCategoryView(c core.CategorySpending) categoryView {
	return categoryView{
		CategoryID:       c.CategoryID,
		Name:             c.Name,
		Color:            c.Color,
		Amount:           c.Amount.Units(),
		AmountCents:      c.Amount.Cents,
		Percentage:       c.Percentage,
		TransactionCount: c.TransactionCount,
		Trend:            string(c.Trend),
		BudgetLimit:      c.BudgetLimit.Units(),
		BudgetUsed:       c.BudgetUsed,
		PreviousAmount:   c.PreviousAmount.Units(),
	}
}

func toCategoryViews(cats []core.CategorySpending) []categoryView {
	views := make([]categoryView, 0, len(cats))
	for _, c := range cats {
		views = append(views, toCategoryView(c))
	}
	return views
}

func toSpendingView(data core.SpendingData) *spendingView {
	return &spendingView{
		TotalIncome:   data.TotalIncome.Units(),
		TotalExpenses: data.TotalExpenses.Units(),
		NetIncome:     data.NetIncome.Units(),
		DailyAverage:  data.DailyAverage.Units(),
		Breakdown:     toCategoryViews(data.Breakdown),
		TopCategories: toCategoryViews(data.TopCategories),
		Period:        string(data.Period.Period),
		RangeStart:    data.Period.Start.Format(time.RFC3339),
		RangeEnd:      data.Period.End.Format(time.RFC3339),
	}
}

func toTemplateView(tmpl core.RecurringTemplate) templateView {
	view := templateView{
		ID:               tmpl.ID,
		Amount:           tmpl.Amount.Units(),
		Type:             string(tmpl.Type),
		Category:         tmpl.Category,
		Description:      tmpl.Description,
		Interval:         string(tmpl.Interval),
		AnchorDay:        tmpl.AnchorDay,
		LastMaterialized: tmpl.LastMaterialized.Format("2006-01-02"),
	}
	if tmpl.Interval == core.WeeklyInterval {
		view.AnchorDay = 0
		view.AnchorWeekday = strings.ToLower(tmpl.AnchorWeekday.String())
	}
	if !tmpl.EndDate.IsZero() {
		view.EndDate = tmpl.EndDate.Format("2006-01-02")
	}
	return view
}
