package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"finsync/internal/core"
)

// handleDashboard returns the current dashboard state.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	state := s.viewModel.Snapshot()
	view := dashboardView{
		SelectedPeriod:     string(state.SelectedPeriod),
		RecentTransactions: toTransactionViews(state.RecentTransactions),
		CategoryBreakdown:  toCategoryViews(state.CategoryBreakdown),
		IsLoading:          state.IsLoading,
		IsRefreshing:       state.IsRefreshing,
		ErrorMessage:       state.ErrorMessage,
	}
	if state.SpendingData != nil {
		view.SpendingData = toSpendingView(*state.SpendingData)
	}

	writeJSON(w, http.StatusOK, view)
}

// handleDashboardPeriod switches the dashboard period. The fetch round runs
// asynchronously; the response carries the state as of the switch.
func (s *Server) handleDashboardPeriod(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Period string `json:"period"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.viewModel.ChangePeriod(r.Context(), core.Period(strings.TrimSpace(req.Period))); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"selected_period": string(s.viewModel.Snapshot().SelectedPeriod),
	})
}

// handleDashboardRefresh re-fetches the current period without changing it.
func (s *Server) handleDashboardRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	s.viewModel.Refresh(r.Context())
	writeJSON(w, http.StatusAccepted, map[string]bool{"is_refreshing": true})
}

// handleSummary computes spending data for the requested period on demand.
func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 7*time.Second)
	defer cancel()

	period, err := parsePeriod(r)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	rng, err := core.Resolve(period, time.Now())
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	data, err := s.store.FetchSpendingData(ctx, rng)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to fetch spending data", "error", err, "period", period)
		writeError(w, http.StatusInternalServerError, "failed to load spending data")
		return
	}

	writeJSON(w, http.StatusOK, toSpendingView(data))
}

func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleListTransactions(w, r)
	case http.MethodPost:
		s.handleCreateTransaction(w, r)
	default:
		w.Header().Set("Allow", "GET, POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 7*time.Second)
	defer cancel()

	limit := 20
	if v := strings.TrimSpace(r.URL.Query().Get("limit")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}

	txs, err := s.store.ListRecentTransactions(ctx, limit)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to list transactions", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list transactions")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"transactions": toTransactionViews(txs)})
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 7*time.Second)
	defer cancel()

	var req struct {
		Amount      string `json:"amount"`
		Type        string `json:"type"`
		Category    string `json:"category"`
		Description string `json:"description"`
		Notes       string `json:"notes"`
		Date        string `json:"date"`
		AccountID   string `json:"account_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	cents, err := core.ParseDecimalToCents(req.Amount)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid amount")
		return
	}

	date := time.Now()
	if v := strings.TrimSpace(req.Date); v != "" {
		parsed, err := time.ParseInLocation("2006-01-02", v, time.Local)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "invalid date, expected YYYY-MM-DD")
			return
		}
		date = parsed
	}

	tx := core.Transaction{
		Amount:      core.Money{Cents: cents},
		Type:        core.TransactionType(strings.TrimSpace(req.Type)),
		Category:    strings.TrimSpace(req.Category),
		Description: strings.TrimSpace(req.Description),
		Notes:       strings.TrimSpace(req.Notes),
		Date:        date,
		AccountID:   strings.TrimSpace(req.AccountID),
	}

	created, err := s.transactions.CreateTransaction(ctx, tx)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to create transaction", "error", err)
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, toTransactionView(created))
}

// handleBreakdown returns the per-category breakdown for a period.
func (s *Server) handleBreakdown(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 7*time.Second)
	defer cancel()

	period, err := parsePeriod(r)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	rng, err := core.Resolve(period, time.Now())
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	breakdown, err := s.store.FetchCategoryBreakdown(ctx, rng)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to fetch breakdown", "error", err, "period", period)
		writeError(w, http.StatusInternalServerError, "failed to load breakdown")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"breakdown": toCategoryViews(breakdown)})
}

func (s *Server) handleRecurring(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleListRecurringTemplates(w, r)
	case http.MethodPost:
		s.handleCreateRecurringTemplate(w, r)
	default:
		w.Header().Set("Allow", "GET, POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleListRecurringTemplates(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 7*time.Second)
	defer cancel()

	templates, err := s.store.ListRecurringTemplates(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to list recurring templates", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list recurring templates")
		return
	}

	views := make([]templateView, 0, len(templates))
	for _, tmpl := range templates {
		views = append(views, toTemplateView(tmpl))
	}

	writeJSON(w, http.StatusOK, map[string]any{"templates": views})
}

func (s *Server) handleCreateRecurringTemplate(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 7*time.Second)
	defer cancel()

	var req templateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	tmpl, msg := templateFromRequest(req)
	if msg != "" {
		writeError(w, http.StatusUnprocessableEntity, msg)
		return
	}

	tmpl.ID = uuid.NewString()
	tmpl.CreatedAt = time.Now()

	if err := s.store.InsertRecurringTemplate(ctx, tmpl); err != nil {
		slog.ErrorContext(ctx, "Failed to create recurring template", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create recurring template")
		return
	}

	writeJSON(w, http.StatusCreated, toTemplateView(tmpl))
}

// handleUpdateRecurringTemplate rewrites a template's definition. The id comes
// from the query string; the body carries the full new definition.
func (s *Server) handleUpdateRecurringTemplate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut && r.Method != http.MethodPost {
		w.Header().Set("Allow", "PUT, POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 7*time.Second)
	defer cancel()

	id := strings.TrimSpace(r.URL.Query().Get("id"))
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing template id")
		return
	}

	var req templateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	tmpl, msg := templateFromRequest(req)
	if msg != "" {
		writeError(w, http.StatusUnprocessableEntity, msg)
		return
	}
	tmpl.ID = id

	if err := s.store.UpdateRecurringTemplate(ctx, tmpl); err != nil {
		if errors.Is(err, core.ErrTemplateNotFound) {
			writeError(w, http.StatusNotFound, "recurring template not found")
			return
		}
		slog.ErrorContext(ctx, "Failed to update recurring template", "error", err, "template_id", id)
		writeError(w, http.StatusInternalServerError, "failed to update recurring template")
		return
	}

	writeJSON(w, http.StatusOK, toTemplateView(tmpl))
}

func (s *Server) handleDeleteRecurringTemplate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete && r.Method != http.MethodPost {
		w.Header().Set("Allow", "DELETE, POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 7*time.Second)
	defer cancel()

	id := strings.TrimSpace(r.URL.Query().Get("id"))
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing template id")
		return
	}

	if err := s.store.DeleteRecurringTemplate(ctx, id); err != nil {
		if errors.Is(err, core.ErrTemplateNotFound) {
			writeError(w, http.StatusNotFound, "recurring template not found")
			return
		}
		slog.ErrorContext(ctx, "Failed to delete recurring template", "error", err, "template_id", id)
		writeError(w, http.StatusInternalServerError, "failed to delete recurring template")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"deleted": id})
}

// handleRecurringProcess runs the recurring processor once. Per-template
// failures are reported alongside the processed count.
func (s *Server) handleRecurringProcess(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	result, err := s.processor.ProcessDue(ctx, time.Now())
	if err != nil {
		slog.ErrorContext(ctx, "Recurring processing failed", "error", err)
		writeError(w, http.StatusInternalServerError, "recurring processing failed")
		return
	}

	errs := make([]string, 0, len(result.Errors))
	for _, e := range result.Errors {
		errs = append(errs, e.Error())
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"processed": result.Processed,
		"errors":    errs,
	})
}
