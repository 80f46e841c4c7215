package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"finsync/internal/core"
	"finsync/internal/dashboard"
	"finsync/internal/services"
	"finsync/internal/storage"
)

func newTestServer(t *testing.T) (*Server, *storage.MemoryStore) {
	t.Helper()
	store := storage.NewMemoryStore()
	txService := services.NewTransactionService(store, nil)
	processor := services.NewRecurringProcessor(store, txService)
	vm := dashboard.NewPeriodViewModel(store)
	return NewServer(":0", store, txService, processor, vm), store
}

func TestHandleHealth(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()

	handleHealth(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if rec.Body.String() != "ok" {
		t.Errorf("body = %q, want ok", rec.Body.String())
	}
}

func TestCreateAndListTransactions(t *testing.T) {
	srv, _ := newTestServer(t)

	body := `{"amount":"12,34","type":"expense","category":"Groceries","description":"weekly shop"}`
	req := httptest.NewRequest(http.MethodPost, "/api/transactions", strings.NewReader(body))
	rec := httptest.NewRecorder()
	srv.handleTransactions(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, want 201: %s", rec.Code, rec.Body.String())
	}
	var created transactionView
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatalf("decode create response: %v", err)
	}
	if created.AmountCents != 1234 {
		t.Errorf("amount cents = %d, want 1234", created.AmountCents)
	}
	if created.ID == "" {
		t.Error("created transaction must carry a generated ID")
	}

	req = httptest.NewRequest(http.MethodGet, "/api/transactions", nil)
	rec = httptest.NewRecorder()
	srv.handleTransactions(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d, want 200", rec.Code)
	}
	var listed struct {
		Transactions []transactionView `json:"transactions"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&listed); err != nil {
		t.Fatalf("decode list response: %v", err)
	}
	if len(listed.Transactions) != 1 {
		t.Errorf("listed = %d transactions, want 1", len(listed.Transactions))
	}
}

func TestCreateTransactionRejectsBadAmount(t *testing.T) {
	srv, _ := newTestServer(t)

	body := `{"amount":"-5","type":"expense","category":"Groceries","description":"weekly shop"}`
	req := httptest.NewRequest(http.MethodPost, "/api/transactions", strings.NewReader(body))
	rec := httptest.NewRecorder()
	srv.handleTransactions(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", rec.Code)
	}
}

func TestHandleSummary(t *testing.T) {
	srv, store := newTestServer(t)

	now := time.Now()
	for _, tx := range []core.Transaction{
		{ID: "tx-1", Amount: core.Money{Cents: 5000}, Type: core.Expense, Category: "Groceries", Description: "shop", Date: now},
		{ID: "tx-2", Amount: core.Money{Cents: 200000}, Type: core.Income, Category: "Salary", Description: "pay", Date: now},
	} {
		if _, err := store.InsertTransaction(context.Background(), tx); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	r := httptest.NewRequest(http.MethodGet, "/api/summary?period=day", nil)
	rec := httptest.NewRecorder()
	srv.handleSummary(rec, r)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	var view spendingView
	if err := json.NewDecoder(rec.Body).Decode(&view); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if view.TotalExpenses != 50.0 {
		t.Errorf("total expenses = %v, want 50.0", view.TotalExpenses)
	}
	if view.NetIncome != 1950.0 {
		t.Errorf("net income = %v, want 1950.0", view.NetIncome)
	}
	if view.Period != "day" {
		t.Errorf("period = %q, want day", view.Period)
	}
}

func TestHandleSummaryRejectsUnknownPeriod(t *testing.T) {
	srv, _ := newTestServer(t)

	r := httptest.NewRequest(http.MethodGet, "/api/summary?period=fortnight", nil)
	rec := httptest.NewRecorder()
	srv.handleSummary(rec, r)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", rec.Code)
	}
}

func TestHandleDashboardPeriod(t *testing.T) {
	srv, _ := newTestServer(t)

	body := `{"period":"month"}`
	r := httptest.NewRequest(http.MethodPost, "/api/dashboard/period", strings.NewReader(body))
	rec := httptest.NewRecorder()
	srv.handleDashboardPeriod(rec, r)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202: %s", rec.Code, rec.Body.String())
	}
	srv.viewModel.Wait()

	state := srv.viewModel.Snapshot()
	if state.SelectedPeriod != core.PeriodMonth {
		t.Errorf("selected period = %s, want month", state.SelectedPeriod)
	}
}

func TestHandleDashboardPeriodRejectsUnknownToken(t *testing.T) {
	srv, _ := newTestServer(t)

	body := `{"period":"decade"}`
	r := httptest.NewRequest(http.MethodPost, "/api/dashboard/period", strings.NewReader(body))
	rec := httptest.NewRecorder()
	srv.handleDashboardPeriod(rec, r)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", rec.Code)
	}
}

func TestHandleRecurringProcess(t *testing.T) {
	srv, store := newTestServer(t)

	// Seed the first of the previous month. Subtracting a month from "now"
	// directly is not safe: near month end AddDate normalizes into the
	// current month (Mar 31 minus one month is Mar 3) and the template
	// would not be due.
	now := time.Now()
	lastMaterialized := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.Local).AddDate(0, -1, 0)

	tmpl := core.RecurringTemplate{
		ID:               "rt-1",
		Amount:           core.Money{Cents: 99900},
		Type:             core.Expense,
		Category:         "Housing",
		Description:      "rent",
		Interval:         core.MonthlyInterval,
		AnchorDay:        1,
		LastMaterialized: lastMaterialized,
	}
	if err := store.InsertRecurringTemplate(context.Background(), tmpl); err != nil {
		t.Fatalf("seed template: %v", err)
	}

	r := httptest.NewRequest(http.MethodPost, "/api/recurring/process", nil)
	rec := httptest.NewRecorder()
	srv.handleRecurringProcess(rec, r)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	var result struct {
		Processed int      `json:"processed"`
		Errors    []string `json:"errors"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if result.Processed != 1 {
		t.Errorf("processed = %d, want 1", result.Processed)
	}
	if len(result.Errors) != 0 {
		t.Errorf("errors = %v, want none", result.Errors)
	}
}

func TestRecurringTemplateLifecycle(t *testing.T) {
	srv, store := newTestServer(t)

	body := `{"amount":"9,99","type":"expense","category":"Subscriptions","description":"music","interval":"weekly","anchor_weekday":"friday","start_date":"2025-01-06"}`
	req := httptest.NewRequest(http.MethodPost, "/api/recurring", strings.NewReader(body))
	rec := httptest.NewRecorder()
	srv.handleRecurring(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, want 201: %s", rec.Code, rec.Body.String())
	}
	var created templateView
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatalf("decode create response: %v", err)
	}
	if created.ID == "" {
		t.Fatal("created template must carry a generated ID")
	}
	if created.AnchorWeekday != "friday" {
		t.Errorf("anchor weekday = %q, want friday", created.AnchorWeekday)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/recurring", nil)
	rec = httptest.NewRecorder()
	srv.handleRecurring(rec, req)
	var listed struct {
		Templates []templateView `json:"templates"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&listed); err != nil {
		t.Fatalf("decode list response: %v", err)
	}
	if len(listed.Templates) != 1 {
		t.Fatalf("listed = %d templates, want 1", len(listed.Templates))
	}

	update := `{"amount":"14,99","type":"expense","category":"Subscriptions","description":"music family plan","interval":"monthly","anchor_day":1}`
	req = httptest.NewRequest(http.MethodPut, "/api/recurring/update?id="+created.ID, strings.NewReader(update))
	rec = httptest.NewRecorder()
	srv.handleUpdateRecurringTemplate(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("update status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	templates, err := store.ListRecurringTemplates(context.Background())
	if err != nil {
		t.Fatalf("list after update: %v", err)
	}
	if templates[0].Amount.Cents != 1499 {
		t.Errorf("amount cents after update = %d, want 1499", templates[0].Amount.Cents)
	}
	if templates[0].Interval != core.MonthlyInterval {
		t.Errorf("interval after update = %s, want monthly", templates[0].Interval)
	}
	if got := templates[0].LastMaterialized.Format("2006-01-02"); got != "2025-01-06" {
		t.Errorf("last materialized after update = %s, want 2025-01-06 (edits must not rewind it)", got)
	}

	req = httptest.NewRequest(http.MethodDelete, "/api/recurring/delete?id="+created.ID, nil)
	rec = httptest.NewRecorder()
	srv.handleDeleteRecurringTemplate(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("delete status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	templates, err = store.ListRecurringTemplates(context.Background())
	if err != nil {
		t.Fatalf("list after delete: %v", err)
	}
	if len(templates) != 0 {
		t.Errorf("templates after delete = %d, want 0", len(templates))
	}
}

func TestCreateRecurringTemplateRejectsBadInterval(t *testing.T) {
	srv, _ := newTestServer(t)

	body := `{"amount":"9,99","type":"expense","category":"Subscriptions","description":"music","interval":"fortnightly"}`
	req := httptest.NewRequest(http.MethodPost, "/api/recurring", strings.NewReader(body))
	rec := httptest.NewRecorder()
	srv.handleRecurring(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", rec.Code)
	}
}

func TestUpdateRecurringTemplateUnknownID(t *testing.T) {
	srv, _ := newTestServer(t)

	body := `{"amount":"9,99","type":"expense","category":"Subscriptions","description":"music","interval":"monthly","anchor_day":1}`
	req := httptest.NewRequest(http.MethodPut, "/api/recurring/update?id=missing", strings.NewReader(body))
	rec := httptest.NewRecorder()
	srv.handleUpdateRecurringTemplate(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	srv, _ := newTestServer(t)

	r := httptest.NewRequest(http.MethodDelete, "/api/summary", nil)
	rec := httptest.NewRecorder()
	srv.handleSummary(rec, r)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
	if allow := rec.Header().Get("Allow"); allow != "GET" {
		t.Errorf("Allow = %q, want GET", allow)
	}
}
