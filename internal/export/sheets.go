// Package export appends created transactions to a Google spreadsheet so
// the ledger stays readable outside the app.
package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"finsync/internal/core"
)

// SheetsExporter appends one row per transaction to a year-named sheet
// (e.g. "2025 Transactions").
type SheetsExporter struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetBase     string
}

// NewSheetsExporter creates an exporter from environment configuration.
// Required: GOOGLE_SPREADSHEET_ID. Auth comes from service-account
// credentials: GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE,
// or GOOGLE_APPLICATION_CREDENTIALS.
func NewSheetsExporter(ctx context.Context) (*SheetsExporter, error) {
	spreadsheetID := strings.TrimSpace(os.Getenv("GOOGLE_SPREADSHEET_ID"))
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}

	sheetBase := strings.TrimSpace(os.Getenv("GOOGLE_SHEET_NAME"))
	if sheetBase == "" {
		sheetBase = "Transactions"
	}

	svc, err := newSheetsService(ctx)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	return &SheetsExporter{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheetBase:     sheetBase,
	}, nil
}

func newSheetsService(ctx context.Context) (*gsheet.Service, error) {
	serviceAccountJSON := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	serviceAccountFile := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	switch {
	case serviceAccountJSON != "":
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		data, err := os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		credentialsJSON = data
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	return service, nil
}

// Append adds a transaction row: date, type, description, category, amount,
// id. Amounts are exported in currency units.
func (e *SheetsExporter) Append(ctx context.Context, tx core.Transaction) error {
	if e.svc == nil {
		return errors.New("sheets service not initialized")
	}
	if err := tx.Validate(); err != nil {
		return fmt.Errorf("validate transaction: %w", err)
	}

	sheet := fmt.Sprintf("%d %s", tx.Date.Year(), e.sheetBase)
	rng := fmt.Sprintf("%s!A:F", sheet)

	values := &gsheet.ValueRange{
		Values: [][]interface{}{{
			tx.Date.Format("2006-01-02"),
			string(tx.Type),
			tx.Description,
			tx.Category,
			tx.Amount.Units(),
			tx.ID,
		}},
	}

	start := time.Now()
	_, err := e.svc.Spreadsheets.Values.Append(e.spreadsheetID, rng, values).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("append to sheet %s: %w", sheet, err)
	}

	slog.InfoContext(ctx, "Transaction exported to spreadsheet",
		"transaction_id", tx.ID,
		"sheet", sheet,
		"duration", time.Since(start))

	return nil
}
