package sheets

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"

	"github.com/Veraticus/spice-ledger/internal/common"
	"github.com/Veraticus/spice-ledger/internal/model"
	"github.com/Veraticus/spice-ledger/internal/service"
	"github.com/shopspring/decimal"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

const dateLayout = "2006-01-02"

// Writer implements service.ForecastWriter for Google Sheets.
type Writer struct {
	service *sheets.Service
	logger  *slog.Logger
	config  Config
}

// NewWriter creates a new Google Sheets forecast writer.
func NewWriter(ctx context.Context, config Config, logger *slog.Logger) (*Writer, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if logger == nil {
		logger = common.Component("sheets")
	}

	srv, err := createSheetsService(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}

	return &Writer{
		config:  config,
		service: srv,
		logger:  logger,
	}, nil
}

// WriteForecast replaces the forecast sheet with the summary block followed by
// one row per occurrence.
func (w *Writer) WriteForecast(ctx context.Context, occurrences []model.Occurrence, summary *service.ForecastSummary) error {
	if summary == nil {
		return fmt.Errorf("forecast summary is required")
	}

	w.logger.Info("starting forecast export",
		"occurrences", len(occurrences),
		"date_range", fmt.Sprintf("%s to %s",
			summary.DateRange.Start.Format(dateLayout), summary.DateRange.End.Format(dateLayout)))

	spreadsheetID, err := w.getOrCreateSpreadsheet(ctx)
	if err != nil {
		return fmt.Errorf("failed to get spreadsheet: %w", err)
	}

	values := BuildForecastValues(ForecastRows(occurrences), summary)

	retryOpts := w.config.Retry

	err = common.WithRetry(ctx, func() error {
		if clearErr := w.clearSheet(ctx, spreadsheetID); clearErr != nil {
			return clearErr
		}
		return w.writeData(ctx, spreadsheetID, values)
	}, retryOpts)
	if err != nil {
		return fmt.Errorf("failed to write forecast: %w", err)
	}

	if w.config.EnableFormatting {
		err = common.WithRetry(ctx, func() error {
			return w.applyFormatting(ctx, spreadsheetID, len(values))
		}, retryOpts)
		if err != nil {
			// Formatting is cosmetic; the data is already written.
			w.logger.Warn("failed to apply formatting", "error", err)
		}
	}

	w.logger.Info("forecast export completed",
		"spreadsheet_id", spreadsheetID,
		"rows_written", len(values))

	return nil
}

// ForecastRows converts occurrences into sheet rows, sorted by date then vendor.
func ForecastRows(occurrences []model.Occurrence) []ForecastRow {
	rows := make([]ForecastRow, 0, len(occurrences))
	for _, occ := range occurrences {
		row := ForecastRow{
			Date:   occ.Date,
			Amount: decimal.NewFromFloat(occ.Amount).Round(2),
		}
		if st := occ.Original; st != nil {
			row.Vendor = st.Vendor
			row.Account = st.Account
			row.Category = st.Category
			row.Currency = st.Currency
			row.ScheduleID = st.ID
		}
		rows = append(rows, row)
	}

	sort.SliceStable(rows, func(i, j int) bool {
		if !rows[i].Date.Equal(rows[j].Date) {
			return rows[i].Date.Before(rows[j].Date)
		}
		return rows[i].Vendor < rows[j].Vendor
	})
	return rows
}

// CurrencyRows converts the summary totals into rows with two-decimal amounts.
func CurrencyRows(totals []service.CurrencyTotal) []CurrencyRow {
	rows := make([]CurrencyRow, 0, len(totals))
	for _, t := range totals {
		rows = append(rows, CurrencyRow{
			Currency: t.Currency,
			Inflow:   decimal.NewFromFloat(t.Inflow).Round(2),
			Outflow:  decimal.NewFromFloat(t.Outflow).Round(2),
			Net:      decimal.NewFromFloat(t.Net).Round(2),
			Count:    t.Count,
		})
	}
	return rows
}

// Layout of the sheet produced by BuildForecastValues.
const (
	headerRows      = 2
	forecastColumns = 7
)

// BuildForecastValues lays out the sheet: title, summary, per-currency totals,
// then the occurrence table.
func BuildForecastValues(rows []ForecastRow, summary *service.ForecastSummary) [][]any {
	currencies := CurrencyRows(summary.Currencies)
	values := make([][]any, 0, 12+len(currencies)+len(rows))

	values = append(values,
		[]any{
			"Forecast",
			fmt.Sprintf("%s - %s",
				summary.DateRange.Start.Format("Jan 2, 2006"), summary.DateRange.End.Format("Jan 2, 2006")),
		},
		[]any{},
		[]any{"Summary"},
		[]any{"Projected Occurrences", summary.Projected},
		[]any{"Already Recorded", summary.Duplicates},
		[]any{},
		[]any{"Currency", "Inflow", "Outflow", "Net", "Count"},
	)

	for _, c := range currencies {
		values = append(values, []any{
			c.Currency,
			c.Inflow.InexactFloat64(),
			c.Outflow.InexactFloat64(),
			c.Net.InexactFloat64(),
			c.Count,
		})
	}

	values = append(values,
		[]any{},
		[]any{"Occurrences"},
		[]any{"Date", "Vendor", "Amount", "Currency", "Account", "Category", "Schedule"},
	)

	for _, r := range rows {
		values = append(values, []any{
			r.Date.Format(dateLayout),
			r.Vendor,
			r.Amount.InexactFloat64(),
			r.Currency,
			r.Account,
			r.Category,
			r.ScheduleID,
		})
	}

	return values
}

func createSheetsService(ctx context.Context, config Config) (*sheets.Service, error) {
	var tokenSource oauth2.TokenSource

	switch config.Auth() {
	case AuthServiceAccount:
		jsonKey, err := os.ReadFile(config.ServiceAccountPath)
		if err != nil {
			return nil, fmt.Errorf("unable to read service account key file: %w", err)
		}

		jwtConfig, err := google.JWTConfigFromJSON(jsonKey, sheets.SpreadsheetsScope)
		if err != nil {
			return nil, fmt.Errorf("unable to parse service account key: %w", err)
		}

		tokenSource = jwtConfig.TokenSource(ctx)
	case AuthOAuth:
		oauthCfg := OAuth2Config{
			ClientID:     config.ClientID,
			ClientSecret: config.ClientSecret,
			TokenFile:    config.TokenFile,
		}

		token := &oauth2.Token{RefreshToken: config.RefreshToken, TokenType: "Bearer"}
		if config.RefreshToken == "" {
			stored, err := LoadToken(config.TokenFile)
			if err != nil {
				return nil, fmt.Errorf("no refresh token configured and none stored at %s: %w", config.TokenFile, err)
			}
			token = stored
		}

		tokenSource = oauthCfg.oauth2().TokenSource(ctx, token)
	default:
		return nil, ErrNoAuth
	}

	httpClient := oauth2.NewClient(ctx, tokenSource)
	srv, err := sheets.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("unable to create sheets service: %w", err)
	}

	return srv, nil
}

func (w *Writer) getOrCreateSpreadsheet(ctx context.Context) (string, error) {
	if w.config.SpreadsheetID != "" {
		_, err := w.service.Spreadsheets.Get(w.config.SpreadsheetID).Context(ctx).Do()
		if err != nil {
			return "", fmt.Errorf("unable to access spreadsheet %s: %w", w.config.SpreadsheetID, err)
		}
		return w.config.SpreadsheetID, nil
	}

	spreadsheet := &sheets.Spreadsheet{
		Properties: &sheets.SpreadsheetProperties{
			Title:    w.config.SpreadsheetName,
			TimeZone: w.config.TimeZone,
		},
		Sheets: []*sheets.Sheet{
			{Properties: &sheets.SheetProperties{Title: w.config.ForecastSheet}},
		},
	}

	created, err := w.service.Spreadsheets.Create(spreadsheet).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("unable to create spreadsheet: %w", err)
	}

	w.logger.Info("created new spreadsheet",
		"id", created.SpreadsheetId,
		"url", created.SpreadsheetUrl)

	return created.SpreadsheetId, nil
}

func (w *Writer) clearSheet(ctx context.Context, spreadsheetID string) error {
	_, err := w.service.Spreadsheets.Values.
		Clear(spreadsheetID, w.config.ForecastSheet+"!A:Z", &sheets.ClearValuesRequest{}).
		Context(ctx).
		Do()
	return err
}

func (w *Writer) writeData(ctx context.Context, spreadsheetID string, values [][]any) error {
	for i := 0; i < len(values); i += w.config.BatchSize {
		end := min(i+w.config.BatchSize, len(values))
		batch := values[i:end]

		rangeStr := fmt.Sprintf("%s!A%d", w.config.ForecastSheet, i+1)
		_, err := w.service.Spreadsheets.Values.Update(spreadsheetID, rangeStr, &sheets.ValueRange{Values: batch}).
			ValueInputOption("RAW").
			Context(ctx).
			Do()
		if err != nil {
			return fmt.Errorf("failed to write batch starting at row %d: %w", i+1, err)
		}

		w.logger.Debug("wrote batch", "start_row", i+1, "rows", len(batch))
	}

	return nil
}

func (w *Writer) sheetID(ctx context.Context, spreadsheetID string) (int64, error) {
	ss, err := w.service.Spreadsheets.Get(spreadsheetID).Context(ctx).Do()
	if err != nil {
		return 0, err
	}
	for _, sh := range ss.Sheets {
		if sh.Properties != nil && sh.Properties.Title == w.config.ForecastSheet {
			return sh.Properties.SheetId, nil
		}
	}
	return 0, fmt.Errorf("sheet %q not found", w.config.ForecastSheet)
}

func (w *Writer) applyFormatting(ctx context.Context, spreadsheetID string, totalRows int) error {
	id, err := w.sheetID(ctx, spreadsheetID)
	if err != nil {
		return err
	}

	bold := func(startRow, endRow, startCol, endCol int64, size int64) *sheets.Request {
		return &sheets.Request{
			RepeatCell: &sheets.RepeatCellRequest{
				Range: &sheets.GridRange{
					SheetId:          id,
					StartRowIndex:    startRow,
					EndRowIndex:      endRow,
					StartColumnIndex: startCol,
					EndColumnIndex:   endCol,
				},
				Cell: &sheets.CellData{
					UserEnteredFormat: &sheets.CellFormat{
						TextFormat: &sheets.TextFormat{Bold: true, FontSize: size},
					},
				},
				Fields: "userEnteredFormat.textFormat",
			},
		}
	}

	requests := []*sheets.Request{
		bold(0, 1, 0, 2, 16),
		bold(2, int64(totalRows), 0, 1, 10),
		{
			RepeatCell: &sheets.RepeatCellRequest{
				Range: &sheets.GridRange{
					SheetId:          id,
					StartRowIndex:    0,
					EndRowIndex:      int64(totalRows),
					StartColumnIndex: 1,
					EndColumnIndex:   4,
				},
				Cell: &sheets.CellData{
					UserEnteredFormat: &sheets.CellFormat{
						NumberFormat: &sheets.NumberFormat{
							Type:    "NUMBER",
							Pattern: w.config.CurrencyPattern,
						},
					},
				},
				Fields: "userEnteredFormat.numberFormat",
			},
		},
		{
			AutoResizeDimensions: &sheets.AutoResizeDimensionsRequest{
				Dimensions: &sheets.DimensionRange{
					SheetId:    id,
					Dimension:  "COLUMNS",
					StartIndex: 0,
					EndIndex:   forecastColumns,
				},
			},
		},
		{
			UpdateSheetProperties: &sheets.UpdateSheetPropertiesRequest{
				Properties: &sheets.SheetProperties{
					SheetId:        id,
					GridProperties: &sheets.GridProperties{FrozenRowCount: headerRows},
				},
				Fields: "gridProperties.frozenRowCount",
			},
		},
	}

	_, err = w.service.Spreadsheets.BatchUpdate(spreadsheetID, &sheets.BatchUpdateSpreadsheetRequest{
		Requests: requests,
	}).Context(ctx).Do()
	return err
}

var _ service.ForecastWriter = (*Writer)(nil)
