package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/Veraticus/spice-ledger/internal/cli"
	"github.com/Veraticus/spice-ledger/internal/common"
	"github.com/Veraticus/spice-ledger/internal/config"
	"github.com/Veraticus/spice-ledger/internal/csvio"
	"github.com/Veraticus/spice-ledger/internal/dedupe"
	"github.com/Veraticus/spice-ledger/internal/model"
	"github.com/Veraticus/spice-ledger/internal/report"
	"github.com/Veraticus/spice-ledger/internal/schedule"
	"github.com/Veraticus/spice-ledger/internal/service"
	"github.com/Veraticus/spice-ledger/internal/sheets"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const defaultForecastDays = 90

func forecastCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "forecast",
		Short: "Project recurring transactions over a date range",
		Long: `Project every recurring transaction over a date range.

Occurrences that already exist in the ledger on the same day, for the same
vendor and amount, are left out so that recorded and projected money is not
counted twice.`,
		Example: `  ledger forecast
  ledger forecast --from 2024-01-01 --to 2024-12-31 --csv forecast.csv
  ledger forecast --sheets`,
		RunE: runForecast,
	}

	cmd.Flags().String("from", "", "First projected day, YYYY-MM-DD (default: today)")
	cmd.Flags().String("to", "", "Last projected day, YYYY-MM-DD (default: 90 days after --from)")
	cmd.Flags().String("csv", "", "Write the projection as CSV to this file (\"-\" for stdout)")
	cmd.Flags().Bool("sheets", false, "Publish the projection to Google Sheets")

	return cmd
}

// forecastRange resolves --from/--to with the forecast's forward-looking defaults.
func forecastRange(from, to string, now time.Time) (service.DateRange, error) {
	start, err := parseDay(from, model.StartOfDay(now))
	if err != nil {
		return service.DateRange{}, err
	}
	end, err := parseDay(to, start.AddDate(0, 0, defaultForecastDays))
	if err != nil {
		return service.DateRange{}, err
	}
	if start.After(end) {
		return service.DateRange{}, fmt.Errorf("--from %s is after --to %s", start.Format(dateLayout), end.Format(dateLayout))
	}
	return service.DateRange{Start: start, End: end.AddDate(0, 0, 1)}, nil
}

type forecast struct {
	Summary service.ForecastSummary
	// Occurrences carry template copies whose currency is resolved.
	Occurrences  []model.Occurrence
	Transactions []model.Transaction
}

// buildForecast projects every schedule over r and drops occurrences already
// recorded in the ledger.
func buildForecast(ctx context.Context, store service.Storage, r service.DateRange) (*forecast, error) {
	schedules, err := store.GetScheduledTransactions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load schedules: %w", err)
	}
	currencyFor, err := currencyLookup(ctx, store)
	if err != nil {
		return nil, err
	}

	occs := schedule.GenerateOccurrences(schedules, r.Start, r.End)
	schedule.SortOccurrences(occs)
	projected := schedule.Materialize(occs, currencyFor)

	// Recorded rows may sit a day either side once zones are applied.
	recorded, err := transactionsIn(ctx, store, service.DateRange{
		Start: r.Start.AddDate(0, 0, -1),
		End:   r.End.AddDate(0, 0, 1),
	}, "")
	if err != nil {
		return nil, err
	}
	lookup := dedupe.BuildLookup(recorded)

	f := &forecast{Summary: service.ForecastSummary{DateRange: r}}
	resolved := make(map[string]*model.ScheduledTransaction)

	i := 0
	for _, occ := range occs {
		if occ.Original == nil {
			continue
		}
		txn := projected[i]
		i++

		if lookup.Contains(txn) {
			f.Summary.Duplicates++
			continue
		}

		tmpl, ok := resolved[occ.Original.ID]
		if !ok {
			cp := *occ.Original
			cp.Currency = txn.Currency
			tmpl = &cp
			resolved[cp.ID] = tmpl
		}
		occ.Original = tmpl

		f.Occurrences = append(f.Occurrences, occ)
		f.Transactions = append(f.Transactions, txn)
	}

	f.Summary.Projected = len(f.Occurrences)
	f.Summary.Currencies = report.OccurrenceTotals(f.Occurrences)

	slog.Debug("Built forecast",
		"schedules", len(schedules),
		"projected", f.Summary.Projected,
		"duplicates", f.Summary.Duplicates)
	return f, nil
}

func runForecast(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	flags := cmd.Flags()
	from, _ := flags.GetString("from")
	to, _ := flags.GetString("to")
	csvPath, _ := flags.GetString("csv")
	toSheets, _ := flags.GetBool("sheets")

	r, err := forecastRange(from, to, time.Now())
	if err != nil {
		return err
	}

	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	f, err := buildForecast(ctx, store, r)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	switch {
	case csvPath != "":
		if err := writeForecastCSV(out, csvPath, f.Transactions); err != nil {
			return err
		}
	case toSheets:
		cfg, err := config.LoadSheetsConfig(viper.GetViper())
		if err != nil {
			return common.NewUserError("Google Sheets is not configured; set sheets.* in the config file or run 'ledger auth sheets'", err)
		}
		writer, err := sheets.NewWriter(ctx, *cfg, common.Component("sheets"))
		if err != nil {
			return fmt.Errorf("failed to connect to Google Sheets: %w", err)
		}
		if err := publishForecast(ctx, writer, f); err != nil {
			return err
		}
		fmt.Fprintln(out, cli.FormatSuccess(fmt.Sprintf("Published %d occurrences to Google Sheets", f.Summary.Projected)))
	default:
		fmt.Fprintln(out, renderForecast(f))
	}
	return nil
}

func publishForecast(ctx context.Context, w service.ForecastWriter, f *forecast) error {
	if err := w.WriteForecast(ctx, f.Occurrences, &f.Summary); err != nil {
		return fmt.Errorf("failed to publish forecast: %w", err)
	}
	return nil
}

func writeForecastCSV(out io.Writer, path string, txns []model.Transaction) error {
	writer := csvio.Writer{DateFormat: dateLayout}
	if path == "-" {
		return writer.Write(out, txns)
	}

	f, err := os.Create(config.ExpandPath(path)) // #nosec G304
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := writer.Write(f, txns); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	fmt.Fprintln(out, cli.FormatSuccess(fmt.Sprintf("Wrote %d projected transactions to %s", len(txns), path)))
	return nil
}

func renderForecast(f *forecast) string {
	last := f.Summary.DateRange.End.AddDate(0, 0, -1)
	title := cli.FormatTitle(fmt.Sprintf("Forecast %s to %s", f.Summary.DateRange.Start.Format(dateLayout), last.Format(dateLayout)))
	if len(f.Transactions) == 0 {
		return title + "\n" + cli.FormatInfo("Nothing scheduled in this range")
	}

	totals := make([][]string, 0, len(f.Summary.Currencies))
	for _, t := range f.Summary.Currencies {
		totals = append(totals, []string{
			t.Currency,
			cli.FormatAmount(decimal.NewFromFloat(t.Inflow), t.Currency),
			cli.FormatAmount(decimal.NewFromFloat(-t.Outflow), t.Currency),
			cli.FormatAmount(decimal.NewFromFloat(t.Net), t.Currency),
			fmt.Sprintf("%d", t.Count),
		})
	}

	footer := fmt.Sprintf("%d projected, %d already recorded", f.Summary.Projected, f.Summary.Duplicates)
	return title + "\n" +
		renderTransactions(f.Transactions) + "\n" +
		cli.RenderTable([]string{"Currency", "In", "Out", "Net", "Count"}, totals) + "\n" +
		cli.FormatInfo(footer)
}
