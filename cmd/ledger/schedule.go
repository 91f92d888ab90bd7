package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/Veraticus/spice-ledger/internal/cli"
	"github.com/Veraticus/spice-ledger/internal/config"
	"github.com/Veraticus/spice-ledger/internal/csvio"
	"github.com/Veraticus/spice-ledger/internal/dedupe"
	"github.com/Veraticus/spice-ledger/internal/model"
	"github.com/Veraticus/spice-ledger/internal/schedule"
	"github.com/Veraticus/spice-ledger/internal/service"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

func scheduleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "schedule",
		Aliases: []string{"schedules"},
		Short:   "Manage recurring transactions",
	}

	cmd.AddCommand(scheduleAddCmd())
	cmd.AddCommand(scheduleListCmd())
	cmd.AddCommand(scheduleDeleteCmd())
	cmd.AddCommand(scheduleIgnoreCmd())
	cmd.AddCommand(scheduleImportCmd())
	cmd.AddCommand(scheduleMaterializeCmd())

	return cmd
}

func scheduleAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a recurring transaction",
		Example: `  ledger schedule add --date 2024-01-01 --frequency Monthly --amount -1200 \
    --account Checking --vendor Landlord --category Housing
  ledger schedule add --date 2024-01-05 --frequency 2w --amount 2500 --account Checking --vendor Payroll`,
		RunE: runScheduleAdd,
	}

	cmd.Flags().String("id", "", "Schedule ID (default: generated)")
	cmd.Flags().String("date", "", "First (next) occurrence, YYYY-MM-DD")
	cmd.Flags().String("end", "", "Stop before this date, YYYY-MM-DD")
	cmd.Flags().String("frequency", model.FrequencyMonthly, "Daily, Weekly, Monthly, Yearly, One-time or <N>d|w|m|y")
	cmd.Flags().String("amount", "", "Signed amount; negative for money going out")
	cmd.Flags().String("account", "", "Account name")
	cmd.Flags().String("currency", "", "Currency (default: the account's)")
	cmd.Flags().String("vendor", "", "Vendor")
	cmd.Flags().String("category", "", "Category")
	cmd.Flags().String("sub-category", "", "Sub-category")
	cmd.Flags().String("remarks", "", "Remarks")
	_ = cmd.MarkFlagRequired("date")
	_ = cmd.MarkFlagRequired("amount")
	_ = cmd.MarkFlagRequired("account")

	return cmd
}

func runScheduleAdd(cmd *cobra.Command, _ []string) error {
	flags := cmd.Flags()
	get := func(name string) string {
		v, _ := flags.GetString(name)
		return strings.TrimSpace(v)
	}

	date, err := parseDay(get("date"), time.Time{})
	if err != nil {
		return err
	}
	freq, err := parseScheduleFrequency(get("frequency"))
	if err != nil {
		return err
	}
	amount, err := csvio.ParseAmount(get("amount"), '.')
	if err != nil {
		return err
	}

	st := model.ScheduledTransaction{
		ID:          get("id"),
		Date:        date,
		Frequency:   freq,
		Amount:      amount.InexactFloat64(),
		Account:     get("account"),
		Currency:    strings.ToUpper(get("currency")),
		Vendor:      get("vendor"),
		Category:    get("category"),
		SubCategory: get("sub-category"),
		Remarks:     get("remarks"),
	}
	if st.ID == "" {
		st.ID = uuid.NewString()
	}
	if end := get("end"); end != "" {
		endDate, err := parseDay(end, time.Time{})
		if err != nil {
			return err
		}
		st.EndDate = &endDate
	}

	store, err := initStorage(cmd.Context())
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	if err := store.SaveScheduledTransaction(cmd.Context(), &st); err != nil {
		return fmt.Errorf("failed to save schedule: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Scheduled %s (%s) every %s from %s",
		st.ID, st.Vendor, st.Frequency.String(), st.Date.Format(dateLayout))))
	return nil
}

func scheduleListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List recurring transactions with their next occurrence",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := initStorage(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			schedules, err := store.GetScheduledTransactions(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to load schedules: %w", err)
			}
			if len(schedules) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatInfo("No scheduled transactions"))
				return nil
			}

			fmt.Fprintln(cmd.OutOrStdout(), renderSchedules(schedules, time.Now()))
			return nil
		},
	}
}

// nextOccurrences maps schedule IDs to their first occurrence on or after now,
// looking at most five years ahead.
func nextOccurrences(schedules []model.ScheduledTransaction, now time.Time) map[string]time.Time {
	next := make(map[string]time.Time, len(schedules))
	for i := range schedules {
		occs := schedule.GenerateOccurrences(schedules[i:i+1], now, now.AddDate(5, 0, 0))
		if len(occs) > 0 {
			next[schedules[i].ID] = occs[0].Date
		}
	}
	return next
}

func renderSchedules(schedules []model.ScheduledTransaction, now time.Time) string {
	next := nextOccurrences(schedules, now)

	rows := make([][]string, 0, len(schedules))
	for _, st := range schedules {
		nextDay := "-"
		if d, ok := next[st.ID]; ok {
			nextDay = d.Format(dateLayout)
		}
		end := ""
		if st.EndDate != nil {
			end = st.EndDate.Format(dateLayout)
		}
		rows = append(rows, []string{
			st.ID,
			st.Frequency.String(),
			nextDay,
			end,
			st.Account,
			st.Vendor,
			cli.FormatAmount(decimal.NewFromFloat(st.Amount), st.Currency),
			fmt.Sprintf("%d", len(st.IgnoredDates)),
		})
	}
	return cli.RenderTable([]string{"ID", "Frequency", "Next", "Ends", "Account", "Vendor", "Amount", "Skipped"}, rows)
}

func scheduleDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a recurring transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			st, err := store.GetScheduledTransaction(ctx, args[0])
			if err != nil {
				return fmt.Errorf("failed to find schedule: %w", err)
			}

			prompter := cli.NewPrompter(cmd.InOrStdin(), cmd.OutOrStdout())
			prompter.AssumeYes, _ = cmd.Flags().GetBool("yes")
			ok, err := prompter.Confirm(ctx, fmt.Sprintf("Delete %s (%s, %s)?", st.ID, st.Vendor, st.Frequency.String()))
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatInfo("Nothing deleted"))
				return nil
			}

			if err := store.DeleteScheduledTransaction(ctx, st.ID); err != nil {
				return fmt.Errorf("failed to delete schedule: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Deleted "+st.ID))
			return nil
		},
	}
	cmd.Flags().BoolP("yes", "y", false, "Do not ask for confirmation")
	return cmd
}

func scheduleIgnoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ignore <id> <date>",
		Short: "Skip one occurrence of a recurring transaction",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			day, err := parseDay(args[1], time.Time{})
			if err != nil {
				return err
			}

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			st, err := store.GetScheduledTransaction(ctx, args[0])
			if err != nil {
				return fmt.Errorf("failed to find schedule: %w", err)
			}
			if st.IsIgnored(day) {
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatInfo("Already skipped"))
				return nil
			}

			st.IgnoredDates = append(st.IgnoredDates, day)
			if err := store.SaveScheduledTransaction(ctx, st); err != nil {
				return fmt.Errorf("failed to save schedule: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Skipping %s on %s", st.ID, day.Format(dateLayout))))
			return nil
		},
	}
}

func scheduleImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.yaml>",
		Short: "Create or update recurring transactions from a YAML file",
		Long: `Create or update recurring transactions from a YAML file:

  schedules:
    - id: rent
      date: 2024-01-01
      frequency: Monthly
      amount: -1200
      currency: USD
      account: Checking
      vendor: Landlord
      category: Housing
      end_date: 2025-01-01
      ignored_dates: [2024-06-01]

Entries with an existing id replace the stored schedule.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(config.ExpandPath(args[0])) // #nosec G304
			if err != nil {
				return fmt.Errorf("failed to open schedule file: %w", err)
			}
			defer func() { _ = f.Close() }()

			schedules, err := parseScheduleFile(f)
			if err != nil {
				return err
			}

			store, err := initStorage(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if err := saveSchedules(cmd.Context(), store, schedules); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Imported %d schedules", len(schedules))))
			return nil
		},
	}
}

// saveSchedules upserts all schedules atomically.
func saveSchedules(ctx context.Context, store service.Storage, schedules []model.ScheduledTransaction) error {
	tx, err := store.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for i := range schedules {
		if err := tx.SaveScheduledTransaction(ctx, &schedules[i]); err != nil {
			return fmt.Errorf("failed to save schedule %s: %w", schedules[i].ID, err)
		}
	}
	return tx.Commit()
}

func scheduleMaterializeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "materialize",
		Short: "Record scheduled occurrences that are now due as transactions",
		Long: `Turn every scheduled occurrence up to --through into a real transaction.

Each schedule resumes the day after it was last processed. Occurrences that
already exist in the ledger (same day, vendor and amount) are not recorded
twice.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			throughFlag, _ := cmd.Flags().GetString("through")
			through, err := parseDay(throughFlag, model.StartOfDay(time.Now()))
			if err != nil {
				return err
			}

			store, err := initStorage(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			result, err := materializeSchedules(cmd.Context(), store, through)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf(
				"Recorded %d transactions from %d schedules (%d already present)",
				result.Inserted, result.Schedules, result.Duplicates)))
			return nil
		},
	}
	cmd.Flags().String("through", "", "Last day to materialize, YYYY-MM-DD (default: today)")
	return cmd
}

type materializeResult struct {
	Schedules  int
	Inserted   int
	Duplicates int
}

// materializeSchedules records every occurrence in (last processed, through]
// for each schedule and advances its processing mark, all in one database
// transaction.
func materializeSchedules(ctx context.Context, store service.Storage, through time.Time) (materializeResult, error) {
	var result materializeResult

	tx, err := store.BeginTx(ctx)
	if err != nil {
		return result, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	schedules, err := tx.GetScheduledTransactions(ctx)
	if err != nil {
		return result, fmt.Errorf("failed to load schedules: %w", err)
	}
	currencyFor, err := currencyLookup(ctx, tx)
	if err != nil {
		return result, err
	}

	end := model.StartOfDay(through).AddDate(0, 0, 1)
	for i := range schedules {
		st := &schedules[i]
		start := st.Date
		if st.LastProcessed != nil {
			start = model.StartOfDay(*st.LastProcessed).AddDate(0, 0, 1)
		}
		if !start.Before(end) {
			continue
		}

		occs := schedule.GenerateOccurrences(schedules[i:i+1], start, end)
		projected := schedule.Materialize(occs, currencyFor)

		// A day of slack on each side absorbs zone differences between
		// stored and projected dates.
		recorded, err := transactionsIn(ctx, tx, service.DateRange{
			Start: model.StartOfDay(start).AddDate(0, 0, -1),
			End:   end.AddDate(0, 0, 1),
		}, st.Account)
		if err != nil {
			return result, err
		}

		fresh := dedupe.Filter(recorded, projected)
		result.Duplicates += len(projected) - len(fresh)

		if len(fresh) > 0 {
			inserted, err := tx.SaveTransactions(ctx, fresh)
			if err != nil {
				return result, fmt.Errorf("failed to save occurrences of %s: %w", st.ID, err)
			}
			result.Inserted += inserted
		}

		if err := tx.MarkScheduleProcessed(ctx, st.ID, end.AddDate(0, 0, -1)); err != nil {
			return result, fmt.Errorf("failed to mark %s processed: %w", st.ID, err)
		}
		result.Schedules++
		slog.Debug("Materialized schedule", "id", st.ID, "occurrences", len(occs), "recorded", len(fresh))
	}

	if err := tx.Commit(); err != nil {
		return result, fmt.Errorf("failed to commit: %w", err)
	}
	return result, nil
}
