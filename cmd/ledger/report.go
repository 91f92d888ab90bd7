package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Veraticus/spice-ledger/internal/cli"
	"github.com/Veraticus/spice-ledger/internal/config"
	"github.com/Veraticus/spice-ledger/internal/model"
	"github.com/Veraticus/spice-ledger/internal/report"
	"github.com/Veraticus/spice-ledger/internal/service"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func reportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Summarize the ledger",
	}

	cmd.AddCommand(reportBalancesCmd())
	cmd.AddCommand(reportSummaryCmd())
	cmd.AddCommand(reportBudgetsCmd())
	return cmd
}

func converterFromConfig() (*report.Converter, error) {
	cur, err := config.LoadCurrency(viper.GetViper())
	if err != nil {
		return nil, err
	}
	return report.NewConverter(cur.Base, cur.Rates), nil
}

func reportBalancesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "balances",
		Short: "Show each account's balance",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			asOfFlag, _ := cmd.Flags().GetString("as-of")
			asOf, err := parseDay(asOfFlag, model.StartOfDay(time.Now()))
			if err != nil {
				return err
			}

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			accounts, err := store.GetAccounts(ctx)
			if err != nil {
				return fmt.Errorf("failed to load accounts: %w", err)
			}
			txns, err := transactionsUntil(ctx, store, asOf.AddDate(0, 0, 1))
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), renderBalances(accounts, report.AccountStats(txns, asOf)))
			return nil
		},
	}
	cmd.Flags().String("as-of", "", "Balance date, YYYY-MM-DD (default: today)")
	return cmd
}

// transactionsUntil loads every transaction dated before end.
func transactionsUntil(ctx context.Context, store service.Storage, end time.Time) ([]model.Transaction, error) {
	txns, err := store.GetTransactions(ctx, service.TransactionFilter{EndDate: &end})
	if err != nil {
		return nil, fmt.Errorf("failed to load transactions: %w", err)
	}
	return txns, nil
}

func renderBalances(accounts []model.Account, stats report.AccountSummary) string {
	if len(accounts) == 0 {
		return cli.FormatInfo("No accounts recorded")
	}

	rows := make([][]string, 0, len(accounts))
	for _, a := range accounts {
		rows = append(rows, []string{
			a.Name,
			string(a.Type),
			cli.FormatAmount(stats.Balance(a), a.Currency),
			fmt.Sprintf("%d", stats.Counts[report.AccountKey(a.Name)]),
		})
	}
	return cli.RenderTable([]string{"Account", "Type", "Balance", "Transactions"}, rows)
}

func reportSummaryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Show income, expenses and category totals",
		Long: `Show income, expenses and category totals over a date range.

Amounts are converted to currency.base using currency.rates. Currencies
without a rate are counted at face value and listed in a warning. Linked
transfers are excluded.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			flags := cmd.Flags()
			from, _ := flags.GetString("from")
			to, _ := flags.GetString("to")
			days, _ := flags.GetInt("days")

			r, err := dateRange(from, to, days)
			if err != nil {
				return err
			}
			conv, err := converterFromConfig()
			if err != nil {
				return err
			}

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			txns, err := transactionsIn(ctx, store, r, "")
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), renderSummary(report.Summarize(txns, conv), report.CurrencyTotals(txns)))
			return nil
		},
	}
	cmd.Flags().String("from", "", "First day, YYYY-MM-DD (default: 30 days before --to)")
	cmd.Flags().String("to", "", "Last day, YYYY-MM-DD (default: today)")
	cmd.Flags().Int("days", 30, "Days to look back when --from is not set")
	return cmd
}

func renderSummary(s report.Summary, totals []service.CurrencyTotal) string {
	var b strings.Builder

	overview := fmt.Sprintf("Income:   %s\nExpenses: %s\nNet:      %s",
		cli.FormatAmount(s.Income, s.Base),
		cli.FormatAmount(s.Expenses.Neg(), s.Base),
		cli.FormatAmount(s.Net, s.Base))
	if s.Transfers > 0 {
		overview += fmt.Sprintf("\n%d linked transfer legs excluded", s.Transfers)
	}
	b.WriteString(cli.RenderBox("Summary", overview))
	b.WriteString("\n")

	if len(s.Categories) > 0 {
		rows := make([][]string, 0, len(s.Categories))
		for _, c := range s.Categories {
			rows = append(rows, []string{c.Category, cli.FormatAmount(c.Amount, s.Base), fmt.Sprintf("%d", c.Count)})
		}
		b.WriteString(cli.RenderTable([]string{"Category", "Amount", "Count"}, rows))
		b.WriteString("\n")
	}

	if len(totals) > 1 {
		rows := make([][]string, 0, len(totals))
		for _, t := range totals {
			rows = append(rows, []string{
				t.Currency,
				cli.FormatAmount(decimal.NewFromFloat(t.Inflow), t.Currency),
				cli.FormatAmount(decimal.NewFromFloat(-t.Outflow), t.Currency),
				fmt.Sprintf("%d", t.Count),
			})
		}
		b.WriteString(cli.RenderTable([]string{"Currency", "In", "Out", "Count"}, rows))
		b.WriteString("\n")
	}

	if len(s.Unconverted) > 0 {
		b.WriteString(cli.FormatWarning("No rate for " + strings.Join(s.Unconverted, ", ") + "; counted at face value"))
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func reportBudgetsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "budgets",
		Short: "Compare spending against the budgets in the config file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			conv, err := converterFromConfig()
			if err != nil {
				return err
			}
			budgets, err := config.LoadBudgets(viper.GetViper(), time.Now(), conv.Base)
			if err != nil {
				return err
			}
			if len(budgets) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatInfo("No budgets configured"))
				return nil
			}

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			statuses, err := budgetStatuses(ctx, store, budgets, conv)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderBudgets(statuses))
			return nil
		},
	}
}

// budgetStatuses loads the transactions spanning every budget window once
// and measures each budget against them.
func budgetStatuses(ctx context.Context, store service.Storage, budgets []model.Budget, conv *report.Converter) ([]report.BudgetStatus, error) {
	var filter service.TransactionFilter
	var start, end time.Time
	openStart, openEnd := false, false
	for _, b := range budgets {
		if b.Start.IsZero() {
			openStart = true
		} else if start.IsZero() || b.Start.Before(start) {
			start = b.Start
		}
		if b.End.IsZero() {
			openEnd = true
		} else if b.End.After(end) {
			end = b.End
		}
	}
	if !openStart {
		s := model.StartOfDay(start).AddDate(0, 0, -1)
		filter.StartDate = &s
	}
	if !openEnd {
		e := model.StartOfDay(end).AddDate(0, 0, 2)
		filter.EndDate = &e
	}

	txns, err := store.GetTransactions(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to load transactions: %w", err)
	}

	statuses := make([]report.BudgetStatus, 0, len(budgets))
	for _, b := range budgets {
		statuses = append(statuses, report.BudgetSpent(b, txns, conv))
	}
	return statuses, nil
}

func renderBudgets(statuses []report.BudgetStatus) string {
	rows := make([][]string, 0, len(statuses))
	var missing []string
	for _, s := range statuses {
		label := s.Budget.Category
		if s.Budget.SubCategory != "" {
			label += " / " + s.Budget.SubCategory
		}
		window := s.Budget.Start.Format(dateLayout) + " .. "
		if !s.Budget.End.IsZero() {
			window += s.Budget.End.Format(dateLayout)
		}

		pct := fmt.Sprintf("%.0f%%", s.Percent)
		if s.Percent > 100 {
			pct = cli.FormatError(pct)
		}

		rows = append(rows, []string{
			label,
			window,
			cli.FormatAmount(decimal.NewFromFloat(s.Budget.Target), s.Budget.Currency),
			cli.FormatAmount(s.Spent, s.Budget.Currency),
			cli.FormatAmount(s.Remaining, s.Budget.Currency),
			pct,
		})
		missing = append(missing, s.Unconverted...)
	}

	out := cli.RenderTable([]string{"Budget", "Window", "Target", "Spent", "Remaining", "Used"}, rows)
	if len(missing) > 0 {
		out += "\n" + cli.FormatWarning("No rate for "+strings.Join(dedupeStrings(missing), ", ")+"; counted at face value")
	}
	return out
}

func dedupeStrings(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := values[:0]
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
