package main

import (
	"context"
	"fmt"

	"github.com/Veraticus/spice-ledger/internal/cli"
	"github.com/Veraticus/spice-ledger/internal/config"
	"github.com/Veraticus/spice-ledger/internal/model"
	"github.com/Veraticus/spice-ledger/internal/service"
	"github.com/Veraticus/spice-ledger/internal/transfer"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func transfersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "transfers",
		Short: "Find and link transfers between your own accounts",
		Long: `Find pairs of transactions that look like both legs of a transfer:
same calendar day in transfers.timezone, same absolute amount, opposite
signs. Transactions already linked are ignored.

With --link the pairs are recorded so reports stop counting them as
income and expenses.`,
		RunE: runTransfers,
	}

	cmd.Flags().String("from", "", "First day, YYYY-MM-DD (default: 30 days before --to)")
	cmd.Flags().String("to", "", "Last day, YYYY-MM-DD (default: today)")
	cmd.Flags().Int("days", 30, "Days to look back when --from is not set")
	cmd.Flags().Bool("link", false, "Link the detected pairs")
	cmd.Flags().BoolP("yes", "y", false, "Do not ask for confirmation")

	cmd.AddCommand(transfersUnlinkCmd())
	return cmd
}

// findTransfers matches the unlinked transactions in r.
func findTransfers(ctx context.Context, store service.Storage, r service.DateRange, matcher *transfer.Matcher) ([]transfer.Pair, error) {
	txns, err := transactionsIn(ctx, store, r, "")
	if err != nil {
		return nil, err
	}

	unlinked := make([]model.Transaction, 0, len(txns))
	for _, t := range txns {
		if !t.IsTransfer() {
			unlinked = append(unlinked, t)
		}
	}
	return matcher.Match(unlinked), nil
}

// linkTransfers records every pair under a fresh transfer ID in one database
// transaction.
func linkTransfers(ctx context.Context, store service.Storage, pairs []transfer.Pair) error {
	tx, err := store.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, p := range pairs {
		if err := tx.LinkTransfer(ctx, p.Credit.ID, p.Debit.ID, uuid.NewString()); err != nil {
			return fmt.Errorf("failed to link %s and %s: %w", p.Credit.ID, p.Debit.ID, err)
		}
	}
	return tx.Commit()
}

func runTransfers(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	flags := cmd.Flags()
	from, _ := flags.GetString("from")
	to, _ := flags.GetString("to")
	days, _ := flags.GetInt("days")
	link, _ := flags.GetBool("link")

	r, err := dateRange(from, to, days)
	if err != nil {
		return err
	}
	loc, err := config.TransferLocation(viper.GetViper())
	if err != nil {
		return err
	}

	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	pairs, err := findTransfers(ctx, store, r, transfer.NewMatcher(loc))
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(pairs) == 0 {
		fmt.Fprintln(out, cli.FormatInfo("No unlinked transfers found"))
		return nil
	}
	fmt.Fprintln(out, renderPairs(pairs))

	if !link {
		return nil
	}

	prompter := cli.NewPrompter(cmd.InOrStdin(), out)
	prompter.AssumeYes, _ = flags.GetBool("yes")
	ok, err := prompter.Confirm(ctx, fmt.Sprintf("Link %d transfers?", len(pairs)))
	if err != nil {
		return err
	}
	if !ok {
		fmt.Fprintln(out, cli.FormatInfo("Nothing linked"))
		return nil
	}

	if err := linkTransfers(ctx, store, pairs); err != nil {
		return err
	}
	fmt.Fprintln(out, cli.FormatSuccess(fmt.Sprintf("Linked %d transfers", len(pairs))))
	return nil
}

func renderPairs(pairs []transfer.Pair) string {
	rows := make([][]string, 0, len(pairs))
	for _, p := range pairs {
		rows = append(rows, []string{
			p.Debit.Date.Format(dateLayout),
			cli.FormatAmount(decimal.NewFromFloat(p.Credit.Amount), p.Credit.Currency),
			p.Debit.Account + " → " + p.Credit.Account,
			p.Debit.Vendor,
			p.Credit.Vendor,
			fmt.Sprintf("%d", p.Score),
		})
	}
	return cli.RenderTable([]string{"Date", "Amount", "Accounts", "Out", "In", "Score"}, rows)
}

func transfersUnlinkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unlink <transfer-id>",
		Short: "Remove a transfer link from both of its transactions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := initStorage(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if err := store.UnlinkTransfer(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("failed to unlink transfer: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Unlinked "+args[0]))
			return nil
		},
	}
}
