package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Veraticus/spice-ledger/internal/cli"
	"github.com/Veraticus/spice-ledger/internal/config"
	"github.com/Veraticus/spice-ledger/internal/csvio"
	"github.com/Veraticus/spice-ledger/internal/model"
	"github.com/Veraticus/spice-ledger/internal/ofx"
	"github.com/Veraticus/spice-ledger/internal/pattern"
	"github.com/Veraticus/spice-ledger/internal/plaid"
	"github.com/Veraticus/spice-ledger/internal/service"
	"github.com/Veraticus/spice-ledger/internal/simplefin"
	"github.com/schollz/progressbar/v3"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import transactions from CSV, OFX/QFX, Plaid or SimpleFIN",
		Long: `Import transactions into the local database.

Re-importing the same data is safe: rows whose date, amount, vendor and
account match an existing transaction are skipped.`,
	}

	cmd.PersistentFlags().Bool("dry-run", false, "Show what would be imported without saving")

	cmd.AddCommand(importCSVCmd())
	cmd.AddCommand(importOFXCmd())
	cmd.AddCommand(importPlaidCmd())
	cmd.AddCommand(importSimpleFINCmd())

	return cmd
}

// importResult summarises one save.
type importResult struct {
	Read       int
	Inserted   int
	NewAccount int
}

// saveImported registers unknown accounts, then saves transactions in
// batches, each in its own database transaction. A nil progress writer
// disables the progress bar.
func saveImported(ctx context.Context, store service.Storage, accounts []model.Account, txns []model.Transaction, progress io.Writer) (importResult, error) {
	result := importResult{Read: len(txns)}

	existing, err := store.GetAccounts(ctx)
	if err != nil {
		return result, fmt.Errorf("failed to load accounts: %w", err)
	}
	known := make(map[string]struct{}, len(existing))
	for _, a := range existing {
		known[a.Name] = struct{}{}
	}
	for i := range accounts {
		if _, ok := known[accounts[i].Name]; ok || accounts[i].Currency == "" {
			continue
		}
		if err := store.SaveAccount(ctx, &accounts[i]); err != nil {
			return result, fmt.Errorf("failed to save account %s: %w", accounts[i].Name, err)
		}
		known[accounts[i].Name] = struct{}{}
		result.NewAccount++
	}

	var bar *progressbar.ProgressBar
	if progress != nil && len(txns) > 0 {
		bar = cli.NewProgressBar(progress, len(txns), "Saving transactions...")
	}

	for start := 0; start < len(txns); start += saveBatchSize {
		end := min(start+saveBatchSize, len(txns))

		inserted, err := saveBatch(ctx, store, txns[start:end])
		if err != nil {
			return result, err
		}
		result.Inserted += inserted

		cli.Advance(bar, end-start)
	}

	return result, nil
}

func saveBatch(ctx context.Context, store service.Storage, batch []model.Transaction) (int, error) {
	tx, err := store.BeginTx(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	inserted, err := tx.SaveTransactions(ctx, batch)
	if err != nil {
		return 0, fmt.Errorf("failed to save transactions: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transactions: %w", err)
	}
	return inserted, nil
}

// finishImport either previews txns (dry run) or saves them and reports.
func finishImport(cmd *cobra.Command, accounts []model.Account, txns []model.Transaction) error {
	out := cmd.OutOrStdout()
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	if _, err := categorize(txns); err != nil {
		return err
	}

	if dryRun {
		fmt.Fprintln(out, cli.FormatWarning("Dry run mode - not saving to database"))
		fmt.Fprintln(out, renderTransactions(txns))
		return nil
	}

	if len(txns) == 0 {
		fmt.Fprintln(out, cli.FormatWarning("No transactions to import"))
		return nil
	}

	ctx, cancel := cli.NewInterruptHandler(cmd.ErrOrStderr()).HandleInterrupts(cmd.Context(), "Import")
	defer cancel()

	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	result, err := saveImported(ctx, store, accounts, txns, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	fmt.Fprintln(out, cli.FormatSuccess(fmt.Sprintf("Imported %d of %d transactions (%d already recorded)",
		result.Inserted, result.Read, result.Read-result.Inserted)))
	if result.NewAccount > 0 {
		fmt.Fprintln(out, cli.FormatInfo(fmt.Sprintf("Registered %d new accounts", result.NewAccount)))
	}
	return nil
}

// categorize applies the configured rules to uncategorised transactions.
func categorize(txns []model.Transaction) (int, error) {
	rules, err := config.LoadRules(viper.GetViper())
	if err != nil {
		return 0, err
	}
	changed := pattern.NewMatcher(rules).Apply(txns)
	if changed > 0 {
		slog.Info("Categorised transactions from rules", "count", changed, "rules", len(rules))
	}
	return changed, nil
}

func renderTransactions(txns []model.Transaction) string {
	rows := make([][]string, 0, len(txns))
	for _, t := range txns {
		rows = append(rows, []string{
			t.Date.Format(dateLayout),
			t.Account,
			t.Vendor,
			t.Category,
			cli.FormatAmount(decimal.NewFromFloat(t.Amount), t.Currency),
		})
	}
	return cli.RenderTable([]string{"Date", "Account", "Vendor", "Category", "Amount"}, rows)
}

// expandFiles resolves glob patterns, keeping literal paths that exist.
func expandFiles(patterns []string) ([]string, error) {
	var files []string
	for _, pattern := range patterns {
		pattern = config.ExpandPath(pattern)
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %s: %w", pattern, err)
		}
		if len(matches) > 0 {
			files = append(files, matches...)
			continue
		}
		if _, err := os.Stat(pattern); err == nil {
			files = append(files, pattern)
		} else {
			slog.Warn("No files found matching pattern", "pattern", pattern)
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no files found to import")
	}
	return files, nil
}

func importCSVCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "csv [files...]",
		Short: "Import transactions from CSV exports",
		Long: `Import transactions from CSV files.

Columns are matched by header name (case-insensitive). The defaults are
Date, Amount, Vendor, Account, Category, Sub Category, Remarks and Currency;
override any of them with --map.

Examples:
  ledger import csv statement.csv --account Checking --currency USD
  ledger import csv bank.csv --delimiter ';' --decimal-separator , \
    --date-format dd-MM-yyyy --map date=Datum,vendor=Omschrijving,debit=Af,credit=Bij`,
		Args: cobra.MinimumNArgs(1),
		RunE: runImportCSV,
	}

	cmd.Flags().String("account", "", "Account for rows without an account column")
	cmd.Flags().String("currency", "", "Currency for rows without a currency column")
	cmd.Flags().String("date-format", "", "Date pattern such as dd/MM/yyyy (default: csv.date_format or auto)")
	cmd.Flags().String("decimal-separator", "", "Decimal separator: '.', ',' or auto (default: csv.decimal_separator)")
	cmd.Flags().String("delimiter", ",", "Field delimiter")
	cmd.Flags().StringToString("map", nil, "Column overrides, e.g. date=Datum,amount=Bedrag")

	return cmd
}

func runImportCSV(cmd *cobra.Command, args []string) error {
	reader, err := csvReaderFromFlags(cmd)
	if err != nil {
		return err
	}

	files, err := expandFiles(args)
	if err != nil {
		return err
	}

	var txns []model.Transaction
	for _, path := range files {
		found, err := readCSVFile(cmd.Context(), reader, path)
		if err != nil {
			return err
		}
		txns = append(txns, found...)
	}

	var accounts []model.Account
	if reader.Account != "" && reader.Currency != "" {
		accounts = append(accounts, model.Account{Name: reader.Account, Currency: strings.ToUpper(reader.Currency), Type: model.AccountOther})
	}
	return finishImport(cmd, accounts, txns)
}

func readCSVFile(ctx context.Context, reader *csvio.Reader, path string) ([]model.Transaction, error) {
	f, err := os.Open(path) // #nosec G304
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	txns, rowErrs, err := reader.Read(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	for _, rowErr := range rowErrs {
		slog.Warn("Skipped CSV row", "file", filepath.Base(path), "line", rowErr.Line, "error", rowErr.Err)
	}
	slog.Info("Read CSV file", "file", filepath.Base(path), "transactions", len(txns), "skipped", len(rowErrs))
	return txns, nil
}

func csvReaderFromFlags(cmd *cobra.Command) (*csvio.Reader, error) {
	reader := csvio.NewReader()
	reader.Account, _ = cmd.Flags().GetString("account")
	reader.Currency, _ = cmd.Flags().GetString("currency")

	reader.DateFormat = viper.GetString(config.KeyCSVDateFormat)
	if f, _ := cmd.Flags().GetString("date-format"); f != "" {
		reader.DateFormat = f
	}

	if sep, _ := cmd.Flags().GetString("decimal-separator"); sep != "" {
		viper.Set(config.KeyCSVDecimalSep, sep)
	}
	sep, err := config.DecimalSeparator(viper.GetViper())
	if err != nil {
		return nil, err
	}
	reader.DecimalSeparator = sep

	delimiter, _ := cmd.Flags().GetString("delimiter")
	runes := []rune(delimiter)
	if len(runes) != 1 {
		return nil, fmt.Errorf("--delimiter must be a single character, got %q", delimiter)
	}
	reader.Comma = runes[0]

	overrides, _ := cmd.Flags().GetStringToString("map")
	if err := applyMapping(&reader.Mapping, overrides); err != nil {
		return nil, err
	}
	return reader, nil
}

func applyMapping(m *csvio.ColumnMapping, overrides map[string]string) error {
	fields := map[string]*string{
		"date":         &m.Date,
		"amount":       &m.Amount,
		"debit":        &m.Debit,
		"credit":       &m.Credit,
		"vendor":       &m.Vendor,
		"account":      &m.Account,
		"category":     &m.Category,
		"sub_category": &m.SubCategory,
		"remarks":      &m.Remarks,
		"currency":     &m.Currency,
	}
	for key, header := range overrides {
		field, ok := fields[strings.ToLower(strings.ReplaceAll(key, "-", "_"))]
		if !ok {
			return fmt.Errorf("unknown column %q in --map", key)
		}
		*field = header
	}
	if overrides["debit"] != "" && overrides["credit"] != "" && overrides["amount"] == "" {
		m.Amount = ""
	}
	return nil
}

func importOFXCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ofx [files...]",
		Short: "Import transactions from OFX/QFX files",
		Long: `Import transactions from OFX or QFX (Quicken) files exported from your bank.

Account IDs can be given friendly names in the config file:

  ofx:
    accounts:
      "123456789": Checking

Examples:
  ledger import ofx ~/Downloads/chase_jan_2024.qfx
  ledger import ofx ~/Downloads/Chase/*.qfx ~/Downloads/Ally/*.qfx`,
		Args: cobra.MinimumNArgs(1),
		RunE: runImportOFX,
	}
	return cmd
}

func runImportOFX(cmd *cobra.Command, args []string) error {
	files, err := expandFiles(args)
	if err != nil {
		return err
	}

	parser := ofx.NewParser()
	parser.AccountNames = viper.GetStringMapString("ofx.accounts")

	seen := make(map[string]struct{})
	var (
		accounts []model.Account
		txns     []model.Transaction
	)
	for _, path := range files {
		statements, err := parseOFXFile(cmd.Context(), parser, path)
		if err != nil {
			slog.Error("Failed to parse OFX file", "file", path, "error", err)
			continue
		}

		for _, stmt := range statements {
			accounts = append(accounts, stmt.Account)
			for _, t := range stmt.Transactions {
				if _, dup := seen[t.Hash]; dup {
					continue
				}
				seen[t.Hash] = struct{}{}
				txns = append(txns, t)
			}
		}
	}

	return finishImport(cmd, accounts, txns)
}

func parseOFXFile(ctx context.Context, parser *ofx.Parser, path string) ([]ofx.Statement, error) {
	f, err := os.Open(path) // #nosec G304
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	statements, err := parser.ParseStatements(ctx, f)
	if err != nil {
		return nil, err
	}
	slog.Info("Processed file", "file", filepath.Base(path), "statements", len(statements))
	return statements, nil
}

func importPlaidCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plaid",
		Short: "Import transactions from Plaid",
		Long: `Fetch transactions from a connected Plaid item.

Credentials come from plaid.client_id, plaid.secret, plaid.environment and
plaid.access_token, or the PLAID_CLIENT_ID, PLAID_SECRET, PLAID_ENV and
PLAID_ACCESS_TOKEN environment variables (a .env file works too).`,
		RunE: runImportPlaid,
	}

	addProviderFlags(cmd)
	return cmd
}

func addProviderFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("start-date", "s", "", "Start date (YYYY-MM-DD)")
	cmd.Flags().StringP("end-date", "e", "", "End date (YYYY-MM-DD)")
	cmd.Flags().IntP("days", "d", 30, "Number of days to import when no start date is given")
	cmd.Flags().Bool("list-accounts", false, "List available accounts without importing")
	cmd.Flags().Bool("include-pending", false, "Also import pending transactions")
}

// pickSetting prefers the config key and falls back to a bare environment variable.
func pickSetting(key, env string) string {
	if v := viper.GetString(key); v != "" {
		return v
	}
	return os.Getenv(env)
}

func plaidConfig() *plaid.Config {
	cfg := &plaid.Config{
		ClientID:     pickSetting("plaid.client_id", "PLAID_CLIENT_ID"),
		Secret:       pickSetting("plaid.secret", "PLAID_SECRET"),
		Environment:  pickSetting("plaid.environment", "PLAID_ENV"),
		AccessToken:  pickSetting("plaid.access_token", "PLAID_ACCESS_TOKEN"),
		AccountNames: viper.GetStringMapString("plaid.accounts"),
	}
	if cfg.Environment == "" {
		cfg.Environment = "sandbox"
	}
	return cfg
}

func runImportPlaid(cmd *cobra.Command, _ []string) error {
	cfg := plaidConfig()
	cfg.IncludePending, _ = cmd.Flags().GetBool("include-pending")

	client, err := plaid.NewClient(cfg)
	if err != nil {
		return fmt.Errorf("failed to create Plaid client: %w", err)
	}
	return importFromProvider(cmd, "Plaid", client)
}

func importSimpleFINCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "simplefin",
		Short: "Import transactions from a SimpleFIN Bridge",
		Long: `Fetch transactions from a SimpleFIN Bridge.

Supply either an access URL (simplefin.access_url or SIMPLEFIN_ACCESS_URL)
or a one-time setup token (simplefin.token or SIMPLEFIN_TOKEN). A claimed
token is cached next to the config file so it is only claimed once.`,
		RunE: runImportSimpleFIN,
	}

	addProviderFlags(cmd)
	return cmd
}

func simpleFINConfig() *simplefin.Config {
	stateFile := viper.GetString("simplefin.state_file")
	if stateFile == "" {
		stateFile = filepath.Join(config.ConfigDir(), "simplefin.json")
	}
	return &simplefin.Config{
		AccessURL:    pickSetting("simplefin.access_url", "SIMPLEFIN_ACCESS_URL"),
		SetupToken:   pickSetting("simplefin.token", "SIMPLEFIN_TOKEN"),
		StateFile:    config.ExpandPath(stateFile),
		AccountNames: viper.GetStringMapString("simplefin.accounts"),
	}
}

func runImportSimpleFIN(cmd *cobra.Command, _ []string) error {
	cfg := simpleFINConfig()
	cfg.IncludePending, _ = cmd.Flags().GetBool("include-pending")

	client, err := simplefin.NewClient(cmd.Context(), cfg)
	if err != nil {
		return fmt.Errorf("failed to create SimpleFIN client: %w", err)
	}
	return importFromProvider(cmd, "SimpleFIN", client)
}

// accountProvider is a transaction source that also describes its accounts.
type accountProvider interface {
	service.TransactionSource
	Accounts(ctx context.Context) ([]model.Account, error)
}

func importFromProvider(cmd *cobra.Command, name string, provider accountProvider) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	accounts, err := provider.Accounts(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch accounts: %w", err)
	}

	if list, _ := cmd.Flags().GetBool("list-accounts"); list {
		rows := make([][]string, 0, len(accounts))
		for _, a := range accounts {
			rows = append(rows, []string{a.Name, a.Remarks, string(a.Type), a.Currency})
		}
		fmt.Fprintln(out, cli.RenderBox("Available Accounts", cli.RenderTable([]string{"Account", name + " Name", "Type", "Currency"}, rows)))
		return nil
	}

	startFlag, _ := cmd.Flags().GetString("start-date")
	endFlag, _ := cmd.Flags().GetString("end-date")
	days, _ := cmd.Flags().GetInt("days")
	if days <= 0 {
		days = 30
	}
	r, err := dateRange(startFlag, endFlag, days)
	if err != nil {
		return err
	}
	// Providers take an inclusive end date.
	last := r.End.AddDate(0, 0, -1)

	fmt.Fprintln(out, cli.FormatTitle("Importing transactions from "+name))
	slog.Info("Date range", "start", r.Start.Format(dateLayout), "end", last.Format(dateLayout))

	fetchStart := time.Now()
	txns, err := provider.GetTransactions(ctx, r.Start, last)
	if err != nil {
		return fmt.Errorf("failed to fetch transactions: %w", err)
	}
	slog.Info("Fetched transactions", "count", len(txns), "elapsed", time.Since(fetchStart).Round(time.Millisecond))

	return finishImport(cmd, accounts, txns)
}
