// Package ofx imports OFX/QFX bank and credit card statements.
package ofx

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"

	"github.com/Veraticus/spice-ledger/internal/common"
	"github.com/Veraticus/spice-ledger/internal/model"
	"github.com/aclindsa/ofxgo"
	"github.com/shopspring/decimal"
)

var (
	severityRegex = regexp.MustCompile(`(?i)<SEVERITY>(Info|Warn|Error)</SEVERITY>`)
	// An SGML opening tag alone on its line with the closing bracket missing.
	unclosedTagRegex = regexp.MustCompile(`(?m)^(\s*<[A-Z][A-Z0-9._]*[A-Z0-9])$`)
	leadingDateRegex = regexp.MustCompile(`^\d{2}/\d{2}\s+`)
)

var purchasePrefixes = []string{
	"POS PURCHASE ",
	"PURCHASE AUTHORIZED ON ",
	"DEBIT CARD PURCHASE ",
	"ACH DEBIT ",
	"CHECK CARD ",
	"VISA PURCHASE ",
	"MC PURCHASE ",
	"DEBIT PURCHASE ",
}

var genericDescriptions = map[string]struct{}{
	"DEBIT":           {},
	"CREDIT":          {},
	"PURCHASE":        {},
	"PAYMENT":         {},
	"POS TRANSACTION": {},
	"CARD PURCHASE":   {},
}

// Statement is one account's worth of transactions from an OFX file.
type Statement struct {
	Account      model.Account
	Transactions []model.Transaction
}

// Parser implements OFX/QFX file parsing.
type Parser struct {
	logger *slog.Logger
	// AccountNames maps OFX account IDs to ledger account names.
	AccountNames map[string]string
}

// NewParser creates a new OFX parser.
func NewParser() *Parser {
	return &Parser{logger: common.Component("ofx")}
}

func preprocessOFX(content string) string {
	content = strings.TrimLeft(content, " \t\r\n")
	content = severityRegex.ReplaceAllStringFunc(content, strings.ToUpper)
	return unclosedTagRegex.ReplaceAllString(content, "$1>")
}

func (p *Parser) parse(reader io.Reader) (*ofxgo.Response, error) {
	content, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read OFX file: %w", err)
	}

	resp, err := ofxgo.ParseResponse(strings.NewReader(preprocessOFX(string(content))))
	if err != nil {
		return nil, fmt.Errorf("failed to parse OFX file: %w", err)
	}
	return resp, nil
}

// ParseStatements parses every bank and credit card statement in the file.
func (p *Parser) ParseStatements(ctx context.Context, reader io.Reader) ([]Statement, error) {
	if p.logger == nil {
		p.logger = common.Component("ofx")
	}

	resp, err := p.parse(reader)
	if err != nil {
		return nil, err
	}

	var statements []Statement

	for _, msg := range resp.Bank {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		stmt, ok := msg.(*ofxgo.StatementResponse)
		if !ok {
			continue
		}
		account := p.account(string(stmt.BankAcctFrom.AcctID), stmt.CurDef, bankAccountType(stmt.BankAcctFrom.AcctType.String()))
		statements = append(statements, Statement{
			Account:      account,
			Transactions: p.convertList(stmt.BankTranList, account),
		})
	}

	for _, msg := range resp.CreditCard {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		stmt, ok := msg.(*ofxgo.CCStatementResponse)
		if !ok {
			continue
		}
		account := p.account(string(stmt.CCAcctFrom.AcctID), stmt.CurDef, model.AccountCredit)
		statements = append(statements, Statement{
			Account:      account,
			Transactions: p.convertList(stmt.BankTranList, account),
		})
	}

	p.logger.Info("Parsed OFX file", "statements", len(statements))
	return statements, nil
}

// ParseFile parses an OFX/QFX file and returns the transactions of every statement.
func (p *Parser) ParseFile(ctx context.Context, reader io.Reader) ([]model.Transaction, error) {
	statements, err := p.ParseStatements(ctx, reader)
	if err != nil {
		return nil, err
	}

	var transactions []model.Transaction
	for _, stmt := range statements {
		transactions = append(transactions, stmt.Transactions...)
	}
	return transactions, nil
}

func (p *Parser) account(acctID string, curDef ofxgo.CurrSymbol, accountType model.AccountType) model.Account {
	name := acctID
	if mapped, ok := p.AccountNames[acctID]; ok && mapped != "" {
		name = mapped
	}

	currency := ""
	if ok, _ := curDef.Valid(); ok {
		currency = curDef.String()
	}

	return model.Account{
		Name:     name,
		Currency: currency,
		Type:     accountType,
	}
}

func bankAccountType(ofxType string) model.AccountType {
	switch ofxType {
	case "CHECKING":
		return model.AccountChecking
	case "SAVINGS", "MONEYMRKT":
		return model.AccountSavings
	case "CREDITLINE":
		return model.AccountCredit
	default:
		return model.AccountOther
	}
}

func (p *Parser) convertList(list *ofxgo.TransactionList, account model.Account) []model.Transaction {
	if list == nil {
		return nil
	}

	transactions := make([]model.Transaction, 0, len(list.Transactions))
	for _, ofxTx := range list.Transactions {
		txn, err := convertTransaction(ofxTx, account)
		if err != nil {
			p.logger.Warn("Skipping OFX transaction",
				"account", account.Name,
				"fitid", string(ofxTx.FiTID),
				"error", err)
			continue
		}
		transactions = append(transactions, txn)
	}
	return transactions
}

// convertTransaction keeps the OFX sign: debits are negative, credits positive.
func convertTransaction(ofxTx ofxgo.Transaction, account model.Account) (model.Transaction, error) {
	amount, err := decimal.NewFromString(ofxTx.TrnAmt.FloatString(2))
	if err != nil {
		return model.Transaction{}, fmt.Errorf("invalid amount: %w", err)
	}

	remarks := strings.TrimSpace(string(ofxTx.Memo))
	if ofxTx.CheckNum != "" {
		remarks = strings.TrimSpace("Check #" + string(ofxTx.CheckNum) + " " + remarks)
	}

	txn := model.Transaction{
		ID:       account.Name + ":" + string(ofxTx.FiTID),
		Date:     ofxTx.DtPosted.Time,
		Vendor:   extractVendor(ofxTx),
		Account:  account.Name,
		Currency: account.Currency,
		Remarks:  remarks,
		Amount:   amount.InexactFloat64(),
	}
	txn.Hash = txn.GenerateHash()

	return txn, nil
}

// extractVendor tries to get a clean vendor name from OFX data.
func extractVendor(tx ofxgo.Transaction) string {
	if tx.Payee != nil && tx.Payee.Name != "" {
		return strings.TrimSpace(string(tx.Payee.Name))
	}

	name := strings.TrimSpace(string(tx.Name))
	if _, generic := genericDescriptions[strings.ToUpper(name)]; generic && tx.Memo != "" {
		name = strings.TrimSpace(string(tx.Memo))
	}

	upper := strings.ToUpper(name)
	for _, prefix := range purchasePrefixes {
		if strings.HasPrefix(upper, prefix) {
			name = name[len(prefix):]
			break
		}
	}

	return strings.TrimSpace(leadingDateRegex.ReplaceAllString(name, ""))
}

// GetAccounts returns the accounts found in the file, in statement order.
func (p *Parser) GetAccounts(ctx context.Context, reader io.Reader) ([]model.Account, error) {
	statements, err := p.ParseStatements(ctx, reader)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(statements))
	var accounts []model.Account
	for _, stmt := range statements {
		if _, dup := seen[stmt.Account.Name]; dup {
			continue
		}
		seen[stmt.Account.Name] = struct{}{}
		accounts = append(accounts, stmt.Account)
	}
	return accounts, nil
}
