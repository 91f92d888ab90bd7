package ofx

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/Veraticus/spice-ledger/internal/model"
	"github.com/aclindsa/ofxgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stmtTrn is one <STMTTRN> block; empty fields are omitted.
type stmtTrn struct {
	kind, posted, amount, fitID, name, memo, checkNum string
}

func (tr stmtTrn) sgml() string {
	var b strings.Builder
	b.WriteString("<STMTTRN>\n<TRNTYPE>" + tr.kind + "\n<DTPOSTED>" + tr.posted + "120000[0:GMT]\n")
	b.WriteString("<TRNAMT>" + tr.amount + "\n<FITID>" + tr.fitID + "\n")
	if tr.checkNum != "" {
		b.WriteString("<CHECKNUM>" + tr.checkNum + "\n")
	}
	b.WriteString("<NAME>" + tr.name + "\n")
	if tr.memo != "" {
		b.WriteString("<MEMO>" + tr.memo + "\n")
	}
	b.WriteString("</STMTTRN>\n")
	return b.String()
}

func tranList(trns []stmtTrn) string {
	var b strings.Builder
	b.WriteString("<BANKTRANLIST>\n<DTSTART>20240301120000[0:GMT]\n<DTEND>20240331120000[0:GMT]\n")
	for _, tr := range trns {
		b.WriteString(tr.sgml())
	}
	b.WriteString("</BANKTRANLIST>\n")
	return b.String()
}

func bankMsgs(currency, acctID, acctType string, trns ...stmtTrn) string {
	return "<BANKMSGSRSV1>\n<STMTTRNRS>\n<TRNUID>1\n<STATUS>\n<CODE>0\n<SEVERITY>INFO\n</STATUS>\n" +
		"<STMTRS>\n<CURDEF>" + currency + "\n<BANKACCTFROM>\n<BANKID>20041\n<ACCTID>" + acctID +
		"\n<ACCTTYPE>" + acctType + "\n</BANKACCTFROM>\n" + tranList(trns) +
		"<LEDGERBAL>\n<BALAMT>0.00\n<DTASOF>20240331120000[0:GMT]\n</LEDGERBAL>\n</STMTRS>\n</STMTTRNRS>\n</BANKMSGSRSV1>\n"
}

func cardMsgs(currency, acctID string, trns ...stmtTrn) string {
	return "<CREDITCARDMSGSRSV1>\n<CCSTMTTRNRS>\n<TRNUID>2\n<STATUS>\n<CODE>0\n<SEVERITY>INFO\n</STATUS>\n" +
		"<CCSTMTRS>\n<CURDEF>" + currency + "\n<CCACCTFROM>\n<ACCTID>" + acctID + "\n</CCACCTFROM>\n" + tranList(trns) +
		"<LEDGERBAL>\n<BALAMT>0.00\n<DTASOF>20240331120000[0:GMT]\n</LEDGERBAL>\n</CCSTMTRS>\n</CCSTMTTRNRS>\n</CREDITCARDMSGSRSV1>\n"
}

// ofxFile wraps message sets in an SGML (OFX 1.x) document.
func ofxFile(msgSets ...string) string {
	return "OFXHEADER:100\nDATA:OFXSGML\nVERSION:102\nSECURITY:NONE\nENCODING:USASCII\nCHARSET:1252\n" +
		"COMPRESSION:NONE\nOLDFILEUID:NONE\nNEWFILEUID:NONE\n\n<OFX>\n<SIGNONMSGSRSV1>\n<SONRS>\n<STATUS>\n<CODE>0\n" +
		"<SEVERITY>INFO\n</STATUS>\n<DTSERVER>20240402120000[0:GMT]\n<LANGUAGE>ENG\n</SONRS>\n</SIGNONMSGSRSV1>\n" +
		strings.Join(msgSets, "") + "</OFX>"
}

var (
	checkingOFX = ofxFile(bankMsgs("EUR", "NL91ABNA0417164300", "CHECKING",
		stmtTrn{kind: "POS", posted: "20240304", amount: "-3.80", fitID: "A-0304-1", name: "POS PURCHASE Bakkerij de Vries"},
		stmtTrn{kind: "DEBIT", posted: "20240311", amount: "-64.15", fitID: "A-0311-1", name: "Albert Heijn 1041"},
		stmtTrn{kind: "CHECK", posted: "20240318", amount: "-250.00", fitID: "A-0318-1", name: "CHECK 88", checkNum: "88", memo: "Plumber"},
		stmtTrn{kind: "CREDIT", posted: "20240325", amount: "3150.00", fitID: "A-0325-1", name: "CREDIT", memo: "Initech Salary"},
	))

	cardOFX = ofxFile(cardMsgs("EUR", "5500000000000004",
		stmtTrn{kind: "DEBIT", posted: "20240307", amount: "-12.99", fitID: "C-0307-1", name: "SPOTIFY P1A2B3"},
		stmtTrn{kind: "CREDIT", posted: "20240320", amount: "40.00", fitID: "C-0320-1", name: "REFUND Bol.com"},
	))

	combinedOFX = ofxFile(
		bankMsgs("USD", "000123", "SAVINGS",
			stmtTrn{kind: "INT", posted: "20240331", amount: "1.27", fitID: "S-0331-1", name: "Interest Paid"}),
		cardMsgs("USD", "4000000000000002",
			stmtTrn{kind: "DEBIT", posted: "20240309", amount: "-89.00", fitID: "V-0309-1", name: "DEBIT CARD PURCHASE Delta Air"}),
	)
)

func TestParseFile(t *testing.T) {
	tests := []struct {
		name          string
		ofxData       string
		expectedCount int
		wantErr       bool
	}{
		{name: "bank statement", ofxData: checkingOFX, expectedCount: 4},
		{name: "credit card statement", ofxData: cardOFX, expectedCount: 2},
		{name: "bank and card in one file", ofxData: combinedOFX, expectedCount: 2},
		{name: "leading blank lines", ofxData: "\r\n\n  " + cardOFX, expectedCount: 2},
		{name: "not ofx", ofxData: "Date,Amount\n2024-03-01,1.00", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			txns, err := NewParser().ParseFile(context.Background(), strings.NewReader(tt.ofxData))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Len(t, txns, tt.expectedCount)
		})
	}
}

func TestParseBankTransactions(t *testing.T) {
	p := NewParser()
	p.AccountNames = map[string]string{"NL91ABNA0417164300": "Joint"}

	txns, err := p.ParseFile(context.Background(), strings.NewReader(checkingOFX))
	require.NoError(t, err)
	require.Len(t, txns, 4)

	bakery := txns[0]
	assert.Equal(t, "Joint:A-0304-1", bakery.ID)
	assert.Equal(t, "Bakkerij de Vries", bakery.Vendor)
	assert.Equal(t, "Joint", bakery.Account)
	assert.Equal(t, "EUR", bakery.Currency)
	assert.InDelta(t, -3.80, bakery.Amount, 0.001)
	assert.Equal(t, time.Date(2024, time.March, 4, 12, 0, 0, 0, time.UTC), bakery.Date.UTC())
	assert.Equal(t, bakery.GenerateHash(), bakery.Hash)

	plumber := txns[2]
	assert.Equal(t, "Check #88 Plumber", plumber.Remarks)
	assert.Equal(t, "CHECK 88", plumber.Vendor)

	salary := txns[3]
	assert.InDelta(t, 3150, salary.Amount, 0.001)
	assert.Equal(t, "Initech Salary", salary.Vendor)
}

func TestParseStatements(t *testing.T) {
	p := NewParser()
	p.AccountNames = map[string]string{"4000000000000002": "Visa"}

	statements, err := p.ParseStatements(context.Background(), strings.NewReader(combinedOFX))
	require.NoError(t, err)
	require.Len(t, statements, 2)

	savings := statements[0]
	assert.Equal(t, model.Account{Name: "000123", Currency: "USD", Type: model.AccountSavings}, savings.Account)
	require.Len(t, savings.Transactions, 1)
	assert.InDelta(t, 1.27, savings.Transactions[0].Amount, 0.001)

	card := statements[1]
	assert.Equal(t, model.Account{Name: "Visa", Currency: "USD", Type: model.AccountCredit}, card.Account)
	require.Len(t, card.Transactions, 1)
	assert.Equal(t, "Visa:V-0309-1", card.Transactions[0].ID)
	assert.Equal(t, "Delta Air", card.Transactions[0].Vendor)
}

func TestParseStatements_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewParser().ParseStatements(ctx, strings.NewReader(checkingOFX))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestExtractVendor(t *testing.T) {
	tests := []struct {
		name string
		want string
		tx   ofxgo.Transaction
	}{
		{name: "payee preferred", tx: ofxgo.Transaction{Name: "POS 123", Payee: &ofxgo.Payee{Name: "Corner Shop"}}, want: "Corner Shop"},
		{name: "plain name", tx: ofxgo.Transaction{Name: "  Whole Foods  "}, want: "Whole Foods"},
		{name: "purchase prefix stripped", tx: ofxgo.Transaction{Name: "POS PURCHASE Target"}, want: "Target"},
		{name: "prefix is case insensitive", tx: ofxgo.Transaction{Name: "Check Card Shell Oil"}, want: "Shell Oil"},
		{name: "leading date stripped", tx: ofxgo.Transaction{Name: "PURCHASE AUTHORIZED ON 01/15 Uber Trip"}, want: "Uber Trip"},
		{name: "generic name uses memo", tx: ofxgo.Transaction{Name: "PAYMENT", Memo: "City Water"}, want: "City Water"},
		{name: "generic name without memo", tx: ofxgo.Transaction{Name: "DEBIT"}, want: "DEBIT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractVendor(tt.tx))
		})
	}
}

func TestReimportProducesSameHashes(t *testing.T) {
	first, err := NewParser().ParseFile(context.Background(), strings.NewReader(cardOFX))
	require.NoError(t, err)
	second, err := NewParser().ParseFile(context.Background(), strings.NewReader(cardOFX))
	require.NoError(t, err)

	require.Len(t, second, len(first))
	for i := range first {
		assert.Equal(t, first[i].Hash, second[i].Hash)
	}
}

func TestGetAccounts(t *testing.T) {
	accounts, err := NewParser().GetAccounts(context.Background(), strings.NewReader(ofxFile(
		bankMsgs("EUR", "NL91ABNA0417164300", "CHECKING"),
		bankMsgs("EUR", "NL91ABNA0417164300", "CHECKING"),
		cardMsgs("GBP", "5500000000000004"),
	)))
	require.NoError(t, err)
	assert.Equal(t, []model.Account{
		{Name: "NL91ABNA0417164300", Currency: "EUR", Type: model.AccountChecking},
		{Name: "5500000000000004", Currency: "GBP", Type: model.AccountCredit},
	}, accounts, "duplicate statements collapse to one account")
}

func TestPreprocessOFX(t *testing.T) {
	in := "\n  <OFX>\n<SEVERITY>Info</SEVERITY>\n<CODE\n"
	out := preprocessOFX(in)

	assert.True(t, strings.HasPrefix(out, "<OFX>"))
	assert.Contains(t, out, "<SEVERITY>INFO</SEVERITY>")
	assert.Contains(t, out, "<CODE>\n")
}
