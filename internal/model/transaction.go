package model

import (
	"crypto/sha256"
	"fmt"
	"strings"
	"time"
)

// Transaction represents a single ledger entry from any source.
// Amounts are signed: negative is money leaving the account, positive is money arriving.
type Transaction struct {
	Date         time.Time
	ID           string
	Vendor       string
	Account      string
	Category     string
	SubCategory  string
	Remarks      string
	Currency     string
	TransferID   string // Set once the transaction is linked to the other leg of a transfer
	RecurrenceID string // Schedule ID when materialised from a scheduled transaction
	Hash         string
	Amount       float64
}

// GenerateHash creates a stable hash used to skip re-imported rows.
func (t *Transaction) GenerateHash() string {
	data := fmt.Sprintf("%s:%.2f:%s:%s",
		t.Date.Format("2006-01-02"),
		t.Amount,
		strings.ToLower(strings.TrimSpace(t.Vendor)),
		t.Account)
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", hash)
}

// IsTransfer reports whether the transaction has been linked to a transfer pair.
func (t *Transaction) IsTransfer() bool {
	return t.TransferID != ""
}

// IsOutflow reports whether money left the account.
func (t *Transaction) IsOutflow() bool {
	return t.Amount < 0
}
