package model

// AccountType describes the kind of account.
type AccountType string

// Account types.
const (
	AccountChecking   AccountType = "Checking"
	AccountSavings    AccountType = "Savings"
	AccountCredit     AccountType = "Credit Card"
	AccountInvestment AccountType = "Investment"
	AccountOther      AccountType = "Other"
)

// ParseAccountType maps a stored name to an AccountType, defaulting to Other.
func ParseAccountType(s string) AccountType {
	switch AccountType(s) {
	case AccountChecking, AccountSavings, AccountCredit, AccountInvestment:
		return AccountType(s)
	default:
		return AccountOther
	}
}

// Account is a named money container with its own currency.
type Account struct {
	Name            string
	Currency        string
	Type            AccountType
	Remarks         string
	StartingBalance float64
}
