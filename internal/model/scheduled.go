package model

import "time"

// ScheduledTransaction is a recurring transaction template.
// Date holds the next scheduled (anchor) date.
type ScheduledTransaction struct {
	Date          time.Time
	EndDate       *time.Time // Exclusive bound; nil means the schedule never ends
	LastProcessed *time.Time
	ID            string
	Vendor        string
	Account       string
	Category      string
	SubCategory   string
	Remarks       string
	Currency      string
	TransferID    string
	IgnoredDates  []time.Time
	Frequency     Frequency
	Amount        float64
}

// IsIgnored reports whether an occurrence on the given calendar day was skipped by the user.
func (s *ScheduledTransaction) IsIgnored(day time.Time) bool {
	for _, ignored := range s.IgnoredDates {
		y1, m1, d1 := ignored.Date()
		y2, m2, d2 := day.Date()
		if y1 == y2 && m1 == m2 && d1 == d2 {
			return true
		}
	}
	return false
}

// Occurrence is one projected instance of a scheduled transaction.
type Occurrence struct {
	Date     time.Time
	Original *ScheduledTransaction
	Amount   float64
}
