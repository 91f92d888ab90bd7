package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/Veraticus/spice-ledger/internal/common"
	"github.com/Veraticus/spice-ledger/internal/model"
	"github.com/spf13/viper"
)

// KeyBudgets holds the list of spending budgets.
const KeyBudgets = "budgets"

// Budget periods.
const (
	PeriodMonthly   = "monthly"
	PeriodQuarterly = "quarterly"
	PeriodYearly    = "yearly"
	PeriodCustom    = "custom"
)

type budgetEntry struct {
	Category    string  `mapstructure:"category"`
	SubCategory string  `mapstructure:"sub_category"`
	Currency    string  `mapstructure:"currency"`
	Period      string  `mapstructure:"period"`
	Start       string  `mapstructure:"start"`
	End         string  `mapstructure:"end"`
	Target      float64 `mapstructure:"target"`
}

// LoadBudgets decodes the budgets list. Calendar periods are resolved to the
// month, quarter or year containing now; custom budgets use their start and
// optional end dates (YYYY-MM-DD). A budget without a currency uses base.
func LoadBudgets(v *viper.Viper, now time.Time, base string) ([]model.Budget, error) {
	var entries []budgetEntry
	if err := v.UnmarshalKey(KeyBudgets, &entries); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", common.ErrInvalidConfig, KeyBudgets, err)
	}

	budgets := make([]model.Budget, 0, len(entries))
	for i, e := range entries {
		if strings.TrimSpace(e.Category) == "" {
			return nil, fmt.Errorf("%w: budget %d has no category", common.ErrInvalidConfig, i+1)
		}

		start, end, err := budgetWindow(e, now)
		if err != nil {
			return nil, fmt.Errorf("%w: budget %q: %w", common.ErrInvalidConfig, e.Category, err)
		}

		currency := strings.ToUpper(e.Currency)
		if currency == "" {
			currency = strings.ToUpper(base)
		}

		budgets = append(budgets, model.Budget{
			Category:    e.Category,
			SubCategory: e.SubCategory,
			Target:      e.Target,
			Currency:    currency,
			Start:       start,
			End:         end,
		})
	}
	return budgets, nil
}

// budgetWindow returns the first and last calendar day the budget covers.
// A zero end means open-ended.
func budgetWindow(e budgetEntry, now time.Time) (time.Time, time.Time, error) {
	y, m, _ := now.Date()
	loc := now.Location()

	switch strings.ToLower(e.Period) {
	case "", PeriodMonthly:
		start := time.Date(y, m, 1, 0, 0, 0, 0, loc)
		return start, start.AddDate(0, 1, -1), nil
	case PeriodQuarterly:
		first := m - (m-1)%3
		start := time.Date(y, first, 1, 0, 0, 0, 0, loc)
		return start, start.AddDate(0, 3, -1), nil
	case PeriodYearly:
		return time.Date(y, time.January, 1, 0, 0, 0, 0, loc), time.Date(y, time.December, 31, 0, 0, 0, 0, loc), nil
	case PeriodCustom:
		start, err := time.ParseInLocation("2006-01-02", e.Start, loc)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid start date: %w", err)
		}
		var end time.Time
		if e.End != "" {
			if end, err = time.ParseInLocation("2006-01-02", e.End, loc); err != nil {
				return time.Time{}, time.Time{}, fmt.Errorf("invalid end date: %w", err)
			}
		}
		return start, end, nil
	default:
		return time.Time{}, time.Time{}, fmt.Errorf("unknown period %q", e.Period)
	}
}
