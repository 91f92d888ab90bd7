package config

import (
	"fmt"
	"strings"

	"github.com/Veraticus/spice-ledger/internal/common"
	"github.com/Veraticus/spice-ledger/internal/model"
	"github.com/Veraticus/spice-ledger/internal/pattern"
	"github.com/spf13/viper"
)

// KeyRules holds the categorisation rules applied on import.
const KeyRules = "rules"

type ruleEntry struct {
	Amount      *float64 `mapstructure:"amount"`
	AmountMin   *float64 `mapstructure:"amount_min"`
	AmountMax   *float64 `mapstructure:"amount_max"`
	Name        string   `mapstructure:"name"`
	Vendor      string   `mapstructure:"vendor"`
	Regex       string   `mapstructure:"regex"`
	Account     string   `mapstructure:"account"`
	Condition   string   `mapstructure:"condition"`
	Direction   string   `mapstructure:"direction"`
	Category    string   `mapstructure:"category"`
	SubCategory string   `mapstructure:"sub_category"`
	Priority    int      `mapstructure:"priority"`
}

// LoadRules decodes and validates the rules list. A rule names either a
// vendor (exact, case-insensitive) or a regex. Without an explicit condition,
// amount implies "eq" and amount_min/amount_max imply "range".
func LoadRules(v *viper.Viper) ([]model.PatternRule, error) {
	var entries []ruleEntry
	if err := v.UnmarshalKey(KeyRules, &entries); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", common.ErrInvalidConfig, KeyRules, err)
	}

	rules := make([]model.PatternRule, 0, len(entries))
	for i, e := range entries {
		if e.Vendor != "" && e.Regex != "" {
			return nil, fmt.Errorf("%w: rule %d sets both vendor and regex", common.ErrInvalidConfig, i+1)
		}

		rule := model.PatternRule{
			Name:            e.Name,
			VendorPattern:   e.Vendor,
			Account:         e.Account,
			AmountCondition: model.AmountCondition(strings.ToLower(e.Condition)),
			Direction:       model.Direction(strings.ToLower(e.Direction)),
			Category:        e.Category,
			SubCategory:     e.SubCategory,
			Priority:        e.Priority,
			AmountValue:     e.Amount,
			AmountMin:       e.AmountMin,
			AmountMax:       e.AmountMax,
		}
		if e.Regex != "" {
			rule.VendorPattern = e.Regex
			rule.IsRegex = true
		}
		if rule.AmountCondition == "" {
			switch {
			case e.Amount != nil:
				rule.AmountCondition = model.AmountEqual
			case e.AmountMin != nil || e.AmountMax != nil:
				rule.AmountCondition = model.AmountRange
			}
		}

		if err := pattern.Validate(rule); err != nil {
			return nil, fmt.Errorf("%w: rule %d: %w", common.ErrInvalidConfig, i+1, err)
		}
		rules = append(rules, rule)
	}
	return rules, nil
}
