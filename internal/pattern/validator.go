package pattern

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/Veraticus/spice-ledger/internal/model"
)

// ErrInvalidRule is returned for rules that could never be applied as written.
var ErrInvalidRule = errors.New("invalid pattern rule")

// Validate reports the first problem with a rule.
func Validate(rule Rule) error {
	if strings.TrimSpace(rule.Category) == "" {
		return fmt.Errorf("%w: %s: category is required", ErrInvalidRule, ruleName(rule))
	}

	if rule.IsRegex {
		if _, err := regexp.Compile(rule.VendorPattern); err != nil {
			return fmt.Errorf("%w: %s: vendor pattern: %w", ErrInvalidRule, ruleName(rule), err)
		}
	}

	switch rule.Direction {
	case model.DirectionAny, model.DirectionIn, model.DirectionOut:
	default:
		return fmt.Errorf("%w: %s: direction must be \"in\" or \"out\", got %q", ErrInvalidRule, ruleName(rule), rule.Direction)
	}

	switch rule.AmountCondition {
	case "", model.AmountAny:
	case model.AmountLessThan, model.AmountLessEqual, model.AmountEqual, model.AmountGreaterEqual, model.AmountGreaterThan:
		if rule.AmountValue == nil {
			return fmt.Errorf("%w: %s: amount condition %q needs an amount", ErrInvalidRule, ruleName(rule), rule.AmountCondition)
		}
	case model.AmountRange:
		if rule.AmountMin == nil && rule.AmountMax == nil {
			return fmt.Errorf("%w: %s: range needs a minimum or maximum", ErrInvalidRule, ruleName(rule))
		}
		if rule.AmountMin != nil && rule.AmountMax != nil && *rule.AmountMin > *rule.AmountMax {
			return fmt.Errorf("%w: %s: range minimum exceeds maximum", ErrInvalidRule, ruleName(rule))
		}
	default:
		return fmt.Errorf("%w: %s: unknown amount condition %q", ErrInvalidRule, ruleName(rule), rule.AmountCondition)
	}

	return nil
}

// ValidateAll validates every rule, stopping at the first error.
func ValidateAll(rules []Rule) error {
	for _, rule := range rules {
		if err := Validate(rule); err != nil {
			return err
		}
	}
	return nil
}

func ruleName(rule Rule) string {
	if rule.Name != "" {
		return fmt.Sprintf("rule %q", rule.Name)
	}
	return fmt.Sprintf("rule for %q", rule.VendorPattern)
}
