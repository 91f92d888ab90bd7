package model

// Direction restricts a rule to money coming in or going out.
type Direction string

// Directions. The empty direction matches both.
const (
	DirectionAny Direction = ""
	DirectionIn  Direction = "in"
	DirectionOut Direction = "out"
)

// AmountCondition is the comparison a rule applies to a transaction's
// absolute amount.
type AmountCondition string

// Amount condition constants.
const (
	AmountAny          AmountCondition = "any"
	AmountLessThan     AmountCondition = "lt"
	AmountLessEqual    AmountCondition = "le"
	AmountEqual        AmountCondition = "eq"
	AmountGreaterEqual AmountCondition = "ge"
	AmountGreaterThan  AmountCondition = "gt"
	AmountRange        AmountCondition = "range"
)

// PatternRule assigns a category to transactions whose vendor, account,
// amount and direction match.
type PatternRule struct {
	AmountValue     *float64
	AmountMin       *float64
	AmountMax       *float64
	Name            string
	VendorPattern   string
	Account         string
	AmountCondition AmountCondition
	Direction       Direction
	Category        string
	SubCategory     string
	Priority        int
	IsRegex         bool
}
