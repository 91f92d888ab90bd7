package model

import "time"

// Budget is a spending target for a category over a window.
type Budget struct {
	Start       time.Time
	End         time.Time
	Category    string
	SubCategory string
	Currency    string
	Target      float64
}
