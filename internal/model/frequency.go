package model

import (
	"regexp"
	"strconv"
	"time"
)

// FrequencyKind distinguishes how a schedule repeats.
type FrequencyKind int

const (
	// FrequencyUnknown is any string that could not be decoded. Projection stops after the anchor.
	FrequencyUnknown FrequencyKind = iota
	// FrequencyOnce is a single occurrence ("One-time").
	FrequencyOnce
	// FrequencyCalendar is one of the named frequencies (Daily, Weekly, Monthly, Yearly).
	FrequencyCalendar
	// FrequencyInterval is the compact "<N><unit>" form, e.g. "2w".
	FrequencyInterval
)

// Unit is the calendar unit a frequency advances by.
type Unit int

// Calendar units.
const (
	UnitDay Unit = iota
	UnitWeek
	UnitMonth
	UnitYear
)

// Stored frequency names.
const (
	FrequencyDaily   = "Daily"
	FrequencyWeekly  = "Weekly"
	FrequencyMonthly = "Monthly"
	FrequencyYearly  = "Yearly"
	FrequencyOneTime = "One-time"
)

var intervalPattern = regexp.MustCompile(`^(\d+)([dwmy])$`)

// Frequency is the decoded form of a schedule's frequency string.
type Frequency struct {
	Raw   string
	Kind  FrequencyKind
	Unit  Unit
	Count int
}

// ParseFrequency decodes a stored frequency string. It never fails; strings
// it does not understand decode to FrequencyUnknown with Raw preserved.
func ParseFrequency(s string) Frequency {
	switch s {
	case FrequencyDaily:
		return Frequency{Raw: s, Kind: FrequencyCalendar, Unit: UnitDay, Count: 1}
	case FrequencyWeekly:
		return Frequency{Raw: s, Kind: FrequencyCalendar, Unit: UnitWeek, Count: 1}
	case FrequencyMonthly:
		return Frequency{Raw: s, Kind: FrequencyCalendar, Unit: UnitMonth, Count: 1}
	case FrequencyYearly:
		return Frequency{Raw: s, Kind: FrequencyCalendar, Unit: UnitYear, Count: 1}
	case FrequencyOneTime:
		return Frequency{Raw: s, Kind: FrequencyOnce}
	}

	match := intervalPattern.FindStringSubmatch(s)
	if match == nil {
		return Frequency{Raw: s, Kind: FrequencyUnknown}
	}

	// A zero count would never advance, so it is treated like garbage input.
	count, err := strconv.Atoi(match[1])
	if err != nil || count <= 0 {
		return Frequency{Raw: s, Kind: FrequencyUnknown}
	}

	var unit Unit
	switch match[2] {
	case "d":
		unit = UnitDay
	case "w":
		unit = UnitWeek
	case "m":
		unit = UnitMonth
	case "y":
		unit = UnitYear
	}

	return Frequency{Raw: s, Kind: FrequencyInterval, Unit: unit, Count: count}
}

// Repeats reports whether the frequency produces more than one occurrence.
func (f Frequency) Repeats() bool {
	return f.Kind == FrequencyCalendar || f.Kind == FrequencyInterval
}

// Advance returns t moved forward by one period. The boolean is false when
// the frequency does not repeat (one-time or unknown).
func (f Frequency) Advance(t time.Time) (time.Time, bool) {
	if !f.Repeats() {
		return t, false
	}

	switch f.Unit {
	case UnitDay:
		return t.AddDate(0, 0, f.Count), true
	case UnitWeek:
		return t.AddDate(0, 0, 7*f.Count), true
	case UnitMonth:
		return AddMonths(t, f.Count), true
	case UnitYear:
		return AddMonths(t, 12*f.Count), true
	default:
		return t, false
	}
}

// String returns the stored representation of the frequency.
func (f Frequency) String() string {
	switch f.Kind {
	case FrequencyOnce:
		return FrequencyOneTime
	case FrequencyCalendar:
		switch f.Unit {
		case UnitDay:
			return FrequencyDaily
		case UnitWeek:
			return FrequencyWeekly
		case UnitMonth:
			return FrequencyMonthly
		case UnitYear:
			return FrequencyYearly
		}
	case FrequencyInterval:
		return strconv.Itoa(f.Count) + string("dwmy"[f.Unit])
	}
	return f.Raw
}

// AddMonths adds n calendar months to t, clamping the day to the last day of
// the target month (Jan 31 + 1 month is Feb 28 or 29). Time of day and
// location are preserved.
func AddMonths(t time.Time, n int) time.Time {
	year, month, day := t.Date()
	hour, minute, sec := t.Clock()

	// Day 0 of the following month is the last day of the target month.
	lastDay := time.Date(year, month+time.Month(n)+1, 0, 0, 0, 0, 0, t.Location()).Day()
	if day > lastDay {
		day = lastDay
	}

	return time.Date(year, month+time.Month(n), day, hour, minute, sec, t.Nanosecond(), t.Location())
}

// StartOfDay truncates t to midnight in its own location.
func StartOfDay(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, t.Location())
}
