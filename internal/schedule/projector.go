// Package schedule expands recurring transaction templates into dated occurrences.
package schedule

import (
	"sort"
	"time"

	"github.com/Veraticus/spice-ledger/internal/model"
)

// MaxStepsPerTemplate bounds the work done for one template, whatever its frequency.
const MaxStepsPerTemplate = 1000

// GenerateOccurrences projects every template into the window
// [rangeStart, rangeEnd), both truncated to the start of their day.
//
// Each template starts at the start of its anchor date and advances by its
// frequency. A template's EndDate, when set, tightens the upper bound.
// One-time and unknown frequencies yield at most the anchor occurrence.
// Occurrences are returned in template order, chronological per template.
func GenerateOccurrences(templates []model.ScheduledTransaction, rangeStart, rangeEnd time.Time) []model.Occurrence {
	start := model.StartOfDay(rangeStart)
	end := model.StartOfDay(rangeEnd)

	var occurrences []model.Occurrence
	for i := range templates {
		occurrences = append(occurrences, project(&templates[i], start, end)...)
	}
	return occurrences
}

func project(t *model.ScheduledTransaction, start, end time.Time) []model.Occurrence {
	if t.Date.IsZero() {
		return nil
	}

	limit := end
	if t.EndDate != nil && t.EndDate.Before(limit) {
		limit = *t.EndDate
	}

	var occurrences []model.Occurrence
	current := model.StartOfDay(t.Date)

	for steps := 0; current.Before(limit) && steps < MaxStepsPerTemplate; steps++ {
		if !current.Before(start) && !t.IsIgnored(current) {
			occurrences = append(occurrences, model.Occurrence{
				Original: t,
				Date:     current,
				Amount:   t.Amount,
			})
		}

		next, ok := t.Frequency.Advance(current)
		if !ok || !next.After(current) {
			break
		}
		current = next
	}

	return occurrences
}

// SortOccurrences orders occurrences by date, keeping template order for equal dates.
func SortOccurrences(occurrences []model.Occurrence) {
	sort.SliceStable(occurrences, func(i, j int) bool {
		return occurrences[i].Date.Before(occurrences[j].Date)
	})
}
