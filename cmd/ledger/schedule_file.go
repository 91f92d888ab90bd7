package main

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/Veraticus/spice-ledger/internal/model"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// scheduleFile is the YAML document accepted by "schedule import".
type scheduleFile struct {
	Schedules []scheduleEntry `yaml:"schedules"`
}

type scheduleEntry struct {
	ID           string   `yaml:"id"`
	Date         string   `yaml:"date"`
	EndDate      string   `yaml:"end_date"`
	Frequency    string   `yaml:"frequency"`
	Vendor       string   `yaml:"vendor"`
	Account      string   `yaml:"account"`
	Category     string   `yaml:"category"`
	SubCategory  string   `yaml:"sub_category"`
	Remarks      string   `yaml:"remarks"`
	Currency     string   `yaml:"currency"`
	TransferID   string   `yaml:"transfer_id"`
	IgnoredDates []string `yaml:"ignored_dates"`
	Amount       float64  `yaml:"amount"`
}

// parseScheduleFile decodes and validates a schedules document. Unknown keys
// are rejected so typos do not silently drop data.
func parseScheduleFile(r io.Reader) ([]model.ScheduledTransaction, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var doc scheduleFile
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to parse schedule file: %w", err)
	}

	schedules := make([]model.ScheduledTransaction, 0, len(doc.Schedules))
	for i, entry := range doc.Schedules {
		st, err := entry.toModel()
		if err != nil {
			return nil, fmt.Errorf("schedule %d: %w", i+1, err)
		}
		schedules = append(schedules, st)
	}
	return schedules, nil
}

func (e scheduleEntry) toModel() (model.ScheduledTransaction, error) {
	date, err := time.ParseInLocation(dateLayout, e.Date, time.Local)
	if err != nil {
		return model.ScheduledTransaction{}, fmt.Errorf("invalid date %q: %w", e.Date, err)
	}

	freq, err := parseScheduleFrequency(e.Frequency)
	if err != nil {
		return model.ScheduledTransaction{}, err
	}

	st := model.ScheduledTransaction{
		ID:          e.ID,
		Date:        date,
		Frequency:   freq,
		Amount:      e.Amount,
		Currency:    strings.ToUpper(e.Currency),
		Vendor:      e.Vendor,
		Account:     e.Account,
		Category:    e.Category,
		SubCategory: e.SubCategory,
		Remarks:     e.Remarks,
		TransferID:  e.TransferID,
	}
	if st.ID == "" {
		st.ID = uuid.NewString()
	}
	if st.Account == "" {
		return model.ScheduledTransaction{}, errors.New("account is required")
	}

	if e.EndDate != "" {
		end, err := time.ParseInLocation(dateLayout, e.EndDate, time.Local)
		if err != nil {
			return model.ScheduledTransaction{}, fmt.Errorf("invalid end_date %q: %w", e.EndDate, err)
		}
		st.EndDate = &end
	}

	for _, raw := range e.IgnoredDates {
		day, err := time.ParseInLocation(dateLayout, raw, time.Local)
		if err != nil {
			return model.ScheduledTransaction{}, fmt.Errorf("invalid ignored date %q: %w", raw, err)
		}
		st.IgnoredDates = append(st.IgnoredDates, day)
	}

	return st, nil
}

// parseScheduleFrequency accepts the named frequencies and the compact
// "<N><unit>" form. Input the projector would treat as unknown is rejected
// here, where a person can fix it.
func parseScheduleFrequency(raw string) (model.Frequency, error) {
	if raw == "" {
		raw = model.FrequencyMonthly
	}
	freq := model.ParseFrequency(raw)
	if freq.Kind == model.FrequencyUnknown {
		return freq, fmt.Errorf("unknown frequency %q (use Daily, Weekly, Monthly, Yearly, One-time or forms like 2w, 3m)", raw)
	}
	return freq, nil
}
