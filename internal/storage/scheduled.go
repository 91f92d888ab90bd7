package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Veraticus/spice-ledger/internal/common"
	"github.com/Veraticus/spice-ledger/internal/model"
)

const ignoredDateLayout = "2006-01-02"

const scheduledColumns = `id, date, frequency, end_date, amount, currency, vendor, account,
	category, sub_category, remarks, transfer_id, ignored_dates, last_processed`

// SaveScheduledTransaction creates or replaces a schedule template.
func (s *SQLiteStorage) SaveScheduledTransaction(ctx context.Context, st *model.ScheduledTransaction) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateScheduled(st); err != nil {
		return err
	}
	return s.saveScheduledTx(ctx, s.db, st)
}

func (s *SQLiteStorage) saveScheduledTx(ctx context.Context, q queryable, st *model.ScheduledTransaction) error {
	ignored, err := encodeIgnoredDates(st.IgnoredDates)
	if err != nil {
		return err
	}

	_, err = q.ExecContext(ctx, `
		INSERT INTO scheduled_transactions (`+scheduledColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			date = excluded.date,
			frequency = excluded.frequency,
			end_date = excluded.end_date,
			amount = excluded.amount,
			currency = excluded.currency,
			vendor = excluded.vendor,
			account = excluded.account,
			category = excluded.category,
			sub_category = excluded.sub_category,
			remarks = excluded.remarks,
			transfer_id = excluded.transfer_id,
			ignored_dates = excluded.ignored_dates,
			last_processed = excluded.last_processed
	`,
		st.ID,
		st.Date,
		st.Frequency.String(),
		nullTime(st.EndDate),
		st.Amount,
		st.Currency,
		st.Vendor,
		st.Account,
		st.Category,
		st.SubCategory,
		st.Remarks,
		st.TransferID,
		ignored,
		nullTime(st.LastProcessed),
	)
	if err != nil {
		return fmt.Errorf("failed to save scheduled transaction %s: %w", st.ID, err)
	}
	return nil
}

// GetScheduledTransactions returns every schedule template ordered by anchor date.
func (s *SQLiteStorage) GetScheduledTransactions(ctx context.Context) ([]model.ScheduledTransaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.getScheduledTx(ctx, s.db)
}

func (s *SQLiteStorage) getScheduledTx(ctx context.Context, q queryable) ([]model.ScheduledTransaction, error) {
	rows, err := q.QueryContext(ctx,
		"SELECT "+scheduledColumns+" FROM scheduled_transactions ORDER BY date ASC, id ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to query scheduled transactions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var schedules []model.ScheduledTransaction
	for rows.Next() {
		st, err := scanScheduled(rows)
		if err != nil {
			return nil, err
		}
		schedules = append(schedules, *st)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating scheduled transactions: %w", err)
	}
	return schedules, nil
}

// GetScheduledTransaction returns a single schedule template.
func (s *SQLiteStorage) GetScheduledTransaction(ctx context.Context, id string) (*model.ScheduledTransaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}
	return s.getScheduledByIDTx(ctx, s.db, id)
}

func (s *SQLiteStorage) getScheduledByIDTx(ctx context.Context, q queryable, id string) (*model.ScheduledTransaction, error) {
	row := q.QueryRowContext(ctx,
		"SELECT "+scheduledColumns+" FROM scheduled_transactions WHERE id = ?", id)

	st, err := scanScheduled(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("scheduled transaction %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return st, nil
}

// DeleteScheduledTransaction removes a schedule template.
func (s *SQLiteStorage) DeleteScheduledTransaction(ctx context.Context, id string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}
	return s.deleteScheduledTx(ctx, s.db, id)
}

func (s *SQLiteStorage) deleteScheduledTx(ctx context.Context, q queryable, id string) error {
	result, err := q.ExecContext(ctx, "DELETE FROM scheduled_transactions WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete scheduled transaction: %w", err)
	}
	return requireRows(result, "scheduled transaction", id)
}

// MarkScheduleProcessed records when occurrences of a schedule were last materialised.
func (s *SQLiteStorage) MarkScheduleProcessed(ctx context.Context, id string, processedAt time.Time) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}
	return s.markScheduleProcessedTx(ctx, s.db, id, processedAt)
}

func (s *SQLiteStorage) markScheduleProcessedTx(ctx context.Context, q queryable, id string, processedAt time.Time) error {
	result, err := q.ExecContext(ctx,
		"UPDATE scheduled_transactions SET last_processed = ? WHERE id = ?", processedAt, id)
	if err != nil {
		return fmt.Errorf("failed to mark schedule processed: %w", err)
	}
	return requireRows(result, "scheduled transaction", id)
}

func scanScheduled(row scanner) (*model.ScheduledTransaction, error) {
	var (
		st            model.ScheduledTransaction
		frequency     string
		ignored       string
		endDate       sql.NullTime
		lastProcessed sql.NullTime
	)

	err := row.Scan(
		&st.ID,
		&st.Date,
		&frequency,
		&endDate,
		&st.Amount,
		&st.Currency,
		&st.Vendor,
		&st.Account,
		&st.Category,
		&st.SubCategory,
		&st.Remarks,
		&st.TransferID,
		&ignored,
		&lastProcessed,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan scheduled transaction: %w", err)
	}

	st.Frequency = model.ParseFrequency(frequency)
	if endDate.Valid {
		st.EndDate = &endDate.Time
	}
	if lastProcessed.Valid {
		st.LastProcessed = &lastProcessed.Time
	}

	st.IgnoredDates, err = decodeIgnoredDates(ignored, st.Date.Location())
	if err != nil {
		return nil, fmt.Errorf("scheduled transaction %s: %w", st.ID, err)
	}

	return &st, nil
}

// Ignored dates are calendar days, so they are stored without a time component.
func encodeIgnoredDates(dates []time.Time) (string, error) {
	days := make([]string, 0, len(dates))
	for _, d := range dates {
		days = append(days, d.Format(ignoredDateLayout))
	}

	data, err := json.Marshal(days)
	if err != nil {
		return "", fmt.Errorf("failed to encode ignored dates: %w", err)
	}
	return string(data), nil
}

func decodeIgnoredDates(raw string, loc *time.Location) ([]time.Time, error) {
	if raw == "" {
		return nil, nil
	}

	var days []string
	if err := json.Unmarshal([]byte(raw), &days); err != nil {
		return nil, fmt.Errorf("failed to decode ignored dates: %w", err)
	}

	var dates []time.Time
	for _, day := range days {
		d, err := time.ParseInLocation(ignoredDateLayout, day, loc)
		if err != nil {
			return nil, fmt.Errorf("invalid ignored date %q: %w", day, err)
		}
		dates = append(dates, d)
	}
	return dates, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
