package database

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"rollcall/internal/dates"
	"rollcall/internal/models"
)

// Сравнение дат периодов всегда идет через разбор канонического текста:
// лексикографическое сравнение ДД.ММ.ГГГГ ломается на границах месяцев и лет.

// RecordAbsencePeriod добавляет период отсутствия. Границы проверены на входе
// диалога, здесь — последний рубеж.
func (db *DB) RecordAbsencePeriod(ctx context.Context, userID int64, startDate, endDate, reason string) (*models.AbsencePeriod, error) {
	if _, err := db.GetUser(ctx, userID); err != nil {
		return nil, err
	}

	start, err := dates.ParseCanonical(startDate)
	if err != nil {
		return nil, fmt.Errorf("parse start date %q: %w", startDate, err)
	}
	end, err := dates.ParseCanonical(endDate)
	if err != nil {
		return nil, fmt.Errorf("parse end date %q: %w", endDate, err)
	}
	if end.Before(start) {
		return nil, ErrInvalidPeriod
	}

	now := time.Now()
	query := `INSERT INTO absence_periods (user_id, start_date, end_date, reason, created_at) VALUES (?, ?, ?, ?, ?)`
	result, err := db.db.ExecContext(ctx, query, userID, startDate, endDate, reason, now)
	if err != nil {
		return nil, fmt.Errorf("record absence period: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("record absence period id: %w", err)
	}

	return &models.AbsencePeriod{
		ID:        id,
		UserID:    userID,
		StartDate: startDate,
		EndDate:   endDate,
		Reason:    reason,
		CreatedAt: now,
	}, nil
}

// listUserPeriods возвращает все периоды пользователя без фильтрации.
func (db *DB) listUserPeriods(ctx context.Context, userID int64) ([]*models.AbsencePeriod, error) {
	query := `
        SELECT id, user_id, start_date, end_date, reason, created_at
        FROM absence_periods
        WHERE user_id = ?
    `

	rows, err := db.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list periods: %w", err)
	}
	defer rows.Close()

	var periods []*models.AbsencePeriod
	for rows.Next() {
		var p models.AbsencePeriod
		if err := rows.Scan(&p.ID, &p.UserID, &p.StartDate, &p.EndDate, &p.Reason, &p.CreatedAt); err != nil {
			return nil, err
		}
		periods = append(periods, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return periods, nil
}

// dateOnly срезает время: даты периодов — полночи UTC, asOf приходит с
// часами и поясом.
func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ListActivePeriods возвращает периоды, чья дата окончания >= asOf,
// отсортированные по дате начала.
func (db *DB) ListActivePeriods(ctx context.Context, userID int64, asOf time.Time) ([]*models.AbsencePeriod, error) {
	periods, err := db.listUserPeriods(ctx, userID)
	if err != nil {
		return nil, err
	}
	asOf = dateOnly(asOf)

	var active []*models.AbsencePeriod
	for _, p := range periods {
		end, err := dates.ParseCanonical(p.EndDate)
		if err != nil {
			db.logger.Warn().Int64("period_id", p.ID).Str("end_date", p.EndDate).Msg("Некорректная дата окончания периода")
			continue
		}
		if !end.Before(asOf) {
			active = append(active, p)
		}
	}

	sort.Slice(active, func(i, j int) bool {
		si, _ := dates.ParseCanonical(active[i].StartDate)
		sj, _ := dates.ParseCanonical(active[j].StartDate)
		return si.Before(sj)
	})

	return active, nil
}

// ClearActivePeriods удаляет периоды с датой окончания >= asOf и возвращает
// число удаленных. Прошедшие периоды остаются как история.
func (db *DB) ClearActivePeriods(ctx context.Context, userID int64, asOf time.Time) (int, error) {
	active, err := db.ListActivePeriods(ctx, userID, asOf)
	if err != nil {
		return 0, err
	}
	if len(active) == 0 {
		return 0, nil
	}

	ids := make([]interface{}, 0, len(active))
	placeholders := make([]string, 0, len(active))
	for _, p := range active {
		ids = append(ids, p.ID)
		placeholders = append(placeholders, "?")
	}

	query := fmt.Sprintf(`DELETE FROM absence_periods WHERE id IN (%s)`, strings.Join(placeholders, ","))
	result, err := db.db.ExecContext(ctx, query, ids...)
	if err != nil {
		return 0, fmt.Errorf("clear periods: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(deleted), nil
}

// IsUserCoveredOn отвечает, накрывает ли какой-нибудь период пользователя
// указанную дату (границы включительно).
func (db *DB) IsUserCoveredOn(ctx context.Context, userID int64, date time.Time) (bool, error) {
	periods, err := db.listUserPeriods(ctx, userID)
	if err != nil {
		return false, err
	}
	date = dateOnly(date)

	for _, p := range periods {
		start, err := dates.ParseCanonical(p.StartDate)
		if err != nil {
			continue
		}
		end, err := dates.ParseCanonical(p.EndDate)
		if err != nil {
			continue
		}
		if !date.Before(start) && !date.After(end) {
			return true, nil
		}
	}

	return false, nil
}
