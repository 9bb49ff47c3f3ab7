package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"rollcall/internal/models"
)

// RecordAbsence добавляет запись об отсутствии. Журнал append-only: повторный
// отчет за ту же дату — новая строка, ячейка в Excel перезапишется последней.
func (db *DB) RecordAbsence(ctx context.Context, userID int64, date string, reason string) (*models.Absence, error) {
	if _, err := db.GetUser(ctx, userID); err != nil {
		return nil, err
	}

	var nullReason sql.NullString
	if reason != "" {
		nullReason = sql.NullString{String: reason, Valid: true}
	}

	now := time.Now()
	query := `INSERT INTO absences (user_id, date, reason, reported_at) VALUES (?, ?, ?, ?)`
	result, err := db.db.ExecContext(ctx, query, userID, date, nullReason, now)
	if err != nil {
		return nil, fmt.Errorf("record absence: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("record absence id: %w", err)
	}

	return &models.Absence{
		ID:         id,
		UserID:     userID,
		Date:       date,
		Reason:     nullReason,
		ReportedAt: now,
	}, nil
}

// ListRecentAbsences возвращает последние отсутствия пользователя, новые первыми.
func (db *DB) ListRecentAbsences(ctx context.Context, userID int64, limit int) ([]*models.Absence, error) {
	query := `
        SELECT id, user_id, date, reason, reported_at
        FROM absences
        WHERE user_id = ?
        ORDER BY id DESC
        LIMIT ?
    `

	rows, err := db.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list absences: %w", err)
	}
	defer rows.Close()

	var absences []*models.Absence
	for rows.Next() {
		var a models.Absence
		if err := rows.Scan(&a.ID, &a.UserID, &a.Date, &a.Reason, &a.ReportedAt); err != nil {
			return nil, err
		}
		absences = append(absences, &a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return absences, nil
}
