package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"rollcall/internal/models"
)

// UpsertUser создает или заменяет пользователя. Отсутствия и периоды не трогаются.
func (db *DB) UpsertUser(ctx context.Context, user *models.User) error {
	query := `
        INSERT INTO users (user_id, name, username, last_active)
        VALUES (?, ?, ?, ?)
        ON CONFLICT(user_id) DO UPDATE SET
            name = excluded.name,
            username = excluded.username,
            last_active = excluded.last_active
    `

	_, err := db.db.ExecContext(ctx, query, user.UserID, user.Name, user.Username, time.Now())
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}

// GetUser возвращает пользователя по Telegram ID.
func (db *DB) GetUser(ctx context.Context, userID int64) (*models.User, error) {
	query := `SELECT user_id, name, username, last_active FROM users WHERE user_id = ?`

	var user models.User
	var username sql.NullString
	err := db.db.QueryRowContext(ctx, query, userID).Scan(
		&user.UserID,
		&user.Name,
		&username,
		&user.LastActive,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}

	user.Username = username.String
	return &user, nil
}

// UpdateUsernameIfChanged обновляет юзернейм, если он отличается от сохраненного.
func (db *DB) UpdateUsernameIfChanged(ctx context.Context, userID int64, username string) error {
	user, err := db.GetUser(ctx, userID)
	if err != nil {
		return err
	}

	if user.Username == username {
		return nil
	}

	query := `UPDATE users SET username = ?, last_active = ? WHERE user_id = ?`
	if _, err := db.db.ExecContext(ctx, query, username, time.Now(), userID); err != nil {
		return fmt.Errorf("update username: %w", err)
	}
	return nil
}

// UpdateUserActivity обновляет время последней активности.
func (db *DB) UpdateUserActivity(ctx context.Context, userID int64) error {
	query := `UPDATE users SET last_active = ? WHERE user_id = ?`

	_, err := db.db.ExecContext(ctx, query, time.Now(), userID)
	return err
}

// GetAllUsers возвращает всех зарегистрированных пользователей.
func (db *DB) GetAllUsers(ctx context.Context) ([]*models.User, error) {
	query := `SELECT user_id, name, username, last_active FROM users ORDER BY user_id`

	rows, err := db.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("get all users: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		var user models.User
		var username sql.NullString
		if err := rows.Scan(&user.UserID, &user.Name, &username, &user.LastActive); err != nil {
			return nil, err
		}
		user.Username = username.String
		users = append(users, &user)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return users, nil
}
