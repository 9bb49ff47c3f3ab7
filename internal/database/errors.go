package database

import "errors"

var (
	// ErrUserNotFound возвращается, когда для user_id нет строки в users.
	ErrUserNotFound = errors.New("user not found")

	// ErrInvalidPeriod возвращается при попытке записать период с end < start.
	// Границы проверяются на входе диалога, это последний рубеж.
	ErrInvalidPeriod = errors.New("period end date is before start date")
)
