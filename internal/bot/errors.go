package bot

import (
	"errors"

	"rollcall/internal/database"
	"rollcall/internal/dates"
)

func isNotFound(err error) bool {
	return errors.Is(err, database.ErrUserNotFound)
}

func (b *Bot) getErrorMessage(err error) string {
	if err == nil {
		return ""
	}

	if errors.Is(err, dates.ErrInvalidDateFormat) {
		return "Неверный формат. Используй ДД.ММ или ДД.ММ.ГГГГ (например, 15.02 или 15.02.2026)"
	}

	if errors.Is(err, dates.ErrInvalidCalendarDate) {
		return "Некорректная дата"
	}

	if errors.Is(err, database.ErrUserNotFound) {
		return "❌ Ошибка: пользователь не найден в базе."
	}

	if errors.Is(err, database.ErrInvalidPeriod) {
		return "❌ Дата окончания не может быть раньше даты начала!"
	}

	// Default error message
	return "❌ Произошла ошибка при обработке запроса. Попробуйте позже."
}
