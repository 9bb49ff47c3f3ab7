package bot

import (
	"context"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func (b *Bot) withRecovery(handler func()) {
	defer func() {
		if r := recover(); r != nil {
			if b.metrics != nil {
				b.metrics.ErrorsTotal.Inc()
			}
			b.logger.Error().Interface("panic", r).Msg("Recovered from panic in update handler")
		}
	}()
	handler()
}

// trackActivity фоном обновляет отметку активности и юзернейм. Для еще не
// зарегистрированных пользователей RefreshProfile вернет ErrUserNotFound —
// это не ошибка, просто нечего обновлять.
func (b *Bot) trackActivity(ctx context.Context, from *tgbotapi.User) {
	if from == nil || from.ID == 0 {
		return
	}
	userID := from.ID
	username := from.UserName
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := b.userService.RefreshProfile(ctx, userID, username); err != nil && !isNotFound(err) {
			b.logger.Error().Err(err).Int64("user_id", userID).Msg("Failed to refresh user profile")
		}
	}()
}
