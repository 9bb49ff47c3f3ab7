package bot

import (
	"context"
	"fmt"
)

// Уведомления админу: отправляются после успешной записи в БД и никогда не
// валят основной сценарий — сбой только логируется.

func (b *Bot) notifyAdminAbsence(ctx context.Context, userID int64, date, reason string) {
	user, err := b.userService.GetUser(ctx, userID)
	if err != nil {
		b.logger.Error().Err(err).Int64("user_id", userID).Msg("notify: load user error")
		return
	}

	reasonText := ""
	if reason != "" {
		reasonText = fmt.Sprintf("\n📝 Причина: %s", reason)
	}

	text := fmt.Sprintf("⚠️ Отсутствие\n👤 %s%s (ID: %d)\n📅 %s%s",
		user.Name, usernameSuffix(user.Username), userID, date, reasonText)

	if _, err := b.tgService.SendMessage(b.config.Telegram.AdminChatID, text); err != nil {
		b.logger.Error().Err(err).Msg("notify: admin send error")
	}
}

func (b *Bot) notifyAdminPeriod(ctx context.Context, userID int64, startDate, endDate, reason string) {
	user, err := b.userService.GetUser(ctx, userID)
	if err != nil {
		b.logger.Error().Err(err).Int64("user_id", userID).Msg("notify: load user error")
		return
	}

	text := fmt.Sprintf("📅 ПЕРИОД ОТСУТСТВИЯ\n\n👤 %s%s (ID: %d)\n📆 С %s по %s\n📝 Причина: %s",
		user.Name, usernameSuffix(user.Username), userID, startDate, endDate, reason)

	if _, err := b.tgService.SendMessage(b.config.Telegram.AdminChatID, text); err != nil {
		b.logger.Error().Err(err).Msg("notify: admin send error")
	}
}

func usernameSuffix(username string) string {
	if username == "" {
		return ""
	}
	return fmt.Sprintf(" (@%s)", username)
}
