package bot

import (
	"context"
	"fmt"
	"strings"

	"rollcall/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func (b *Bot) handleCommand(ctx context.Context, update tgbotapi.Update) {
	switch update.Message.Command() {
	case "start":
		b.handleStart(ctx, update)
	case "help":
		b.handleHelp(update)
	case "history":
		b.handleHistory(ctx, update)
	case "absence":
		b.handleAbsence(ctx, update)
	case "clear_absence":
		b.handleClearAbsence(ctx, update)
	case "journal":
		b.handleJournal(update)
	default:
		b.sendMessage(update.Message.Chat.ID, "❓ Неизвестная команда. Список команд: /help")
	}
}

// handleStart — вход в бота. Зарегистрированного пользователя возвращает в
// главное меню и сбрасывает висящий диалог, нового отправляет представляться.
func (b *Bot) handleStart(ctx context.Context, update tgbotapi.Update) {
	msg := update.Message
	userID := msg.From.ID

	user, err := b.userService.GetUser(ctx, userID)
	if err == nil {
		b.clearState(ctx, userID)
		b.sendWithKeyboard(msg.Chat.ID, fmt.Sprintf("👋 Привет, %s!\n\nВыбери действие:", user.Name), mainKeyboard())
		return
	}

	if !isNotFound(err) {
		b.sendMessage(msg.Chat.ID, b.getErrorMessage(err))
		return
	}

	if _, err := b.tgService.SendWithRemoveKeyboard(msg.Chat.ID, "👋 Представься (ФИО или имя):"); err != nil {
		b.logger.Error().Err(err).Int64("chat_id", msg.Chat.ID).Msg("Failed to send message")
	}
	b.setState(ctx, userID, models.StateAwaitingName, map[string]interface{}{
		"username": msg.From.UserName,
	})
}

func (b *Bot) handleHelp(update tgbotapi.Update) {
	helpText := "ℹ️ Команды:\n" +
		"/start — начать диалог\n" +
		"/history — история отсутствий\n" +
		"/absence — активные периоды отсутствия\n" +
		"/clear_absence — удалить периоды\n" +
		"/journal — получить Excel-журнал (админ)\n\n" +
		"📅 Учебные дни: понедельник-суббота"
	b.sendMessage(update.Message.Chat.ID, helpText)
}

func (b *Bot) handleHistory(ctx context.Context, update tgbotapi.Update) {
	msg := update.Message

	absences, err := b.attendanceService.RecentAbsences(ctx, msg.From.ID, b.config.Bot.HistoryLimit)
	if err != nil {
		b.sendMessage(msg.Chat.ID, b.getErrorMessage(err))
		return
	}

	if len(absences) == 0 {
		b.sendMessage(msg.Chat.ID, "📭 Нет записанных отсутствий.")
		return
	}

	var sb strings.Builder
	sb.WriteString("📊 История отсутствий:\n\n")
	for _, a := range absences {
		sb.WriteString("• " + a.Date)
		if a.Reason.Valid && a.Reason.String != "" {
			sb.WriteString(" — " + a.Reason.String)
		}
		sb.WriteString("\n")
	}
	b.sendMessage(msg.Chat.ID, sb.String())
}

func (b *Bot) handleAbsence(ctx context.Context, update tgbotapi.Update) {
	msg := update.Message

	periods, err := b.attendanceService.ActivePeriods(ctx, msg.From.ID, b.now())
	if err != nil {
		b.sendMessage(msg.Chat.ID, b.getErrorMessage(err))
		return
	}

	if len(periods) == 0 {
		b.sendMessage(msg.Chat.ID, "📭 У вас нет активных периодов отсутствия.")
		return
	}

	var sb strings.Builder
	sb.WriteString("📅 Активные периоды отсутствия:\n\n")
	for _, p := range periods {
		sb.WriteString(fmt.Sprintf("📆 С %s по %s\n📝 %s\n\n", p.StartDate, p.EndDate, p.Reason))
	}
	sb.WriteString("💡 Чтобы удалить период, отправьте /clear_absence")
	b.sendMessage(msg.Chat.ID, sb.String())
}

func (b *Bot) handleClearAbsence(ctx context.Context, update tgbotapi.Update) {
	msg := update.Message

	removed, err := b.attendanceService.ClearPeriods(ctx, msg.From.ID, b.now())
	if err != nil {
		b.sendMessage(msg.Chat.ID, b.getErrorMessage(err))
		return
	}

	if removed > 0 {
		b.sendMessage(msg.Chat.ID, fmt.Sprintf("✅ Удалено %d активных периодов отсутствия.", removed))
	} else {
		b.sendMessage(msg.Chat.ID, "📭 Нет активных периодов для удаления.")
	}
}

// handleJournal — только для админа: актуализирует окно дат и шлет файл.
func (b *Bot) handleJournal(update tgbotapi.Update) {
	msg := update.Message

	if !b.isAdmin(msg.From.ID) {
		b.sendMessage(msg.Chat.ID, "❌ Эта команда только для админа!")
		return
	}

	if err := b.journal.Refresh(b.now(), b.config.Journal.LookaheadDays); err != nil {
		b.logger.Error().Err(err).Msg("journal refresh error")
		b.sendMessage(msg.Chat.ID, "❌ Ошибка отправки файла.")
		return
	}

	if _, err := b.tgService.SendDocument(msg.Chat.ID, b.journal.Path(), "📊 Актуальный журнал посещаемости"); err != nil {
		b.logger.Error().Err(err).Msg("journal send error")
		b.sendMessage(msg.Chat.ID, "❌ Ошибка отправки файла.")
	}
}
