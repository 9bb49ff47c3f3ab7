package bot

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"rollcall/internal/dates"
	"rollcall/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func (b *Bot) handleMessage(ctx context.Context, update tgbotapi.Update) {
	msg := update.Message

	if msg.IsCommand() {
		b.handleCommand(ctx, update)
		return
	}

	userID := msg.From.ID
	state, err := b.stateService.GetUserState(ctx, userID)
	if err != nil {
		b.sendMessage(msg.Chat.ID, b.getErrorMessage(err))
		return
	}

	if state != nil {
		b.handleStep(ctx, update, state)
		return
	}

	b.handleIdle(ctx, update)
}

// handleIdle — пользователь вне диалога: реагируем только на кнопки меню.
func (b *Bot) handleIdle(ctx context.Context, update tgbotapi.Update) {
	msg := update.Message
	userID := msg.From.ID

	switch resolveIntent(msg.Text) {
	case IntentMark:
		if !b.requireRegistered(ctx, userID, msg.Chat.ID) {
			return
		}
		b.sendWithKeyboard(msg.Chat.ID, "Выбери свой статус на сегодня:", attendanceKeyboard())
		if err := b.stateService.SetUserState(ctx, userID, models.StateAwaitingAttendance, nil); err != nil {
			b.logger.Error().Err(err).Int64("user_id", userID).Msg("Failed to set user state")
		}

	case IntentPeriod:
		if !b.requireRegistered(ctx, userID, msg.Chat.ID) {
			return
		}
		b.sendWithKeyboard(msg.Chat.ID, "📅 Укажи дату начала отсутствия (ДД.ММ.ГГГГ):", cancelKeyboard())
		if err := b.stateService.SetUserState(ctx, userID, models.StateAwaitingPeriodStart, nil); err != nil {
			b.logger.Error().Err(err).Int64("user_id", userID).Msg("Failed to set user state")
		}

	case IntentCancel:
		b.sendWithKeyboard(msg.Chat.ID, "↩️ Отменено.", mainKeyboard())

	default:
		b.sendWithKeyboard(msg.Chat.ID, "❓ Используй кнопки 👇", mainKeyboard())
	}
}

func (b *Bot) requireRegistered(ctx context.Context, userID, chatID int64) bool {
	_, err := b.userService.GetUser(ctx, userID)
	if err == nil {
		return true
	}
	if isNotFound(err) {
		b.sendMessage(chatID, "Сначала представьтесь! Нажмите /start")
	} else {
		b.sendMessage(chatID, b.getErrorMessage(err))
	}
	return false
}

func (b *Bot) handleStep(ctx context.Context, update tgbotapi.Update, state *models.UserState) {
	switch state.CurrentStep {
	case models.StateAwaitingName:
		b.processName(ctx, update, state)
	case models.StateAwaitingAttendance:
		b.processAttendance(ctx, update)
	case models.StateAwaitingAbsenceDate:
		b.processAbsenceDate(ctx, update, state)
	case models.StateAwaitingAbsenceReason:
		b.processAbsenceReason(ctx, update, state)
	case models.StateAwaitingPeriodStart:
		b.processPeriodStart(ctx, update, state)
	case models.StateAwaitingPeriodEnd:
		b.processPeriodEnd(ctx, update, state)
	case models.StateAwaitingPeriodReason:
		b.processPeriodReason(ctx, update, state)
	default:
		b.logger.Warn().Str("step", state.CurrentStep).Msg("Unknown conversation step, resetting")
		b.clearState(ctx, update.Message.From.ID)
		b.sendWithKeyboard(update.Message.Chat.ID, "❓ Используй кнопки 👇", mainKeyboard())
	}
}

// cancelRequested обрабатывает «🚫 Отмена» на любом шаге диалога.
func (b *Bot) cancelRequested(ctx context.Context, update tgbotapi.Update) bool {
	if resolveIntent(update.Message.Text) != IntentCancel {
		return false
	}
	b.clearState(ctx, update.Message.From.ID)
	b.sendWithKeyboard(update.Message.Chat.ID, "↩️ Отменено.", mainKeyboard())
	return true
}

func (b *Bot) clearState(ctx context.Context, userID int64) {
	if err := b.stateService.ClearUserState(ctx, userID); err != nil {
		b.logger.Error().Err(err).Int64("user_id", userID).Msg("Failed to clear user state")
	}
}

func (b *Bot) setState(ctx context.Context, userID int64, step string, data map[string]interface{}) {
	if err := b.stateService.SetUserState(ctx, userID, step, data); err != nil {
		b.logger.Error().Err(err).Int64("user_id", userID).Msg("Failed to set user state")
	}
}

func (b *Bot) processName(ctx context.Context, update tgbotapi.Update, state *models.UserState) {
	msg := update.Message
	name := strings.TrimSpace(msg.Text)

	if utf8.RuneCountInString(name) < 2 {
		b.sendMessage(msg.Chat.ID, "❌ Слишком короткое имя. Попробуй ещё:")
		return
	}

	username := msg.From.UserName
	if username == "" {
		username = state.GetString("username")
	}

	if _, err := b.userService.Register(ctx, msg.From.ID, name, username); err != nil {
		b.sendMessage(msg.Chat.ID, "❌ Ошибка сохранения. Попробуй ещё:")
		return
	}

	b.clearState(ctx, msg.From.ID)
	b.sendWithKeyboard(msg.Chat.ID, fmt.Sprintf("✅ Привет, %s!\n\nВыбери действие:", name), mainKeyboard())
}

func (b *Bot) processAttendance(ctx context.Context, update tgbotapi.Update) {
	msg := update.Message
	userID := msg.From.ID

	switch resolveIntent(msg.Text) {
	case IntentWill:
		if err := b.attendanceService.MarkPresent(ctx, userID, b.now()); err != nil {
			b.clearState(ctx, userID)
			b.sendWithKeyboard(msg.Chat.ID, b.getErrorMessage(err), mainKeyboard())
			return
		}
		if b.metrics != nil {
			b.metrics.AttendanceMarks.WithLabelValues("present").Inc()
		}
		b.clearState(ctx, userID)
		b.sendWithKeyboard(msg.Chat.ID, "👍 Отлично! Хороших пар! 📚", mainKeyboard())

	case IntentWont:
		b.sendWithKeyboard(msg.Chat.ID, "📅 Укажи дату отсутствия (ДД.ММ.ГГГГ):", cancelKeyboard())
		b.setState(ctx, userID, models.StateAwaitingAbsenceDate, nil)

	case IntentCancel:
		b.clearState(ctx, userID)
		b.sendWithKeyboard(msg.Chat.ID, "↩️ Отменено.", mainKeyboard())

	default:
		// Шаг не сбрасывается: ждем нажатия кнопки
		b.sendWithKeyboard(msg.Chat.ID, "❓ Используй кнопки 👇", attendanceKeyboard())
	}
}

func (b *Bot) processAbsenceDate(ctx context.Context, update tgbotapi.Update, state *models.UserState) {
	if b.cancelRequested(ctx, update) {
		return
	}
	msg := update.Message

	_, canonical, err := dates.ValidateAndNormalize(msg.Text, b.now())
	if err != nil {
		b.sendMessage(msg.Chat.ID, fmt.Sprintf("❌ %s\nПопробуй ещё:", b.getErrorMessage(err)))
		return
	}

	state.SetString("date", canonical)
	b.setState(ctx, msg.From.ID, models.StateAwaitingAbsenceReason, state.TempData)
	b.sendWithKeyboard(msg.Chat.ID, "✏️ Причина отсутствия? Напиши «-» если нет:", cancelKeyboard())
}

func (b *Bot) processAbsenceReason(ctx context.Context, update tgbotapi.Update, state *models.UserState) {
	if b.cancelRequested(ctx, update) {
		return
	}
	msg := update.Message
	userID := msg.From.ID

	reason := strings.TrimSpace(msg.Text)
	if reason == "-" {
		reason = ""
	}

	dateText := state.GetString("date")
	day, err := dates.ParseCanonical(dateText)
	if err != nil {
		b.clearState(ctx, userID)
		b.sendWithKeyboard(msg.Chat.ID, b.getErrorMessage(err), mainKeyboard())
		return
	}

	if _, err := b.attendanceService.MarkAbsent(ctx, userID, day, reason); err != nil {
		if isNotFound(err) {
			b.clearState(ctx, userID)
			b.sendWithKeyboard(msg.Chat.ID, b.getErrorMessage(err), mainKeyboard())
			return
		}
		// Состояние сохраняется: повторная отправка причины повторит запись
		b.sendMessage(msg.Chat.ID, "❌ Ошибка сохранения. Попробуй ещё:")
		return
	}

	if b.metrics != nil {
		b.metrics.AttendanceMarks.WithLabelValues("absent").Inc()
	}

	b.notifyAdminAbsence(ctx, userID, dateText, reason)

	b.clearState(ctx, userID)
	b.sendWithKeyboard(msg.Chat.ID, fmt.Sprintf("✅ Записал отсутствие на %s.", dateText), mainKeyboard())
}

func (b *Bot) processPeriodStart(ctx context.Context, update tgbotapi.Update, state *models.UserState) {
	if b.cancelRequested(ctx, update) {
		return
	}
	msg := update.Message

	_, canonical, err := dates.ValidateAndNormalize(msg.Text, b.now())
	if err != nil {
		b.sendMessage(msg.Chat.ID, fmt.Sprintf("❌ %s\nПопробуй ещё:", b.getErrorMessage(err)))
		return
	}

	state.SetString("start_date", canonical)
	b.setState(ctx, msg.From.ID, models.StateAwaitingPeriodEnd, state.TempData)
	b.sendWithKeyboard(msg.Chat.ID, "📅 Укажи дату окончания отсутствия (ДД.ММ или ДД.ММ.ГГГГ):", cancelKeyboard())
}

func (b *Bot) processPeriodEnd(ctx context.Context, update tgbotapi.Update, state *models.UserState) {
	if b.cancelRequested(ctx, update) {
		return
	}
	msg := update.Message

	end, canonical, err := dates.ValidateAndNormalize(msg.Text, b.now())
	if err != nil {
		b.sendMessage(msg.Chat.ID, fmt.Sprintf("❌ %s\nПопробуй ещё:", b.getErrorMessage(err)))
		return
	}

	start, err := dates.ParseCanonical(state.GetString("start_date"))
	if err != nil {
		b.clearState(ctx, msg.From.ID)
		b.sendWithKeyboard(msg.Chat.ID, b.getErrorMessage(err), mainKeyboard())
		return
	}

	if end.Before(start) {
		// Шаг не меняется: ждем корректную дату окончания
		b.sendMessage(msg.Chat.ID, "❌ Дата окончания не может быть раньше даты начала!\nУкажи корректную дату окончания:")
		return
	}

	state.SetString("end_date", canonical)
	b.setState(ctx, msg.From.ID, models.StateAwaitingPeriodReason, state.TempData)
	b.sendWithKeyboard(msg.Chat.ID, "✏️ Укажи причину отсутствия (болезнь, отпуск и т.д.):", cancelKeyboard())
}

func (b *Bot) processPeriodReason(ctx context.Context, update tgbotapi.Update, state *models.UserState) {
	if b.cancelRequested(ctx, update) {
		return
	}
	msg := update.Message
	userID := msg.From.ID

	reason := strings.TrimSpace(msg.Text)
	if reason == "" {
		b.sendMessage(msg.Chat.ID, "✏️ Укажи причину отсутствия (болезнь, отпуск и т.д.):")
		return
	}

	startText := state.GetString("start_date")
	endText := state.GetString("end_date")

	start, err := dates.ParseCanonical(startText)
	if err == nil {
		var end time.Time
		end, err = dates.ParseCanonical(endText)
		if err == nil {
			_, err = b.attendanceService.RecordPeriod(ctx, userID, start, end, reason)
		}
	}
	if err != nil {
		if isNotFound(err) {
			b.clearState(ctx, userID)
			b.sendWithKeyboard(msg.Chat.ID, b.getErrorMessage(err), mainKeyboard())
			return
		}
		b.sendMessage(msg.Chat.ID, "❌ Ошибка сохранения периода. Попробуй ещё:")
		return
	}

	if b.metrics != nil {
		b.metrics.PeriodsRecorded.Inc()
	}

	b.notifyAdminPeriod(ctx, userID, startText, endText, reason)

	b.clearState(ctx, userID)
	b.sendWithKeyboard(msg.Chat.ID, fmt.Sprintf(
		"✅ Записал период отсутствия:\n📆 С %s по %s\n📝 Причина: %s\n\nБот не будет беспокоить вас в эти дни!",
		startText, endText, reason,
	), mainKeyboard())
}
