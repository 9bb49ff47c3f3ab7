package bot

import (
	"context"
	"fmt"
	"testing"
	"time"

	"rollcall/internal/dates"
	"rollcall/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistrationFlow(t *testing.T) {
	tb := newTestBot(t)
	ctx := context.Background()
	userID := int64(100)

	tb.send(ctx, commandUpdate(userID, "/start"))
	assert.Contains(t, tb.tg.lastTo(userID), "Представься")
	assert.Equal(t, models.StateAwaitingName, tb.currentStep(t, ctx, userID))

	// Слишком короткое имя не проходит, шаг сохраняется
	tb.send(ctx, textUpdate(userID, "А"))
	assert.Contains(t, tb.tg.lastTo(userID), "Слишком короткое имя")
	assert.Equal(t, models.StateAwaitingName, tb.currentStep(t, ctx, userID))

	tb.send(ctx, textUpdate(userID, "Анна Иванова"))
	assert.Contains(t, tb.tg.lastTo(userID), "Привет, Анна Иванова")
	assert.Empty(t, tb.currentStep(t, ctx, userID))

	user, err := tb.db.GetUser(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, "Анна Иванова", user.Name)
	assert.Equal(t, "ann", user.Username)
}

func TestStartForRegisteredUserResetsDialog(t *testing.T) {
	tb := newTestBot(t)
	ctx := context.Background()
	userID := int64(100)
	tb.register(t, ctx, userID, "Анна")

	require.NoError(t, tb.bot.stateService.SetUserState(ctx, userID, models.StateAwaitingAbsenceDate, nil))

	tb.send(ctx, commandUpdate(userID, "/start"))
	assert.Contains(t, tb.tg.lastTo(userID), "Привет, Анна")
	assert.Empty(t, tb.currentStep(t, ctx, userID))
}

func TestMarkRequiresRegistration(t *testing.T) {
	tb := newTestBot(t)
	ctx := context.Background()
	userID := int64(100)

	tb.send(ctx, textUpdate(userID, BtnMark))
	assert.Contains(t, tb.tg.lastTo(userID), "Сначала представьтесь")
	assert.Empty(t, tb.currentStep(t, ctx, userID))
}

func TestPresenceFlow(t *testing.T) {
	tb := newTestBot(t)
	ctx := context.Background()
	userID := int64(100)
	tb.register(t, ctx, userID, "Анна")

	tb.send(ctx, textUpdate(userID, BtnMark))
	assert.Contains(t, tb.tg.lastTo(userID), "Выбери свой статус")
	assert.Equal(t, models.StateAwaitingAttendance, tb.currentStep(t, ctx, userID))

	// Произвольный текст не сбрасывает шаг
	tb.send(ctx, textUpdate(userID, "эээ"))
	assert.Equal(t, models.StateAwaitingAttendance, tb.currentStep(t, ctx, userID))

	tb.send(ctx, textUpdate(userID, BtnWill))
	assert.Contains(t, tb.tg.lastTo(userID), "Хороших пар")
	assert.Empty(t, tb.currentStep(t, ctx, userID))

	// Присутствие не создает записей о пропусках
	absences, err := tb.db.ListRecentAbsences(ctx, userID, 10)
	require.NoError(t, err)
	assert.Empty(t, absences)
}

func TestAbsenceFlow(t *testing.T) {
	tb := newTestBot(t)
	ctx := context.Background()
	userID := int64(100)
	tb.register(t, ctx, userID, "Анна")

	tb.send(ctx, textUpdate(userID, BtnMark))
	tb.send(ctx, textUpdate(userID, BtnWont))
	assert.Contains(t, tb.tg.lastTo(userID), "Укажи дату отсутствия")
	assert.Equal(t, models.StateAwaitingAbsenceDate, tb.currentStep(t, ctx, userID))

	// Невалидная дата — шаг сохраняется
	tb.send(ctx, textUpdate(userID, "вчера"))
	assert.Contains(t, tb.tg.lastTo(userID), "Неверный формат")
	assert.Equal(t, models.StateAwaitingAbsenceDate, tb.currentStep(t, ctx, userID))

	tb.send(ctx, textUpdate(userID, "15.02.2031"))
	assert.Contains(t, tb.tg.lastTo(userID), "Причина отсутствия")
	assert.Equal(t, models.StateAwaitingAbsenceReason, tb.currentStep(t, ctx, userID))

	tb.send(ctx, textUpdate(userID, "болезнь"))
	assert.Contains(t, tb.tg.lastTo(userID), "Записал отсутствие на 15.02.2031")
	assert.Empty(t, tb.currentStep(t, ctx, userID))

	absences, err := tb.db.ListRecentAbsences(ctx, userID, 10)
	require.NoError(t, err)
	require.Len(t, absences, 1)
	assert.Equal(t, "15.02.2031", absences[0].Date)
	assert.Equal(t, "болезнь", absences[0].Reason.String)

	// Админ получает уведомление
	adminMsgs := tb.tg.sentTo(testAdminID)
	require.NotEmpty(t, adminMsgs)
	assert.Contains(t, adminMsgs[len(adminMsgs)-1], "Отсутствие")
	assert.Contains(t, adminMsgs[len(adminMsgs)-1], "Анна")
}

func TestAbsenceShortDateCanonicalized(t *testing.T) {
	tb := newTestBot(t)
	ctx := context.Background()
	userID := int64(100)
	tb.register(t, ctx, userID, "Анна")

	// Вчерашние день.месяц без года — короткая форма, бот сам выводит год
	now := time.Now().In(time.UTC)
	yesterday := now.AddDate(0, 0, -1)
	short := fmt.Sprintf("%d.%d", yesterday.Day(), int(yesterday.Month()))
	_, expected, err := dates.ValidateAndNormalize(short, now)
	require.NoError(t, err)

	tb.send(ctx, textUpdate(userID, BtnMark))
	tb.send(ctx, textUpdate(userID, BtnWont))
	tb.send(ctx, textUpdate(userID, short))
	tb.send(ctx, textUpdate(userID, "-"))

	assert.Contains(t, tb.tg.lastTo(userID), "Записал отсутствие на "+expected)

	absences, err := tb.db.ListRecentAbsences(ctx, userID, 10)
	require.NoError(t, err)
	require.Len(t, absences, 1)
	assert.Equal(t, expected, absences[0].Date)
}

func TestAbsenceDashMeansNoReason(t *testing.T) {
	tb := newTestBot(t)
	ctx := context.Background()
	userID := int64(100)
	tb.register(t, ctx, userID, "Анна")

	tb.send(ctx, textUpdate(userID, BtnMark))
	tb.send(ctx, textUpdate(userID, BtnWont))
	tb.send(ctx, textUpdate(userID, "15.02.2031"))
	tb.send(ctx, textUpdate(userID, "-"))

	absences, err := tb.db.ListRecentAbsences(ctx, userID, 10)
	require.NoError(t, err)
	require.Len(t, absences, 1)
	assert.False(t, absences[0].Reason.Valid)
}

func TestCancelMidDialog(t *testing.T) {
	tb := newTestBot(t)
	ctx := context.Background()
	userID := int64(100)
	tb.register(t, ctx, userID, "Анна")

	tb.send(ctx, textUpdate(userID, BtnPeriod))
	assert.Equal(t, models.StateAwaitingPeriodStart, tb.currentStep(t, ctx, userID))

	tb.send(ctx, textUpdate(userID, BtnCancel))
	assert.Contains(t, tb.tg.lastTo(userID), "Отменено")
	assert.Empty(t, tb.currentStep(t, ctx, userID))
}

func TestPeriodFlow(t *testing.T) {
	tb := newTestBot(t)
	ctx := context.Background()
	userID := int64(100)
	tb.register(t, ctx, userID, "Анна")

	tb.send(ctx, textUpdate(userID, BtnPeriod))
	assert.Contains(t, tb.tg.lastTo(userID), "дату начала")
	assert.Equal(t, models.StateAwaitingPeriodStart, tb.currentStep(t, ctx, userID))

	tb.send(ctx, textUpdate(userID, "10.03.2031"))
	assert.Contains(t, tb.tg.lastTo(userID), "дату окончания")
	assert.Equal(t, models.StateAwaitingPeriodEnd, tb.currentStep(t, ctx, userID))

	// Окончание раньше начала — шаг не меняется
	tb.send(ctx, textUpdate(userID, "09.03.2031"))
	assert.Contains(t, tb.tg.lastTo(userID), "не может быть раньше")
	assert.Equal(t, models.StateAwaitingPeriodEnd, tb.currentStep(t, ctx, userID))

	tb.send(ctx, textUpdate(userID, "20.03.2031"))
	assert.Contains(t, tb.tg.lastTo(userID), "причину")
	assert.Equal(t, models.StateAwaitingPeriodReason, tb.currentStep(t, ctx, userID))

	// Пустая причина — повторный запрос
	tb.send(ctx, textUpdate(userID, "   "))
	assert.Contains(t, tb.tg.lastTo(userID), "причину")
	assert.Equal(t, models.StateAwaitingPeriodReason, tb.currentStep(t, ctx, userID))

	tb.send(ctx, textUpdate(userID, "отпуск"))
	last := tb.tg.lastTo(userID)
	assert.Contains(t, last, "Записал период отсутствия")
	assert.Contains(t, last, "С 10.03.2031 по 20.03.2031")
	assert.Empty(t, tb.currentStep(t, ctx, userID))

	periods, err := tb.db.ListActivePeriods(ctx, userID, time.Date(2031, 3, 15, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, periods, 1)
	assert.Equal(t, "отпуск", periods[0].Reason)

	adminMsgs := tb.tg.sentTo(testAdminID)
	require.NotEmpty(t, adminMsgs)
	assert.Contains(t, adminMsgs[len(adminMsgs)-1], "ПЕРИОД ОТСУТСТВИЯ")
}

func TestSameDayPeriod(t *testing.T) {
	tb := newTestBot(t)
	ctx := context.Background()
	userID := int64(100)
	tb.register(t, ctx, userID, "Анна")

	tb.send(ctx, textUpdate(userID, BtnPeriod))
	tb.send(ctx, textUpdate(userID, "10.03.2031"))
	tb.send(ctx, textUpdate(userID, "10.03.2031"))
	assert.Equal(t, models.StateAwaitingPeriodReason, tb.currentStep(t, ctx, userID))

	tb.send(ctx, textUpdate(userID, "экзамен"))
	assert.Contains(t, tb.tg.lastTo(userID), "С 10.03.2031 по 10.03.2031")
}

func TestIdleUnknownTextShowsMenu(t *testing.T) {
	tb := newTestBot(t)
	ctx := context.Background()
	userID := int64(100)
	tb.register(t, ctx, userID, "Анна")

	tb.send(ctx, textUpdate(userID, "привет"))
	assert.Contains(t, tb.tg.lastTo(userID), "Используй кнопки")
}

func TestRateLimitAppliesToRegularUsers(t *testing.T) {
	tb := newTestBot(t)
	ctx := context.Background()
	userID := int64(100)
	tb.register(t, ctx, userID, "Анна")

	for i := 0; i < 3; i++ {
		tb.bot.processUpdate(ctx, textUpdate(userID, "привет"))
	}

	assert.Contains(t, tb.tg.lastTo(userID), "слишком часто")
}

func TestRateLimitSkippedForAdmin(t *testing.T) {
	tb := newTestBot(t)
	ctx := context.Background()
	tb.register(t, ctx, testAdminID, "Админ")

	for i := 0; i < 5; i++ {
		tb.bot.processUpdate(ctx, textUpdate(testAdminID, "привет"))
	}

	for _, msg := range tb.tg.sentTo(testAdminID) {
		assert.NotContains(t, msg, "слишком часто")
	}
}
