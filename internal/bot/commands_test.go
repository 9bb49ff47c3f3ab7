package bot

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnknownCommand(t *testing.T) {
	tb := newTestBot(t)
	ctx := context.Background()

	tb.send(ctx, commandUpdate(100, "/foobar"))
	assert.Contains(t, tb.tg.lastTo(100), "Неизвестная команда")
}

func TestHelpListsCommands(t *testing.T) {
	tb := newTestBot(t)
	ctx := context.Background()

	tb.send(ctx, commandUpdate(100, "/help"))
	text := tb.tg.lastTo(100)
	assert.Contains(t, text, "/history")
	assert.Contains(t, text, "/clear_absence")
	assert.Contains(t, text, "понедельник-суббота")
}

func TestHistoryEmpty(t *testing.T) {
	tb := newTestBot(t)
	ctx := context.Background()
	tb.register(t, ctx, 100, "Анна")

	tb.send(ctx, commandUpdate(100, "/history"))
	assert.Contains(t, tb.tg.lastTo(100), "Нет записанных отсутствий")
}

func TestHistoryListsAbsences(t *testing.T) {
	tb := newTestBot(t)
	ctx := context.Background()
	tb.register(t, ctx, 100, "Анна")

	_, err := tb.db.RecordAbsence(ctx, 100, "15.02.2031", "болезнь")
	require.NoError(t, err)
	_, err = tb.db.RecordAbsence(ctx, 100, "16.02.2031", "")
	require.NoError(t, err)

	tb.send(ctx, commandUpdate(100, "/history"))
	text := tb.tg.lastTo(100)
	assert.Contains(t, text, "История отсутствий")
	assert.Contains(t, text, "15.02.2031 — болезнь")
	assert.Contains(t, text, "16.02.2031")
}

func TestAbsenceCommandNoPeriods(t *testing.T) {
	tb := newTestBot(t)
	ctx := context.Background()
	tb.register(t, ctx, 100, "Анна")

	tb.send(ctx, commandUpdate(100, "/absence"))
	assert.Contains(t, tb.tg.lastTo(100), "нет активных периодов")
}

func TestAbsenceCommandListsActivePeriods(t *testing.T) {
	tb := newTestBot(t)
	ctx := context.Background()
	tb.register(t, ctx, 100, "Анна")

	start := time.Now().AddDate(0, 0, -1)
	end := time.Now().AddDate(0, 0, 5)
	_, err := tb.bot.attendanceService.RecordPeriod(ctx, 100, start, end, "отпуск")
	require.NoError(t, err)

	tb.send(ctx, commandUpdate(100, "/absence"))
	text := tb.tg.lastTo(100)
	assert.Contains(t, text, "Активные периоды отсутствия")
	assert.Contains(t, text, "отпуск")
	assert.Contains(t, text, "/clear_absence")
}

func TestClearAbsence(t *testing.T) {
	tb := newTestBot(t)
	ctx := context.Background()
	tb.register(t, ctx, 100, "Анна")

	// Нечего удалять
	tb.send(ctx, commandUpdate(100, "/clear_absence"))
	assert.Contains(t, tb.tg.lastTo(100), "Нет активных периодов для удаления")

	start := time.Now().AddDate(0, 0, -1)
	end := time.Now().AddDate(0, 0, 5)
	_, err := tb.bot.attendanceService.RecordPeriod(ctx, 100, start, end, "отпуск")
	require.NoError(t, err)

	tb.send(ctx, commandUpdate(100, "/clear_absence"))
	assert.Contains(t, tb.tg.lastTo(100), "Удалено 1 активных периодов")

	tb.send(ctx, commandUpdate(100, "/absence"))
	assert.Contains(t, tb.tg.lastTo(100), "нет активных периодов")
}

func TestJournalAdminOnly(t *testing.T) {
	tb := newTestBot(t)
	ctx := context.Background()

	tb.send(ctx, commandUpdate(100, "/journal"))
	assert.Contains(t, tb.tg.lastTo(100), "только для админа")
	assert.Empty(t, tb.tg.documents)
}

func TestJournalSendsDocumentToAdmin(t *testing.T) {
	tb := newTestBot(t)
	ctx := context.Background()

	tb.send(ctx, commandUpdate(testAdminID, "/journal"))

	assert.Equal(t, 1, tb.journal.refreshes)
	require.Len(t, tb.tg.documents, 1)
	assert.Equal(t, testAdminID, tb.tg.documents[0].chatID)
	assert.Equal(t, "testdata/journal.xlsx", tb.tg.documents[0].path)
	assert.Contains(t, tb.tg.documents[0].caption, "журнал")
}
