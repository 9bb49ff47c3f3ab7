package bot

import (
	"context"
	"sync"
	"testing"
	"time"

	"rollcall/internal/config"
	"rollcall/internal/database"
	"rollcall/internal/events"
	"rollcall/internal/models"
	"rollcall/internal/repository"
	"rollcall/internal/service"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

const testAdminID = int64(777)

type sentMessage struct {
	chatID int64
	text   string
}

type sentDocument struct {
	chatID  int64
	path    string
	caption string
}

// fakeTelegram собирает исходящие сообщения вместо обращения к Telegram API.
type fakeTelegram struct {
	mu        sync.Mutex
	messages  []sentMessage
	documents []sentDocument
	failFor   map[int64]error
}

func newFakeTelegram() *fakeTelegram {
	return &fakeTelegram{failFor: make(map[int64]error)}
}

func (f *fakeTelegram) record(chatID int64, text string) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.failFor[chatID]; ok {
		return tgbotapi.Message{}, err
	}
	f.messages = append(f.messages, sentMessage{chatID: chatID, text: text})
	return tgbotapi.Message{MessageID: len(f.messages)}, nil
}

func (f *fakeTelegram) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if msg, ok := c.(tgbotapi.MessageConfig); ok {
		return f.record(msg.ChatID, msg.Text)
	}
	return tgbotapi.Message{}, nil
}

func (f *fakeTelegram) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeTelegram) SendMessage(chatID int64, text string) (tgbotapi.Message, error) {
	return f.record(chatID, text)
}

func (f *fakeTelegram) SendWithKeyboard(chatID int64, text string, keyboard tgbotapi.ReplyKeyboardMarkup) (tgbotapi.Message, error) {
	return f.record(chatID, text)
}

func (f *fakeTelegram) SendWithRemoveKeyboard(chatID int64, text string) (tgbotapi.Message, error) {
	return f.record(chatID, text)
}

func (f *fakeTelegram) SendDocument(chatID int64, path, caption string) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.documents = append(f.documents, sentDocument{chatID: chatID, path: path, caption: caption})
	return tgbotapi.Message{}, nil
}

func (f *fakeTelegram) GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	ch := make(chan tgbotapi.Update)
	close(ch)
	return ch
}

func (f *fakeTelegram) GetSelf() tgbotapi.User {
	return tgbotapi.User{UserName: "attendance_test_bot"}
}

func (f *fakeTelegram) StopReceivingUpdates() {}

func (f *fakeTelegram) sentTo(chatID int64) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, m := range f.messages {
		if m.chatID == chatID {
			out = append(out, m.text)
		}
	}
	return out
}

func (f *fakeTelegram) lastTo(chatID int64) string {
	msgs := f.sentTo(chatID)
	if len(msgs) == 0 {
		return ""
	}
	return msgs[len(msgs)-1]
}

func (f *fakeTelegram) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = nil
	f.documents = nil
}

// fakeJournalWriter подменяет xlsx-проекцию в тестах обработчиков.
type fakeJournalWriter struct {
	mu         sync.Mutex
	refreshes  int
	refreshErr error
}

func (f *fakeJournalWriter) EnsureDateColumns(ref time.Time, lookaheadDays int) (int, error) {
	return 0, nil
}

func (f *fakeJournalWriter) EnsureUserRow(userID int64, name, username string) error { return nil }

func (f *fakeJournalWriter) SetAttendanceCell(userID int64, dateText string, present bool, reason string) error {
	return nil
}

func (f *fakeJournalWriter) Refresh(ref time.Time, lookaheadDays int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.refreshErr != nil {
		return f.refreshErr
	}
	f.refreshes++
	return nil
}

func (f *fakeJournalWriter) Path() string { return "testdata/journal.xlsx" }

// fakeSyncWorker считает постановки задач в очередь журнала.
type fakeSyncWorker struct {
	mu          sync.Mutex
	ensureDates int
}

func (f *fakeSyncWorker) EnqueueEnsureUser(ctx context.Context, user *models.User) error { return nil }

func (f *fakeSyncWorker) EnqueueSetCell(ctx context.Context, userID int64, dateText string, present bool, reason string) error {
	return nil
}

func (f *fakeSyncWorker) EnqueueEnsureDates(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ensureDates++
	return nil
}

type testBot struct {
	bot     *Bot
	tg      *fakeTelegram
	db      *database.DB
	journal *fakeJournalWriter
	sync    *fakeSyncWorker
}

func newTestBot(t *testing.T) *testBot {
	t.Helper()

	logger := zerolog.Nop()
	db, err := database.NewDB(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	cfg := &config.Config{
		Telegram: config.TelegramConfig{AdminChatID: testAdminID},
		Journal:  config.JournalConfig{Path: "testdata/journal.xlsx", LookaheadDays: 7},
		Bot: config.BotConfig{
			ReminderTime:      "20:00",
			Timezone:          "UTC",
			ReminderGraceMin:  30,
			HistoryLimit:      10,
			RateLimitMessages: 2,
			RateLimitWindow:   60,
		},
	}

	bus := events.NewEventBus()
	stateService := service.NewStateService(repository.NewMemoryStateRepository(time.Hour), &logger)
	userService := service.NewUserService(db, bus, &logger)
	attendanceService := service.NewAttendanceService(db, bus, &logger)

	tg := newFakeTelegram()
	jw := &fakeJournalWriter{}
	sw := &fakeSyncWorker{}

	b, err := NewBot(tg, cfg, stateService, userService, attendanceService, jw, sw, bus, nil, &logger)
	require.NoError(t, err)

	return &testBot{bot: b, tg: tg, db: db, journal: jw, sync: sw}
}

func textUpdate(userID int64, text string) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{
		MessageID: 1,
		From:      &tgbotapi.User{ID: userID, UserName: "ann"},
		Chat:      &tgbotapi.Chat{ID: userID},
		Text:      text,
	}}
}

func commandUpdate(userID int64, command string) tgbotapi.Update {
	u := textUpdate(userID, command)
	u.Message.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(command)}}
	return u
}

func (tb *testBot) send(ctx context.Context, update tgbotapi.Update) {
	tb.bot.handleMessage(ctx, update)
}

func (tb *testBot) currentStep(t *testing.T, ctx context.Context, userID int64) string {
	t.Helper()
	state, err := tb.bot.stateService.GetUserState(ctx, userID)
	require.NoError(t, err)
	if state == nil {
		return ""
	}
	return state.CurrentStep
}

func (tb *testBot) register(t *testing.T, ctx context.Context, userID int64, name string) {
	t.Helper()
	_, err := tb.bot.userService.Register(ctx, userID, name, "ann")
	require.NoError(t, err)
	tb.tg.reset()
}
