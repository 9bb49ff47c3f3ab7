package domain

import (
	"context"
	"time"

	"rollcall/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type Repository interface {
	UpsertUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, userID int64) (*models.User, error)
	GetAllUsers(ctx context.Context) ([]*models.User, error)
	UpdateUsernameIfChanged(ctx context.Context, userID int64, username string) error
	UpdateUserActivity(ctx context.Context, userID int64) error
	RecordAbsence(ctx context.Context, userID int64, date, reason string) (*models.Absence, error)
	ListRecentAbsences(ctx context.Context, userID int64, limit int) ([]*models.Absence, error)
	RecordAbsencePeriod(ctx context.Context, userID int64, startDate, endDate, reason string) (*models.AbsencePeriod, error)
	ListActivePeriods(ctx context.Context, userID int64, asOf time.Time) ([]*models.AbsencePeriod, error)
	ClearActivePeriods(ctx context.Context, userID int64, asOf time.Time) (int, error)
	IsUserCoveredOn(ctx context.Context, userID int64, day time.Time) (bool, error)
}

type StateRepository interface {
	GetState(ctx context.Context, userID int64) (*models.UserState, error)
	SetState(ctx context.Context, state *models.UserState) error
	ClearState(ctx context.Context, userID int64) error
	CheckRateLimit(ctx context.Context, userID int64, limit int, window time.Duration) (bool, error)
}

type StateManager interface {
	GetUserState(ctx context.Context, userID int64) (*models.UserState, error)
	SetUserState(ctx context.Context, userID int64, step string, data map[string]interface{}) error
	ClearUserState(ctx context.Context, userID int64) error
	CheckRateLimit(ctx context.Context, userID int64, limit int, window time.Duration) (bool, error)
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

type TelegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	GetSelf() tgbotapi.User
	StopReceivingUpdates()
}

// JournalWriter — проекция журнала посещаемости. Все операции идемпотентны:
// воркер может повторить задачу после сбоя без порчи файла.
type JournalWriter interface {
	EnsureDateColumns(ref time.Time, lookaheadDays int) (int, error)
	EnsureUserRow(userID int64, name, username string) error
	SetAttendanceCell(userID int64, dateText string, present bool, reason string) error
	Refresh(ref time.Time, lookaheadDays int) error
	Path() string
}

type SyncWorker interface {
	EnqueueEnsureUser(ctx context.Context, user *models.User) error
	EnqueueSetCell(ctx context.Context, userID int64, dateText string, present bool, reason string) error
	EnqueueEnsureDates(ctx context.Context) error
}

type TelegramService interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	SendMessage(chatID int64, text string) (tgbotapi.Message, error)
	SendWithKeyboard(chatID int64, text string, keyboard tgbotapi.ReplyKeyboardMarkup) (tgbotapi.Message, error)
	SendWithRemoveKeyboard(chatID int64, text string) (tgbotapi.Message, error)
	SendDocument(chatID int64, path, caption string) (tgbotapi.Message, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	GetSelf() tgbotapi.User
	StopReceivingUpdates()
}

type UserService interface {
	Register(ctx context.Context, userID int64, name, username string) (*models.User, error)
	GetUser(ctx context.Context, userID int64) (*models.User, error)
	GetAllUsers(ctx context.Context) ([]*models.User, error)
	RefreshProfile(ctx context.Context, userID int64, username string) error
}

type AttendanceService interface {
	MarkPresent(ctx context.Context, userID int64, day time.Time) error
	MarkAbsent(ctx context.Context, userID int64, day time.Time, reason string) (*models.Absence, error)
	RecordPeriod(ctx context.Context, userID int64, start, end time.Time, reason string) (*models.AbsencePeriod, error)
	ActivePeriods(ctx context.Context, userID int64, asOf time.Time) ([]*models.AbsencePeriod, error)
	ClearPeriods(ctx context.Context, userID int64, asOf time.Time) (int, error)
	IsCoveredOn(ctx context.Context, userID int64, day time.Time) (bool, error)
	RecentAbsences(ctx context.Context, userID int64, limit int) ([]*models.Absence, error)
}
