package models

// Conversation states. The absence of a stored state means the user is idle.
const (
	StateAwaitingName          = "awaiting_name"
	StateAwaitingAttendance    = "awaiting_attendance"
	StateAwaitingAbsenceDate   = "awaiting_absence_date"
	StateAwaitingAbsenceReason = "awaiting_absence_reason"
	StateAwaitingPeriodStart   = "awaiting_period_start"
	StateAwaitingPeriodEnd     = "awaiting_period_end"
	StateAwaitingPeriodReason  = "awaiting_period_reason"
)

// Attendance cell markers.
const (
	MarkPresent = "✅"
	MarkAbsent  = "❌"
)

const (
	// DefaultRedisTTL время жизни состояния пользователя в Redis
	DefaultRedisTTL = 24 * 60 * 60 // 24 часа в секундах

	// ReminderHour час вечернего напоминания
	ReminderHour = 20

	// ReminderGraceMinutes окно опоздания: если процесс был недоступен в момент
	// срабатывания, напоминание всё ещё уходит в течение этого окна
	ReminderGraceMinutes = 30

	// JournalLookaheadDays сколько календарных дней вперёд держать в журнале
	JournalLookaheadDays = 30

	// HistoryLimit сколько последних отсутствий показывает /history
	HistoryLimit = 10

	// WorkerQueueSize размер очереди воркера журнала
	WorkerQueueSize = 1000

	// RateLimitMessages количество сообщений в окне
	RateLimitMessages = 20

	// RateLimitWindow окно ограничения частоты сообщений в секундах
	RateLimitWindow = 60
)
