package models

import (
	"database/sql"
	"time"
)

// User is one registered group member, keyed by their Telegram ID.
type User struct {
	UserID     int64
	Name       string
	Username   string
	LastActive time.Time
}

// Absence is a single reported non-attendance day. Rows are append-only:
// repeated reports for the same date all stay in the log.
type Absence struct {
	ID         int64
	UserID     int64
	Date       string // canonical DD.MM.YYYY
	Reason     sql.NullString
	ReportedAt time.Time
}

// AbsencePeriod is an inclusive date range of non-attendance.
type AbsencePeriod struct {
	ID        int64
	UserID    int64
	StartDate string // canonical DD.MM.YYYY
	EndDate   string // canonical DD.MM.YYYY, >= StartDate (validated at input time)
	Reason    string
	CreatedAt time.Time
}

// SyncTask is one pending journal projection task persisted in sync_queue.
type SyncTask struct {
	ID          int64
	TaskType    string
	UserID      int64
	Payload     string
	Status      string
	RetryCount  int
	LastError   sql.NullString
	CreatedAt   time.Time
	ProcessedAt sql.NullTime
	NextRetryAt sql.NullTime
}

// UserState holds the per-user conversation state and the fields stashed by
// the in-flight flow. It is discarded in full on cancel or completion.
type UserState struct {
	UserID      int64                  `json:"user_id"`
	CurrentStep string                 `json:"current_step"`
	TempData    map[string]interface{} `json:"temp_data"`
}

func (s *UserState) GetString(key string) string {
	if s == nil || s.TempData == nil {
		return ""
	}
	if str, ok := s.TempData[key].(string); ok {
		return str
	}
	return ""
}

func (s *UserState) SetString(key, value string) {
	if s.TempData == nil {
		s.TempData = make(map[string]interface{})
	}
	s.TempData[key] = value
}
