package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"rollcall/internal/database"
	"rollcall/internal/domain"
	"rollcall/internal/journal"
	"rollcall/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	TaskEnsureUser  = "ensure_user"
	TaskSetCell     = "set_cell"
	TaskEnsureDates = "ensure_dates"
)

// journalTaskPayload is persisted in SyncTask.Payload as JSON.
type journalTaskPayload struct {
	UserID   int64  `json:"user_id,omitempty"`
	Name     string `json:"name,omitempty"`
	Username string `json:"username,omitempty"`
	Date     string `json:"date,omitempty"`
	Present  bool   `json:"present,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

// JournalWorker — единственный писатель xlsx-журнала. Все мутации файла идут
// через его очередь: задача сначала фиксируется в sync_queue (переживает
// рестарт), затем будится через redis или локальный канал. Поллинг БД
// подбирает задачи, потерянные обоими путями.
type JournalWorker struct {
	db            *database.DB
	journal       domain.JournalWriter
	redis         *redis.Client
	retryPolicy   RetryPolicy
	queue         chan models.SyncTask
	redisQueueKey string
	deadLetterKey string
	pollInterval  time.Duration
	batchSize     int
	lookaheadDays int
	logger        *zerolog.Logger
}

func NewJournalWorker(db *database.DB, jw domain.JournalWriter, redisClient *redis.Client, retry RetryPolicy, lookaheadDays int, logger *zerolog.Logger) *JournalWorker {
	if retry.MaxRetries == 0 {
		retry.MaxRetries = 5
	}
	if retry.InitialDelay == 0 {
		retry.InitialDelay = 2 * time.Second
	}
	if retry.MaxDelay == 0 {
		retry.MaxDelay = 1 * time.Minute
	}
	if retry.BackoffFactor == 0 {
		retry.BackoffFactor = 2
	}
	if logger == nil {
		l := zerolog.Nop()
		logger = &l
	}

	return &JournalWorker{
		db:            db,
		journal:       jw,
		redis:         redisClient,
		retryPolicy:   retry,
		queue:         make(chan models.SyncTask, models.WorkerQueueSize),
		redisQueueKey: "journal:queue",
		deadLetterKey: "journal:deadletter",
		pollInterval:  2 * time.Second,
		batchSize:     20,
		lookaheadDays: lookaheadDays,
		logger:        logger,
	}
}

func (w *JournalWorker) EnqueueEnsureUser(ctx context.Context, user *models.User) error {
	if user == nil || user.UserID == 0 {
		return errors.New("user is required")
	}
	return w.enqueue(ctx, TaskEnsureUser, user.UserID, journalTaskPayload{
		UserID:   user.UserID,
		Name:     user.Name,
		Username: user.Username,
	})
}

func (w *JournalWorker) EnqueueSetCell(ctx context.Context, userID int64, dateText string, present bool, reason string) error {
	if userID == 0 || dateText == "" {
		return errors.New("user id and date are required")
	}
	return w.enqueue(ctx, TaskSetCell, userID, journalTaskPayload{
		UserID:  userID,
		Date:    dateText,
		Present: present,
		Reason:  reason,
	})
}

func (w *JournalWorker) EnqueueEnsureDates(ctx context.Context) error {
	return w.enqueue(ctx, TaskEnsureDates, 0, journalTaskPayload{})
}

// enqueue persists task to DB and schedules it via redis or in-memory queue.
func (w *JournalWorker) enqueue(ctx context.Context, taskType string, userID int64, payload journalTaskPayload) error {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	syncTask := models.SyncTask{
		TaskType:  taskType,
		UserID:    userID,
		Payload:   string(payloadBytes),
		Status:    "pending",
		CreatedAt: time.Now(),
	}

	if err := w.db.CreateSyncTask(ctx, &syncTask); err != nil {
		return fmt.Errorf("persist sync task: %w", err)
	}

	// Try redis first for durability.
	if w.redis != nil {
		if err := w.pushRedis(ctx, syncTask); err != nil {
			w.logger.Warn().Err(err).Msg("journal_worker: redis push failed, fallback to memory queue")
		} else {
			return nil
		}
	}

	// Fallback to in-memory queue if redis missing or failed.
	select {
	case w.queue <- syncTask:
	default:
		w.logger.Warn().Int64("task_id", syncTask.ID).Msg("journal_worker: in-memory queue full, task dropped to polling")
	}

	return nil
}

// Start launches main loop; stops when ctx is done.
func (w *JournalWorker) Start(ctx context.Context) {
	w.logger.Info().Msg("journal_worker: started")
	defer w.logger.Info().Msg("journal_worker: stopped")

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if t, ok := w.tryLocalQueue(); ok {
			w.processTask(ctx, &t)
			continue
		}

		if t, ok := w.tryRedis(ctx); ok {
			w.processTask(ctx, &t)
			continue
		}

		tasks, err := w.db.GetPendingSyncTasks(ctx, w.batchSize)
		if err != nil {
			w.logger.Error().Err(err).Msg("journal_worker: fetch pending")
			time.Sleep(w.pollInterval)
			continue
		}
		if len(tasks) == 0 {
			time.Sleep(w.pollInterval)
			continue
		}

		for i := range tasks {
			w.processTask(ctx, &tasks[i])
		}
	}
}

func (w *JournalWorker) tryLocalQueue() (models.SyncTask, bool) {
	select {
	case t := <-w.queue:
		return t, true
	default:
		return models.SyncTask{}, false
	}
}

func (w *JournalWorker) tryRedis(ctx context.Context) (models.SyncTask, bool) {
	if w.redis == nil {
		return models.SyncTask{}, false
	}
	res, err := w.redis.BRPop(ctx, time.Second, w.redisQueueKey).Result()
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, redis.Nil) {
			return models.SyncTask{}, false
		}
		w.logger.Error().Err(err).Msg("journal_worker: redis BRPOP error")
		return models.SyncTask{}, false
	}
	if len(res) != 2 {
		return models.SyncTask{}, false
	}
	var task models.SyncTask
	if err := json.Unmarshal([]byte(res[1]), &task); err != nil {
		w.logger.Error().Err(err).Msg("journal_worker: decode redis task")
		return models.SyncTask{}, false
	}
	return task, true
}

func (w *JournalWorker) processTask(ctx context.Context, task *models.SyncTask) {
	var payload journalTaskPayload
	if err := json.Unmarshal([]byte(task.Payload), &payload); err != nil {
		w.failTask(ctx, task, fmt.Errorf("decode payload: %w", err))
		return
	}

	if err := w.handleTask(payload, task.TaskType); err != nil {
		// Промах по ячейке — расхождение представления, ретраи его не
		// вылечат. Задача закрывается, ошибка остается в логе.
		if errors.Is(err, journal.ErrCellNotResolved) {
			w.logger.Warn().Int64("task_id", task.ID).Err(err).Msg("journal_worker: cell not resolved, task skipped")
		} else {
			w.retryOrFail(ctx, task, err)
			return
		}
	}

	if err := w.db.MarkSyncTaskDone(ctx, task.ID); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("journal_worker: mark completed")
	}
}

func (w *JournalWorker) handleTask(payload journalTaskPayload, taskType string) error {
	switch taskType {
	case TaskEnsureUser:
		if payload.UserID == 0 {
			return errors.New("user payload missing")
		}
		if _, err := w.journal.EnsureDateColumns(time.Now(), w.lookaheadDays); err != nil {
			return err
		}
		return w.journal.EnsureUserRow(payload.UserID, payload.Name, payload.Username)
	case TaskSetCell:
		if payload.UserID == 0 || payload.Date == "" {
			return errors.New("user id or date missing")
		}
		if _, err := w.journal.EnsureDateColumns(time.Now(), w.lookaheadDays); err != nil {
			return err
		}
		// Дата за горизонтом lookaheadDays колонки не имеет: запись промахнется
		// с ErrCellNotResolved и задача закроется. Источник истины — лог в БД,
		// журнал отражает только своё окно.
		return w.journal.SetAttendanceCell(payload.UserID, payload.Date, payload.Present, payload.Reason)
	case TaskEnsureDates:
		_, err := w.journal.EnsureDateColumns(time.Now(), w.lookaheadDays)
		return err
	default:
		return fmt.Errorf("unknown task type: %s", taskType)
	}
}

func (w *JournalWorker) retryOrFail(ctx context.Context, task *models.SyncTask, cause error) {
	attempt := task.RetryCount + 1
	if attempt >= w.retryPolicy.MaxRetries {
		if err := w.db.MarkSyncTaskDead(ctx, task.ID, cause.Error()); err != nil {
			w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("journal_worker: mark failed")
		}
		w.pushDeadLetter(ctx, task)
		return
	}

	nextTime := time.Now().Add(w.retryPolicy.NextDelay(attempt))
	if err := w.db.MarkSyncTaskRetry(ctx, task.ID, attempt, cause.Error(), nextTime); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("journal_worker: mark retry")
	}
}

func (w *JournalWorker) failTask(ctx context.Context, task *models.SyncTask, cause error) {
	if err := w.db.MarkSyncTaskDead(ctx, task.ID, cause.Error()); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("journal_worker: mark failed")
	}
	w.pushDeadLetter(ctx, task)
}

func (w *JournalWorker) pushRedis(ctx context.Context, task models.SyncTask) error {
	if w.redis == nil {
		return errors.New("redis client is nil")
	}
	data, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return w.redis.LPush(ctx, w.redisQueueKey, data).Err()
}

func (w *JournalWorker) pushDeadLetter(ctx context.Context, task *models.SyncTask) {
	if w.redis == nil {
		return
	}
	data, err := json.Marshal(task)
	if err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("journal_worker: encode deadletter")
		return
	}
	if err := w.redis.LPush(ctx, w.deadLetterKey, data).Err(); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("journal_worker: deadletter push")
	}
}
