package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"rollcall/internal/bot"
	"rollcall/internal/config"
	"rollcall/internal/database"
	"rollcall/internal/dates"
	"rollcall/internal/events"
	"rollcall/internal/journal"
	"rollcall/internal/logging"
	"rollcall/internal/models"
	"rollcall/internal/repository"
	"rollcall/internal/service"
	"rollcall/internal/worker"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, loadErr := loadConfigAndLogger()
	if loadErr != nil {
		return loadErr
	}
	if closer != nil {
		defer (func(c io.Closer) { _ = c.Close() })(closer)
	}

	if err := prepareDirectories(cfg, &logger); err != nil {
		return err
	}

	db, err := database.NewDB(cfg.Database.Path, &logger)
	if err != nil {
		logger.Error().Err(err).Msg("Ошибка инициализации базы данных")
		return err
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	redisClient, stateService := initStateService(ctx, cfg, &logger)

	journalFile := journal.New(cfg.Journal.Path, &logger)
	if _, err := journalFile.EnsureDateColumns(time.Now(), cfg.Journal.LookaheadDays); err != nil {
		logger.Error().Err(err).Msg("Ошибка инициализации журнала")
		return err
	}

	// Воркер — единственный писатель журнала
	retryPolicy := worker.RetryPolicy{MaxRetries: 5, InitialDelay: 2 * time.Second, MaxDelay: time.Minute, BackoffFactor: 2}
	journalWorker := worker.NewJournalWorker(db, journalFile, redisClient, retryPolicy, cfg.Journal.LookaheadDays, &logger)
	go journalWorker.Start(ctx)

	eventBus := events.NewEventBus()
	subscribeAttendanceEvents(ctx, eventBus, db, journalWorker, &logger)

	// Инициализация бизнес-сервисов
	userService := service.NewUserService(db, eventBus, &logger)
	attendanceService := service.NewAttendanceService(db, eventBus, &logger)
	metrics := bot.NewMetrics()

	if cfg.Monitoring.PrometheusEnabled {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			addr := fmt.Sprintf(":%d", cfg.Monitoring.PrometheusPort)
			logger.Info().Str("addr", addr).Msg("Metrics endpoint started")
			if err := http.ListenAndServe(addr, mux); err != nil {
				logger.Error().Err(err).Msg("Metrics server error")
			}
		}()
	}

	if cfg.Backup.Enabled {
		backupService := database.NewBackupService(cfg.Database.Path, cfg.Backup, &logger)
		go backupService.Start(ctx)
	}

	return startBot(ctx, cfg, stateService, userService, attendanceService, journalFile, journalWorker, eventBus, metrics, &logger)
}

func loadConfigAndLogger() (*config.Config, zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Logger{}, nil, err
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, zerolog.Logger{}, nil, err
	}
	logger := baseLogger.With().Str("component", "bot-main").Logger()

	return cfg, logger, closer, nil
}

func prepareDirectories(cfg *config.Config, logger *zerolog.Logger) error {
	if cfg == nil {
		return os.ErrInvalid
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		logger.Error().Err(err).Msg("Ошибка создания директории для базы данных")
		return err
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Journal.Path), 0o755); err != nil {
		logger.Error().Err(err).Msg("Ошибка создания директории для журнала")
		return err
	}
	return nil
}

func initStateService(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*redis.Client, *service.StateService) {
	var redisClient *redis.Client
	if cfg.Redis.Address != "" {
		redisClient = repository.NewRedisClient(cfg.Redis)
		if errPing := repository.Ping(ctx, redisClient); errPing != nil {
			logger.Warn().Err(errPing).Msg("Redis unavailable")
		}
	}

	primaryRepo := repository.NewRedisStateRepository(redisClient, time.Duration(models.DefaultRedisTTL)*time.Second)
	fallbackRepo := repository.NewMemoryStateRepository(time.Duration(models.DefaultRedisTTL) * time.Second)
	stateRepo := repository.NewFailoverStateRepository(primaryRepo, fallbackRepo, logger)
	return redisClient, service.NewStateService(stateRepo, logger)
}

func startBot(
	ctx context.Context,
	cfg *config.Config,
	stateService *service.StateService,
	userService *service.UserServiceImpl,
	attendanceService *service.AttendanceServiceImpl,
	journalFile *journal.Journal,
	journalWorker *worker.JournalWorker,
	eventBus *events.EventBus,
	metrics *bot.Metrics,
	logger *zerolog.Logger,
) error {
	botAPI, err := tgbotapi.NewBotAPI(cfg.Telegram.BotToken)
	if err != nil {
		logger.Error().Err(err).Msg("Ошибка создания BotAPI")
		return err
	}
	botAPI.Debug = cfg.Telegram.Debug

	botWrapper := bot.NewBotWrapper(botAPI)
	tgService := service.NewTelegramService(botWrapper)

	telegramBot, err := bot.NewBot(
		tgService, cfg, stateService, userService,
		attendanceService, journalFile, journalWorker,
		eventBus, metrics, logger,
	)
	if err != nil {
		logger.Error().Err(err).Msg("Ошибка создания бота")
		return err
	}

	logger.Info().Msg("Бот запущен...")
	telegramBot.StartReminders(ctx)
	telegramBot.Start(ctx)

	logger.Info().Msg("Shutdown complete.")
	return nil
}

// subscribeAttendanceEvents связывает доменные события с очередью журнала:
// каждая успешная запись в БД превращается в задачу проекции.
func subscribeAttendanceEvents(
	ctx context.Context,
	bus *events.EventBus,
	db *database.DB,
	journalWorker *worker.JournalWorker,
	logger *zerolog.Logger,
) {
	if bus == nil || journalWorker == nil || db == nil {
		return
	}

	userHandler := func(ev *events.Event) error {
		var payload events.UserEventPayload
		if err := json.Unmarshal(ev.Payload, &payload); err != nil {
			logger.Error().Err(err).Str("event", ev.Type).Msg("event bus: decode payload")
			return nil
		}

		user := &models.User{UserID: payload.UserID, Name: payload.Name, Username: payload.Username}
		if err := journalWorker.EnqueueEnsureUser(ctx, user); err != nil {
			logger.Error().Err(err).Int64("user_id", payload.UserID).Msg("event bus: enqueue ensure_user")
		}
		return nil
	}

	cellHandler := func(ev *events.Event) error {
		var payload events.AttendanceEventPayload
		if err := json.Unmarshal(ev.Payload, &payload); err != nil {
			logger.Error().Err(err).Str("event", ev.Type).Msg("event bus: decode payload")
			return nil
		}

		if err := journalWorker.EnqueueSetCell(ctx, payload.UserID, payload.Date, payload.Present, payload.Reason); err != nil {
			logger.Error().Err(err).Int64("user_id", payload.UserID).Msg("event bus: enqueue set_cell")
		}
		return nil
	}

	periodHandler := func(ev *events.Event) error {
		var payload events.PeriodEventPayload
		if err := json.Unmarshal(ev.Payload, &payload); err != nil {
			logger.Error().Err(err).Str("event", ev.Type).Msg("event bus: decode payload")
			return nil
		}

		start, err := dates.ParseCanonical(payload.StartDate)
		if err != nil {
			logger.Error().Err(err).Str("start", payload.StartDate).Msg("event bus: bad period start")
			return nil
		}
		end, err := dates.ParseCanonical(payload.EndDate)
		if err != nil {
			logger.Error().Err(err).Str("end", payload.EndDate).Msg("event bus: bad period end")
			return nil
		}

		// Проекция периода: по ячейке на каждый учебный день диапазона
		for _, day := range dates.ClassDaysInRange(start, end) {
			if err := journalWorker.EnqueueSetCell(ctx, payload.UserID, dates.Canonical(day), false, payload.Reason); err != nil {
				logger.Error().Err(err).Int64("user_id", payload.UserID).Msg("event bus: enqueue set_cell")
			}
		}
		return nil
	}

	bus.Subscribe(events.EventUserRegistered, userHandler)
	bus.Subscribe(events.EventPresenceRecorded, cellHandler)
	bus.Subscribe(events.EventAbsenceRecorded, cellHandler)
	bus.Subscribe(events.EventPeriodRecorded, periodHandler)
}
