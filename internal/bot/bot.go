package bot

import (
	"context"
	"os"
	"time"

	"rollcall/internal/config"
	"rollcall/internal/domain"
	"rollcall/internal/events"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type Bot struct {
	tgService         domain.TelegramService
	config            *config.Config
	stateService      domain.StateManager
	userService       domain.UserService
	attendanceService domain.AttendanceService
	journal           domain.JournalWriter
	syncWorker        domain.SyncWorker
	eventBus          domain.EventPublisher
	metrics           *Metrics
	logger            *zerolog.Logger
	location          *time.Location
}

func NewBot(
	tgService domain.TelegramService,
	cfg *config.Config,
	stateService domain.StateManager,
	userService domain.UserService,
	attendanceService domain.AttendanceService,
	journal domain.JournalWriter,
	syncWorker domain.SyncWorker,
	eventBus domain.EventPublisher,
	metrics *Metrics,
	logger *zerolog.Logger,
) (*Bot, error) {
	if eventBus == nil {
		eventBus = events.NewEventBus()
	}

	if logger == nil {
		l := zerolog.New(os.Stdout).With().Timestamp().Logger()
		logger = &l
	}

	loc, err := time.LoadLocation(cfg.Bot.Timezone)
	if err != nil {
		return nil, err
	}

	return &Bot{
		tgService:         tgService,
		config:            cfg,
		stateService:      stateService,
		userService:       userService,
		attendanceService: attendanceService,
		journal:           journal,
		syncWorker:        syncWorker,
		eventBus:          eventBus,
		metrics:           metrics,
		logger:            logger,
		location:          loc,
	}, nil
}

// now возвращает текущее время в часовом поясе группы. Все «сегодня» и
// «завтра» считаются в нем, не в поясе сервера.
func (b *Bot) now() time.Time {
	return time.Now().In(b.location)
}

func (b *Bot) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.tgService.GetUpdatesChan(u)

	b.logger.Info().Str("username", b.tgService.GetSelf().UserName).Msg("Authorized on account")

	for {
		select {
		case <-ctx.Done():
			b.logger.Info().Msg("Bot stopping...")
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			b.processUpdate(ctx, update)
		}
	}
}

func (b *Bot) processUpdate(ctx context.Context, update tgbotapi.Update) {
	start := time.Now()
	defer func() {
		if b.metrics != nil {
			b.metrics.UpdateProcessingTime.Observe(time.Since(start).Seconds())
		}
	}()

	// Контекст на обработку одного обновления
	updateCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	requestID := uuid.New().String()
	l := b.logger.With().Str("request_id", requestID).Logger()
	updateCtx = l.WithContext(updateCtx)

	b.withRecovery(func() {
		if update.Message == nil || update.Message.From == nil {
			return
		}

		userID := update.Message.From.ID
		if userID == 0 {
			return
		}

		if b.metrics != nil {
			b.metrics.MessagesProcessed.Inc()
		}

		if !b.isAdmin(userID) {
			allowed, err := b.stateService.CheckRateLimit(updateCtx, userID, b.config.Bot.RateLimitMessages, time.Duration(b.config.Bot.RateLimitWindow)*time.Second)
			if err != nil {
				b.logger.Error().Err(err).Int64("user_id", userID).Msg("Rate limit check failed")
			} else if !allowed {
				b.logger.Warn().Int64("user_id", userID).Msg("Rate limit exceeded")
				b.sendMessage(update.Message.Chat.ID, "⚠️ Вы отправляете сообщения слишком часто. Пожалуйста, подождите немного.")
				return
			}
		}

		b.trackActivity(updateCtx, update.Message.From)

		b.handleMessage(updateCtx, update)
	})
}

func (b *Bot) isAdmin(userID int64) bool {
	return userID == b.config.Telegram.AdminChatID
}

func (b *Bot) sendMessage(chatID int64, text string) {
	if _, err := b.tgService.SendMessage(chatID, text); err != nil {
		b.logger.Error().Err(err).Int64("chat_id", chatID).Msg("Failed to send message")
	}
}

func (b *Bot) sendWithKeyboard(chatID int64, text string, keyboard tgbotapi.ReplyKeyboardMarkup) {
	if _, err := b.tgService.SendWithKeyboard(chatID, text, keyboard); err != nil {
		b.logger.Error().Err(err).Int64("chat_id", chatID).Msg("Failed to send message")
	}
}
