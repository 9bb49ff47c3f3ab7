package bot

import (
	"context"
	"fmt"
	"time"

	"rollcall/internal/dates"

	"golang.org/x/time/rate"
)

// StartReminders запускает вечернее напоминание: ежедневно в настроенное время
// часового пояса группы. Если процесс стартовал после времени срабатывания, но
// в пределах окна опоздания, напоминание уходит сразу.
func (b *Bot) StartReminders(ctx context.Context) {
	if b == nil || b.tgService == nil {
		return
	}

	hour, minute, err := parseReminderTime(b.config.Bot.ReminderTime)
	if err != nil {
		b.logger.Error().Err(err).Str("reminder_time", b.config.Bot.ReminderTime).Msg("Invalid reminder time format")
		return
	}

	go func() {
		grace := time.Duration(b.config.Bot.ReminderGraceMin) * time.Minute

		now := b.now()
		fireAt := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, b.location)
		if !now.Before(fireAt) && now.Sub(fireAt) <= grace {
			// Опоздавший запуск в пределах окна
			b.sendEveningReminders(ctx)
			fireAt = fireAt.Add(24 * time.Hour)
		} else if !fireAt.After(now) {
			fireAt = fireAt.Add(24 * time.Hour)
		}

		timer := time.NewTimer(time.Until(fireAt))
		defer timer.Stop()

		b.logger.Info().Time("next_fire", fireAt).Msg("Планировщик напоминаний запущен")

		for {
			select {
			case <-ctx.Done():
				return
			case <-timer.C:
				b.sendEveningReminders(ctx)
				fireAt = fireAt.Add(24 * time.Hour)
				timer.Reset(time.Until(fireAt))
			}
		}
	}()
}

func (b *Bot) sendEveningReminders(ctx context.Context) {
	users, err := b.userService.GetAllUsers(ctx)
	if err != nil {
		b.logger.Error().Err(err).Msg("reminder: load users error")
		return
	}
	if len(users) == 0 {
		b.logger.Info().Msg("reminder: нет зарегистрированных пользователей")
		return
	}

	tomorrow := b.now().Add(24 * time.Hour)
	tomorrowText := dates.Canonical(tomorrow)

	// Троттлинг под лимиты Telegram на массовые рассылки
	limiter := rate.NewLimiter(rate.Limit(20), 1)

	sent := 0
	for _, user := range users {
		covered, err := b.attendanceService.IsCoveredOn(ctx, user.UserID, tomorrow)
		if err != nil {
			b.logger.Error().Err(err).Int64("user_id", user.UserID).Msg("reminder: coverage check error")
			continue
		}
		if covered {
			b.logger.Info().Int64("user_id", user.UserID).Str("name", user.Name).Msg("reminder: пропуск, активный период отсутствия")
			if b.metrics != nil {
				b.metrics.RemindersSkipped.Inc()
			}
			continue
		}

		if err := limiter.Wait(ctx); err != nil {
			return
		}

		text := fmt.Sprintf("🌙 Вечернее напоминание\n\n%s%s, будешь завтра на парах?\n\n📅 Завтра: %s",
			user.Name, usernameSuffix(user.Username), tomorrowText)

		if _, err := b.tgService.SendWithKeyboard(user.UserID, text, mainKeyboard()); err != nil {
			// Заблокировавшие бота просто пропускаются
			b.logger.Warn().Err(err).Int64("user_id", user.UserID).Msg("reminder: send error")
			continue
		}

		sent++
		if b.metrics != nil {
			b.metrics.RemindersSent.Inc()
		}
	}

	b.logger.Info().Int("sent", sent).Int("total", len(users)).Msg("Напоминание отправлено")

	// Заодно продвигаем окно дат журнала
	if b.syncWorker != nil {
		if err := b.syncWorker.EnqueueEnsureDates(ctx); err != nil {
			b.logger.Error().Err(err).Msg("reminder: enqueue ensure_dates error")
		}
	}
}

func parseReminderTime(s string) (hour, minute int, err error) {
	if _, err = fmt.Sscanf(s, "%d:%d", &hour, &minute); err != nil {
		return 0, 0, err
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("reminder time out of range: %s", s)
	}
	return hour, minute, nil
}
