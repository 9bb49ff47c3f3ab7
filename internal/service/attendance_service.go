package service

import (
	"context"
	"fmt"
	"time"

	"rollcall/internal/dates"
	"rollcall/internal/domain"
	"rollcall/internal/events"
	"rollcall/internal/models"

	"github.com/rs/zerolog"
)

// AttendanceServiceImpl фиксирует отметки посещаемости. Порядок строгий:
// сначала коммит в БД, затем событие для проекции журнала. Ошибка БД
// прерывает операцию, ошибка публикации только логируется — журнал догонит.
type AttendanceServiceImpl struct {
	repo      domain.Repository
	publisher domain.EventPublisher
	logger    *zerolog.Logger
}

func NewAttendanceService(repo domain.Repository, publisher domain.EventPublisher, logger *zerolog.Logger) *AttendanceServiceImpl {
	return &AttendanceServiceImpl{
		repo:      repo,
		publisher: publisher,
		logger:    logger,
	}
}

// MarkPresent фиксирует присутствие. В БД попадает только отметка активности:
// таблица absences хранит лишь пропуски, присутствие живет в журнале.
func (s *AttendanceServiceImpl) MarkPresent(ctx context.Context, userID int64, day time.Time) error {
	if _, err := s.repo.GetUser(ctx, userID); err != nil {
		return err
	}

	if err := s.repo.UpdateUserActivity(ctx, userID); err != nil {
		s.logger.Error().Err(err).Int64("user_id", userID).Msg("failed to update user activity")
	}

	if err := s.publisher.PublishJSON(events.EventPresenceRecorded, events.AttendanceEventPayload{
		UserID:  userID,
		Date:    dates.Canonical(day),
		Present: true,
	}); err != nil {
		s.logger.Error().Err(err).Msg("failed to publish presence_recorded event")
	}

	return nil
}

func (s *AttendanceServiceImpl) MarkAbsent(ctx context.Context, userID int64, day time.Time, reason string) (*models.Absence, error) {
	date := dates.Canonical(day)

	absence, err := s.repo.RecordAbsence(ctx, userID, date, reason)
	if err != nil {
		return nil, fmt.Errorf("record absence: %w", err)
	}

	s.logger.Info().
		Int64("user_id", userID).
		Str("date", date).
		Msg("Зафиксирован пропуск")

	if err := s.publisher.PublishJSON(events.EventAbsenceRecorded, events.AttendanceEventPayload{
		UserID:  userID,
		Date:    date,
		Present: false,
		Reason:  reason,
	}); err != nil {
		s.logger.Error().Err(err).Msg("failed to publish absence_recorded event")
	}

	return absence, nil
}

func (s *AttendanceServiceImpl) RecordPeriod(ctx context.Context, userID int64, start, end time.Time, reason string) (*models.AbsencePeriod, error) {
	startDate := dates.Canonical(start)
	endDate := dates.Canonical(end)

	period, err := s.repo.RecordAbsencePeriod(ctx, userID, startDate, endDate, reason)
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Int64("user_id", userID).
		Str("start", startDate).
		Str("end", endDate).
		Msg("Зафиксирован период отсутствия")

	if err := s.publisher.PublishJSON(events.EventPeriodRecorded, events.PeriodEventPayload{
		UserID:    userID,
		StartDate: startDate,
		EndDate:   endDate,
		Reason:    reason,
	}); err != nil {
		s.logger.Error().Err(err).Msg("failed to publish period_recorded event")
	}

	return period, nil
}

func (s *AttendanceServiceImpl) ActivePeriods(ctx context.Context, userID int64, asOf time.Time) ([]*models.AbsencePeriod, error) {
	return s.repo.ListActivePeriods(ctx, userID, asOf)
}

func (s *AttendanceServiceImpl) ClearPeriods(ctx context.Context, userID int64, asOf time.Time) (int, error) {
	removed, err := s.repo.ClearActivePeriods(ctx, userID, asOf)
	if err != nil {
		return 0, err
	}

	if removed > 0 {
		s.logger.Info().Int64("user_id", userID).Int("removed", removed).Msg("Периоды отсутствия удалены")

		if err := s.publisher.PublishJSON(events.EventPeriodsCleared, events.UserEventPayload{
			UserID: userID,
		}); err != nil {
			s.logger.Error().Err(err).Msg("failed to publish periods_cleared event")
		}
	}

	return removed, nil
}

func (s *AttendanceServiceImpl) IsCoveredOn(ctx context.Context, userID int64, day time.Time) (bool, error) {
	return s.repo.IsUserCoveredOn(ctx, userID, day)
}

func (s *AttendanceServiceImpl) RecentAbsences(ctx context.Context, userID int64, limit int) ([]*models.Absence, error) {
	return s.repo.ListRecentAbsences(ctx, userID, limit)
}
