package service

import (
	"context"
	"fmt"
	"time"

	"rollcall/internal/domain"
	"rollcall/internal/events"
	"rollcall/internal/models"

	"github.com/rs/zerolog"
)

// UserServiceImpl отвечает за реестр участников. Регистрация идемпотентна:
// повторный /start с тем же именем просто обновляет запись.
type UserServiceImpl struct {
	repo      domain.Repository
	publisher domain.EventPublisher
	logger    *zerolog.Logger
}

func NewUserService(repo domain.Repository, publisher domain.EventPublisher, logger *zerolog.Logger) *UserServiceImpl {
	return &UserServiceImpl{
		repo:      repo,
		publisher: publisher,
		logger:    logger,
	}
}

func (s *UserServiceImpl) Register(ctx context.Context, userID int64, name, username string) (*models.User, error) {
	user := &models.User{
		UserID:     userID,
		Name:       name,
		Username:   username,
		LastActive: time.Now(),
	}

	if err := s.repo.UpsertUser(ctx, user); err != nil {
		return nil, fmt.Errorf("register user: %w", err)
	}

	s.logger.Info().Int64("user_id", userID).Str("name", name).Msg("Пользователь зарегистрирован")

	if err := s.publisher.PublishJSON(events.EventUserRegistered, events.UserEventPayload{
		UserID:   userID,
		Name:     name,
		Username: username,
	}); err != nil {
		s.logger.Error().Err(err).Msg("failed to publish user_registered event")
	}

	return user, nil
}

func (s *UserServiceImpl) GetUser(ctx context.Context, userID int64) (*models.User, error) {
	return s.repo.GetUser(ctx, userID)
}

func (s *UserServiceImpl) GetAllUsers(ctx context.Context) ([]*models.User, error) {
	return s.repo.GetAllUsers(ctx)
}

// RefreshProfile подтягивает актуальный юзернейм и отметку активности.
// Вызывается на каждом входящем сообщении зарегистрированного пользователя.
func (s *UserServiceImpl) RefreshProfile(ctx context.Context, userID int64, username string) error {
	user, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		return err
	}

	if err := s.repo.UpdateUserActivity(ctx, userID); err != nil {
		s.logger.Error().Err(err).Int64("user_id", userID).Msg("failed to update user activity")
	}

	if user.Username == username {
		return nil
	}

	if err := s.repo.UpdateUsernameIfChanged(ctx, userID, username); err != nil {
		return err
	}

	// Смена юзернейма должна дойти и до журнала.
	if err := s.publisher.PublishJSON(events.EventUserRegistered, events.UserEventPayload{
		UserID:   userID,
		Name:     user.Name,
		Username: username,
	}); err != nil {
		s.logger.Error().Err(err).Msg("failed to publish user_registered event")
	}

	return nil
}
