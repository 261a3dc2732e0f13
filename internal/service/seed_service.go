package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/noah-isme/pharmacy-realtime-api/internal/dto"
	"github.com/noah-isme/pharmacy-realtime-api/internal/models"
	"github.com/noah-isme/pharmacy-realtime-api/internal/repository"
)

var (
	// ErrSeedDisabled indicates the seeding tools are disabled by configuration.
	ErrSeedDisabled = errors.New("seeding is disabled")
	// ErrSeedUnauthorized indicates the provided token is invalid.
	ErrSeedUnauthorized = errors.New("invalid seed token")
)

// SeedService provisions pharmacy staff accounts for development environments.
type SeedService interface {
	SeedUsers(ctx context.Context, token string, items []dto.SeedUser) (int64, error)
}

type seedService struct {
	userRepo  repository.UserRepository
	validator *validator.Validate
	enabled   bool
	token     string
	logger    zerolog.Logger
}

// NewSeedService constructs a seeding service.
func NewSeedService(userRepo repository.UserRepository, validate *validator.Validate, enabled bool, token string, logger zerolog.Logger) SeedService {
	return &seedService{
		userRepo:  userRepo,
		validator: validate,
		enabled:   enabled,
		token:     token,
		logger:    logger.With().Str("component", "seed_service").Logger(),
	}
}

func (s *seedService) SeedUsers(ctx context.Context, token string, items []dto.SeedUser) (int64, error) {
	if !s.enabled {
		return 0, ErrSeedDisabled
	}
	if !s.validateToken(token) {
		return 0, ErrSeedUnauthorized
	}

	users, err := s.normalizeUsers(items)
	if err != nil {
		return 0, err
	}
	if len(users) == 0 {
		return 0, nil
	}

	affected, err := s.userRepo.UpsertBatch(ctx, users)
	if err != nil {
		return 0, err
	}
	s.logger.Info().Int64("affected", affected).Msg("users seeded")
	return affected, nil
}

func (s *seedService) validateToken(token string) bool {
	expected := strings.TrimSpace(s.token)
	if expected == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(strings.TrimSpace(token))) == 1
}

// normalizeUsers maps role aliases onto the closed role set and keeps the last entry
// for a repeated username.
func (s *seedService) normalizeUsers(items []dto.SeedUser) ([]models.User, error) {
	positions := make(map[string]int, len(items))
	users := make([]models.User, 0, len(items))

	for i, item := range items {
		item.Username = strings.ToLower(strings.TrimSpace(item.Username))
		item.FullName = strings.TrimSpace(item.FullName)
		if err := s.validator.Struct(item); err != nil {
			return nil, fmt.Errorf("user %d: %w", i, err)
		}

		role, _ := models.ParseRole(item.Role)
		user := models.User{
			Username: item.Username,
			FullName: item.FullName,
			Role:     role,
			Status:   models.PresenceOffline,
		}
		if user.FullName == "" {
			user.FullName = item.Username
		}

		if pos, seen := positions[user.Username]; seen {
			users[pos] = user
			continue
		}
		positions[user.Username] = len(users)
		users = append(users, user)
	}

	return users, nil
}
