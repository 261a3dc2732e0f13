package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/pharmacy-realtime-api/internal/dto"
	"github.com/noah-isme/pharmacy-realtime-api/internal/models"
	"github.com/noah-isme/pharmacy-realtime-api/internal/observability"
	"github.com/noah-isme/pharmacy-realtime-api/internal/realtime"
	"github.com/noah-isme/pharmacy-realtime-api/internal/repository"
)

// EventDispatcher fans events out to live connections.
type EventDispatcher interface {
	ToUser(ctx context.Context, userID uint, event dto.Event) int
	ToGroup(ctx context.Context, group string, event dto.Event) int
}

// PresenceService records advisory online/offline state driven by connection lifecycle.
type PresenceService interface {
	Online(ctx context.Context, userID uint) (models.Role, bool)
	Offline(ctx context.Context, userID uint)
	Get(ctx context.Context, userID uint) (dto.PresenceResponse, error)
	ListOnline(ctx context.Context) ([]dto.PresenceResponse, error)
}

type presenceService struct {
	repo       repository.UserRepository
	dispatcher EventDispatcher
	logger     zerolog.Logger
	now        func() time.Time
}

// NewPresenceService constructs a presence tracker. A nil clock uses the wall clock.
func NewPresenceService(repo repository.UserRepository, dispatcher EventDispatcher, logger zerolog.Logger, clock func() time.Time) PresenceService {
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	return &presenceService{
		repo:       repo,
		dispatcher: dispatcher,
		logger:     logger.With().Str("component", "presence_service").Logger(),
		now:        clock,
	}
}

// Online resolves the user and marks them online. Unknown users yield false and
// nothing is written; persistence failures are logged and the role is still returned.
func (s *presenceService) Online(ctx context.Context, userID uint) (models.Role, bool) {
	if userID == 0 {
		return "", false
	}

	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.logger.Debug().Uint("user_id", userID).Msg("presence user not found")
		} else {
			s.logger.Warn().Err(err).Uint("user_id", userID).Msg("failed to resolve presence user")
		}
		observability.PresenceTransitions().WithLabelValues(string(models.PresenceOnline), "unresolved").Inc()
		return "", false
	}

	s.transition(ctx, userID, models.PresenceOnline, true)
	return user.Role, true
}

// Offline marks the user offline. It is last-write-wins: a second live tab does not
// keep the user online.
func (s *presenceService) Offline(ctx context.Context, userID uint) {
	if userID == 0 {
		return
	}
	s.transition(ctx, userID, models.PresenceOffline, false)
}

func (s *presenceService) transition(ctx context.Context, userID uint, status models.PresenceStatus, online bool) {
	seenAt := s.now()
	if err := s.repo.UpdatePresence(ctx, userID, status, online, seenAt); err != nil {
		s.logger.Warn().Err(err).Uint("user_id", userID).Str("status", string(status)).Msg("failed to persist presence")
		observability.PresenceTransitions().WithLabelValues(string(status), "failed").Inc()
		return
	}
	observability.PresenceTransitions().WithLabelValues(string(status), "persisted").Inc()

	if s.dispatcher == nil {
		return
	}
	event := dto.NewEvent(dto.EventPresenceChanged, dto.PresencePayload{
		UserID:      userID,
		Status:      status,
		IsOnlineNow: online,
		LastSeenAt:  seenAt,
	})
	s.dispatcher.ToGroup(ctx, realtime.GroupAdmins, event)
	s.dispatcher.ToGroup(ctx, realtime.GroupStaff, event)
}

func (s *presenceService) Get(ctx context.Context, userID uint) (dto.PresenceResponse, error) {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return dto.PresenceResponse{}, err
	}
	return dto.NewPresenceResponse(user), nil
}

func (s *presenceService) ListOnline(ctx context.Context) ([]dto.PresenceResponse, error) {
	users, err := s.repo.ListOnline(ctx)
	if err != nil {
		return nil, err
	}
	return dto.NewPresenceResponseSlice(users), nil
}
