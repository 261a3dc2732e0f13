package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"

	"github.com/noah-isme/pharmacy-realtime-api/internal/dto"
	"github.com/noah-isme/pharmacy-realtime-api/internal/observability"
	"github.com/noah-isme/pharmacy-realtime-api/internal/realtime"
)

// AlertService fans inventory and sales alerts out to administrators and pushes
// targeted notifications to single users.
type AlertService interface {
	PublishAlert(ctx context.Context, request dto.AlertRequest) (dto.AlertResponse, error)
	Notify(ctx context.Context, request dto.NotificationRequest) (dto.AlertResponse, error)
}

type alertService struct {
	dispatcher EventDispatcher
	validator  *validator.Validate
	sanitizer  *bluemonday.Policy
	logger     zerolog.Logger
}

// NewAlertService constructs an alert publisher.
func NewAlertService(dispatcher EventDispatcher, validate *validator.Validate, logger zerolog.Logger) AlertService {
	return &alertService{
		dispatcher: dispatcher,
		validator:  validate,
		sanitizer:  bluemonday.StrictPolicy(),
		logger:     logger.With().Str("component", "alert_service").Logger(),
	}
}

var alertEvents = map[string]string{
	dto.AlertLowStock:   dto.EventLowStockAlert,
	dto.AlertOutOfStock: dto.EventOutOfStockAlert,
	dto.AlertExpiration: dto.EventExpirationAlert,
	dto.AlertSales:      dto.EventSalesNotification,
}

func (s *alertService) PublishAlert(ctx context.Context, request dto.AlertRequest) (dto.AlertResponse, error) {
	request.Kind = strings.ToLower(strings.TrimSpace(request.Kind))
	if err := s.validator.Struct(request); err != nil {
		return dto.AlertResponse{}, err
	}

	request.ProductName = s.sanitizer.Sanitize(strings.TrimSpace(request.ProductName))
	request.Message = s.sanitizer.Sanitize(strings.TrimSpace(request.Message))

	event := dto.NewEvent(alertEvents[request.Kind], request)
	delivered := s.dispatcher.ToGroup(ctx, realtime.GroupAdmins, event)
	observability.AlertsPublished().WithLabelValues(request.Kind).Inc()

	s.logger.Info().
		Str("kind", request.Kind).
		Uint("product_id", request.ProductID).
		Int("delivered", delivered).
		Msg("alert published")

	return dto.AlertResponse{
		Event:     event.Type,
		Target:    realtime.GroupAdmins,
		Delivered: delivered,
		SentAt:    event.SentAt,
	}, nil
}

func (s *alertService) Notify(ctx context.Context, request dto.NotificationRequest) (dto.AlertResponse, error) {
	request.Title = strings.TrimSpace(request.Title)
	request.Message = strings.TrimSpace(request.Message)
	if err := s.validator.Struct(request); err != nil {
		return dto.AlertResponse{}, err
	}

	request.Title = s.sanitizer.Sanitize(request.Title)
	request.Message = s.sanitizer.Sanitize(request.Message)

	event := dto.NewEvent(dto.EventNotification, request)
	delivered := s.dispatcher.ToUser(ctx, request.UserID, event)
	observability.AlertsPublished().WithLabelValues(dto.EventNotification).Inc()

	s.logger.Info().Uint("user_id", request.UserID).Int("delivered", delivered).Msg("notification published")

	return dto.AlertResponse{
		Event:     event.Type,
		Target:    fmt.Sprintf("user:%d", request.UserID),
		Delivered: delivered,
		SentAt:    event.SentAt,
	}, nil
}
