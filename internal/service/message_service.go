package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/pharmacy-realtime-api/internal/dto"
	"github.com/noah-isme/pharmacy-realtime-api/internal/middleware"
	"github.com/noah-isme/pharmacy-realtime-api/internal/models"
	"github.com/noah-isme/pharmacy-realtime-api/internal/observability"
	"github.com/noah-isme/pharmacy-realtime-api/internal/realtime"
	"github.com/noah-isme/pharmacy-realtime-api/internal/repository"
)

// ErrInvalidMessage indicates message text that is empty or too long once normalised.
var ErrInvalidMessage = errors.New("message text is empty")

// MessageService persists direct messages and announces their lifecycle to live clients.
type MessageService interface {
	Send(ctx context.Context, fromUserID, toUserID uint, text string) (dto.MessageResponse, error)
	MarkRead(ctx context.Context, messageID uint) (*dto.MessageResponse, error)
	Reply(ctx context.Context, messageID uint, text string) (*dto.MessageResponse, error)
	Archive(ctx context.Context, messageID uint) (*dto.MessageResponse, error)
	UnreadCount(ctx context.Context, userID uint) (int64, error)
	ListForUser(ctx context.Context, userID uint, limit, offset int) ([]dto.MessageResponse, error)
	Conversation(ctx context.Context, query dto.ConversationQuery) ([]dto.MessageResponse, error)
}

type messageService struct {
	repo        repository.MessageRepository
	dispatcher  EventDispatcher
	redis       *redis.Client
	cachePrefix string
	cacheTTL    time.Duration
	validator   *validator.Validate
	tracer      trace.Tracer
	logger      zerolog.Logger
	now         func() time.Time
}

// NewMessageService constructs the message store adapter. Redis is optional and only
// backs the unread counter.
func NewMessageService(repo repository.MessageRepository, dispatcher EventDispatcher, redisClient *redis.Client, channelBase string, cacheTTL time.Duration, validate *validator.Validate, logger zerolog.Logger) MessageService {
	if cacheTTL <= 0 {
		cacheTTL = 2 * time.Minute
	}
	cachePrefix := ""
	if channelBase != "" {
		cachePrefix = channelBase + ":unread"
	}

	return &messageService{
		repo:        repo,
		dispatcher:  dispatcher,
		redis:       redisClient,
		cachePrefix: cachePrefix,
		cacheTTL:    cacheTTL,
		validator:   validate,
		tracer:      otel.Tracer("github.com/noah-isme/pharmacy-realtime-api/internal/service/message"),
		logger:      logger.With().Str("component", "message_service").Logger(),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func (s *messageService) Send(ctx context.Context, fromUserID, toUserID uint, text string) (dto.MessageResponse, error) {
	request := dto.MessageSendRequest{
		FromUserID: fromUserID,
		ToUserID:   toUserID,
		Text:       strings.TrimSpace(text),
	}
	if err := s.validator.Struct(request); err != nil {
		return dto.MessageResponse{}, err
	}

	clean, err := s.clean(request.Text)
	if err != nil {
		return dto.MessageResponse{}, err
	}

	spanCtx, span := s.tracer.Start(ctx, "chat.send", trace.WithAttributes(s.attributes(ctx,
		attribute.Int64("chat.from_user_id", int64(fromUserID)),
		attribute.Int64("chat.to_user_id", int64(toUserID)),
	)...))
	defer span.End()

	message := models.Message{
		FromUserID:     fromUserID,
		ToUserID:       toUserID,
		ConversationID: realtime.RoomName(fromUserID, toUserID),
		MessageText:    clean,
		MessageStatus:  models.MessageUnread,
	}
	if err := s.repo.Create(spanCtx, &message); err != nil {
		span.RecordError(err)
		return dto.MessageResponse{}, fmt.Errorf("failed to persist message: %w", err)
	}

	observability.MessagesSent().Inc()
	s.invalidateUnread(spanCtx, toUserID)

	response := dto.NewMessageResponse(message)
	s.emit(spanCtx, toUserID, dto.EventMessageReceived, response)
	s.emit(spanCtx, fromUserID, dto.EventMessageSent, response)

	return response, nil
}

// MarkRead is idempotent: unknown messages yield nil. Only unread messages move to
// read; read and archived messages are returned unchanged without emitting an event.
func (s *messageService) MarkRead(ctx context.Context, messageID uint) (*dto.MessageResponse, error) {
	spanCtx, span := s.tracer.Start(ctx, "chat.mark_read", trace.WithAttributes(s.attributes(ctx,
		attribute.Int64("chat.message_id", int64(messageID)),
	)...))
	defer span.End()

	message, found, err := s.find(spanCtx, messageID)
	if err != nil || !found {
		return nil, err
	}

	if message.ReadAt != nil || message.MessageStatus != models.MessageUnread {
		response := dto.NewMessageResponse(message)
		return &response, nil
	}

	readAt := s.now()
	message.ReadAt = &readAt
	message.MessageStatus = models.MessageRead
	if err := s.repo.Save(spanCtx, &message); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to mark message read: %w", err)
	}

	s.invalidateUnread(spanCtx, message.ToUserID)

	response := dto.NewMessageResponse(message)
	s.emit(spanCtx, message.FromUserID, dto.EventMessageRead, response)
	return &response, nil
}

// Reply overwrites any earlier reply; the last reply wins.
func (s *messageService) Reply(ctx context.Context, messageID uint, text string) (*dto.MessageResponse, error) {
	request := dto.MessageReplyRequest{Text: strings.TrimSpace(text)}
	if err := s.validator.Struct(request); err != nil {
		return nil, err
	}

	clean, err := s.clean(request.Text)
	if err != nil {
		return nil, err
	}

	spanCtx, span := s.tracer.Start(ctx, "chat.reply", trace.WithAttributes(s.attributes(ctx,
		attribute.Int64("chat.message_id", int64(messageID)),
	)...))
	defer span.End()

	message, found, err := s.find(spanCtx, messageID)
	if err != nil || !found {
		return nil, err
	}

	repliedAt := s.now()
	message.ReplyText = &clean
	message.RepliedAt = &repliedAt
	if err := s.repo.Save(spanCtx, &message); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to store reply: %w", err)
	}

	response := dto.NewMessageResponse(message)
	s.emit(spanCtx, message.FromUserID, dto.EventMessageReplied, response)
	return &response, nil
}

func (s *messageService) Archive(ctx context.Context, messageID uint) (*dto.MessageResponse, error) {
	message, found, err := s.find(ctx, messageID)
	if err != nil || !found {
		return nil, err
	}

	if !message.IsArchived {
		message.IsArchived = true
		message.MessageStatus = models.MessageArchived
		if err := s.repo.Save(ctx, &message); err != nil {
			return nil, fmt.Errorf("failed to archive message: %w", err)
		}
		s.invalidateUnread(ctx, message.ToUserID)
	}

	response := dto.NewMessageResponse(message)
	return &response, nil
}

func (s *messageService) UnreadCount(ctx context.Context, userID uint) (int64, error) {
	key := s.unreadKey(userID)
	if s.redis != nil && key != "" {
		cached, err := s.redis.Get(ctx, key).Result()
		if err == nil {
			if count, parseErr := strconv.ParseInt(cached, 10, 64); parseErr == nil {
				return count, nil
			}
		} else if !errors.Is(err, redis.Nil) {
			s.logger.Warn().Err(err).Uint("user_id", userID).Msg("failed to read unread count cache")
		}
	}

	count, err := s.repo.CountUnread(ctx, userID)
	if err != nil {
		return 0, err
	}

	if s.redis != nil && key != "" {
		if err := s.redis.Set(ctx, key, count, s.cacheTTL).Err(); err != nil {
			s.logger.Warn().Err(err).Uint("user_id", userID).Msg("failed to cache unread count")
		}
	}

	return count, nil
}

func (s *messageService) ListForUser(ctx context.Context, userID uint, limit, offset int) ([]dto.MessageResponse, error) {
	if offset < 0 {
		offset = 0
	}
	messages, err := s.repo.ListForRecipient(ctx, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	return dto.NewMessageResponseSlice(messages), nil
}

func (s *messageService) Conversation(ctx context.Context, query dto.ConversationQuery) ([]dto.MessageResponse, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, err
	}

	before := time.Time{}
	if query.Before != nil {
		before = *query.Before
	}

	messages, err := s.repo.ListByConversation(ctx, realtime.RoomName(query.UserID, query.OtherUserID), before, query.Limit)
	if err != nil {
		return nil, err
	}
	return dto.NewMessageResponseSlice(messages), nil
}

func (s *messageService) find(ctx context.Context, messageID uint) (models.Message, bool, error) {
	if messageID == 0 {
		return models.Message{}, false, nil
	}
	message, err := s.repo.FindByID(ctx, messageID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return models.Message{}, false, nil
		}
		return models.Message{}, false, err
	}
	return message, true, nil
}

// clean normalises message text for storage. The text is kept as typed; clients
// receive it as JSON and escape it when rendering. NUL bytes are dropped because
// postgres text columns reject them.
func (s *messageService) clean(text string) (string, error) {
	clean := strings.TrimSpace(strings.ReplaceAll(text, "\x00", ""))
	if length := utf8.RuneCountInString(clean); length == 0 || length > models.MessageTextMaxLength {
		return "", ErrInvalidMessage
	}
	return clean, nil
}

func (s *messageService) emit(ctx context.Context, userID uint, eventType string, message dto.MessageResponse) {
	if s.dispatcher == nil {
		return
	}
	delivered := s.dispatcher.ToUser(ctx, userID, dto.NewEvent(eventType, message))
	s.logger.Debug().
		Str("event", eventType).
		Uint("user_id", userID).
		Uint("message_id", message.ID).
		Int("delivered", delivered).
		Msg("message event dispatched")
}

func (s *messageService) unreadKey(userID uint) string {
	if s.cachePrefix == "" {
		return ""
	}
	return fmt.Sprintf("%s:%d", s.cachePrefix, userID)
}

func (s *messageService) invalidateUnread(ctx context.Context, userID uint) {
	key := s.unreadKey(userID)
	if s.redis == nil || key == "" {
		return
	}
	if err := s.redis.Del(ctx, key).Err(); err != nil {
		s.logger.Warn().Err(err).Uint("user_id", userID).Msg("failed to invalidate unread count cache")
	}
}

func (s *messageService) attributes(ctx context.Context, attrs ...attribute.KeyValue) []attribute.KeyValue {
	if correlation := middleware.CorrelationIDFromContext(ctx); correlation != "" {
		attrs = append(attrs, attribute.String("correlation_id", correlation))
	}
	return attrs
}
