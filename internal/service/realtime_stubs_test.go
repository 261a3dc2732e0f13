package service

import (
	"context"
	"errors"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/pharmacy-realtime-api/internal/dto"
	"github.com/noah-isme/pharmacy-realtime-api/internal/models"
	"github.com/noah-isme/pharmacy-realtime-api/internal/repository"
)

func testLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

type dispatchedEvent struct {
	target string
	userID uint
	event  dto.Event
}

type recordingDispatcher struct {
	mu     sync.Mutex
	events []dispatchedEvent
}

func (d *recordingDispatcher) ToUser(_ context.Context, userID uint, event dto.Event) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, dispatchedEvent{target: "user", userID: userID, event: event})
	return 1
}

func (d *recordingDispatcher) ToGroup(_ context.Context, group string, event dto.Event) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, dispatchedEvent{target: group, event: event})
	return 2
}

func (d *recordingDispatcher) all() []dispatchedEvent {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]dispatchedEvent(nil), d.events...)
}

func (d *recordingDispatcher) ofType(eventType string) []dispatchedEvent {
	var out []dispatchedEvent
	for _, item := range d.all() {
		if item.event.Type == eventType {
			out = append(out, item)
		}
	}
	return out
}

type presenceUpdate struct {
	userID uint
	status models.PresenceStatus
	online bool
	seenAt time.Time
}

type stubUserRepo struct {
	users     map[uint]models.User
	updates   []presenceUpdate
	findErr   error
	updateErr error
	upserted  []models.User
}

func newStubUserRepo(users ...models.User) *stubUserRepo {
	repo := &stubUserRepo{users: make(map[uint]models.User)}
	for _, user := range users {
		repo.users[user.ID] = user
	}
	return repo
}

func (r *stubUserRepo) FindByID(_ context.Context, id uint) (models.User, error) {
	if r.findErr != nil {
		return models.User{}, r.findErr
	}
	user, ok := r.users[id]
	if !ok {
		return models.User{}, repository.ErrNotFound
	}
	return user, nil
}

func (r *stubUserRepo) UpdatePresence(_ context.Context, id uint, status models.PresenceStatus, online bool, seenAt time.Time) error {
	if r.updateErr != nil {
		return r.updateErr
	}
	user, ok := r.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	user.Status = status
	user.IsOnlineNow = online
	user.LastSeenAt = &seenAt
	r.users[id] = user
	r.updates = append(r.updates, presenceUpdate{userID: id, status: status, online: online, seenAt: seenAt})
	return nil
}

func (r *stubUserRepo) ListOnline(context.Context) ([]models.User, error) {
	var out []models.User
	for _, user := range r.users {
		if user.IsOnlineNow {
			out = append(out, user)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *stubUserRepo) UpsertBatch(_ context.Context, users []models.User) (int64, error) {
	r.upserted = users
	return int64(len(users)), nil
}

type stubMessageRepo struct {
	messages  map[uint]models.Message
	nextID    uint
	saves     int
	createErr error
	counts    int
}

func newStubMessageRepo() *stubMessageRepo {
	return &stubMessageRepo{messages: make(map[uint]models.Message)}
}

func (r *stubMessageRepo) Create(_ context.Context, message *models.Message) error {
	if r.createErr != nil {
		return r.createErr
	}
	r.nextID++
	message.ID = r.nextID
	message.CreatedAt = time.Now().UTC()
	r.messages[message.ID] = *message
	return nil
}

func (r *stubMessageRepo) Save(_ context.Context, message *models.Message) error {
	if _, ok := r.messages[message.ID]; !ok {
		return errors.New("save of unknown message")
	}
	r.saves++
	r.messages[message.ID] = *message
	return nil
}

func (r *stubMessageRepo) FindByID(_ context.Context, id uint) (models.Message, error) {
	message, ok := r.messages[id]
	if !ok {
		return models.Message{}, repository.ErrNotFound
	}
	return message, nil
}

func (r *stubMessageRepo) ListForRecipient(_ context.Context, userID uint, limit, offset int) ([]models.Message, error) {
	var out []models.Message
	for _, message := range r.messages {
		if message.ToUserID == userID && !message.IsArchived {
			out = append(out, message)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if offset >= len(out) {
		return []models.Message{}, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (r *stubMessageRepo) ListByConversation(_ context.Context, conversationID string, _ time.Time, _ int) ([]models.Message, error) {
	var out []models.Message
	for _, message := range r.messages {
		if message.ConversationID == conversationID {
			out = append(out, message)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *stubMessageRepo) CountUnread(_ context.Context, userID uint) (int64, error) {
	r.counts++
	var total int64
	for _, message := range r.messages {
		if message.ToUserID == userID && message.MessageStatus == models.MessageUnread && !message.IsArchived {
			total++
		}
	}
	return total, nil
}
