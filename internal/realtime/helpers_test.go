package realtime

import (
	"context"
	"errors"
	"sync"

	"github.com/noah-isme/pharmacy-realtime-api/internal/dto"
	"github.com/noah-isme/pharmacy-realtime-api/internal/models"
)

type recordingSink struct {
	mu     sync.Mutex
	events []dto.Event
}

func (s *recordingSink) Deliver(event dto.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *recordingSink) types() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.events))
	for _, event := range s.events {
		out = append(out, event.Type)
	}
	return out
}

func (s *recordingSink) last() dto.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.events) == 0 {
		return dto.Event{}
	}
	return s.events[len(s.events)-1]
}

func (s *recordingSink) count(eventType string) int {
	total := 0
	for _, t := range s.types() {
		if t == eventType {
			total++
		}
	}
	return total
}

type fullSink struct{}

func (fullSink) Deliver(dto.Event) error { return ErrSinkFull }

type panicSink struct{}

func (panicSink) Deliver(dto.Event) error { panic("broken sink") }

type stubPresence struct {
	mu           sync.Mutex
	roles        map[uint]models.Role
	online       []uint
	offline      []uint
	panicOffline bool
}

func newStubPresence(roles map[uint]models.Role) *stubPresence {
	return &stubPresence{roles: roles}
}

func (p *stubPresence) Online(_ context.Context, userID uint) (models.Role, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	role, ok := p.roles[userID]
	if !ok {
		return "", false
	}
	p.online = append(p.online, userID)
	return role, true
}

func (p *stubPresence) Offline(_ context.Context, userID uint) {
	p.mu.Lock()
	p.offline = append(p.offline, userID)
	shouldPanic := p.panicOffline
	p.mu.Unlock()
	if shouldPanic {
		panic("database unavailable")
	}
}

func (p *stubPresence) offlineCalls() []uint {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]uint(nil), p.offline...)
}

type sentMessage struct {
	from uint
	to   uint
	text string
}

type stubMessages struct {
	mu       sync.Mutex
	sent     []sentMessage
	messages map[uint]dto.MessageResponse
}

func newStubMessages() *stubMessages {
	return &stubMessages{messages: make(map[uint]dto.MessageResponse)}
}

func (m *stubMessages) Send(_ context.Context, fromUserID, toUserID uint, text string) (dto.MessageResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if toUserID == 0 || text == "" {
		return dto.MessageResponse{}, errors.New("invalid message")
	}
	m.sent = append(m.sent, sentMessage{from: fromUserID, to: toUserID, text: text})
	return dto.MessageResponse{ID: uint(len(m.sent)), FromUserID: fromUserID, ToUserID: toUserID, MessageText: text}, nil
}

func (m *stubMessages) MarkRead(_ context.Context, messageID uint) (*dto.MessageResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	message, ok := m.messages[messageID]
	if !ok {
		return nil, nil
	}
	message.MessageStatus = models.MessageRead
	m.messages[messageID] = message
	return &message, nil
}

func (m *stubMessages) Reply(_ context.Context, messageID uint, text string) (*dto.MessageResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	message, ok := m.messages[messageID]
	if !ok {
		return nil, nil
	}
	message.ReplyText = &text
	m.messages[messageID] = message
	return &message, nil
}

func (m *stubMessages) sentMessages() []sentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sentMessage(nil), m.sent...)
}
