package realtime

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/noah-isme/pharmacy-realtime-api/internal/dto"
	"github.com/noah-isme/pharmacy-realtime-api/internal/observability"
)

// Addressing modes understood by the dispatcher.
const (
	ModeUser  = "user"
	ModeRoom  = "room"
	ModeGroup = "group"
)

// Envelope is an addressed event, also the unit exchanged between nodes.
type Envelope struct {
	Source string    `json:"source,omitempty"`
	Mode   string    `json:"mode"`
	UserID uint      `json:"user_id,omitempty"`
	Room   string    `json:"room,omitempty"`
	Group  string    `json:"group,omitempty"`
	Except string    `json:"except,omitempty"`
	Event  dto.Event `json:"event"`
}

// Relay forwards envelopes to the other nodes serving the same clients.
type Relay interface {
	Publish(ctx context.Context, envelope Envelope) error
	Start(ctx context.Context, handler func(Envelope)) error
}

type directory interface {
	UserConnections(userID uint) []Connection
	RoomConnections(room string) []Connection
	GroupConnections(group string) []Connection
}

// Dispatcher delivers events to live connections addressed by user, room or group.
// Delivery is best-effort and at-most-once: missing targets and failing sinks are
// logged and skipped.
type Dispatcher struct {
	directory directory
	relay     Relay
	logger    zerolog.Logger
}

// NewDispatcher constructs a dispatcher over the registry.
func NewDispatcher(registry *Registry, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		directory: registry,
		logger:    logger.With().Str("component", "dispatcher").Logger(),
	}
}

// UseRelay enables cross-node forwarding.
func (d *Dispatcher) UseRelay(relay Relay) {
	d.relay = relay
}

// ToUser delivers to every live connection of the user.
func (d *Dispatcher) ToUser(ctx context.Context, userID uint, event dto.Event) int {
	return d.dispatch(ctx, Envelope{Mode: ModeUser, UserID: userID, Event: event})
}

// ToRoom delivers to every connection in room except the sending connection.
func (d *Dispatcher) ToRoom(ctx context.Context, room, exceptConnID string, event dto.Event) int {
	return d.dispatch(ctx, Envelope{Mode: ModeRoom, Room: room, Except: exceptConnID, Event: event})
}

// ToGroup delivers to every connection assigned to a role group.
func (d *Dispatcher) ToGroup(ctx context.Context, group string, event dto.Event) int {
	return d.dispatch(ctx, Envelope{Mode: ModeGroup, Group: group, Event: event})
}

func (d *Dispatcher) dispatch(ctx context.Context, envelope Envelope) int {
	delivered := d.DeliverLocal(envelope)

	if d.relay != nil {
		if err := d.relay.Publish(ctx, envelope); err != nil {
			d.logger.Warn().Err(err).Str("mode", envelope.Mode).Str("event", envelope.Event.Type).Msg("failed to relay event")
		}
	}

	return delivered
}

// DeliverLocal fans the envelope out to connections held by this node only.
func (d *Dispatcher) DeliverLocal(envelope Envelope) int {
	var targets []Connection
	switch envelope.Mode {
	case ModeUser:
		targets = d.directory.UserConnections(envelope.UserID)
	case ModeRoom:
		targets = d.directory.RoomConnections(envelope.Room)
	case ModeGroup:
		targets = d.directory.GroupConnections(envelope.Group)
	default:
		d.logger.Warn().Str("mode", envelope.Mode).Msg("unknown dispatch mode")
		return 0
	}

	delivered := 0
	for _, conn := range targets {
		if envelope.Except != "" && conn.ID == envelope.Except {
			continue
		}
		if err := deliver(conn, envelope.Event); err != nil {
			observability.Deliveries().WithLabelValues(envelope.Mode, "failed").Inc()
			d.logger.Debug().Err(err).
				Str("connection_id", conn.ID).
				Uint("user_id", conn.UserID).
				Str("event", envelope.Event.Type).
				Msg("dropping event for connection")
			continue
		}
		observability.Deliveries().WithLabelValues(envelope.Mode, "delivered").Inc()
		delivered++
	}

	if delivered == 0 {
		observability.Deliveries().WithLabelValues(envelope.Mode, "no_target").Inc()
	}

	return delivered
}

func deliver(conn Connection, event dto.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sink panicked: %v", r)
		}
	}()
	return conn.Sink.Deliver(event)
}
