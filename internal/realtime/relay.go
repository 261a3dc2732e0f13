package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/pharmacy-realtime-api/internal/observability"
)

// RedisRelay exchanges envelopes over a Redis pub/sub channel.
type RedisRelay struct {
	client  *redis.Client
	channel string
	nodeID  string
	logger  zerolog.Logger
}

// NewRedisRelay constructs a relay publishing on <channelBase>:realtime.
func NewRedisRelay(client *redis.Client, channelBase, nodeID string, logger zerolog.Logger) *RedisRelay {
	return &RedisRelay{
		client:  client,
		channel: channelBase + ":realtime",
		nodeID:  nodeID,
		logger:  logger.With().Str("component", "redis_relay").Logger(),
	}
}

func (r *RedisRelay) Publish(ctx context.Context, envelope Envelope) error {
	payload, err := encodeEnvelope(r.nodeID, envelope)
	if err != nil {
		return err
	}
	return r.client.Publish(ctx, r.channel, payload).Err()
}

// Start subscribes and waits for the subscription to be confirmed before returning.
func (r *RedisRelay) Start(ctx context.Context, handler func(Envelope)) error {
	pubsub := r.client.Subscribe(ctx, r.channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return fmt.Errorf("failed to subscribe to %s: %w", r.channel, err)
	}

	go func() {
		defer func() { _ = pubsub.Close() }()
		for {
			msg, err := pubsub.ReceiveMessage(ctx)
			if err != nil {
				if errors.Is(err, context.Canceled) || ctx.Err() != nil {
					return
				}
				r.logger.Error().Err(err).Msg("realtime redis subscription closed")
				return
			}
			if envelope, ok := decodeEnvelope(r.nodeID, []byte(msg.Payload), r.logger); ok {
				observability.RelayEnvelopes().WithLabelValues("redis").Inc()
				handler(envelope)
			}
		}
	}()

	return nil
}

// NATSRelay exchanges envelopes over a NATS subject. Every node subscribes without a
// queue group so each one sees every envelope.
type NATSRelay struct {
	conn    *nats.Conn
	subject string
	nodeID  string
	logger  zerolog.Logger
}

// NewNATSRelay constructs a relay publishing on <channelBase>.realtime.
func NewNATSRelay(conn *nats.Conn, channelBase, nodeID string, logger zerolog.Logger) *NATSRelay {
	return &NATSRelay{
		conn:    conn,
		subject: strings.ReplaceAll(channelBase, ":", ".") + ".realtime",
		nodeID:  nodeID,
		logger:  logger.With().Str("component", "nats_relay").Logger(),
	}
}

func (r *NATSRelay) Publish(_ context.Context, envelope Envelope) error {
	payload, err := encodeEnvelope(r.nodeID, envelope)
	if err != nil {
		return err
	}
	return r.conn.Publish(r.subject, payload)
}

func (r *NATSRelay) Start(ctx context.Context, handler func(Envelope)) error {
	sub, err := r.conn.Subscribe(r.subject, func(msg *nats.Msg) {
		if envelope, ok := decodeEnvelope(r.nodeID, msg.Data, r.logger); ok {
			observability.RelayEnvelopes().WithLabelValues("nats").Inc()
			handler(envelope)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", r.subject, err)
	}

	go func() {
		<-ctx.Done()
		if err := sub.Drain(); err != nil {
			r.logger.Warn().Err(err).Msg("failed to drain realtime nats subscription")
		}
	}()

	return nil
}

func encodeEnvelope(nodeID string, envelope Envelope) ([]byte, error) {
	envelope.Source = nodeID
	return json.Marshal(envelope)
}

// decodeEnvelope parses a relayed envelope and drops the ones this node published.
func decodeEnvelope(nodeID string, data []byte, logger zerolog.Logger) (Envelope, bool) {
	var envelope Envelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		logger.Warn().Err(err).Msg("invalid realtime envelope")
		return Envelope{}, false
	}
	if envelope.Source == nodeID {
		return Envelope{}, false
	}
	return envelope, true
}
