package realtime

import (
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/pharmacy-realtime-api/internal/dto"
)

const defaultKeepAlive = 30 * time.Second

// wsConn is the subset of a websocket connection used by the client pumps.
type wsConn interface {
	ReadJSON(v interface{}) error
	WriteJSON(v interface{}) error
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// wsClient is the sink of a websocket connection. Events are queued on a buffered
// channel drained by the writer pump; the send channel is never closed so a late
// Deliver cannot panic.
type wsClient struct {
	conn      wsConn
	send      chan dto.Event
	closed    chan struct{}
	once      sync.Once
	keepAlive time.Duration
	logger    zerolog.Logger
}

func newWSClient(conn wsConn, bufferSize int, keepAlive time.Duration, logger zerolog.Logger) *wsClient {
	if bufferSize <= 0 {
		bufferSize = 32
	}
	if keepAlive <= 0 {
		keepAlive = defaultKeepAlive
	}
	return &wsClient{
		conn:      conn,
		send:      make(chan dto.Event, bufferSize),
		closed:    make(chan struct{}),
		keepAlive: keepAlive,
		logger:    logger,
	}
}

func (c *wsClient) Deliver(event dto.Event) error {
	select {
	case <-c.closed:
		return ErrSinkClosed
	default:
	}

	select {
	case c.send <- event:
		return nil
	default:
		return ErrSinkFull
	}
}

func (c *wsClient) reader(handle func(dto.ClientFrame)) {
	defer c.close()

	for {
		var frame dto.ClientFrame
		if err := c.conn.ReadJSON(&frame); err != nil {
			c.logger.Debug().Err(err).Msg("realtime read loop ended")
			return
		}

		select {
		case <-c.closed:
			return
		default:
		}

		handle(frame)
	}
}

func (c *wsClient) writer() {
	defer c.close()

	ticker := time.NewTicker(c.keepAlive)
	defer ticker.Stop()

	for {
		select {
		case event := <-c.send:
			if err := c.conn.WriteJSON(event); err != nil {
				c.logger.Debug().Err(err).Msg("realtime write loop terminated")
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteMessage(websocket.PingMessage, []byte("keepalive")); err != nil {
				c.logger.Debug().Err(err).Msg("realtime ping failed")
				return
			}
		case <-c.closed:
			return
		}
	}
}

func (c *wsClient) close() {
	c.once.Do(func() {
		close(c.closed)
		_ = c.conn.Close()
	})
}
