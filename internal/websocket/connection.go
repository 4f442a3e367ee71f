// Package websocket carries playback snapshots to browsers and transport
// commands back.
package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"lessoncast/internal/config"
	"lessoncast/pkg/interfaces"
)

// Config tunes connection heartbeats and write buffering.
type Config struct {
	PingInterval time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	BufferSize   int
}

// DefaultConfig pings every 30s, drops silent peers after 60s and buffers
// 100 outgoing frames.
func DefaultConfig() Config {
	return Config{
		PingInterval: 30 * time.Second,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 5 * time.Second,
		BufferSize:   100,
	}
}

// ConfigFrom converts the runtime websocket section.
func ConfigFrom(c *config.WebSocketConfig) Config {
	if c == nil {
		return DefaultConfig()
	}
	return Config{
		PingInterval: c.PingInterval,
		ReadTimeout:  c.ReadTimeout,
		WriteTimeout: c.WriteTimeout,
		BufferSize:   c.BufferSize,
	}.withDefaults()
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.PingInterval <= 0 {
		c.PingInterval = def.PingInterval
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = def.ReadTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = def.WriteTimeout
	}
	if c.BufferSize <= 0 {
		c.BufferSize = def.BufferSize
	}
	return c
}

// Connection implements interfaces.Connection. All frames go through one
// writer goroutine; gorilla connections allow a single concurrent writer.
type Connection struct {
	conn          *websocket.Conn
	cfg           Config
	writeCh       chan []byte
	userID        string
	role          string
	sessionID     string
	authenticated bool
	ctx           context.Context
	cancel        context.CancelFunc
	closeOnce     sync.Once
	drain         chan struct{}
	drainOnce     sync.Once
	mu            sync.RWMutex
}

var _ interfaces.Connection = (*Connection)(nil)

// NewConnection wraps conn and starts its writer.
func NewConnection(conn *websocket.Conn, cfg Config) *Connection {
	cfg = cfg.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	c := &Connection{
		conn:    conn,
		cfg:     cfg,
		writeCh: make(chan []byte, cfg.BufferSize),
		ctx:     ctx,
		cancel:  cancel,
		drain:   make(chan struct{}),
	}
	go c.writeLoop()
	return c
}

func (c *Connection) writeLoop() {
	// A failed write leaves the socket unusable.
	defer c.cancel()

	for {
		select {
		case data := <-c.writeCh:
			if err := c.write(data); err != nil {
				return
			}
		case <-c.drain:
			c.flush()
			return
		case <-c.ctx.Done():
			return
		}
	}
}

func (c *Connection) write(data []byte) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout)); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// flush writes whatever is queued, says goodbye and closes.
func (c *Connection) flush() {
	defer c.Close()
	for {
		select {
		case data := <-c.writeCh:
			if err := c.write(data); err != nil {
				return
			}
		default:
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
			_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(c.cfg.WriteTimeout))
			return
		}
	}
}

// CloseAfterFlush closes the connection once frames already queued have
// been written.
func (c *Connection) CloseAfterFlush() {
	c.drainOnce.Do(func() { close(c.drain) })
}

// WriteJSON queues v for the writer, waiting at most the write timeout for
// buffer space.
func (c *Connection) WriteJSON(v interface{}) error {
	select {
	case <-c.ctx.Done():
		return ErrConnectionClosed
	default:
	}

	data, err := json.Marshal(v)
	if err != nil {
		return ErrInvalidJSON
	}

	timer := time.NewTimer(c.cfg.WriteTimeout)
	defer timer.Stop()
	select {
	case c.writeCh <- data:
		return nil
	case <-timer.C:
		return ErrWriteTimeout
	case <-c.ctx.Done():
		return ErrConnectionClosed
	}
}

// Close stops the writer and closes the socket. Safe to call repeatedly.
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		if c.conn != nil {
			err = c.conn.Close()
		}
	})
	return err
}

// Done is closed once the connection can no longer write.
func (c *Connection) Done() <-chan struct{} {
	return c.ctx.Done()
}

func (c *Connection) SetCredentials(userID, role, sessionID string) error {
	if role != interfaces.RoleController && role != interfaces.RoleViewer {
		return ErrInvalidRole
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.userID = userID
	c.role = role
	c.sessionID = sessionID
	c.authenticated = true
	return nil
}

func (c *Connection) IsAuthenticated() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.authenticated
}

func (c *Connection) GetUserID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.userID
}

func (c *Connection) GetRole() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.role
}

func (c *Connection) GetSessionID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sessionID
}
