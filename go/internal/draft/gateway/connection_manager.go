package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/countrydraft/go/internal/draft/draftrpc"
	"github.com/mcdev12/countrydraft/go/internal/draft/orchestrator"
	"github.com/mcdev12/countrydraft/go/internal/draft/session"
	"github.com/mcdev12/countrydraft/go/internal/models"
)

// SnapshotSource delivers the current snapshot of a session and every
// committed change after it.
type SnapshotSource interface {
	Subscribe(ctx context.Context, id uuid.UUID, fn session.Listener) (func(), error)
}

// BrokerSource is a SnapshotSource for processes that learn about commits
// from the event stream and load snapshots remotely.
type BrokerSource struct {
	Broker *session.Broker
	Load   session.LoadFunc
}

func (s BrokerSource) Subscribe(ctx context.Context, id uuid.UUID, fn session.Listener) (func(), error) {
	return s.Broker.Watch(ctx, id, s.Load, fn)
}

// ConnectionManager manages WebSocket connections for draft sessions
type ConnectionManager struct {
	draftConnections map[uuid.UUID]map[*Connection]bool
	mu               sync.RWMutex

	upgrader websocket.Upgrader
	config   ConnectionConfig
	source   SnapshotSource
	clock    clockwork.Clock
}

// Connection represents a WebSocket connection to a client
type Connection struct {
	ID      string
	UserID  string
	DraftID uuid.UUID
	Conn    *websocket.Conn
	Manager *ConnectionManager

	ConnectedAt time.Time

	send        chan []byte
	timer       *orchestrator.PickTimer
	unsubscribe func()

	mu     sync.Mutex
	closed bool
}

// ConnectionConfig holds configuration for WebSocket connections
type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	SendBuffer      int
	CheckOrigin     func(r *http.Request) bool
}

// DefaultConnectionConfig returns default WebSocket configuration
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  1024,
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		SendBuffer:      64,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}
}

// NewConnectionManager creates a new WebSocket connection manager
func NewConnectionManager(config ConnectionConfig, source SnapshotSource, clock clockwork.Clock) *ConnectionManager {
	return &ConnectionManager{
		draftConnections: make(map[uuid.UUID]map[*Connection]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config: config,
		source: source,
		clock:  clock,
	}
}

// UpgradeConnection upgrades an HTTP connection to WebSocket and starts
// pushing snapshots of draftID to it.
func (cm *ConnectionManager) UpgradeConnection(w http.ResponseWriter, r *http.Request, userID string, draftID uuid.UUID) error {
	conn, err := cm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("failed to upgrade connection: %w", err)
	}

	c := &Connection{
		ID:          uuid.New().String(),
		UserID:      userID,
		DraftID:     draftID,
		Conn:        conn,
		Manager:     cm,
		ConnectedAt: cm.clock.Now(),
		send:        make(chan []byte, cm.config.SendBuffer),
	}
	c.timer = orchestrator.NewPickTimer(cm.clock, c.onExpire)

	cm.registerConnection(c)
	go c.writePump()
	go c.readPump()

	// Subscribing after the pumps start lets the first snapshot flow at once.
	unsubscribe, err := cm.source.Subscribe(r.Context(), draftID, c.onSnapshot)
	if err != nil {
		log.Warn().
			Err(err).
			Str("connection_id", c.ID).
			Str("draft_id", draftID.String()).
			Msg("failed to subscribe connection to draft")
		c.close()
		return nil
	}
	c.setUnsubscribe(unsubscribe)

	log.Info().
		Str("connection_id", c.ID).
		Str("user_id", userID).
		Str("draft_id", draftID.String()).
		Msg("WebSocket connection established")
	return nil
}

func (cm *ConnectionManager) registerConnection(conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if cm.draftConnections[conn.DraftID] == nil {
		cm.draftConnections[conn.DraftID] = make(map[*Connection]bool)
	}
	cm.draftConnections[conn.DraftID][conn] = true

	log.Debug().
		Str("connection_id", conn.ID).
		Str("draft_id", conn.DraftID.String()).
		Int("total_connections", len(cm.draftConnections[conn.DraftID])).
		Msg("connection registered")
}

func (cm *ConnectionManager) unregisterConnection(conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	connections, exists := cm.draftConnections[conn.DraftID]
	if !exists || !connections[conn] {
		return
	}
	delete(connections, conn)
	if len(connections) == 0 {
		delete(cm.draftConnections, conn.DraftID)
	}

	log.Info().
		Str("connection_id", conn.ID).
		Str("user_id", conn.UserID).
		Str("draft_id", conn.DraftID.String()).
		Msg("connection unregistered")
}

// ConnectionStats summarizes active connections
type ConnectionStats struct {
	TotalConnections int            `json:"total_connections"`
	ActiveDrafts     int            `json:"active_drafts"`
	DraftConnections map[string]int `json:"draft_connections"`
}

// GetConnectionStats returns statistics about active connections
func (cm *ConnectionManager) GetConnectionStats() ConnectionStats {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	stats := ConnectionStats{
		ActiveDrafts:     len(cm.draftConnections),
		DraftConnections: make(map[string]int, len(cm.draftConnections)),
	}
	for draftID, connections := range cm.draftConnections {
		stats.TotalConnections += len(connections)
		stats.DraftConnections[draftID.String()] = len(connections)
	}
	return stats
}

// CloseAll tears down every connection.
func (cm *ConnectionManager) CloseAll() {
	cm.mu.RLock()
	var all []*Connection
	for _, connections := range cm.draftConnections {
		for c := range connections {
			all = append(all, c)
		}
	}
	cm.mu.RUnlock()

	for _, c := range all {
		c.close()
	}
}

func (c *Connection) onSnapshot(s *models.DraftSession) {
	c.timer.Observe(s)

	msg := Message{
		Type:      MessageSnapshot,
		DraftID:   c.DraftID,
		Timestamp: c.Manager.clock.Now().UTC(),
		State:     draftrpc.NewDraftState(s),
	}
	if deadline, ok := c.timer.Deadline(); ok {
		d := deadline.UTC()
		msg.Deadline = &d
	}
	c.enqueue(msg)
}

func (c *Connection) onExpire(draftID uuid.UUID, pickIndex int) {
	c.enqueue(Message{
		Type:      MessageTurnExpired,
		DraftID:   draftID,
		Timestamp: c.Manager.clock.Now().UTC(),
		PickIndex: &pickIndex,
	})
}

// enqueue hands msg to the write pump. A client that cannot keep up is
// disconnected rather than allowed to stall its subscription.
func (c *Connection) enqueue(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Error().Err(err).Str("connection_id", c.ID).Msg("failed to marshal message")
		return
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	select {
	case c.send <- data:
		c.mu.Unlock()
	default:
		c.mu.Unlock()
		log.Warn().
			Str("connection_id", c.ID).
			Str("user_id", c.UserID).
			Msg("connection send buffer full, closing connection")
		c.close()
	}
}

func (c *Connection) setUnsubscribe(fn func()) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		fn()
		return
	}
	c.unsubscribe = fn
	c.mu.Unlock()
}

// close stops the connection's timer and subscription exactly once.
func (c *Connection) close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	unsubscribe := c.unsubscribe
	c.mu.Unlock()

	c.timer.Stop()
	if unsubscribe != nil {
		unsubscribe()
	}
	c.Manager.unregisterConnection(c)
}

func (c *Connection) writePump() {
	ticker := time.NewTicker(c.Manager.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
		c.close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to write message to WebSocket")
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Debug().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to send ping")
				return
			}
		}
	}
}

// readPump keeps the read deadline fresh and notices when the client goes
// away. Clients submit picks through the draft service, not this socket.
func (c *Connection) readPump() {
	defer c.close()

	c.Conn.SetReadLimit(c.Manager.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
		return nil
	})

	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("unexpected WebSocket close error")
			}
			return
		}
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	}
}
