// Package websocket pushes session events (score updates, task status) to
// browsers watching a rehearsal.
package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"iep-rehearsal/pkg/taskmanager"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	TopicTasks = "tasks"

	MessageTaskUpdate = "task_update"

	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	maxMessageSize = 512
	sendBuffer     = 64
)

// Message is the envelope written to clients.
type Message struct {
	Type      string `json:"type"`
	Topic     string `json:"topic"`
	SessionID string `json:"sessionId"`
	Payload   any    `json:"payload"`
}

// Client is one websocket connection bound to a session.
type Client struct {
	ID        uuid.UUID
	SessionID string
	conn      *websocket.Conn
	manager   *Manager
	send      chan []byte

	mu     sync.RWMutex
	topics map[string]bool
}

// Manager tracks connections per session and fans messages out to them.
type Manager struct {
	upgrader   websocket.Upgrader
	clients    map[uuid.UUID]*Client
	register   chan *Client
	unregister chan *Client
	outbound   chan Message
	done       chan struct{}
	mu         sync.RWMutex
	logger     *zap.Logger
}

// NewManager builds a manager. allowedOrigins empty or containing "*"
// accepts any origin.
func NewManager(allowedOrigins []string, logger *zap.Logger) *Manager {
	m := &Manager{
		clients:    make(map[uuid.UUID]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		outbound:   make(chan Message, 256),
		done:       make(chan struct{}),
		logger:     logger.Named("WebSocketManager"),
	}
	m.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(allowedOrigins),
	}
	return m
}

func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[o] = true
	}
	if len(set) == 0 {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || set[origin]
	}
}

// Run processes registrations and messages until ctx ends, then closes
// every connection.
func (m *Manager) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(m.done)
			m.mu.Lock()
			for id, c := range m.clients {
				close(c.send)
				delete(m.clients, id)
			}
			m.mu.Unlock()
			m.logger.Info("WebSocket manager stopped")
			return

		case c := <-m.register:
			m.mu.Lock()
			m.clients[c.ID] = c
			m.mu.Unlock()
			m.logger.Debug("Client connected", zap.String("clientID", c.ID.String()), zap.String("sessionID", c.SessionID))

		case c := <-m.unregister:
			m.mu.Lock()
			if _, ok := m.clients[c.ID]; ok {
				close(c.send)
				delete(m.clients, c.ID)
				m.logger.Debug("Client disconnected", zap.String("clientID", c.ID.String()))
			}
			m.mu.Unlock()

		case msg := <-m.outbound:
			m.deliver(msg)
		}
	}
}

func (m *Manager) deliver(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		m.logger.Error("Failed to marshal message", zap.String("type", msg.Type), zap.Error(err))
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, c := range m.clients {
		if c.SessionID != msg.SessionID || !c.IsSubscribed(msg.Topic) {
			continue
		}
		select {
		case c.send <- data:
		default:
			m.logger.Warn("Client too slow, dropping connection", zap.String("clientID", id.String()))
			close(c.send)
			delete(m.clients, id)
		}
	}
}

// SendToSession queues a message for every client of sessionID. It drops
// the message when the queue is full.
func (m *Manager) SendToSession(sessionID, messageType, topic string, payload any) {
	select {
	case m.outbound <- Message{Type: messageType, Topic: topic, SessionID: sessionID, Payload: payload}:
	default:
		m.logger.Warn("Outbound queue full, message dropped", zap.String("sessionID", sessionID), zap.String("type", messageType))
	}
}

// NotifyTask forwards background task status to the owning session.
func (m *Manager) NotifyTask(ownerID string, task taskmanager.Snapshot) {
	m.SendToSession(ownerID, MessageTaskUpdate, TopicTasks, task)
}

// Clients returns the number of open connections.
func (m *Manager) Clients() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.clients)
}

// Serve upgrades the request and subscribes the connection to topics of
// sessionID. The caller has already checked that the session exists.
func (m *Manager) Serve(w http.ResponseWriter, r *http.Request, sessionID string, topics ...string) {
	conn, err := m.upgrader.Upgrade(w, r, nil)
	if err != nil {
		m.logger.Warn("Upgrade failed", zap.String("sessionID", sessionID), zap.Error(err))
		return
	}
	c := &Client{
		ID:        uuid.New(),
		SessionID: sessionID,
		conn:      conn,
		manager:   m,
		send:      make(chan []byte, sendBuffer),
		topics:    map[string]bool{TopicTasks: true},
	}
	for _, t := range topics {
		c.topics[t] = true
	}
	select {
	case m.register <- c:
	case <-m.done:
		_ = conn.Close()
		return
	}

	go c.writePump()
	go c.readPump()
}

// readPump handles subscribe/unsubscribe commands and pongs.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.manager.unregister <- c:
		case <-c.manager.done:
		}
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.manager.logger.Debug("Read error", zap.String("clientID", c.ID.String()), zap.Error(err))
			}
			return
		}

		var cmd struct {
			Action string `json:"action"`
			Topic  string `json:"topic"`
		}
		if err := json.Unmarshal(raw, &cmd); err != nil {
			c.manager.logger.Debug("Ignoring malformed command", zap.String("clientID", c.ID.String()), zap.Error(err))
			continue
		}
		switch cmd.Action {
		case "subscribe":
			c.Subscribe(cmd.Topic)
		case "unsubscribe":
			c.Unsubscribe(cmd.Topic)
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) Subscribe(topic string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.topics[topic] = true
}

func (c *Client) Unsubscribe(topic string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.topics, topic)
}

func (c *Client) IsSubscribed(topic string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.topics[topic]
}
