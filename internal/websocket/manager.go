package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/Tonic56/coinfolio/internal/models"
	"github.com/Tonic56/coinfolio/internal/session"
	"github.com/Tonic56/coinfolio/storage/redis"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
	sendBuffer = 64
)

type EventType string

const (
	EventScore   EventType = "score"
	EventSession EventType = "session"
)

type Event struct {
	Type EventType `json:"type"`
	Data any       `json:"data"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Client is one websocket connection. UserID is nil for anonymous readers.
type Client struct {
	Manager *Manager
	Conn    *websocket.Conn
	UserID  *uuid.UUID
	Send    chan []byte
}

// Manager fans score updates out to every connection and session prompts to
// the connections of the affected user.
type Manager struct {
	clients    map[*Client]struct{}
	mu         sync.RWMutex
	register   chan *Client
	unregister chan *Client
	messages   <-chan redis.Message
	done       chan struct{}
	log        *slog.Logger
}

func NewManager(log *slog.Logger, messages <-chan redis.Message) *Manager {
	return &Manager{
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		messages:   messages,
		done:       make(chan struct{}),
		log:        log,
	}
}

func (m *Manager) Run(ctx context.Context) {
	go m.listenToRedis(ctx)

	for {
		select {
		case <-ctx.Done():
			m.log.Info("websocket manager stopping")
			close(m.done)
			m.closeAll()
			return
		case client := <-m.register:
			m.registerClient(client)
		case client := <-m.unregister:
			m.unregisterClient(client)
		}
	}
}

// Serve upgrades the request and pumps messages until the peer goes away.
func (m *Manager) Serve(w http.ResponseWriter, r *http.Request, userID *uuid.UUID) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		m.log.Warn("websocket upgrade failed", "error", err)
		return
	}

	client := &Client{
		Manager: m,
		Conn:    conn,
		UserID:  userID,
		Send:    make(chan []byte, sendBuffer),
	}
	m.Register(client)

	go client.Writer()
	client.Reader()
}

func (m *Manager) Register(client *Client) {
	select {
	case m.register <- client:
	case <-m.done:
		close(client.Send)
	}
}

func (m *Manager) Unregister(client *Client) {
	select {
	case m.unregister <- client:
	case <-m.done:
	}
}

func (m *Manager) ClientCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.clients)
}

// NotifySession delivers a session transition to the user's connections.
func (m *Manager) NotifySession(st session.Status) {
	if st.Identity == nil {
		return
	}

	payload, err := json.Marshal(Event{Type: EventSession, Data: st})
	if err != nil {
		m.log.Error("failed to marshal session event", "error", err)
		return
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	for client := range m.clients {
		if client.UserID != nil && *client.UserID == st.Identity.UserID {
			m.deliver(client, payload)
		}
	}
}

func (m *Manager) Broadcast(update models.ScoreUpdate) {
	payload, err := json.Marshal(Event{Type: EventScore, Data: update})
	if err != nil {
		m.log.Error("failed to marshal score update", "error", err)
		return
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	for client := range m.clients {
		m.deliver(client, payload)
	}
}

func (m *Manager) listenToRedis(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-m.messages:
			if !ok {
				m.log.Warn("score subscription channel closed")
				return
			}

			var update models.ScoreUpdate
			if err := json.Unmarshal([]byte(msg.Payload), &update); err != nil {
				m.log.Error("failed to parse score update", "error", err, "payload", msg.Payload)
				continue
			}
			m.Broadcast(update)
		}
	}
}

// deliver must be called with m.mu held.
func (m *Manager) deliver(client *Client, payload []byte) {
	select {
	case client.Send <- payload:
	default:
		m.log.Warn("client send channel is full, dropping message", "userID", client.UserID)
	}
}

func (m *Manager) registerClient(client *Client) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.clients[client] = struct{}{}
	m.log.Debug("websocket client registered", "userID", client.UserID, "clients", len(m.clients))
}

func (m *Manager) unregisterClient(client *Client) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.clients[client]; ok {
		delete(m.clients, client)
		close(client.Send)
		m.log.Debug("websocket client unregistered", "userID", client.UserID)
	}
}

func (m *Manager) closeAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for client := range m.clients {
		delete(m.clients, client)
		close(client.Send)
	}
}

func (c *Client) Writer() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.Manager.log.Warn("failed to write message to client", "userID", c.UserID)
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) Reader() {
	defer func() {
		c.Manager.Unregister(c)
		c.Conn.Close()
	}()
	c.Conn.SetReadLimit(512)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error { c.Conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })

	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.Manager.log.Warn("unexpected close error", "userID", c.UserID, "error", err)
			}
			break
		}
	}
}
