package statesync

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// HubConfig tunes the WebSocket hub.
type HubConfig struct {
	ReadBufferSize  int
	WriteBufferSize int
	// SendQueue bounds each client's outgoing buffer. A client that falls
	// further behind is disconnected.
	SendQueue    int
	PingInterval time.Duration
	// AllowedOrigins lists the browser origins ("https://play.example.com")
	// that may open sockets. Empty means same-origin only and "*" allows any.
	// Requests without an Origin header are not browsers and always pass.
	AllowedOrigins []string
	Logger         *zap.Logger
}

// Client is one player's socket on one match.
type Client struct {
	conn     *websocket.Conn
	send     chan []byte
	matchID  string
	playerID string
	once     sync.Once
}

// MatchID returns the match the client follows.
func (c *Client) MatchID() string { return c.matchID }

// PlayerID returns the authenticated player behind the socket.
func (c *Client) PlayerID() string { return c.playerID }

func (c *Client) close() {
	c.once.Do(func() { close(c.send) })
}

// Hub tracks sockets per match and implements Publisher for them. Messages
// that are not public are only delivered to their addressee.
type Hub struct {
	mu       sync.RWMutex
	clients  map[string]map[*Client]struct{}
	upgrader websocket.Upgrader
	queue    int
	ping     time.Duration
	logger   *zap.Logger
}

func NewHub(cfg HubConfig) *Hub {
	if cfg.SendQueue <= 0 {
		cfg.SendQueue = 64
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 30 * time.Second
	}
	return &Hub{
		clients: make(map[string]map[*Client]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  cfg.ReadBufferSize,
			WriteBufferSize: cfg.WriteBufferSize,
			CheckOrigin:     originChecker(cfg.AllowedOrigins),
		},
		queue:  cfg.SendQueue,
		ping:   cfg.PingInterval,
		logger: cfg.Logger,
	}
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.clients[c.matchID]
	if !ok {
		set = make(map[*Client]struct{})
		h.clients[c.matchID] = set
	}
	set[c] = struct{}{}
	if h.logger != nil {
		h.logger.Debug("client registered", zap.String("match_id", c.matchID), zap.String("player_id", c.playerID))
	}
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.clients[c.matchID]
	if !ok {
		return
	}
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(h.clients, c.matchID)
	}
	c.close()
	if h.logger != nil {
		h.logger.Debug("client unregistered", zap.String("match_id", c.matchID), zap.String("player_id", c.playerID))
	}
}

// Connections returns how many sockets follow matchID.
func (h *Hub) Connections(matchID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[matchID])
}

func (h *Hub) PublishMatch(_ context.Context, matchID string, msg Message) error {
	if !msg.Public() {
		return nil
	}
	return h.deliver(matchID, "", msg)
}

func (h *Hub) PublishPlayer(_ context.Context, matchID, playerID string, msg Message) error {
	return h.deliver(matchID, playerID, msg)
}

func (h *Hub) deliver(matchID, playerID string, msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", msg.Type, err)
	}
	h.mu.RLock()
	var slow []*Client
	for c := range h.clients[matchID] {
		if playerID != "" && c.playerID != playerID {
			continue
		}
		select {
		case c.send <- data:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		if h.logger != nil {
			h.logger.Warn("dropping slow client", zap.String("match_id", matchID), zap.String("player_id", c.playerID))
		}
		h.unregister(c)
	}
	return nil
}

// Send queues msg for c alone. It reports false if c is not keeping up.
func (h *Hub) Send(c *Client, msg Message) bool {
	data, err := json.Marshal(msg)
	if err != nil {
		return false
	}
	h.mu.RLock()
	_, live := h.clients[c.matchID][c]
	if live {
		select {
		case c.send <- data:
		default:
			live = false
		}
	}
	h.mu.RUnlock()
	return live
}

// Session describes one socket handed to Serve.
type Session struct {
	MatchID  string
	PlayerID string
	// Hello is queued as soon as the socket is registered.
	Hello []Message
	// OnMessage receives every inbound frame.
	OnMessage func(c *Client, data []byte)
}

// Serve upgrades the request and pumps the socket until it closes.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, sess Session) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("upgrade: %w", err)
	}
	c := &Client{
		conn:     conn,
		send:     make(chan []byte, h.queue),
		matchID:  sess.MatchID,
		playerID: sess.PlayerID,
	}
	h.register(c)
	for _, msg := range sess.Hello {
		h.Send(c, msg)
	}

	onMessage := sess.OnMessage
	if onMessage == nil {
		onMessage = func(*Client, []byte) {}
	}
	go h.writePump(c)
	h.readPump(c, onMessage)
	return nil
}

func (h *Hub) readPump(c *Client, onMessage func(*Client, []byte)) {
	defer func() {
		h.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(2 * h.ping))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(2 * h.ping))
	})
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) && h.logger != nil {
				h.logger.Debug("socket read failed", zap.String("player_id", c.playerID), zap.Error(err))
			}
			return
		}
		onMessage(c, data)
	}
}

func (h *Hub) writePump(c *Client) {
	ticker := time.NewTicker(h.ping)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// originChecker returns nil for an empty list so the upgrader applies its
// same-origin check.
func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[strings.ToLower(strings.TrimRight(o, "/"))] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[strings.ToLower(origin)]
		return ok
	}
}
