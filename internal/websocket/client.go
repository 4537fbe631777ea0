package websocket

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096

	// maxSubscriptions caps how many players one dashboard may watch
	maxSubscriptions = 16
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The dashboard may be served from another origin during development
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Client is one dashboard connection
type Client struct {
	id     string
	hub    *Hub
	conn   *websocket.Conn
	logger *slog.Logger

	mu     sync.Mutex
	send   chan []byte
	closed bool

	// subs is owned by the read goroutine
	subs map[string]struct{}
}

// ClientMessage is a frame sent by a dashboard. An unsubscribe without a
// player ref drops every subscription of the connection.
type ClientMessage struct {
	Type      string `json:"type"`
	PlayerRef string `json:"player_ref,omitempty"`
}

// NewClient creates a client for conn. It is not attached to hub until
// registered.
func NewClient(hub *Hub, conn *websocket.Conn, logger *slog.Logger) *Client {
	id := uuid.NewString()
	return &Client{
		id:     id,
		hub:    hub,
		conn:   conn,
		logger: logger.With("client_id", id),
		send:   make(chan []byte, 256),
		subs:   make(map[string]struct{}),
	}
}

// deliver queues an encoded frame. It reports false when the connection is
// closed or its buffer is full.
func (c *Client) deliver(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// shutdown closes the outbound queue once; the write pump then sends a
// close frame
func (c *Client) shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (c *Client) reply(msg Message) {
	msg.Timestamp = time.Now()
	data, err := json.Marshal(msg)
	if err != nil {
		c.logger.Error("failed to marshal reply", "type", msg.Type, "error", err)
		return
	}
	if !c.deliver(data) {
		c.logger.Debug("reply dropped", "type", msg.Type)
	}
}

func (c *Client) replyError(text string) {
	c.reply(Message{Type: MessageTypeError, Data: map[string]string{"error": text}})
}

// readPump reads dashboard frames until the connection fails
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn("websocket read failed", "error", err)
			}
			return
		}

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.replyError("invalid message format")
			continue
		}
		c.handle(msg)
	}
}

func (c *Client) handle(msg ClientMessage) {
	switch msg.Type {
	case MessageTypeSubscribe:
		c.watch(msg.PlayerRef)
	case MessageTypeUnsubscribe:
		c.unwatch(msg.PlayerRef)
	case MessageTypePing:
		c.reply(Message{Type: MessageTypePong})
	default:
		c.logger.Debug("unknown message type", "type", msg.Type)
		c.replyError("unknown message type " + msg.Type)
	}
}

// watch subscribes to ref's profile updates. Unknown players are refused;
// the current profile, when loaded, follows the ack.
func (c *Client) watch(ref string) {
	switch {
	case ref == "":
		c.replyError("player_ref required for subscribe")
		return
	case !c.hub.knownPlayer(ref):
		c.replyError("unknown player " + ref)
		return
	}
	if _, ok := c.subs[ref]; !ok && len(c.subs) >= maxSubscriptions {
		c.replyError("too many subscriptions")
		return
	}
	if !c.hub.Subscribe(c, ref) {
		return
	}
	c.subs[ref] = struct{}{}
	c.reply(Message{Type: MessageTypeSubscribed, PlayerRef: ref, Data: map[string]string{"status": "ok"}})

	if p, ok := c.hub.currentProfile(ref); ok {
		c.reply(Message{Type: MessageTypeProfileUpdate, PlayerRef: ref, Data: p})
	}
}

func (c *Client) unwatch(ref string) {
	refs := []string{ref}
	if ref == "" {
		refs = refs[:0]
		for r := range c.subs {
			refs = append(refs, r)
		}
	} else if _, ok := c.subs[ref]; !ok {
		c.replyError("not subscribed to " + ref)
		return
	}
	for _, r := range refs {
		if !c.hub.Unsubscribe(c, r) {
			return
		}
		delete(c.subs, r)
		c.reply(Message{Type: MessageTypeUnsubscribed, PlayerRef: r, Data: map[string]string{"status": "ok"}})
	}
}

// writePump writes queued frames and keeps the connection alive with pings
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.logger.Debug("websocket write failed", "error", err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ServeWs upgrades a dashboard request and attaches it to hub
func ServeWs(hub *Hub, logger *slog.Logger, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("websocket upgrade failed", "error", err)
		return
	}

	client := NewClient(hub, conn, logger)
	hub.Register(client)

	go client.writePump()
	go client.readPump()

	client.logger.Debug("dashboard connected")
}
