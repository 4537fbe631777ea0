package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/player-console/internal/domain"
	"github.com/player-console/internal/notify"
)

// Message types
const (
	MessageTypeNotification  = "notification"
	MessageTypeProfileUpdate = "profile_update"
	MessageTypeSubscribe     = "subscribe"
	MessageTypeSubscribed    = "subscribed"
	MessageTypeUnsubscribe   = "unsubscribe"
	MessageTypeUnsubscribed  = "unsubscribed"
	MessageTypePing          = "ping"
	MessageTypePong          = "pong"
	MessageTypeError         = "error"
)

// Message is one frame pushed to dashboards
type Message struct {
	Type      string    `json:"type"`
	PlayerRef string    `json:"player_ref,omitempty"`
	Data      any       `json:"data,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// PlayerSource resolves the players dashboards may watch
type PlayerSource interface {
	// KnownPlayer reports whether ref names a player of the session
	KnownPlayer(ref string) bool
	// CurrentProfile returns the loaded profile of ref, if any
	CurrentProfile(ref string) (domain.PlayerProfile, bool)
}

// Hub fans notifications out to every dashboard and profile updates to the
// dashboards watching that player
type Hub struct {
	// Clients by subscribed player ref
	clients map[string]map[*Client]bool

	// All connected clients
	allClients map[*Client]bool

	register    chan *Client
	unregister  chan *Client
	broadcast   chan *Message
	subscribe   chan *subscriptionRequest
	unsubscribe chan *subscriptionRequest

	players PlayerSource

	mu     sync.RWMutex
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

type subscriptionRequest struct {
	client    *Client
	playerRef string
	// done receives whether the client was still connected
	done chan bool
}

// NewHub creates a hub. It does nothing until Run.
func NewHub(logger *slog.Logger) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		clients:     make(map[string]map[*Client]bool),
		allClients:  make(map[*Client]bool),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		broadcast:   make(chan *Message, 256),
		subscribe:   make(chan *subscriptionRequest, 64),
		unsubscribe: make(chan *subscriptionRequest, 64),
		logger:      logger,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Run is the hub's main loop
func (h *Hub) Run() {
	h.logger.Info("websocket hub started")
	for {
		select {
		case <-h.ctx.Done():
			h.logger.Info("websocket hub stopping")
			return

		case client := <-h.register:
			h.mu.Lock()
			h.allClients[client] = true
			h.mu.Unlock()
			h.logger.Debug("client registered", "client_id", client.id)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.allClients[client]; ok {
				delete(h.allClients, client)
				for ref, clients := range h.clients {
					delete(clients, client)
					if len(clients) == 0 {
						delete(h.clients, ref)
					}
				}
				client.shutdown()
			}
			h.mu.Unlock()
			h.logger.Debug("client unregistered", "client_id", client.id)

		case req := <-h.subscribe:
			h.mu.Lock()
			connected := h.allClients[req.client]
			if connected {
				if _, ok := h.clients[req.playerRef]; !ok {
					h.clients[req.playerRef] = make(map[*Client]bool)
				}
				h.clients[req.playerRef][req.client] = true
			}
			h.mu.Unlock()
			req.done <- connected
			h.logger.Debug("client subscribed", "client_id", req.client.id, "player_ref", req.playerRef, "connected", connected)

		case req := <-h.unsubscribe:
			h.mu.Lock()
			connected := h.allClients[req.client]
			if clients, ok := h.clients[req.playerRef]; ok {
				delete(clients, req.client)
				if len(clients) == 0 {
					delete(h.clients, req.playerRef)
				}
			}
			h.mu.Unlock()
			req.done <- connected
			h.logger.Debug("client unsubscribed", "client_id", req.client.id, "player_ref", req.playerRef)

		case message := <-h.broadcast:
			h.broadcastMessage(message)
		}
	}
}

// Stop ends the main loop
func (h *Hub) Stop() {
	h.cancel()
}

// broadcastMessage delivers to a player's subscribers, or to everyone when
// the message names no player
func (h *Hub) broadcastMessage(message *Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	data, err := json.Marshal(message)
	if err != nil {
		h.logger.Error("failed to marshal message", "error", err)
		return
	}

	targets := h.allClients
	if message.PlayerRef != "" {
		targets = h.clients[message.PlayerRef]
	}
	for client := range targets {
		if !client.deliver(data) {
			h.logger.Warn("client buffer full, skipping", "client_id", client.id)
		}
	}
}

func (h *Hub) enqueue(message *Message) {
	select {
	case h.broadcast <- message:
	default:
		h.logger.Warn("broadcast channel full, dropping message", "type", message.Type)
	}
}

// Notify pushes an operator notification to every dashboard
func (h *Hub) Notify(kind notify.Kind, message string) {
	h.enqueue(&Message{
		Type:      MessageTypeNotification,
		Data:      notify.Notification{Kind: kind, Message: message},
		Timestamp: time.Now(),
	})
}

// BroadcastProfile pushes a profile to the dashboards watching playerRef
func (h *Hub) BroadcastProfile(playerRef string, profile domain.PlayerProfile) {
	h.enqueue(&Message{
		Type:      MessageTypeProfileUpdate,
		PlayerRef: playerRef,
		Data:      profile,
		Timestamp: time.Now(),
	})
}

// SetPlayers restricts subscriptions to the players src knows and lets new
// subscribers receive the current profile
func (h *Hub) SetPlayers(src PlayerSource) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.players = src
}

func (h *Hub) knownPlayer(ref string) bool {
	h.mu.RLock()
	src := h.players
	h.mu.RUnlock()
	return src == nil || src.KnownPlayer(ref)
}

func (h *Hub) currentProfile(ref string) (domain.PlayerProfile, bool) {
	h.mu.RLock()
	src := h.players
	h.mu.RUnlock()
	if src == nil {
		return domain.PlayerProfile{}, false
	}
	return src.CurrentProfile(ref)
}

// Register adds a client to the hub
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.ctx.Done():
		client.shutdown()
	}
}

// Unregister removes a client from the hub and closes its queue
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.ctx.Done():
		client.shutdown()
	}
}

// Subscribe adds a client to a player's profile updates. It reports false
// when the client is no longer connected.
func (h *Hub) Subscribe(client *Client, playerRef string) bool {
	return h.request(h.subscribe, client, playerRef)
}

// Unsubscribe removes a client from a player's profile updates
func (h *Hub) Unsubscribe(client *Client, playerRef string) bool {
	return h.request(h.unsubscribe, client, playerRef)
}

func (h *Hub) request(ch chan *subscriptionRequest, client *Client, playerRef string) bool {
	req := &subscriptionRequest{client: client, playerRef: playerRef, done: make(chan bool, 1)}
	select {
	case ch <- req:
	case <-h.ctx.Done():
		return false
	}
	select {
	case ok := <-req.done:
		return ok
	case <-h.ctx.Done():
		return false
	}
}

// SubscriberCount returns the number of clients watching playerRef
func (h *Hub) SubscriberCount(playerRef string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[playerRef])
}

// TotalConnections returns the number of connected clients
func (h *Hub) TotalConnections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.allClients)
}
