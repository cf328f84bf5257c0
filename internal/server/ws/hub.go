package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/proxybid/auctionengine/internal/domain"
)

const (
	// writeWait is the maximum time to wait for a write to complete.
	writeWait = 10 * time.Second

	// pongWait is the maximum time to wait for a pong from the client.
	pongWait = 60 * time.Second

	// pingPeriod sends pings at this interval. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// maxMessageSize is the maximum size of an incoming message.
	maxMessageSize = 4096

	// sendBufferSize is the channel buffer for outgoing messages per client.
	sendBufferSize = 256
)

// upgrader configures the WebSocket upgrade parameters.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Allow all origins. In production, restrict this to known origins.
		return true
	},
}

// client represents a single WebSocket connection.
type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	subs map[string]bool // subscribed topics
	mu   sync.RWMutex
}

// controlMsg is the JSON message a client sends to change its topic
// subscriptions after connecting.
type controlMsg struct {
	Action string   `json:"action"` // "subscribe" or "unsubscribe"
	Topics []string `json:"topics"`
}

// Hub manages a set of connected WebSocket clients and fans out events
// published on the signal bus to clients subscribed to the matching topic.
// Topics are created on demand: the first client to subscribe to
// "auction:{id}" causes the hub to open a Redis subscription for it; the
// last client to unsubscribe (or disconnect) tears it back down.
type Hub struct {
	clients map[*client]bool

	topicRefs map[string]int
	topicStop map[string]context.CancelFunc

	broadcast  chan broadcastMsg
	register   chan *client
	unregister chan *client
	subReq     chan topicReq
	unsubReq   chan topicReq

	bus    domain.SignalBus
	mu     sync.RWMutex
	logger *slog.Logger
}

type topicReq struct {
	client *client
	topics []string
}

// broadcastMsg carries a message along with its source topic so the hub can
// route it only to clients subscribed to that topic.
type broadcastMsg struct {
	topic string
	data  []byte
}

// NewHub creates a new WebSocket hub that bridges a domain.SignalBus to
// connected WebSocket clients.
func NewHub(bus domain.SignalBus, logger *slog.Logger) *Hub {
	return &Hub{
		clients:    make(map[*client]bool),
		topicRefs:  make(map[string]int),
		topicStop:  make(map[string]context.CancelFunc),
		broadcast:  make(chan broadcastMsg, 256),
		register:   make(chan *client),
		unregister: make(chan *client),
		subReq:     make(chan topicReq),
		unsubReq:   make(chan topicReq),
		bus:        bus,
		logger:     logger,
	}
}

// Run starts the hub's main event loop. It should be called in a goroutine.
// It handles client registration, unregistration, topic subscription, and
// message broadcasting. The loop exits when the provided context is
// cancelled.
func (h *Hub) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			for topic, stop := range h.topicStop {
				stop()
				delete(h.topicStop, topic)
			}
			h.topicRefs = make(map[string]int)
			h.mu.Unlock()
			return ctx.Err()

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			h.mu.Unlock()
			h.logger.Info("ws: client connected", slog.Int("total_clients", h.clientCount()))

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
				for topic := range c.subs {
					h.releaseTopicLocked(ctx, topic)
				}
			}
			h.mu.Unlock()
			h.logger.Info("ws: client disconnected", slog.Int("total_clients", h.clientCount()))

		case req := <-h.subReq:
			h.mu.Lock()
			for _, topic := range req.topics {
				req.client.addSub(topic)
				h.acquireTopicLocked(ctx, topic)
			}
			h.mu.Unlock()

		case req := <-h.unsubReq:
			h.mu.Lock()
			for _, topic := range req.topics {
				req.client.removeSub(topic)
				h.releaseTopicLocked(ctx, topic)
			}
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.mu.RLock()
			for c := range h.clients {
				if c.isSubscribed(msg.topic) {
					select {
					case c.send <- msg.data:
					default:
						h.logger.Warn("ws: dropping message for slow client", slog.String("topic", msg.topic))
					}
				}
			}
			h.mu.RUnlock()
		}
	}
}

// acquireTopicLocked increments the reference count for topic and, on the
// first reference, starts a background subscription bridging the signal bus
// to the hub's broadcast channel. Callers must hold h.mu.
func (h *Hub) acquireTopicLocked(ctx context.Context, topic string) {
	h.topicRefs[topic]++
	if h.topicRefs[topic] > 1 {
		return
	}
	topicCtx, cancel := context.WithCancel(ctx)
	h.topicStop[topic] = cancel
	go h.subscribeToTopic(topicCtx, topic)
}

// releaseTopicLocked decrements the reference count for topic and, when it
// reaches zero, tears down its background subscription. Callers must hold
// h.mu.
func (h *Hub) releaseTopicLocked(ctx context.Context, topic string) {
	if h.topicRefs[topic] == 0 {
		return
	}
	h.topicRefs[topic]--
	if h.topicRefs[topic] > 0 {
		return
	}
	delete(h.topicRefs, topic)
	if stop, ok := h.topicStop[topic]; ok {
		stop()
		delete(h.topicStop, topic)
	}
}

// subscribeToTopic subscribes to a single signal bus channel and forwards
// received messages to the hub's broadcast channel until ctx is cancelled.
func (h *Hub) subscribeToTopic(ctx context.Context, topic string) {
	msgCh, err := h.bus.Subscribe(ctx, topic)
	if err != nil {
		h.logger.Error("ws: failed to subscribe to topic",
			slog.String("topic", topic),
			slog.String("error", err.Error()),
		)
		return
	}

	h.logger.Info("ws: subscribed to topic", slog.String("topic", topic))

	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-msgCh:
			if !ok {
				return
			}
			select {
			case h.broadcast <- broadcastMsg{topic: topic, data: data}:
			case <-ctx.Done():
				return
			}
		}
	}
}

// HandleWS upgrades an HTTP request to a WebSocket connection and registers
// the client with the hub. Clients start subscribed only to domain.GlobalTopic
// and must send a subscribe control frame to follow specific auctions.
// GET /ws
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("ws: upgrade failed", slog.String("error", err.Error()))
		return
	}

	c := &client{
		hub:  h,
		conn: conn,
		send: make(chan []byte, sendBufferSize),
		subs: make(map[string]bool),
	}

	h.register <- c
	h.subReq <- topicReq{client: c, topics: []string{domain.GlobalTopic}}

	go c.writePump()
	go c.readPump()
}

// clientCount returns the number of currently connected clients.
func (h *Hub) clientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// readPump reads messages from the WebSocket connection. It handles
// subscribe/unsubscribe control frames from the client.
func (c *client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("ws: unexpected close error", slog.String("error", err.Error()))
			}
			return
		}

		var msg controlMsg
		if jsonErr := json.Unmarshal(message, &msg); jsonErr != nil || len(msg.Topics) == 0 {
			continue
		}

		switch strings.ToLower(msg.Action) {
		case "subscribe":
			c.hub.subReq <- topicReq{client: c, topics: msg.Topics}
		case "unsubscribe":
			c.hub.unsubReq <- topicReq{client: c, topics: msg.Topics}
		}
	}
}

func (c *client) addSub(topic string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subs[topic] = true
}

func (c *client) removeSub(topic string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.subs, topic)
}

// isSubscribed checks whether the client is subscribed to the given topic.
func (c *client) isSubscribed(topic string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.subs[topic]
}

// writePump pumps messages from the hub to the WebSocket connection as JSON
// text frames, plus periodic ping frames for keepalive.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
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

// Publish marshals an event envelope and publishes it on the signal bus under
// topic, for delivery to WebSocket clients subscribed there.
func (h *Hub) Publish(ctx context.Context, topic string, envelope domain.Envelope) error {
	data, err := json.Marshal(envelope)
	if err != nil {
		return err
	}
	return h.bus.Publish(ctx, topic, data)
}
