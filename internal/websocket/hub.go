package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/sirupsen/logrus"

	"github.com/makeasinger/compute-worker/internal/model"
)

// Wildcard subscribes a client to every response the hub sees
const Wildcard = "*"

const (
	sendBufferSize = 256
	pingInterval   = 30 * time.Second
)

// Client represents a WebSocket client. Send is never closed; the hub
// closes the client's done channel when it stops serving it.
type Client struct {
	TaskID string
	Conn   *websocket.Conn
	Send   chan []byte

	done chan struct{}
	once sync.Once
}

// NewClient creates a client subscribed to taskID
func NewClient(taskID string, conn *websocket.Conn) *Client {
	return &Client{
		TaskID: taskID,
		Conn:   conn,
		Send:   make(chan []byte, sendBufferSize),
		done:   make(chan struct{}),
	}
}

// Done is closed once the hub has dropped the client
func (c *Client) Done() <-chan struct{} {
	return c.done
}

func (c *Client) close() {
	c.once.Do(func() { close(c.done) })
}

// reply queues a message from the connection's own reader. It never blocks
// and is a no-op once the hub has dropped the client.
func (c *Client) reply(data []byte) {
	select {
	case <-c.done:
		return
	default:
	}
	select {
	case c.Send <- data:
	case <-c.done:
	default:
	}
}

// Hub fans executor responses out to WebSocket subscribers. It implements
// executor.Sink, so the shared executor reports straight into it.
type Hub struct {
	// Clients grouped by task ID
	clients map[string]map[*Client]bool

	// Register requests
	register chan *Client

	// Unregister requests
	unregister chan *Client

	// Broadcast messages to task subscribers
	broadcast chan *BroadcastMessage

	done chan struct{}
	log  *logrus.Entry
}

// BroadcastMessage represents a message to broadcast
type BroadcastMessage struct {
	TaskID  string
	Message []byte
}

// controlMessage is the client keep-alive exchange
type controlMessage struct {
	Type string `json:"type"`
}

// NewHub creates a new Hub
func NewHub(logger *logrus.Entry) *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *BroadcastMessage, sendBufferSize),
		done:       make(chan struct{}),
		log:        logger.WithField("component", "hub"),
	}
}

// Run starts the hub's main loop and returns when ctx is cancelled
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			for _, clients := range h.clients {
				for client := range clients {
					client.close()
				}
			}
			h.clients = make(map[string]map[*Client]bool)
			return

		case client := <-h.register:
			if h.clients[client.TaskID] == nil {
				h.clients[client.TaskID] = make(map[*Client]bool)
			}
			h.clients[client.TaskID][client] = true
			h.log.WithField("task_id", client.TaskID).Debug("client registered")

		case client := <-h.unregister:
			h.remove(client)
			h.log.WithField("task_id", client.TaskID).Debug("client unregistered")

		case msg := <-h.broadcast:
			h.deliver(msg.TaskID, msg.Message)
			if msg.TaskID != Wildcard {
				h.deliver(Wildcard, msg.Message)
			}
		}
	}
}

func (h *Hub) deliver(taskID string, data []byte) {
	for client := range h.clients[taskID] {
		select {
		case client.Send <- data:
		default:
			h.log.WithField("task_id", taskID).Warn("dropping slow client")
			h.remove(client)
		}
	}
}

func (h *Hub) remove(client *Client) {
	clients, ok := h.clients[client.TaskID]
	if !ok {
		return
	}
	if _, ok := clients[client]; !ok {
		return
	}
	delete(clients, client)
	client.close()
	if len(clients) == 0 {
		delete(h.clients, client.TaskID)
	}
}

// Register adds a new client
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
		client.close()
	}
}

// Unregister removes a client
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Emit broadcasts a response to the subscribers of its id and to wildcard
// subscribers.
func (h *Hub) Emit(resp model.Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		h.log.WithError(err).WithField("task_id", resp.ID).Error("failed to marshal response")
		return
	}

	select {
	case h.broadcast <- &BroadcastMessage{TaskID: resp.ID, Message: data}:
	case <-h.done:
	}
}

// HandleConnection subscribes a WebSocket connection to taskID
func (h *Hub) HandleConnection(c *websocket.Conn, taskID string) {
	client := NewClient(taskID, c)

	h.Register(client)

	written := make(chan struct{})
	go func() {
		defer close(written)
		writePump(c, client.Send, client.Done())
	}()
	defer func() {
		h.Unregister(client)
		<-written
	}()

	// Reader loop
	for {
		_, message, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.log.WithError(err).Warn("websocket error")
			}
			break
		}

		if reply, ok := pong(message); ok {
			client.reply(reply)
		}
	}
}

// writePump drains send onto the connection and keeps it alive with pings.
// It returns once done is closed or a write fails.
func writePump(c *websocket.Conn, send <-chan []byte, done <-chan struct{}) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			_ = c.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case message := <-send:
			if err := c.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			// Send ping for keep-alive
			if err := c.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// pong answers a {"type":"ping"} control message
func pong(message []byte) ([]byte, bool) {
	var msg controlMessage
	if err := json.Unmarshal(message, &msg); err != nil || msg.Type != "ping" {
		return nil, false
	}
	data, _ := json.Marshal(controlMessage{Type: "pong"})
	return data, true
}
