package services

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sketchstacker/server/internal/observability"
)

// WSMessage represents a WebSocket message
type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

// WSClient represents a connected WebSocket client
type WSClient struct {
	ID         string
	Topics     map[string]bool
	Conn       *websocket.Conn
	Send       chan []byte
	hub        *WebSocketHub
	mu         sync.Mutex
	closedOnce sync.Once

	sendMu     sync.Mutex
	sendClosed bool
}

// WebSocketHub fans gallery events out to connected viewers
type WebSocketHub struct {
	clients    map[*WSClient]bool
	topics     map[string]map[*WSClient]bool // topic -> clients
	register   chan *WSClient
	unregister chan *WSClient
	broadcast  chan *broadcastMsg
	done       chan struct{}
	stopOnce   sync.Once
	mu         sync.RWMutex
}

type broadcastMsg struct {
	topic   string
	message []byte
}

// NewWebSocketHub creates a new WebSocket hub
func NewWebSocketHub() *WebSocketHub {
	return &WebSocketHub{
		clients:    make(map[*WSClient]bool),
		topics:     make(map[string]map[*WSClient]bool),
		register:   make(chan *WSClient),
		unregister: make(chan *WSClient),
		broadcast:  make(chan *broadcastMsg, 256),
		done:       make(chan struct{}),
	}
}

// Run starts the hub's main loop; it returns after Stop
func (h *WebSocketHub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			observability.Debugf("WebSocket client connected: %s", client.ID)

		case client := <-h.unregister:
			h.remove(client)
			observability.Debugf("WebSocket client disconnected: %s", client.ID)

		case msg := <-h.broadcast:
			h.mu.RLock()
			targets := h.clients
			if msg.topic != "" {
				targets = h.topics[msg.topic]
			}

			for client := range targets {
				select {
				case client.Send <- msg.message:
				default:
					// slow consumer
					go h.Unregister(client)
				}
			}
			h.mu.RUnlock()

		case <-h.done:
			h.mu.Lock()
			for client := range h.clients {
				client.closeSend()
			}
			h.clients = make(map[*WSClient]bool)
			h.topics = make(map[string]map[*WSClient]bool)
			h.mu.Unlock()
			return
		}
	}
}

// Stop ends Run and closes every client's send channel
func (h *WebSocketHub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

func (h *WebSocketHub) remove(client *WSClient) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	for topic := range client.Topics {
		if topicClients, ok := h.topics[topic]; ok {
			delete(topicClients, client)
			if len(topicClients) == 0 {
				delete(h.topics, topic)
			}
		}
	}
	client.closeSend()
}

// Register adds a client to the hub
func (h *WebSocketHub) Register(client *WSClient) {
	select {
	case h.register <- client:
	case <-h.done:
	}
}

// Unregister removes a client from the hub
func (h *WebSocketHub) Unregister(client *WSClient) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Subscribe adds a client to a topic
func (h *WebSocketHub) Subscribe(client *WSClient, topic string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	client.Topics[topic] = true
	if h.topics[topic] == nil {
		h.topics[topic] = make(map[*WSClient]bool)
	}
	h.topics[topic][client] = true
}

// Unsubscribe removes a client from a topic
func (h *WebSocketHub) Unsubscribe(client *WSClient, topic string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(client.Topics, topic)
	if topicClients, ok := h.topics[topic]; ok {
		delete(topicClients, client)
		if len(topicClients) == 0 {
			delete(h.topics, topic)
		}
	}
}

// BroadcastToTopic sends a message to all clients subscribed to a topic
func (h *WebSocketHub) BroadcastToTopic(topic string, msg WSMessage) {
	h.enqueue(topic, msg)
}

// BroadcastAll sends a message to all connected clients
func (h *WebSocketHub) BroadcastAll(msg WSMessage) {
	h.enqueue("", msg)
}

func (h *WebSocketHub) enqueue(topic string, msg WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		observability.Errorf("Error marshaling WebSocket message: %v", err)
		return
	}

	select {
	case h.broadcast <- &broadcastMsg{topic: topic, message: data}:
	default:
		observability.Warnf("WebSocket broadcast queue full, dropping %s", msg.Type)
	}
}

// ManifestPublished tells gallery subscribers that a new manifest is available
func (h *WebSocketHub) ManifestPublished(key string, count int) {
	h.BroadcastToTopic(TopicGallery, WSMessage{
		Type:    WSTypeManifestPublished,
		Payload: ManifestPublishedPayload{Key: key, Count: count},
	})
}

// UploadStored tells upload subscribers about a new object
func (h *WebSocketHub) UploadStored(key, url string) {
	h.BroadcastToTopic(TopicUploads, WSMessage{
		Type:    WSTypeUploadStored,
		Payload: UploadStoredPayload{Key: key, URL: url},
	})
}

// GetClientCount returns the number of connected clients
func (h *WebSocketHub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// GetTopicSubscriberCount returns the number of subscribers for a topic
func (h *WebSocketHub) GetTopicSubscriberCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}

// NewClient creates a new WebSocket client connected to this hub
func (h *WebSocketHub) NewClient(id string, conn *websocket.Conn) *WSClient {
	return &WSClient{
		ID:     id,
		Topics: make(map[string]bool),
		Conn:   conn,
		Send:   make(chan []byte, 64),
		hub:    h,
	}
}

// Close closes the client connection
func (c *WSClient) Close() {
	c.closedOnce.Do(func() {
		c.hub.Unregister(c)
		if c.Conn != nil {
			c.Conn.Close()
		}
	})
}

// SendMessage queues a message for this client only
func (c *WSClient) SendMessage(msg WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}

	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.sendClosed {
		return
	}
	select {
	case c.Send <- data:
	default:
	}
}

func (c *WSClient) closeSend() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if !c.sendClosed {
		c.sendClosed = true
		close(c.Send)
	}
}

// WritePump pumps messages from the hub to the websocket connection
func (c *WSClient) WritePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			c.mu.Lock()
			err := c.Conn.WriteMessage(websocket.TextMessage, message)
			c.mu.Unlock()

			if err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ReadPump reads client messages until the connection closes
func (c *WSClient) ReadPump(onMessage func(client *WSClient, messageType int, data []byte)) {
	defer c.Close()

	c.Conn.SetReadLimit(16 * 1024)
	c.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		messageType, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				observability.Warnf("WebSocket error: %v", err)
			}
			break
		}

		if onMessage != nil {
			onMessage(c, messageType, message)
		}
	}
}

// Message types
const (
	WSTypeManifestPublished = "manifest_published"
	WSTypeUploadStored      = "upload_stored"
	WSTypeError             = "error"
	WSTypeSubscribe         = "subscribe"
	WSTypeUnsubscribe       = "unsubscribe"
	WSTypeSubscribed        = "subscribed"
	WSTypePing              = "ping"
	WSTypePong              = "pong"
)

// Topics
const (
	TopicGallery = "gallery"
	TopicUploads = "uploads"
)

// ManifestPublishedPayload is sent after every manifest publication
type ManifestPublishedPayload struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

// UploadStoredPayload is sent when an upload has been stored
type UploadStoredPayload struct {
	Key string `json:"key"`
	URL string `json:"url"`
}
