package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/sketchstacker/server/internal/observability"
	"github.com/sketchstacker/server/internal/services"
)

// WebSocketHandler handles WebSocket connections
type WebSocketHandler struct {
	hub      *services.WebSocketHub
	upgrader websocket.Upgrader
}

// NewWebSocketHandler creates a new WebSocketHandler. checkOrigin may be nil
// to accept every origin.
func NewWebSocketHandler(hub *services.WebSocketHub, checkOrigin func(r *http.Request) bool) *WebSocketHandler {
	if checkOrigin == nil {
		checkOrigin = func(r *http.Request) bool { return true }
	}
	return &WebSocketHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
	}
}

// HandleConnection upgrades HTTP to WebSocket and manages the connection
func (h *WebSocketHandler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		observability.WithContext(r.Context()).Warnf("WebSocket upgrade failed: %v", err)
		return
	}

	client := h.hub.NewClient(uuid.New().String(), conn)
	h.hub.Register(client)

	go client.WritePump()

	// blocks until the connection closes
	client.ReadPump(h.handleMessage)
}

type topicPayload struct {
	Topic string `json:"topic"`
}

// topicOf accepts either "gallery" or {"topic": "gallery"}
func topicOf(raw json.RawMessage) string {
	var topic string
	if err := json.Unmarshal(raw, &topic); err == nil {
		return topic
	}
	var p topicPayload
	if err := json.Unmarshal(raw, &p); err == nil {
		return p.Topic
	}
	return ""
}

func validTopic(topic string) bool {
	return topic == services.TopicGallery || topic == services.TopicUploads
}

// handleMessage processes incoming WebSocket messages
func (h *WebSocketHandler) handleMessage(client *services.WSClient, messageType int, data []byte) {
	if messageType != websocket.TextMessage {
		return
	}

	var msg struct {
		Type    string          `json:"type"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		client.SendMessage(services.WSMessage{Type: services.WSTypeError, Payload: "invalid message"})
		return
	}

	switch msg.Type {
	case services.WSTypeSubscribe:
		topic := topicOf(msg.Payload)
		if !validTopic(topic) {
			client.SendMessage(services.WSMessage{Type: services.WSTypeError, Payload: "unknown topic"})
			return
		}
		h.hub.Subscribe(client, topic)
		client.SendMessage(services.WSMessage{Type: services.WSTypeSubscribed, Payload: topic})

	case services.WSTypeUnsubscribe:
		h.hub.Unsubscribe(client, topicOf(msg.Payload))

	case services.WSTypePing:
		client.SendMessage(services.WSMessage{Type: services.WSTypePong})

	default:
		observability.Debugf("Unknown WebSocket message type: %s", msg.Type)
	}
}
