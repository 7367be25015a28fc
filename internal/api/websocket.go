package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/watchgrid/watchgrid-core/internal/infrastructure/config"
	"github.com/watchgrid/watchgrid-core/internal/infrastructure/logging"
	"github.com/watchgrid/watchgrid-core/internal/relay"
	"github.com/watchgrid/watchgrid-core/internal/room"
)

// WebSocket message types.
//
// Client→server types carry client intent; server→client envelopes reuse
// the relay's wire event names (connectionDetected, receive_message, ...).
const (
	WSTypeJoinRoom    = "join_room"
	WSTypeSendMessage = "send_message"
	WSTypePing        = "ping"
	WSTypePong        = "pong"
	WSTypeResponse    = "response"
	WSTypeError       = "error"

	// wsSendBufferSize is the per-client outbound message buffer size.
	wsSendBufferSize = 256
)

// WSMessage represents a message sent to/from a WebSocket client.
type WSMessage struct {
	Type      string `json:"type"`
	ID        string `json:"id,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   any    `json:"payload,omitempty"`
}

// WSSendMessagePayload is the payload for send_message envelopes.
type WSSendMessagePayload struct {
	Message string `json:"message"`
	Room    string `json:"room"`
}

// Hub manages WebSocket connections, broadcasts relayed device events, and
// routes room-scoped messages.
//
// The hub implements relay.Broadcaster (global fan-out) and relay.Sender
// (per-connection delivery). Room membership lives in the injected room
// registry, never in hub-local state.
type Hub struct {
	cfg       config.WebSocketConfig
	logger    *logging.Logger
	rooms     *room.Registry
	messenger *relay.Messenger
	clients   map[string]*WSClient // session ID -> client
	mu        sync.RWMutex
}

// WSClient represents a connected WebSocket client.
type WSClient struct {
	id   string // session ID, assigned on upgrade
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// upgrader configures the WebSocket upgrader.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		// Origin checking is handled by CORS middleware
		return true
	},
}

// NewHub creates a new WebSocket hub backed by the given room registry.
func NewHub(cfg config.WebSocketConfig, logger *logging.Logger, rooms *room.Registry) *Hub {
	return &Hub{
		cfg:     cfg,
		logger:  logger,
		rooms:   rooms,
		clients: make(map[string]*WSClient),
	}
}

// SetMessenger wires the room messenger used for send_message envelopes.
// Called once during server construction; the messenger itself delivers
// through the hub, so the two are created in sequence.
func (h *Hub) SetMessenger(m *relay.Messenger) {
	h.messenger = m
}

// Run starts the hub's main loop. It blocks until the context is cancelled.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()
	h.closeAll()
}

// Register adds a client to the hub.
func (h *Hub) Register(client *WSClient) {
	h.mu.Lock()
	h.clients[client.id] = client
	h.mu.Unlock()
	h.logger.Debug("websocket client connected", "session", client.id, "clients", h.ClientCount())
}

// Unregister removes a client from the hub and from every room it joined.
// Only the goroutine that successfully removes the client from the map
// closes the send channel, preventing double-close panics during shutdown.
func (h *Hub) Unregister(client *WSClient) {
	h.mu.Lock()
	_, existed := h.clients[client.id]
	delete(h.clients, client.id)
	h.mu.Unlock()

	h.rooms.LeaveAll(client.id)

	if existed {
		close(client.send)
	}
	h.logger.Debug("websocket client disconnected", "session", client.id, "clients", h.ClientCount())
}

// BroadcastAll sends an event to every connected client, regardless of room
// membership. Implements relay.Broadcaster.
//
// Lock ordering: hub lock is acquired to snapshot the client list, then
// released before sending, so a slow client never blocks registration.
func (h *Hub) BroadcastAll(event string, payload any) {
	data, err := marshalEnvelope(event, payload)
	if err != nil {
		h.logger.Error("failed to marshal broadcast message", "event", event, "error", err)
		return
	}

	// Snapshot client list under hub lock, then release before sending
	h.mu.RLock()
	clients := make([]*WSClient, 0, len(h.clients))
	for _, client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	for _, client := range clients {
		client.trySend(data)
	}
	if len(clients) > 0 {
		h.logger.Debug("broadcast sent", "event", event, "recipients", len(clients))
	}
}

// SendTo delivers an event to a single connection, best-effort.
// Implements relay.Sender. Unknown session IDs are silently ignored; the
// connection may have closed between the membership snapshot and delivery.
func (h *Hub) SendTo(connID, event string, payload any) {
	h.mu.RLock()
	client, ok := h.clients[connID]
	h.mu.RUnlock()
	if !ok {
		return
	}

	data, err := marshalEnvelope(event, payload)
	if err != nil {
		h.logger.Error("failed to marshal message", "event", event, "error", err)
		return
	}
	client.trySend(data)
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// closeAll disconnects all clients and closes their send channels
// so writePump goroutines can exit cleanly.
func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, client := range h.clients {
		close(client.send)
		if client.conn != nil {
			client.conn.Close()
		}
		delete(h.clients, id)
	}
}

// marshalEnvelope builds the wire form of a server→client event.
func marshalEnvelope(event string, payload any) ([]byte, error) {
	return json.Marshal(WSMessage{
		Type:      event,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	})
}

// handleWebSocket upgrades the HTTP connection to a WebSocket connection.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	client := &WSClient{
		id:   uuid.NewString(),
		hub:  s.hub,
		conn: conn,
		send: make(chan []byte, wsSendBufferSize),
	}

	s.hub.Register(client)

	// Start read/write pumps
	go client.writePump(s.wsCfg)
	go client.readPump(s.wsCfg)
}

// readPump reads messages from the WebSocket connection.
func (c *WSClient) readPump(cfg config.WebSocketConfig) {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(int64(cfg.MaxMessageSize))
	pingInterval := time.Duration(cfg.PingInterval) * time.Second
	pongWait := time.Duration(cfg.PongTimeout) * time.Second
	//nolint:errcheck // Best-effort deadline on connection setup
	c.conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("websocket read error", "error", err)
			} else {
				c.hub.logger.Debug("websocket closed", "error", err)
			}
			return
		}
		// Any client message resets the read deadline (keeps connection alive
		// even if the client doesn't respond to protocol-level pings).
		//nolint:errcheck // Best-effort deadline reset
		c.conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
		c.handleMessage(message)
	}
}

// writePump writes messages to the WebSocket connection.
func (c *WSClient) writePump(cfg config.WebSocketConfig) {
	pingInterval := time.Duration(cfg.PingInterval) * time.Second
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	pongWait := time.Duration(cfg.PongTimeout) * time.Second

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				// Hub closed the channel
				//nolint:errcheck // Best-effort close message
				c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			//nolint:errcheck // Best-effort deadline; write error caught below
			c.conn.SetWriteDeadline(time.Now().Add(pongWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			//nolint:errcheck // Best-effort deadline; ping error caught below
			c.conn.SetWriteDeadline(time.Now().Add(pongWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage processes an incoming WebSocket message.
func (c *WSClient) handleMessage(data []byte) {
	var msg WSMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.sendError("", "invalid JSON message")
		return
	}

	switch msg.Type {
	case WSTypeJoinRoom:
		c.handleJoinRoom(msg)
	case WSTypeSendMessage:
		c.handleSendMessage(msg)
	case WSTypePing:
		c.sendResponse(msg.ID, WSTypePong, nil)
	default:
		c.sendError(msg.ID, "unknown message type: "+msg.Type)
	}
}

// handleJoinRoom adds the client to a named room.
// An empty room name is a no-op, mirroring the dashboard's own guard.
func (c *WSClient) handleJoinRoom(msg WSMessage) {
	roomName, ok := msg.Payload.(string)
	if !ok {
		c.sendError(msg.ID, "join_room payload must be a room name string")
		return
	}
	if roomName == "" {
		c.sendResponse(msg.ID, WSTypeResponse, map[string]any{"joined": ""})
		return
	}

	c.hub.rooms.Join(c.id, roomName)
	c.hub.logger.Info("websocket client joined room", "session", c.id, "room", roomName)

	c.sendResponse(msg.ID, WSTypeResponse, map[string]any{
		"joined": roomName,
	})
}

// handleSendMessage relays a room-scoped message to the room's other members.
func (c *WSClient) handleSendMessage(msg WSMessage) {
	payloadBytes, err := json.Marshal(msg.Payload)
	if err != nil {
		c.sendError(msg.ID, "invalid payload")
		return
	}

	var send WSSendMessagePayload
	if err := json.Unmarshal(payloadBytes, &send); err != nil {
		c.sendError(msg.ID, "invalid send_message payload")
		return
	}

	// Empty room or empty membership is a silent no-op inside the messenger.
	c.hub.messenger.Send(c.id, send.Room, send.Message)
}

// trySend attempts to send data to the client's send channel.
// It silently handles closed channels (client disconnected during broadcast)
// and full buffers (slow client).
func (c *WSClient) trySend(data []byte) {
	defer func() {
		recover() //nolint:errcheck // Absorb send-on-closed-channel panic
	}()

	select {
	case c.send <- data:
	default:
		// Client buffer full, skip
	}
}

// sendResponse sends a response message to the client.
// Routes through trySend to safely handle closed channels during shutdown.
func (c *WSClient) sendResponse(id, msgType string, payload any) {
	msg := WSMessage{
		Type:      msgType,
		ID:        id,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	c.trySend(data)
}

// sendError sends an error message to the client.
func (c *WSClient) sendError(id, message string) {
	c.sendResponse(id, WSTypeError, map[string]string{"message": message})
}
