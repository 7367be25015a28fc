package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/watchgrid/watchgrid-core/internal/api"
	"github.com/watchgrid/watchgrid-core/internal/grid"
	"github.com/watchgrid/watchgrid-core/internal/relay"
)

// dialTimeout bounds the initial HTTP and WebSocket handshakes.
const dialTimeout = 10 * time.Second

// noteKind classifies lines pushed to the UI.
type noteKind int

const (
	noteStatus noteKind = iota
	noteChat
	noteAlert
)

// note is a display line plus an implicit "grid may have changed" signal.
type note struct {
	kind noteKind
	text string
}

// Panel is the client-side session: one WebSocket connection, one grid
// projection, and the operator's current room.
type Panel struct {
	serverURL   string
	activateURL string
	httpClient  *http.Client
	ws          *websocket.Conn
	projector   *grid.Projector

	mu   sync.Mutex // guards room and ws writes
	room string

	notes     chan note
	closeOnce sync.Once
	done      chan struct{}
}

// gridInfo is the server's GET /grid response.
type gridInfo struct {
	Size            int    `json:"size"`
	AddressEncoding string `json:"address_encoding"`
}

// newPanel connects to the server, fetches the grid layout, and starts the
// WebSocket read loop.
func newPanel(serverURL, activateURL string) (*Panel, error) {
	p := &Panel{
		serverURL:   strings.TrimRight(serverURL, "/"),
		activateURL: strings.TrimRight(activateURL, "/"),
		httpClient:  &http.Client{Timeout: dialTimeout},
		notes:       make(chan note, 64),
		done:        make(chan struct{}),
	}

	info, err := p.fetchGridInfo()
	if err != nil {
		return nil, fmt.Errorf("fetching grid layout: %w", err)
	}

	projector, err := grid.NewProjector(grid.Config{
		Size:     info.Size,
		Encoding: grid.Encoding(info.AddressEncoding),
	})
	if err != nil {
		return nil, fmt.Errorf("building grid projection: %w", err)
	}
	p.projector = projector

	wsURL, err := websocketURL(p.serverURL)
	if err != nil {
		return nil, err
	}

	dialer := websocket.Dialer{HandshakeTimeout: dialTimeout}
	ws, resp, err := dialer.Dial(wsURL, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket dial: %w (status %d)", err, resp.StatusCode)
		}
		return nil, fmt.Errorf("websocket dial: %w", err)
	}
	p.ws = ws

	go p.readLoop()

	return p, nil
}

// Close shuts the WebSocket connection down. Safe to call more than once.
func (p *Panel) Close() {
	p.closeOnce.Do(func() {
		close(p.done)
		if p.ws != nil {
			p.ws.Close()
		}
	})
}

// Notes returns the channel of display lines for the UI.
func (p *Panel) Notes() <-chan note {
	return p.notes
}

// Projector returns the live grid projection.
func (p *Panel) Projector() *grid.Projector {
	return p.projector
}

// Room returns the operator's current room, empty if none joined.
func (p *Panel) Room() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.room
}

// JoinRoom joins a room for operator messaging. The server acknowledges
// asynchronously; the acknowledgement shows up as a status note.
func (p *Panel) JoinRoom(roomName string) {
	roomName = strings.TrimSpace(roomName)
	if roomName == "" {
		return
	}

	p.mu.Lock()
	p.room = roomName
	err := p.ws.WriteJSON(api.WSMessage{
		Type:    api.WSTypeJoinRoom,
		Payload: roomName,
	})
	p.mu.Unlock()

	if err != nil {
		p.pushNote(noteAlert, fmt.Sprintf("join %s failed: %v", roomName, err))
		return
	}
	p.pushNote(noteStatus, "joined room "+roomName)
}

// SendMessage sends a message to the current room.
func (p *Panel) SendMessage(text string) {
	p.mu.Lock()
	roomName := p.room
	var err error
	if roomName != "" {
		err = p.ws.WriteJSON(api.WSMessage{
			Type:    api.WSTypeSendMessage,
			Payload: api.WSSendMessagePayload{Message: text, Room: roomName},
		})
	}
	p.mu.Unlock()

	if roomName == "" {
		p.pushNote(noteAlert, "not in a room, use /join <room> first")
		return
	}
	if err != nil {
		p.pushNote(noteAlert, fmt.Sprintf("send failed: %v", err))
		return
	}
	p.pushNote(noteChat, "you ("+roomName+"): "+text)
}

// AddDevice places a device on the grid and, when a device network URL is
// configured, fires an activation request at it. Activation is best-effort;
// the grid placement stands regardless of the outcome.
func (p *Panel) AddDevice(raw string) {
	addr, err := p.projector.AddDevice(raw)
	if err != nil {
		p.pushNote(noteAlert, err.Error())
		return
	}
	p.pushNote(noteStatus, fmt.Sprintf("device placed at address %d", addr))

	if p.activateURL == "" {
		return
	}
	go func() {
		resp, err := p.httpClient.Get(fmt.Sprintf("%s/activate?device=%d", p.activateURL, addr))
		if err != nil {
			return // fire and forget
		}
		resp.Body.Close()
	}()
}

// RemoveDevice removes a placed device from the grid.
func (p *Panel) RemoveDevice(raw string) {
	addr, err := grid.DecodeAddress(raw, p.projector.Encoding())
	if err != nil {
		p.pushNote(noteAlert, "invalid address: "+raw)
		return
	}
	if !p.projector.RemoveDevice(addr) {
		p.pushNote(noteAlert, fmt.Sprintf("no device at address %d", addr))
		return
	}
	p.pushNote(noteStatus, fmt.Sprintf("device removed at address %d", addr))
}

// fetchGridInfo retrieves the server's grid layout.
func (p *Panel) fetchGridInfo() (gridInfo, error) {
	var info gridInfo

	resp, err := p.httpClient.Get(p.serverURL + "/grid")
	if err != nil {
		return info, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return info, fmt.Errorf("server returned status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return info, fmt.Errorf("decoding grid layout: %w", err)
	}
	return info, nil
}

// readLoop consumes server envelopes until the connection drops.
func (p *Panel) readLoop() {
	for {
		var msg api.WSMessage
		if err := p.ws.ReadJSON(&msg); err != nil {
			select {
			case <-p.done:
			default:
				p.pushNote(noteAlert, "connection lost: "+err.Error())
			}
			return
		}
		p.handleEnvelope(msg)
	}
}

// handleEnvelope applies one server envelope to the projection or chat log.
func (p *Panel) handleEnvelope(msg api.WSMessage) {
	if kind, ok := relay.KindFromWireName(msg.Type); ok {
		var payload relay.EventPayload
		if err := decodePayload(msg.Payload, &payload); err != nil {
			return
		}
		p.projector.HandleEvent(kind, payload.Address)
		p.pushNote(noteStatus, fmt.Sprintf("%s (address %s)", payload.Message, payload.Address))
		return
	}

	switch msg.Type {
	case relay.ReceiveMessageEvent:
		var chat relay.ChatMessage
		if err := decodePayload(msg.Payload, &chat); err != nil {
			return
		}
		p.pushNote(noteChat, chat.Room+": "+chat.Message)
	case api.WSTypeError:
		var errPayload struct {
			Message string `json:"message"`
		}
		if err := decodePayload(msg.Payload, &errPayload); err != nil {
			return
		}
		p.pushNote(noteAlert, "server: "+errPayload.Message)
	case api.WSTypeResponse, api.WSTypePong:
		// acknowledgements need no display
	}
}

// pushNote queues a display line, dropping it if the UI is behind.
func (p *Panel) pushNote(kind noteKind, text string) {
	select {
	case p.notes <- note{kind: kind, text: text}:
	default:
	}
}

// decodePayload remarshals a decoded any payload into a typed struct.
func decodePayload(payload any, v any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// websocketURL derives the ws:// endpoint from the server base URL.
func websocketURL(serverURL string) (string, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return "", fmt.Errorf("parsing server URL: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws"
	return u.String(), nil
}
