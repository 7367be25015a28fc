package relay

import (
	"github.com/watchgrid/watchgrid-core/internal/room"
)

// ReceiveMessageEvent is the event name for room-scoped message delivery.
const ReceiveMessageEvent = "receive_message"

// Sender delivers an event to a single connection, best-effort.
// Implemented by the WebSocket hub.
type Sender interface {
	SendTo(connID, event string, payload any)
}

// Messenger delivers room-scoped messages between connected clients.
//
// Membership is read fresh from the room registry on every send; the
// messenger keeps no subscription list of its own.
type Messenger struct {
	rooms  *room.Registry
	sender Sender
	logger Logger
}

// NewMessenger creates a Messenger backed by the given registry and sender.
func NewMessenger(rooms *room.Registry, sender Sender) *Messenger {
	return &Messenger{
		rooms:  rooms,
		sender: sender,
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the messenger.
func (m *Messenger) SetLogger(logger Logger) {
	m.logger = logger
}

// Send delivers a message to every member of the room except the sender.
//
// An empty room name or a room with no other members is a silent no-op.
// There is no size limit, content validation, or persistence.
func (m *Messenger) Send(senderID, roomName, text string) {
	if roomName == "" {
		return
	}

	recipients := m.rooms.OthersIn(roomName, senderID)
	if len(recipients) == 0 {
		return
	}

	payload := ChatMessage{Message: text, Room: roomName}
	for _, id := range recipients {
		m.sender.SendTo(id, ReceiveMessageEvent, payload)
	}

	m.logger.Debug("room message delivered",
		"room", roomName,
		"recipients", len(recipients),
	)
}
