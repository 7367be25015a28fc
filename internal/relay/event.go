package relay

// Kind identifies a device-originated event category.
type Kind string

// Device event kinds, as reported by sensor nodes.
const (
	KindConnectionDetected Kind = "connection-detected"
	KindConnectionFinished Kind = "connection-finished"
	KindMotionDetected     Kind = "motion-detected"
	KindMotionFinished     Kind = "motion-finished"
)

// AllKinds returns every device event kind.
func AllKinds() []Kind {
	return []Kind{
		KindConnectionDetected,
		KindConnectionFinished,
		KindMotionDetected,
		KindMotionFinished,
	}
}

// IsValid reports whether the kind is one of the known event kinds.
func (k Kind) IsValid() bool {
	switch k {
	case KindConnectionDetected, KindConnectionFinished, KindMotionDetected, KindMotionFinished:
		return true
	}
	return false
}

// WireName returns the event name broadcast to real-time clients.
func (k Kind) WireName() string {
	switch k {
	case KindConnectionDetected:
		return "connectionDetected"
	case KindConnectionFinished:
		return "connectionFinished"
	case KindMotionDetected:
		return "motionDetected"
	case KindMotionFinished:
		return "motionFinished"
	}
	return ""
}

// Description returns the human-readable message carried in the broadcast
// payload alongside the address.
func (k Kind) Description() string {
	switch k {
	case KindConnectionDetected:
		return "Connection positive"
	case KindConnectionFinished:
		return "Connection lost"
	case KindMotionDetected:
		return "Alert"
	case KindMotionFinished:
		return "Alert stopped"
	}
	return ""
}

// KindFromWireName maps a broadcast event name back to its Kind.
// Returns false for unknown names.
func KindFromWireName(name string) (Kind, bool) {
	for _, k := range AllKinds() {
		if k.WireName() == name {
			return k, true
		}
	}
	return "", false
}

// Event is a device-originated event in flight. It exists only for the
// duration of one broadcast; nothing is retained.
type Event struct {
	Kind    Kind
	Address string // raw address bytes as received, forwarded verbatim
}

// EventPayload is the JSON payload broadcast to real-time clients.
type EventPayload struct {
	Message string `json:"message"`
	Address string `json:"address"`
}

// Payload builds the broadcast payload for the event.
func (e Event) Payload() EventPayload {
	return EventPayload{
		Message: e.Kind.Description(),
		Address: e.Address,
	}
}

// ChatMessage is a room-scoped message in flight between clients.
type ChatMessage struct {
	Message string `json:"message"`
	Room    string `json:"room"`
}
