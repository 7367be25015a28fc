// Package relay fans device-originated events out to real-time clients and
// delivers room-scoped messages between clients.
//
// The relay itself is stateless: every event exists only for the duration
// of one broadcast. Delivery is best-effort; a client that disconnects
// mid-broadcast simply misses the event.
package relay

// Logger is the logging interface used by this package.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Broadcaster delivers an event to every currently connected client,
// regardless of room membership. Implemented by the WebSocket hub.
type Broadcaster interface {
	BroadcastAll(event string, payload any)
}

// Relay forwards device events to all connected real-time clients.
//
// Publish performs a global, unscoped broadcast. No acknowledgement is
// collected and no state is retained.
type Relay struct {
	broadcaster Broadcaster
	logger      Logger
}

// New creates a Relay that broadcasts through the given Broadcaster.
func New(b Broadcaster) *Relay {
	return &Relay{
		broadcaster: b,
		logger:      noopLogger{},
	}
}

// SetLogger sets the logger for the relay.
func (r *Relay) SetLogger(logger Logger) {
	r.logger = logger
}

// Publish broadcasts a device event to every connected client.
//
// The address is forwarded verbatim: malformed or empty payloads are
// deliberately accepted as-is. Address validity only matters for grid
// indexing, which is the projector's concern.
func (r *Relay) Publish(kind Kind, address string) {
	if !kind.IsValid() {
		r.logger.Warn("dropping event with unknown kind", "kind", string(kind))
		return
	}

	event := Event{Kind: kind, Address: address}
	r.broadcaster.BroadcastAll(kind.WireName(), event.Payload())
	r.logger.Debug("device event published",
		"kind", string(kind),
		"address", address,
	)
}
