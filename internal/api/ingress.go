package api

import (
	"io"
	"net/http"

	"github.com/watchgrid/watchgrid-core/internal/infrastructure/mqtt"
	"github.com/watchgrid/watchgrid-core/internal/relay"
)

// Sensor event ingress.
//
// Sensor nodes report transitions as plain-text POST bodies carrying the
// device address. The address is relayed verbatim; dashboards decide how to
// decode and whether to display it. Every well-formed request is answered
// 200 so a sensor never retries a delivered transition.

// handleConnectionDetected relays a connection-detected transition.
//
// POST /connection
func (s *Server) handleConnectionDetected(w http.ResponseWriter, r *http.Request) {
	address, ok := s.readAddress(w, r)
	if !ok {
		return
	}

	s.relayer.Publish(relay.KindConnectionDetected, address)
	writeJSON(w, http.StatusOK, map[string]string{"address": address})
}

// handleConnectionFinished relays a connection-finished transition.
//
// POST /connection-finish
func (s *Server) handleConnectionFinished(w http.ResponseWriter, r *http.Request) {
	address, ok := s.readAddress(w, r)
	if !ok {
		return
	}

	s.relayer.Publish(relay.KindConnectionFinished, address)
	writeJSON(w, http.StatusOK, map[string]string{"address": address})
}

// handleMotionDetected relays a motion-detected transition.
//
// POST /motion
func (s *Server) handleMotionDetected(w http.ResponseWriter, r *http.Request) {
	address, ok := s.readAddress(w, r)
	if !ok {
		return
	}

	s.relayer.Publish(relay.KindMotionDetected, address)
	writeJSON(w, http.StatusOK, map[string]string{"address_triggered": address})
}

// handleMotionFinished relays a motion-finished transition.
//
// POST /motion-finish
func (s *Server) handleMotionFinished(w http.ResponseWriter, r *http.Request) {
	address, ok := s.readAddress(w, r)
	if !ok {
		return
	}

	s.relayer.Publish(relay.KindMotionFinished, address)
	writeJSON(w, http.StatusOK, map[string]string{"address_removed": address})
}

// handleTest answers the sensor reachability probe.
//
// GET /test
func (s *Server) handleTest(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "received"})
}

// handleHealth returns server health and version.
//
// GET /health
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
		"clients": s.hub.ClientCount(),
		"rooms":   s.rooms.RoomCount(),
	})
}

// handleGrid returns the grid layout so panels render the same geometry and
// address encoding the server was configured with.
//
// GET /grid
func (s *Server) handleGrid(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"size":             s.gridCfg.Size,
		"address_encoding": s.gridCfg.AddressEncoding,
	})
}

// readAddress reads the raw request body as a device address. The bytes are
// forwarded exactly as received; projections decide how leniently to decode.
// The body-size middleware caps the read; a failed read gets a 400.
func (s *Server) readAddress(w http.ResponseWriter, r *http.Request) (string, bool) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeBadRequest(w, "failed to read request body")
		return "", false
	}
	return string(body), true
}

// subscribeDeviceEvents bridges MQTT sensor events into the relay.
//
// Sensors publish the device address to watchgrid/event/{kind}, where kind is
// the event's wire name. Transitions arriving this way are indistinguishable
// from HTTP-ingested ones downstream.
func (s *Server) subscribeDeviceEvents() error {
	if s.mqtt == nil || !s.mqtt.IsConnected() {
		s.logger.Debug("MQTT not available, skipping device event subscription")
		return nil
	}

	topics := mqtt.Topics{}
	return s.mqtt.Subscribe(topics.AllDeviceEvents(), 0, func(topic string, payload []byte) error {
		slug, ok := topics.EventKind(topic)
		if !ok {
			return nil
		}
		// Topic segments carry the kind slug, not the broadcast wire name
		kind := relay.Kind(slug)
		if !kind.IsValid() {
			s.logger.Warn("unknown device event topic", "topic", topic)
			return nil
		}
		s.relayer.Publish(kind, string(payload))
		return nil
	})
}
