package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/watchgrid/watchgrid-core/internal/infrastructure/config"
	"github.com/watchgrid/watchgrid-core/internal/infrastructure/logging"
	"github.com/watchgrid/watchgrid-core/internal/infrastructure/mqtt"
	"github.com/watchgrid/watchgrid-core/internal/relay"
)

// testServer creates a server suitable for recorder-based handler tests.
func testServer(t *testing.T) *Server {
	t.Helper()

	log := logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stdout"}, "test")

	srv, err := New(Deps{
		Config: config.APIConfig{
			Host: "127.0.0.1",
			Port: 3001,
			Timeouts: config.APITimeoutConfig{
				Read:  5,
				Write: 5,
				Idle:  5,
			},
		},
		WS: config.WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Grid: config.GridConfig{
			Size:            4,
			AddressEncoding: config.EncodingBase10,
		},
		Logger:  log,
		MQTT:    nil,
		Version: "test",
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return srv
}

// testServerWithRealListener creates a server that actually listens on a specific port.
func testServerWithRealListener(t *testing.T, port int) (*Server, string) {
	t.Helper()

	log := logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stdout"}, "test")

	srv, err := New(Deps{
		Config: config.APIConfig{
			Host: "127.0.0.1",
			Port: port,
			Timeouts: config.APITimeoutConfig{
				Read:  5,
				Write: 5,
				Idle:  5,
			},
		},
		WS: config.WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Grid: config.GridConfig{
			Size:            4,
			AddressEncoding: config.EncodingBase10,
		},
		Logger:  log,
		MQTT:    nil,
		Version: "test",
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	// Start server in background
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	t.Cleanup(func() { srv.Close() })

	if err := srv.Start(ctx); err != nil {
		t.Fatalf("Start() error: %v", err)
	}

	// Wait for server to be ready
	time.Sleep(100 * time.Millisecond)

	addr := fmt.Sprintf("127.0.0.1:%d", port)
	return srv, addr
}

// connectWebSocket dials the server's WebSocket endpoint.
func connectWebSocket(t *testing.T, addr string) *websocket.Conn {
	t.Helper()

	wsURL := "ws://" + addr + "/ws"
	ws, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("websocket dial failed: %v (resp: %v)", err, resp)
	}
	t.Cleanup(func() { ws.Close() })
	return ws
}

// joinRoom sends a join_room message and waits for the acknowledgement.
func joinRoom(t *testing.T, ws *websocket.Conn, roomName string) {
	t.Helper()

	msg := WSMessage{
		Type:    WSTypeJoinRoom,
		ID:      "join-" + roomName,
		Payload: roomName,
	}
	if err := ws.WriteJSON(msg); err != nil {
		t.Fatalf("write join_room: %v", err)
	}

	var response WSMessage
	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := ws.ReadJSON(&response); err != nil {
		t.Fatalf("read join_room response: %v", err)
	}
	if response.Type != WSTypeResponse {
		t.Fatalf("join response type = %s, want %s", response.Type, WSTypeResponse)
	}
}

// readEnvelope reads one envelope with a deadline.
func readEnvelope(t *testing.T, ws *websocket.Conn) WSMessage {
	t.Helper()

	var msg WSMessage
	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := ws.ReadJSON(&msg); err != nil {
		t.Fatalf("read envelope: %v", err)
	}
	return msg
}

// expectNoEnvelope asserts that no message arrives within a short window.
func expectNoEnvelope(t *testing.T, ws *websocket.Conn) {
	t.Helper()

	var msg WSMessage
	ws.SetReadDeadline(time.Now().Add(300 * time.Millisecond))
	if err := ws.ReadJSON(&msg); err == nil {
		t.Fatalf("unexpected envelope received: %+v", msg)
	}
}

func TestHealth(t *testing.T) {
	srv := testServer(t)
	router := srv.buildRouter()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var body map[string]any
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status field = %v, want ok", body["status"])
	}
	if body["version"] != "test" {
		t.Errorf("version field = %v, want test", body["version"])
	}
}

func TestTestEndpoint(t *testing.T) {
	srv := testServer(t)
	router := srv.buildRouter()

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var body map[string]string
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body["status"] != "received" {
		t.Errorf("status = %q, want received", body["status"])
	}
}

func TestGridEndpoint(t *testing.T) {
	srv := testServer(t)
	router := srv.buildRouter()

	req := httptest.NewRequest(http.MethodGet, "/grid", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var body struct {
		Size            int    `json:"size"`
		AddressEncoding string `json:"address_encoding"`
	}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Size != 4 {
		t.Errorf("size = %d, want 4", body.Size)
	}
	if body.AddressEncoding != config.EncodingBase10 {
		t.Errorf("address_encoding = %q, want %q", body.AddressEncoding, config.EncodingBase10)
	}
}

func TestIngress_EchoesAddress(t *testing.T) {
	srv := testServer(t)
	router := srv.buildRouter()

	tests := []struct {
		path    string
		body    string
		wantKey string
		wantVal string
	}{
		{"/connection", "7", "address", "7"},
		{"/connection-finish", "7", "address", "7"},
		{"/motion", "12", "address_triggered", "12"},
		{"/motion-finish", "12", "address_removed", "12"},
		{"/connection", "  3 \n", "address", "  3 \n"},
		{"/motion", "garbled", "address_triggered", "garbled"},
		{"/connection", "", "address", ""},
	}

	for _, tt := range tests {
		t.Run(tt.path+"_"+tt.body, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, tt.path, strings.NewReader(tt.body))
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200", w.Code)
			}

			var body map[string]string
			if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
				t.Fatalf("decode response: %v", err)
			}
			got, ok := body[tt.wantKey]
			if !ok {
				t.Fatalf("response missing key %q: %v", tt.wantKey, body)
			}
			if got != tt.wantVal {
				t.Errorf("%s = %q, want %q", tt.wantKey, got, tt.wantVal)
			}
		})
	}
}

func TestRequestID_Generated(t *testing.T) {
	srv := testServer(t)
	router := srv.buildRouter()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID header not set")
	}
}

func TestCORS_Preflight(t *testing.T) {
	srv := testServer(t)
	router := srv.buildRouter()

	req := httptest.NewRequest(http.MethodOptions, "/health", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d, want 204", w.Code)
	}
	if w.Header().Get("Access-Control-Allow-Origin") == "" {
		t.Error("Access-Control-Allow-Origin not set")
	}
}

func TestNotFound(t *testing.T) {
	srv := testServer(t)
	router := srv.buildRouter()

	req := httptest.NewRequest(http.MethodGet, "/nonexistent", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestWebSocket_Connect(t *testing.T) {
	srv, addr := testServerWithRealListener(t, 19180)

	connectWebSocket(t, addr)

	// Registration happens after the upgrade completes
	time.Sleep(50 * time.Millisecond)
	if srv.hub.ClientCount() != 1 {
		t.Errorf("hub client count = %d, want 1", srv.hub.ClientCount())
	}
}

func TestWebSocket_Ping(t *testing.T) {
	_, addr := testServerWithRealListener(t, 19181)

	ws := connectWebSocket(t, addr)
	if err := ws.WriteJSON(WSMessage{Type: WSTypePing, ID: "p1"}); err != nil {
		t.Fatalf("write ping: %v", err)
	}

	response := readEnvelope(t, ws)
	if response.Type != WSTypePong {
		t.Errorf("response type = %s, want %s", response.Type, WSTypePong)
	}
	if response.ID != "p1" {
		t.Errorf("response ID = %s, want p1", response.ID)
	}
}

func TestWebSocket_UnknownType(t *testing.T) {
	_, addr := testServerWithRealListener(t, 19182)

	ws := connectWebSocket(t, addr)
	if err := ws.WriteJSON(WSMessage{Type: "bogus"}); err != nil {
		t.Fatalf("write message: %v", err)
	}

	response := readEnvelope(t, ws)
	if response.Type != WSTypeError {
		t.Errorf("response type = %s, want %s", response.Type, WSTypeError)
	}
}

func TestWebSocket_RoomMessaging(t *testing.T) {
	srv, addr := testServerWithRealListener(t, 19183)

	// Two clients in lab1, one in lab2
	sender := connectWebSocket(t, addr)
	receiver := connectWebSocket(t, addr)
	outsider := connectWebSocket(t, addr)

	joinRoom(t, sender, "lab1")
	joinRoom(t, receiver, "lab1")
	joinRoom(t, outsider, "lab2")

	if got := srv.rooms.MemberCount("lab1"); got != 2 {
		t.Fatalf("lab1 member count = %d, want 2", got)
	}

	msg := WSMessage{
		Type:    WSTypeSendMessage,
		Payload: WSSendMessagePayload{Message: "hello lab1", Room: "lab1"},
	}
	if err := sender.WriteJSON(msg); err != nil {
		t.Fatalf("write send_message: %v", err)
	}

	// Only the other lab1 member receives it
	received := readEnvelope(t, receiver)
	if received.Type != relay.ReceiveMessageEvent {
		t.Errorf("received type = %s, want %s", received.Type, relay.ReceiveMessageEvent)
	}
	payload, ok := received.Payload.(map[string]any)
	if !ok {
		t.Fatalf("payload type = %T, want object", received.Payload)
	}
	if payload["message"] != "hello lab1" {
		t.Errorf("message = %v, want hello lab1", payload["message"])
	}

	// Sender does not echo back; lab2 stays silent
	expectNoEnvelope(t, sender)
	expectNoEnvelope(t, outsider)
}

func TestWebSocket_BroadcastIgnoresRooms(t *testing.T) {
	_, addr := testServerWithRealListener(t, 19184)

	inRoom := connectWebSocket(t, addr)
	noRoom := connectWebSocket(t, addr)
	joinRoom(t, inRoom, "lab1")

	resp, err := http.Post("http://"+addr+"/motion", "text/plain", strings.NewReader("9"))
	if err != nil {
		t.Fatalf("POST /motion: %v", err)
	}
	resp.Body.Close()

	for _, ws := range []*websocket.Conn{inRoom, noRoom} {
		env := readEnvelope(t, ws)
		if env.Type != relay.KindMotionDetected.WireName() {
			t.Errorf("envelope type = %s, want %s", env.Type, relay.KindMotionDetected.WireName())
		}
		payload, ok := env.Payload.(map[string]any)
		if !ok {
			t.Fatalf("payload type = %T, want object", env.Payload)
		}
		if payload["message"] != "Alert" {
			t.Errorf("message = %v, want Alert", payload["message"])
		}
		if payload["address"] != "9" {
			t.Errorf("address = %v, want 9", payload["address"])
		}
	}
}

func TestWebSocket_DisconnectLeavesRooms(t *testing.T) {
	srv, addr := testServerWithRealListener(t, 19185)

	sender := connectWebSocket(t, addr)
	leaver := connectWebSocket(t, addr)

	joinRoom(t, sender, "lab1")
	joinRoom(t, leaver, "lab1")

	leaver.Close()

	// Wait for the read pump to notice the close and unregister
	deadline := time.Now().Add(2 * time.Second)
	for srv.rooms.MemberCount("lab1") != 1 {
		if time.Now().After(deadline) {
			t.Fatalf("lab1 member count = %d, want 1 after disconnect", srv.rooms.MemberCount("lab1"))
		}
		time.Sleep(20 * time.Millisecond)
	}

	// Messaging into the room still works, with nothing coming back
	msg := WSMessage{
		Type:    WSTypeSendMessage,
		Payload: WSSendMessagePayload{Message: "anyone there", Room: "lab1"},
	}
	if err := sender.WriteJSON(msg); err != nil {
		t.Fatalf("write send_message: %v", err)
	}
	expectNoEnvelope(t, sender)
}

func TestServer_StartAndClose(t *testing.T) {
	log := logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stdout"}, "test")

	srv, err := New(Deps{
		Config: config.APIConfig{
			Host: "127.0.0.1",
			Port: 19186,
			Timeouts: config.APITimeoutConfig{
				Read:  5,
				Write: 5,
				Idle:  5,
			},
		},
		WS: config.WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Grid:    config.GridConfig{Size: 4, AddressEncoding: config.EncodingBase10},
		Logger:  log,
		Version: "test",
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	time.Sleep(100 * time.Millisecond)

	if err := srv.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error: %v", err)
	}

	if err := srv.Close(); err != nil {
		t.Errorf("Close() error: %v", err)
	}
}

// TestDeviceEventTopics_ResolveToKinds walks every event kind through the
// topic a sensor would publish to and back through the bridge's resolution,
// mirroring the mapping subscribeDeviceEvents applies to incoming messages.
func TestDeviceEventTopics_ResolveToKinds(t *testing.T) {
	topics := mqtt.Topics{}

	for _, kind := range relay.AllKinds() {
		topic := topics.DeviceEvent(string(kind))

		slug, ok := topics.EventKind(topic)
		if !ok {
			t.Fatalf("EventKind(%q) not recognised", topic)
		}

		resolved := relay.Kind(slug)
		if !resolved.IsValid() {
			t.Fatalf("kind slug %q from topic %q does not resolve to a valid kind", slug, topic)
		}
		if resolved != kind {
			t.Errorf("topic %q resolved to %q, want %q", topic, resolved, kind)
		}
	}
}

func TestNew_RequiresLogger(t *testing.T) {
	_, err := New(Deps{})
	if err == nil {
		t.Fatal("New() with no logger should fail")
	}
}
