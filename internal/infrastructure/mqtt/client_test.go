package mqtt

import (
	"errors"
	"testing"
)

// Tests below exercise the broker-independent paths: input validation,
// disconnected-state errors, and topic builders. Round-trip behaviour is
// covered by integration tests against a live Mosquitto broker.

func TestCloseNil(t *testing.T) {
	client := &Client{}
	if err := client.Close(); err != nil {
		t.Errorf("Close() on unconnected client error = %v, want nil", err)
	}
}

func TestIsConnected_InitialState(t *testing.T) {
	client := &Client{}
	if client.IsConnected() {
		t.Error("IsConnected() = true on fresh client, want false")
	}
}

func TestPublish_Validation(t *testing.T) {
	client := &Client{subscriptions: make(map[string]subscription)}

	if err := client.Publish("", []byte("5"), 1, false); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("Publish(empty topic) error = %v, want ErrInvalidTopic", err)
	}
	if err := client.Publish("watchgrid/event/motion-detected", []byte("5"), 3, false); !errors.Is(err, ErrInvalidQoS) {
		t.Errorf("Publish(qos=3) error = %v, want ErrInvalidQoS", err)
	}
	if err := client.Publish("watchgrid/event/motion-detected", []byte("5"), 1, false); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Publish while disconnected error = %v, want ErrNotConnected", err)
	}
}

func TestSubscribe_Validation(t *testing.T) {
	client := &Client{subscriptions: make(map[string]subscription)}
	handler := func(string, []byte) error { return nil }

	if err := client.Subscribe("", 1, handler); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("Subscribe(empty topic) error = %v, want ErrInvalidTopic", err)
	}
	if err := client.Subscribe("watchgrid/event/+", 3, handler); !errors.Is(err, ErrInvalidQoS) {
		t.Errorf("Subscribe(qos=3) error = %v, want ErrInvalidQoS", err)
	}
	if err := client.Subscribe("watchgrid/event/+", 1, nil); !errors.Is(err, ErrSubscribeFailed) {
		t.Errorf("Subscribe(nil handler) error = %v, want ErrSubscribeFailed", err)
	}
	if err := client.Subscribe("watchgrid/event/+", 1, handler); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Subscribe while disconnected error = %v, want ErrNotConnected", err)
	}
}

func TestUnsubscribe_Validation(t *testing.T) {
	client := &Client{subscriptions: make(map[string]subscription)}

	if err := client.Unsubscribe(""); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("Unsubscribe(empty topic) error = %v, want ErrInvalidTopic", err)
	}
	if err := client.Unsubscribe("watchgrid/event/+"); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Unsubscribe while disconnected error = %v, want ErrNotConnected", err)
	}
}

func TestSubscriptionCount_Empty(t *testing.T) {
	client := &Client{subscriptions: make(map[string]subscription)}

	if got := client.SubscriptionCount(); got != 0 {
		t.Errorf("SubscriptionCount() = %d, want 0", got)
	}
	if client.HasSubscription("watchgrid/event/+") {
		t.Error("HasSubscription() = true, want false")
	}
}

func TestTopicBuilders(t *testing.T) {
	topics := Topics{}

	tests := []struct {
		name string
		got  string
		want string
	}{
		{
			name: "device event",
			got:  topics.DeviceEvent("motion-detected"),
			want: "watchgrid/event/motion-detected",
		},
		{
			name: "all device events",
			got:  topics.AllDeviceEvents(),
			want: "watchgrid/event/+",
		},
		{
			name: "system status",
			got:  topics.SystemStatus(),
			want: "watchgrid/system/status",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}

func TestTopics_EventKind(t *testing.T) {
	topics := Topics{}

	tests := []struct {
		topic    string
		wantKind string
		wantOK   bool
	}{
		{topic: "watchgrid/event/motion-detected", wantKind: "motion-detected", wantOK: true},
		{topic: "watchgrid/event/connection-finished", wantKind: "connection-finished", wantOK: true},
		{topic: "watchgrid/system/status", wantOK: false},
		{topic: "watchgrid/event/", wantOK: false},
		{topic: "watchgrid/event/a/b", wantOK: false},
	}

	for _, tt := range tests {
		kind, ok := topics.EventKind(tt.topic)
		if ok != tt.wantOK || kind != tt.wantKind {
			t.Errorf("EventKind(%q) = (%q, %v), want (%q, %v)", tt.topic, kind, ok, tt.wantKind, tt.wantOK)
		}
	}
}
