package valkey

import (
	"testing"

	"subsv/config"
)

func TestJoinKey(t *testing.T) {
	tests := []struct {
		segments []string
		want     string
	}{
		{[]string{"subsv", "CB1", "state"}, "subsv:CB1:state"},
		{[]string{":subsv:", "CB1", ""}, "subsv:CB1"},
		{[]string{"", "", ""}, ""},
	}
	for _, tc := range tests {
		if got := joinKey(tc.segments...); got != tc.want {
			t.Errorf("joinKey(%v) = %q, want %q", tc.segments, got, tc.want)
		}
	}
}

func TestNewPublisherNotRunning(t *testing.T) {
	cfg := &config.ValkeyConfig{Name: "test", Address: "localhost:6379"}
	pub := NewPublisher(cfg)

	if pub.IsRunning() {
		t.Error("new publisher should not be running")
	}
}

func TestPublisherAddressScheme(t *testing.T) {
	tests := []struct {
		name   string
		cfg    config.ValkeyConfig
		expect string
	}{
		{"plain", config.ValkeyConfig{Address: "localhost:6379"}, "redis://localhost:6379"},
		{"tls", config.ValkeyConfig{Address: "localhost:6380", UseTLS: true}, "rediss://localhost:6380"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			pub := NewPublisher(&tc.cfg)
			if got := pub.Address(); got != tc.expect {
				t.Errorf("Address() = %q, want %q", got, tc.expect)
			}
		})
	}
}

func TestPublisherKeyUsesPrefix(t *testing.T) {
	pub := NewPublisher(&config.ValkeyConfig{Name: "test", KeyPrefix: "plant1"})
	if got := pub.key("CB1"); got != "plant1:CB1:state" {
		t.Errorf("key() = %q, want plant1:CB1:state", got)
	}
}

func TestPublisherKeyDefaultsPrefix(t *testing.T) {
	pub := NewPublisher(&config.ValkeyConfig{Name: "test"})
	if got := pub.key("CB1"); got != "subsv:CB1:state" {
		t.Errorf("key() = %q, want subsv:CB1:state", got)
	}
}

func TestPutStateBeforeStartIsNoop(t *testing.T) {
	pub := NewPublisher(&config.ValkeyConfig{Name: "test", Address: "localhost:6379"})
	if err := pub.PutState("CB1", "breaker", "OPEN"); err != nil {
		t.Errorf("PutState() before Start() = %v, want nil (silent no-op)", err)
	}
}

func TestGetStateBeforeStartErrors(t *testing.T) {
	pub := NewPublisher(&config.ValkeyConfig{Name: "test", Address: "localhost:6379"})
	if _, err := pub.GetState("CB1"); err == nil {
		t.Error("GetState() before Start() = nil error, want error")
	}
}
