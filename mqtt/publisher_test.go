package mqtt

import (
	"testing"

	"subsv/config"
)

func TestNewPublisher(t *testing.T) {
	cfg := &config.MQTTConfig{Name: "test", Broker: "localhost", Port: 1883, Enabled: true}
	pub := NewPublisher(cfg)

	if pub.Name() != "test" {
		t.Errorf("Name() = %q, want test", pub.Name())
	}
	if pub.IsRunning() {
		t.Error("new publisher should not be running")
	}
}

func TestPublisherAddress(t *testing.T) {
	tests := []struct {
		name   string
		cfg    config.MQTTConfig
		expect string
	}{
		{"tcp", config.MQTTConfig{Broker: "localhost", Port: 1883}, "tcp://localhost:1883"},
		{"tls", config.MQTTConfig{Broker: "localhost", Port: 8883, UseTLS: true}, "ssl://localhost:8883"},
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

func TestPublisherTopic(t *testing.T) {
	cfg := &config.MQTTConfig{Name: "test", TopicPrefix: "plant1"}
	pub := NewPublisher(cfg)

	if got := pub.topic("breaker", "CB1"); got != "plant1/breaker/CB1" {
		t.Errorf("topic() = %q, want plant1/breaker/CB1", got)
	}
}

func TestPublisherTopicDefaultsPrefix(t *testing.T) {
	cfg := &config.MQTTConfig{Name: "test"}
	pub := NewPublisher(cfg)

	if got := pub.topic("distance", "Z1"); got != "subsv/distance/Z1" {
		t.Errorf("topic() = %q, want subsv/distance/Z1", got)
	}
}

func TestPublishBeforeStartReturnsFalse(t *testing.T) {
	cfg := &config.MQTTConfig{Name: "test", Broker: "localhost", Port: 1883}
	pub := NewPublisher(cfg)

	if pub.PublishTrip(TripEvent{Source: "CB1", Kind: "breaker"}) {
		t.Error("PublishTrip() before Start() should return false")
	}
	if pub.PublishSampleGap(SampleGapEvent{SvID: "IED1LD0/MSVCB01"}) {
		t.Error("PublishSampleGap() before Start() should return false")
	}
}

func TestManagerAddGetRemove(t *testing.T) {
	m := NewManager()
	cfg := &config.MQTTConfig{Name: "broker1", Broker: "localhost", Port: 1883}
	m.Add(NewPublisher(cfg))

	if got := m.Get("broker1"); got == nil {
		t.Fatal("Get(broker1) = nil, want found")
	}
	if len(m.List()) != 1 {
		t.Errorf("List() len = %d, want 1", len(m.List()))
	}

	m.Remove("broker1")
	if got := m.Get("broker1"); got != nil {
		t.Errorf("Get(broker1) = %+v after Remove, want nil", got)
	}
}

func TestManagerLoadFromConfig(t *testing.T) {
	m := NewManager()
	cfgs := []config.MQTTConfig{
		{Name: "a", Broker: "localhost", Port: 1883},
		{Name: "b", Broker: "localhost", Port: 1884},
	}
	m.LoadFromConfig(cfgs)

	if len(m.List()) != 2 {
		t.Errorf("List() len = %d, want 2", len(m.List()))
	}
}

func TestManagerAnyRunningFalseInitially(t *testing.T) {
	m := NewManager()
	m.Add(NewPublisher(&config.MQTTConfig{Name: "a", Broker: "localhost", Port: 1883}))

	if m.AnyRunning() {
		t.Error("AnyRunning() should be false before Start")
	}
}
