// Package mqtt bridges breaker and protection relay events onto an MQTT
// broker for SCADA/historian integration. It is a one-way telemetry
// side-channel over IP: it never feeds values back into the sampled
// value stream, which stays Layer-2-only.
package mqtt

import (
	"crypto/tls"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"subsv/config"
)

// DebugLogger is an interface for debug logging.
type DebugLogger interface {
	LogMQTT(format string, args ...interface{})
}

var debugLog DebugLogger

// SetDebugLogger sets the debug logger for MQTT.
func SetDebugLogger(logger DebugLogger) {
	debugLog = logger
}

func logMQTT(format string, args ...interface{}) {
	if debugLog != nil {
		debugLog.LogMQTT(format, args...)
	}
}

// TripEvent is the JSON structure published when a breaker or protection
// relay trips.
type TripEvent struct {
	Source    string      `json:"source"`    // breaker or relay name
	Kind      string      `json:"kind"`      // "breaker", "distance", "differential"
	Detail    interface{} `json:"detail"`     // gateway.BreakerSnapshot, protection.DistanceResult, ...
	Timestamp string      `json:"timestamp"`
}

// SampleGapEvent is published when a subscriber observes an SmpCnt
// discontinuity larger than expected, signalling a dropped or reordered
// sampled value frame.
type SampleGapEvent struct {
	SvID      string `json:"sv_id"`
	Expected  uint16 `json:"expected"`
	Got       uint16 `json:"got"`
	Timestamp string `json:"timestamp"`
}

// Publisher handles an MQTT connection and publishes telemetry events to
// a single broker.
type Publisher struct {
	config  *config.MQTTConfig
	client  pahomqtt.Client
	running bool
	mu      sync.RWMutex
}

// NewPublisher creates a new MQTT publisher for a single broker.
func NewPublisher(cfg *config.MQTTConfig) *Publisher {
	return &Publisher{config: cfg}
}

// Name returns the publisher's name.
func (p *Publisher) Name() string {
	return p.config.Name
}

// IsRunning returns whether the publisher is connected.
func (p *Publisher) IsRunning() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.running
}

// Start connects to the MQTT broker.
func (p *Publisher) Start() error {
	p.mu.RLock()
	if p.running {
		p.mu.RUnlock()
		return nil
	}
	p.mu.RUnlock()

	opts := pahomqtt.NewClientOptions()

	if p.config.UseTLS {
		opts.AddBroker(fmt.Sprintf("ssl://%s:%d", p.config.Broker, p.config.Port))
		opts.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	} else {
		opts.AddBroker(fmt.Sprintf("tcp://%s:%d", p.config.Broker, p.config.Port))
	}

	opts.SetClientID(p.config.ClientID)
	if p.config.Username != "" {
		opts.SetUsername(p.config.Username)
		opts.SetPassword(p.config.Password)
	}

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetKeepAlive(30 * time.Second)

	client := pahomqtt.NewClient(opts)
	logMQTT("Attempting to connect to MQTT broker %s:%d", p.config.Broker, p.config.Port)

	token := client.Connect()
	if !token.WaitTimeout(5 * time.Second) {
		logMQTT("MQTT connection timeout")
		return fmt.Errorf("connection timeout")
	}
	if token.Error() != nil {
		logMQTT("MQTT connection error: %v", token.Error())
		return token.Error()
	}
	logMQTT("Successfully connected to MQTT broker %s:%d", p.config.Broker, p.config.Port)

	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		client.Disconnect(100)
		return nil
	}
	p.client = client
	p.running = true
	p.mu.Unlock()

	return nil
}

// Stop disconnects from the MQTT broker.
func (p *Publisher) Stop() {
	p.mu.Lock()
	if !p.running || p.client == nil {
		p.mu.Unlock()
		return
	}
	p.running = false
	client := p.client
	p.client = nil
	p.mu.Unlock()

	client.Disconnect(500)
}

// topic builds "{prefix}/{kind}/{name}" under the publisher's configured
// topic prefix.
func (p *Publisher) topic(kind, name string) string {
	prefix := p.config.TopicPrefix
	if prefix == "" {
		prefix = "subsv"
	}
	return fmt.Sprintf("%s/%s/%s", prefix, kind, name)
}

// PublishTrip publishes a breaker or relay trip event.
func (p *Publisher) PublishTrip(evt TripEvent) bool {
	evt.Timestamp = time.Now().UTC().Format(time.RFC3339Nano)
	return p.publishJSON(p.topic(evt.Kind, evt.Source), evt)
}

// PublishSampleGap publishes an SmpCnt discontinuity alarm.
func (p *Publisher) PublishSampleGap(evt SampleGapEvent) bool {
	evt.Timestamp = time.Now().UTC().Format(time.RFC3339Nano)
	return p.publishJSON(p.topic("gap", evt.SvID), evt)
}

func (p *Publisher) publishJSON(topic string, v interface{}) bool {
	p.mu.RLock()
	running := p.running
	client := p.client
	p.mu.RUnlock()

	if !running || client == nil {
		return false
	}

	payload, err := json.Marshal(v)
	if err != nil {
		logMQTT("marshal error for %s: %v", topic, err)
		return false
	}

	token := client.Publish(topic, 1, false, payload)
	if !token.WaitTimeout(2 * time.Second) {
		logMQTT("publish timeout for %s", topic)
		return false
	}
	if token.Error() != nil {
		logMQTT("publish error for %s: %v", topic, token.Error())
		return false
	}
	return true
}

// Address returns the broker address string.
func (p *Publisher) Address() string {
	if p.config.UseTLS {
		return fmt.Sprintf("ssl://%s:%d", p.config.Broker, p.config.Port)
	}
	return fmt.Sprintf("tcp://%s:%d", p.config.Broker, p.config.Port)
}

// Config returns the publisher's configuration.
func (p *Publisher) Config() *config.MQTTConfig {
	return p.config
}

// Manager manages multiple MQTT publishers, one per configured broker.
type Manager struct {
	publishers map[string]*Publisher
	mu         sync.RWMutex
}

// NewManager creates a new MQTT manager.
func NewManager() *Manager {
	return &Manager{publishers: make(map[string]*Publisher)}
}

// Add adds a publisher to the manager.
func (m *Manager) Add(pub *Publisher) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.publishers[pub.Name()] = pub
}

// Remove removes a publisher by name, stopping it first.
func (m *Manager) Remove(name string) {
	m.mu.Lock()
	pub, exists := m.publishers[name]
	if exists {
		delete(m.publishers, name)
	}
	m.mu.Unlock()

	if exists {
		pub.Stop()
	}
}

// Get returns a publisher by name.
func (m *Manager) Get(name string) *Publisher {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.publishers[name]
}

// List returns all publishers.
func (m *Manager) List() []*Publisher {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]*Publisher, 0, len(m.publishers))
	for _, pub := range m.publishers {
		result = append(result, pub)
	}
	return result
}

// LoadFromConfig creates publishers from configuration.
func (m *Manager) LoadFromConfig(cfgs []config.MQTTConfig) {
	for i := range cfgs {
		m.Add(NewPublisher(&cfgs[i]))
	}
}

// StartAll starts every publisher configured as enabled. Returns the
// number of publishers successfully started.
func (m *Manager) StartAll() int {
	m.mu.RLock()
	pubs := make([]*Publisher, 0, len(m.publishers))
	for _, pub := range m.publishers {
		pubs = append(pubs, pub)
	}
	m.mu.RUnlock()

	started := 0
	for _, pub := range pubs {
		if pub.config.Enabled && !pub.IsRunning() {
			if err := pub.Start(); err != nil {
				logMQTT("Failed to auto-start %s: %v", pub.Name(), err)
				continue
			}
			started++
		}
	}
	return started
}

// StopAll stops all publishers.
func (m *Manager) StopAll() {
	m.mu.RLock()
	pubs := make([]*Publisher, 0, len(m.publishers))
	for _, pub := range m.publishers {
		pubs = append(pubs, pub)
	}
	m.mu.RUnlock()

	for _, pub := range pubs {
		pub.Stop()
	}
}

// PublishTrip fans a trip event out to every running publisher.
func (m *Manager) PublishTrip(evt TripEvent) {
	m.mu.RLock()
	pubs := make([]*Publisher, 0, len(m.publishers))
	for _, pub := range m.publishers {
		pubs = append(pubs, pub)
	}
	m.mu.RUnlock()

	for _, pub := range pubs {
		if pub.IsRunning() {
			pub.PublishTrip(evt)
		}
	}
}

// PublishSampleGap fans a sample-gap alarm out to every running publisher.
func (m *Manager) PublishSampleGap(evt SampleGapEvent) {
	m.mu.RLock()
	pubs := make([]*Publisher, 0, len(m.publishers))
	for _, pub := range m.publishers {
		pubs = append(pubs, pub)
	}
	m.mu.RUnlock()

	for _, pub := range pubs {
		if pub.IsRunning() {
			pub.PublishSampleGap(evt)
		}
	}
}

// AnyRunning returns true if any publisher is running.
func (m *Manager) AnyRunning() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, pub := range m.publishers {
		if pub.IsRunning() {
			return true
		}
	}
	return false
}
