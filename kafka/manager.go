package kafka

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// TripMessage is the JSON structure published to Kafka when a breaker or
// protection relay trips.
type TripMessage struct {
	Source    string      `json:"source"`
	Kind      string      `json:"kind"`
	Detail    interface{} `json:"detail"`
	Timestamp string      `json:"timestamp"`
}

// GapMessage is the JSON structure published to Kafka for a sample
// counter discontinuity.
type GapMessage struct {
	SvID      string `json:"sv_id"`
	Expected  uint16 `json:"expected"`
	Got       uint16 `json:"got"`
	Timestamp string `json:"timestamp"`
}

// publishJob represents a pending Kafka publish operation. Exactly one of
// trip/gap is set, matching the event that enqueued it.
type publishJob struct {
	producer *Producer
	topic    string
	trip     *TripMessage
	gap      *GapMessage
}

// Manager manages multiple Kafka producer connections.
type Manager struct {
	producers map[string]*Producer
	mu        sync.RWMutex

	// Worker pool for bounded publish goroutines
	publishQueue chan publishJob
	wg           sync.WaitGroup
	stopChan     chan struct{}
	started      bool
}

// MaxPublishWorkers is the maximum number of concurrent publish goroutines.
const MaxPublishWorkers = 10

// MaxPublishQueueSize is the maximum number of pending publish jobs.
const MaxPublishQueueSize = 1000

// NewManager creates a new Kafka manager.
func NewManager() *Manager {
	m := &Manager{
		producers:    make(map[string]*Producer),
		publishQueue: make(chan publishJob, MaxPublishQueueSize),
		stopChan:     make(chan struct{}),
	}
	m.startWorkers()
	return m
}

func (m *Manager) startWorkers() {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return
	}
	m.started = true
	m.mu.Unlock()

	for i := 0; i < MaxPublishWorkers; i++ {
		m.wg.Add(1)
		go m.publishWorker()
	}
}

func (m *Manager) publishWorker() {
	defer m.wg.Done()

	for {
		select {
		case <-m.stopChan:
			return
		case job, ok := <-m.publishQueue:
			if !ok {
				return
			}
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			var err error
			switch {
			case job.trip != nil:
				err = job.producer.ProduceTrip(ctx, job.topic, *job.trip)
			case job.gap != nil:
				err = job.producer.ProduceGap(ctx, job.topic, *job.gap)
			}
			if err != nil {
				logKafka("Failed to publish to %s: %v", job.topic, err)
			}
			cancel()
		}
	}
}

// AddCluster adds a new Kafka cluster configuration.
func (m *Manager) AddCluster(config *Config) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.producers[config.Name]; exists {
		return
	}
	m.producers[config.Name] = NewProducer(config)
}

// RemoveCluster removes a Kafka cluster and disconnects.
func (m *Manager) RemoveCluster(name string) {
	m.mu.Lock()
	producer, exists := m.producers[name]
	if exists {
		delete(m.producers, name)
	}
	m.mu.Unlock()

	if exists && producer != nil {
		producer.Disconnect()
	}
}

// GetProducer returns the producer for the named cluster.
func (m *Manager) GetProducer(name string) *Producer {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.producers[name]
}

// ListClusters returns all cluster names.
func (m *Manager) ListClusters() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.producers))
	for name := range m.producers {
		names = append(names, name)
	}
	return names
}

// Connect connects to the named Kafka cluster.
func (m *Manager) Connect(name string) error {
	m.mu.RLock()
	producer, exists := m.producers[name]
	m.mu.RUnlock()

	if !exists {
		return fmt.Errorf("kafka cluster not found: %s", name)
	}
	return producer.Connect()
}

// Disconnect disconnects from the named Kafka cluster.
func (m *Manager) Disconnect(name string) {
	m.mu.RLock()
	producer, exists := m.producers[name]
	m.mu.RUnlock()

	if exists && producer != nil {
		producer.Disconnect()
	}
}

// ConnectEnabled connects to all enabled Kafka clusters.
func (m *Manager) ConnectEnabled() {
	m.mu.RLock()
	producers := make([]*Producer, 0)
	for _, p := range m.producers {
		if p.config.Enabled {
			producers = append(producers, p)
		}
	}
	m.mu.RUnlock()

	for _, p := range producers {
		go p.Connect()
	}
}

// StopAll disconnects from all Kafka clusters and stops workers.
func (m *Manager) StopAll() {
	m.mu.Lock()
	if !m.started {
		m.mu.Unlock()
		m.mu.RLock()
		producers := make([]*Producer, 0, len(m.producers))
		for _, p := range m.producers {
			producers = append(producers, p)
		}
		m.mu.RUnlock()
		for _, p := range producers {
			p.Disconnect()
		}
		return
	}

	oldStopChan := m.stopChan
	m.stopChan = make(chan struct{})
	m.publishQueue = make(chan publishJob, MaxPublishQueueSize)
	m.started = false
	m.mu.Unlock()

	close(oldStopChan)

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		logKafka("Timeout waiting for publish workers to stop")
	}

	m.mu.RLock()
	producers := make([]*Producer, 0, len(m.producers))
	for _, p := range m.producers {
		producers = append(producers, p)
	}
	m.mu.RUnlock()

	for _, p := range producers {
		p.Disconnect()
	}
}

// ProduceTrip sends a trip event to a topic on the named cluster.
func (m *Manager) ProduceTrip(ctx context.Context, clusterName, topic string, msg TripMessage) error {
	m.mu.RLock()
	producer, exists := m.producers[clusterName]
	m.mu.RUnlock()

	if !exists {
		return fmt.Errorf("kafka cluster not found: %s", clusterName)
	}
	return producer.ProduceTrip(ctx, topic, msg)
}

// GetClusterStatus returns the status of a specific cluster.
func (m *Manager) GetClusterStatus(name string) (ConnectionStatus, error) {
	m.mu.RLock()
	producer, exists := m.producers[name]
	m.mu.RUnlock()

	if !exists {
		return StatusDisconnected, fmt.Errorf("cluster not found")
	}
	return producer.GetStatus(), producer.GetError()
}

// LoadFromConfigs loads multiple cluster configurations.
func (m *Manager) LoadFromConfigs(configs []Config) {
	for i := range configs {
		m.AddCluster(&configs[i])
	}
}

// DebugLogger is an interface for debug logging.
type DebugLogger interface {
	LogKafka(format string, args ...interface{})
}

var debugLog DebugLogger

// SetDebugLogger sets the debug logger for Kafka.
func SetDebugLogger(logger DebugLogger) {
	debugLog = logger
}

func logKafka(format string, args ...interface{}) {
	if debugLog != nil {
		debugLog.LogKafka(format, args...)
	}
}

// PublishTrip streams a breaker/relay trip event to every connected
// cluster that has PublishChanges enabled.
func (m *Manager) PublishTrip(source, kind string, detail interface{}) {
	m.startWorkers()

	msg := TripMessage{
		Source:    source,
		Kind:      kind,
		Detail:    detail,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	}
	m.enqueue(func(p *Producer) publishJob {
		return publishJob{producer: p, topic: p.config.Topic, trip: &msg}
	})
}

// PublishSampleGap streams an SmpCnt discontinuity alarm to every
// connected cluster that has PublishChanges enabled.
func (m *Manager) PublishSampleGap(svID string, expected, got uint16) {
	m.startWorkers()

	msg := GapMessage{
		SvID:      svID,
		Expected:  expected,
		Got:       got,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	}
	m.enqueue(func(p *Producer) publishJob {
		return publishJob{producer: p, topic: p.config.Topic, gap: &msg}
	})
}

func (m *Manager) enqueue(build func(p *Producer) publishJob) {
	m.mu.RLock()
	producers := make([]*Producer, 0, len(m.producers))
	for _, p := range m.producers {
		producers = append(producers, p)
	}
	m.mu.RUnlock()

	for _, p := range producers {
		if p.GetStatus() != StatusConnected {
			continue
		}
		if !p.config.PublishChanges || p.config.Topic == "" {
			continue
		}

		job := build(p)
		select {
		case m.publishQueue <- job:
		default:
			logKafka("publish queue full, dropping event for topic %s", p.config.Topic)
		}
	}
}

// AnyPublishing returns true if any cluster has PublishChanges enabled and is connected.
func (m *Manager) AnyPublishing() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, p := range m.producers {
		if p.GetStatus() == StatusConnected && p.config.PublishChanges && p.config.Topic != "" {
			return true
		}
	}
	return false
}
