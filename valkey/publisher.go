// Package valkey caches the latest breaker and protection relay state
// snapshots in Valkey/Redis, keyed by IED name, so a SCADA historian or
// dashboard can read current state without subscribing to the sampled
// value stream itself.
package valkey

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"subsv/config"
)

// joinKey joins key segments with colons, trimming leading/trailing
// colons from each segment to avoid empty key parts.
func joinKey(segments ...string) string {
	var parts []string
	for _, s := range segments {
		s = strings.Trim(s, ":")
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, ":")
}

// StateSnapshot is the JSON structure stored for one breaker or
// protection relay's current state.
type StateSnapshot struct {
	Name      string      `json:"name"`
	Kind      string      `json:"kind"` // "breaker", "distance", "differential"
	State     interface{} `json:"state"`
	Timestamp time.Time   `json:"timestamp"`
}

// Publisher caches state snapshots on a single Valkey server.
type Publisher struct {
	config  *config.ValkeyConfig
	client  *redis.Client
	running bool
	mu      sync.RWMutex
}

// NewPublisher creates a new Valkey publisher.
func NewPublisher(cfg *config.ValkeyConfig) *Publisher {
	return &Publisher{config: cfg}
}

// Start connects to the Valkey server.
func (p *Publisher) Start() error {
	p.mu.RLock()
	if p.running {
		p.mu.RUnlock()
		return nil
	}
	p.mu.RUnlock()

	opts := &redis.Options{
		Addr:         p.config.Address,
		Password:     p.config.Password,
		DB:           p.config.Database,
		DialTimeout:  3 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	}
	if p.config.UseTLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	client := redis.NewClient(opts)

	debugLog("Attempting to connect to Valkey at %s (DB: %d, TLS: %v)",
		p.config.Address, p.config.Database, p.config.UseTLS)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		debugLog("Valkey connection failed: %v", err)
		client.Close()
		return fmt.Errorf("failed to connect to Valkey at %s: %w", p.config.Address, err)
	}
	debugLog("Successfully connected to Valkey at %s", p.config.Address)

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		client.Close()
		return nil
	}
	p.client = client
	p.running = true
	return nil
}

// Stop disconnects from the Valkey server.
func (p *Publisher) Stop() error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = false
	client := p.client
	p.client = nil
	p.mu.Unlock()

	if client != nil {
		return client.Close()
	}
	return nil
}

// IsRunning returns whether the publisher is connected.
func (p *Publisher) IsRunning() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.running
}

// Config returns the publisher's configuration.
func (p *Publisher) Config() *config.ValkeyConfig {
	return p.config
}

// Address returns the server address.
func (p *Publisher) Address() string {
	scheme := "redis"
	if p.config.UseTLS {
		scheme = "rediss"
	}
	return fmt.Sprintf("%s://%s", scheme, p.config.Address)
}

// key builds "{prefix}:{name}:state" under the publisher's key prefix.
func (p *Publisher) key(name string) string {
	prefix := p.config.KeyPrefix
	if prefix == "" {
		prefix = "subsv"
	}
	return joinKey(prefix, name, "state")
}

// PutState caches a breaker/relay state snapshot, overwriting any prior
// value for the same name, and publishes it on a change channel if
// configured.
func (p *Publisher) PutState(name, kind string, state interface{}) error {
	p.mu.RLock()
	if !p.running || p.client == nil {
		p.mu.RUnlock()
		return nil
	}
	client := p.client
	cfg := p.config
	p.mu.RUnlock()

	msg := StateSnapshot{
		Name:      name,
		Kind:      kind,
		State:     state,
		Timestamp: time.Now().UTC(),
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal state snapshot: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	key := p.key(name)
	if cfg.KeyTTL > 0 {
		err = client.Set(ctx, key, data, cfg.KeyTTL).Err()
	} else {
		err = client.Set(ctx, key, data, 0).Err()
	}
	if err != nil {
		return fmt.Errorf("failed to set key: %w", err)
	}

	if cfg.PublishChanges {
		channel := joinKey(p.keyPrefix(), name, "changes")
		client.Publish(ctx, channel, data)
	}
	return nil
}

// GetState reads a cached state snapshot back, returning redis.Nil
// wrapped in an error if nothing has been cached for name yet.
func (p *Publisher) GetState(name string) (StateSnapshot, error) {
	p.mu.RLock()
	if !p.running || p.client == nil {
		p.mu.RUnlock()
		return StateSnapshot{}, fmt.Errorf("valkey: not connected")
	}
	client := p.client
	p.mu.RUnlock()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	data, err := client.Get(ctx, p.key(name)).Bytes()
	if err != nil {
		return StateSnapshot{}, err
	}

	var snap StateSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return StateSnapshot{}, fmt.Errorf("failed to unmarshal state snapshot: %w", err)
	}
	return snap, nil
}

func (p *Publisher) keyPrefix() string {
	if p.config.KeyPrefix == "" {
		return "subsv"
	}
	return p.config.KeyPrefix
}

var debugLogger DebugLogger

// DebugLogger interface for debug logging.
type DebugLogger interface {
	LogValkey(format string, args ...interface{})
}

// SetDebugLogger sets the debug logger.
func SetDebugLogger(logger DebugLogger) {
	debugLogger = logger
}

func debugLog(format string, args ...interface{}) {
	if debugLogger != nil {
		debugLogger.LogValkey(format, args...)
	}
}
