// Package gateway aggregates the breaker models and protection relays
// running inside one substation gateway process so the status dashboard
// and telemetry bridges can look them up by name.
package gateway

import (
	"fmt"
	"sync"

	"subsv/breaker"
	"subsv/config"
	"subsv/kafka"
	"subsv/logging"
	"subsv/mqtt"
	"subsv/protection"
	"subsv/valkey"
)

// Gateway holds the live breaker and protection relay instances for a
// running gateway, plus its configuration and telemetry bridge managers.
type Gateway struct {
	cfg        *config.Config
	configPath string

	mu           sync.RWMutex
	breakers     map[string]*breaker.Model
	distance     map[string]*protection.DistanceRelay
	differential map[string]*protection.DifferentialRelay

	mqttMgr   *mqtt.Manager
	kafkaMgr  *kafka.Manager
	valkeyMgr *valkey.Manager

	audit *logging.FileLogger
}

// New creates an empty gateway bound to the given configuration.
func New(cfg *config.Config, configPath string) *Gateway {
	return &Gateway{
		cfg:          cfg,
		configPath:   configPath,
		breakers:     make(map[string]*breaker.Model),
		distance:     make(map[string]*protection.DistanceRelay),
		differential: make(map[string]*protection.DifferentialRelay),
		mqttMgr:      mqtt.NewManager(),
		kafkaMgr:     kafka.NewManager(),
		valkeyMgr:    valkey.NewManager(),
	}
}

// GetConfig returns the gateway's configuration.
func (g *Gateway) GetConfig() *config.Config { return g.cfg }

// GetConfigPath returns the path the configuration was loaded from.
func (g *Gateway) GetConfigPath() string { return g.configPath }

// GetMQTTMgr returns the MQTT telemetry bridge manager.
func (g *Gateway) GetMQTTMgr() *mqtt.Manager { return g.mqttMgr }

// GetKafkaMgr returns the Kafka telemetry bridge manager.
func (g *Gateway) GetKafkaMgr() *kafka.Manager { return g.kafkaMgr }

// GetValkeyMgr returns the Valkey state-cache manager.
func (g *Gateway) GetValkeyMgr() *valkey.Manager { return g.valkeyMgr }

// SetAuditLogger attaches a file logger that records every breaker state
// transition and every protection relay trip handled by this gateway,
// independent of whether any telemetry bridge is connected. Pass nil to
// stop logging.
func (g *Gateway) SetAuditLogger(l *logging.FileLogger) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.audit = l
}

func (g *Gateway) logAudit(format string, args ...interface{}) {
	g.mu.RLock()
	l := g.audit
	g.mu.RUnlock()
	if l != nil {
		l.Log(format, args...)
	}
}

// AddBreaker registers a breaker model under name, replacing any prior
// registration with the same name, and installs an OnStateChange hook
// that records every transition to the audit log.
func (g *Gateway) AddBreaker(name string, m *breaker.Model) {
	g.mu.Lock()
	g.breakers[name] = m
	g.mu.Unlock()

	m.OnStateChange(func(oldState, newState breaker.State) {
		g.logAudit("breaker %s: %s -> %s", name, oldState, newState)

		snap := BreakerSnapshot{
			Name:       name,
			State:      newState.String(),
			CurrentA:   m.GetCurrent(),
			Overloaded: m.IsOverloaded(),
			Locked:     m.IsLocked(),
		}
		g.mqttMgr.PublishTrip(mqtt.TripEvent{Source: name, Kind: "breaker", Detail: snap})
		g.kafkaMgr.PublishTrip(name, "breaker", snap)
		g.valkeyMgr.PutState(name, "breaker", snap)
	})
}

// Breaker returns the named breaker model, or nil if not registered.
func (g *Gateway) Breaker(name string) *breaker.Model {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.breakers[name]
}

// BreakerNames returns the names of all registered breakers.
func (g *Gateway) BreakerNames() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	names := make([]string, 0, len(g.breakers))
	for name := range g.breakers {
		names = append(names, name)
	}
	return names
}

// AddDistanceRelay registers a distance relay under name and installs an
// OnTrip hook that records the zone and measured impedance to the audit
// log.
func (g *Gateway) AddDistanceRelay(name string, r *protection.DistanceRelay) {
	g.mu.Lock()
	g.distance[name] = r
	g.mu.Unlock()

	r.OnTrip(func(res protection.DistanceResult) {
		g.logAudit("distance relay %s: zone1=%v zone2=%v zone3=%v impedance=%.2f angle=%.3f",
			name, res.Zone1Trip, res.Zone2Trip, res.Zone3Trip, res.MeasuredImpedanceOhm, res.MeasuredAngleRad)

		g.mqttMgr.PublishTrip(mqtt.TripEvent{Source: name, Kind: "distance", Detail: res})
		g.kafkaMgr.PublishTrip(name, "distance", res)
		g.valkeyMgr.PutState(name, "distance", res)
	})
}

// DistanceRelay returns the named distance relay, or nil if not registered.
func (g *Gateway) DistanceRelay(name string) *protection.DistanceRelay {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.distance[name]
}

// AddDifferentialRelay registers a differential relay under name and
// installs an OnTrip hook that records the operating/restraint currents
// to the audit log.
func (g *Gateway) AddDifferentialRelay(name string, r *protection.DifferentialRelay) {
	g.mu.Lock()
	g.differential[name] = r
	g.mu.Unlock()

	r.OnTrip(func(res protection.DifferentialResult) {
		g.logAudit("differential relay %s: operating=%.2f restraint=%.2f instantaneous=%v",
			name, res.OperatingCurrentA, res.RestraintCurrentA, res.Instantaneous)

		g.mqttMgr.PublishTrip(mqtt.TripEvent{Source: name, Kind: "differential", Detail: res})
		g.kafkaMgr.PublishTrip(name, "differential", res)
		g.valkeyMgr.PutState(name, "differential", res)
	})
}

// DifferentialRelay returns the named differential relay, or nil if not
// registered.
func (g *Gateway) DifferentialRelay(name string) *protection.DifferentialRelay {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.differential[name]
}

// ProtectionNames returns the names of all registered protection relays,
// distance and differential combined, deduplicated.
func (g *Gateway) ProtectionNames() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	seen := make(map[string]bool)
	names := make([]string, 0, len(g.distance)+len(g.differential))
	for name := range g.distance {
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	for name := range g.differential {
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	return names
}

// BreakerSnapshot is a JSON-friendly view of one breaker's current state.
type BreakerSnapshot struct {
	Name       string  `json:"name"`
	State      string  `json:"state"`
	CurrentA   float64 `json:"current_a"`
	Overloaded bool    `json:"overloaded"`
	Locked     bool    `json:"locked"`
}

// ProtectionSnapshot is a JSON-friendly view of one protection relay:
// its kind, its enabled flag, and (in Last) its current settings.
type ProtectionSnapshot struct {
	Name    string      `json:"name"`
	Kind    string      `json:"kind"` // "distance" or "differential"
	Enabled bool        `json:"enabled"`
	Last    interface{} `json:"last,omitempty"`
}

// BreakerSnapshots returns a snapshot of every registered breaker.
func (g *Gateway) BreakerSnapshots() []BreakerSnapshot {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]BreakerSnapshot, 0, len(g.breakers))
	for name, m := range g.breakers {
		out = append(out, BreakerSnapshot{
			Name:       name,
			State:      m.GetState().String(),
			CurrentA:   m.GetCurrent(),
			Overloaded: m.IsOverloaded(),
			Locked:     m.IsLocked(),
		})
	}
	return out
}

// ProtectionSnapshots returns a snapshot of every registered protection
// relay's enabled/settings state.
func (g *Gateway) ProtectionSnapshots() []ProtectionSnapshot {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]ProtectionSnapshot, 0, len(g.distance)+len(g.differential))
	for name, r := range g.distance {
		out = append(out, ProtectionSnapshot{Name: name, Kind: "distance", Enabled: r.Enabled(), Last: r.Settings()})
	}
	for name, r := range g.differential {
		out = append(out, ProtectionSnapshot{Name: name, Kind: "differential", Enabled: r.Enabled(), Last: r.Settings()})
	}
	return out
}

// FindBreakerSnapshot returns the snapshot for one named breaker.
func (g *Gateway) FindBreakerSnapshot(name string) (BreakerSnapshot, error) {
	g.mu.RLock()
	m, ok := g.breakers[name]
	g.mu.RUnlock()
	if !ok {
		return BreakerSnapshot{}, fmt.Errorf("breaker not found: %s", name)
	}
	return BreakerSnapshot{
		Name:       name,
		State:      m.GetState().String(),
		CurrentA:   m.GetCurrent(),
		Overloaded: m.IsOverloaded(),
		Locked:     m.IsLocked(),
	}, nil
}

// FindProtectionSnapshot returns the snapshot for one named protection
// relay, preferring a distance relay if both kinds share the name.
func (g *Gateway) FindProtectionSnapshot(name string) (ProtectionSnapshot, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if r, ok := g.distance[name]; ok {
		return ProtectionSnapshot{Name: name, Kind: "distance", Enabled: r.Enabled(), Last: r.Settings()}, nil
	}
	if r, ok := g.differential[name]; ok {
		return ProtectionSnapshot{Name: name, Kind: "differential", Enabled: r.Enabled(), Last: r.Settings()}, nil
	}
	return ProtectionSnapshot{}, fmt.Errorf("protection relay not found: %s", name)
}
