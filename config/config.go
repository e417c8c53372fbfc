// Package config handles configuration persistence for the substation
// gateway: IED model definitions, breaker and protection settings, and
// the telemetry bridges that mirror trip events off the wire.
package config

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	validator "gopkg.in/validator.v2"
	"gopkg.in/yaml.v3"
)

// ConfigListenerID is a unique identifier for a config change listener.
type ConfigListenerID string

// Config holds the complete gateway configuration.
type Config struct {
	Namespace  string             `yaml:"namespace" validate:"nonzero"`
	Interface  string             `yaml:"interface"`
	IEDs       []IEDConfig        `yaml:"ieds"`
	Breakers   []BreakerConfig    `yaml:"breakers,omitempty"`
	Protection []ProtectionConfig `yaml:"protection,omitempty"`
	Web        WebConfig          `yaml:"web"`
	MQTT       []MQTTConfig       `yaml:"mqtt,omitempty"`
	Valkey     []ValkeyConfig     `yaml:"valkey,omitempty"`
	Kafka      []KafkaConfig      `yaml:"kafka,omitempty"`
	PollRate   time.Duration      `yaml:"poll_rate"`

	// Data mutex protects all config fields against concurrent access.
	// Callers that modify config should Lock(), modify, then call UnlockAndSave().
	// Save() acquires the lock internally for callers that don't hold it.
	dataMu sync.Mutex `yaml:"-"`

	changeListeners map[ConfigListenerID]func() `yaml:"-"`
	listenersMu     sync.RWMutex                `yaml:"-"`
	listenerCounter uint64                      `yaml:"-"`
}

// IEDConfig describes one IED's logical nodes and sampled value control
// blocks as persisted YAML, mirrored into a model.IedModel at load time.
type IEDConfig struct {
	Name         string     `yaml:"name" validate:"nonzero"`
	LogicalNodes []LNConfig `yaml:"logical_nodes"`
}

// LNConfig describes one logical node's SVCBs.
type LNConfig struct {
	Name  string       `yaml:"name" validate:"nonzero"`
	SVCBs []SVCBConfig `yaml:"svcbs"`
}

// SVCBConfig is the persisted form of a model.SVCB.
type SVCBConfig struct {
	Name             string  `yaml:"name" validate:"nonzero"`
	MulticastAddress string  `yaml:"multicast_address" validate:"nonzero"`
	AppID            int     `yaml:"app_id" validate:"min=16384,max=32767"`
	SmpRate          int     `yaml:"smp_rate" validate:"min=1"`
	DataSet          string  `yaml:"data_set,omitempty"`
	ConfRev          uint32  `yaml:"conf_rev,omitempty"`
	VlanID           uint16  `yaml:"vlan_id,omitempty"`
	UserPriority     uint8   `yaml:"user_priority,omitempty" validate:"max=7"`
	Simulate         bool    `yaml:"simulate,omitempty"`
	SamplesPerPeriod int     `yaml:"samples_per_period"`
	SignalFrequency  float64 `yaml:"signal_frequency"`
	GmIdentity       string  `yaml:"gm_identity,omitempty"`
}

// BreakerConfig is the persisted form of a breaker.Definition, keyed by
// a breaker name for the telemetry bridges and REST API.
type BreakerConfig struct {
	Name                   string  `yaml:"name" validate:"nonzero"`
	OpenTimeSec            float64 `yaml:"open_time_sec" validate:"min=0"`
	CloseTimeSec           float64 `yaml:"close_time_sec" validate:"min=0"`
	ResistanceOhm          float64 `yaml:"resistance_ohm" validate:"min=0"`
	MaxCurrentA            float64 `yaml:"max_current_a" validate:"nonzero"`
	VoltageRatingV         float64 `yaml:"voltage_rating_v" validate:"nonzero"`
	PowerRatingW           float64 `yaml:"power_rating_w,omitempty"`
	ArcDurationSec         float64 `yaml:"arc_duration_sec,omitempty"`
	ArcVoltageV            float64 `yaml:"arc_voltage_v,omitempty"`
	ArcResistanceOhm       float64 `yaml:"arc_resistance_ohm,omitempty"`
	ContactGapMm           float64 `yaml:"contact_gap_mm,omitempty"`
	DielectricStrengthKVpm float64 `yaml:"dielectric_strength_kvpm,omitempty"`
}

// ProtectionConfig ties one distance and/or differential relay to the
// breaker it protects.
type ProtectionConfig struct {
	Name                     string     `yaml:"name" validate:"nonzero"`
	Breaker                  string     `yaml:"breaker" validate:"nonzero"`
	DistanceZone1            ZoneConfig `yaml:"distance_zone1"`
	DistanceZone2            ZoneConfig `yaml:"distance_zone2"`
	DistanceZone3            ZoneConfig `yaml:"distance_zone3"`
	DirectionForward         bool       `yaml:"direction_forward"`
	DifferentialSlopePercent float64    `yaml:"differential_slope_percent,omitempty"`
}

// ZoneConfig is the persisted form of a protection.Zone.
type ZoneConfig struct {
	ReachOhm float64       `yaml:"reach_ohm" validate:"min=0"`
	AngleRad float64       `yaml:"angle_rad"`
	Delay    time.Duration `yaml:"delay,omitempty"`
	Enabled  bool          `yaml:"enabled"`
}

// WebConfig holds the status dashboard's server and auth settings.
type WebConfig struct {
	Enabled bool         `yaml:"enabled"`
	Host    string       `yaml:"host"`
	Port    int          `yaml:"port"`
	API     WebAPIConfig `yaml:"api"`
	UI      WebUIConfig  `yaml:"ui"`
}

// WebAPIConfig holds REST API settings.
type WebAPIConfig struct {
	Enabled bool `yaml:"enabled"`
}

// WebUIConfig holds browser UI settings.
type WebUIConfig struct {
	Enabled       bool      `yaml:"enabled"`
	SessionSecret string    `yaml:"session_secret,omitempty"`
	Users         []WebUser `yaml:"users,omitempty"`
}

// WebUser represents a status dashboard account.
type WebUser struct {
	Username           string `yaml:"username"`
	PasswordHash       string `yaml:"password_hash"`
	Role               string `yaml:"role"`
	MustChangePassword bool   `yaml:"must_change_password,omitempty"`
}

// Web user roles
const (
	RoleAdmin  = "admin"
	RoleViewer = "viewer"
)

// MQTTConfig holds MQTT telemetry bridge configuration.
type MQTTConfig struct {
	Name        string `yaml:"name" validate:"nonzero"`
	Enabled     bool   `yaml:"enabled"`
	Broker      string `yaml:"broker" validate:"nonzero"`
	Port        int    `yaml:"port" validate:"nonzero"`
	Username    string `yaml:"username,omitempty"`
	Password    string `yaml:"password,omitempty"`
	ClientID    string `yaml:"client_id"`
	TopicPrefix string `yaml:"topic_prefix,omitempty"`
	UseTLS      bool   `yaml:"use_tls,omitempty"`
}

// ValkeyConfig holds Valkey/Redis state-cache bridge configuration.
type ValkeyConfig struct {
	Name           string        `yaml:"name" validate:"nonzero"`
	Enabled        bool          `yaml:"enabled"`
	Address        string        `yaml:"address" validate:"nonzero"`
	Password       string        `yaml:"password,omitempty"`
	Database       int           `yaml:"database"`
	KeyPrefix      string        `yaml:"key_prefix,omitempty"`
	UseTLS         bool          `yaml:"use_tls,omitempty"`
	KeyTTL         time.Duration `yaml:"key_ttl,omitempty"`
	PublishChanges bool          `yaml:"publish_changes,omitempty"`
}

// KafkaConfig holds Kafka telemetry bridge configuration. Pointer fields
// distinguish "not set" (nil = default) from "explicitly false".
type KafkaConfig struct {
	Name             string        `yaml:"name" validate:"nonzero"`
	Enabled          bool          `yaml:"enabled"`
	Brokers          []string      `yaml:"brokers" validate:"min=1"`
	UseTLS           bool          `yaml:"use_tls,omitempty"`
	TLSSkipVerify    bool          `yaml:"tls_skip_verify,omitempty"`
	SASLMechanism    string        `yaml:"sasl_mechanism,omitempty"`
	Username         string        `yaml:"username,omitempty"`
	Password         string        `yaml:"password,omitempty"`
	RequiredAcks     int           `yaml:"required_acks,omitempty"`
	MaxRetries       int           `yaml:"max_retries,omitempty"`
	RetryBackoff     time.Duration `yaml:"retry_backoff,omitempty"`
	Topic            string        `yaml:"topic,omitempty"`
	AutoCreateTopics *bool         `yaml:"auto_create_topics,omitempty"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		PollRate: time.Second,
		Web: WebConfig{
			Enabled: true,
			Host:    "0.0.0.0",
			Port:    8080,
			API:     WebAPIConfig{Enabled: true},
			UI:      WebUIConfig{Enabled: true},
		},
		IEDs:       []IEDConfig{},
		Breakers:   []BreakerConfig{},
		Protection: []ProtectionConfig{},
		MQTT:       []MQTTConfig{},
		Valkey:     []ValkeyConfig{},
		Kafka:      []KafkaConfig{},
	}
}

// DefaultPath returns the default configuration file path.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.yaml"
	}
	return filepath.Join(home, ".subsv", "config.yaml")
}

// Load reads configuration from a YAML file, generating defaults for a
// missing file and a missing session secret.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	dirty := false

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
		dirty = true
	} else {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	}

	if cfg.Web.UI.SessionSecret == "" {
		secret := make([]byte, 32)
		rand.Read(secret)
		cfg.Web.UI.SessionSecret = base64.StdEncoding.EncodeToString(secret)
		dirty = true
	}

	if dirty {
		cfg.Save(path)
	}

	return cfg, nil
}

// AddOnChangeListener registers a callback invoked after every successful
// Save. Returns an ID that can be used to remove the listener later.
func (c *Config) AddOnChangeListener(cb func()) ConfigListenerID {
	c.listenersMu.Lock()
	defer c.listenersMu.Unlock()

	if c.changeListeners == nil {
		c.changeListeners = make(map[ConfigListenerID]func())
	}

	id := ConfigListenerID(fmt.Sprintf("listener-%d", atomic.AddUint64(&c.listenerCounter, 1)))
	c.changeListeners[id] = cb
	return id
}

// RemoveOnChangeListener removes a previously registered listener.
func (c *Config) RemoveOnChangeListener(id ConfigListenerID) {
	c.listenersMu.Lock()
	defer c.listenersMu.Unlock()
	delete(c.changeListeners, id)
}

func (c *Config) notifyChangeListeners() {
	c.listenersMu.RLock()
	listeners := make([]func(), 0, len(c.changeListeners))
	for _, cb := range c.changeListeners {
		listeners = append(listeners, cb)
	}
	c.listenersMu.RUnlock()

	for _, cb := range listeners {
		go cb()
	}
}

// Lock acquires the config data mutex for exclusive access.
func (c *Config) Lock() { c.dataMu.Lock() }

// Unlock releases the config data mutex without saving.
func (c *Config) Unlock() { c.dataMu.Unlock() }

// Save acquires the lock, marshals, writes, and notifies.
func (c *Config) Save(path string) error {
	c.dataMu.Lock()
	return c.saveLocked(path)
}

// UnlockAndSave marshals, releases the lock, writes, and notifies. The
// caller must already hold the lock via Lock().
func (c *Config) UnlockAndSave(path string) error {
	return c.saveLocked(path)
}

func (c *Config) saveLocked(path string) error {
	data, err := yaml.Marshal(c)
	c.dataMu.Unlock()

	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return err
	}

	c.notifyChangeListeners()
	return nil
}

// FindIED returns the IED config with the given name, or nil if not found.
func (c *Config) FindIED(name string) *IEDConfig {
	for i := range c.IEDs {
		if c.IEDs[i].Name == name {
			return &c.IEDs[i]
		}
	}
	return nil
}

// AddIED adds a new IED configuration.
func (c *Config) AddIED(ied IEDConfig) {
	c.IEDs = append(c.IEDs, ied)
}

// RemoveIED removes an IED config by name.
func (c *Config) RemoveIED(name string) bool {
	for i, ied := range c.IEDs {
		if ied.Name == name {
			c.IEDs = append(c.IEDs[:i], c.IEDs[i+1:]...)
			return true
		}
	}
	return false
}

// FindBreaker returns the breaker config with the given name, or nil if not found.
func (c *Config) FindBreaker(name string) *BreakerConfig {
	for i := range c.Breakers {
		if c.Breakers[i].Name == name {
			return &c.Breakers[i]
		}
	}
	return nil
}

// AddBreaker adds a new breaker configuration.
func (c *Config) AddBreaker(b BreakerConfig) {
	c.Breakers = append(c.Breakers, b)
}

// RemoveBreaker removes a breaker config by name.
func (c *Config) RemoveBreaker(name string) bool {
	for i, b := range c.Breakers {
		if b.Name == name {
			c.Breakers = append(c.Breakers[:i], c.Breakers[i+1:]...)
			return true
		}
	}
	return false
}

// FindProtection returns the protection config with the given name, or nil if not found.
func (c *Config) FindProtection(name string) *ProtectionConfig {
	for i := range c.Protection {
		if c.Protection[i].Name == name {
			return &c.Protection[i]
		}
	}
	return nil
}

// AddProtection adds a new protection configuration.
func (c *Config) AddProtection(p ProtectionConfig) {
	c.Protection = append(c.Protection, p)
}

// RemoveProtection removes a protection config by name.
func (c *Config) RemoveProtection(name string) bool {
	for i, p := range c.Protection {
		if p.Name == name {
			c.Protection = append(c.Protection[:i], c.Protection[i+1:]...)
			return true
		}
	}
	return false
}

// FindMQTT returns the MQTT config with the given name, or nil if not found.
func (c *Config) FindMQTT(name string) *MQTTConfig {
	for i := range c.MQTT {
		if c.MQTT[i].Name == name {
			return &c.MQTT[i]
		}
	}
	return nil
}

// AddMQTT adds a new MQTT configuration.
func (c *Config) AddMQTT(m MQTTConfig) {
	c.MQTT = append(c.MQTT, m)
}

// RemoveMQTT removes an MQTT config by name.
func (c *Config) RemoveMQTT(name string) bool {
	for i, m := range c.MQTT {
		if m.Name == name {
			c.MQTT = append(c.MQTT[:i], c.MQTT[i+1:]...)
			return true
		}
	}
	return false
}

// FindValkey returns the Valkey config with the given name, or nil if not found.
func (c *Config) FindValkey(name string) *ValkeyConfig {
	for i := range c.Valkey {
		if c.Valkey[i].Name == name {
			return &c.Valkey[i]
		}
	}
	return nil
}

// AddValkey adds a new Valkey configuration.
func (c *Config) AddValkey(v ValkeyConfig) {
	c.Valkey = append(c.Valkey, v)
}

// RemoveValkey removes a Valkey config by name.
func (c *Config) RemoveValkey(name string) bool {
	for i, v := range c.Valkey {
		if v.Name == name {
			c.Valkey = append(c.Valkey[:i], c.Valkey[i+1:]...)
			return true
		}
	}
	return false
}

// FindKafka returns the Kafka config with the given name, or nil if not found.
func (c *Config) FindKafka(name string) *KafkaConfig {
	for i := range c.Kafka {
		if c.Kafka[i].Name == name {
			return &c.Kafka[i]
		}
	}
	return nil
}

// AddKafka adds a new Kafka configuration.
func (c *Config) AddKafka(k KafkaConfig) {
	c.Kafka = append(c.Kafka, k)
}

// RemoveKafka removes a Kafka config by name.
func (c *Config) RemoveKafka(name string) bool {
	for i, k := range c.Kafka {
		if k.Name == name {
			c.Kafka = append(c.Kafka[:i], c.Kafka[i+1:]...)
			return true
		}
	}
	return false
}

// FindWebUser returns the web user with the given username, or nil if not found.
func (c *Config) FindWebUser(username string) *WebUser {
	for i := range c.Web.UI.Users {
		if c.Web.UI.Users[i].Username == username {
			return &c.Web.UI.Users[i]
		}
	}
	return nil
}

// AddWebUser adds a new web user.
func (c *Config) AddWebUser(user WebUser) {
	c.Web.UI.Users = append(c.Web.UI.Users, user)
}

// RemoveWebUser removes a web user by username.
func (c *Config) RemoveWebUser(username string) bool {
	for i, u := range c.Web.UI.Users {
		if u.Username == username {
			c.Web.UI.Users = append(c.Web.UI.Users[:i], c.Web.UI.Users[i+1:]...)
			return true
		}
	}
	return false
}

// Validate runs struct-tag validation over the whole config tree,
// including nested IED/SVCB, breaker, and protection settings.
func (c *Config) Validate() error {
	if c.Namespace != "" && !IsValidNamespace(c.Namespace) {
		return fmt.Errorf("invalid namespace: must contain only alphanumeric characters, hyphens, underscores, and dots")
	}
	if err := validator.Validate(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	for i := range c.IEDs {
		for j := range c.IEDs[i].LogicalNodes {
			for k := range c.IEDs[i].LogicalNodes[j].SVCBs {
				if err := validator.Validate(c.IEDs[i].LogicalNodes[j].SVCBs[k]); err != nil {
					return fmt.Errorf("config: ied %s/%s svcb %s: %w", c.IEDs[i].Name, c.IEDs[i].LogicalNodes[j].Name, c.IEDs[i].LogicalNodes[j].SVCBs[k].Name, err)
				}
			}
		}
	}
	for i := range c.Breakers {
		if err := validator.Validate(c.Breakers[i]); err != nil {
			return fmt.Errorf("config: breaker %s: %w", c.Breakers[i].Name, err)
		}
	}
	for i := range c.Protection {
		if err := validator.Validate(c.Protection[i]); err != nil {
			return fmt.Errorf("config: protection %s: %w", c.Protection[i].Name, err)
		}
	}
	return nil
}

// IsValidNamespace returns true if the namespace is valid.
func IsValidNamespace(ns string) bool {
	if ns == "" {
		return false
	}
	for _, r := range ns {
		if !((r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' || r == '.') {
			return false
		}
	}
	return true
}
