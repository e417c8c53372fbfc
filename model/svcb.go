// Package model implements the IEC 61850 control-block registry: the
// SampledValueControlBlock, LogicalNode, and IedModel tree that the
// publisher reads from and the subscriber matches incoming frames against.
package model

import (
	"fmt"
	"sync"

	"subsv/sv"
	"subsv/wire"

	validator "gopkg.in/validator.v2"
)

// SamplesPerPeriod is the IEC 61850-9-2LE sample rate class.
type SamplesPerPeriod int

const (
	SPP80  SamplesPerPeriod = 80
	SPP256 SamplesPerPeriod = 256
)

// SignalFrequency is the nominal power system frequency a control block
// is configured for.
type SignalFrequency float64

const (
	Freq16_7Hz SignalFrequency = 16.7
	Freq25Hz   SignalFrequency = 25
	Freq50Hz   SignalFrequency = 50
	Freq60Hz   SignalFrequency = 60
)

const (
	defaultAppID          = 0x4000
	defaultCurrentScaling = 1
	defaultVoltageScaling = 1
)

// PublisherConfig is the read-only snapshot of an SVCB the transport layer
// needs: everything required to address and tag an outgoing frame,
// without exposing the mutable builder surface.
type PublisherConfig struct {
	Name             string
	MulticastAddress wire.MAC
	AppID            uint16
	DataSet          string
	ConfRev          uint32
	SmpSynch         sv.SmpSynch
	VlanID           uint16
	UserPriority     uint8
	Simulate         bool
	DataType         sv.DataType
	GmIdentity       *[8]byte
}

// SVCB is a Sampled Value Control Block: the per-publication
// configuration container. It is mutable via its builder-style setters
// until the owning publisher starts; getters are safe for concurrent
// read-only use thereafter.
type SVCB struct {
	mu sync.RWMutex

	name             string
	multicastAddress wire.MAC
	appID            uint16
	smpRate          uint16
	dataSet          string

	confRev          uint32
	smpSynch         sv.SmpSynch
	vlanID           uint16
	userPriority     uint8
	simulate         bool
	samplesPerPeriod SamplesPerPeriod
	signalFrequency  SignalFrequency
	gmIdentity       *[8]byte
	dataType         sv.DataType
	currentScaling   int32
	voltageScaling   int32
}

// NewSVCB creates a control block with the spec's documented defaults.
func NewSVCB(name string) *SVCB {
	return &SVCB{
		name:             name,
		appID:            defaultAppID,
		confRev:          1,
		smpSynch:         sv.SmpSynchNone,
		userPriority:     4,
		samplesPerPeriod: SPP80,
		signalFrequency:  Freq50Hz,
		dataType:         sv.DataTypeInt32,
		currentScaling:   defaultCurrentScaling,
		voltageScaling:   defaultVoltageScaling,
	}
}

// Name returns the control block's immutable name.
func (s *SVCB) Name() string {
	return s.name
}

// SetMulticastAddress sets the destination multicast MAC address.
func (s *SVCB) SetMulticastAddress(addr wire.MAC) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.multicastAddress = addr
}

// MulticastAddress returns the configured destination MAC.
func (s *SVCB) MulticastAddress() wire.MAC {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.multicastAddress
}

// SetAppID sets the 16-bit APPID; validity (0x4000-0x7FFF) is enforced by
// Validate, not at setter time, so intermediate configuration is free to
// pass through invalid states before the publisher starts.
func (s *SVCB) SetAppID(appID uint16) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appID = appID
}

// AppID returns the configured APPID.
func (s *SVCB) AppID() uint16 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.appID
}

// SetSmpRate sets the sampling rate in Hz.
func (s *SVCB) SetSmpRate(rate uint16) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.smpRate = rate
}

// SmpRate returns the configured sampling rate in Hz.
func (s *SVCB) SmpRate() uint16 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.smpRate
}

// SetDataSet sets the DataSet reference name.
func (s *SVCB) SetDataSet(dataSet string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dataSet = dataSet
}

// DataSet returns the configured DataSet reference name.
func (s *SVCB) DataSet() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dataSet
}

// SetConfRev sets the configuration revision. The publisher copies this
// value into the ConfRev field of every ASDU it builds for this SVCB,
// which is the field the encoder writes.
func (s *SVCB) SetConfRev(rev uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.confRev = rev
}

// ConfRev returns the configured configuration revision.
func (s *SVCB) ConfRev() uint32 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.confRev
}

// SetSmpSynch sets the clock-synchronization source.
func (s *SVCB) SetSmpSynch(synch sv.SmpSynch) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.smpSynch = synch
}

// SmpSynch returns the configured clock-synchronization source.
func (s *SVCB) SmpSynch() sv.SmpSynch {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.smpSynch
}

// SetVlanID sets the VLAN ID (0 means no VLAN tag is emitted).
func (s *SVCB) SetVlanID(id uint16) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vlanID = id & 0x0FFF
}

// VlanID returns the configured VLAN ID.
func (s *SVCB) VlanID() uint16 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.vlanID
}

// SetUserPriority sets the IEEE 802.1p PCP (0-7). Values outside the
// range are silently ignored, leaving the prior setting in place.
func (s *SVCB) SetUserPriority(priority uint8) {
	if priority > 7 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userPriority = priority
}

// UserPriority returns the configured user priority.
func (s *SVCB) UserPriority() uint8 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userPriority
}

// SetSimulate sets the simulate bit.
func (s *SVCB) SetSimulate(simulate bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.simulate = simulate
}

// Simulate returns the configured simulate bit.
func (s *SVCB) Simulate() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.simulate
}

// SetSamplesPerPeriod sets the samples-per-period class.
func (s *SVCB) SetSamplesPerPeriod(spp SamplesPerPeriod) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.samplesPerPeriod = spp
}

// SamplesPerPeriod returns the configured samples-per-period class.
func (s *SVCB) SamplesPerPeriod() SamplesPerPeriod {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.samplesPerPeriod
}

// SetSignalFrequency sets the nominal signal frequency.
func (s *SVCB) SetSignalFrequency(freq SignalFrequency) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.signalFrequency = freq
}

// SignalFrequency returns the configured nominal signal frequency.
func (s *SVCB) SignalFrequency() SignalFrequency {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.signalFrequency
}

// SetGrandmasterIdentity sets the 8-byte PTP grandmaster identity,
// present on the wire only when SmpSynch is Global.
func (s *SVCB) SetGrandmasterIdentity(identity [8]byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := identity
	s.gmIdentity = &cp
}

// GrandmasterIdentity returns the configured grandmaster identity, or nil
// if unset.
func (s *SVCB) GrandmasterIdentity() *[8]byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.gmIdentity
}

// ClearGrandmasterIdentity removes the configured grandmaster identity.
func (s *SVCB) ClearGrandmasterIdentity() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gmIdentity = nil
}

// SetDataType sets the wire representation used for every AnalogValue
// published under this control block.
func (s *SVCB) SetDataType(dt sv.DataType) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dataType = dt
}

// DataType returns the configured AnalogValue wire representation.
func (s *SVCB) DataType() sv.DataType {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dataType
}

// SetCurrentScaling sets the current channel scaling factor.
func (s *SVCB) SetCurrentScaling(factor int32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.currentScaling = factor
}

// CurrentScaling returns the configured current scaling factor.
func (s *SVCB) CurrentScaling() int32 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentScaling
}

// SetVoltageScaling sets the voltage channel scaling factor.
func (s *SVCB) SetVoltageScaling(factor int32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.voltageScaling = factor
}

// VoltageScaling returns the configured voltage scaling factor.
func (s *SVCB) VoltageScaling() int32 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.voltageScaling
}

// svcbValidation mirrors the SVCB fields that must be checked before the
// publisher starts, expressed as validator.v2 struct tags.
type svcbValidation struct {
	AppID   int `validate:"min=16384,max=32767"`
	SmpRate int `validate:"min=1"`
}

// Validate enforces the invariants required before the publisher may
// start using this control block: APPID range and a positive sample rate.
func (s *SVCB) Validate() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v := svcbValidation{AppID: int(s.appID), SmpRate: int(s.smpRate)}
	if err := validator.Validate(v); err != nil {
		return fmt.Errorf("model: invalid SVCB %q: %w", s.name, err)
	}
	return nil
}

// ToPublisherConfig snapshots the subset of configuration the transport
// needs into a plain, immutable struct.
func (s *SVCB) ToPublisherConfig() PublisherConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return PublisherConfig{
		Name:             s.name,
		MulticastAddress: s.multicastAddress,
		AppID:            s.appID,
		DataSet:          s.dataSet,
		ConfRev:          s.confRev,
		SmpSynch:         s.smpSynch,
		VlanID:           s.vlanID,
		UserPriority:     s.userPriority,
		Simulate:         s.simulate,
		DataType:         s.dataType,
		GmIdentity:       s.gmIdentity,
	}
}
