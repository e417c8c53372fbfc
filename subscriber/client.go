// Package subscriber implements the receive side of the Sampled Values
// pipeline: the IedClient that binds a Receiver, validates incoming
// frames, and either invokes a caller-supplied callback or buffers
// parsed ASDUs for later collection.
package subscriber

import (
	"errors"
	"fmt"
	"sync"

	"subsv/kafka"
	"subsv/model"
	"subsv/mqtt"
	"subsv/sv"
	"subsv/transport"
)

// ErrAlreadyRunning is returned by Start if the client is already started.
var ErrAlreadyRunning = errors.New("subscriber: already running")

// Sample is one parsed ASDU paired with the VLAN and APPID it arrived
// under, so a default-callback consumer can still distinguish sources
// sharing one interface.
type Sample struct {
	AppID uint16
	VLAN  sv.VLAN
	ASDU  sv.ASDU
}

// Callback is invoked once per successfully parsed ASDU. Per the
// subscriber's documented contract, it must not block: it runs on the
// Receiver's single receive goroutine and a slow callback delays every
// subsequent frame.
type Callback func(Sample)

// frameReceiver is the subset of *transport.Receiver the receive path
// depends on, narrow enough to fake in tests without a raw socket.
type frameReceiver interface {
	Start(cb transport.Callback) error
	Stop() error
}

var _ frameReceiver = (*transport.Receiver)(nil)

// IedClient owns a model, a network interface, a lazily-created
// Receiver, and either a caller-supplied callback or the default
// buffering callback.
type IedClient struct {
	model *model.IedModel
	iface string

	mu       sync.Mutex
	running  bool
	receiver frameReceiver

	bufMu    sync.Mutex
	buffered []Sample

	mqttMgr  *mqtt.Manager
	kafkaMgr *kafka.Manager

	gapMu   sync.Mutex
	lastCnt map[string]uint16
	seen    map[string]bool
}

// NewIedClient creates a client bound to model's tree, to subscribe on
// iface once started.
func NewIedClient(m *model.IedModel, iface string) *IedClient {
	return &IedClient{
		model:   m,
		iface:   iface,
		lastCnt: make(map[string]uint16),
		seen:    make(map[string]bool),
	}
}

// SetGapTelemetry attaches the MQTT and Kafka bridge managers that
// smpCnt discontinuities are reported to. Either argument may be nil to
// skip that bridge; passing both nil (the default) disables gap
// telemetry entirely.
func (c *IedClient) SetGapTelemetry(mqttMgr *mqtt.Manager, kafkaMgr *kafka.Manager) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mqttMgr = mqttMgr
	c.kafkaMgr = kafkaMgr
}

// checkGap tracks the last-seen SmpCnt per SvID and reports a
// discontinuity when the new count isn't exactly one past the last
// (mod 2^16), per the control block's monotonic wraparound counter. The
// first sample seen for a given SvID never reports a gap, since there is
// no prior count to compare against.
func (c *IedClient) checkGap(svID string, cnt uint16) {
	c.gapMu.Lock()
	prev := c.lastCnt[svID]
	c.lastCnt[svID] = cnt
	first := !c.seen[svID]
	c.seen[svID] = true
	c.gapMu.Unlock()

	if first {
		return
	}

	expected := prev + 1
	if cnt == expected {
		return
	}

	c.mu.Lock()
	mqttMgr := c.mqttMgr
	kafkaMgr := c.kafkaMgr
	c.mu.Unlock()

	if mqttMgr != nil {
		mqttMgr.PublishSampleGap(mqtt.SampleGapEvent{SvID: svID, Expected: expected, Got: cnt})
	}
	if kafkaMgr != nil {
		kafkaMgr.PublishSampleGap(svID, expected, cnt)
	}
}

// Start opens the Receiver (if one isn't already set) using dataType to
// interpret incoming AnalogValue channels, and begins dispatching parsed
// frames to cb.
func (c *IedClient) Start(dataType sv.DataType, cb Callback) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return ErrAlreadyRunning
	}

	if c.receiver == nil {
		recv, err := transport.NewReceiver(c.iface, dataType)
		if err != nil {
			return fmt.Errorf("subscriber: %w", err)
		}
		c.receiver = recv
	}

	if err := c.receiver.Start(func(msg *sv.Message) {
		for _, asdu := range msg.ASDUs {
			c.checkGap(asdu.SvID, asdu.SmpCnt)
			cb(Sample{AppID: msg.AppID, VLAN: msg.VLAN, ASDU: asdu})
		}
	}); err != nil {
		return fmt.Errorf("subscriber: %w", err)
	}

	c.running = true
	return nil
}

// StartDefault opens the Receiver and installs the default callback,
// which appends every parsed ASDU to an internal buffer drained by
// ReceiveSampledValues.
func (c *IedClient) StartDefault(dataType sv.DataType) error {
	return c.Start(dataType, func(s Sample) {
		c.bufMu.Lock()
		c.buffered = append(c.buffered, s)
		c.bufMu.Unlock()
	})
}

// ReceiveSampledValues drains and returns every sample buffered by the
// default callback since the last call. Returns nil if Start was called
// with an explicit callback instead of StartDefault.
func (c *IedClient) ReceiveSampledValues() []Sample {
	c.bufMu.Lock()
	defer c.bufMu.Unlock()
	out := c.buffered
	c.buffered = nil
	return out
}

// Stop terminates the Receiver's loop and joins it.
func (c *IedClient) Stop() error {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return nil
	}
	recv := c.receiver
	c.running = false
	c.receiver = nil
	c.mu.Unlock()

	if recv == nil {
		return nil
	}
	return recv.Stop()
}
