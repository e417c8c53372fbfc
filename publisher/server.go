// Package publisher drives SVCB -> ASDU -> frame emission: the IedServer
// that applications call to push sampled measurements out onto the wire.
package publisher

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"subsv/logging"
	"subsv/model"
	"subsv/ptp"
	"subsv/sv"
	"subsv/transport"
	"subsv/wire"
)

// cadenceInterval is the background cadence thread's poll period. Every
// tick it emits one ASDU for each SVCB with a SampleSource registered
// via SetSampleSource; control blocks with no registered source are
// untouched, and UpdateSampledValue remains usable at any time
// regardless of what the cadence thread is doing.
const cadenceInterval = 100 * time.Millisecond

var (
	// ErrAlreadyRunning is returned by Start if the server is already started.
	ErrAlreadyRunning = errors.New("publisher: already running")
	// ErrNotRunning is returned by UpdateSampledValue before Start.
	ErrNotRunning = errors.New("publisher: not running")
)

// counters holds one monotonic smpCnt per SVCB, keyed by control block
// name, so multiple control blocks in one process never interleave
// sequence numbers.
type counters struct {
	mu sync.Mutex
	m  map[string]*uint32
}

func newCounters() *counters {
	return &counters{m: make(map[string]*uint32)}
}

func (c *counters) next(name string) uint16 {
	c.mu.Lock()
	ctr, ok := c.m[name]
	if !ok {
		var z uint32
		ctr = &z
		c.m[name] = ctr
	}
	c.mu.Unlock()
	return uint16(atomic.AddUint32(ctr, 1) - 1)
}

// SampleSource supplies one dataset of analog values on demand. Register
// one with SetSampleSource to have the cadence thread poll it and
// publish the result every tick; it must return quickly since it runs
// on the shared cadence goroutine alongside every other registered
// source.
type SampleSource func() [sv.DatasetSize]sv.AnalogValue

// cadenceSource pairs a registered SampleSource with the SVCB it feeds.
type cadenceSource struct {
	svcb   *model.SVCB
	source SampleSource
}

// IedServer owns an IedModel, a network interface, and a Sender, and
// exposes the synchronous publish path applications call to emit one
// ASDU per control block.
type IedServer struct {
	model *model.IedModel
	iface string

	mu      sync.Mutex
	running bool
	sender  frameSender
	srcMAC  wire.MAC
	stopCh  chan struct{}
	grp     *errgroup.Group

	sourcesMu sync.Mutex
	sources   map[string]cadenceSource

	counters *counters
}

// NewIedServer creates a server bound to model's tree, to be published
// out iface once started.
func NewIedServer(m *model.IedModel, iface string) *IedServer {
	return &IedServer{
		model:    m,
		iface:    iface,
		counters: newCounters(),
		sources:  make(map[string]cadenceSource),
	}
}

// frameSender is the subset of *transport.Sender the publish path
// depends on, narrow enough to fake in tests without a raw socket.
type frameSender interface {
	Send(msg *sv.Message) error
	Close() error
}

var _ frameSender = (*transport.Sender)(nil)

// SetSampleSource registers src as the value source the cadence thread
// polls for svcb every cadenceInterval tick, feeding whatever it returns
// through UpdateSampledValue. Passing a nil src removes the
// registration, leaving svcb to emit only when a caller invokes
// UpdateSampledValue directly.
func (s *IedServer) SetSampleSource(svcb *model.SVCB, src SampleSource) {
	s.sourcesMu.Lock()
	defer s.sourcesMu.Unlock()
	if src == nil {
		delete(s.sources, svcb.Name())
		return
	}
	s.sources[svcb.Name()] = cadenceSource{svcb: svcb, source: src}
}

// Start validates the model, opens the Sender if one isn't already set,
// and spawns the background cadence thread. Calling Start twice without
// an intervening Stop returns ErrAlreadyRunning.
func (s *IedServer) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrAlreadyRunning
	}

	if err := s.model.Validate(); err != nil {
		return fmt.Errorf("publisher: %w", err)
	}

	if s.sender == nil {
		sender, err := transport.NewSender(s.iface)
		if err != nil {
			return fmt.Errorf("publisher: %w", err)
		}
		s.sender = sender

		if hw, err := sender.HardwareAddr(); err == nil && len(hw) == wire.MACLen {
			s.srcMAC = wire.MACFromBytes(hw)
		}
	}

	s.stopCh = make(chan struct{})
	grp := &errgroup.Group{}
	s.grp = grp
	s.running = true

	grp.Go(func() error {
		s.cadenceLoop(s.stopCh)
		return nil
	})

	return nil
}

// Stop clears the running flag and joins the cadence thread. The
// underlying Sender's socket is closed.
func (s *IedServer) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	close(s.stopCh)
	grp := s.grp
	s.running = false
	sender := s.sender
	s.sender = nil
	s.mu.Unlock()

	_ = grp.Wait()

	if sender != nil {
		return sender.Close()
	}
	return nil
}

func (s *IedServer) cadenceLoop(stopCh chan struct{}) {
	ticker := time.NewTicker(cadenceInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			s.emitFromSources()
		}
	}
}

// emitFromSources polls every registered SampleSource once and pushes
// its values through the normal UpdateSampledValue path. An
// UpdateSampledValue error costs that one tick's sample for that SVCB,
// logged and otherwise
// ignored; it never stops the cadence thread.
func (s *IedServer) emitFromSources() {
	s.sourcesMu.Lock()
	pending := make([]cadenceSource, 0, len(s.sources))
	for _, cs := range s.sources {
		pending = append(pending, cs)
	}
	s.sourcesMu.Unlock()

	for _, cs := range pending {
		values := cs.source()
		if err := s.UpdateSampledValue(cs.svcb, values); err != nil {
			logging.DebugError("publisher", "cadence emit "+cs.svcb.Name(), err)
		}
	}
}

// UpdateSampledValue builds an ASDU from values under svcb and emits it
// immediately. smpCnt is assigned from the control block's monotonic
// 16-bit counter (wrapping on overflow); the timestamp is stamped with
// the current PTP time. SmpSynch downgrades from Global to Local when
// no grandmaster identity is configured, since a Global claim with no
// clock source to back it would be a lie on the wire.
func (s *IedServer) UpdateSampledValue(svcb *model.SVCB, values [sv.DatasetSize]sv.AnalogValue) error {
	s.mu.Lock()
	running := s.running
	sender := s.sender
	srcMAC := s.srcMAC
	s.mu.Unlock()

	if !running || sender == nil {
		return ErrNotRunning
	}

	cfg := svcb.ToPublisherConfig()

	smpSynch := cfg.SmpSynch
	gmIdentity := cfg.GmIdentity
	if smpSynch == sv.SmpSynchGlobal && gmIdentity == nil {
		smpSynch = sv.SmpSynchLocal
	}

	asdu := sv.ASDU{
		SvID:       cfg.Name,
		SmpCnt:     s.counters.next(cfg.Name),
		ConfRev:    cfg.ConfRev,
		SmpSynch:   smpSynch,
		DataSet:    values,
		GmIdentity: gmIdentity,
		Timestamp:  ptp.Now(),
	}

	if err := asdu.Validate(); err != nil {
		return fmt.Errorf("publisher: %w", err)
	}

	msg := &sv.Message{
		DstMAC:   cfg.MulticastAddress,
		SrcMAC:   srcMAC,
		AppID:    cfg.AppID,
		Simulate: cfg.Simulate,
		ASDUs:    []sv.ASDU{asdu},
	}
	if cfg.VlanID > 0 {
		msg.VLAN = sv.VLAN{ID: cfg.VlanID, UserPriority: cfg.UserPriority}
	}

	return sender.Send(msg)
}
