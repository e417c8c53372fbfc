package transport

import (
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"subsv/logging"
	"subsv/sv"
)

// maxFrameSize is sized for a jumbo-safe read: well above a standard
// 1500-byte MTU so a VLAN-tagged, full 8-channel SV frame is never
// truncated mid-recvfrom.
const maxFrameSize = 2048

// Callback is invoked once per successfully decoded frame. It must not
// block for long — it runs on the Receiver's single receive goroutine,
// and a slow callback delays every subsequent frame.
type Callback func(*sv.Message)

// Receiver listens for Sampled Values frames on a single interface and
// dispatches decoded messages to a Callback. A frame that fails to decode
// is dropped without logging; it never stops the receive loop.
type Receiver struct {
	sock       *Socket
	dataType   sv.DataType
	promisc    bool

	mu       sync.Mutex
	running  bool
	stopCh   chan struct{}
	grp      *errgroup.Group
}

// NewReceiver opens a raw socket on iface, filtering for the Sampled
// Values EtherType. Frames are decoded assuming dataType for every
// AnalogValue channel; see sv.DecodeTyped for why this must be known
// out-of-band.
func NewReceiver(iface string, dataType sv.DataType) (*Receiver, error) {
	sock, err := openRaw(iface, sv.EtherTypeSV)
	if err != nil {
		return nil, err
	}
	return &Receiver{sock: sock, dataType: dataType}, nil
}

// SetPromiscuous enables or disables promiscuous-mode reception, which
// must be called before Start to take effect.
func (r *Receiver) SetPromiscuous(enable bool) error {
	r.promisc = enable
	return r.sock.SetPromiscuous(enable)
}

// Start launches the receive loop in a background goroutine and returns
// immediately. cb is invoked for every frame that decodes successfully.
func (r *Receiver) Start(cb Callback) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return errors.New("transport: receiver already started")
	}

	r.stopCh = make(chan struct{})
	grp := &errgroup.Group{}
	r.grp = grp
	r.running = true

	grp.Go(func() error {
		buf := make([]byte, maxFrameSize)
		for {
			select {
			case <-r.stopCh:
				return nil
			default:
			}

			frame, err := r.sock.RecvFrame(buf)
			if err != nil {
				select {
				case <-r.stopCh:
					return nil
				default:
				}
				logging.DebugConnectError("transport", r.sock.InterfaceName(), err)
				continue
			}

			msg, err := sv.DecodeTyped(frame, r.dataType)
			if err != nil {
				continue
			}
			logging.DebugRX("transport", frame)
			dispatch(cb, msg)
		}
	})

	return nil
}

// Stop signals the receive loop to exit and waits for it to return.
func (r *Receiver) Stop() error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	close(r.stopCh)
	grp := r.grp
	r.running = false
	r.mu.Unlock()

	// Unblock a goroutine parked in recvfrom by tearing down the socket;
	// Recvfrom returns an error on a closed fd, which the loop treats as
	// a stop signal via stopCh having already been closed.
	_ = r.sock.Close()
	return grp.Wait()
}

// InterfaceName returns the name of the bound interface.
func (r *Receiver) InterfaceName() string {
	return r.sock.InterfaceName()
}

// dispatch invokes cb and recovers a panic inside it, logging and
// returning instead of letting it unwind onto the receive loop. A
// misbehaving callback must cost one dropped frame, not the goroutine.
func dispatch(cb Callback, msg *sv.Message) {
	defer func() {
		if r := recover(); r != nil {
			logging.DebugError("transport", "subscriber callback panicked", fmt.Errorf("%v", r))
		}
	}()
	cb(msg)
}
