package transport

import (
	"net"

	"subsv/logging"
	"subsv/sv"
)

// Sender transmits encoded Sampled Values frames out a single network
// interface. It owns a raw socket bound to that interface for the
// lifetime of the Sender.
type Sender struct {
	sock *Socket
}

// NewSender opens a raw socket on iface, filtering for the Sampled
// Values EtherType, and returns a Sender ready to transmit frames.
func NewSender(iface string) (*Sender, error) {
	sock, err := openRaw(iface, sv.EtherTypeSV)
	if err != nil {
		return nil, err
	}
	return &Sender{sock: sock}, nil
}

// Send encodes msg and transmits it on the bound interface.
func (s *Sender) Send(msg *sv.Message) error {
	frame, err := sv.Encode(msg)
	if err != nil {
		return err
	}
	logging.DebugTX("transport", frame)
	return s.sock.SendFrame(frame)
}

// SendRaw transmits an already-encoded frame, for callers that built it
// themselves (e.g. replaying a captured fixture).
func (s *Sender) SendRaw(frame []byte) error {
	return s.sock.SendFrame(frame)
}

// InterfaceName returns the name of the bound interface.
func (s *Sender) InterfaceName() string {
	return s.sock.InterfaceName()
}

// HardwareAddr returns the bound interface's own MAC address.
func (s *Sender) HardwareAddr() (net.HardwareAddr, error) {
	return s.sock.HardwareAddr()
}

// Close releases the underlying socket.
func (s *Sender) Close() error {
	return s.sock.Close()
}
