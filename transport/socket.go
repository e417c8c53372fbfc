// Package transport sends and receives raw Layer-2 Ethernet frames over
// AF_PACKET sockets, the medium Sampled Values rides on: no IP stack, no
// ports, just EtherType 0x88BA frames addressed to a multicast MAC.
package transport

import (
	"errors"
	"fmt"
	"net"
	"runtime"

	"golang.org/x/sys/unix"
)

// ErrClosed is returned by SendFrame/RecvFrame once the socket has been
// closed.
var ErrClosed = errors.New("transport: socket closed")

// ErrNoInterface is returned by FirstUpEthernetInterface when no
// candidate interface is found.
var ErrNoInterface = errors.New("transport: no usable Ethernet interface found")

// htons converts a 16-bit value from host to network byte order. The
// AF_PACKET protocol field in particular must be given in network order.
func htons(v uint16) uint16 {
	return (v << 8) | (v >> 8)
}

// Socket is a raw Layer-2 socket bound to a single interface, usable both
// to send and to receive frames. A Socket must not be copied after first
// use; hold it by pointer.
type Socket struct {
	fd     int
	ifName string
	ifIdx  int
}

// openRaw creates an AF_PACKET/SOCK_RAW socket bound to iface, filtering
// for etherType only. Binding at the protocol level means the kernel does
// the EtherType filtering for us before a frame ever reaches userspace.
func openRaw(iface string, etherType uint16) (*Socket, error) {
	proto := int(htons(etherType))

	fd, err := unix.Socket(unix.AF_PACKET, unix.SOCK_RAW, proto)
	if err != nil {
		return nil, fmt.Errorf("transport: socket: %w", err)
	}

	ifi, err := net.InterfaceByName(iface)
	if err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("transport: lookup interface %q: %w", iface, err)
	}

	addr := &unix.SockaddrLinklayer{
		Protocol: uint16(proto),
		Ifindex:  ifi.Index,
	}
	if err := unix.Bind(fd, addr); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("transport: bind to %q: %w", iface, err)
	}

	s := &Socket{fd: fd, ifName: iface, ifIdx: ifi.Index}
	runtime.SetFinalizer(s, (*Socket).Close)
	return s, nil
}

// SetPromiscuous joins or leaves the interface's PACKET_MR_PROMISC
// multicast membership group, letting the socket see frames not
// addressed to this host's own MAC — needed for a subscriber sharing a
// switch port with other SV publishers via a mirrored/tapped link.
func (s *Socket) SetPromiscuous(enable bool) error {
	mreq := unix.PacketMreq{
		Ifindex: int32(s.ifIdx),
		Type:    unix.PACKET_MR_PROMISC,
	}
	opt := unix.PACKET_ADD_MEMBERSHIP
	if !enable {
		opt = unix.PACKET_DROP_MEMBERSHIP
	}
	if err := unix.SetsockoptPacketMreq(s.fd, unix.SOL_PACKET, opt, &mreq); err != nil {
		return fmt.Errorf("transport: set promiscuous on %q: %w", s.ifName, err)
	}
	return nil
}

// SendFrame transmits a fully-formed Ethernet frame (as produced by
// sv.Encode) on the bound interface.
func (s *Socket) SendFrame(frame []byte) error {
	if s.fd < 0 {
		return ErrClosed
	}
	addr := &unix.SockaddrLinklayer{Ifindex: s.ifIdx}
	if err := unix.Sendto(s.fd, frame, 0, addr); err != nil {
		return fmt.Errorf("transport: sendto %q: %w", s.ifName, err)
	}
	return nil
}

// RecvFrame blocks until a frame arrives on the bound interface and
// returns it. buf should be sized at or above the link MTU; it is
// reused as scratch space and only the received portion is returned.
func (s *Socket) RecvFrame(buf []byte) ([]byte, error) {
	if s.fd < 0 {
		return nil, ErrClosed
	}
	n, _, err := unix.Recvfrom(s.fd, buf, 0)
	if err != nil {
		return nil, fmt.Errorf("transport: recvfrom %q: %w", s.ifName, err)
	}
	return buf[:n], nil
}

// InterfaceName returns the name of the interface this socket is bound to.
func (s *Socket) InterfaceName() string {
	return s.ifName
}

// HardwareAddr returns the bound interface's own MAC address, the value
// a Sender stamps into a frame's source address field.
func (s *Socket) HardwareAddr() (net.HardwareAddr, error) {
	ifi, err := net.InterfaceByIndex(s.ifIdx)
	if err != nil {
		return nil, fmt.Errorf("transport: hardware address of %q: %w", s.ifName, err)
	}
	return ifi.HardwareAddr, nil
}

// Close releases the underlying file descriptor. Close is idempotent and
// safe to call multiple times.
func (s *Socket) Close() error {
	if s.fd < 0 {
		return nil
	}
	fd := s.fd
	s.fd = -1
	runtime.SetFinalizer(s, nil)
	return unix.Close(fd)
}

// FirstUpEthernetInterface returns the name of the first network
// interface that is up, not loopback, and carries a hardware (MAC)
// address — a reasonable default when no interface is configured
// explicitly.
func FirstUpEthernetInterface() (string, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return "", fmt.Errorf("transport: list interfaces: %w", err)
	}
	for _, ifi := range ifaces {
		if ifi.Flags&net.FlagUp == 0 {
			continue
		}
		if ifi.Flags&net.FlagLoopback != 0 {
			continue
		}
		if len(ifi.HardwareAddr) == 0 {
			continue
		}
		return ifi.Name, nil
	}
	return "", ErrNoInterface
}
