package gdp

import (
	"encoding/binary"
	"fmt"

	"github.com/dantte-lp/gdp-router/internal/mbuf"
)

// -------------------------------------------------------------------------
// Ethernet layer
// -------------------------------------------------------------------------

// MACAddr is a 6-byte Ethernet hardware address.
type MACAddr [6]byte

// String renders a MACAddr in the usual colon-separated hex form.
func (a MACAddr) String() string {
	return fmt.Sprintf("%02x:%02x:%02x:%02x:%02x:%02x", a[0], a[1], a[2], a[3], a[4], a[5])
}

const (
	// EthernetHeaderSize is the Ethernet II header size: dst(6)+src(6)+type(2).
	EthernetHeaderSize = 14

	etherTypeIPv4 uint16 = 0x0800

	offEthDst  = 0
	offEthSrc  = 6
	offEthType = 12
)

// Ethernet is a view over the Ethernet II header at the start of an mbuf.
// It is always the outermost layer in this codec's stack (spec §4.1).
type Ethernet struct {
	m      *mbuf.Mbuf
	offset int
	child  bool
}

// PushEthernet grows m by an Ethernet header at the given offset (normally
// 0, the start of a fresh outbound mbuf) and stamps a zeroed header with
// EtherType IPv4.
func PushEthernet(m *mbuf.Mbuf, offset int) (*Ethernet, error) {
	if err := m.Grow(offset, EthernetHeaderSize); err != nil {
		return nil, fmt.Errorf("gdp: push ethernet: %w", err)
	}
	e := &Ethernet{m: m, offset: offset}
	binary.BigEndian.PutUint16(m.Bytes()[offset+offEthType:], etherTypeIPv4)
	return e, nil
}

// TryParseEthernet validates that m holds a well-formed Ethernet II header
// with EtherType IPv4 at offset, and returns a view over it.
func TryParseEthernet(m *mbuf.Mbuf, offset int) (*Ethernet, error) {
	if m.Len()-offset < EthernetHeaderSize {
		return nil, fmt.Errorf("gdp: parse ethernet: %w", ErrPacketTooShort)
	}
	et := binary.BigEndian.Uint16(m.Bytes()[offset+offEthType:])
	if et != etherTypeIPv4 {
		return nil, fmt.Errorf("gdp: parse ethernet: ethertype 0x%04x: %w", et, ErrBadEtherType)
	}
	return &Ethernet{m: m, offset: offset}, nil
}

// Mbuf returns the underlying buffer.
func (e *Ethernet) Mbuf() *mbuf.Mbuf { return e.m }

// HeaderOffset returns the absolute offset of this layer's own header.
func (e *Ethernet) HeaderOffset() int { return e.offset }

// PayloadOffset returns the absolute offset where this layer's payload
// (the next layer up the stack) begins.
func (e *Ethernet) PayloadOffset() int { return e.offset + EthernetHeaderSize }

// Src returns the source MAC address.
func (e *Ethernet) Src() MACAddr {
	var a MACAddr
	copy(a[:], e.m.Bytes()[e.offset+offEthSrc:])
	return a
}

// SetSrc sets the source MAC address.
func (e *Ethernet) SetSrc(a MACAddr) {
	copy(e.m.Bytes()[e.offset+offEthSrc:], a[:])
}

// Dst returns the destination MAC address.
func (e *Ethernet) Dst() MACAddr {
	var a MACAddr
	copy(a[:], e.m.Bytes()[e.offset+offEthDst:])
	return a
}

// SetDst sets the destination MAC address.
func (e *Ethernet) SetDst(a MACAddr) {
	copy(e.m.Bytes()[e.offset+offEthDst:], a[:])
}

// Reconcile re-derives fields invalidated by a mutation. Ethernet carries
// no length or checksum field, so this is a no-op; it exists to complete
// the uniform Reconcile contract across layers (spec §4.1).
func (e *Ethernet) Reconcile() {}
