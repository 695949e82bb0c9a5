package gdp

import (
	"encoding/binary"
	"fmt"
	"net/netip"

	"github.com/dantte-lp/gdp-router/internal/mbuf"
)

// -------------------------------------------------------------------------
// IPv4 layer
// -------------------------------------------------------------------------

const (
	// IPv4HeaderSize is the fixed IPv4 header size with no options
	// (IHL=5 => 20 bytes), matching every packet this codec builds.
	IPv4HeaderSize = 20

	ipv4VersionIHL uint8 = 0x45 // Version 4, IHL 5 (no options)
	ipv4ProtoUDP   uint8 = 17
	ipv4TTL        uint8 = 64

	offIPVerIHL   = 0
	offIPTotalLen = 2
	offIPProto    = 9
	offIPChecksum = 10
	offIPSrc      = 12
	offIPDst      = 16
)

// IPv4 is a view over an IPv4 header (no options) enveloped by an Ethernet
// layer.
type IPv4 struct {
	eth    *Ethernet
	offset int
	child  bool
}

// PushIPv4 grows the mbuf by an IPv4 header at eth's payload offset and
// stamps Version/IHL, Protocol=UDP, and TTL defaults. Building a second IPv4
// view over the same Ethernet view would grow eth's payload region again,
// shifting the first view's cached offset out from under it; checkNotBorrowed
// catches that in debug builds. Re-parsing (TryParseIPv4) never resizes the
// buffer and carries no such risk.
func PushIPv4(eth *Ethernet) (*IPv4, error) {
	checkNotBorrowed("ethernet", eth.child)

	offset := eth.PayloadOffset()
	if err := eth.Mbuf().Grow(offset, IPv4HeaderSize); err != nil {
		return nil, fmt.Errorf("gdp: push ipv4: %w", err)
	}
	ip := &IPv4{eth: eth, offset: offset}
	buf := eth.Mbuf().Bytes()
	buf[offset+offIPVerIHL] = ipv4VersionIHL
	buf[offset+offIPProto] = ipv4ProtoUDP
	ip.setTTL(ipv4TTL)
	eth.child = true
	return ip, nil
}

// TryParseIPv4 validates that the mbuf holds a well-formed, option-free
// IPv4/UDP header at eth's payload offset and returns a view over it.
func TryParseIPv4(eth *Ethernet) (*IPv4, error) {
	offset := eth.PayloadOffset()
	buf := eth.Mbuf().Bytes()
	if len(buf)-offset < IPv4HeaderSize {
		return nil, fmt.Errorf("gdp: parse ipv4: %w", ErrPacketTooShort)
	}
	if buf[offset+offIPVerIHL]>>4 != 4 {
		return nil, fmt.Errorf("gdp: parse ipv4: %w", ErrBadIPVersion)
	}
	if buf[offset+offIPProto] != ipv4ProtoUDP {
		return nil, fmt.Errorf("gdp: parse ipv4: protocol %d: %w", buf[offset+offIPProto], ErrBadIPProtocol)
	}
	eth.child = true
	return &IPv4{eth: eth, offset: offset}, nil
}

// Mbuf returns the underlying buffer.
func (ip *IPv4) Mbuf() *mbuf.Mbuf { return ip.eth.Mbuf() }

// Envelope returns the enclosing Ethernet layer.
func (ip *IPv4) Envelope() *Ethernet { return ip.eth }

// HeaderOffset returns the absolute offset of this layer's own header.
func (ip *IPv4) HeaderOffset() int { return ip.offset }

// PayloadOffset returns the absolute offset where this layer's payload (the
// UDP datagram) begins.
func (ip *IPv4) PayloadOffset() int { return ip.offset + IPv4HeaderSize }

// Src returns the source IPv4 address.
func (ip *IPv4) Src() netip.Addr {
	var b [4]byte
	copy(b[:], ip.Mbuf().Bytes()[ip.offset+offIPSrc:])
	return netip.AddrFrom4(b)
}

// SetSrc sets the source IPv4 address. addr must be an IPv4 address.
func (ip *IPv4) SetSrc(addr netip.Addr) {
	a4 := addr.As4()
	copy(ip.Mbuf().Bytes()[ip.offset+offIPSrc:], a4[:])
}

// Dst returns the destination IPv4 address.
func (ip *IPv4) Dst() netip.Addr {
	var b [4]byte
	copy(b[:], ip.Mbuf().Bytes()[ip.offset+offIPDst:])
	return netip.AddrFrom4(b)
}

// SetDst sets the destination IPv4 address. addr must be an IPv4 address.
func (ip *IPv4) SetDst(addr netip.Addr) {
	a4 := addr.As4()
	copy(ip.Mbuf().Bytes()[ip.offset+offIPDst:], a4[:])
}

// TTL returns the IP-level TTL (distinct from the GDP-level ttl field).
func (ip *IPv4) TTL() uint8 {
	return ip.Mbuf().Bytes()[ip.offset+8]
}

func (ip *IPv4) setTTL(v uint8) {
	ip.Mbuf().Bytes()[ip.offset+8] = v
}

// Reconcile re-derives the Total Length and header checksum fields from the
// current buffer contents (spec §4.1: reconcile_all "updates ... IPv4 total
// length and checksum").
func (ip *IPv4) Reconcile() {
	buf := ip.Mbuf().Bytes()
	totalLen := len(buf) - ip.offset
	binary.BigEndian.PutUint16(buf[ip.offset+offIPTotalLen:], uint16(totalLen)) //nolint:gosec // bounded by mbuf capacity

	buf[ip.offset+offIPChecksum] = 0
	buf[ip.offset+offIPChecksum+1] = 0
	csum := checksum(buf[ip.offset : ip.offset+IPv4HeaderSize])
	binary.BigEndian.PutUint16(buf[ip.offset+offIPChecksum:], csum)
}

// checksum computes the RFC 1071 one's-complement checksum over hdr, which
// must have any existing checksum field already zeroed.
func checksum(hdr []byte) uint16 {
	var sum uint32
	for i := 0; i+1 < len(hdr); i += 2 {
		sum += uint32(binary.BigEndian.Uint16(hdr[i : i+2]))
	}
	if len(hdr)%2 != 0 {
		sum += uint32(hdr[len(hdr)-1]) << 8
	}
	for sum>>16 != 0 {
		sum = (sum & 0xFFFF) + (sum >> 16)
	}
	return ^uint16(sum) //nolint:gosec // intentional truncation after fold
}
