package gdp

import (
	"encoding/binary"
	"fmt"

	"github.com/dantte-lp/gdp-router/internal/mbuf"
)

// -------------------------------------------------------------------------
// UDP layer
// -------------------------------------------------------------------------

const (
	// UDPHeaderSize is the UDP header size: src(2)+dst(2)+len(2)+csum(2).
	UDPHeaderSize = 8

	offUDPSrcPort  = 0
	offUDPDstPort  = 2
	offUDPLength   = 4
	offUDPChecksum = 6
)

// UDP is a view over a UDP header enveloped by an IPv4 layer. The UDP
// checksum is left at zero, which RFC 768 permits for IPv4; this matches
// the teacher's inner-packet construction.
type UDP struct {
	ip     *IPv4
	offset int
	child  bool
}

// PushUDP grows the mbuf by a UDP header at ip's payload offset.
func PushUDP(ip *IPv4) (*UDP, error) {
	checkNotBorrowed("ipv4", ip.child)

	offset := ip.PayloadOffset()
	if err := ip.Mbuf().Grow(offset, UDPHeaderSize); err != nil {
		return nil, fmt.Errorf("gdp: push udp: %w", err)
	}
	ip.child = true
	return &UDP{ip: ip, offset: offset}, nil
}

// TryParseUDP validates that the mbuf holds a well-formed UDP header at
// ip's payload offset and returns a view over it.
func TryParseUDP(ip *IPv4) (*UDP, error) {
	offset := ip.PayloadOffset()
	if ip.Mbuf().Len()-offset < UDPHeaderSize {
		return nil, fmt.Errorf("gdp: parse udp: %w", ErrPacketTooShort)
	}
	ip.child = true
	return &UDP{ip: ip, offset: offset}, nil
}

// Mbuf returns the underlying buffer.
func (u *UDP) Mbuf() *mbuf.Mbuf { return u.ip.Mbuf() }

// Envelope returns the enclosing IPv4 layer.
func (u *UDP) Envelope() *IPv4 { return u.ip }

// HeaderOffset returns the absolute offset of this layer's own header.
func (u *UDP) HeaderOffset() int { return u.offset }

// PayloadOffset returns the absolute offset where this layer's payload (the
// GDP header, or its AEAD ciphertext) begins.
func (u *UDP) PayloadOffset() int { return u.offset + UDPHeaderSize }

// SrcPort returns the source UDP port.
func (u *UDP) SrcPort() uint16 {
	return binary.BigEndian.Uint16(u.Mbuf().Bytes()[u.offset+offUDPSrcPort:])
}

// SetSrcPort sets the source UDP port.
func (u *UDP) SetSrcPort(p uint16) {
	binary.BigEndian.PutUint16(u.Mbuf().Bytes()[u.offset+offUDPSrcPort:], p)
}

// DstPort returns the destination UDP port.
func (u *UDP) DstPort() uint16 {
	return binary.BigEndian.Uint16(u.Mbuf().Bytes()[u.offset+offUDPDstPort:])
}

// SetDstPort sets the destination UDP port.
func (u *UDP) SetDstPort(p uint16) {
	binary.BigEndian.PutUint16(u.Mbuf().Bytes()[u.offset+offUDPDstPort:], p)
}

// PayloadLen returns the length of the UDP payload (everything after the
// UDP header, which for this codec is the GDP ciphertext/plaintext region).
func (u *UDP) PayloadLen() int {
	return u.Mbuf().Len() - u.PayloadOffset()
}

// Payload returns a slice view of the UDP payload bytes.
func (u *UDP) Payload() ([]byte, error) {
	return u.Mbuf().ReadAt(u.PayloadOffset(), u.PayloadLen())
}

// Reconcile re-derives the UDP Length field from the current buffer
// contents (spec §4.1: reconcile_all "updates UDP length").
func (u *UDP) Reconcile() {
	buf := u.Mbuf().Bytes()
	length := len(buf) - u.offset
	binary.BigEndian.PutUint16(buf[u.offset+offUDPLength:], uint16(length)) //nolint:gosec // bounded by mbuf capacity
	buf[u.offset+offUDPChecksum] = 0
	buf[u.offset+offUDPChecksum+1] = 0
}
