package gdp

import (
	"fmt"
	"net/netip"

	"github.com/dantte-lp/gdp-router/internal/mbuf"
)

// Endpoint names one side of a freshly built packet's Ethernet/IPv4/UDP
// envelope (spec §6: the RIB request/reply construction needs all three).
type Endpoint struct {
	MAC  MACAddr
	IP   netip.Addr
	Port uint16
}

// RIBPort is the well-known UDP port the RIB node listens on.
const RIBPort uint16 = 27182

// RIBMAC is the RIB node's well-known Ethernet address.
var RIBMAC = MACAddr{0x02, 0x00, 0x00, 0xFF, 0xFF, 0x00}

// RIBAddr is the RIB node's well-known IPv4 address.
var RIBAddr = netip.MustParseAddr("10.100.1.10")

// RIBEndpoint is the RIB node's well-known Ethernet/IPv4/UDP endpoint, the
// fixed address every switch node queries for a name->address lookup
// (spec §6).
var RIBEndpoint = Endpoint{MAC: RIBMAC, IP: RIBAddr, Port: RIBPort}

// Build allocates a fresh mbuf and pushes a complete Ethernet/IPv4/UDP/GDP
// stack addressed from src to dst, returning the innermost GDP view. This
// is the codec-level building block behind both RIB request construction
// and RIB reply construction (spec §4.3: "construct ... a RibGet", "handle_
// rib_query ... constructs a RibReply packet").
func Build(src, dst Endpoint) (*Packet, error) {
	m := mbuf.Get()

	eth, err := PushEthernet(m, 0)
	if err != nil {
		mbuf.Put(m)
		return nil, fmt.Errorf("gdp: build: %w", err)
	}
	eth.SetSrc(src.MAC)
	eth.SetDst(dst.MAC)

	ip, err := PushIPv4(eth)
	if err != nil {
		mbuf.Put(m)
		return nil, fmt.Errorf("gdp: build: %w", err)
	}
	ip.SetSrc(src.IP)
	ip.SetDst(dst.IP)

	udp, err := PushUDP(ip)
	if err != nil {
		mbuf.Put(m)
		return nil, fmt.Errorf("gdp: build: %w", err)
	}
	udp.SetSrcPort(src.Port)
	udp.SetDstPort(dst.Port)

	p, err := TryPush(udp)
	if err != nil {
		mbuf.Put(m)
		return nil, fmt.Errorf("gdp: build: %w", err)
	}

	return p, nil
}

// Release returns the packet's underlying mbuf to the shared mbuf pool.
// Callers must not use the packet or any of its layer views afterward.
func (p *Packet) Release() {
	mbuf.Put(p.Mbuf())
}

// ParseFrame copies a raw Ethernet frame read off a port queue (spec §6:
// "abstract port queue yielding buffer batches") into a pooled mbuf and
// parses it through the full layer stack, returning the innermost GDP
// view. The caller's buf is not retained past this call. On any parse
// failure the mbuf is returned to the pool before the error is reported,
// so a malformed frame never leaks a buffer.
func ParseFrame(buf []byte) (*Packet, error) {
	m := mbuf.Get()
	if err := m.Grow(0, len(buf)); err != nil {
		mbuf.Put(m)
		return nil, fmt.Errorf("gdp: parse frame: %w", err)
	}
	if err := m.WriteAt(0, buf); err != nil {
		mbuf.Put(m)
		return nil, fmt.Errorf("gdp: parse frame: %w", err)
	}

	eth, err := TryParseEthernet(m, 0)
	if err != nil {
		mbuf.Put(m)
		return nil, fmt.Errorf("gdp: parse frame: %w", err)
	}
	ip, err := TryParseIPv4(eth)
	if err != nil {
		mbuf.Put(m)
		return nil, fmt.Errorf("gdp: parse frame: %w", err)
	}
	udp, err := TryParseUDP(ip)
	if err != nil {
		mbuf.Put(m)
		return nil, fmt.Errorf("gdp: parse frame: %w", err)
	}
	p, err := TryParse(udp)
	if err != nil {
		mbuf.Put(m)
		return nil, fmt.Errorf("gdp: parse frame: %w", err)
	}

	return p, nil
}

// ParseEncryptedFrame is ParseFrame for wire traffic wrapped in the AEAD
// layer (spec §4.2): the GDP header, data, and certificate block are
// opaque ciphertext until open is applied to the UDP payload. open is
// called after the UDP header is parsed and before the GDP layer is
// parsed, so the GDP parse always sees plaintext; it takes a *UDP rather
// than an *aead.Cipher directly because this package cannot import aead
// (aead imports gdp for the layer views it operates on). A decrypt
// failure releases the mbuf and returns the error, matching ParseFrame's
// no-leak guarantee.
func ParseEncryptedFrame(buf []byte, open func(*UDP) error) (*Packet, error) {
	m := mbuf.Get()
	if err := m.Grow(0, len(buf)); err != nil {
		mbuf.Put(m)
		return nil, fmt.Errorf("gdp: parse encrypted frame: %w", err)
	}
	if err := m.WriteAt(0, buf); err != nil {
		mbuf.Put(m)
		return nil, fmt.Errorf("gdp: parse encrypted frame: %w", err)
	}

	eth, err := TryParseEthernet(m, 0)
	if err != nil {
		mbuf.Put(m)
		return nil, fmt.Errorf("gdp: parse encrypted frame: %w", err)
	}
	ip, err := TryParseIPv4(eth)
	if err != nil {
		mbuf.Put(m)
		return nil, fmt.Errorf("gdp: parse encrypted frame: %w", err)
	}
	udp, err := TryParseUDP(ip)
	if err != nil {
		mbuf.Put(m)
		return nil, fmt.Errorf("gdp: parse encrypted frame: %w", err)
	}
	if open != nil {
		if err := open(udp); err != nil {
			mbuf.Put(m)
			return nil, fmt.Errorf("gdp: parse encrypted frame: %w", err)
		}
	}
	p, err := TryParse(udp)
	if err != nil {
		mbuf.Put(m)
		return nil, fmt.Errorf("gdp: parse encrypted frame: %w", err)
	}

	return p, nil
}

// FrameBytes returns the packet's complete wire frame, from the Ethernet
// header through any trailing certificate block. The returned slice
// aliases the packet's mbuf and is only valid until the next mutation or
// Release; a port queue's Send must copy it before handing it to the
// kernel if it cannot write synchronously.
func (p *Packet) FrameBytes() []byte {
	return p.Mbuf().Bytes()
}

// SealedFrameBytes reconciles p's headers while the GDP layer is still
// plaintext, then applies seal to wrap the UDP payload in the AEAD layer
// before returning the complete wire frame (spec §4.2: the GDP header,
// data, and certificate block travel on the wire as opaque ciphertext).
// seal must re-stamp the UDP and IPv4 layers itself after resizing the
// payload (aead.Cipher.EncryptGDP does); calling p.Reconcile() afterward
// would corrupt the now-encrypted GDP magic field, so ReconcileAll only
// runs beforehand.
func (p *Packet) SealedFrameBytes(seal func(*UDP) error) ([]byte, error) {
	p.ReconcileAll()
	if seal != nil {
		if err := seal(p.Deparse()); err != nil {
			return nil, fmt.Errorf("gdp: seal frame: %w", err)
		}
	}
	return p.Mbuf().Bytes(), nil
}
