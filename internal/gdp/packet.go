package gdp

import (
	"fmt"

	"github.com/dantte-lp/gdp-router/internal/mbuf"
)

// -------------------------------------------------------------------------
// GDP layer
// -------------------------------------------------------------------------

// Packet is a view over a GDP header and its data/certificate regions,
// enveloped by a UDP datagram (spec §3, §4.1). The envelope's payload is
// assumed to already be plaintext; AEAD termination happens on the UDP
// payload before TryParse and after Deparse (see internal/aead).
type Packet struct {
	udp    *UDP
	offset int
}

// TryPush grows the mbuf by HeaderSize at udp's payload offset and stamps a
// default header (magic, TTL=64, everything else zeroed) (spec §4.1).
func TryPush(udp *UDP) (*Packet, error) {
	checkNotBorrowed("udp", udp.child)

	offset := udp.PayloadOffset()
	if err := udp.Mbuf().Grow(offset, HeaderSize); err != nil {
		return nil, fmt.Errorf("gdp: push gdp header: %w", err)
	}
	p := &Packet{udp: udp, offset: offset}
	if err := marshalHeader(defaultHeader(), p.headerBytes()); err != nil {
		return nil, err
	}
	udp.child = true
	return p, nil
}

// TryParse validates that udp's payload begins with a well-formed GDP
// header (correct magic, data_len within bounds) and returns a view over
// it. On failure it returns ErrNotAGDPPacket or ErrPacketTooShort and
// leaves the mbuf untouched (spec §4.1).
func TryParse(udp *UDP) (*Packet, error) {
	offset := udp.PayloadOffset()
	if udp.Mbuf().Len()-offset < HeaderSize {
		return nil, fmt.Errorf("gdp: try_parse: %w", ErrPacketTooShort)
	}

	p := &Packet{udp: udp, offset: offset}

	var h Header
	if err := unmarshalHeader(p.headerBytes(), &h); err != nil {
		return nil, err
	}
	if h.Field != Magic {
		return nil, fmt.Errorf("gdp: try_parse: magic 0x%04x: %w", h.Field, ErrNotAGDPPacket)
	}
	if int(h.DataLen) > p.udp.Mbuf().Len()-p.dataOffset() {
		return nil, fmt.Errorf("gdp: try_parse: data_len %d exceeds payload: %w", h.DataLen, ErrPacketTooShort)
	}

	udp.child = true
	return p, nil
}

// headerBytes returns a slice view of this packet's fixed 100-byte header.
func (p *Packet) headerBytes() []byte {
	b, err := p.udp.Mbuf().ReadAt(p.offset, HeaderSize)
	if err != nil {
		// The caller is responsible for ensuring the header region exists
		// (TryPush/TryParse both do); a failure here means an internal
		// invariant was violated, which we surface as a zero-length slice
		// rather than panicking on the data path.
		return nil
	}
	return b
}

func (p *Packet) header() Header {
	var h Header
	_ = unmarshalHeader(p.headerBytes(), &h)
	return h
}

// Mbuf returns the underlying buffer.
func (p *Packet) Mbuf() *mbuf.Mbuf { return p.udp.Mbuf() }

// Envelope returns the enclosing UDP layer.
func (p *Packet) Envelope() *UDP { return p.udp }

// HeaderOffset returns the absolute offset of this layer's own header.
func (p *Packet) HeaderOffset() int { return p.offset }

// dataOffset returns the absolute offset where the application data region
// begins (immediately after the fixed header).
func (p *Packet) dataOffset() int { return p.offset + HeaderSize }

// Deparse drops this view and returns its envelope, unchanged (spec §4.1).
// Clearing the envelope's child flag here is what lets a caller legitimately
// re-derive a fresh Packet view over the same UDP envelope afterward without
// tripping the borrow check in TryPush/TryParse.
func (p *Packet) Deparse() *UDP {
	p.udp.child = false
	return p.udp
}

// Reconcile re-stamps the magic field (spec §4.1: "called after edits that
// might have zeroed them").
func (p *Packet) Reconcile() {
	b := p.headerBytes()
	if len(b) < offTTL {
		return
	}
	b[offField] = byte(Magic >> 8)
	b[offField+1] = byte(Magic & 0xFF)
}

// ReconcileAll cascades Reconcile from this layer outward: GDP magic, then
// UDP length, then IPv4 total length/checksum; Ethernet is a no-op (spec
// §4.1).
func (p *Packet) ReconcileAll() {
	p.Reconcile()
	p.udp.Reconcile()
	p.udp.Envelope().Reconcile()
	p.udp.Envelope().Envelope().Reconcile()
}

// -------------------------------------------------------------------------
// Field accessors
// -------------------------------------------------------------------------

// Action returns the decoded action field.
func (p *Packet) Action() Action { return decodeAction(p.headerBytes()[offAction]) }

// SetAction sets the action field.
func (p *Packet) SetAction(a Action) { p.headerBytes()[offAction] = uint8(a) }

// TTL returns the remaining GDP-level hop count.
func (p *Packet) TTL() uint8 { return p.headerBytes()[offTTL] }

// SetTTL sets the remaining GDP-level hop count.
func (p *Packet) SetTTL(ttl uint8) { p.headerBytes()[offTTL] = ttl }

// Src returns the source name.
func (p *Packet) Src() Name {
	var n Name
	copy(n[:], p.headerBytes()[offSrc:])
	return n
}

// SetSrc sets the source name.
func (p *Packet) SetSrc(n Name) { copy(p.headerBytes()[offSrc:], n[:]) }

// Dst returns the destination name.
func (p *Packet) Dst() Name {
	var n Name
	copy(n[:], p.headerBytes()[offDst:])
	return n
}

// SetDst sets the destination name.
func (p *Packet) SetDst(n Name) { copy(p.headerBytes()[offDst:], n[:]) }

// LastHop returns the most recent forwarder's name.
func (p *Packet) LastHop() Name {
	var n Name
	copy(n[:], p.headerBytes()[offLastHop:])
	return n
}

// SetLastHop sets the most recent forwarder's name.
func (p *Packet) SetLastHop(n Name) { copy(p.headerBytes()[offLastHop:], n[:]) }

// DataLen returns the length of the application data region (excludes any
// trailing certificate block).
func (p *Packet) DataLen() int { return int(p.header().DataLen) }

// -------------------------------------------------------------------------
// Data and certificate regions
// -------------------------------------------------------------------------

// Data returns a slice view of the application data region.
func (p *Packet) Data() ([]byte, error) {
	return p.udp.Mbuf().ReadAt(p.dataOffset(), p.DataLen())
}

// SetData replaces the application data region with data, growing or
// shrinking the mbuf in place. Any trailing certificate block is preserved
// (it is relocated, not clobbered) because the resize happens at the end of
// the data region, before the certs.
func (p *Packet) SetData(data []byte) error {
	oldLen := p.DataLen()
	newLen := len(data)

	oldTotal := p.dataOffset() + oldLen
	// Everything at and beyond oldTotal (the cert block) must be preserved;
	// Resize's Grow/Shrink operate at that boundary so certs shift with it.
	if err := p.udp.Mbuf().Resize(oldTotal, p.dataOffset()+newLen); err != nil {
		return fmt.Errorf("gdp: set data: %w", err)
	}
	if err := p.udp.Mbuf().WriteAt(p.dataOffset(), data); err != nil {
		return fmt.Errorf("gdp: set data: %w", err)
	}

	b := p.headerBytes()
	b[offDataLen] = byte(newLen >> 8)
	b[offDataLen+1] = byte(newLen)

	return nil
}

// GetCerts deserializes the trailing certificate block (spec §4.1). An
// empty region deserializes to an empty block; a malformed block returns
// ErrCertDecode (non-fatal -- callers forward with an empty cert view).
func (p *Packet) GetCerts() (CertificateBlock, error) {
	certOffset := p.dataOffset() + p.DataLen()
	region, err := p.udp.Mbuf().ReadAt(certOffset, p.udp.Mbuf().Len()-certOffset)
	if err != nil {
		return CertificateBlock{}, fmt.Errorf("gdp: get certs: %w", err)
	}
	return unmarshalCerts(region)
}

// SetCerts serializes certs and replaces the trailing certificate region,
// truncating the mbuf to end-of-data first if needed (spec §4.1).
func (p *Packet) SetCerts(certs CertificateBlock) error {
	certOffset := p.dataOffset() + p.DataLen()
	serialized := marshalCerts(certs)

	if err := p.udp.Mbuf().Shrink(certOffset); err != nil {
		return fmt.Errorf("gdp: set certs: %w", err)
	}
	if len(serialized) > 0 {
		if err := p.udp.Mbuf().Grow(certOffset, len(serialized)); err != nil {
			return fmt.Errorf("gdp: set certs: %w", err)
		}
		if err := p.udp.Mbuf().WriteAt(certOffset, serialized); err != nil {
			return fmt.Errorf("gdp: set certs: %w", err)
		}
	}

	return nil
}

// RemovePayload truncates the mbuf to end-of-header and sets data_len to
// zero, dropping both the data region and any certificates. Used by
// BounceGDP to strip a Forward packet's payload before turning it into a
// Nack (spec §4.4).
func (p *Packet) RemovePayload() error {
	if err := p.udp.Mbuf().Shrink(p.dataOffset()); err != nil {
		return fmt.Errorf("gdp: remove payload: %w", err)
	}
	b := p.headerBytes()
	b[offDataLen] = 0
	b[offDataLen+1] = 0
	return nil
}
