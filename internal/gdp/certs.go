package gdp

import (
	"encoding/binary"
	"fmt"
)

// CertificateBlock is the trailing, length-self-describing sequence of
// certificates appended after the GDP data region (spec §3, §4.1). This
// core treats each entry as an opaque byte string; the Ed25519 signature
// scaffolding that produces certificate payloads is out of scope (spec §1,
// §9).
//
// Wire format: u16be count, followed by count entries of u16be length
// prefix and that many bytes. This uses encoding/binary directly rather
// than a general-purpose serialization library -- see DESIGN.md.
type CertificateBlock struct {
	Certificates [][]byte
}

// certCountSize and certLenSize are the framing widths used by the
// CertificateBlock wire format.
const (
	certCountSize = 2
	certLenSize   = 2
)

// marshalCerts serializes cb. An empty or nil Certificates slice serializes
// to an empty byte slice (spec §4.1: "empty region ⇒ empty block").
func marshalCerts(cb CertificateBlock) []byte {
	if len(cb.Certificates) == 0 {
		return nil
	}

	size := certCountSize
	for _, c := range cb.Certificates {
		size += certLenSize + len(c)
	}

	buf := make([]byte, size)
	binary.BigEndian.PutUint16(buf, uint16(len(cb.Certificates))) //nolint:gosec // bounded by caller

	off := certCountSize
	for _, c := range cb.Certificates {
		binary.BigEndian.PutUint16(buf[off:], uint16(len(c))) //nolint:gosec // bounded by caller
		off += certLenSize
		copy(buf[off:], c)
		off += len(c)
	}

	return buf
}

// unmarshalCerts deserializes a CertificateBlock from buf. An empty buf
// deserializes to an empty block (spec §4.1). A malformed block returns
// ErrCertDecode; callers treat this as non-fatal and continue with an
// empty cert view (spec §4.1, §7).
func unmarshalCerts(buf []byte) (CertificateBlock, error) {
	if len(buf) == 0 {
		return CertificateBlock{}, nil
	}
	if len(buf) < certCountSize {
		return CertificateBlock{}, fmt.Errorf("gdp: cert block: %w", ErrCertDecode)
	}

	count := binary.BigEndian.Uint16(buf)
	off := certCountSize

	certs := make([][]byte, 0, count)
	for range int(count) {
		if off+certLenSize > len(buf) {
			return CertificateBlock{}, fmt.Errorf("gdp: cert block: truncated length prefix: %w", ErrCertDecode)
		}
		n := int(binary.BigEndian.Uint16(buf[off:]))
		off += certLenSize

		if off+n > len(buf) {
			return CertificateBlock{}, fmt.Errorf("gdp: cert block: truncated entry: %w", ErrCertDecode)
		}
		entry := make([]byte, n)
		copy(entry, buf[off:off+n])
		certs = append(certs, entry)
		off += n
	}

	if off != len(buf) {
		return CertificateBlock{}, fmt.Errorf("gdp: cert block: %d trailing bytes: %w", len(buf)-off, ErrCertDecode)
	}

	return CertificateBlock{Certificates: certs}, nil
}
