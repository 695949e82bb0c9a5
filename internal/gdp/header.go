package gdp

import (
	"encoding/binary"
	"fmt"
)

// -------------------------------------------------------------------------
// Wire Constants — spec §3
// -------------------------------------------------------------------------

// Magic is the GDP magic nonce that identifies a GDP packet inside a UDP
// payload (spec §3: field "0x262a").
const Magic uint16 = 0x262a

// HeaderSize is the fixed, packed size of a GdpHeader in bytes (spec §3:
// "Header size is exactly 100 bytes.").
const HeaderSize = 2 + 1 + 1 + NameSize + NameSize + NameSize + 2

// DefaultTTL is the GDP-level hop count stamped on a freshly pushed header
// (spec §3: "default 64").
const DefaultTTL uint8 = 64

// byte offsets within the 100-byte header.
const (
	offField    = 0
	offTTL      = 2
	offAction   = 3
	offSrc      = 4
	offDst      = offSrc + NameSize
	offLastHop  = offDst + NameSize
	offDataLen  = offLastHop + NameSize
)

// Header is the decoded form of the fixed 100-byte GDP header (spec §3).
type Header struct {
	Field    uint16
	TTL      uint8
	Action   Action
	Src      Name
	Dst      Name
	LastHop  Name
	DataLen  uint16
}

// defaultHeader returns the header stamped by a fresh TryPush: magic set,
// TTL at its default, everything else zeroed (spec §3, §4.1).
func defaultHeader() Header {
	return Header{
		Field: Magic,
		TTL:   DefaultTTL,
	}
}

// marshalHeader writes h into buf, which must be at least HeaderSize bytes.
func marshalHeader(h Header, buf []byte) error {
	if len(buf) < HeaderSize {
		return fmt.Errorf("gdp: marshal header needs %d bytes, got %d: %w",
			HeaderSize, len(buf), ErrBufferShort)
	}

	binary.BigEndian.PutUint16(buf[offField:], h.Field)
	buf[offTTL] = h.TTL
	buf[offAction] = uint8(h.Action)
	copy(buf[offSrc:offSrc+NameSize], h.Src[:])
	copy(buf[offDst:offDst+NameSize], h.Dst[:])
	copy(buf[offLastHop:offLastHop+NameSize], h.LastHop[:])
	binary.BigEndian.PutUint16(buf[offDataLen:], h.DataLen)

	return nil
}

// unmarshalHeader decodes a Header from buf, which must be at least
// HeaderSize bytes. It does not validate the magic field; callers that
// require a well-formed GDP packet check h.Field == Magic themselves (see
// TryParse), matching spec §4.1's "try_parse ... on failure, fail with
// NotAGdpPacket."
func unmarshalHeader(buf []byte, h *Header) error {
	if len(buf) < HeaderSize {
		return fmt.Errorf("gdp: unmarshal header needs %d bytes, got %d: %w",
			HeaderSize, len(buf), ErrPacketTooShort)
	}

	h.Field = binary.BigEndian.Uint16(buf[offField:])
	h.TTL = buf[offTTL]
	h.Action = decodeAction(buf[offAction])
	copy(h.Src[:], buf[offSrc:offSrc+NameSize])
	copy(h.Dst[:], buf[offDst:offDst+NameSize])
	copy(h.LastHop[:], buf[offLastHop:offLastHop+NameSize])
	h.DataLen = binary.BigEndian.Uint16(buf[offDataLen:])

	return nil
}
