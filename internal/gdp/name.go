package gdp

import "encoding/hex"

// NameSize is the length in bytes of a GdpName (spec §3: "256-bit flat
// name").
const NameSize = 32

// Name is a 256-bit opaque, flat identifier for a GDP endpoint. It is
// produced externally (e.g. the hash of a public key) and treated as an
// opaque byte string here: compared byte-wise, hashed as raw bytes, never
// interpreted hierarchically.
type Name [NameSize]byte

// String renders the name as lowercase hex, matching the static-routes file
// format (SPEC_FULL.md §6).
func (n Name) String() string {
	return hex.EncodeToString(n[:])
}

// IsZero reports whether n is the all-zero name. The zero name is never a
// valid GDP endpoint identifier and is used internally as a "not present"
// sentinel (e.g. an unset last_hop before any forward).
func (n Name) IsZero() bool {
	return n == Name{}
}

// ParseName decodes a 64-character hex string into a Name.
func ParseName(s string) (Name, error) {
	var n Name
	b, err := hex.DecodeString(s)
	if err != nil {
		return n, err
	}
	if len(b) != NameSize {
		return n, ErrInvalidNameLength
	}
	copy(n[:], b)
	return n, nil
}
