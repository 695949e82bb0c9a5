package gdp

import "errors"

// Sentinel errors for the GDP codec. All are non-fatal on the data path
// (spec §7): the caller drops the packet and increments a counter rather
// than propagating a fatal error.
var (
	// ErrNotAGDPPacket indicates the magic field did not match 0x262a.
	ErrNotAGDPPacket = errors.New("gdp: not a GDP packet")

	// ErrPacketTooShort indicates the buffer is shorter than the layer's
	// fixed header size.
	ErrPacketTooShort = errors.New("gdp: packet too short")

	// ErrBadEtherType indicates the Ethernet EtherType is not 0x0800 (IPv4).
	ErrBadEtherType = errors.New("gdp: unexpected EtherType, want IPv4")

	// ErrBadIPVersion indicates the IPv4 header's version nibble is not 4.
	ErrBadIPVersion = errors.New("gdp: IP version is not 4")

	// ErrBadIPProtocol indicates the IPv4 protocol field is not UDP (17).
	ErrBadIPProtocol = errors.New("gdp: IP protocol is not UDP")

	// ErrBufferShort indicates an Mbuf extend/truncate failed, standing in
	// for pool exhaustion in a real DPDK-style allocator (spec §7).
	ErrBufferShort = errors.New("gdp: buffer operation failed")

	// ErrCertDecode indicates the trailing certificate block was malformed.
	// Non-fatal: the packet is still forwarded with an empty cert view.
	ErrCertDecode = errors.New("gdp: certificate block decode failed")

	// ErrInvalidDestination indicates a forwarding destination address was
	// not a valid unicast IPv4 address.
	ErrInvalidDestination = errors.New("gdp: invalid forwarding destination")

	// ErrTTLExpired indicates ttl == 0 on a packet that reached the switch
	// pipeline; the packet must be dropped before further processing.
	ErrTTLExpired = errors.New("gdp: ttl expired")

	// ErrInvalidNameLength indicates a decoded name was not exactly
	// NameSize bytes.
	ErrInvalidNameLength = errors.New("gdp: name must be 32 bytes")
)
