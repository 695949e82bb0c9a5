// Package switchplane implements the switch role's header rewrites and the
// forwarding decision they hang off: forward on a forwarding-table hit,
// bounce a Nack and issue a RIB query on a miss (spec §4.3 "switch_
// pipeline", §4.4 "Header rewrites").
package switchplane

import (
	"fmt"
	"net/netip"

	"github.com/dantte-lp/gdp-router/internal/gdp"
)

// ForwardGDP rewrites pkt for forwarding to dst: IPv4 src becomes the old
// IPv4 dst, IPv4 dst becomes dst, ttl is decremented, and last_hop is
// rewritten to selfName. Preconditions: pkt.TTL() > 0 and dst is a valid
// unicast IPv4 address (spec §4.4: "forward_gdp").
func ForwardGDP(pkt *gdp.Packet, dst netip.Addr, selfName gdp.Name) error {
	if pkt.TTL() == 0 {
		return fmt.Errorf("switchplane: forward_gdp: %w", gdp.ErrTTLExpired)
	}
	if !isValidUnicast(dst) {
		return fmt.Errorf("switchplane: forward_gdp: %w", gdp.ErrInvalidDestination)
	}

	udp := pkt.Deparse()
	ip := udp.Envelope()

	oldDst := ip.Dst()
	ip.SetSrc(oldDst)
	ip.SetDst(dst)
	pkt.SetTTL(pkt.TTL() - 1)
	pkt.SetLastHop(selfName)

	pkt.ReconcileAll()
	return nil
}

// BounceGDP turns pkt into a Nack addressed back at its sender: the payload
// and any certificates are stripped, the action becomes Nack, and both the
// UDP ports and the Ethernet addresses are swapped (spec §4.4: "bounce_
// gdp"). IPv4 addresses are left untouched, matching bounce_udp's contract.
func BounceGDP(pkt *gdp.Packet) error {
	if err := pkt.RemovePayload(); err != nil {
		return fmt.Errorf("switchplane: bounce_gdp: %w", err)
	}
	pkt.SetAction(gdp.ActionNack)

	BounceUDP(pkt.Deparse())

	pkt.ReconcileAll()
	return nil
}

// BounceUDP swaps a UDP datagram's src/dst ports and its enclosing
// Ethernet frame's src/dst addresses, leaving IPv4 addresses untouched --
// those are the caller's responsibility (spec §4.4: "bounce_udp").
func BounceUDP(udp *gdp.UDP) {
	srcPort, dstPort := udp.SrcPort(), udp.DstPort()
	udp.SetSrcPort(dstPort)
	udp.SetDstPort(srcPort)

	eth := udp.Envelope().Envelope()
	srcMAC, dstMAC := eth.Src(), eth.Dst()
	eth.SetSrc(dstMAC)
	eth.SetDst(srcMAC)
}

// isValidUnicast reports whether addr is usable as a forwarding
// destination: a valid IPv4 address that is neither unspecified nor
// multicast (spec §4.4: "dst is a valid unicast IPv4").
func isValidUnicast(addr netip.Addr) bool {
	return addr.IsValid() && addr.Is4() && !addr.IsUnspecified() && !addr.IsMulticast()
}
