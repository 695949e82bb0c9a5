package gdp_test

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/dantte-lp/gdp-router/internal/gdp"
)

func buildIPv4(t *testing.T) *gdp.IPv4 {
	t.Helper()
	eth := buildEthernet(t)
	ip, err := gdp.PushIPv4(eth)
	if err != nil {
		t.Fatalf("PushIPv4: %v", err)
	}
	return ip
}

func TestUDPPushAndParse(t *testing.T) {
	t.Parallel()

	ip := buildIPv4(t)
	udp, err := gdp.PushUDP(ip)
	if err != nil {
		t.Fatalf("PushUDP: %v", err)
	}
	udp.SetSrcPort(27182)
	udp.SetDstPort(27183)

	parsed, err := gdp.TryParseUDP(ip)
	if err != nil {
		t.Fatalf("TryParseUDP: %v", err)
	}
	if parsed.SrcPort() != 27182 {
		t.Errorf("SrcPort() = %d, want 27182", parsed.SrcPort())
	}
	if parsed.DstPort() != 27183 {
		t.Errorf("DstPort() = %d, want 27183", parsed.DstPort())
	}
}

func TestUDPParseRejectsShortBuffer(t *testing.T) {
	t.Parallel()

	ip := buildIPv4(t)
	_, err := gdp.TryParseUDP(ip)
	if !errors.Is(err, gdp.ErrPacketTooShort) {
		t.Fatalf("got %v, want ErrPacketTooShort", err)
	}
}

func TestUDPReconcileUpdatesLengthAndZeroesChecksum(t *testing.T) {
	t.Parallel()

	ip := buildIPv4(t)
	udp, err := gdp.PushUDP(ip)
	if err != nil {
		t.Fatalf("PushUDP: %v", err)
	}
	if err := udp.Mbuf().Grow(udp.Mbuf().Len(), 10); err != nil {
		t.Fatalf("Grow: %v", err)
	}
	hdr := udp.Mbuf().Bytes()[udp.HeaderOffset():]
	hdr[6], hdr[7] = 0xAB, 0xCD // stale checksum for Reconcile to clear
	udp.Reconcile()

	want := gdp.UDPHeaderSize + 10
	if got := udp.PayloadLen() + gdp.UDPHeaderSize; got != want {
		t.Errorf("PayloadLen()+UDPHeaderSize = %d, want %d", got, want)
	}
	hdr = udp.Mbuf().Bytes()[udp.HeaderOffset():]
	if got := int(binary.BigEndian.Uint16(hdr[4:6])); got != want {
		t.Errorf("UDP length field = %d, want %d", got, want)
	}
	if got := binary.BigEndian.Uint16(hdr[6:8]); got != 0 {
		t.Errorf("UDP checksum field = %#04x, want 0", got)
	}
}
