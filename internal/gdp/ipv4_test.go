package gdp_test

import (
	"encoding/binary"
	"errors"
	"net/netip"
	"testing"

	"github.com/dantte-lp/gdp-router/internal/gdp"
	"github.com/dantte-lp/gdp-router/internal/mbuf"
)

func buildEthernet(t *testing.T) *gdp.Ethernet {
	t.Helper()
	m := mbuf.Get()
	t.Cleanup(func() { mbuf.Put(m) })
	eth, err := gdp.PushEthernet(m, 0)
	if err != nil {
		t.Fatalf("PushEthernet: %v", err)
	}
	return eth
}

func TestIPv4PushAndParse(t *testing.T) {
	t.Parallel()

	eth := buildEthernet(t)
	ip, err := gdp.PushIPv4(eth)
	if err != nil {
		t.Fatalf("PushIPv4: %v", err)
	}

	src := netip.MustParseAddr("10.100.1.1")
	dst := netip.MustParseAddr("10.100.1.10")
	ip.SetSrc(src)
	ip.SetDst(dst)

	if ip.TTL() != 64 {
		t.Errorf("TTL() = %d, want 64", ip.TTL())
	}

	parsed, err := gdp.TryParseIPv4(eth)
	if err != nil {
		t.Fatalf("TryParseIPv4: %v", err)
	}
	if parsed.Src() != src {
		t.Errorf("Src() = %v, want %v", parsed.Src(), src)
	}
	if parsed.Dst() != dst {
		t.Errorf("Dst() = %v, want %v", parsed.Dst(), dst)
	}
}

func TestIPv4ParseRejectsWrongProtocol(t *testing.T) {
	t.Parallel()

	eth := buildEthernet(t)
	if err := eth.Mbuf().Grow(eth.PayloadOffset(), gdp.IPv4HeaderSize); err != nil {
		t.Fatalf("Grow: %v", err)
	}
	buf := eth.Mbuf().Bytes()
	buf[eth.PayloadOffset()] = 0x45 // version/IHL, protocol left as 0 (not UDP)

	_, err := gdp.TryParseIPv4(eth)
	if !errors.Is(err, gdp.ErrBadIPProtocol) {
		t.Fatalf("got %v, want ErrBadIPProtocol", err)
	}
}

func TestIPv4ReconcileUpdatesChecksumAndLength(t *testing.T) {
	t.Parallel()

	eth := buildEthernet(t)
	ip, err := gdp.PushIPv4(eth)
	if err != nil {
		t.Fatalf("PushIPv4: %v", err)
	}

	if err := ip.Mbuf().Grow(ip.Mbuf().Len(), 16); err != nil {
		t.Fatalf("Grow (simulate payload): %v", err)
	}
	ip.Reconcile()

	parsed, err := gdp.TryParseIPv4(eth)
	if err != nil {
		t.Fatalf("TryParseIPv4 after Reconcile: %v", err)
	}
	_ = parsed

	hdr := ip.Mbuf().Bytes()[ip.HeaderOffset() : ip.HeaderOffset()+gdp.IPv4HeaderSize]
	if got, want := int(binary.BigEndian.Uint16(hdr[2:4])), gdp.IPv4HeaderSize+16; got != want {
		t.Errorf("total length field = %d, want %d", got, want)
	}
	// A correct header checksum makes the folded one's-complement sum of the
	// whole header, checksum included, equal 0xFFFF.
	var sum uint32
	for i := 0; i < len(hdr); i += 2 {
		sum += uint32(binary.BigEndian.Uint16(hdr[i : i+2]))
	}
	for sum>>16 != 0 {
		sum = (sum & 0xFFFF) + (sum >> 16)
	}
	if sum != 0xFFFF {
		t.Errorf("header checksum does not verify: folded sum = %#04x, want 0xffff", sum)
	}
}
