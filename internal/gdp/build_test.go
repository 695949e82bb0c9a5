package gdp_test

import (
	"net/netip"
	"testing"

	"github.com/dantte-lp/gdp-router/internal/gdp"
)

func TestBuildProducesParseableStack(t *testing.T) {
	t.Parallel()

	src := gdp.Endpoint{
		MAC:  gdp.MACAddr{0x02, 0x00, 0x00, 0xAA, 0xAA, 0x01},
		IP:   netip.MustParseAddr("10.0.0.5"),
		Port: 27182,
	}
	dst := gdp.Endpoint{
		MAC:  gdp.MACAddr{0x02, 0x00, 0x00, 0xFF, 0xFF, 0x00},
		IP:   netip.MustParseAddr("10.100.1.10"),
		Port: 27182,
	}

	p, err := gdp.Build(src, dst)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer p.Release()

	udp := p.Deparse()
	ip := udp.Envelope()
	eth := ip.Envelope()

	if eth.Src() != src.MAC {
		t.Errorf("eth.Src() = %v, want %v", eth.Src(), src.MAC)
	}
	if eth.Dst() != dst.MAC {
		t.Errorf("eth.Dst() = %v, want %v", eth.Dst(), dst.MAC)
	}
	if ip.Src() != src.IP {
		t.Errorf("ip.Src() = %v, want %v", ip.Src(), src.IP)
	}
	if ip.Dst() != dst.IP {
		t.Errorf("ip.Dst() = %v, want %v", ip.Dst(), dst.IP)
	}
	if udp.SrcPort() != src.Port || udp.DstPort() != dst.Port {
		t.Errorf("udp ports = %d/%d, want %d/%d", udp.SrcPort(), udp.DstPort(), src.Port, dst.Port)
	}

	reparsed, err := gdp.TryParse(udp)
	if err != nil {
		t.Fatalf("TryParse on built packet: %v", err)
	}
	_ = reparsed
}
