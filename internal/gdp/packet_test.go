package gdp_test

import (
	"errors"
	"testing"

	"github.com/dantte-lp/gdp-router/internal/gdp"
	"github.com/dantte-lp/gdp-router/internal/mbuf"
)

func buildFullStack(t *testing.T) *gdp.Packet {
	t.Helper()
	return buildBarePacket(t)
}

func TestPacketPushDefaultsMagicAndTTL(t *testing.T) {
	t.Parallel()

	p := buildFullStack(t)

	if p.TTL() != gdp.DefaultTTL {
		t.Errorf("TTL() = %d, want %d", p.TTL(), gdp.DefaultTTL)
	}
	if p.Action() != gdp.ActionNoop {
		t.Errorf("Action() = %v, want ActionNoop", p.Action())
	}
}

func TestPacketTryParseRoundTrip(t *testing.T) {
	t.Parallel()

	p := buildFullStack(t)

	var src, dst gdp.Name
	src[0] = 0xAA
	dst[0] = 0xBB
	p.SetSrc(src)
	p.SetDst(dst)
	p.SetAction(gdp.ActionForward)
	p.SetTTL(7)

	if err := p.SetData([]byte("hello gdp")); err != nil {
		t.Fatalf("SetData: %v", err)
	}

	udp := p.Deparse()
	reparsed, err := gdp.TryParse(udp)
	if err != nil {
		t.Fatalf("TryParse: %v", err)
	}

	if reparsed.Src() != src {
		t.Errorf("Src() = %x, want %x", reparsed.Src(), src)
	}
	if reparsed.Dst() != dst {
		t.Errorf("Dst() = %x, want %x", reparsed.Dst(), dst)
	}
	if reparsed.Action() != gdp.ActionForward {
		t.Errorf("Action() = %v, want ActionForward", reparsed.Action())
	}
	if reparsed.TTL() != 7 {
		t.Errorf("TTL() = %d, want 7", reparsed.TTL())
	}

	data, err := reparsed.Data()
	if err != nil {
		t.Fatalf("Data: %v", err)
	}
	if string(data) != "hello gdp" {
		t.Errorf("Data() = %q, want %q", data, "hello gdp")
	}
}

func TestPacketTryParseRejectsBadMagic(t *testing.T) {
	t.Parallel()

	m := mbuf.Get()
	defer mbuf.Put(m)

	eth, err := gdp.PushEthernet(m, 0)
	if err != nil {
		t.Fatalf("PushEthernet: %v", err)
	}
	ip, err := gdp.PushIPv4(eth)
	if err != nil {
		t.Fatalf("PushIPv4: %v", err)
	}
	udp, err := gdp.PushUDP(ip)
	if err != nil {
		t.Fatalf("PushUDP: %v", err)
	}
	if err := udp.Mbuf().Grow(udp.Mbuf().Len(), gdp.HeaderSize); err != nil {
		t.Fatalf("Grow: %v", err)
	}
	// Magic left zero, so this is not a valid GDP header.

	_, err = gdp.TryParse(udp)
	if !errors.Is(err, gdp.ErrNotAGDPPacket) {
		t.Fatalf("got %v, want ErrNotAGDPPacket", err)
	}
}

func TestPacketRemovePayloadDropsDataAndCerts(t *testing.T) {
	t.Parallel()

	p := buildFullStack(t)

	if err := p.SetData([]byte("payload to be dropped")); err != nil {
		t.Fatalf("SetData: %v", err)
	}
	if err := p.SetCerts(gdp.CertificateBlock{Certificates: [][]byte{[]byte("cert")}}); err != nil {
		t.Fatalf("SetCerts: %v", err)
	}

	if err := p.RemovePayload(); err != nil {
		t.Fatalf("RemovePayload: %v", err)
	}

	if p.DataLen() != 0 {
		t.Errorf("DataLen() = %d, want 0", p.DataLen())
	}
	certs, err := p.GetCerts()
	if err != nil {
		t.Fatalf("GetCerts after RemovePayload: %v", err)
	}
	if len(certs.Certificates) != 0 {
		t.Errorf("expected no certificates after RemovePayload, got %d", len(certs.Certificates))
	}
	if p.Mbuf().Len() != p.HeaderOffset()+gdp.HeaderSize {
		t.Errorf("mbuf length %d, want exactly header end %d", p.Mbuf().Len(), p.HeaderOffset()+gdp.HeaderSize)
	}
}

func TestPacketReconcileAllCascadesThroughLayers(t *testing.T) {
	t.Parallel()

	p := buildFullStack(t)
	if err := p.SetData([]byte("some application data")); err != nil {
		t.Fatalf("SetData: %v", err)
	}

	// Clobber fields that Reconcile/ReconcileAll are responsible for
	// restoring, simulating an in-place edit that zeroed them.
	udp := p.Deparse()
	ip := udp.Envelope()
	buf := ip.Mbuf().Bytes()
	buf[ip.HeaderOffset()+2] = 0 // IPv4 total length high byte
	buf[ip.HeaderOffset()+3] = 0

	p.ReconcileAll()

	if _, err := gdp.TryParseIPv4(ip.Envelope()); err != nil {
		t.Fatalf("TryParseIPv4 after ReconcileAll: %v", err)
	}
	if _, err := gdp.TryParse(udp); err != nil {
		t.Fatalf("TryParse after ReconcileAll: %v", err)
	}
}
