package gdp_test

import (
	"errors"
	"testing"

	"github.com/dantte-lp/gdp-router/internal/gdp"
	"github.com/dantte-lp/gdp-router/internal/mbuf"
)

// certs.go's marshal/unmarshal are unexported; exercise them indirectly
// through Packet.SetCerts/GetCerts on a fully built layer stack.

func buildBarePacket(t *testing.T) *gdp.Packet {
	t.Helper()

	m := mbuf.Get()
	t.Cleanup(func() { mbuf.Put(m) })

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
	p, err := gdp.TryPush(udp)
	if err != nil {
		t.Fatalf("TryPush: %v", err)
	}
	return p
}

func TestCertsEmptyRoundTrip(t *testing.T) {
	t.Parallel()

	p := buildBarePacket(t)

	got, err := p.GetCerts()
	if err != nil {
		t.Fatalf("GetCerts on fresh packet: %v", err)
	}
	if len(got.Certificates) != 0 {
		t.Fatalf("expected no certificates, got %d", len(got.Certificates))
	}
}

func TestCertsRoundTrip(t *testing.T) {
	t.Parallel()

	p := buildBarePacket(t)

	want := gdp.CertificateBlock{
		Certificates: [][]byte{
			[]byte("cert-one"),
			{},
			[]byte("a longer certificate payload with more bytes in it"),
		},
	}

	if err := p.SetCerts(want); err != nil {
		t.Fatalf("SetCerts: %v", err)
	}

	got, err := p.GetCerts()
	if err != nil {
		t.Fatalf("GetCerts: %v", err)
	}
	if len(got.Certificates) != len(want.Certificates) {
		t.Fatalf("got %d certificates, want %d", len(got.Certificates), len(want.Certificates))
	}
	for i := range want.Certificates {
		if string(got.Certificates[i]) != string(want.Certificates[i]) {
			t.Errorf("certificate %d: got %q, want %q", i, got.Certificates[i], want.Certificates[i])
		}
	}
}

func TestCertsReplaceShrinksThenGrows(t *testing.T) {
	t.Parallel()

	p := buildBarePacket(t)

	big := gdp.CertificateBlock{Certificates: [][]byte{make([]byte, 200)}}
	if err := p.SetCerts(big); err != nil {
		t.Fatalf("SetCerts(big): %v", err)
	}

	small := gdp.CertificateBlock{Certificates: [][]byte{[]byte("x")}}
	if err := p.SetCerts(small); err != nil {
		t.Fatalf("SetCerts(small): %v", err)
	}

	got, err := p.GetCerts()
	if err != nil {
		t.Fatalf("GetCerts: %v", err)
	}
	if len(got.Certificates) != 1 || string(got.Certificates[0]) != "x" {
		t.Fatalf("got %+v, want single certificate %q", got, "x")
	}
}

func TestCertsDecodeErrorOnTruncatedBlock(t *testing.T) {
	t.Parallel()

	p := buildBarePacket(t)
	if err := p.SetData(nil); err != nil {
		t.Fatalf("SetData: %v", err)
	}

	// Append a malformed trailing region directly: count field claims one
	// entry of length 0xFF, but no further bytes follow.
	dataEnd := p.HeaderOffset() + gdp.HeaderSize
	if err := p.Mbuf().Grow(dataEnd, 4); err != nil {
		t.Fatalf("Grow: %v", err)
	}
	if err := p.Mbuf().WriteAt(dataEnd, []byte{0x00, 0x01, 0x00, 0xFF}); err != nil {
		t.Fatalf("WriteAt: %v", err)
	}

	_, err := p.GetCerts()
	if err == nil {
		t.Fatal("expected a decode error for a truncated certificate block")
	}
	if !errors.Is(err, gdp.ErrCertDecode) {
		t.Fatalf("got %v, want ErrCertDecode", err)
	}
}
