package aead_test

import (
	"errors"
	"net/netip"
	"testing"

	"github.com/dantte-lp/gdp-router/internal/aead"
	"github.com/dantte-lp/gdp-router/internal/gdp"
	"github.com/dantte-lp/gdp-router/internal/mbuf"
)

func buildUDPWithGDP(t *testing.T, data []byte) *gdp.UDP {
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
	ip.SetSrc(netip.MustParseAddr("10.100.1.1"))
	ip.SetDst(netip.MustParseAddr("10.100.1.2"))

	udp, err := gdp.PushUDP(ip)
	if err != nil {
		t.Fatalf("PushUDP: %v", err)
	}
	udp.SetSrcPort(27182)
	udp.SetDstPort(27182)

	pkt, err := gdp.TryPush(udp)
	if err != nil {
		t.Fatalf("TryPush: %v", err)
	}
	if err := pkt.SetData(data); err != nil {
		t.Fatalf("SetData: %v", err)
	}

	return pkt.Deparse()
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	t.Parallel()

	c, err := aead.NewDefault()
	if err != nil {
		t.Fatalf("NewDefault: %v", err)
	}

	udp := buildUDPWithGDP(t, []byte("a GDP payload carried under AEAD"))

	if err := c.EncryptGDP(udp); err != nil {
		t.Fatalf("EncryptGDP: %v", err)
	}

	// Ciphertext should not parse as a GDP header.
	if _, err := gdp.TryParse(udp); err == nil {
		t.Fatal("expected encrypted payload to fail GDP parse")
	}

	if err := c.DecryptGDP(udp); err != nil {
		t.Fatalf("DecryptGDP: %v", err)
	}

	pkt, err := gdp.TryParse(udp)
	if err != nil {
		t.Fatalf("TryParse after decrypt: %v", err)
	}
	data, err := pkt.Data()
	if err != nil {
		t.Fatalf("Data: %v", err)
	}
	if string(data) != "a GDP payload carried under AEAD" {
		t.Errorf("Data() = %q, want original plaintext", data)
	}
}

func TestDecryptDetectsTampering(t *testing.T) {
	t.Parallel()

	c, err := aead.NewDefault()
	if err != nil {
		t.Fatalf("NewDefault: %v", err)
	}

	udp := buildUDPWithGDP(t, []byte("tamper me"))
	if err := c.EncryptGDP(udp); err != nil {
		t.Fatalf("EncryptGDP: %v", err)
	}

	// Flip every bit of the first ciphertext byte.
	buf := udp.Mbuf().Bytes()
	buf[udp.PayloadOffset()] ^= 0xFF

	err = c.DecryptGDP(udp)
	if !errors.Is(err, aead.ErrAuthenticationFailed) {
		t.Fatalf("got %v, want ErrAuthenticationFailed", err)
	}
}

func TestNewCipherRejectsWrongSizedKeyOrNonce(t *testing.T) {
	t.Parallel()

	if _, err := aead.NewCipher(make([]byte, 16), make([]byte, aead.NonceSize)); err == nil {
		t.Error("expected error for short key")
	}
	if _, err := aead.NewCipher(make([]byte, aead.KeySize), make([]byte, 4)); err == nil {
		t.Error("expected error for short nonce")
	}
}

func TestGenerateKeyProducesUsableKey(t *testing.T) {
	t.Parallel()

	key, err := aead.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	if len(key) != aead.KeySize {
		t.Fatalf("len(key) = %d, want %d", len(key), aead.KeySize)
	}
	if _, err := aead.NewCipher(key, make([]byte, aead.NonceSize)); err != nil {
		t.Fatalf("NewCipher with generated key: %v", err)
	}
}
