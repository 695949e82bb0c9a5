// Package aead wraps GDP's UDP payload with an AES-256-GCM AEAD layer,
// matching the "DTLS" termination point in the original design: everything
// carried inside the UDP datagram (the GDP header, data, and certificates)
// is opaque ciphertext on the wire.
//
// The default key and nonce are fixed and shared by every node, a
// deliberately preserved weakness of the design being modeled (see
// DESIGN.md); NewCipher lets a caller supply its own for configurations
// that need real confidentiality between nodes.
package aead

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"

	"github.com/dantte-lp/gdp-router/internal/gdp"
)

// KeySize and NonceSize are AES-256-GCM's required key and nonce widths.
const (
	KeySize   = 32
	NonceSize = 12
)

// defaultKey and defaultNonce are the fixed values every node uses unless
// overridden via NewCipher. They are not secret; this mirrors the reference
// design's self-admitted placeholder scheme rather than adding confidentiality
// guarantees the overlay does not actually provide.
var (
	defaultKey   = []byte("an example very very secret key.")
	defaultNonce = []byte("unique nonce")
)

// ErrAuthenticationFailed indicates GCM tag verification failed on Decrypt:
// the ciphertext was truncated, corrupted, or encrypted under a different
// key/nonce pair.
var ErrAuthenticationFailed = errors.New("aead: authentication failed")

// Cipher seals and opens GDP's UDP payload under a single fixed key/nonce
// pair (spec §4.2, §9).
type Cipher struct {
	aead  cipher.AEAD
	nonce []byte
}

// NewDefault returns a Cipher using the fixed key and nonce every node uses
// out of the box.
func NewDefault() (*Cipher, error) {
	return NewCipher(defaultKey, defaultNonce)
}

// NewCipher returns a Cipher using key and nonce, which must be exactly
// KeySize and NonceSize bytes respectively.
func NewCipher(key, nonce []byte) (*Cipher, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("aead: key must be %d bytes, got %d", KeySize, len(key))
	}
	if len(nonce) != NonceSize {
		return nil, fmt.Errorf("aead: nonce must be %d bytes, got %d", NonceSize, len(nonce))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("aead: new cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("aead: new gcm: %w", err)
	}

	n := make([]byte, NonceSize)
	copy(n, nonce)
	return &Cipher{aead: gcm, nonce: n}, nil
}

// GenerateKey returns a fresh random KeySize-byte key, for callers that want
// to override the fixed default via configuration.
func GenerateKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("aead: generate key: %w", err)
	}
	return key, nil
}

// EncryptGDP seals udp's entire payload (the plaintext GDP header, data, and
// certificate block) in place, growing the mbuf by the GCM authentication
// tag's overhead (spec §4.2: "encrypt_gdp").
func (c *Cipher) EncryptGDP(udp *gdp.UDP) error {
	plaintext, err := udp.Payload()
	if err != nil {
		return fmt.Errorf("aead: encrypt: %w", err)
	}

	sealed := c.aead.Seal(nil, c.nonce, plaintext, nil)

	oldTotal := udp.PayloadOffset() + len(plaintext)
	newTotal := udp.PayloadOffset() + len(sealed)
	if err := udp.Mbuf().Resize(oldTotal, newTotal); err != nil {
		return fmt.Errorf("aead: encrypt: resize: %w", err)
	}
	if err := udp.Mbuf().WriteAt(udp.PayloadOffset(), sealed); err != nil {
		return fmt.Errorf("aead: encrypt: write: %w", err)
	}

	udp.Reconcile()
	udp.Envelope().Reconcile()
	return nil
}

// DecryptGDP opens udp's payload in place, shrinking the mbuf back down to
// the plaintext's length. A tampered or truncated payload returns
// ErrAuthenticationFailed, which callers treat as a dropped packet rather
// than a fatal error (spec §4.2, §7).
func (c *Cipher) DecryptGDP(udp *gdp.UDP) error {
	ciphertext, err := udp.Payload()
	if err != nil {
		return fmt.Errorf("aead: decrypt: %w", err)
	}

	opened, err := c.aead.Open(nil, c.nonce, ciphertext, nil)
	if err != nil {
		return fmt.Errorf("aead: decrypt: %w", ErrAuthenticationFailed)
	}

	oldTotal := udp.PayloadOffset() + len(ciphertext)
	newTotal := udp.PayloadOffset() + len(opened)
	if err := udp.Mbuf().Resize(oldTotal, newTotal); err != nil {
		return fmt.Errorf("aead: decrypt: resize: %w", err)
	}
	if err := udp.Mbuf().WriteAt(udp.PayloadOffset(), opened); err != nil {
		return fmt.Errorf("aead: decrypt: write: %w", err)
	}

	udp.Reconcile()
	udp.Envelope().Reconcile()
	return nil
}
