package security

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/juspay/hyperswitch-sub035/pkg/config"
)

// ErrMalformedCiphertext signals a sealed value too short to contain a nonce.
var ErrMalformedCiphertext = errors.New("malformed ciphertext")

// Cipher seals and opens PII with XChaCha20-Poly1305. Output is nonce||ciphertext.
type Cipher struct {
	key []byte
}

// NewCipher validates the key length and returns a Cipher.
func NewCipher(key []byte) (*Cipher, error) {
	if len(key) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("pii key must be %d bytes, got %d", chacha20poly1305.KeySize, len(key))
	}
	k := make([]byte, len(key))
	copy(k, key)
	return &Cipher{key: k}, nil
}

// CipherFromConfig decodes the base64 master key from config.
func CipherFromConfig(cfg config.SecurityConfig) (*Cipher, error) {
	raw := strings.TrimSpace(cfg.PIIKey)
	if raw == "" {
		return nil, fmt.Errorf("pii key is required")
	}
	key, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("decode pii key: %w", err)
	}
	return NewCipher(key)
}

// GenerateKey returns a fresh random key suitable for NewCipher.
func GenerateKey() ([]byte, error) {
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	return key, nil
}

func (c *Cipher) Seal(plaintext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(c.key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	return aead.Seal(nonce, nonce, plaintext, nil), nil
}

func (c *Cipher) Open(sealed []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(c.key)
	if err != nil {
		return nil, err
	}
	if len(sealed) < aead.NonceSize()+aead.Overhead() {
		return nil, ErrMalformedCiphertext
	}
	nonce, body := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, body, nil)
	if err != nil {
		return nil, fmt.Errorf("open sealed value: %w", err)
	}
	return plaintext, nil
}

// SealJSON marshals v and seals the result.
func (c *Cipher) SealJSON(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal pii: %w", err)
	}
	return c.Seal(raw)
}

// OpenJSON opens sealed and decodes it into dest.
func (c *Cipher) OpenJSON(sealed []byte, dest any) error {
	raw, err := c.Open(sealed)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("decode pii: %w", err)
	}
	return nil
}

// MerchantCipher opens the merchant's sealed data key with the master cipher
// and returns a cipher keyed by it.
func (c *Cipher) MerchantCipher(sealedKey []byte) (*Cipher, error) {
	key, err := c.Open(sealedKey)
	if err != nil {
		return nil, fmt.Errorf("open merchant key: %w", err)
	}
	return NewCipher(key)
}
