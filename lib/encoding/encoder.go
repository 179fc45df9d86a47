// Package encoding seals small values into URL- and cookie-safe strings.
//
// A Sealer is bound to a purpose: values sealed for one purpose do not
// open under another, even with the same key. Values are packed with
// msgpack and then either signed (readable, tamper-proof) or encrypted
// with AES-256-GCM (opaque).
package encoding

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
)

// Sentinel errors returned by Open.
var (
	ErrInvalidFormat    = errors.New("encoding: invalid format")
	ErrSignatureInvalid = errors.New("encoding: signature verification failed")
	ErrDecryptFailed    = errors.New("encoding: decryption failed")
)

// macSize is the length of the truncated HMAC-SHA256 tag.
const macSize = 16

var b64 = base64.RawURLEncoding

// Sealer seals and opens values for one purpose.
type Sealer struct {
	purpose []byte
	macKey  []byte
	aead    cipher.AEAD
}

// New creates a Sealer. The signing and encryption keys are derived
// from key and purpose, so key may have any length.
func New(key []byte, purpose string) (*Sealer, error) {
	if len(key) == 0 {
		return nil, errors.New("encoding: empty key")
	}
	if purpose == "" {
		return nil, errors.New("encoding: empty purpose")
	}

	block, err := aes.NewCipher(derive(key, "enc", purpose))
	if err != nil {
		return nil, fmt.Errorf("encoding: cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("encoding: gcm: %w", err)
	}

	return &Sealer{
		purpose: []byte(purpose),
		macKey:  derive(key, "mac", purpose),
		aead:    aead,
	}, nil
}

// derive returns the 32-byte subkey of key for one use and purpose.
func derive(key []byte, use, purpose string) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(use))
	mac.Write([]byte{0})
	mac.Write([]byte(purpose))
	return mac.Sum(nil)
}

// Purpose returns the purpose the Sealer is bound to.
func (s *Sealer) Purpose() string {
	return string(s.purpose)
}

// Seal packs v and signs it, or encrypts it when opaque is set.
func (s *Sealer) Seal(v any, opaque bool) (string, error) {
	packed, err := msgpack.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encoding: marshal: %w", err)
	}
	if opaque {
		return s.encrypt(packed)
	}
	return s.sign(packed), nil
}

// Open verifies or decrypts sealed and unpacks it into v. opaque must
// match the Seal call.
func (s *Sealer) Open(sealed string, opaque bool, v any) error {
	var (
		packed []byte
		err    error
	)
	if opaque {
		packed, err = s.decrypt(sealed)
	} else {
		packed, err = s.verify(sealed)
	}
	if err != nil {
		return err
	}

	if err := msgpack.Unmarshal(packed, v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	return nil
}

func (s *Sealer) tag(data []byte) []byte {
	mac := hmac.New(sha256.New, s.macKey)
	mac.Write(data)
	return mac.Sum(nil)[:macSize]
}

// sign returns payload.tag, both base64.
func (s *Sealer) sign(data []byte) string {
	return b64.EncodeToString(data) + "." + b64.EncodeToString(s.tag(data))
}

func (s *Sealer) verify(sealed string) ([]byte, error) {
	payload, sig, ok := strings.Cut(sealed, ".")
	if !ok {
		return nil, fmt.Errorf("%w: missing signature", ErrInvalidFormat)
	}
	data, err := b64.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: payload: %v", ErrInvalidFormat, err)
	}
	got, err := b64.DecodeString(sig)
	if err != nil {
		return nil, fmt.Errorf("%w: signature: %v", ErrInvalidFormat, err)
	}
	if !hmac.Equal(got, s.tag(data)) {
		return nil, ErrSignatureInvalid
	}
	return data, nil
}

// encrypt returns base64(nonce || ciphertext). The purpose is the
// additional data.
func (s *Sealer) encrypt(data []byte) (string, error) {
	nonce := make([]byte, s.aead.NonceSize(), s.aead.NonceSize()+len(data)+s.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("encoding: nonce: %w", err)
	}
	return b64.EncodeToString(s.aead.Seal(nonce, nonce, data, s.purpose)), nil
}

func (s *Sealer) decrypt(sealed string) ([]byte, error) {
	raw, err := b64.DecodeString(sealed)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	n := s.aead.NonceSize()
	if len(raw) < n+s.aead.Overhead() {
		return nil, fmt.Errorf("%w: ciphertext too short", ErrInvalidFormat)
	}
	plain, err := s.aead.Open(nil, raw[:n], raw[n:], s.purpose)
	if err != nil {
		return nil, ErrDecryptFailed
	}
	return plain, nil
}
