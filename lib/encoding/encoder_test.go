package encoding

import (
	"errors"
	"testing"
	"time"
)

type sessionCookie struct {
	ID      string    `msgpack:"id"`
	Created time.Time `msgpack:"c"`
}

func newTestSealer(t *testing.T, key, purpose string) *Sealer {
	t.Helper()
	s, err := New([]byte(key), purpose)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return s
}

func TestNew(t *testing.T) {
	keys := []string{"short", "this-is-a-32-byte-key-for-aes!!!", "a-key-that-is-much-longer-than-thirty-two-bytes"}
	for _, k := range keys {
		if _, err := New([]byte(k), "session"); err != nil {
			t.Errorf("New(%d bytes) failed: %v", len(k), err)
		}
	}
	if _, err := New(nil, "session"); err == nil {
		t.Error("New with empty key succeeded")
	}
	if _, err := New([]byte("key"), ""); err == nil {
		t.Error("New with empty purpose succeeded")
	}
}

func TestSealOpen(t *testing.T) {
	s := newTestSealer(t, "test-key", "session")
	created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	for _, opaque := range []bool{false, true} {
		original := sessionCookie{ID: "8d3c5f8e-1111-4c2b-9a55-2f6f5a0d7e41", Created: created}

		sealed, err := s.Seal(original, opaque)
		if err != nil {
			t.Fatalf("Seal(opaque=%v) failed: %v", opaque, err)
		}
		if opaque && sealed == "" {
			t.Fatal("empty sealed value")
		}

		var opened sessionCookie
		if err := s.Open(sealed, opaque, &opened); err != nil {
			t.Fatalf("Open(opaque=%v) failed: %v", opaque, err)
		}
		if opened.ID != original.ID {
			t.Errorf("ID = %q, want %q", opened.ID, original.ID)
		}
		if !opened.Created.Equal(created) {
			t.Errorf("Created = %v, want %v", opened.Created, created)
		}
	}
}

func TestEncryptionIsRandomized(t *testing.T) {
	s := newTestSealer(t, "test-key", "session")
	a, err := s.Seal(sessionCookie{ID: "abc"}, true)
	if err != nil {
		t.Fatal(err)
	}
	b, err := s.Seal(sessionCookie{ID: "abc"}, true)
	if err != nil {
		t.Fatal(err)
	}
	if a == b {
		t.Error("two seals of the same value are identical")
	}
}

func TestTamperedSignature(t *testing.T) {
	s := newTestSealer(t, "test-key", "session")

	sealed, err := s.Seal(sessionCookie{ID: "abc"}, false)
	if err != nil {
		t.Fatalf("Seal failed: %v", err)
	}
	tampered := sealed[:len(sealed)-2] + "XX"

	var opened sessionCookie
	err = s.Open(tampered, false, &opened)
	if !errors.Is(err, ErrSignatureInvalid) && !errors.Is(err, ErrInvalidFormat) {
		t.Errorf("Open(tampered) error = %v, want signature or format error", err)
	}
}

func TestTamperedCiphertext(t *testing.T) {
	s := newTestSealer(t, "test-key", "session")

	sealed, err := s.Seal(sessionCookie{ID: "abc"}, true)
	if err != nil {
		t.Fatalf("Seal failed: %v", err)
	}
	tampered := sealed[:len(sealed)-2] + "XX"

	var opened sessionCookie
	err = s.Open(tampered, true, &opened)
	if !errors.Is(err, ErrDecryptFailed) && !errors.Is(err, ErrInvalidFormat) {
		t.Errorf("Open(tampered) error = %v, want decrypt or format error", err)
	}
}

func TestInvalidFormat(t *testing.T) {
	s := newTestSealer(t, "test-key", "session")

	tests := []struct {
		name   string
		input  string
		opaque bool
	}{
		{"missing separator", "invalidbase64withoutseparator", false},
		{"bad base64 payload", "!!!.abc", false},
		{"ciphertext too short", "YWJj", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var opened sessionCookie
			err := s.Open(tt.input, tt.opaque, &opened)
			if !errors.Is(err, ErrInvalidFormat) {
				t.Errorf("Open(%q) error = %v, want ErrInvalidFormat", tt.input, err)
			}
		})
	}
}

func TestSealsAreBound(t *testing.T) {
	session := newTestSealer(t, "key-one", "session")
	otherKey := newTestSealer(t, "key-two", "session")
	otherPurpose := newTestSealer(t, "key-one", "csrf")

	signed, err := session.Seal(sessionCookie{ID: "abc"}, false)
	if err != nil {
		t.Fatal(err)
	}
	encrypted, err := session.Seal(sessionCookie{ID: "abc"}, true)
	if err != nil {
		t.Fatal(err)
	}

	for _, other := range []*Sealer{otherKey, otherPurpose} {
		var opened sessionCookie
		if err := other.Open(signed, false, &opened); !errors.Is(err, ErrSignatureInvalid) {
			t.Errorf("%s: Open(signed) error = %v, want ErrSignatureInvalid", other.Purpose(), err)
		}
		if err := other.Open(encrypted, true, &opened); !errors.Is(err, ErrDecryptFailed) {
			t.Errorf("%s: Open(encrypted) error = %v, want ErrDecryptFailed", other.Purpose(), err)
		}
	}
}
