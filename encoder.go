package hxnav

import (
	"errors"

	"github.com/pthm/hxnav/lib/encoding"
)

// CookiePurpose binds session cookie seals to their use.
const CookiePurpose = "hxnav-session"

// Sealer seals session cookie values.
type Sealer = encoding.Sealer

// NewSealer creates a Sealer for session cookies.
func NewSealer(key []byte) (*Sealer, error) {
	return encoding.New(key, CookiePurpose)
}

// wrapEncodingError maps encoding errors to the hxnav sentinels.
func wrapEncodingError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, encoding.ErrInvalidFormat):
		return ErrInvalidFormat
	case errors.Is(err, encoding.ErrSignatureInvalid):
		return ErrSignatureInvalid
	case errors.Is(err, encoding.ErrDecryptFailed):
		return ErrDecryptFailed
	}
	return err
}
