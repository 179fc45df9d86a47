package hxnav

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/pthm/hxnav/lib/encoding"
)

func TestSentinelErrors(t *testing.T) {
	errs := []error{
		ErrNotFound,
		ErrInvalidPattern,
		ErrStale,
		ErrNoAction,
		ErrNoSession,
		ErrClosed,
		ErrDecryptFailed,
		ErrSignatureInvalid,
		ErrInvalidFormat,
	}

	for i, err1 := range errs {
		if !strings.HasPrefix(err1.Error(), "hxnav:") {
			t.Errorf("Error %q should start with 'hxnav:'", err1.Error())
		}
		for j, err2 := range errs {
			if i != j && errors.Is(err1, err2) {
				t.Errorf("Sentinel errors should be distinct: %v and %v", err1, err2)
			}
		}
	}
}

func TestIsNotFound(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		expect bool
	}{
		{"nil error", nil, false},
		{"ErrNotFound", ErrNotFound, true},
		{"wrapped ErrNotFound", fmt.Errorf("wrapped: %w", ErrNotFound), true},
		{"other error", errors.New("other error"), false},
		{"ErrStale", ErrStale, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsNotFound(tt.err); got != tt.expect {
				t.Errorf("IsNotFound(%v) = %v, want %v", tt.err, got, tt.expect)
			}
		})
	}
}

func TestIsStale(t *testing.T) {
	if !IsStale(fmt.Errorf("fill: %w", ErrStale)) {
		t.Error("IsStale should see through wrapping")
	}
	if IsStale(ErrClosed) {
		t.Error("IsStale(ErrClosed) = true, want false")
	}
}

func TestIsDecryptionError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		expect bool
	}{
		{"nil error", nil, false},
		{"ErrDecryptFailed", ErrDecryptFailed, true},
		{"ErrSignatureInvalid", ErrSignatureInvalid, true},
		{"wrapped ErrDecryptFailed", fmt.Errorf("wrapped: %w", ErrDecryptFailed), true},
		{"ErrNotFound", ErrNotFound, false},
		{"ErrInvalidFormat", ErrInvalidFormat, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsDecryptionError(tt.err); got != tt.expect {
				t.Errorf("IsDecryptionError(%v) = %v, want %v", tt.err, got, tt.expect)
			}
		})
	}
}

func TestLifecycleError(t *testing.T) {
	cause := errors.New("camera busy")
	err := error(&LifecycleError{Op: OpAfterRender, Route: "/add", Err: cause})

	if !IsLifecycleError(err) {
		t.Error("IsLifecycleError = false, want true")
	}
	if !IsLifecycleError(fmt.Errorf("nav: %w", err)) {
		t.Error("IsLifecycleError should see through wrapping")
	}
	if !errors.Is(err, cause) {
		t.Error("LifecycleError should unwrap to its cause")
	}
	if got, want := err.Error(), "hxnav: /add after_render: camera busy"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestPanicError(t *testing.T) {
	cause := errors.New("boom")
	if err := panicError(cause); !errors.Is(err, cause) {
		t.Errorf("panicError(error) = %v, should wrap the cause", err)
	}
	if got := panicError("nil map").Error(); got != "panic: nil map" {
		t.Errorf("panicError(string) = %q, want %q", got, "panic: nil map")
	}
}

func TestWrapEncodingError(t *testing.T) {
	tests := []struct {
		name          string
		err           error
		expectWrapped error
	}{
		{"encoding.ErrInvalidFormat", fmt.Errorf("%w: x", encoding.ErrInvalidFormat), ErrInvalidFormat},
		{"encoding.ErrSignatureInvalid", encoding.ErrSignatureInvalid, ErrSignatureInvalid},
		{"encoding.ErrDecryptFailed", encoding.ErrDecryptFailed, ErrDecryptFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := wrapEncodingError(tt.err); !errors.Is(got, tt.expectWrapped) {
				t.Errorf("wrapEncodingError(%v) = %v, want %v", tt.err, got, tt.expectWrapped)
			}
		})
	}

	if wrapEncodingError(nil) != nil {
		t.Error("wrapEncodingError(nil) should be nil")
	}
	other := errors.New("other")
	if wrapEncodingError(other) != other {
		t.Error("unrelated errors should pass through")
	}
}
