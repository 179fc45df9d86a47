package hxnav

import (
	"errors"
	"fmt"
)

// Sentinel errors for navigation and session operations.
var (
	ErrNotFound         = errors.New("hxnav: route not found")
	ErrInvalidPattern   = errors.New("hxnav: invalid route pattern")
	ErrStale            = errors.New("hxnav: visit is no longer mounted")
	ErrNoAction         = errors.New("hxnav: action not found")
	ErrNoSession        = errors.New("hxnav: session not found")
	ErrClosed           = errors.New("hxnav: app closed")
	ErrDecryptFailed    = errors.New("hxnav: cookie decryption failed")
	ErrSignatureInvalid = errors.New("hxnav: cookie signature verification failed")
	ErrInvalidFormat    = errors.New("hxnav: invalid cookie format")
)

// Lifecycle operations reported in LifecycleError.Op.
const (
	OpRender        = "render"
	OpAfterRender   = "after_render"
	OpBeforeDestroy = "before_destroy"
	OpAction        = "action"
	OpDefer         = "defer"
)

// LifecycleError wraps a failure raised by a page during one of its
// lifecycle calls. The App never propagates these to the caller of
// RenderPage; they are logged and converted into visible UI state.
type LifecycleError struct {
	Op    string // Lifecycle call that failed (render, after_render, ...)
	Route string // Route key of the page
	Err   error  // Underlying error
}

func (e *LifecycleError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("hxnav: %s %s: %v", e.Route, e.Op, e.Err)
	}
	return fmt.Sprintf("hxnav: %s %s", e.Route, e.Op)
}

func (e *LifecycleError) Unwrap() error {
	return e.Err
}

// panicError turns a recovered panic value into an error.
func panicError(v any) error {
	if err, ok := v.(error); ok {
		return fmt.Errorf("panic: %w", err)
	}
	return fmt.Errorf("panic: %v", v)
}

// IsNotFound checks if err is a not-found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsStale checks if err reports work targeting a visit that was replaced.
func IsStale(err error) bool {
	return errors.Is(err, ErrStale)
}

// IsDecryptionError checks if err is a cookie decryption or signature error.
func IsDecryptionError(err error) bool {
	return errors.Is(err, ErrDecryptFailed) || errors.Is(err, ErrSignatureInvalid)
}

// IsLifecycleError checks if err came out of a page lifecycle call.
func IsLifecycleError(err error) bool {
	var le *LifecycleError
	return errors.As(err, &le)
}
