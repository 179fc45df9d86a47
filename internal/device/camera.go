// Package device models camera access for the add-story page.
//
// The browser owns the hardware. It reports what it has (or why access
// failed) and uploads captured frames; the server decides which
// constraints to use and keeps the captured frame in a staging file
// until the story is posted or the page is left.
package device

import (
	"context"
	"errors"
	"fmt"

	"github.com/goccy/go-json"
)

// Camera errors, named after what the user can do about them.
var (
	ErrPermissionDenied = errors.New("device: camera permission denied")
	ErrNotFound         = errors.New("device: no camera found")
	ErrBusy             = errors.New("device: camera in use")
	ErrOverconstrained  = errors.New("device: constraints not satisfiable")
	ErrSecurity         = errors.New("device: camera blocked by security policy")
	ErrUnsupported      = errors.New("device: camera not supported")
)

// Facing is a camera facing mode.
type Facing string

const (
	FacingEnvironment Facing = "environment"
	FacingUser        Facing = "user"
)

// Switch returns the opposite facing mode.
func Switch(f Facing) Facing {
	if f == FacingUser {
		return FacingEnvironment
	}
	return FacingUser
}

// Label is the name shown when switching cameras.
func (f Facing) Label() string {
	if f == FacingUser {
		return "front"
	}
	return "back"
}

// Range bounds a numeric track setting. Zero fields are unconstrained.
type Range struct {
	Ideal int `json:"ideal,omitempty"`
	Min   int `json:"min,omitempty"`
	Max   int `json:"max,omitempty"`
}

// Constraints is one video constraint set. The zero value accepts any
// camera.
type Constraints struct {
	Facing    Facing `json:"facingMode,omitempty"`
	Width     *Range `json:"width,omitempty"`
	Height    *Range `json:"height,omitempty"`
	FrameRate *Range `json:"frameRate,omitempty"`
}

// Any reports whether c places no constraint at all.
func (c Constraints) Any() bool {
	return c.Facing == "" && c.Width == nil && c.Height == nil && c.FrameRate == nil
}

// MediaJSON encodes c as getUserMedia constraints.
func (c Constraints) MediaJSON() ([]byte, error) {
	var video any = c
	if c.Any() {
		video = true
	}
	return json.Marshal(map[string]any{"video": video, "audio": false})
}

// Ladder returns the constraint sets to try for facing, strictest first.
func Ladder(facing Facing) []Constraints {
	return []Constraints{
		{
			Facing:    facing,
			Width:     &Range{Ideal: 640, Min: 320, Max: 1280},
			Height:    &Range{Ideal: 480, Min: 240, Max: 720},
			FrameRate: &Range{Ideal: 30, Min: 15, Max: 60},
		},
		{Facing: facing, Width: &Range{Ideal: 640}, Height: &Range{Ideal: 480}},
		{Facing: facing},
		{Width: &Range{Ideal: 640}, Height: &Range{Ideal: 480}},
		{},
	}
}

// Stream is an open camera stream.
type Stream interface {
	ID() string
	Constraints() Constraints
	Close() error
}

// Camera opens streams.
type Camera interface {
	Open(ctx context.Context, c Constraints) (Stream, error)
}

// Acquire opens cam with the first constraint set of the ladder that
// works. When every step fails it returns the last error.
func Acquire(ctx context.Context, cam Camera, facing Facing) (Stream, error) {
	var last error
	for _, c := range Ladder(facing) {
		s, err := cam.Open(ctx, c)
		if err == nil {
			return s, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		last = err
	}
	return nil, last
}

// FromName maps a browser DOMException name to a camera error.
func FromName(name string) error {
	switch name {
	case "NotAllowedError", "PermissionDeniedError":
		return ErrPermissionDenied
	case "NotFoundError", "DevicesNotFoundError":
		return ErrNotFound
	case "NotReadableError", "TrackStartError":
		return ErrBusy
	case "OverconstrainedError", "ConstraintNotSatisfiedError":
		return ErrOverconstrained
	case "SecurityError":
		return ErrSecurity
	case "NotSupportedError", "TypeError", "":
		return ErrUnsupported
	default:
		return fmt.Errorf("device: camera error %s", name)
	}
}

// Message returns the text shown to the user for a camera error.
func Message(err error) string {
	switch {
	case errors.Is(err, ErrPermissionDenied):
		return "Camera permission denied. Please allow camera access and try again."
	case errors.Is(err, ErrNotFound):
		return "No camera found on this device."
	case errors.Is(err, ErrBusy):
		return "Camera is already in use by another application."
	case errors.Is(err, ErrOverconstrained):
		return "Camera does not support the requested settings."
	case errors.Is(err, ErrSecurity):
		return "Camera access blocked. Please use HTTPS."
	case errors.Is(err, ErrUnsupported):
		return "Camera not supported in this browser."
	default:
		return "Unable to access camera. Please try uploading from gallery instead."
	}
}
