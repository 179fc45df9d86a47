package device

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"sync"

	"github.com/google/uuid"
)

// ErrNoFrame is returned by Frame before anything was captured.
var ErrNoFrame = errors.New("device: no frame captured")

// Capabilities is what the browser reported about its cameras. A
// non-nil Err is the reason access failed. An empty Facing means the
// camera does not tell (most desktop webcams): only constraints without
// a facing mode are satisfied. Zero maxima are unknown and do not
// constrain.
type Capabilities struct {
	Err          error
	Facing       []Facing
	MaxWidth     int
	MaxHeight    int
	MaxFrameRate int
}

// StagingCamera is the server side of the browser camera. Opening a
// stream creates a staging file that receives the captured frame;
// closing it deletes the file. OpenStreams counts the streams not yet
// closed, so a page that forgets to release its camera shows up.
type StagingCamera struct {
	dir string

	mu       sync.Mutex
	caps     Capabilities
	reported bool
	streams  map[string]*StagingStream
}

// NewStagingCamera stages frames in dir, os.TempDir() when empty.
func NewStagingCamera(dir string) *StagingCamera {
	if dir == "" {
		dir = os.TempDir()
	}
	return &StagingCamera{dir: dir, streams: make(map[string]*StagingStream)}
}

// Report records the capabilities the browser sent.
func (c *StagingCamera) Report(caps Capabilities) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.caps = caps
	c.reported = true
}

// Open opens a stream if the reported capabilities satisfy cons.
func (c *StagingCamera) Open(ctx context.Context, cons Constraints) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	caps, reported := c.caps, c.reported
	c.mu.Unlock()

	if !reported {
		return nil, ErrNotFound
	}
	if caps.Err != nil {
		return nil, caps.Err
	}
	if cons.Facing != "" && !slices.Contains(caps.Facing, cons.Facing) {
		return nil, fmt.Errorf("%w: no %s camera", ErrOverconstrained, cons.Facing)
	}
	if !fits(cons.Width, caps.MaxWidth) || !fits(cons.Height, caps.MaxHeight) || !fits(cons.FrameRate, caps.MaxFrameRate) {
		return nil, fmt.Errorf("%w: resolution", ErrOverconstrained)
	}

	f, err := os.CreateTemp(c.dir, "capture-*")
	if err != nil {
		return nil, fmt.Errorf("%w: staging file: %v", ErrBusy, err)
	}
	path := f.Name()
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return nil, fmt.Errorf("%w: staging file: %v", ErrBusy, err)
	}

	s := &StagingStream{cam: c, id: uuid.NewString(), cons: cons, path: path}
	c.mu.Lock()
	c.streams[s.id] = s
	c.mu.Unlock()
	return s, nil
}

func fits(r *Range, max int) bool {
	return r == nil || max == 0 || r.Min <= max
}

// OpenStreams returns the number of streams not yet closed.
func (c *StagingCamera) OpenStreams() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.streams)
}

// StagingStream is a stream whose frames land in a staging file.
type StagingStream struct {
	cam  *StagingCamera
	id   string
	cons Constraints
	path string

	mu     sync.Mutex
	ctype  string
	closed bool
}

// ID identifies the stream.
func (s *StagingStream) ID() string { return s.id }

// Constraints returns the constraint set the stream was opened with.
func (s *StagingStream) Constraints() Constraints { return s.cons }

// WriteFrame replaces the captured frame.
func (s *StagingStream) WriteFrame(data []byte, contentType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return os.ErrClosed
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("device: stage frame: %w", err)
	}
	s.ctype = contentType
	return nil
}

// Frame returns the captured frame and its content type.
func (s *StagingStream) Frame() ([]byte, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, "", os.ErrClosed
	}
	if s.ctype == "" {
		return nil, "", ErrNoFrame
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, "", fmt.Errorf("device: read frame: %w", err)
	}
	return data, s.ctype, nil
}

// HasFrame reports whether a frame was captured since the last Reset.
func (s *StagingStream) HasFrame() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closed && s.ctype != ""
}

// Reset discards the captured frame, for a retake.
func (s *StagingStream) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return os.ErrClosed
	}
	s.ctype = ""
	return os.Truncate(s.path, 0)
}

// Close deletes the staging file. Closing twice is a no-op.
func (s *StagingStream) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.cam.mu.Lock()
	delete(s.cam.streams, s.id)
	s.cam.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("device: remove staging file: %w", err)
	}
	return nil
}

// Path returns the staging file location.
func (s *StagingStream) Path() string { return s.path }
