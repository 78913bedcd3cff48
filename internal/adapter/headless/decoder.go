package headless

import (
	"fmt"
	"image"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/vertextoedge/frame-viewer/internal/port"
)

// DefaultClipLength is assumed for videos without a declared duration
const DefaultClipLength = 10 * time.Second

// Decoder is a port.VideoDecoder that plays nothing and only keeps time.
// A stream ends once its declared duration has elapsed unless it loops.
type Decoder struct {
	logger *zap.Logger
	now    func() time.Time
}

var _ port.VideoDecoder = (*Decoder)(nil)

// NewDecoder creates a headless decoder
func NewDecoder(logger *zap.Logger) *Decoder {
	return &Decoder{logger: logger, now: time.Now}
}

// Open checks that path exists and starts the clock
func (d *Decoder) Open(path string, opts port.StreamOptions) (port.VideoStream, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("open video: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("open video: %s is a directory", path)
	}

	length := opts.Duration
	if length <= 0 {
		length = DefaultClipLength
	}
	d.logger.Debug("headless video opened",
		zap.String("path", path),
		zap.Duration("length", length),
		zap.Bool("loop", opts.Loop))

	return &stream{
		started: d.now(),
		length:  length,
		loop:    opts.Loop,
		now:     d.now,
	}, nil
}

type stream struct {
	started time.Time
	length  time.Duration
	loop    bool
	now     func() time.Time

	mu     sync.Mutex
	closed bool
}

func (s *stream) Frame() image.Image {
	return nil
}

func (s *stream) Ended() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.loop {
		return false
	}
	return s.now().Sub(s.started) >= s.length
}

func (s *stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("video stream already closed")
	}
	s.closed = true
	return nil
}
