package headless

import (
	"sync"

	"go.uber.org/zap"

	"github.com/vertextoedge/frame-viewer/internal/port"
)

// Surface is a display-less port.Surface. It logs what would be on screen
// whenever that changes and takes commands from Inject.
type Surface struct {
	width  int
	height int
	logger *zap.Logger

	mu      sync.Mutex
	input   []port.Command
	lastTop string
	offline bool
	paused  bool
	frames  uint64
	closed  bool
}

var _ port.Surface = (*Surface)(nil)

// NewSurface creates a headless surface reporting the given size
func NewSurface(width, height int, logger *zap.Logger) *Surface {
	if width <= 0 || height <= 0 {
		width, height = 1920, 1080
	}
	return &Surface{
		width:  width,
		height: height,
		logger: logger,
	}
}

func (s *Surface) Size() (int, int) {
	return s.width, s.height
}

// Inject queues a command for the next PollInput
func (s *Surface) Inject(c port.Command) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.input = append(s.input, c)
}

func (s *Surface) PollInput() []port.Command {
	s.mu.Lock()
	defer s.mu.Unlock()
	cmds := s.input
	s.input = nil
	return cmds
}

func (s *Surface) Render(frame port.Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames++

	top := ""
	if n := len(frame.Layers); n > 0 && frame.Layers[n-1].Textures != nil {
		top = frame.Layers[n-1].Textures.MediaID
	}
	if top == s.lastTop && frame.Offline == s.offline && frame.Paused == s.paused {
		return nil
	}
	s.lastTop, s.offline, s.paused = top, frame.Offline, frame.Paused

	s.logger.Info("now showing",
		zap.String("media_id", top),
		zap.Int("layers", len(frame.Layers)),
		zap.Bool("offline", frame.Offline),
		zap.Bool("paused", frame.Paused),
		zap.Uint64("frame", s.frames))
	return nil
}

// Showing returns the media id of the top layer of the last frame
func (s *Surface) Showing() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastTop
}

// Frames returns how many frames were rendered
func (s *Surface) Frames() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames
}

func (s *Surface) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.input = nil
	return nil
}
