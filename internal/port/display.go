package port

import (
	"image"
	"time"
)

// Textures is the display-ready bundle for one media entry
type Textures struct {
	MediaID string
	Blur    image.Image // blurred background, nil if unavailable
	Main    image.Image // poster or display image, nil if unavailable
	Width   int         // original pixel width of Main
	Height  int         // original pixel height of Main
}

// Layer is one composited texture bundle with its opacity in [0, 1]
type Layer struct {
	Textures *Textures
	Alpha    float64
}

// Frame is everything a surface needs to draw one iteration of the loop.
// Layers are ordered bottom to top.
type Frame struct {
	Layers  []Layer
	Offline bool
	Paused  bool
}

// Command is a playback control request from input polling or remote control
type Command int

const (
	CommandNone Command = iota
	CommandQuit
	CommandNext
	CommandPrevious
	CommandTogglePause
)

func (c Command) String() string {
	switch c {
	case CommandQuit:
		return "quit"
	case CommandNext:
		return "next"
	case CommandPrevious:
		return "previous"
	case CommandTogglePause:
		return "toggle_pause"
	default:
		return "none"
	}
}

// Surface is the window or output the loop renders to.
// Implementations must not block in PollInput.
type Surface interface {
	Size() (width, height int)
	PollInput() []Command
	Render(frame Frame) error
	Close() error
}

// StreamOptions configures a video stream
type StreamOptions struct {
	// Loop makes the decoder seek back to the start on end of stream
	Loop bool
	// Duration is the declared length, zero if unknown
	Duration time.Duration
}

// VideoDecoder opens cached video files for playback
type VideoDecoder interface {
	Open(path string, opts StreamOptions) (VideoStream, error)
}

// VideoStream is a playing video. Frame and Ended never block.
type VideoStream interface {
	// Frame returns the most recent decoded frame, nil before the first one
	Frame() image.Image
	// Ended reports end of stream; never true for looping streams
	Ended() bool
	Close() error
}
