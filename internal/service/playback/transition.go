package playback

import (
	"strings"
	"time"

	"github.com/vertextoedge/frame-viewer/internal/port"
)

// TransitionKind is the visual effect between two playlist entries
type TransitionKind int

const (
	TransitionCut TransitionKind = iota
	TransitionFade
	TransitionCrossfade
)

// ParseTransition maps a configured name to a kind; unknown names are Cut
func ParseTransition(s string) TransitionKind {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "fade":
		return TransitionFade
	case "crossfade":
		return TransitionCrossfade
	default:
		return TransitionCut
	}
}

func (k TransitionKind) String() string {
	switch k {
	case TransitionFade:
		return "fade"
	case TransitionCrossfade:
		return "crossfade"
	default:
		return "cut"
	}
}

// TransitionState is the phase of a running transition
type TransitionState int

const (
	TransitionIdle TransitionState = iota
	TransitionOut
	TransitionIn
)

func (s TransitionState) String() string {
	switch s {
	case TransitionOut:
		return "transitioning_out"
	case TransitionIn:
		return "transitioning_in"
	default:
		return "idle"
	}
}

// Transition drives Idle -> Out -> In -> Idle. Each phase takes half the
// duration and the current/next swap is signalled once, at the end of Out.
type Transition struct {
	duration time.Duration
	state    TransitionState
	started  time.Time
	progress float64
}

// NewTransition creates an idle transition of the given total duration
func NewTransition(duration time.Duration) *Transition {
	return &Transition{duration: duration}
}

// Start begins the Out phase at now
func (t *Transition) Start(now time.Time) {
	t.state = TransitionOut
	t.started = now
	t.progress = 0
}

// Reset returns to Idle without signalling a swap
func (t *Transition) Reset() {
	t.state = TransitionIdle
	t.progress = 0
}

// Update advances the machine to now and reports whether the caller must
// swap current and next
func (t *Transition) Update(now time.Time) bool {
	half := t.duration / 2
	elapsed := now.Sub(t.started)

	switch t.state {
	case TransitionOut:
		p := phaseProgress(elapsed, half)
		if p >= 1 {
			t.state = TransitionIn
			t.progress = 0
			return true
		}
		t.progress = p
	case TransitionIn:
		p := phaseProgress(elapsed-half, t.duration-half)
		if p >= 1 {
			t.state = TransitionIdle
			t.progress = 0
			return false
		}
		t.progress = p
	}
	return false
}

func phaseProgress(elapsed, phase time.Duration) float64 {
	if phase <= 0 {
		return 1
	}
	p := float64(elapsed) / float64(phase)
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}

// Active reports whether a transition is running
func (t *Transition) Active() bool {
	return t.state != TransitionIdle
}

// State returns the current phase
func (t *Transition) State() TransitionState {
	return t.state
}

// Progress returns the progress of the current phase in [0, 1]
func (t *Transition) Progress() float64 {
	return t.progress
}

// Compose returns the layers to draw, bottom to top. During Out, current is
// the outgoing bundle and next the incoming one; after the swap current is
// the incoming bundle.
func Compose(kind TransitionKind, state TransitionState, progress float64, current, next *port.Textures) []port.Layer {
	var layers []port.Layer

	if kind == TransitionCut || state == TransitionIdle {
		if current != nil {
			layers = append(layers, port.Layer{Textures: current, Alpha: 1})
		}
		return layers
	}

	switch state {
	case TransitionOut:
		if kind == TransitionCrossfade && next != nil {
			layers = append(layers, port.Layer{Textures: next, Alpha: progress})
		}
		if current != nil {
			layers = append(layers, port.Layer{Textures: current, Alpha: 1 - progress})
		}
	case TransitionIn:
		if current != nil {
			layers = append(layers, port.Layer{Textures: current, Alpha: progress})
		}
	}
	return layers
}
