package headless

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/vertextoedge/frame-viewer/internal/port"
)

func TestSurface_InjectAndPoll(t *testing.T) {
	s := NewSurface(0, 0, zap.NewNop())

	if w, h := s.Size(); w != 1920 || h != 1080 {
		t.Errorf("Size() = %dx%d, want 1920x1080", w, h)
	}

	s.Inject(port.CommandNext)
	s.Inject(port.CommandTogglePause)

	got := s.PollInput()
	if len(got) != 2 || got[0] != port.CommandNext || got[1] != port.CommandTogglePause {
		t.Errorf("PollInput() = %v, want [next toggle_pause]", got)
	}
	if again := s.PollInput(); len(again) != 0 {
		t.Errorf("second PollInput() = %v, want empty", again)
	}

	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	s.Inject(port.CommandQuit)
	if got := s.PollInput(); len(got) != 0 {
		t.Errorf("PollInput() after Close = %v, want empty", got)
	}
}

func TestSurface_Render(t *testing.T) {
	s := NewSurface(800, 600, zap.NewNop())
	a := &port.Textures{MediaID: "a"}
	b := &port.Textures{MediaID: "b"}

	frames := []port.Frame{
		{Layers: []port.Layer{{Textures: a, Alpha: 1}}},
		{Layers: []port.Layer{{Textures: b, Alpha: 0.3}, {Textures: a, Alpha: 0.7}}},
		{Layers: []port.Layer{{Textures: b, Alpha: 1}}},
		{},
	}
	want := []string{"a", "a", "b", ""}

	for i, f := range frames {
		if err := s.Render(f); err != nil {
			t.Fatalf("Render() error = %v", err)
		}
		if got := s.Showing(); got != want[i] {
			t.Errorf("frame %d: Showing() = %q, want %q", i, got, want[i])
		}
	}
	if s.Frames() != 4 {
		t.Errorf("Frames() = %d, want 4", s.Frames())
	}
}

func TestDecoder(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "video.mp4")
	if err := os.WriteFile(path, []byte("not really a video"), 0644); err != nil {
		t.Fatal(err)
	}

	now := time.Unix(1000, 0)
	d := NewDecoder(zap.NewNop())
	d.now = func() time.Time { return now }

	tests := []struct {
		name      string
		opts      port.StreamOptions
		elapsed   time.Duration
		wantEnded bool
	}{
		{name: "before duration", opts: port.StreamOptions{Duration: 5 * time.Second}, elapsed: 4 * time.Second},
		{name: "after duration", opts: port.StreamOptions{Duration: 5 * time.Second}, elapsed: 5 * time.Second, wantEnded: true},
		{name: "looping never ends", opts: port.StreamOptions{Duration: 5 * time.Second, Loop: true}, elapsed: time.Hour},
		{name: "unknown duration uses default", elapsed: DefaultClipLength, wantEnded: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			now = time.Unix(1000, 0)
			s, err := d.Open(path, tt.opts)
			if err != nil {
				t.Fatalf("Open() error = %v", err)
			}
			now = now.Add(tt.elapsed)

			if got := s.Ended(); got != tt.wantEnded {
				t.Errorf("Ended() = %v, want %v", got, tt.wantEnded)
			}
			if s.Frame() != nil {
				t.Error("Frame() != nil")
			}
			if err := s.Close(); err != nil {
				t.Errorf("Close() error = %v", err)
			}
			if s.Ended() {
				t.Error("Ended() after Close = true")
			}
			if err := s.Close(); err == nil {
				t.Error("second Close() error = nil")
			}
		})
	}
}

func TestDecoder_MissingFile(t *testing.T) {
	d := NewDecoder(zap.NewNop())

	if _, err := d.Open(filepath.Join(t.TempDir(), "missing.mp4"), port.StreamOptions{}); err == nil {
		t.Error("Open() error = nil, want error")
	}
	if _, err := d.Open(t.TempDir(), port.StreamOptions{}); err == nil {
		t.Error("Open(dir) error = nil, want error")
	}
}
