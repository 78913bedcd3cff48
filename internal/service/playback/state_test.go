package playback

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vertextoedge/frame-viewer/internal/domain"
	"github.com/vertextoedge/frame-viewer/internal/domain/event"
)

func TestPlaylistState_Step(t *testing.T) {
	var s playlistState
	s.replace(images("a", "b", "c"))

	tests := []struct {
		delta  int
		wantID string
	}{
		{1, "b"},
		{1, "c"},
		{1, "a"},
		{-1, "c"},
		{-1, "b"},
		{0, "b"},
		{5, "a"},
	}
	for _, tt := range tests {
		m, _, ok := s.step(tt.delta)
		if !ok || m.ID != tt.wantID {
			t.Errorf("step(%d) = %q, want %q", tt.delta, m.ID, tt.wantID)
		}
	}
}

func TestPlaylistState_StepEmpty(t *testing.T) {
	var s playlistState
	s.replace(nil)

	_, index, ok := s.step(1)
	assert.False(t, ok)
	assert.Equal(t, 0, index)
	_, _, ok = s.current()
	assert.False(t, ok)
}

func TestPlaylistState_Apply(t *testing.T) {
	updated := domain.Media{ID: "b", Type: domain.MediaTypeImage, DisplayURL: "/b2.jpg"}

	tests := []struct {
		name        string
		start       domain.Playlist
		index       int
		ev          event.DomainEvent
		wantIDs     []string
		wantCurrent string
		wantChanged bool
	}{
		{
			name:        "create appends",
			start:       images("a", "b"),
			index:       1,
			ev:          event.NewMediaCreated(images("c")[0]),
			wantIDs:     []string{"a", "b", "c"},
			wantCurrent: "b",
			wantChanged: true,
		},
		{
			name:        "duplicate create is ignored",
			start:       images("a", "b"),
			ev:          event.NewMediaCreated(images("b")[0]),
			wantIDs:     []string{"a", "b"},
			wantCurrent: "a",
		},
		{
			name:        "update replaces in place",
			start:       images("a", "b", "c"),
			index:       2,
			ev:          event.NewMediaUpdated(updated),
			wantIDs:     []string{"a", "b", "c"},
			wantCurrent: "c",
			wantChanged: true,
		},
		{
			name:        "update of unknown media appends",
			start:       images("a"),
			ev:          event.NewMediaUpdated(updated),
			wantIDs:     []string{"a", "b"},
			wantCurrent: "a",
			wantChanged: true,
		},
		{
			name:        "delete before cursor keeps current",
			start:       images("a", "b", "c"),
			index:       2,
			ev:          event.NewMediaDeleted("a"),
			wantIDs:     []string{"b", "c"},
			wantCurrent: "c",
			wantChanged: true,
		},
		{
			name:        "delete of current points at predecessor",
			start:       images("a", "b", "c"),
			index:       1,
			ev:          event.NewMediaDeleted("b"),
			wantIDs:     []string{"a", "c"},
			wantCurrent: "a",
			wantChanged: true,
		},
		{
			name:        "delete of first current wraps",
			start:       images("a", "b", "c"),
			index:       0,
			ev:          event.NewMediaDeleted("a"),
			wantIDs:     []string{"b", "c"},
			wantCurrent: "c",
			wantChanged: true,
		},
		{
			name:        "delete unknown is ignored",
			start:       images("a"),
			ev:          event.NewMediaDeleted("zzz"),
			wantIDs:     []string{"a"},
			wantCurrent: "a",
		},
		{
			name:        "delete last item empties",
			start:       images("a"),
			ev:          event.NewMediaDeleted("a"),
			wantIDs:     []string{},
			wantChanged: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var s playlistState
			s.replace(tt.start)
			s.index = tt.index

			got, changed := s.apply(tt.ev)
			assert.Equal(t, tt.wantChanged, changed)
			if changed {
				assert.Equal(t, tt.wantIDs, ids(got))
			}

			all, _ := s.snapshot()
			assert.Equal(t, tt.wantIDs, ids(all))

			m, _, ok := s.current()
			if tt.wantCurrent == "" {
				assert.False(t, ok)
				return
			}
			assert.True(t, ok)
			assert.Equal(t, tt.wantCurrent, m.ID)
		})
	}
}

func TestPlaylistState_DeleteThenAdvanceShowsSuccessor(t *testing.T) {
	var s playlistState
	s.replace(images("a", "b", "c", "d"))
	s.step(1)

	s.apply(event.NewMediaDeleted("b"))
	m, _, _ := s.step(1)

	assert.Equal(t, "c", m.ID)
}

func TestPlaylistState_Merge(t *testing.T) {
	var s playlistState
	s.replace(images("a", "b", "c"))
	s.step(1)

	s.merge(images("x", "b", "y"))
	m, index, _ := s.current()
	assert.Equal(t, "b", m.ID)
	assert.Equal(t, 1, index)

	s.merge(images("y", "z"))
	m, _, _ = s.current()
	assert.Equal(t, "y", m.ID)
}
