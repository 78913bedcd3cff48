package playback

import (
	"sync"

	"github.com/vertextoedge/frame-viewer/internal/domain"
	"github.com/vertextoedge/frame-viewer/internal/domain/event"
)

// playlistState is the playlist and cursor shared by the loop, background
// refreshes and realtime application
type playlistState struct {
	mu    sync.RWMutex
	items domain.Playlist
	index int
}

func (s *playlistState) snapshot() (domain.Playlist, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.items.Clone(), s.index
}

func (s *playlistState) len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// current returns the media under the cursor
func (s *playlistState) current() (domain.Media, int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.items) == 0 {
		return domain.Media{}, 0, false
	}
	return s.items[s.index], s.index, true
}

// step moves the cursor by delta, wrapping in both directions
func (s *playlistState) step(delta int) (domain.Media, int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.items)
	if n == 0 {
		s.index = 0
		return domain.Media{}, 0, false
	}
	s.index = ((s.index+delta)%n + n) % n
	return s.items[s.index], s.index, true
}

// replace swaps in a whole playlist and resets the cursor to the start
func (s *playlistState) replace(p domain.Playlist) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p == nil {
		p = domain.Playlist{}
	}
	s.items = p
	s.index = 0
}

// merge swaps in a refreshed playlist, keeping the cursor on the same media
func (s *playlistState) merge(p domain.Playlist) {
	s.mutate(func(items *domain.Playlist) bool {
		*items = p
		return true
	})
}

// apply mutates the playlist for one realtime event. Returns a copy of the
// playlist when it changed.
func (s *playlistState) apply(ev event.DomainEvent) (domain.Playlist, bool) {
	var changed bool
	s.mutate(func(items *domain.Playlist) bool {
		switch e := ev.(type) {
		case event.MediaCreated:
			changed = items.Create(e.Media)
		case event.MediaUpdated:
			items.Update(e.Media)
			changed = true
		case event.MediaDeleted:
			changed = items.Delete(e.MediaID) > 0
		}
		return changed
	})
	if !changed {
		return nil, false
	}
	p, _ := s.snapshot()
	return p, true
}

// mutate runs fn under the write lock and then re-anchors the cursor. When
// the current media survives the cursor follows it; otherwise it points at
// the entry before the removed one so the next advance shows its successor.
func (s *playlistState) mutate(fn func(items *domain.Playlist) bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	currentID := ""
	if s.index < len(s.items) {
		currentID = s.items[s.index].ID
	}
	oldIndex := s.index

	if !fn(&s.items) {
		return
	}
	if s.items == nil {
		s.items = domain.Playlist{}
	}

	n := len(s.items)
	switch {
	case n == 0:
		s.index = 0
	case currentID == "":
		s.index = 0
	default:
		if i := s.items.IndexOf(currentID); i >= 0 {
			s.index = i
		} else {
			s.index = ((oldIndex-1)%n + n) % n
		}
	}
}
