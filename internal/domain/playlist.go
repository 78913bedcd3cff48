package domain

// Playlist is an ordered sequence of media; order is playback order
type Playlist []Media

// IDs returns the set of media ids in the playlist
func (p Playlist) IDs() map[string]struct{} {
	ids := make(map[string]struct{}, len(p))
	for i := range p {
		ids[p[i].ID] = struct{}{}
	}
	return ids
}

// IndexOf returns the position of the first entry with id, or -1
func (p Playlist) IndexOf(id string) int {
	for i := range p {
		if p[i].ID == id {
			return i
		}
	}
	return -1
}

// Clone returns a copy that can be handed to another goroutine
func (p Playlist) Clone() Playlist {
	if p == nil {
		return nil
	}
	out := make(Playlist, len(p))
	copy(out, p)
	return out
}

// Create appends m unless an entry with the same id already exists.
// Returns true if the playlist changed.
func (p *Playlist) Create(m Media) bool {
	if p.IndexOf(m.ID) >= 0 {
		return false
	}
	*p = append(*p, m)
	return true
}

// Update replaces the first entry with the same id, or appends m if unseen
func (p *Playlist) Update(m Media) {
	if i := p.IndexOf(m.ID); i >= 0 {
		(*p)[i] = m
		return
	}
	*p = append(*p, m)
}

// Delete removes every entry with id and returns how many were removed
func (p *Playlist) Delete(id string) int {
	kept := (*p)[:0]
	removed := 0
	for _, m := range *p {
		if m.ID == id {
			removed++
			continue
		}
		kept = append(kept, m)
	}
	*p = kept
	return removed
}
