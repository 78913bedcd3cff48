package cacher

import (
	"encoding/json"
	"errors"
	"os"

	"github.com/vertextoedge/frame-viewer/internal/domain"
)

// SnapshotFile is the playlist snapshot name in the cache root
const SnapshotFile = "playlist.json"

// SavePlaylist persists the full playlist for offline bootstrap
func (c *Cache) SavePlaylist(playlist domain.Playlist) error {
	if playlist == nil {
		playlist = domain.Playlist{}
	}
	data, err := json.Marshal(playlist)
	if err != nil {
		return domain.NewDecodeError("playlist snapshot", err)
	}

	c.snapshotMu.Lock()
	defer c.snapshotMu.Unlock()
	return c.fs.WriteRootFile(SnapshotFile, data)
}

// LoadPlaylist reads the last persisted playlist. A missing snapshot yields
// an empty playlist.
func (c *Cache) LoadPlaylist() (domain.Playlist, error) {
	c.snapshotMu.Lock()
	data, err := c.fs.ReadRootFile(SnapshotFile)
	c.snapshotMu.Unlock()

	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return domain.Playlist{}, nil
		}
		return nil, err
	}

	var playlist domain.Playlist
	if err := json.Unmarshal(data, &playlist); err != nil {
		return nil, domain.NewDecodeError("playlist snapshot", err)
	}
	if playlist == nil {
		playlist = domain.Playlist{}
	}
	return playlist, nil
}
