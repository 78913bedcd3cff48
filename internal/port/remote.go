package port

import (
	"context"
	"io"

	"github.com/vertextoedge/frame-viewer/internal/domain"
)

// AssetFetcher performs authenticated transfers of media files.
// An empty token sends no Authorization header.
type AssetFetcher interface {
	Fetch(ctx context.Context, url, token string) (io.ReadCloser, error)
}

// MediaLister lists published media records matching a filter expression
type MediaLister interface {
	ListMedia(ctx context.Context, filter, token string) (domain.Playlist, error)
}

// Authenticator exchanges interactive credentials for a bearer token
type Authenticator interface {
	AuthWithPassword(ctx context.Context, identity, password string) (string, error)
}

// RemoteClient is everything the playback engine needs from the remote API
type RemoteClient interface {
	AssetFetcher
	MediaLister
	Authenticator

	// BaseURL returns the remote base URL used to resolve relative asset URLs
	BaseURL() string
}
