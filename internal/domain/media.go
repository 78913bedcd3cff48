package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// MediaType is the kind of content a playlist entry carries
type MediaType string

const (
	MediaTypeImage MediaType = "image"
	MediaTypeVideo MediaType = "video"
)

// Media is a single playlist entry as published by the remote collection.
// Revisions are immutable; updates replace the whole value keyed by ID.
type Media struct {
	ID           string          `json:"id"`
	Type         MediaType       `json:"type"`
	Status       string          `json:"status,omitempty"`
	DisplayURL   string          `json:"displayUrl,omitempty"`
	BlurURL      string          `json:"blurUrl,omitempty"`
	VideoURL     string          `json:"videoUrl,omitempty"`
	PosterURL    string          `json:"posterUrl,omitempty"`
	Duration     *float64        `json:"duration,omitempty"`
	Tags         json.RawMessage `json:"tags,omitempty"`
	DeviceScopes json.RawMessage `json:"deviceScopes,omitempty"`
}

// IsVideo returns true for video entries
func (m *Media) IsVideo() bool {
	return m.Type == MediaTypeVideo
}

// URLFor returns the remote URL of the given asset variant, or "" if the
// entry has none.
func (m *Media) URLFor(kind AssetKind) string {
	switch kind {
	case KindDisplay:
		return m.DisplayURL
	case KindBlur:
		return m.BlurURL
	case KindVideo:
		return m.VideoURL
	case KindPoster:
		return m.PosterURL
	default:
		return ""
	}
}

// RequiredKinds returns the asset variants a preload must materialize
func (m *Media) RequiredKinds() []AssetKind {
	if m.IsVideo() {
		return []AssetKind{KindDisplay, KindBlur, KindPoster, KindVideo}
	}
	return []AssetKind{KindDisplay, KindBlur}
}

// PrimaryKind is the variant shown as main content
func (m *Media) PrimaryKind() AssetKind {
	if m.IsVideo() {
		return KindPoster
	}
	return KindDisplay
}

// AssetKind identifies one cached variant of a media entry
type AssetKind int

const (
	KindDisplay AssetKind = iota
	KindBlur
	KindVideo
	KindPoster
)

// AllAssetKinds lists every known variant
var AllAssetKinds = []AssetKind{KindDisplay, KindBlur, KindVideo, KindPoster}

// String returns the variant name used in file names and logs
func (k AssetKind) String() string {
	switch k {
	case KindDisplay:
		return "display"
	case KindBlur:
		return "blur"
	case KindVideo:
		return "video"
	case KindPoster:
		return "poster"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Ext returns the fixed file extension for the variant
func (k AssetKind) Ext() string {
	if k == KindVideo {
		return "mp4"
	}
	return "jpg"
}

// FileName returns "<kind>.<ext>"
func (k AssetKind) FileName() string {
	return k.String() + "." + k.Ext()
}

// ParseAssetKind maps a variant name back to its AssetKind
func ParseAssetKind(name string) (AssetKind, bool) {
	for _, k := range AllAssetKinds {
		if k.String() == name {
			return k, true
		}
	}
	return 0, false
}

// ParseAssetFileName maps a cached file name back to its variant
func ParseAssetFileName(name string) (AssetKind, bool) {
	stem, ext, ok := strings.Cut(name, ".")
	if !ok {
		return 0, false
	}
	k, ok := ParseAssetKind(stem)
	if !ok || k.Ext() != ext {
		return 0, false
	}
	return k, true
}

// CacheKey identifies one cached file
type CacheKey struct {
	MediaID string
	Kind    AssetKind
}

func (k CacheKey) String() string {
	return k.MediaID + "/" + k.Kind.String()
}
