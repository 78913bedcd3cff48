package playback

import (
	"image"
	"time"

	"go.uber.org/zap"

	"github.com/vertextoedge/frame-viewer/internal/port"
)

// ShouldLoop reports whether a video of the declared duration (seconds)
// loops. Unknown durations never loop.
func ShouldLoop(duration *float64, threshold time.Duration) bool {
	if duration == nil {
		return false
	}
	return time.Duration(*duration*float64(time.Second)) < threshold
}

// VideoManager owns the at most one video playing on screen
type VideoManager struct {
	decoder   port.VideoDecoder
	threshold time.Duration
	logger    *zap.Logger

	stream  port.VideoStream
	mediaID string
	looping bool
}

// NewVideoManager creates a video manager; decoder may be nil to disable video
func NewVideoManager(decoder port.VideoDecoder, threshold time.Duration, logger *zap.Logger) *VideoManager {
	return &VideoManager{
		decoder:   decoder,
		threshold: threshold,
		logger:    logger,
	}
}

// Play stops any current video and opens path
func (v *VideoManager) Play(mediaID, path string, duration *float64) error {
	v.Stop()
	if v.decoder == nil {
		return nil
	}

	looping := ShouldLoop(duration, v.threshold)
	opts := port.StreamOptions{Loop: looping}
	if duration != nil {
		opts.Duration = time.Duration(*duration * float64(time.Second))
	}

	stream, err := v.decoder.Open(path, opts)
	if err != nil {
		return err
	}
	v.stream = stream
	v.mediaID = mediaID
	v.looping = looping

	v.logger.Debug("video started",
		zap.String("media_id", mediaID),
		zap.Bool("looping", looping))
	return nil
}

// Stop closes the current video, if any
func (v *VideoManager) Stop() {
	if v.stream == nil {
		return
	}
	if err := v.stream.Close(); err != nil {
		v.logger.Warn("failed to close video", zap.String("media_id", v.mediaID), zap.Error(err))
	}
	v.stream = nil
	v.mediaID = ""
	v.looping = false
}

// IsPlaying reports whether a video is open
func (v *VideoManager) IsPlaying() bool {
	return v.stream != nil
}

// IsLooping reports whether the open video loops
func (v *VideoManager) IsLooping() bool {
	return v.stream != nil && v.looping
}

// IsEnded reports end of stream of a non-looping video
func (v *VideoManager) IsEnded() bool {
	return v.stream != nil && !v.looping && v.stream.Ended()
}

// MediaID returns the id of the playing video
func (v *VideoManager) MediaID() string {
	return v.mediaID
}

// Frame returns the latest decoded frame, nil if none
func (v *VideoManager) Frame() image.Image {
	if v.stream == nil {
		return nil
	}
	return v.stream.Frame()
}
