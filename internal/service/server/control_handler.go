package server

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/vertextoedge/frame-viewer/internal/port"
)

// ControlHandler forwards remote control requests to the playback loop
type ControlHandler struct {
	player Player
	logger *zap.Logger
}

// NewControlHandler creates a new ControlHandler
func NewControlHandler(player Player, logger *zap.Logger) *ControlHandler {
	return &ControlHandler{
		player: player,
		logger: logger,
	}
}

// HandleNext skips to the next playlist entry (POST /control/next)
func (h *ControlHandler) HandleNext(w http.ResponseWriter, r *http.Request) {
	h.send(w, r, port.CommandNext)
}

// HandlePrevious goes back one entry (POST /control/previous)
func (h *ControlHandler) HandlePrevious(w http.ResponseWriter, r *http.Request) {
	h.send(w, r, port.CommandPrevious)
}

// HandlePause toggles pause (POST /control/pause)
func (h *ControlHandler) HandlePause(w http.ResponseWriter, r *http.Request) {
	h.send(w, r, port.CommandTogglePause)
}

func (h *ControlHandler) send(w http.ResponseWriter, r *http.Request, c port.Command) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.player == nil {
		http.Error(w, "Playback not running", http.StatusServiceUnavailable)
		return
	}
	if !h.player.Command(c) {
		h.logger.Warn("control command dropped, queue full", zap.String("command", c.String()))
		http.Error(w, "Command queue full", http.StatusTooManyRequests)
		return
	}

	h.logger.Info("control command queued",
		zap.String("command", c.String()),
		zap.String("remote_addr", r.RemoteAddr))
	writeJSON(w, http.StatusAccepted, map[string]string{"command": c.String()})
}
