package server

import (
	"net/http"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"github.com/vertextoedge/frame-viewer/internal/port"
	"github.com/vertextoedge/frame-viewer/internal/service/playback"
)

// DebugHandler handles debug endpoint requests
type DebugHandler struct {
	deps   Deps
	logger *zap.Logger
}

// NewDebugHandler creates a new DebugHandler
func NewDebugHandler(deps Deps, logger *zap.Logger) *DebugHandler {
	return &DebugHandler{
		deps:   deps,
		logger: logger,
	}
}

type cacheStats struct {
	CurrentSize      int64   `json:"current_size"`
	MaxSize          int64   `json:"max_size"`
	ItemCount        int     `json:"item_count"`
	CurrentSizeHuman string  `json:"current_size_human"`
	MaxSizeHuman     string  `json:"max_size_human"`
	UsedPct          float64 `json:"used_pct"`
}

type statsResponse struct {
	Cache    *cacheStats      `json:"cache,omitempty"`
	Disk     *port.DiskUsage  `json:"disk,omitempty"`
	Playback *playback.Status `json:"playback,omitempty"`
	Realtime string           `json:"realtime"`
}

// HandleStats reports cache, disk, playback and realtime state
func (h *DebugHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	resp := statsResponse{Realtime: "disabled"}

	if h.deps.Cache != nil {
		stats := h.deps.Cache.Stats()
		cs := &cacheStats{
			CurrentSize:      stats.CurrentSize,
			MaxSize:          stats.MaxSize,
			ItemCount:        stats.ItemCount,
			CurrentSizeHuman: humanize.IBytes(uint64(stats.CurrentSize)),
			MaxSizeHuman:     humanize.IBytes(uint64(stats.MaxSize)),
		}
		if stats.MaxSize > 0 {
			cs.UsedPct = float64(stats.CurrentSize) / float64(stats.MaxSize) * 100
		}
		resp.Cache = cs

		disk, err := h.deps.Cache.DiskUsage()
		if err != nil {
			h.logger.Warn("failed to get disk usage", zap.Error(err))
		} else {
			resp.Disk = disk
		}
	}

	if h.deps.Player != nil {
		status := h.deps.Player.Status()
		resp.Playback = &status
	}
	if h.deps.Realtime != nil {
		resp.Realtime = h.deps.Realtime.State().String()
	}

	writeJSON(w, http.StatusOK, resp)
}
