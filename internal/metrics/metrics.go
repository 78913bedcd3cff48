package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "frame_viewer"

var (
	CacheBytes = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "cache_bytes",
		Help:      "Bytes currently tracked by the asset cache.",
	})

	CacheItems = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "cache_items",
		Help:      "Number of files currently tracked by the asset cache.",
	})

	Downloads = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "downloads_total",
		Help:      "Asset downloads by kind and result.",
	}, []string{"kind", "result"})

	Evictions = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "evictions_total",
		Help:      "Cache entries removed by LRU eviction.",
	})

	RealtimeEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "realtime_events_total",
		Help:      "Domain events emitted by the realtime change feed.",
	}, []string{"type"})

	PlaylistFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "playlist_fetch_total",
		Help:      "Playlist fetches by result (ok, snapshot, error).",
	}, []string{"result"})

	Offline = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "offline",
		Help:      "1 while playing from the persisted snapshot.",
	})

	Advances = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "advances_total",
		Help:      "Playlist advances by reason (timer, video_end, manual).",
	}, []string{"reason"})
)

// SetOffline records the offline flag
func SetOffline(offline bool) {
	if offline {
		Offline.Set(1)
		return
	}
	Offline.Set(0)
}
