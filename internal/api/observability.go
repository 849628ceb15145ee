// Package api exposes the movement core's ops surface: prometheus
// metrics, the localhost pprof/debug server, a websocket stream of the
// simulation state and a flow-field debug renderer.
package api

import (
	"net/http"
	"net/http/pprof"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"warfront/internal/game"
)

// Metrics with bounded cardinality (no per-agent labels).
var (
	tickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "move_tick_duration_seconds",
		Help:    "Time spent in one movement tick",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1},
	})

	fieldBuildDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "nav_field_build_duration_seconds",
		Help:    "Time spent building one navigation field",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05},
	}, []string{"kind"}) // bounded: tile, portal, portalmask, enemies, entity

	agentCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "move_agent_count",
		Help: "Registered agents",
	})

	flockCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "move_flock_count",
		Help: "Active flocks",
	})

	cacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nav_field_cache_hits_total",
		Help: "Field cache hits",
	})

	cacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nav_field_cache_misses_total",
		Help: "Field cache misses",
	})

	commandsDrained = promauto.NewCounter(prometheus.CounterOpts{
		Name: "move_commands_drained_total",
		Help: "Commands drained at tick boundaries",
	})

	commandsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "move_commands_dropped_total",
		Help: "Commands dropped by a saturated queue",
	})
)

// Hooks returns the metric callbacks to install on the core.
func Hooks() game.Hooks {
	return game.Hooks{
		TickDuration: func(d time.Duration) { tickDuration.Observe(d.Seconds()) },
		FieldBuild: func(kind string, d time.Duration) {
			fieldBuildDuration.WithLabelValues(kind).Observe(d.Seconds())
		},
		AgentCount:    func(n int) { agentCount.Set(float64(n)) },
		FlockCount:    func(n int) { flockCount.Set(float64(n)) },
		CacheHit:      func() { cacheHits.Inc() },
		CacheMiss:     func() { cacheMisses.Inc() },
		CommandDrop:   func() { commandsDropped.Inc() },
		CommandsDrain: func(n int) { commandsDrained.Add(float64(n)) },
	}
}

// ObservabilityConfig configures the debug server.
type ObservabilityConfig struct {
	Enabled    bool
	ListenAddr string // localhost only unless explicitly overridden
}

// DefaultObservabilityConfig returns safe defaults.
func DefaultObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		Enabled:    true,
		ListenAddr: "127.0.0.1:6060",
	}
}

// StartDebugServer starts the internal observability server with pprof
// and prometheus endpoints. Binds to localhost unless ALLOW_DEBUG_EXTERNAL
// is set: pprof must never face the open network.
func StartDebugServer(cfg ObservabilityConfig, log *logrus.Logger) error {
	if !cfg.Enabled {
		log.Info("debug server disabled")
		return nil
	}

	if cfg.ListenAddr != "127.0.0.1:6060" && cfg.ListenAddr != "localhost:6060" {
		if os.Getenv("ALLOW_DEBUG_EXTERNAL") != "true" {
			log.Warn("debug server forced to localhost")
			cfg.ListenAddr = "127.0.0.1:6060"
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	mux.Handle("/metrics", promhttp.Handler())

	go func() {
		if err := http.ListenAndServe(cfg.ListenAddr, mux); err != nil {
			log.WithError(err).Error("debug server exited")
		}
	}()

	log.WithField("addr", cfg.ListenAddr).Info("debug server listening")
	return nil
}
