package metrics

import (
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Collector struct {
	reg *prometheus.Registry

	TrackedTrips    prometheus.Gauge
	RegisteredTrips prometheus.GaugeFunc
	SpeedFactor     prometheus.Gauge

	Ticks            prometheus.Counter
	Computations     *prometheus.CounterVec // result label: ok|geocode_error|unknown_trip|error
	PositionsDropped prometheus.Counter

	Published     *prometheus.CounterVec // backend label: nats|kafka
	PublishErrs   *prometheus.CounterVec // backend label: nats|kafka
	NATSConnected prometheus.Gauge

	TickDuration    prometheus.Histogram
	ComputeDuration prometheus.Histogram
	PublishDuration *prometheus.HistogramVec

	TickInterval    prometheus.Gauge // seconds
	RefreshInterval prometheus.Gauge // seconds
}

func NewCollector(tickInterval, refreshInterval time.Duration) *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		TrackedTrips: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "eta_tracked_trips",
			Help: "Number of trips with a published ETA.",
		}),
		SpeedFactor: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "eta_speed_factor",
			Help: "Current traffic speed factor.",
		}),
		Ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "eta_ticks_total",
			Help: "Total recomputation ticks.",
		}),
		Computations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "eta_computations_total",
			Help: "Total ad-hoc ETA computations by result.",
		}, []string{"result"}),
		PositionsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "eta_positions_dropped_total",
			Help: "Vehicle positions that did not produce an ETA.",
		}),
		Published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "eta_published_total",
			Help: "Total ETA messages published.",
		}, []string{"backend"}),
		PublishErrs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "eta_publish_errors_total",
			Help: "Total ETA publish errors.",
		}, []string{"backend"}),
		NATSConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "eta_nats_connected",
			Help: "1 if NATS connection is established, 0 otherwise.",
		}),
		TickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "eta_tick_duration_seconds",
			Help:    "Duration of recomputation ticks.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 15),
		}),
		ComputeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "eta_compute_duration_seconds",
			Help:    "Duration of ad-hoc ETA computations including geocoding.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 15),
		}),
		PublishDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "eta_publish_duration_seconds",
			Help:    "Duration to marshal and publish ETA messages.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 15),
		}, []string{"backend"}),
		TickInterval: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "eta_tick_interval_seconds",
			Help: "Recomputation interval in seconds.",
		}),
		RefreshInterval: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "eta_refresh_interval_seconds",
			Help: "Trips refresh interval in seconds.",
		}),
	}

	reg.MustRegister(
		c.TrackedTrips, c.SpeedFactor,
		c.Ticks, c.Computations, c.PositionsDropped,
		c.Published, c.PublishErrs, c.NATSConnected,
		c.TickDuration, c.ComputeDuration, c.PublishDuration,
		c.TickInterval, c.RefreshInterval,
	)

	c.TickInterval.Set(tickInterval.Seconds())
	c.RefreshInterval.Set(refreshInterval.Seconds())

	return c
}

// CountRegistered exports size as eta_registered_trips, read on every scrape.
// It must be called at most once per Collector.
func (c *Collector) CountRegistered(size func() int) {
	c.RegisteredTrips = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "eta_registered_trips",
		Help: "Number of trips known to the trip registry.",
	}, func() float64 { return float64(size()) })
	c.reg.MustRegister(c.RegisteredTrips)
}

func (c *Collector) Handler() http.Handler { return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{}) }

// Serve starts an HTTP server on addr exposing /metrics plus any extra routes.
func (c *Collector) Serve(addr string, routes map[string]http.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	for pattern, h := range routes {
		mux.Handle(pattern, h)
	}
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("http server error: %v", err)
		}
	}()
	log.Printf("http listening on %s", addr)
	return srv
}
