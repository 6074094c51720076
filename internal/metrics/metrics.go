package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds the engine's Prometheus instruments. Nil-safe from the
// caller side: services treat a nil collector as metrics-off.
type Collector struct {
	orderOutcomes *prometheus.CounterVec
	sweepRuns     prometheus.Counter
	sweepFills    prometheus.Counter
	sweepDuration prometheus.Histogram
	raceDiscards  prometheus.Counter
	openPositions prometheus.Gauge
}

func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		orderOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "simtrade",
			Name:      "order_outcomes_total",
			Help:      "Orders by type and final status of the processing step.",
		}, []string{"type", "status"}),
		sweepRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "simtrade",
			Name:      "sweep_runs_total",
			Help:      "Completed sweep passes over pending orders.",
		}),
		sweepFills: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "simtrade",
			Name:      "sweep_fills_total",
			Help:      "Resting orders filled by the sweep.",
		}),
		sweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "simtrade",
			Name:      "sweep_duration_seconds",
			Help:      "Wall time of one sweep pass.",
			Buckets:   prometheus.DefBuckets,
		}),
		raceDiscards: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "simtrade",
			Name:      "race_discards_total",
			Help:      "Fills discarded because the order left pending concurrently.",
		}),
		openPositions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "simtrade",
			Name:      "open_positions",
			Help:      "Open positions across all accounts.",
		}),
	}
	reg.MustRegister(c.orderOutcomes, c.sweepRuns, c.sweepFills, c.sweepDuration, c.raceDiscards, c.openPositions)
	return c
}

func (c *Collector) OrderOutcome(orderType, status string) {
	c.orderOutcomes.WithLabelValues(orderType, status).Inc()
}

func (c *Collector) SweepCompleted(fills int, took time.Duration) {
	c.sweepRuns.Inc()
	c.sweepFills.Add(float64(fills))
	c.sweepDuration.Observe(took.Seconds())
}

func (c *Collector) RaceDiscarded() {
	c.raceDiscards.Inc()
}

func (c *Collector) SetOpenPositions(n int) {
	c.openPositions.Set(float64(n))
}

// Handler serves the registry on its own listener, away from the API port.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
