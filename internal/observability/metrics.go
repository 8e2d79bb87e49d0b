package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "postar"

// Metrics implements the observer hooks of the selector, schedule and delivery
// packages on top of a private Prometheus registry.
type Metrics struct {
	reg *prometheus.Registry

	draws          *prometheus.CounterVec
	reshuffles     *prometheus.CounterVec
	remaining      *prometheus.GaugeVec
	nextTrigger    *prometheus.GaugeVec
	runs           *prometheus.CounterVec
	runDuration    prometheus.Histogram
	deliveries     *prometheus.CounterVec
	lastDeliveryTS prometheus.Gauge
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		reg: reg,
		draws: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pool_draws_total",
			Help:      "Items drawn per pool.",
		}, []string{"pool"}),
		reshuffles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pool_cycles_total",
			Help:      "Cycles started per pool (reshuffles and resets).",
		}, []string{"pool"}),
		remaining: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pool_remaining_items",
			Help:      "Items left in the current cycle.",
		}, []string{"pool"}),
		nextTrigger: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "schedule_next_trigger_timestamp_seconds",
			Help:      "Unix time of the next armed trigger per configured time.",
		}, []string{"at"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "schedule_runs_total",
			Help:      "Delivery callbacks run by the coordinator.",
		}, []string{"at", "status"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "delivery_duration_seconds",
			Help:      "Duration of delivery callbacks.",
			Buckets:   []float64{.1, .5, 1, 2, 5, 10, 30, 60, 120},
		}),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deliveries_total",
			Help:      "Deliveries by post type, media use and status.",
		}, []string{"type", "media", "status"}),
		lastDeliveryTS: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful delivery.",
		}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.draws, m.reshuffles, m.remaining, m.nextTrigger,
		m.runs, m.runDuration, m.deliveries, m.lastDeliveryTS,
	)
	return m
}

// Registry exposes the registry for handlers and extra collectors.
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// Drawn implements selector.Observer.
func (m *Metrics) Drawn(key string, remaining int) {
	m.draws.WithLabelValues(key).Inc()
	m.remaining.WithLabelValues(key).Set(float64(remaining))
}

// Reshuffled implements selector.Observer.
func (m *Metrics) Reshuffled(key string, size int) {
	m.reshuffles.WithLabelValues(key).Inc()
	m.remaining.WithLabelValues(key).Set(float64(size))
}

// SetRemaining seeds the remaining gauge at startup.
func (m *Metrics) SetRemaining(key string, remaining int) {
	m.remaining.WithLabelValues(key).Set(float64(remaining))
}

// TriggerArmed implements schedule.Observer.
func (m *Metrics) TriggerArmed(label string, next time.Time) {
	m.nextTrigger.WithLabelValues(label).Set(float64(next.Unix()))
}

// DeliveryFinished implements schedule.Observer.
func (m *Metrics) DeliveryFinished(label string, err error, took time.Duration) {
	m.runs.WithLabelValues(label, status(err)).Inc()
	m.runDuration.Observe(took.Seconds())
}

// Delivered implements delivery.Observer.
func (m *Metrics) Delivered(postType string, withMedia bool, err error) {
	media := "false"
	if withMedia {
		media = "true"
	}
	if postType == "" {
		postType = "unknown"
	}
	m.deliveries.WithLabelValues(postType, media, status(err)).Inc()
	if err == nil {
		m.lastDeliveryTS.SetToCurrentTime()
	}
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
