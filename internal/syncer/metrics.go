package syncer

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "voiceink_notion"

// Metrics holds the Prometheus collectors updated by the engine. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	uploads       *prometheus.CounterVec
	cycles        *prometheus.CounterVec
	pending       prometheus.Gauge
	syncedIDs     prometheus.Gauge
	lastSuccess   prometheus.Gauge
	cycleDuration prometheus.Histogram
}

// NewMetrics creates the sync collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "uploads_total",
			Help:      "Transcription uploads by result.",
		}, []string{"result"}),
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "cycles_total",
			Help:      "Sync cycles by result.",
		}, []string{"result"}),
		pending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "pending_records",
			Help:      "Records still waiting for upload after the last cycle.",
		}),
		syncedIDs: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "synced_ids",
			Help:      "Number of ids recorded in the sync state.",
		}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last cycle that finished without error.",
		}),
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "cycle_duration_seconds",
			Help:      "Duration of sync cycles in seconds.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}),
	}

	for _, c := range []prometheus.Collector{m.uploads, m.cycles, m.pending, m.syncedIDs, m.lastSuccess, m.cycleDuration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) recordUpload(ok bool) {
	if m == nil {
		return
	}
	if ok {
		m.uploads.WithLabelValues("success").Inc()
	} else {
		m.uploads.WithLabelValues("failure").Inc()
	}
}

func (m *Metrics) recordCycle(r Report, err error) {
	if m == nil {
		return
	}
	m.cycleDuration.Observe(r.Duration.Seconds())
	m.pending.Set(float64(r.Remaining()))
	if err != nil {
		m.cycles.WithLabelValues(string(KindOf(err))).Inc()
		return
	}
	m.cycles.WithLabelValues("success").Inc()
	m.lastSuccess.Set(float64(time.Now().Unix()))
}

func (m *Metrics) recordStateSize(n int) {
	if m == nil {
		return
	}
	m.syncedIDs.Set(float64(n))
}
