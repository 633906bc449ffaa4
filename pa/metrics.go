package pa

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the prometheus collectors the engine updates at the end of
// every Verify call, per SPEC_FULL C3.
type Metrics struct {
	verifications     *prometheus.CounterVec
	processingDuration prometheus.Histogram
	invalidDataGroups *prometheus.CounterVec
}

// NewMetrics constructs and registers a Metrics against reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		verifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pa_verifications_total",
			Help: "Total PA verifications by overall status.",
		}, []string{"status"}),
		processingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "pa_processing_duration_ms",
			Help:    "PA verification wall-clock duration in milliseconds.",
			Buckets: prometheus.ExponentialBuckets(5, 2, 12),
		}),
		invalidDataGroups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pa_datagroup_invalid_total",
			Help: "Total data groups that failed hash verification, by DG number.",
		}, []string{"dg"}),
	}
	reg.MustRegister(m.verifications, m.processingDuration, m.invalidDataGroups)
	return m
}

func (m *Metrics) observe(r *Result) {
	if m == nil {
		return
	}
	m.verifications.WithLabelValues(string(r.Status)).Inc()
	m.processingDuration.Observe(float64(r.ProcessingDurationMs))
	for dg, res := range r.DataGroupValidation.PerGroup {
		if !res.Valid {
			m.invalidDataGroups.WithLabelValues(dgLabel(dg)).Inc()
		}
	}
}

func dgLabel(dg int) string {
	const digits = "0123456789"
	if dg < 0 || dg > 99 {
		return "other"
	}
	if dg < 10 {
		return string(digits[dg])
	}
	return string(digits[dg/10]) + string(digits[dg%10])
}
