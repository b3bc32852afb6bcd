// Package metrics expone las métricas Prometheus del motor de timbrado.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Resultados de un intento de timbrado.
const (
	OutcomeSuccess  = "success"
	OutcomeFailure  = "failure"
	OutcomeRejected = "rejected"
)

// Metrics contadores e histogramas del timbrado, la cancelación y el ciclo de vida.
type Metrics struct {
	StampAttempts        *prometheus.CounterVec
	StampAttemptDuration *prometheus.HistogramVec
	Cancellations        *prometheus.CounterVec
	LifecycleEvents      *prometheus.CounterVec
}

// New registra las métricas en reg. nil usa el registro global.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		StampAttempts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "cartaporte_stamp_attempts_total",
			Help: "Intentos de timbrado por PAC y resultado",
		}, []string{"provider", "outcome"}),
		StampAttemptDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cartaporte_stamp_attempt_duration_seconds",
			Help:    "Latencia de cada llamada de timbrado al PAC",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"provider"}),
		Cancellations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "cartaporte_cancellations_total",
			Help: "Solicitudes de cancelación por estado resultante",
		}, []string{"estado"}),
		LifecycleEvents: f.NewCounterVec(prometheus.CounterOpts{
			Name: "cartaporte_lifecycle_events_total",
			Help: "Eventos de ciclo de vida registrados",
		}, []string{"event"}),
	}
}

// ObserveStampAttempt registra un intento. Llamar con time.Now() del inicio de la llamada.
func (m *Metrics) ObserveStampAttempt(provider, outcome string, start time.Time) {
	if m == nil {
		return
	}
	m.StampAttempts.WithLabelValues(provider, outcome).Inc()
	m.StampAttemptDuration.WithLabelValues(provider).Observe(time.Since(start).Seconds())
}

// IncrementCancellation registra el estado con el que terminó una solicitud.
func (m *Metrics) IncrementCancellation(estado string) {
	if m == nil {
		return
	}
	m.Cancellations.WithLabelValues(estado).Inc()
}

// IncrementLifecycleEvent registra un evento añadido al historial.
func (m *Metrics) IncrementLifecycleEvent(event string) {
	if m == nil {
		return
	}
	m.LifecycleEvents.WithLabelValues(event).Inc()
}
