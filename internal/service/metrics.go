package service

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"notary/internal/model"
)

// Metrics counts notarization outcomes. A nil *Metrics records nothing.
type Metrics struct {
	outcomes *prometheus.CounterVec
	duration prometheus.Histogram
}

// NewMetrics registers the notarization metrics on reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		outcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "notary_notarizations_total",
				Help: "Notarization attempts by outcome.",
			},
			[]string{"outcome"},
		),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "notary_notarize_duration_seconds",
			Help:    "Time spent handling a notarization attempt.",
			Buckets: []float64{0.05, 0.25, 1, 2.5, 5, 10, 30, 60, 120},
		}),
	}
	for _, c := range []prometheus.Collector{m.outcomes, m.duration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) observe(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.outcomes.WithLabelValues(outcome).Inc()
	m.duration.Observe(d.Seconds())
}

func outcomeOf(res *model.NotarizeResult, err error) string {
	switch {
	case err == nil && res != nil && res.Duplicate:
		return "duplicate"
	case err == nil:
		return "notarized"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrPaymentReused):
		return "payment_reused"
	case errors.Is(err, ErrPaymentInvalid):
		return "payment_invalid"
	case errors.Is(err, ErrInsufficientOperatorFunds):
		return "insufficient_funds"
	case errors.Is(err, ErrServiceTimeout):
		return "timeout"
	case errors.Is(err, ErrServiceError):
		return "service_error"
	default:
		return "error"
	}
}
