package alert

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricsNamespace = "tenantguard"
	violationsMetric = "policy_violations_total"
)

// PrometheusAlerter counts violations by table and operation.
type PrometheusAlerter struct {
	violations *prometheus.CounterVec
}

// NewPrometheusAlerter registers the violation counter on reg.
func NewPrometheusAlerter(reg prometheus.Registerer) (*PrometheusAlerter, error) {
	violations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      violationsMetric,
		Help:      "Number of detected tenant isolation violations",
	}, []string{"table", "op", "kind"})

	if err := reg.Register(violations); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			return nil, errors.Join(ErrDuplicateMetric, err)
		}
		return nil, err
	}
	return &PrometheusAlerter{violations: violations}, nil
}

func (a *PrometheusAlerter) Alert(_ context.Context, v *Violation) {
	if v == nil {
		return
	}
	a.violations.WithLabelValues(v.Table, string(v.Op), string(v.Kind)).Inc()
}

// Collector exposes the underlying counter.
func (a *PrometheusAlerter) Collector() *prometheus.CounterVec {
	return a.violations
}
