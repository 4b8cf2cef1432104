package symptom

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds Prometheus metrics for the triage workflow.
type Metrics struct {
	WorkflowsTotal     *prometheus.CounterVec
	WorkflowDuration   *prometheus.HistogramVec
	StagesTotal        *prometheus.CounterVec
	LLMCallDuration    *prometheus.HistogramVec
	HeuristicFallbacks prometheus.Counter
	NotificationsTotal *prometheus.CounterVec
}

// NewMetrics registers and returns workflow metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		WorkflowsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "symptom_workflows_total",
			Help: "Total workflow runs by path and outcome.",
		}, []string{"path", "outcome"}),
		WorkflowDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "symptom_workflow_duration_seconds",
			Help:    "Duration of workflow runs in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 0.1s .. ~51s
		}, []string{"path"}),
		StagesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "symptom_stages_total",
			Help: "Total stage executions by stage and outcome.",
		}, []string{"stage", "outcome"}),
		LLMCallDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "symptom_llm_call_duration_seconds",
			Help:    "Duration of individual inference backend calls in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 8), // 0.25s .. ~32s
		}, []string{"op", "outcome"}),
		HeuristicFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "symptom_heuristic_assessments_total",
			Help: "Total assessments substituted by the deterministic heuristic.",
		}),
		NotificationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "symptom_notifications_total",
			Help: "Total notification sends by recipient and outcome.",
		}, []string{"recipient", "outcome"}),
	}

	reg.MustRegister(
		m.WorkflowsTotal,
		m.WorkflowDuration,
		m.StagesTotal,
		m.LLMCallDuration,
		m.HeuristicFallbacks,
		m.NotificationsTotal,
	)

	return m
}

func (m *Metrics) stage(name string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.StagesTotal.WithLabelValues(name, outcome).Inc()
}

func (m *Metrics) notification(recipient string, sent bool) {
	outcome := "sent"
	if !sent {
		outcome = "failed"
	}
	m.NotificationsTotal.WithLabelValues(recipient, outcome).Inc()
}

// InstrumentProvider wraps a provider so every backend call is observed
// under the given op label.
func (m *Metrics) InstrumentProvider(p Provider, op string) Provider {
	return &instrumentedProvider{inner: p, op: op, metrics: m}
}

type instrumentedProvider struct {
	inner   Provider
	op      string
	metrics *Metrics
}

func (p *instrumentedProvider) Complete(ctx context.Context, prompt string) (string, error) {
	start := time.Now()
	out, err := p.inner.Complete(ctx, prompt)

	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	p.metrics.LLMCallDuration.WithLabelValues(p.op, outcome).Observe(time.Since(start).Seconds())

	return out, err
}
