package proxy

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Stream outcomes recorded by classify_streams_total
const (
	OutcomeOK       = "ok"
	OutcomeError    = "error"
	OutcomeCanceled = "canceled"
)

// Metrics holds the Prometheus collectors of the classification pipeline
type Metrics struct {
	Responses   *prometheus.CounterVec
	ToolCalls   *prometheus.CounterVec
	ParseErrors *prometheus.CounterVec
	Streams     *prometheus.CounterVec
	Loops       *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Responses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "classifier_responses_total",
			Help: "Classified responses by model family and response kind.",
		}, []string{"family", "kind"}),
		ToolCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "classifier_tool_calls_total",
			Help: "Tool calls emitted by model family and function name.",
		}, []string{"family", "function"}),
		ParseErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "harmony_parse_errors_total",
			Help: "Harmony stream parse failures by error kind.",
		}, []string{"kind"}),
		Streams: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "classify_streams_total",
			Help: "Classified streams by model family and outcome.",
		}, []string{"family", "outcome"}),
		Loops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "classifier_tool_call_loops_total",
			Help: "Runs of identical consecutive tool calls, counted per extra repeat.",
		}, []string{"family", "function"}),
	}
	if reg != nil {
		reg.MustRegister(m.Responses, m.ToolCalls, m.ParseErrors, m.Streams, m.Loops)
	}
	return m
}
