package metrics

import (
	"regexp"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the bridge's prometheus collectors.
type Metrics struct {
	invocations *prometheus.CounterVec
	upstream    *prometheus.HistogramVec
	streams     prometheus.Gauge
}

// New creates the collectors and registers them with reg. A nil reg uses
// the default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		invocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "datajud_bridge",
			Name:      "invocations_total",
			Help:      "Tool invocations by tool and outcome.",
		}, []string{"tool", "outcome"}),
		upstream: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "datajud_bridge",
			Name:      "upstream_duration_seconds",
			Help:      "Latency of DataJud search calls.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"alias", "status"}),
		streams: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "datajud_bridge",
			Name:      "sse_streams_open",
			Help:      "Discovery streams currently open.",
		}),
	}
	reg.MustRegister(m.invocations, m.upstream, m.streams)
	return m
}

// ObserveInvocation counts one tool invocation.
func (m *Metrics) ObserveInvocation(tool, outcome string) {
	m.invocations.WithLabelValues(tool, outcome).Inc()
}

// OtherAlias labels upstream calls whose alias is not a known DataJud index.
const OtherAlias = "other"

var indexAlias = regexp.MustCompile(`^api_publica_[a-z0-9]+$`)

// ObserveUpstream records the latency of one upstream call.
func (m *Metrics) ObserveUpstream(alias string, status int, elapsed time.Duration) {
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	m.upstream.WithLabelValues(aliasLabel(alias, status), label).Observe(elapsed.Seconds())
}

// aliasLabel keeps the alias only when the upstream accepted it as an index,
// so callers cannot grow the series set with arbitrary names.
func aliasLabel(alias string, status int) string {
	if status < 200 || status >= 400 || !indexAlias.MatchString(alias) {
		return OtherAlias
	}
	return alias
}

// StreamOpened increments the open stream gauge.
func (m *Metrics) StreamOpened() { m.streams.Inc() }

// StreamClosed decrements the open stream gauge.
func (m *Metrics) StreamClosed() { m.streams.Dec() }
