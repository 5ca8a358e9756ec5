package relayserver

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	registry *prometheus.Registry
	requests *prometheus.CounterVec
	submits  prometheus.Counter
	claims   prometheus.Counter
	returns  prometheus.Counter
	matches  prometheus.Counter
	limited  prometheus.Counter
}

// newMetrics registers collectors on a private registry so several servers
// can coexist in one process.
func newMetrics(state *State) *metrics {
	m := &metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "heartx", Subsystem: "relay", Name: "requests_total",
			Help: "Relay requests by route and status code.",
		}, []string{"route", "code"}),
		submits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "heartx", Subsystem: "relay", Name: "slot_sets_submitted_total",
			Help: "Accepted slot-set submissions.",
		}),
		claims: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "heartx", Subsystem: "relay", Name: "claims_total",
			Help: "Accepted claims, including idempotent repeats.",
		}),
		returns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "heartx", Subsystem: "relay", Name: "late_returns_total",
			Help: "Accepted late return submissions.",
		}),
		matches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "heartx", Subsystem: "relay", Name: "matches_verified_total",
			Help: "Newly verified mutual matches.",
		}),
		limited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "heartx", Subsystem: "relay", Name: "rate_limited_total",
			Help: "Requests refused by the per-identity limiter.",
		}),
	}
	size := func(pick func(a, i, c, m int) int) func() float64 {
		return func() float64 { return float64(pick(state.Stats())) }
	}
	m.registry.MustRegister(
		m.requests, m.submits, m.claims, m.returns, m.matches, m.limited,
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "heartx", Subsystem: "relay", Name: "accounts",
			Help: "Registered identities.",
		}, size(func(a, _, _, _ int) int { return a })),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "heartx", Subsystem: "relay", Name: "inbox_items",
			Help: "Hearts currently held for delivery.",
		}, size(func(_, i, _, _ int) int { return i })),
	)
	return m
}

// middleware counts each request once the handler has written its status.
func (m *metrics) middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.requests.WithLabelValues(route, strconv.Itoa(c.Writer.Status())).Inc()
	}
}
