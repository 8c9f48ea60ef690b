// Package metrics registers the service's Prometheus collectors.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	Transitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gigbook",
		Name:      "applicant_transitions_total",
		Help:      "Applicant state machine actions by outcome.",
	}, []string{"action", "outcome"})

	BestEffortFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gigbook",
		Name:      "best_effort_failures_total",
		Help:      "Side effects that failed after their transaction committed.",
	}, []string{"sink"})

	FeesCleared = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "gigbook",
		Name:      "fees_cleared_total",
		Help:      "Pending fees released to performers.",
	})

	FeesReversed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "gigbook",
		Name:      "fees_reversed_total",
		Help:      "Pending fees cancelled with a ledger reversal.",
	})

	Disputes = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "gigbook",
		Name:      "disputes_logged_total",
		Help:      "Disputes logged against pending fees.",
	})

	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "gigbook",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by route and status.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
)

// ObserveTransition counts one applicant action.
func ObserveTransition(action string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	Transitions.WithLabelValues(action, outcome).Inc()
}

// Middleware records request latency by matched route.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		RequestDuration.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}

func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
