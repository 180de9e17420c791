package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var gatewayDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "moderation_gateway_decisions_total",
	Help: "Number of admission decisions by outcome",
}, []string{"action", "reason"})

var gatewayDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "moderation_gateway_duration_seconds",
	Help:    "Time taken to reach an admission decision",
	Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
}, []string{"reason"})

var policyViolations = promauto.NewCounter(prometheus.CounterOpts{
	Name: "moderation_policy_violations_total",
	Help: "Number of submissions rejected by the keyword policy",
})

var rateLimitChecks = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "moderation_rate_limit_checks_total",
	Help: "Number of rate limit checks by result",
}, []string{"result"})
