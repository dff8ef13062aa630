// Portico - Company Intranet Portal
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portico

package authz

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AuthzDecisionsTotal counts decisions by role, resource, action and outcome.
	AuthzDecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portico_authz_decisions_total",
			Help: "Total number of authorization decisions",
		},
		[]string{"role", "resource", "action", "decision"},
	)

	AuthzDecisionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "portico_authz_decision_duration_seconds",
			Help:    "Duration of authorization decisions in seconds",
			Buckets: []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01},
		},
		[]string{"cache_hit"},
	)

	// AuthzDeniedTotal is separate from the decision counter for alerting.
	AuthzDeniedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portico_authz_denied_total",
			Help: "Total number of authorization denials",
		},
		[]string{"role", "resource", "action"},
	)

	AuthzCacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "portico_authz_cache_hits_total",
		Help: "Total number of authorization cache hits",
	})

	AuthzCacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "portico_authz_cache_misses_total",
		Help: "Total number of authorization cache misses",
	})

	AuthzCacheEntries = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "portico_authz_cache_entries",
		Help: "Current number of cached authorization decisions",
	})

	AuthzCacheEvictionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "portico_authz_cache_evictions_total",
		Help: "Total number of expired cache entries removed",
	})

	AuthzCacheInvalidationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portico_authz_cache_invalidations_total",
			Help: "Total number of cache invalidations by reason",
		},
		[]string{"reason"},
	)

	AuthzPolicyReloadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portico_authz_policy_reloads_total",
			Help: "Total number of policy reloads",
		},
		[]string{"status"},
	)

	AuthzPolicyRules = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "portico_authz_policy_rules",
			Help: "Number of loaded policy rules by type",
		},
		[]string{"type"},
	)

	AuthzErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portico_authz_errors_total",
			Help: "Total number of authorization errors",
		},
		[]string{"type"},
	)
)

// RecordAuthzDecision records one decision.
func RecordAuthzDecision(role, resource, action string, allowed bool, duration time.Duration, cacheHit bool) {
	decision := "deny"
	if allowed {
		decision = "allow"
	}
	AuthzDecisionsTotal.WithLabelValues(role, resource, action, decision).Inc()
	AuthzDecisionDuration.WithLabelValues(strconv.FormatBool(cacheHit)).Observe(duration.Seconds())
	if !allowed {
		AuthzDeniedTotal.WithLabelValues(role, resource, action).Inc()
	}
}

func RecordAuthzCacheHit()      { AuthzCacheHitsTotal.Inc() }
func RecordAuthzCacheMiss()     { AuthzCacheMissesTotal.Inc() }
func RecordAuthzCacheEviction() { AuthzCacheEvictionsTotal.Inc() }

func RecordAuthzCacheInvalidation(reason string) {
	AuthzCacheInvalidationsTotal.WithLabelValues(reason).Inc()
}

func UpdateAuthzCacheSize(size int) {
	AuthzCacheEntries.Set(float64(size))
}

func RecordPolicyReload(success bool) {
	status := "success"
	if !success {
		status = "failure"
	}
	AuthzPolicyReloadsTotal.WithLabelValues(status).Inc()
}

func UpdatePolicyStats(policyRules, groupingRules int) {
	AuthzPolicyRules.WithLabelValues("policy").Set(float64(policyRules))
	AuthzPolicyRules.WithLabelValues("grouping").Set(float64(groupingRules))
}

func RecordAuthzError(errorType string) {
	AuthzErrorsTotal.WithLabelValues(errorType).Inc()
}
