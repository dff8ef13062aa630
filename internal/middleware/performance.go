// Portico - Company Intranet Portal
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portico

package middleware

import (
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/tomtom215/portico/internal/logging"
)

// SlowRequestThreshold is the duration above which a request is logged.
const SlowRequestThreshold = time.Second

// RequestMetrics represents performance metrics for a single request
type RequestMetrics struct {
	Route      string    `json:"route"`
	Method     string    `json:"method"`
	DurationMS int64     `json:"duration_ms"`
	StatusCode int       `json:"status_code"`
	Timestamp  time.Time `json:"timestamp"`
}

// EndpointStats aggregates the buffered requests of one route.
type EndpointStats struct {
	Endpoint     string  `json:"endpoint"`
	RequestCount int64   `json:"request_count"`
	ErrorCount   int64   `json:"error_count"`
	AvgDuration  float64 `json:"avg_duration_ms"`
	P50Duration  int64   `json:"p50_duration_ms"`
	P95Duration  int64   `json:"p95_duration_ms"`
	P99Duration  int64   `json:"p99_duration_ms"`
	MinDuration  int64   `json:"min_duration_ms"`
	MaxDuration  int64   `json:"max_duration_ms"`
}

// PerformanceMonitor keeps the most recent requests in a ring buffer.
type PerformanceMonitor struct {
	mu         sync.RWMutex
	metrics    []RequestMetrics
	next       int
	full       bool
	maxMetrics int
}

// NewPerformanceMonitor keeps the last maxMetrics requests.
func NewPerformanceMonitor(maxMetrics int) *PerformanceMonitor {
	if maxMetrics <= 0 {
		maxMetrics = 1000
	}
	return &PerformanceMonitor{
		metrics:    make([]RequestMetrics, maxMetrics),
		maxMetrics: maxMetrics,
	}
}

// RecordRequest adds one request, overwriting the oldest when full.
func (pm *PerformanceMonitor) RecordRequest(m RequestMetrics) {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.metrics[pm.next] = m
	pm.next = (pm.next + 1) % pm.maxMetrics
	if pm.next == 0 {
		pm.full = true
	}
}

// snapshotLocked returns the buffered requests oldest first.
func (pm *PerformanceMonitor) snapshotLocked() []RequestMetrics {
	if !pm.full {
		out := make([]RequestMetrics, pm.next)
		copy(out, pm.metrics[:pm.next])
		return out
	}
	out := make([]RequestMetrics, 0, pm.maxMetrics)
	out = append(out, pm.metrics[pm.next:]...)
	return append(out, pm.metrics[:pm.next]...)
}

// GetStats returns per-route statistics, busiest first.
func (pm *PerformanceMonitor) GetStats() []EndpointStats {
	pm.mu.RLock()
	all := pm.snapshotLocked()
	pm.mu.RUnlock()

	type bucket struct {
		durations []int64
		errors    int64
	}
	buckets := make(map[string]*bucket)
	for _, m := range all {
		key := m.Method + " " + m.Route
		b := buckets[key]
		if b == nil {
			b = &bucket{}
			buckets[key] = b
		}
		b.durations = append(b.durations, m.DurationMS)
		if m.StatusCode >= 500 {
			b.errors++
		}
	}

	stats := make([]EndpointStats, 0, len(buckets))
	for endpoint, b := range buckets {
		sorted := b.durations
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
		var sum int64
		for _, d := range sorted {
			sum += d
		}
		stats = append(stats, EndpointStats{
			Endpoint:     endpoint,
			RequestCount: int64(len(sorted)),
			ErrorCount:   b.errors,
			AvgDuration:  float64(sum) / float64(len(sorted)),
			P50Duration:  percentile(sorted, 0.50),
			P95Duration:  percentile(sorted, 0.95),
			P99Duration:  percentile(sorted, 0.99),
			MinDuration:  sorted[0],
			MaxDuration:  sorted[len(sorted)-1],
		})
	}

	sort.Slice(stats, func(i, j int) bool {
		if stats[i].RequestCount != stats[j].RequestCount {
			return stats[i].RequestCount > stats[j].RequestCount
		}
		return stats[i].Endpoint < stats[j].Endpoint
	})
	return stats
}

// GetRecentMetrics returns up to n of the newest requests, oldest first.
func (pm *PerformanceMonitor) GetRecentMetrics(n int) []RequestMetrics {
	pm.mu.RLock()
	all := pm.snapshotLocked()
	pm.mu.RUnlock()
	if n < 0 {
		n = 0
	}
	if n > len(all) {
		n = len(all)
	}
	return all[len(all)-n:]
}

// Middleware records every request that passes through it.
func (pm *PerformanceMonitor) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := newStatusRecorder(w)
		next.ServeHTTP(rec, r)
		duration := time.Since(start)

		route := routePattern(r)
		pm.RecordRequest(RequestMetrics{
			Route:      route,
			Method:     r.Method,
			DurationMS: duration.Milliseconds(),
			StatusCode: rec.status,
			Timestamp:  start,
		})

		// Upgraded connections live for minutes.
		if duration > SlowRequestThreshold && rec.status != http.StatusSwitchingProtocols {
			logging.Ctx(r.Context()).Warn().
				Str("method", r.Method).
				Str("route", route).
				Dur("duration", duration).
				Msg("Slow request detected")
		}
	})
}

// percentile returns the p-th percentile of sorted.
func percentile(sorted []int64, p float64) int64 {
	if len(sorted) == 0 {
		return 0
	}
	index := int(float64(len(sorted)-1) * p)
	return sorted[index]
}
