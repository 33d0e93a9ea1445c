package monitoring

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

const responseSampleSize = 1000

// Metrics holds process-wide counters
type Metrics struct {
	RequestCount        int64
	ErrorCount          int64
	AverageResponseTime int64 // in nanoseconds
	StartTime           time.Time

	ResponseTimes      []time.Duration
	ResponseTimesMutex sync.RWMutex

	RequestCountByStatus map[int]int64
	StatusMutex          sync.RWMutex

	UpstreamRequests   map[string]int64
	UpstreamErrorCount map[string]int64
	UpstreamMutex      sync.RWMutex

	AnalysesCompleted int64
	AnalysesFallback  int64
	RoadmapsInjected  int64
	AnalysesFailed    int64

	RateLimitBlocks int64
}

// NewMetrics creates a new metrics instance
func NewMetrics() *Metrics {
	return &Metrics{
		StartTime:            time.Now(),
		ResponseTimes:        make([]time.Duration, 0, responseSampleSize),
		RequestCountByStatus: make(map[int]int64),
		UpstreamRequests:     make(map[string]int64),
		UpstreamErrorCount:   make(map[string]int64),
	}
}

// IncrementRequest increments the request count
func (m *Metrics) IncrementRequest() {
	atomic.AddInt64(&m.RequestCount, 1)
}

// IncrementError increments the error count
func (m *Metrics) IncrementError() {
	atomic.AddInt64(&m.ErrorCount, 1)
}

// RecordResponseTime records response time for averaging and percentiles
func (m *Metrics) RecordResponseTime(duration time.Duration) {
	current := atomic.LoadInt64(&m.AverageResponseTime)
	if current == 0 {
		atomic.StoreInt64(&m.AverageResponseTime, duration.Nanoseconds())
	} else {
		atomic.StoreInt64(&m.AverageResponseTime, (current+duration.Nanoseconds())/2)
	}

	m.ResponseTimesMutex.Lock()
	m.ResponseTimes = append(m.ResponseTimes, duration)
	if len(m.ResponseTimes) > responseSampleSize {
		m.ResponseTimes = m.ResponseTimes[1:]
	}
	m.ResponseTimesMutex.Unlock()
}

// RecordRequestByStatus records request count by HTTP status code
func (m *Metrics) RecordRequestByStatus(statusCode int) {
	m.StatusMutex.Lock()
	defer m.StatusMutex.Unlock()
	m.RequestCountByStatus[statusCode]++
}

// RecordUpstreamRequest records one call to a coding-judge platform
func (m *Metrics) RecordUpstreamRequest(upstream string, success bool) {
	m.UpstreamMutex.Lock()
	defer m.UpstreamMutex.Unlock()

	m.UpstreamRequests[upstream]++
	if !success {
		m.UpstreamErrorCount[upstream]++
	}
}

// RecordAnalysis records the outcome of an analysis request
func (m *Metrics) RecordAnalysis(usedFallback, roadmapInjected bool) {
	atomic.AddInt64(&m.AnalysesCompleted, 1)
	if usedFallback {
		atomic.AddInt64(&m.AnalysesFallback, 1)
	}
	if roadmapInjected {
		atomic.AddInt64(&m.RoadmapsInjected, 1)
	}
}

// IncrementAnalysisFailure records a backend failure
func (m *Metrics) IncrementAnalysisFailure() {
	atomic.AddInt64(&m.AnalysesFailed, 1)
}

// IncrementRateLimitBlock records a request rejected by the rate limiter
func (m *Metrics) IncrementRateLimitBlock() {
	atomic.AddInt64(&m.RateLimitBlocks, 1)
}

// GetPercentileResponseTime calculates percentile response time
func (m *Metrics) GetPercentileResponseTime(percentile float64) time.Duration {
	m.ResponseTimesMutex.RLock()
	times := make([]time.Duration, len(m.ResponseTimes))
	copy(times, m.ResponseTimes)
	m.ResponseTimesMutex.RUnlock()

	if len(times) == 0 {
		return 0
	}

	sort.Slice(times, func(i, j int) bool {
		return times[i] < times[j]
	})

	index := int(float64(len(times)-1) * percentile / 100.0)
	if index >= len(times) {
		index = len(times) - 1
	}

	return times[index]
}

// GetStatusCodeDistribution returns request count by status code
func (m *Metrics) GetStatusCodeDistribution() map[int]int64 {
	m.StatusMutex.RLock()
	defer m.StatusMutex.RUnlock()

	distribution := make(map[int]int64, len(m.RequestCountByStatus))
	for code, count := range m.RequestCountByStatus {
		distribution[code] = count
	}
	return distribution
}

// GetUpstreamStats returns per-platform call statistics
func (m *Metrics) GetUpstreamStats() map[string]interface{} {
	m.UpstreamMutex.RLock()
	defer m.UpstreamMutex.RUnlock()

	stats := make(map[string]interface{}, len(m.UpstreamRequests))
	for name, requests := range m.UpstreamRequests {
		errors := m.UpstreamErrorCount[name]
		errorRate := float64(0)
		if requests > 0 {
			errorRate = float64(errors) / float64(requests) * 100
		}

		stats[name] = map[string]interface{}{
			"requests":   requests,
			"errors":     errors,
			"error_rate": errorRate,
		}
	}
	return stats
}

// GetAnalysisStats returns the analysis counters
func (m *Metrics) GetAnalysisStats() map[string]int64 {
	return map[string]int64{
		"completed":        atomic.LoadInt64(&m.AnalysesCompleted),
		"fallback":         atomic.LoadInt64(&m.AnalysesFallback),
		"roadmap_injected": atomic.LoadInt64(&m.RoadmapsInjected),
		"failed":           atomic.LoadInt64(&m.AnalysesFailed),
	}
}

// GetStats returns current metrics statistics
func (m *Metrics) GetStats() map[string]interface{} {
	requests := atomic.LoadInt64(&m.RequestCount)
	errors := atomic.LoadInt64(&m.ErrorCount)
	avgResponseTime := atomic.LoadInt64(&m.AverageResponseTime)

	errorRate := float64(0)
	if requests > 0 {
		errorRate = float64(errors) / float64(requests) * 100
	}

	return map[string]interface{}{
		"uptime_seconds":       time.Since(m.StartTime).Seconds(),
		"total_requests":       requests,
		"error_count":          errors,
		"error_rate_percent":   errorRate,
		"avg_response_time_ms": float64(avgResponseTime) / 1000000,
		"start_time":           m.StartTime.Format(time.RFC3339),

		"p50_response_time_ms":     float64(m.GetPercentileResponseTime(50)) / 1000000,
		"p95_response_time_ms":     float64(m.GetPercentileResponseTime(95)) / 1000000,
		"p99_response_time_ms":     float64(m.GetPercentileResponseTime(99)) / 1000000,
		"status_code_distribution": m.GetStatusCodeDistribution(),
		"upstreams":                m.GetUpstreamStats(),
		"analysis":                 m.GetAnalysisStats(),
		"rate_limit_blocks":        atomic.LoadInt64(&m.RateLimitBlocks),
	}
}
