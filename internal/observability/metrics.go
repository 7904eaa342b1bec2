package observability

import (
	"strconv"
	"sync"
	"time"
)

// Metrics provides basic in-memory counters.
type Metrics struct {
	mu           sync.Mutex
	eventCount   map[string]int64
	failureCount map[string]int64
	counters     map[string]int64
	requestCount map[string]int64
	errorCount   map[string]int64
	eventLatency map[string]time.Duration
}

// Snapshot is a point-in-time copy of all counters.
type Snapshot struct {
	Events        map[string]int64  `json:"events"`
	Failures      map[string]int64  `json:"failures"`
	Counters      map[string]int64  `json:"counters"`
	Requests      map[string]int64  `json:"requests"`
	RequestErrors map[string]int64  `json:"request_errors"`
	EventLatency  map[string]string `json:"event_latency_total"`
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		eventCount:   make(map[string]int64),
		failureCount: make(map[string]int64),
		counters:     make(map[string]int64),
		requestCount: make(map[string]int64),
		errorCount:   make(map[string]int64),
		eventLatency: make(map[string]time.Duration),
	}
}

// RecordEvent counts one handled feed event by type and outcome.
func (m *Metrics) RecordEvent(eventType, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.eventCount[eventType+"|"+outcome]++
	m.eventLatency[eventType] += duration
}

// RecordFailure counts a handler failure by event type and error code.
func (m *Metrics) RecordFailure(eventType, code string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failureCount[eventType+"|"+code]++
}

// Inc increments a named counter.
func (m *Metrics) Inc(name string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[name]++
}

// Counter returns the current value of a named counter.
func (m *Metrics) Counter(name string) int64 {
	if m == nil {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counters[name]
}

// RecordRequest increments counters for admin API requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	key := pathKey(path, method, status)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount[key]++
}

// RecordError increments admin API error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	key := path + "|" + method + "|" + code
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorCount[key]++
}

// Snapshot copies the current counters.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	latency := make(map[string]string, len(m.eventLatency))
	for k, v := range m.eventLatency {
		latency[k] = v.String()
	}
	return Snapshot{
		Events:        copyCounts(m.eventCount),
		Failures:      copyCounts(m.failureCount),
		Counters:      copyCounts(m.counters),
		Requests:      copyCounts(m.requestCount),
		RequestErrors: copyCounts(m.errorCount),
		EventLatency:  latency,
	}
}

func copyCounts(src map[string]int64) map[string]int64 {
	dst := make(map[string]int64, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func pathKey(path, method string, status int) string {
	return path + "|" + method + "|" + strconv.Itoa(status)
}
