package observability

import (
	"sort"
	"strings"
	"sync"
	"time"
)

// Metrics provides basic in-memory counters for engine operations.
type Metrics struct {
	mu             sync.Mutex
	operationCount map[string]int64
	errorCount     map[string]int64
	totalDuration  map[string]time.Duration
}

// OperationStat is a snapshot of the counters for one operation.
type OperationStat struct {
	Operation string
	Calls     int64
	Errors    int64
	Total     time.Duration
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		operationCount: make(map[string]int64),
		errorCount:     make(map[string]int64),
		totalDuration:  make(map[string]time.Duration),
	}
}

// RecordOperation increments counters for an executed operation.
func (m *Metrics) RecordOperation(operation string, duration time.Duration) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.operationCount[operation]++
	m.totalDuration[operation] += duration
}

// RecordError increments error counters keyed by operation and error code.
func (m *Metrics) RecordError(operation, code string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorCount[operation+"|"+code]++
}

// Snapshot returns per-operation stats sorted by operation name.
func (m *Metrics) Snapshot() []OperationStat {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	errorsByOp := make(map[string]int64)
	for key, n := range m.errorCount {
		op, _, _ := strings.Cut(key, "|")
		errorsByOp[op] += n
	}

	stats := make([]OperationStat, 0, len(m.operationCount))
	for op, calls := range m.operationCount {
		stats = append(stats, OperationStat{
			Operation: op,
			Calls:     calls,
			Errors:    errorsByOp[op],
			Total:     m.totalDuration[op],
		})
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].Operation < stats[j].Operation })
	return stats
}
