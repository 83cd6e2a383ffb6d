package metrics

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Snapshot captures current in-memory counters.
type Snapshot struct {
	// Labeled counters, keyed "<name>|<label>".
	Counters map[string]uint64

	ReportCacheHits       uint64
	ReportCacheMisses     uint64
	ReportDurationCount   uint64
	ReportDurationTotalNs int64
	ExpensesSaved         uint64

	EventBatchCount      uint64
	EventBatchSizeTotal  uint64
	EventBatchDurationNs int64
	EventQueueDepth      int64
}

// CounterKeys returns the labeled counter keys in stable order.
func (s Snapshot) CounterKeys() []string {
	keys := make([]string, 0, len(s.Counters))
	for k := range s.Counters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// InMemoryRecorder stores metrics in memory.
type InMemoryRecorder struct {
	mu       sync.Mutex
	counters map[string]uint64

	reportCacheHits       uint64
	reportCacheMisses     uint64
	reportDurationCount   uint64
	reportDurationTotalNs int64
	expensesSaved         uint64

	eventBatchCount      uint64
	eventBatchSizeTotal  uint64
	eventBatchDurationNs int64
	eventQueueDepth      int64
}

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{counters: make(map[string]uint64)}
}

// Snapshot returns a copy of the counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	m.mu.Lock()
	counters := make(map[string]uint64, len(m.counters))
	for k, v := range m.counters {
		counters[k] = v
	}
	m.mu.Unlock()

	return Snapshot{
		Counters:              counters,
		ReportCacheHits:       atomic.LoadUint64(&m.reportCacheHits),
		ReportCacheMisses:     atomic.LoadUint64(&m.reportCacheMisses),
		ReportDurationCount:   atomic.LoadUint64(&m.reportDurationCount),
		ReportDurationTotalNs: atomic.LoadInt64(&m.reportDurationTotalNs),
		ExpensesSaved:         atomic.LoadUint64(&m.expensesSaved),
		EventBatchCount:       atomic.LoadUint64(&m.eventBatchCount),
		EventBatchSizeTotal:   atomic.LoadUint64(&m.eventBatchSizeTotal),
		EventBatchDurationNs:  atomic.LoadInt64(&m.eventBatchDurationNs),
		EventQueueDepth:       atomic.LoadInt64(&m.eventQueueDepth),
	}
}

func (m *InMemoryRecorder) inc(name, label string) {
	m.mu.Lock()
	m.counters[name+"|"+label]++
	m.mu.Unlock()
}

// IncCustomerWrite counts customer mutations by action.
func (m *InMemoryRecorder) IncCustomerWrite(action string) {
	m.inc("customer_writes", action)
}

// IncOrderWrite counts order mutations by action.
func (m *InMemoryRecorder) IncOrderWrite(action string) {
	m.inc("order_writes", action)
}

// IncExpenseSaved counts driver expense upserts.
func (m *InMemoryRecorder) IncExpenseSaved() {
	atomic.AddUint64(&m.expensesSaved, 1)
}

// IncLogin counts login attempts by outcome.
func (m *InMemoryRecorder) IncLogin(status string) {
	m.inc("logins", status)
}

// IncReportCacheHit increments cache hit counter.
func (m *InMemoryRecorder) IncReportCacheHit() {
	atomic.AddUint64(&m.reportCacheHits, 1)
}

// IncReportCacheMiss increments cache miss counter.
func (m *InMemoryRecorder) IncReportCacheMiss() {
	atomic.AddUint64(&m.reportCacheMisses, 1)
}

// ObserveReportDuration records how long a report query took.
func (m *InMemoryRecorder) ObserveReportDuration(duration time.Duration) {
	atomic.AddUint64(&m.reportDurationCount, 1)
	atomic.AddInt64(&m.reportDurationTotalNs, duration.Nanoseconds())
}

// IncExport counts report and invoice downloads by format.
func (m *InMemoryRecorder) IncExport(format string) {
	m.inc("exports", format)
}

// IncEventPublished counts stream publishes by outcome.
func (m *InMemoryRecorder) IncEventPublished(status string) {
	m.inc("events_published", status)
}

// IncEventProcessed counts worker outcomes per event.
func (m *InMemoryRecorder) IncEventProcessed(status string) {
	m.inc("events_processed", status)
}

// ObserveEventBatch records one persisted worker batch.
func (m *InMemoryRecorder) ObserveEventBatch(size int, duration time.Duration) {
	atomic.AddUint64(&m.eventBatchCount, 1)
	atomic.AddUint64(&m.eventBatchSizeTotal, uint64(size))
	atomic.AddInt64(&m.eventBatchDurationNs, duration.Nanoseconds())
}

// SetEventQueueDepth records pending + lag for the consumer group.
func (m *InMemoryRecorder) SetEventQueueDepth(depth int64) {
	atomic.StoreInt64(&m.eventQueueDepth, depth)
}
