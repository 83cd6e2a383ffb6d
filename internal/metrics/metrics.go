// Package metrics provides lightweight hooks for instrumentation.
package metrics

import "time"

// Recorder captures metric events for the application.
// Implementations can expose these to Prometheus, StatsD, etc.
type Recorder interface {
	// Business writes
	IncCustomerWrite(action string) // action: "created", "updated", "deleted", "imported"
	IncOrderWrite(action string)    // action: "created", "updated", "deleted"
	IncExpenseSaved()

	// Auth
	IncLogin(status string) // status: "success", "failure", "limited"

	// Reports
	IncReportCacheHit()
	IncReportCacheMiss()
	ObserveReportDuration(duration time.Duration)
	IncExport(format string)

	// Event pipeline
	IncEventPublished(status string) // status: "success" or "dropped"
	IncEventProcessed(status string) // status: "success", "failed", "dead_lettered"
	ObserveEventBatch(size int, duration time.Duration)
	SetEventQueueDepth(depth int64)
}

// Snapshotter exposes a snapshot of current metrics.
type Snapshotter interface {
	Snapshot() Snapshot
}
