package metrics

import "time"

// NoopRecorder implements Recorder with no-op methods.
type NoopRecorder struct{}

// NewNoop returns a Recorder that discards all metrics.
func NewNoop() Recorder {
	return &NoopRecorder{}
}

func (n *NoopRecorder) IncCustomerWrite(action string) {}
func (n *NoopRecorder) IncOrderWrite(action string) {}
func (n *NoopRecorder) IncExpenseSaved() {}
func (n *NoopRecorder) IncLogin(status string) {}
func (n *NoopRecorder) IncReportCacheHit() {}
func (n *NoopRecorder) IncReportCacheMiss() {}
func (n *NoopRecorder) ObserveReportDuration(duration time.Duration) {}
func (n *NoopRecorder) IncExport(format string) {}
func (n *NoopRecorder) IncEventPublished(status string) {}
func (n *NoopRecorder) IncEventProcessed(status string) {}
func (n *NoopRecorder) ObserveEventBatch(size int, duration time.Duration) {}
func (n *NoopRecorder) SetEventQueueDepth(depth int64) {}
