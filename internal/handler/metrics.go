package handler

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/deliverydesk/deliverydesk/internal/metrics"
)

// counterLabels names the label carried by each labeled counter.
var counterLabels = map[string]string{
	"customer_writes":  "action",
	"order_writes":     "action",
	"logins":           "status",
	"exports":          "format",
	"events_published": "status",
	"events_processed": "status",
}

// MetricsHandler exposes in-memory metrics.
type MetricsHandler struct {
	snapshotter metrics.Snapshotter
}

// NewMetricsHandler creates a new MetricsHandler.
func NewMetricsHandler(snapshotter metrics.Snapshotter) *MetricsHandler {
	return &MetricsHandler{snapshotter: snapshotter}
}

// Metrics returns metrics in Prometheus exposition format.
func (h *MetricsHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	if h.snapshotter == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	snap := h.snapshotter.Snapshot()

	w.Header().Set("Content-Type", "text/plain; version=0.0.4")

	for _, key := range snap.CounterKeys() {
		name, value, _ := strings.Cut(key, "|")
		label, ok := counterLabels[name]
		if !ok {
			label = "label"
		}
		writeMetric(w, "desk_%s_total{%s=%q} %d\n", name, label, value, snap.Counters[key])
	}

	writeMetric(w, "desk_expenses_saved_total %d\n", snap.ExpensesSaved)

	writeMetric(w, "desk_report_cache_hits_total %d\n", snap.ReportCacheHits)
	writeMetric(w, "desk_report_cache_misses_total %d\n", snap.ReportCacheMisses)
	writeMetric(w, "desk_report_duration_seconds_count %d\n", snap.ReportDurationCount)
	writeMetric(w, "desk_report_duration_seconds_sum %.6f\n", float64(snap.ReportDurationTotalNs)/1e9)

	writeMetric(w, "desk_event_batches_total %d\n", snap.EventBatchCount)
	writeMetric(w, "desk_event_batch_size_sum %d\n", snap.EventBatchSizeTotal)
	writeMetric(w, "desk_event_batch_duration_seconds_sum %.6f\n", float64(snap.EventBatchDurationNs)/1e9)
	writeMetric(w, "desk_event_queue_depth %d\n", snap.EventQueueDepth)
}

func writeMetric(w http.ResponseWriter, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}
