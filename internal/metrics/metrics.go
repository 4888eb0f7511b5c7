// Package metrics holds the Prometheus collectors for the file registry.
package metrics

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Operation results used as the "result" label.
const (
	ResultOK       = "ok"
	ResultExists   = "exists"
	ResultNotFound = "not_found"
)

// Metrics groups the registry collectors. A nil *Metrics records nothing.
type Metrics struct {
	operations        *prometheus.CounterVec
	records           prometheus.Gauge
	rollbackDiscarded prometheus.Counter
	searchResults     prometheus.Histogram
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		operations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "filereg_operations_total",
			Help: "Registry operations by operation name and result.",
		}, []string{"op", "result"}),
		records: factory.NewGauge(prometheus.GaugeOpts{
			Name: "filereg_records",
			Help: "Records physically stored in the registry.",
		}),
		rollbackDiscarded: factory.NewCounter(prometheus.CounterOpts{
			Name: "filereg_rollback_discarded_total",
			Help: "Records permanently discarded by rollbacks.",
		}),
		searchResults: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "filereg_search_results",
			Help:    "Number of records returned per search.",
			Buckets: []float64{0, 1, 5, 10, 25, 50, 100},
		}),
	}
}

// Observe counts one operation with the given result.
func (m *Metrics) Observe(op, result string) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(op, result).Inc()
}

// SetRecords publishes the current table size.
func (m *Metrics) SetRecords(n int) {
	if m == nil {
		return
	}
	m.records.Set(float64(n))
}

// AddDiscarded counts records dropped by a rollback.
func (m *Metrics) AddDiscarded(n int) {
	if m == nil {
		return
	}
	m.rollbackDiscarded.Add(float64(n))
}

// ObserveSearch records the size of a search result.
func (m *Metrics) ObserveSearch(n int) {
	if m == nil {
		return
	}
	m.searchResults.Observe(float64(n))
}

// Dump writes every gathered counter and gauge as name{labels}=value lines,
// sorted by line. Histograms are reported as their sample count and sum.
func Dump(g prometheus.Gatherer, w io.Writer) error {
	families, err := g.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}

	var lines []string
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			name := mf.GetName() + formatLabels(m.GetLabel())
			switch mf.GetType() {
			case dto.MetricType_COUNTER:
				lines = append(lines, fmt.Sprintf("%s=%g", name, m.GetCounter().GetValue()))
			case dto.MetricType_GAUGE:
				lines = append(lines, fmt.Sprintf("%s=%g", name, m.GetGauge().GetValue()))
			case dto.MetricType_HISTOGRAM:
				h := m.GetHistogram()
				lines = append(lines,
					fmt.Sprintf("%s_count=%d", name, h.GetSampleCount()),
					fmt.Sprintf("%s_sum=%g", name, h.GetSampleSum()))
			}
		}
	}
	sort.Strings(lines)

	for _, line := range lines {
		if _, err := fmt.Fprintf(w, "%s\r\n", line); err != nil {
			return err
		}
	}
	return nil
}

func formatLabels(labels []*dto.LabelPair) string {
	if len(labels) == 0 {
		return ""
	}
	parts := make([]string, 0, len(labels))
	for _, l := range labels {
		parts = append(parts, fmt.Sprintf("%s=%q", l.GetName(), l.GetValue()))
	}
	return "{" + strings.Join(parts, ",") + "}"
}
