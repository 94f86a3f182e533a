package metrics

import (
	"time"

	"rollscan/internal/scanbuf"
)

// ScanMetrics holds the scanner and lookup metrics. It implements
// scanbuf.Observer so a Buffer can report directly into it.
type ScanMetrics struct {
	registry *Registry

	// Counters
	ScansTotal          *Counter
	KeysDroppedTotal    *Counter
	BufferResetsTotal   *Counter
	LookupsFoundTotal   *Counter
	LookupsMissingTotal *Counter
	LookupErrorsTotal   *Counter

	// Gauges
	Listening     *Gauge
	UptimeSeconds *Gauge

	// Histograms
	LookupDuration *Histogram
}

var _ scanbuf.Observer = (*ScanMetrics)(nil)

// startTime records when metrics were initialized.
var startTime = time.Now()

// NewScanMetrics creates and registers the scan metrics.
func NewScanMetrics(registry *Registry) *ScanMetrics {
	if registry == nil {
		registry = Default()
	}

	return &ScanMetrics{
		registry: registry,

		ScansTotal: registry.RegisterCounter(
			"scans_total",
			"Total number of barcodes assembled from scanner input",
			nil,
		),
		KeysDroppedTotal: registry.RegisterCounter(
			"keys_dropped_total",
			"Total number of key events that map to no barcode character",
			nil,
		),
		BufferResetsTotal: registry.RegisterCounter(
			"buffer_resets_total",
			"Total number of partial scans discarded after a timing gap",
			nil,
		),
		LookupsFoundTotal: registry.RegisterCounter(
			"lookups_found_total",
			"Total number of lookups that matched a student",
			nil,
		),
		LookupsMissingTotal: registry.RegisterCounter(
			"lookups_missing_total",
			"Total number of lookups with no matching student",
			nil,
		),
		LookupErrorsTotal: registry.RegisterCounter(
			"lookup_errors_total",
			"Total number of lookups that failed",
			nil,
		),

		Listening: registry.RegisterGauge(
			"listening",
			"1 while the scanner is accepting input, 0 otherwise",
			nil,
		),
		UptimeSeconds: registry.RegisterGauge(
			"uptime_seconds",
			"Number of seconds the process has been running",
			nil,
		),

		LookupDuration: registry.RegisterHistogram(
			"lookup_duration_seconds",
			"Duration of student lookups in seconds",
			nil,
			LookupBuckets,
		),
	}
}

// Registry returns the registry the metrics are registered in.
func (m *ScanMetrics) Registry() *Registry {
	return m.registry
}

// ScanEmitted records a completed scan.
func (m *ScanMetrics) ScanEmitted(string) {
	m.ScansTotal.Inc()
}

// KeyDropped records an unmapped key.
func (m *ScanMetrics) KeyDropped(scanbuf.Key) {
	m.KeysDroppedTotal.Inc()
}

// BufferReset records a discarded partial scan.
func (m *ScanMetrics) BufferReset(int) {
	m.BufferResetsTotal.Inc()
}

// ListeningChanged tracks the listening gauge.
func (m *ScanMetrics) ListeningChanged(listening bool) {
	if listening {
		m.Listening.Set(1)
	} else {
		m.Listening.Set(0)
	}
}

// RecordLookup records the outcome of a lookup. A nil receiver is a no-op.
func (m *ScanMetrics) RecordLookup(found bool, err error, d time.Duration) {
	if m == nil {
		return
	}
	m.LookupDuration.ObserveDuration(d)
	switch {
	case err != nil:
		m.LookupErrorsTotal.Inc()
	case found:
		m.LookupsFoundTotal.Inc()
	default:
		m.LookupsMissingTotal.Inc()
	}
}

// UpdateUptime updates the uptime metric.
func (m *ScanMetrics) UpdateUptime() {
	m.UptimeSeconds.Set(int64(time.Since(startTime).Seconds()))
}

// Snapshot returns a snapshot of key metrics.
func (m *ScanMetrics) Snapshot() map[string]interface{} {
	m.UpdateUptime()
	return map[string]interface{}{
		"scans_total":           m.ScansTotal.Value(),
		"keys_dropped_total":    m.KeysDroppedTotal.Value(),
		"buffer_resets_total":   m.BufferResetsTotal.Value(),
		"lookups_found_total":   m.LookupsFoundTotal.Value(),
		"lookups_missing_total": m.LookupsMissingTotal.Value(),
		"lookup_errors_total":   m.LookupErrorsTotal.Value(),
		"listening":             m.Listening.Value(),
		"uptime_seconds":        m.UptimeSeconds.Value(),
		"lookup_avg_seconds":    m.LookupDuration.Mean(),
		"lookup_count":          m.LookupDuration.Count(),
	}
}
