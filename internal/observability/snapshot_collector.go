package observability

import (
	"log/slog"
	"sync"
	"time"

	"github.com/daimoniac/securevision/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	snapshotCollectorOnce     sync.Once
	snapshotCollectorInstance *SnapshotCollector
)

// SnapshotSource exposes the current posture snapshot to the collector
type SnapshotSource interface {
	Load() metrics.SecurityMetrics
	UpdatedAt() time.Time
}

// SnapshotCollector reports the current snapshot when /metrics is scraped,
// so the gauges always match what the dashboard shows
type SnapshotCollector struct {
	source SnapshotSource

	threatsDesc         *prometheus.Desc
	vulnerabilitiesDesc *prometheus.Desc
	incidentsDesc       *prometheus.Desc
	complianceDesc      *prometheus.Desc
	ageDesc             *prometheus.Desc
}

// NewSnapshotCollector creates a new snapshot collector
func NewSnapshotCollector(source SnapshotSource) *SnapshotCollector {
	return &SnapshotCollector{
		source: source,
		threatsDesc: prometheus.NewDesc(
			"securevision_threats",
			"Active threats in the current snapshot",
			nil, nil,
		),
		vulnerabilitiesDesc: prometheus.NewDesc(
			"securevision_vulnerabilities",
			"Open vulnerabilities in the current snapshot",
			nil, nil,
		),
		incidentsDesc: prometheus.NewDesc(
			"securevision_incidents",
			"Incidents in the current snapshot",
			nil, nil,
		),
		complianceDesc: prometheus.NewDesc(
			"securevision_compliance_score",
			"Compliance score (0-100) in the current snapshot",
			nil, nil,
		),
		ageDesc: prometheus.NewDesc(
			"securevision_snapshot_age_seconds",
			"Seconds since the snapshot was last replaced (absent before the first success)",
			nil, nil,
		),
	}
}

// RegisterSnapshotCollector registers the snapshot collector exactly once
func RegisterSnapshotCollector(source SnapshotSource, logger *slog.Logger) {
	snapshotCollectorOnce.Do(func() {
		snapshotCollectorInstance = NewSnapshotCollector(source)
		prometheus.MustRegister(snapshotCollectorInstance)
		logger.Info("snapshot metrics collector registered")
	})
}

// Describe sends the metric descriptors to the provided channel
func (c *SnapshotCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.threatsDesc
	ch <- c.vulnerabilitiesDesc
	ch <- c.incidentsDesc
	ch <- c.complianceDesc
	ch <- c.ageDesc
}

// Collect reads the current snapshot and sends its values
func (c *SnapshotCollector) Collect(ch chan<- prometheus.Metric) {
	m := c.source.Load()

	ch <- prometheus.MustNewConstMetric(c.threatsDesc, prometheus.GaugeValue, float64(m.Threats))
	ch <- prometheus.MustNewConstMetric(c.vulnerabilitiesDesc, prometheus.GaugeValue, float64(m.Vulnerabilities))
	ch <- prometheus.MustNewConstMetric(c.incidentsDesc, prometheus.GaugeValue, float64(m.Incidents))
	ch <- prometheus.MustNewConstMetric(c.complianceDesc, prometheus.GaugeValue, m.Compliance)

	if updated := c.source.UpdatedAt(); !updated.IsZero() {
		ch <- prometheus.MustNewConstMetric(c.ageDesc, prometheus.GaugeValue, time.Since(updated).Seconds())
	}
}
