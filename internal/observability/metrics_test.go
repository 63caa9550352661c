package observability

import (
	"strings"
	"testing"
	"time"

	"github.com/daimoniac/securevision/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics(t *testing.T) {
	// Get metrics instance
	m := GetMetrics()

	// Test that metrics are initialized
	if m.PollCyclesTotal == nil {
		t.Error("PollCyclesTotal metric not initialized")
	}
	if m.PollFailuresTotal == nil {
		t.Error("PollFailuresTotal metric not initialized")
	}
	if m.StreamClients == nil {
		t.Error("StreamClients metric not initialized")
	}

	// Test counter vec
	m.PollFailuresTotal.WithLabelValues("metrics-test", "decode").Inc()
	m.PollFailuresTotal.WithLabelValues("metrics-test", "transport").Add(3)

	if got := testutil.ToFloat64(m.PollFailuresTotal.WithLabelValues("metrics-test", "decode")); got != 1 {
		t.Errorf("expected 1 decode failure, got %f", got)
	}
	if got := testutil.ToFloat64(m.PollFailuresTotal.WithLabelValues("metrics-test", "transport")); got != 3 {
		t.Errorf("expected 3 transport failures, got %f", got)
	}

	// Test gauge
	m.StreamClients.Set(5)
	if testutil.ToFloat64(m.StreamClients) != 5 {
		t.Errorf("expected StreamClients to be 5, got %f", testutil.ToFloat64(m.StreamClients))
	}
	m.StreamClients.Set(0)
}

func TestMetricsSingleton(t *testing.T) {
	// Verify that GetMetrics returns the same instance
	m1 := GetMetrics()
	m2 := GetMetrics()

	if m1 != m2 {
		t.Error("GetMetrics should return the same instance")
	}
}

type fixedSource struct {
	m       metrics.SecurityMetrics
	updated time.Time
}

func (f fixedSource) Load() metrics.SecurityMetrics { return f.m }
func (f fixedSource) UpdatedAt() time.Time           { return f.updated }

func TestSnapshotCollector(t *testing.T) {
	source := fixedSource{m: metrics.SecurityMetrics{Threats: 3, Vulnerabilities: 12, Incidents: 1, Compliance: 85}}
	collector := NewSnapshotCollector(source)

	reg := prometheus.NewPedanticRegistry()
	if err := reg.Register(collector); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	expected := `
# HELP securevision_compliance_score Compliance score (0-100) in the current snapshot
# TYPE securevision_compliance_score gauge
securevision_compliance_score 85
# HELP securevision_threats Active threats in the current snapshot
# TYPE securevision_threats gauge
securevision_threats 3
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"securevision_compliance_score", "securevision_threats"); err != nil {
		t.Errorf("unexpected collector output: %v", err)
	}

	// No age metric before the first successful update.
	if n := testutil.CollectAndCount(collector, "securevision_snapshot_age_seconds"); n != 0 {
		t.Errorf("expected no age sample before first update, got %d", n)
	}

	source.updated = time.Now().Add(-time.Minute)
	if n := testutil.CollectAndCount(NewSnapshotCollector(source), "securevision_snapshot_age_seconds"); n != 1 {
		t.Errorf("expected one age sample after an update, got %d", n)
	}
}
