// Package dashboard owns the state behind one open security dashboard: the
// snapshot cells, the pollers that keep them fresh and the derived view.
package dashboard

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/daimoniac/securevision/internal/client"
	"github.com/daimoniac/securevision/internal/metrics"
	"github.com/daimoniac/securevision/internal/observability"
	"github.com/daimoniac/securevision/internal/poller"
	"github.com/daimoniac/securevision/internal/posture"
	"github.com/daimoniac/securevision/internal/snapshot"
	"github.com/daimoniac/securevision/internal/statestore"
	"k8s.io/utils/clock"
)

// HealthComponent is the health checker component updated by the session
const HealthComponent = "poller"

// staleAfter is the number of intervals without a successful poll after
// which the view is flagged stale
const staleAfter = 2

const historyWriteTimeout = 5 * time.Second

// Options configures a dashboard session
type Options struct {
	Client   client.Client
	Interval time.Duration
	// SeriesEnabled adds the timeline and vulnerability distribution pollers
	SeriesEnabled bool

	// Optional collaborators; nil disables the corresponding feature
	Store   statestore.StateStore
	Posture posture.Evaluator
	Health  *observability.HealthChecker

	Clock  clock.WithTicker
	Logger *slog.Logger
}

// View is everything the dashboard renders
type View struct {
	Metrics         metrics.SecurityMetrics       `json:"metrics"`
	Timeline        []metrics.ThreatSample        `json:"timeline"`
	Vulnerabilities []metrics.VulnerabilityBucket `json:"vulnerabilities"`
	Posture         *posture.Decision             `json:"posture,omitempty"`
	Poller          poller.Status                 `json:"poller"`
	UpdatedAt       *time.Time                    `json:"updated_at,omitempty"`
	Stale           bool                          `json:"stale"`
}

type lifecycle interface {
	Start() error
	Stop()
}

// Session is one mounted dashboard. Open starts polling; Close stops it.
type Session struct {
	metrics      *snapshot.Cell[metrics.SecurityMetrics]
	timeline     *snapshot.Cell[[]metrics.ThreatSample]
	distribution *snapshot.Cell[[]metrics.VulnerabilityBucket]
	// applied holds the time of the last fully applied metrics snapshot
	applied *snapshot.Cell[time.Time]

	metricsPoller *poller.Poller[metrics.SecurityMetrics]
	pollers       []lifecycle

	store    statestore.StateStore
	posture  posture.Evaluator
	health   *observability.HealthChecker
	clock    clock.WithTicker
	interval time.Duration
	logger   *slog.Logger
	openedAt time.Time

	mu          sync.RWMutex
	decision    *posture.Decision
	lastApplied time.Time

	closeOnce sync.Once
}

// Open creates the cells with their initial values and starts every poller.
// Each poller issues its first request immediately.
func Open(opts Options) (*Session, error) {
	interval := opts.Interval
	if interval <= 0 {
		interval = poller.DefaultInterval
	}
	clk := opts.Clock
	if clk == nil {
		clk = clock.RealClock{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Session{
		metrics:      snapshot.NewCell(metrics.SecurityMetrics{}, snapshot.WithClock(clk)),
		timeline:     snapshot.NewCell([]metrics.ThreatSample{}, snapshot.WithClock(clk)),
		distribution: snapshot.NewCell([]metrics.VulnerabilityBucket{}, snapshot.WithClock(clk)),
		applied:      snapshot.NewCell(time.Time{}, snapshot.WithClock(clk)),
		store:        opts.Store,
		posture:      opts.Posture,
		health:       opts.Health,
		clock:        clk,
		interval:     interval,
		logger:       logger,
		openedAt:     clk.Now(),
	}

	s.metricsPoller = poller.New(opts.Client.FetchMetrics, s.metrics, poller.Config[metrics.SecurityMetrics]{
		Source:    "metrics",
		Interval:  interval,
		Clock:     clk,
		Logger:    logger,
		OnApply:   s.applyMetrics,
		OnFailure: s.metricsFailed,
	})
	s.pollers = append(s.pollers, s.metricsPoller)

	if opts.SeriesEnabled {
		s.pollers = append(s.pollers,
			poller.New(opts.Client.FetchTimeline, s.timeline, poller.Config[[]metrics.ThreatSample]{
				Source:   "timeline",
				Interval: interval,
				Clock:    clk,
				Logger:   logger,
			}),
			poller.New(opts.Client.FetchVulnerabilities, s.distribution, poller.Config[[]metrics.VulnerabilityBucket]{
				Source:   "vulnerabilities",
				Interval: interval,
				Clock:    clk,
				Logger:   logger,
			}),
		)
	}

	for i, p := range s.pollers {
		if err := p.Start(); err != nil {
			for _, started := range s.pollers[:i] {
				started.Stop()
			}
			return nil, err
		}
	}

	logger.Info("dashboard session opened",
		"interval", interval.String(),
		"series_enabled", opts.SeriesEnabled)

	return s, nil
}

// Close stops every poller and waits for cycles already running, so nothing
// is recorded, evaluated or published once it returns. Responses still in
// flight are discarded and every Subscribe channel is closed. It is safe to
// call more than once.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		for _, p := range s.pollers {
			p.Stop()
		}
		s.applied.Close()
		s.logger.Info("dashboard session closed")
	})
}

// Metrics returns the cell holding the current SecurityMetrics
func (s *Session) Metrics() *snapshot.Cell[metrics.SecurityMetrics] {
	return s.metrics
}

// Timeline returns the current threat timeline
func (s *Session) Timeline() []metrics.ThreatSample {
	return s.timeline.Load()
}

// Vulnerabilities returns the current vulnerability distribution
func (s *Session) Vulnerabilities() []metrics.VulnerabilityBucket {
	return s.distribution.Load()
}

// Subscribe notifies after each applied metrics snapshot, once posture and
// history have caught up with it. Call cancel to unsubscribe. The channel is
// closed by Close.
func (s *Session) Subscribe() (<-chan time.Time, func()) {
	return s.applied.Subscribe()
}

// History returns the snapshot history store, or nil if none is configured
func (s *Session) History() statestore.StateStore {
	return s.store
}

// View assembles the current view. It never blocks on the network.
func (s *Session) View() View {
	s.mu.RLock()
	decision := s.decision
	lastApplied := s.lastApplied
	s.mu.RUnlock()

	v := View{
		Metrics:         s.metrics.Load(),
		Timeline:        s.timeline.Load(),
		Vulnerabilities: s.distribution.Load(),
		Posture:         decision,
		Poller:          s.metricsPoller.Status(),
	}

	since := s.openedAt
	if !lastApplied.IsZero() {
		at := lastApplied
		v.UpdatedAt = &at
		since = lastApplied
	}
	v.Stale = s.clock.Since(since) > staleAfter*s.interval

	return v
}

// applyMetrics runs on the poller goroutine after a snapshot was stored
func (s *Session) applyMetrics(m metrics.SecurityMetrics) {
	now := s.clock.Now().UTC()

	var decision *posture.Decision
	if s.posture != nil {
		d, err := s.posture.Evaluate(m)
		if err != nil {
			s.logger.Warn("posture evaluation failed",
				"error", err.Error())
		} else {
			decision = d
		}
	}

	s.mu.Lock()
	s.lastApplied = now
	if decision != nil {
		s.decision = decision
	}
	s.mu.Unlock()

	if s.health != nil {
		s.health.UpdateComponentHealth(HealthComponent, observability.StatusHealthy, "")
	}

	if s.store != nil {
		s.recordHistory(m, decision, now)
	}

	s.applied.Store(now)
}

func (s *Session) recordHistory(m metrics.SecurityMetrics, decision *posture.Decision, at time.Time) {
	obs := observability.GetMetrics()

	ctx, cancel := context.WithTimeout(context.Background(), historyWriteTimeout)
	defer cancel()

	record := &statestore.Record{
		RecordedAt:    at,
		Metrics:       m,
		PosturePassed: decision != nil && decision.Passed,
	}
	if err := s.store.RecordSnapshot(ctx, record); err != nil {
		obs.HistoryErrorsTotal.Inc()
		s.logger.Warn("failed to record snapshot history",
			"error", err.Error())
		return
	}
	obs.HistoryRecordedTotal.Inc()
}

// metricsFailed marks the session degraded; the last good snapshot stays visible
func (s *Session) metricsFailed(err error) {
	if s.health != nil {
		s.health.UpdateComponentHealth(HealthComponent, observability.StatusDegraded, err.Error())
	}
}
