package poller

import (
	"context"
	stderrors "errors"
	"log/slog"
	"sync"
	"time"

	"github.com/daimoniac/securevision/internal/errors"
	"github.com/daimoniac/securevision/internal/observability"
	"github.com/daimoniac/securevision/internal/snapshot"
	"k8s.io/utils/clock"
)

// DefaultInterval is the fixed rate at which cycles are dispatched.
const DefaultInterval = 30 * time.Second

// ErrAlreadyStarted is returned by Start when the poller is already running.
var ErrAlreadyStarted = stderrors.New("poller already started")

// State is the lifecycle state of a poller
type State string

const (
	StateIdle    State = "idle"
	StatePolling State = "polling"
	StateStopped State = "stopped"
)

// FetchFunc performs the network part of one cycle.
type FetchFunc[T any] func(ctx context.Context) (T, error)

// Config contains configuration for a poller
type Config[T any] struct {
	// Source names the polled endpoint in logs and metrics (e.g. "metrics")
	Source   string
	Interval time.Duration

	// Clock drives the ticker; defaults to the real clock
	Clock  clock.WithTicker
	Logger *slog.Logger

	// OnApply runs after a value has been stored in the cell
	OnApply func(T)
	// OnFailure runs after a failed cycle has been logged
	OnFailure func(error)
}

// Status is a point-in-time view of the poller
type Status struct {
	State               State     `json:"state"`
	LastSuccess         time.Time `json:"last_success,omitempty"`
	LastFailure         time.Time `json:"last_failure,omitempty"`
	LastError           string    `json:"last_error,omitempty"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
}

// Poller keeps a snapshot.Cell fresh by fetching on a fixed-rate ticker.
// Each tick dispatches a cycle on its own goroutine; overlapping cycles are
// allowed and the last one to complete wins. A failed cycle leaves the cell
// untouched.
type Poller[T any] struct {
	fetch     FetchFunc[T]
	cell      *snapshot.Cell[T]
	source    string
	interval  time.Duration
	clock     clock.WithTicker
	logger    *slog.Logger
	onApply   func(T)
	onFailure func(error)

	mu         sync.Mutex
	state      State
	generation uint64
	inFlight   int
	cancel     context.CancelFunc
	loopDone   chan struct{}
	status     Status
	cycles     sync.WaitGroup
}

// New creates a poller that stores fetched values into cell. The poller is
// created stopped; call Start to begin polling.
func New[T any](fetch FetchFunc[T], cell *snapshot.Cell[T], cfg Config[T]) *Poller[T] {
	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.RealClock{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	source := cfg.Source
	if source == "" {
		source = "metrics"
	}

	return &Poller[T]{
		fetch:     fetch,
		cell:      cell,
		source:    source,
		interval:  interval,
		clock:     clk,
		logger:    logger.With("source", source),
		onApply:   cfg.OnApply,
		onFailure: cfg.OnFailure,
		state:     StateStopped,
		status:    Status{State: StateStopped},
	}
}

// Start runs one cycle immediately and then one per interval until Stop.
// It returns without waiting for any cycle to finish.
func (p *Poller[T]) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != StateStopped {
		return ErrAlreadyStarted
	}

	ctx, cancel := context.WithCancel(context.Background())
	p.generation++
	p.inFlight = 0
	p.cancel = cancel
	p.state = StateIdle
	p.status.State = StateIdle
	p.loopDone = make(chan struct{})

	// The ticker is created before Start returns so the first tick is
	// measured from now.
	ticker := p.clock.NewTicker(p.interval)
	gen := p.generation

	p.logger.Info("starting poller",
		"interval", p.interval.String())

	p.dispatchLocked(ctx, gen)
	go p.loop(ctx, gen, ticker, p.loopDone)

	return nil
}

// Stop cancels the ticker and any in-flight request, then waits for every
// dispatched cycle to return, OnApply and OnFailure included. It is
// idempotent. Once it returns nothing touches the cell or runs a callback,
// even for a response that arrives later. Stop must not be called from
// OnApply or OnFailure.
func (p *Poller[T]) Stop() {
	p.mu.Lock()
	if p.state == StateStopped {
		p.mu.Unlock()
		return
	}
	p.state = StateStopped
	p.status.State = StateStopped
	p.cancel()
	done := p.loopDone
	p.mu.Unlock()

	<-done
	p.cycles.Wait()
	p.logger.Info("poller stopped")
}

// Wait blocks until every dispatched cycle has returned.
func (p *Poller[T]) Wait() {
	p.cycles.Wait()
}

// State returns the current lifecycle state
func (p *Poller[T]) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Status returns a copy of the poller status
func (p *Poller[T]) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// Interval returns the dispatch interval
func (p *Poller[T]) Interval() time.Duration {
	return p.interval
}

func (p *Poller[T]) loop(ctx context.Context, gen uint64, ticker clock.Ticker, done chan struct{}) {
	defer close(done)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			p.mu.Lock()
			p.dispatchLocked(ctx, gen)
			p.mu.Unlock()
		}
	}
}

// dispatchLocked starts a cycle unless the poller was stopped or restarted.
// Callers hold p.mu.
func (p *Poller[T]) dispatchLocked(ctx context.Context, gen uint64) {
	if p.state == StateStopped || p.generation != gen {
		return
	}
	p.inFlight++
	p.state = StatePolling
	p.status.State = StatePolling
	p.cycles.Add(1)
	go p.cycle(ctx, gen)
}

func (p *Poller[T]) cycle(ctx context.Context, gen uint64) {
	defer p.cycles.Done()

	m := observability.GetMetrics()
	start := p.clock.Now()

	value, err := p.fetch(ctx)

	m.PollDuration.WithLabelValues(p.source).Observe(p.clock.Since(start).Seconds())

	p.mu.Lock()
	if p.generation == gen {
		p.inFlight--
		if p.inFlight == 0 && p.state == StatePolling {
			p.state = StateIdle
			p.status.State = StateIdle
		}
	}

	if p.state == StateStopped || p.generation != gen {
		p.mu.Unlock()
		m.PollDiscardedTotal.WithLabelValues(p.source).Inc()
		p.logger.Debug("discarding response of stopped poller")
		return
	}

	if err != nil {
		now := p.clock.Now()
		p.status.LastFailure = now
		p.status.LastError = err.Error()
		p.status.ConsecutiveFailures++
		p.mu.Unlock()

		kind := errors.Kind(err)
		m.PollCyclesTotal.WithLabelValues(p.source, "failure").Inc()
		m.PollFailuresTotal.WithLabelValues(p.source, kind).Inc()
		p.logger.Warn("poll cycle failed",
			"kind", kind,
			"transient", errors.IsTransient(err),
			"error", err.Error())

		if p.onFailure != nil {
			p.onFailure(err)
		}
		return
	}

	// Store under mu so Stop cannot return between the check above and the swap.
	p.cell.Store(value)
	now := p.clock.Now()
	p.status.LastSuccess = now
	p.status.LastError = ""
	p.status.ConsecutiveFailures = 0
	p.mu.Unlock()

	m.PollCyclesTotal.WithLabelValues(p.source, "success").Inc()
	m.PollLastSuccessTimestamp.WithLabelValues(p.source).Set(float64(now.Unix()))
	p.logger.Debug("snapshot applied")

	if p.onApply != nil {
		p.onApply(value)
	}
}
