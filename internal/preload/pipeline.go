// Package preload decodes bitmaps ahead of need on a single background
// worker with bounded decode concurrency.
package preload

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sourcegraph/conc"
	"golang.org/x/sync/semaphore"

	"github.com/javi11/altview/internal/bitmap"
	"github.com/javi11/altview/internal/slogutil"
)

const (
	DefaultPermits       = 3
	DefaultIdleInterval  = 50 * time.Millisecond
	DefaultNonVisibleCap = 10
)

// ErrStopped is returned when starting a pipeline that has been stopped.
var ErrStopped = errors.New("preload pipeline stopped")

// State is the pipeline lifecycle state.
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateDraining
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Fetcher decodes, normalizes and caches the bitmap for a key.
type Fetcher interface {
	Load(ctx context.Context, key bitmap.Key) (*bitmap.Bitmap, bool)
}

// Cached reports whether a key is already held by the cache.
type Cached interface {
	Contains(key bitmap.Key) bool
}

// Config holds the pipeline tunables.
type Config struct {
	Permits      int
	IdleInterval time.Duration
	// NonVisibleCap bounds the queued non visible requests kept by
	// LoadVisible. Zero keeps none; negative selects the default.
	NonVisibleCap int
}

// Stats counts processed requests.
type Stats struct {
	Loaded    uint64
	Failed    uint64
	Discarded uint64
	Pending   int
	InFlight  int
	State     State
}

// Pipeline owns the preload queue and its worker.
type Pipeline struct {
	cfg     Config
	queue   *Queue
	fetcher Fetcher
	cached  Cached
	permits *semaphore.Weighted
	log     *slog.Logger

	state     atomic.Int32
	dequeuing atomic.Bool

	mu       sync.Mutex
	inFlight map[bitmap.Key]struct{}
	cancel   context.CancelFunc
	done     chan struct{}
	drained  chan struct{}
	work     conc.WaitGroup

	loaded    atomic.Uint64
	failed    atomic.Uint64
	discarded atomic.Uint64
}

// New creates an idle pipeline.
func New(cfg Config, fetcher Fetcher, cached Cached) *Pipeline {
	if cfg.Permits <= 0 {
		cfg.Permits = DefaultPermits
	}
	if cfg.IdleInterval <= 0 {
		cfg.IdleInterval = DefaultIdleInterval
	}
	if cfg.NonVisibleCap < 0 {
		cfg.NonVisibleCap = DefaultNonVisibleCap
	}

	return &Pipeline{
		cfg:      cfg,
		queue:    NewQueue(),
		fetcher:  fetcher,
		cached:   cached,
		permits:  semaphore.NewWeighted(int64(cfg.Permits)),
		log:      slog.Default().With("component", "preload"),
		inFlight: make(map[bitmap.Key]struct{}),
	}
}

// State returns the lifecycle state.
func (p *Pipeline) State() State {
	return State(p.state.Load())
}

// Start launches the worker. Starting a running pipeline is a no-op.
func (p *Pipeline) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch p.State() {
	case StateRunning:
		return nil
	case StateDraining, StateStopped:
		return ErrStopped
	}

	// The worker outlives ctx but keeps its values (log attributes).
	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	p.cancel = cancel
	p.done = make(chan struct{})
	p.state.Store(int32(StateRunning))

	go p.run(loopCtx)

	p.log.InfoContext(ctx, "Preload pipeline started",
		"permits", p.cfg.Permits,
		"idle_interval", p.cfg.IdleInterval,
		"non_visible_cap", p.cfg.NonVisibleCap)

	return nil
}

// Stop cancels the worker and waits for in flight decodes to finish. The
// worker exits promptly even while sleeping or waiting for a permit. If ctx
// ends first the pipeline still reaches StateStopped once the decodes
// finish; a later Stop waits for that.
func (p *Pipeline) Stop(ctx context.Context) error {
	p.mu.Lock()
	switch p.State() {
	case StateStopped:
		p.mu.Unlock()
		return nil
	case StateIdle:
		p.state.Store(int32(StateStopped))
		p.mu.Unlock()
		p.queue.Clear()
		return nil
	case StateDraining:
		drained := p.drained
		p.mu.Unlock()
		return p.waitDrained(ctx, drained)
	}

	p.log.InfoContext(ctx, "Stopping preload pipeline", "pending", p.queue.Len(), "in_flight", len(p.inFlight))

	p.state.Store(int32(StateDraining))
	p.cancel()
	loopDone := p.done
	drained := make(chan struct{})
	p.drained = drained
	p.mu.Unlock()

	go func() {
		<-loopDone
		p.work.Wait()

		dropped := p.queue.Clear()
		p.state.Store(int32(StateStopped))
		p.log.Info("Preload pipeline stopped", "dropped", dropped)
		close(drained)
	}()

	return p.waitDrained(ctx, drained)
}

func (p *Pipeline) waitDrained(ctx context.Context, drained <-chan struct{}) error {
	select {
	case <-drained:
		return nil
	case <-ctx.Done():
		p.log.WarnContext(ctx, "Context cancelled while waiting for in flight decodes")
		return ctx.Err()
	}
}

// Enqueue requests a background load of key. Requests for keys already
// cached or in flight are dropped, as are requests after Stop.
func (p *Pipeline) Enqueue(key bitmap.Key, priority bitmap.Priority) bool {
	if s := p.State(); s == StateDraining || s == StateStopped {
		return false
	}
	if p.isDuplicate(key) {
		p.discarded.Add(1)
		return false
	}
	return p.queue.Push(bitmap.Request{Key: key, Priority: priority})
}

// LoadVisible moves the visible identities ahead of everything else and
// caps the other queued requests.
func (p *Pipeline) LoadVisible(kind bitmap.Kind, ids ...bitmap.Identity) {
	if s := p.State(); s == StateDraining || s == StateStopped {
		return
	}

	keys := make([]bitmap.Key, 0, len(ids))
	for _, id := range ids {
		key := bitmap.Key{ID: id, Kind: kind}
		if p.isDuplicate(key) {
			continue
		}
		keys = append(keys, key)
	}

	if dropped := p.queue.PrioritizeVisible(keys, p.cfg.NonVisibleCap); dropped > 0 {
		p.discarded.Add(uint64(dropped))
		p.log.Debug("Dropped non visible preload requests", "dropped", dropped, "visible", len(keys))
	}
}

// ClearQueue drops every queued request. In flight decodes continue.
func (p *Pipeline) ClearQueue() int {
	return p.queue.Clear()
}

// Pending returns the queued requests in dequeue order.
func (p *Pipeline) Pending() []bitmap.Request {
	return p.queue.Snapshot()
}

// InFlight returns the number of claimed requests, waiting for a permit or
// decoding.
func (p *Pipeline) InFlight() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.inFlight)
}

// Stats returns counters and the current load.
func (p *Pipeline) Stats() Stats {
	return Stats{
		Loaded:    p.loaded.Load(),
		Failed:    p.failed.Load(),
		Discarded: p.discarded.Load(),
		Pending:   p.queue.Len(),
		InFlight:  p.InFlight(),
		State:     p.State(),
	}
}

// WaitIdle blocks until nothing is queued or in flight.
func (p *Pipeline) WaitIdle(ctx context.Context) error {
	ticker := time.NewTicker(p.cfg.IdleInterval)
	defer ticker.Stop()

	for {
		if p.queue.Len() == 0 && !p.dequeuing.Load() && p.InFlight() == 0 {
			return nil
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (p *Pipeline) run(ctx context.Context) {
	defer close(p.done)

	idle := time.NewTimer(p.cfg.IdleInterval)
	defer idle.Stop()

	for {
		if ctx.Err() != nil {
			return
		}

		p.dequeuing.Store(true)
		req, ok := p.queue.Pop()
		if !ok {
			p.dequeuing.Store(false)
			idle.Reset(p.cfg.IdleInterval)
			select {
			case <-ctx.Done():
				return
			case <-p.queue.Notify():
			case <-idle.C:
			}
			continue
		}

		claimed := p.claim(req.Key)
		p.dequeuing.Store(false)
		if !claimed {
			p.discarded.Add(1)
			continue
		}

		if err := p.permits.Acquire(ctx, 1); err != nil {
			p.release(req.Key)
			return
		}

		p.work.Go(func() {
			defer p.permits.Release(1)
			defer p.release(req.Key)
			p.fetch(ctx, req)
		})
	}
}

func (p *Pipeline) fetch(ctx context.Context, req bitmap.Request) {
	// In flight decodes finish even when the pipeline stops.
	ctx = slogutil.With(context.WithoutCancel(ctx), "preload_key", req.Key.String())

	start := time.Now()
	if _, ok := p.fetcher.Load(ctx, req.Key); !ok {
		p.failed.Add(1)
		p.log.DebugContext(ctx, "Preload failed", "priority", req.Priority)
		return
	}

	p.loaded.Add(1)
	p.log.DebugContext(ctx, "Preloaded bitmap",
		"priority", req.Priority,
		"duration", time.Since(start))
}

func (p *Pipeline) isDuplicate(key bitmap.Key) bool {
	p.mu.Lock()
	_, inFlight := p.inFlight[key]
	p.mu.Unlock()

	return inFlight || p.cached.Contains(key)
}

// claim marks key in flight unless it already is or is cached.
func (p *Pipeline) claim(key bitmap.Key) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.inFlight[key]; ok {
		return false
	}
	if p.cached.Contains(key) {
		return false
	}
	p.inFlight[key] = struct{}{}
	return true
}

func (p *Pipeline) release(key bitmap.Key) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.inFlight, key)
}
