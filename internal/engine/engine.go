package engine

import (
	"context"
	"log/slog"
	"time"
)

const defaultEventBuffer = 1024

// Options configures an Engine.
type Options struct {
	// PendingTTL drops pending entries whose first arrival is older than
	// this age. Zero disables the sweep and keeps pendings forever.
	PendingTTL time.Duration

	// EventBuffer is the capacity of the inbound event queue shared by the
	// feed readers. Defaults to 1024.
	EventBuffer int

	// OnComplete, when non-nil, is invoked from the engine goroutine for
	// every completed pair. It must not block.
	OnComplete func(Record)
}

// Engine owns a Correlator behind a single goroutine. Both feed readers
// funnel arrivals through Ingest; Snapshot requests pass through the same
// loop, so every read observes a consistent state with no locking.
type Engine struct {
	corr       *Correlator
	events     chan Event
	snaps      chan chan Snapshot
	pendingTTL time.Duration
	onComplete func(Record)
	now        func() time.Time // injectable for deterministic tests
}

// New returns an Engine ready to Run.
func New(opts Options) *Engine {
	buf := opts.EventBuffer
	if buf <= 0 {
		buf = defaultEventBuffer
	}
	return &Engine{
		corr:       NewCorrelator(),
		events:     make(chan Event, buf),
		snaps:      make(chan chan Snapshot),
		pendingTTL: opts.PendingTTL,
		onComplete: opts.OnComplete,
		now:        time.Now,
	}
}

// Ingest queues one arrival for processing. It blocks only when the event
// buffer is full, and returns early if ctx is cancelled.
func (e *Engine) Ingest(ctx context.Context, ev Event) error {
	select {
	case e.events <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Snapshot returns a consistent point-in-time statistics view. It remains
// answerable after the feeds have stopped ingesting, as long as Run is
// still alive — the final shutdown report depends on that.
func (e *Engine) Snapshot(ctx context.Context) (Snapshot, error) {
	reply := make(chan Snapshot, 1)
	select {
	case e.snaps <- reply:
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	}
	select {
	case snap := <-reply:
		return snap, nil
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	}
}

// Run processes events and snapshot requests one at a time until ctx is
// cancelled. When a pending TTL is configured, stale pendings are swept on
// a ticker at half the TTL.
func (e *Engine) Run(ctx context.Context) {
	var sweep <-chan time.Time
	if e.pendingTTL > 0 {
		interval := e.pendingTTL / 2
		if interval < time.Second {
			interval = time.Second
		}
		t := time.NewTicker(interval)
		defer t.Stop()
		sweep = t.C
	}

	for {
		select {
		case <-ctx.Done():
			slog.Info("engine: stopped", "completed", e.corr.completions)
			return

		case ev := <-e.events:
			e.handle(ev)

		case reply := <-e.snaps:
			// Drain events queued ahead of the request first, so a caller
			// that has finished ingesting sees all of its own arrivals.
			e.drain()
			reply <- e.corr.Snapshot(e.now())

		case now := <-sweep:
			if n := e.corr.EvictPending(now.Add(-e.pendingTTL)); n > 0 {
				slog.Warn("engine: evicted stale pending entries",
					"count", n, "ttl", e.pendingTTL)
			}
		}
	}
}

func (e *Engine) handle(ev Event) {
	rec, ok := e.corr.Ingest(ev)
	if !ok {
		return
	}
	slog.Debug("engine: pair completed",
		"key", rec.Key,
		"winner", rec.FirstSource.String(),
		"diff_ms", toMs(rec.Diff),
	)
	if e.onComplete != nil {
		e.onComplete(rec)
	}
}

func (e *Engine) drain() {
	for {
		select {
		case ev := <-e.events:
			e.handle(ev)
		default:
			return
		}
	}
}
