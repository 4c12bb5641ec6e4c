// Package report renders engine statistics to the structured log: once per
// interval while running, and once more at shutdown. The engine itself has
// no timer — all cadence lives here.
package report

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/fangwater/feedrace/internal/engine"
	"github.com/fangwater/feedrace/internal/feed"
)

const snapshotTimeout = 5 * time.Second

// Reporter periodically snapshots the engine and logs one statistics line.
type Reporter struct {
	eng      *engine.Engine
	feedA    *feed.Client
	feedB    *feed.Client
	interval atomic.Int64 // nanoseconds; mutable via SetInterval (hot reload)
	changed  chan struct{}
}

// New creates a Reporter over the engine and both feed clients.
func New(eng *engine.Engine, feedA, feedB *feed.Client, interval time.Duration) *Reporter {
	r := &Reporter{
		eng:     eng,
		feedA:   feedA,
		feedB:   feedB,
		changed: make(chan struct{}, 1),
	}
	r.interval.Store(int64(interval))
	return r
}

// SetInterval applies a new reporting cadence. Safe to call while Run is
// active; the ticker is reset on the next loop iteration.
func (r *Reporter) SetInterval(d time.Duration) {
	if d <= 0 {
		return
	}
	r.interval.Store(int64(d))
	select {
	case r.changed <- struct{}{}:
	default:
	}
}

// Run emits one report per interval until ctx is cancelled.
func (r *Reporter) Run(ctx context.Context) {
	t := time.NewTicker(time.Duration(r.interval.Load()))
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.changed:
			d := time.Duration(r.interval.Load())
			t.Reset(d)
			slog.Info("report: interval updated", "interval", d)
		case <-t.C:
			r.report(ctx, false)
		}
	}
}

// Final emits the shutdown report. The engine must still be answering
// snapshot requests when this is called.
func (r *Reporter) Final(ctx context.Context) {
	r.report(ctx, true)
}

func (r *Reporter) report(ctx context.Context, final bool) {
	ctx, cancel := context.WithTimeout(ctx, snapshotTimeout)
	defer cancel()

	snap, err := r.eng.Snapshot(ctx)
	if err != nil {
		slog.Error("report: snapshot failed", "err", err)
		return
	}
	sa, sb := r.feedA.Stats(), r.feedB.Stats()

	msg := "report: statistics"
	if final {
		msg = "report: final statistics"
	}
	slog.Info(msg,
		"feed_a", sa.Name,
		"feed_b", sb.Name,
		"arrivals_a", snap.A.Arrivals,
		"arrivals_b", snap.B.Arrivals,
		"completed", snap.Completed,
		"pending", snap.Pending,
		"wins_a", snap.A.Wins,
		"wins_b", snap.B.Wins,
		"win_pct_a", snap.A.WinPct,
		"win_pct_b", snap.B.WinPct,
		"avg_diff_ms", snap.AvgDiffMs,
		"min_diff_ms", snap.MinDiffMs,
		"max_diff_ms", snap.MaxDiffMs,
		"recent_diffs_ms", snap.RecentDiffsMs,
		"outcomes", snap.Outcomes,
		"window_matches", snap.WindowMatches,
		"decode_failures_a", sa.DecodeFailures,
		"decode_failures_b", sb.DecodeFailures,
		"classification", snap.Pattern.Summary,
	)
}
