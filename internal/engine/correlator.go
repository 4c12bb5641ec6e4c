package engine

import (
	"time"

	"github.com/fangwater/feedrace/internal/pattern"
)

// Capacity bounds for the self-trimming history structures.
const (
	windowSize  = 100 // most recent arrivals retained per source
	historySize = 100 // most recent completed records
	outcomeSize = 50  // most recent winner tags
	recentDiffs = 10  // diff samples included in a snapshot
)

// Source identifies one of the two feeds under comparison.
type Source int

const (
	SourceA Source = iota
	SourceB
)

// String returns the single-letter tag used in outcome sequences and logs.
func (s Source) String() string {
	if s == SourceA {
		return "A"
	}
	return "B"
}

// Other returns the opposing source.
func (s Source) Other() Source {
	if s == SourceA {
		return SourceB
	}
	return SourceA
}

// Event is one normalized feed arrival: a shared update identifier, the
// local receive time, and which feed delivered it. Events are ephemeral —
// the correlator records their fields and discards them.
type Event struct {
	Key    int64
	At     time.Time
	Source Source
}

// Record tracks the two arrivals for one correlation key. A record is
// created pending on the first arrival and completes when the other source
// reports the same key. At most one pending-to-complete transition happens
// per key; later arrivals for the key are ignored.
type Record struct {
	Key          int64
	FirstSource  Source
	FirstAt      time.Time
	SecondSource Source
	SecondAt     time.Time
	Diff         time.Duration
	complete     bool
}

// arrival is one per-source window entry, kept in arrival order.
type arrival struct {
	key int64
	at  time.Time
}

// Correlator is the keyed matching engine. It is deliberately lock-free and
// not safe for concurrent use: Engine serializes all access through its
// owning goroutine, and tests drive it directly with scripted sequences.
//
// Lookup goes through the key index; the bounded rings exist only to define
// eviction order. A completed key leaves the index when its record falls out
// of the completed-history ring, so index size stays bounded by the pending
// set plus historySize.
type Correlator struct {
	index    map[int64]*Record
	windows  [2]*ring[arrival]
	history  *ring[*Record]
	outcomes *ring[Source]

	// Lifetime counters — monotonic, never trimmed.
	arrivals    [2]uint64
	wins        [2]uint64
	completions uint64
	windowHits  uint64
}

// NewCorrelator returns an empty correlator with all counters at zero.
func NewCorrelator() *Correlator {
	return &Correlator{
		index:    make(map[int64]*Record),
		windows:  [2]*ring[arrival]{newRing[arrival](windowSize), newRing[arrival](windowSize)},
		history:  newRing[*Record](historySize),
		outcomes: newRing[Source](outcomeSize),
	}
}

// Ingest records one arrival. When the arrival completes a pair it returns
// the completed record and true; otherwise the zero Record and false.
//
// Duplicate arrivals — same source re-reporting a pending key, or any
// arrival for an already-complete key — are counted as arrivals but change
// no correlation state.
func (c *Correlator) Ingest(ev Event) (Record, bool) {
	c.arrivals[ev.Source]++

	// Informational only: has the opposite feed already shown this key in
	// its recent window? Never drives matching — the index does that.
	if c.windowHas(ev.Source.Other(), ev.Key) {
		c.windowHits++
	}
	c.windows[ev.Source].push(arrival{key: ev.Key, at: ev.At})

	rec, ok := c.index[ev.Key]
	if !ok {
		c.index[ev.Key] = &Record{Key: ev.Key, FirstSource: ev.Source, FirstAt: ev.At}
		return Record{}, false
	}
	if rec.complete || rec.FirstSource == ev.Source {
		return Record{}, false
	}

	rec.SecondSource = ev.Source
	rec.SecondAt = ev.At
	diff := ev.At.Sub(rec.FirstAt)
	if diff < 0 {
		// Timestamps are stamped on separate reader goroutines, so the
		// second-processed arrival can carry the earlier clock read.
		diff = 0
	}
	rec.Diff = diff
	rec.complete = true

	c.completions++
	c.wins[rec.FirstSource]++
	c.outcomes.push(rec.FirstSource)
	if evicted, ok := c.history.push(rec); ok {
		delete(c.index, evicted.Key)
	}
	return *rec, true
}

// EvictPending drops pending entries whose first arrival is older than
// cutoff and returns how many were removed. Completed entries are never
// touched — their lifetime is governed by the history ring.
func (c *Correlator) EvictPending(cutoff time.Time) int {
	removed := 0
	for key, rec := range c.index {
		if !rec.complete && rec.FirstAt.Before(cutoff) {
			delete(c.index, key)
			removed++
		}
	}
	return removed
}

// Pending returns the number of keys seen on exactly one feed so far.
func (c *Correlator) Pending() int {
	return len(c.index) - c.history.len()
}

func (c *Correlator) windowHas(s Source, key int64) bool {
	w := c.windows[s]
	for i := 0; i < w.len(); i++ {
		if w.at(i).key == key {
			return true
		}
	}
	return false
}

// SourceStats is the per-feed slice of a Snapshot.
type SourceStats struct {
	Arrivals uint64  `json:"arrivals"`
	Wins     uint64  `json:"wins"`
	WinPct   float64 `json:"win_pct"`
}

// Snapshot is a consistent point-in-time view of the correlator, safe to
// retain after the correlator has moved on.
type Snapshot struct {
	A SourceStats `json:"a"`
	B SourceStats `json:"b"`

	Completed     uint64 `json:"completed"`
	Pending       int    `json:"pending"`
	WindowMatches uint64 `json:"window_matches"`

	// Diff aggregates over the completed-history window, in milliseconds.
	// Zero-valued when no pair has completed yet.
	AvgDiffMs float64 `json:"avg_diff_ms"`
	MinDiffMs float64 `json:"min_diff_ms"`
	MaxDiffMs float64 `json:"max_diff_ms"`

	// RecentDiffsMs holds the most recent completed diffs, oldest first.
	RecentDiffsMs []float64 `json:"recent_diffs_ms"`

	// Outcomes is the recent winner sequence rendered as a tag string,
	// oldest first, e.g. "AABAB".
	Outcomes string `json:"outcomes"`

	Pattern pattern.Result `json:"pattern"`

	GeneratedAt time.Time `json:"generated_at"`
}

// Snapshot derives the current statistics view. It is well-defined on a
// fresh correlator: all counts zero and an insufficient-data classification.
func (c *Correlator) Snapshot(now time.Time) Snapshot {
	snap := Snapshot{
		A:             c.sourceStats(SourceA),
		B:             c.sourceStats(SourceB),
		Completed:     c.completions,
		Pending:       c.Pending(),
		WindowMatches: c.windowHits,
		GeneratedAt:   now,
	}

	if n := c.history.len(); n > 0 {
		var sum time.Duration
		min, max := c.history.at(0).Diff, c.history.at(0).Diff
		for i := 0; i < n; i++ {
			d := c.history.at(i).Diff
			sum += d
			if d < min {
				min = d
			}
			if d > max {
				max = d
			}
		}
		snap.AvgDiffMs = toMs(sum) / float64(n)
		snap.MinDiffMs = toMs(min)
		snap.MaxDiffMs = toMs(max)

		start := n - recentDiffs
		if start < 0 {
			start = 0
		}
		snap.RecentDiffsMs = make([]float64, 0, n-start)
		for i := start; i < n; i++ {
			snap.RecentDiffsMs = append(snap.RecentDiffsMs, toMs(c.history.at(i).Diff))
		}
	}

	tags := make([]byte, c.outcomes.len())
	for i := range tags {
		tags[i] = c.outcomes.at(i).String()[0]
	}
	snap.Outcomes = string(tags)
	snap.Pattern = pattern.Classify(snap.Outcomes, c.wins[SourceA], c.wins[SourceB])
	return snap
}

func (c *Correlator) sourceStats(s Source) SourceStats {
	st := SourceStats{Arrivals: c.arrivals[s], Wins: c.wins[s]}
	if c.completions > 0 {
		st.WinPct = float64(st.Wins) / float64(c.completions) * 100
	}
	return st
}

func toMs(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
