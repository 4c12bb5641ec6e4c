// Package pattern classifies the relationship between the two feeds from a
// run-length analysis of recent outcomes plus the lifetime win tallies.
// Classification is a pure reporting-time computation with no state of its
// own — everything it needs arrives as arguments.
package pattern

import "fmt"

const (
	// runWindow is how many of the most recent outcomes the run-length scan
	// considers.
	runWindow = 30

	// runThreshold is the consecutive-win run length that counts as a
	// sustained advantage.
	runThreshold = 5

	// balancedSlack is the lifetime win-count gap, as a fraction of total
	// pairs, under which the feeds are considered to alternate leadership.
	balancedSlack = 0.2
)

// Kind names one classification bucket.
type Kind string

const (
	// Insufficient means no pair has completed yet.
	Insufficient Kind = "insufficient_data"
	// Streak means one feed shows a sustained consecutive advantage.
	Streak Kind = "streak"
	// Alternating means leadership flips with no fixed pattern.
	Alternating Kind = "alternating"
	// Dominant means one feed is overall faster despite some alternation.
	Dominant Kind = "dominant"
)

// Result is one classification of the recent outcome window.
type Result struct {
	Kind Kind `json:"kind"`

	// Leader is the winning source tag ("A" or "B") for Streak and
	// Dominant results; empty otherwise.
	Leader string `json:"leader,omitempty"`

	// LongestRunA/B are the longest consecutive win runs inside the scan
	// window.
	LongestRunA int `json:"longest_run_a"`
	LongestRunB int `json:"longest_run_b"`

	// WinPct is the leader's lifetime win percentage for Dominant results.
	WinPct float64 `json:"win_pct,omitempty"`

	Summary string `json:"summary"`
}

// Classify evaluates the policy in priority order: sustained run, then
// balanced alternation over the lifetime tallies, then overall dominance.
// outcomes is the recent winner sequence as a tag string ("ABAB…", oldest
// first); winsA and winsB are the lifetime counters, which are independent
// of the bounded outcome window.
func Classify(outcomes string, winsA, winsB uint64) Result {
	total := winsA + winsB
	if total == 0 {
		return Result{Kind: Insufficient, Summary: "insufficient data: no completed pairs yet"}
	}

	if len(outcomes) > runWindow {
		outcomes = outcomes[len(outcomes)-runWindow:]
	}
	runA, runB := longestRuns(outcomes)
	res := Result{LongestRunA: runA, LongestRunB: runB}

	if runA >= runThreshold || runB >= runThreshold {
		res.Kind = Streak
		res.Leader = "A"
		run := runA
		if runB > runA || (runB == runA && winsB > winsA) {
			res.Leader = "B"
			run = runB
		}
		res.Summary = fmt.Sprintf("feed %s shows a sustained consecutive advantage (run of %d)", res.Leader, run)
		return res
	}

	gap := winsA - winsB
	if winsB > winsA {
		gap = winsB - winsA
	}
	if float64(gap) <= balancedSlack*float64(total) {
		res.Kind = Alternating
		res.Summary = "feeds alternate leadership with no fixed pattern"
		return res
	}

	res.Kind = Dominant
	res.Leader = "A"
	leadWins := winsA
	if winsB > winsA {
		res.Leader = "B"
		leadWins = winsB
	}
	res.WinPct = float64(leadWins) / float64(total) * 100
	res.Summary = fmt.Sprintf("feed %s is overall faster despite some alternation (%.1f%% of pairs)", res.Leader, res.WinPct)
	return res
}

// longestRuns scans the outcome tags once, tracking the current consecutive
// run per source and resetting the opposing run whenever leadership flips.
func longestRuns(outcomes string) (maxA, maxB int) {
	curA, curB := 0, 0
	for i := 0; i < len(outcomes); i++ {
		switch outcomes[i] {
		case 'A':
			curA++
			curB = 0
			if curA > maxA {
				maxA = curA
			}
		case 'B':
			curB++
			curA = 0
			if curB > maxB {
				maxB = curB
			}
		}
	}
	return maxA, maxB
}
