// Package selection converts scored, possibly overlapping highlight
// candidates into the optimal non-overlapping subset under count and
// duration constraints.
package selection

import (
	"fmt"
	"sort"
	"time"

	"github.com/autoreel/autoreel/internal/types"
)

type Config struct {
	MaxReels    int
	MinDuration time.Duration
	MaxDuration time.Duration
}

// Rejection records a candidate dropped during preprocessing and why.
// Rejections are informational; they never fail the selection.
type Rejection struct {
	Candidate types.Candidate
	Reason    string
}

// Select picks up to cfg.MaxReels pairwise non-overlapping candidates
// maximizing total score. Candidates longer than MaxDuration are truncated
// at their original start; candidates with invalid timestamps or shorter
// than MinDuration are rejected. An empty result is a valid outcome, not an
// error. The result is deterministic for identical input.
func Select(cands []types.Candidate, cfg Config, sourceDuration time.Duration) ([]types.SelectedHighlight, []Rejection) {
	surviving, rejections := preprocess(cands, cfg, sourceDuration)
	if len(surviving) == 0 || cfg.MaxReels <= 0 {
		return nil, rejections
	}

	// Sort by end ascending; ties by score descending, then start ascending,
	// so the schedule order is deterministic.
	sort.Slice(surviving, func(i, j int) bool {
		a, b := surviving[i], surviving[j]
		if a.End != b.End {
			return a.End < b.End
		}
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		return a.Start < b.Start
	})

	chosen := schedule(surviving, cfg.MaxReels)

	// Ranks follow descending virality; equal scores rank by start ascending.
	sort.Slice(chosen, func(i, j int) bool {
		if chosen[i].Score != chosen[j].Score {
			return chosen[i].Score > chosen[j].Score
		}
		return chosen[i].Start < chosen[j].Start
	})
	out := make([]types.SelectedHighlight, len(chosen))
	for i, c := range chosen {
		out[i] = types.SelectedHighlight{Candidate: c, Rank: i}
	}
	return out, rejections
}

func preprocess(cands []types.Candidate, cfg Config, sourceDuration time.Duration) ([]types.Candidate, []Rejection) {
	var surviving []types.Candidate
	var rejections []Rejection
	for _, c := range cands {
		switch {
		case c.Start < 0 || c.Start >= c.End:
			rejections = append(rejections, Rejection{Candidate: c, Reason: "malformed interval"})
			continue
		case sourceDuration > 0 && c.End > sourceDuration:
			rejections = append(rejections, Rejection{Candidate: c, Reason: fmt.Sprintf("end beyond source duration %s", sourceDuration)})
			continue
		}
		if cfg.MaxDuration > 0 && c.End-c.Start > cfg.MaxDuration {
			c.End = c.Start + cfg.MaxDuration
		}
		if c.End-c.Start < cfg.MinDuration {
			rejections = append(rejections, Rejection{Candidate: c, Reason: fmt.Sprintf("shorter than minimum %s", cfg.MinDuration)})
			continue
		}
		surviving = append(surviving, c)
	}
	return surviving, rejections
}

// aggregate is the DP value for one (prefix, cardinality) state. Ordering:
// higher total score wins, then smaller sum of start times, then fewer clips.
type aggregate struct {
	score    float64
	startSum time.Duration
	count    int
}

func better(a, b aggregate) bool {
	if a.score != b.score {
		return a.score > b.score
	}
	if a.startSum != b.startSum {
		return a.startSum < b.startSum
	}
	return a.count < b.count
}

// schedule runs weighted interval scheduling with a cardinality cap over
// candidates sorted by end time. best[i][k] is the best aggregate using the
// first i intervals with at most k selected; interval i is either skipped or
// combined with best[pred(i)][k-1]. Touching endpoints are compatible.
func schedule(sorted []types.Candidate, maxReels int) []types.Candidate {
	n := len(sorted)
	k := maxReels
	if k > n {
		k = n
	}

	pred := make([]int, n)
	for i := range sorted {
		// Latest interval ending at or before this start. Ends are sorted, so
		// binary search over the prefix.
		lo, hi := 0, i
		for lo < hi {
			mid := (lo + hi) / 2
			if sorted[mid].End <= sorted[i].Start {
				lo = mid + 1
			} else {
				hi = mid
			}
		}
		pred[i] = lo - 1
	}

	best := make([][]aggregate, n+1)
	take := make([][]bool, n+1)
	for i := 0; i <= n; i++ {
		best[i] = make([]aggregate, k+1)
		take[i] = make([]bool, k+1)
	}

	for i := 1; i <= n; i++ {
		c := sorted[i-1]
		for j := 0; j <= k; j++ {
			skip := best[i-1][j]
			best[i][j] = skip
			if j == 0 {
				continue
			}
			prev := best[pred[i-1]+1][j-1]
			taken := aggregate{
				score:    prev.score + c.Score,
				startSum: prev.startSum + c.Start,
				count:    prev.count + 1,
			}
			if better(taken, skip) {
				best[i][j] = taken
				take[i][j] = true
			}
		}
	}

	var out []types.Candidate
	for i, j := n, k; i > 0; {
		if take[i][j] {
			out = append(out, sorted[i-1])
			j--
			i = pred[i-1] + 1
			continue
		}
		i--
	}
	return out
}
