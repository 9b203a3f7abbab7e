package pipeline

import (
	"sort"
	"sync"
	"time"

	"github.com/autoreel/autoreel/internal/types"
)

// StageOutcome records one global stage's result in the final report.
type StageOutcome struct {
	Stage    string        `json:"stage"`
	Error    string        `json:"error,omitempty"`
	Attempts int           `json:"attempts"`
	Elapsed  time.Duration `json:"elapsed"`
}

// HighlightFailure records a highlight whose sub-pipeline failed permanently.
type HighlightFailure struct {
	HighlightID string        `json:"highlight_id"`
	Title       string        `json:"title"`
	Start       time.Duration `json:"start"`
	End         time.Duration `json:"end"`
	Stage       string        `json:"stage"`
	Error       string        `json:"error"`
}

// Report is the run's full outcome, returned to the caller on both
// Completed and Aborted terminal states.
type Report struct {
	RunID    string             `json:"run_id"`
	Input    string             `json:"input"`
	OutDir   string             `json:"out_dir,omitempty"`
	State    State              `json:"state"`
	Stages   []StageOutcome     `json:"stages"`
	Reels    []types.Reel       `json:"reels"`
	Failures []HighlightFailure `json:"failures,omitempty"`
	Elapsed  time.Duration      `json:"elapsed"`
}

// Collector is the single append-only sink for stage and highlight
// outcomes. Safe for concurrent use by clip workers.
type Collector struct {
	mu       sync.Mutex
	stages   []StageOutcome
	reels    []types.Reel
	failures []HighlightFailure
}

func NewCollector() *Collector { return &Collector{} }

func (c *Collector) StageDone(stage string, attempts int, elapsed time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stages = append(c.stages, StageOutcome{Stage: stage, Attempts: attempts, Elapsed: elapsed})
}

func (c *Collector) StageFailed(stage string, err error, attempts int, elapsed time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stages = append(c.stages, StageOutcome{Stage: stage, Error: err.Error(), Attempts: attempts, Elapsed: elapsed})
}

func (c *Collector) AddReel(reel types.Reel) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reels = append(c.reels, reel)
}

func (c *Collector) HighlightFailed(hl types.SelectedHighlight, stage string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures = append(c.failures, HighlightFailure{
		HighlightID: hl.ID,
		Title:       hl.Title,
		Start:       hl.Start,
		End:         hl.End,
		Stage:       stage,
		Error:       err.Error(),
	})
}

// Report assembles the final report. Reels are ordered by rank ascending
// (highest virality first), then by platform for a stable fan-out order.
func (c *Collector) Report(runID, input, outDir string, state State, elapsed time.Duration) Report {
	c.mu.Lock()
	defer c.mu.Unlock()

	reels := make([]types.Reel, len(c.reels))
	copy(reels, c.reels)
	sort.SliceStable(reels, func(i, j int) bool {
		if reels[i].Rank != reels[j].Rank {
			return reels[i].Rank < reels[j].Rank
		}
		return reels[i].Platform < reels[j].Platform
	})

	failures := make([]HighlightFailure, len(c.failures))
	copy(failures, c.failures)
	sort.SliceStable(failures, func(i, j int) bool {
		return failures[i].Start < failures[j].Start
	})

	stages := make([]StageOutcome, len(c.stages))
	copy(stages, c.stages)

	return Report{
		RunID:    runID,
		Input:    input,
		OutDir:   outDir,
		State:    state,
		Stages:   stages,
		Reels:    reels,
		Failures: failures,
		Elapsed:  elapsed,
	}
}
