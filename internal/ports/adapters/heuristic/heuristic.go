// Package heuristic is an offline HighlightDetector that scores transcript
// windows with lexical signals. It keeps the pipeline functional without an
// LLM and gives tests a deterministic detector.
package heuristic

import (
	"context"
	"strings"
	"time"

	"github.com/autoreel/autoreel/internal/types"
)

// candidateCap keeps runtime predictable on long transcripts.
const candidateCap = 300

type Detector struct{}

func New() Detector { return Detector{} }

// Detect builds progressively longer windows from consecutive segments and
// scores each window. Windows may overlap; the selector resolves conflicts.
func (Detector) Detect(_ context.Context, tr types.Transcript, maxHighlights int, minClip, maxClip time.Duration) ([]types.Candidate, error) {
	if maxHighlights <= 0 || maxClip <= 0 || maxClip < minClip {
		return nil, nil
	}
	segs := tr.Segments
	if len(segs) == 0 {
		return nil, nil
	}

	var out []types.Candidate
	for i := 0; i < len(segs); i++ {
		start := dur(segs[i].Start)
		var parts []string
		for j := i; j < len(segs); j++ {
			end := dur(segs[j].End)
			win := end - start
			if win > maxClip {
				break
			}
			if text := strings.TrimSpace(segs[j].Text); text != "" {
				parts = append(parts, text)
			}
			if win < minClip {
				continue
			}
			text := strings.Join(parts, " ")
			if text == "" {
				continue
			}
			out = append(out, types.Candidate{
				Start:     start,
				End:       end,
				Score:     Score(text),
				Title:     titleFor(text),
				Rationale: "lexical hook/info signals",
				Text:      text,
			})
			if len(out) >= candidateCap {
				return out, nil
			}
		}
	}
	return out, nil
}

func titleFor(text string) string {
	words := strings.Fields(text)
	if len(words) > 6 {
		words = words[:6]
	}
	t := strings.Join(words, " ")
	if t == "" {
		return "Highlight"
	}
	return t
}

func dur(sec float64) time.Duration { return time.Duration(sec * float64(time.Second)) }
