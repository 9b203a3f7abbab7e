package openaidetect

import (
	"testing"
	"time"

	"github.com/autoreel/autoreel/internal/stagerun"
)

func TestParseCandidates(t *testing.T) {
	content := "Here you go:\n```json\n" +
		`{"highlights": [
			{"start_sec": 12.5, "end_sec": 48, "title": "The big reveal", "reason": "payoff", "score": 8.5},
			{"start_sec": 100, "end_sec": 140, "title": "", "reason": "", "score": 6}
		]}` + "\n```"
	cands, err := ParseCandidates(content)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(cands) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(cands))
	}
	if cands[0].Start != 12500*time.Millisecond || cands[0].End != 48*time.Second {
		t.Fatalf("unexpected timing: %+v", cands[0])
	}
	if cands[0].Score != 8.5 || cands[0].Title != "The big reveal" {
		t.Fatalf("unexpected metadata: %+v", cands[0])
	}
	if cands[1].Title != "Highlight" {
		t.Fatalf("empty title should default, got %q", cands[1].Title)
	}
}

func TestParseCandidates_Malformed(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{"no json", "sorry, I cannot help with that"},
		{"broken json", `{"highlights": [{"start_sec": }`},
		{"empty list", `{"highlights": []}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseCandidates(tc.content)
			if err == nil {
				t.Fatal("expected error")
			}
			if !stagerun.IsKind(err, stagerun.KindMalformedResponse) {
				t.Fatalf("expected malformed_response kind, got %v", stagerun.Classify(err))
			}
		})
	}
}
