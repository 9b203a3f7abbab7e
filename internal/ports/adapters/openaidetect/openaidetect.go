// Package openaidetect proposes highlight candidates by asking an OpenAI
// chat model to score transcript moments.
package openaidetect

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/autoreel/autoreel/internal/stagerun"
	"github.com/autoreel/autoreel/internal/types"
)

// promptSegmentCap bounds prompt size on long transcripts.
const promptSegmentCap = 400

type Adapter struct {
	cli   *openai.Client
	model string
}

func New(apiKey, baseURL, model string) *Adapter {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &Adapter{cli: openai.NewClientWithConfig(cfg), model: model}
}

func (a *Adapter) Detect(ctx context.Context, tr types.Transcript, maxHighlights int, minClip, maxClip time.Duration) ([]types.Candidate, error) {
	if maxHighlights <= 0 || len(tr.Segments) == 0 {
		return nil, nil
	}

	prompt, err := buildPrompt(tr, maxHighlights, minClip, maxClip)
	if err != nil {
		return nil, stagerun.Wrap(stagerun.KindModelError, "openai detect", err)
	}

	resp, err := a.cli.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: a.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return nil, classify(err)
	}
	if len(resp.Choices) == 0 {
		return nil, stagerun.Wrapf(stagerun.KindMalformedResponse, "openai detect", "response has no choices")
	}

	return ParseCandidates(resp.Choices[0].Message.Content)
}

// ParseCandidates decodes the model's JSON answer. Any shape violation maps
// to the malformed-response kind so the executor can retry the call.
func ParseCandidates(content string) ([]types.Candidate, error) {
	clean, err := extractJSONObject(content)
	if err != nil {
		return nil, stagerun.Wrap(stagerun.KindMalformedResponse, "openai detect", err)
	}

	var out struct {
		Highlights []struct {
			StartSec float64 `json:"start_sec"`
			EndSec   float64 `json:"end_sec"`
			Title    string  `json:"title"`
			Reason   string  `json:"reason"`
			Score    float64 `json:"score"`
		} `json:"highlights"`
	}
	if err := json.Unmarshal([]byte(clean), &out); err != nil {
		return nil, stagerun.Wrap(stagerun.KindMalformedResponse, "openai detect", err)
	}
	if len(out.Highlights) == 0 {
		return nil, stagerun.Wrapf(stagerun.KindMalformedResponse, "openai detect", "response contains no highlights")
	}

	cands := make([]types.Candidate, 0, len(out.Highlights))
	for _, h := range out.Highlights {
		title := strings.TrimSpace(h.Title)
		if title == "" {
			title = "Highlight"
		}
		// Bounds are deliberately not validated here: the selector owns
		// duration and overlap enforcement.
		cands = append(cands, types.Candidate{
			Start:     dur(h.StartSec),
			End:       dur(h.EndSec),
			Score:     h.Score,
			Title:     title,
			Rationale: strings.TrimSpace(h.Reason),
		})
	}
	return cands, nil
}

func buildPrompt(tr types.Transcript, maxHighlights int, minClip, maxClip time.Duration) (string, error) {
	type seg struct {
		Start float64 `json:"start"`
		End   float64 `json:"end"`
		Text  string  `json:"text"`
	}
	segs := make([]seg, 0, len(tr.Segments))
	for _, s := range tr.Segments {
		segs = append(segs, seg{Start: s.Start, End: s.End, Text: s.Text})
		if len(segs) >= promptSegmentCap {
			break
		}
	}
	sb, err := json.Marshal(segs)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(
		"You are scoring a podcast transcript for short-form video highlights. "+
			"Find the most engaging, quotable, viral-worthy moments: emotional peaks, "+
			"punchy standalone statements, strong hooks, satisfying payoffs. "+
			"Return strictly valid JSON: {\"highlights\": [{\"start_sec\": number, "+
			"\"end_sec\": number, \"title\": string, \"reason\": string, \"score\": number}]}. "+
			"Score is predicted virality from 1 to 10 (higher = better). "+
			"Propose up to %d moments between %.0f and %.0f seconds long; moments may overlap, "+
			"a separate selection step resolves conflicts. Timestamps are transcript seconds."+
			"\n\nTranscript segments JSON:\n%s",
		maxHighlights*3, minClip.Seconds(), maxClip.Seconds(), string(sb),
	), nil
}

// extractJSONObject tolerates models that wrap the answer in prose or code
// fences.
func extractJSONObject(s string) (string, error) {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return "", fmt.Errorf("no JSON object in response")
	}
	return s[start : end+1], nil
}

func classify(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.HTTPStatusCode == 429:
			return stagerun.Wrap(stagerun.KindRateLimit, "openai detect", err)
		case apiErr.HTTPStatusCode >= 500:
			return stagerun.Wrap(stagerun.KindModelError, "openai detect", err)
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return stagerun.Wrap(stagerun.KindTimeout, "openai detect", err)
	}
	return stagerun.Wrap(stagerun.KindModelError, "openai detect", err)
}

func dur(sec float64) time.Duration { return time.Duration(sec * float64(time.Second)) }
