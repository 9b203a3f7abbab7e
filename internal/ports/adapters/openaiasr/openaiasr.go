// Package openaiasr transcribes audio through the OpenAI speech-to-text API.
package openaiasr

import (
	"context"
	"errors"
	"math"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/autoreel/autoreel/internal/stagerun"
	"github.com/autoreel/autoreel/internal/types"
)

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
		model = "whisper-1"
	}
	return &Adapter{cli: openai.NewClientWithConfig(cfg), model: model}
}

func (a *Adapter) Transcribe(ctx context.Context, audio types.AudioTrack) (types.Transcript, error) {
	resp, err := a.cli.CreateTranscription(ctx, openai.AudioRequest{
		Model:    a.model,
		FilePath: audio.Path,
		Format:   openai.AudioResponseFormatVerboseJSON,
		TimestampGranularities: []openai.TranscriptionTimestampGranularity{
			openai.TranscriptionTimestampGranularitySegment,
		},
	})
	if err != nil {
		return types.Transcript{}, classify(err)
	}

	tr := types.Transcript{Language: resp.Language}
	for _, seg := range resp.Segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		tr.Segments = append(tr.Segments, types.Segment{
			Start:      seg.Start,
			End:        seg.End,
			Text:       text,
			Confidence: confidence(seg.AvgLogprob),
		})
	}
	if len(tr.Segments) == 0 {
		return types.Transcript{}, stagerun.Wrapf(stagerun.KindModelError, "openai transcribe", "empty transcription result")
	}
	return tr, nil
}

// confidence maps the segment's average log-probability onto (0, 1].
func confidence(avgLogprob float64) float64 {
	c := math.Exp(avgLogprob)
	if c > 1 {
		c = 1
	}
	return c
}

func classify(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.HTTPStatusCode == 429:
			return stagerun.Wrap(stagerun.KindRateLimit, "openai transcribe", err)
		case apiErr.HTTPStatusCode >= 500:
			return stagerun.Wrap(stagerun.KindModelError, "openai transcribe", err)
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return stagerun.Wrap(stagerun.KindTimeout, "openai transcribe", err)
	}
	return stagerun.Wrap(stagerun.KindModelError, "openai transcribe", err)
}
