package types

import (
	"fmt"
	"time"
)

// Platform is a supported short-form video destination.
type Platform string

const (
	PlatformInstagram     Platform = "instagram"
	PlatformTikTok        Platform = "tiktok"
	PlatformYouTubeShorts Platform = "youtube_shorts"
)

// AllPlatforms lists every supported platform in a stable order.
func AllPlatforms() []Platform {
	return []Platform{PlatformInstagram, PlatformTikTok, PlatformYouTubeShorts}
}

// ParsePlatform validates a user-supplied platform name.
func ParsePlatform(s string) (Platform, error) {
	switch Platform(s) {
	case PlatformInstagram, PlatformTikTok, PlatformYouTubeShorts:
		return Platform(s), nil
	}
	return "", fmt.Errorf("unknown platform %q (supported: instagram, tiktok, youtube_shorts)", s)
}

// MaxDuration returns the platform's hard cap on clip length.
func (p Platform) MaxDuration() time.Duration {
	switch p {
	case PlatformInstagram:
		return 90 * time.Second
	case PlatformTikTok:
		return 180 * time.Second
	case PlatformYouTubeShorts:
		return 60 * time.Second
	}
	return 0
}

// SourceVideo is the immutable handle to the ingested input. Created once at
// ingest and never mutated afterwards.
type SourceVideo struct {
	ID       string
	URI      string
	Path     string
	Duration time.Duration
}

// AudioTrack is the audio artifact derived from a SourceVideo. Timestamps in
// the track run at SpeedFactor times real time when SpeedFactor != 1.
type AudioTrack struct {
	SourceVideoID string
	Path          string
	SampleRate    int
	Channels      int
	SpeedFactor   float64
}

type Transcript struct {
	Segments []Segment `json:"segments"`
	Language string    `json:"language,omitempty"`
}

type Segment struct {
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence,omitempty"`
	Words      []Word  `json:"words,omitempty"`
}

type Word struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Word  string  `json:"word"`
}

// Candidate is a scored moment proposed by a highlight detector. Candidates
// may overlap each other and may violate duration bounds; the selector owns
// enforcement.
type Candidate struct {
	Start     time.Duration
	End       time.Duration
	Score     float64
	Title     string
	Rationale string
	Text      string
}

// SelectedHighlight is a candidate chosen for final processing. Within one
// run the selected intervals are pairwise non-overlapping.
type SelectedHighlight struct {
	Candidate

	ID   string
	Rank int
}

// Clip is a cut of the source video for one selected highlight.
type Clip struct {
	HighlightID string
	Path        string
	Duration    time.Duration
}

// SubtitleCue is a single timed caption in clip-local time (clip start = 0).
// Words carries per-word timings when the transcriber produced them; an empty
// Words slice means the cue only has line-level timing.
type SubtitleCue struct {
	Start time.Duration
	End   time.Duration
	Text  string
	Words []SubtitleWord
}

// SubtitleWord is one word's timing inside a cue, used for karaoke pacing.
type SubtitleWord struct {
	Start time.Duration
	End   time.Duration
	Text  string
}

type SubtitleTrack struct {
	Cues []SubtitleCue
}

// Reel is a final exported artifact, one per platform per surviving highlight.
type Reel struct {
	HighlightID   string
	Path          string
	Duration      time.Duration
	Platform      Platform
	ViralityScore float64
	Title         string
	Rank          int
}
