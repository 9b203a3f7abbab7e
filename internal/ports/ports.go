// Package ports defines the collaborator contracts the orchestration core
// depends on. Implementations live under ports/adapters.
package ports

import (
	"context"
	"time"

	"github.com/autoreel/autoreel/internal/types"
)

// VideoSource ingests a local path or remote URL into a SourceVideo handle.
type VideoSource interface {
	Load(ctx context.Context, uriOrPath, workDir string) (types.SourceVideo, error)
}

// AudioExtractor derives the transcription audio track, optionally sped up
// to reduce transcription compute.
type AudioExtractor interface {
	Extract(ctx context.Context, video types.SourceVideo, speedFactor float64, outPath string) (types.AudioTrack, error)
}

// Transcriber converts an audio track into a timed transcript. Timestamps
// are in audio-track time; the orchestrator rescales them back to
// original-speed time when the track was sped up.
type Transcriber interface {
	Transcribe(ctx context.Context, audio types.AudioTrack) (types.Transcript, error)
}

// HighlightDetector proposes scored candidate moments. Candidates may
// overlap and may violate duration bounds; the selector enforces both.
type HighlightDetector interface {
	Detect(ctx context.Context, tr types.Transcript, maxHighlights int, minClip, maxClip time.Duration) ([]types.Candidate, error)
}

// ClipExtractor cuts one highlight out of the source video.
type ClipExtractor interface {
	Cut(ctx context.Context, video types.SourceVideo, start, end time.Duration, outPath string) (types.Clip, error)
}

// SubtitleGenerator builds a subtitle track from transcript segments already
// re-based to clip-local time (clip start = 0).
type SubtitleGenerator interface {
	Generate(segments []types.Segment) (types.SubtitleTrack, error)
}

// SubtitleBurner renders a subtitle file into the clip's video stream.
type SubtitleBurner interface {
	Burn(ctx context.Context, clip types.Clip, subtitlePath, outPath string) (types.Clip, error)
}

// PlatformExporter formats a clip to one platform's spec.
type PlatformExporter interface {
	Export(ctx context.Context, clip types.Clip, platform types.Platform, outPath string) (types.Reel, error)
}
