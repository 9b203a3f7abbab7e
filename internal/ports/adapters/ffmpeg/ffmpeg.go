// Package ffmpeg shells out to ffmpeg/ffprobe for audio extraction, clip
// cutting, subtitle burn-in, and platform export.
package ffmpeg

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/autoreel/autoreel/internal/stagerun"
	"github.com/autoreel/autoreel/internal/types"
)

type Adapter struct {
	ffmpeg  string
	ffprobe string
}

func New(ffmpegPath, ffprobePath string) *Adapter {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &Adapter{ffmpeg: ffmpegPath, ffprobe: ffprobePath}
}

// Extract derives a mono 16k WAV from the video. A speedFactor above 1
// applies atempo so transcription runs on shorter audio; callers rescale
// the resulting timestamps back to original-speed time.
func (a *Adapter) Extract(ctx context.Context, video types.SourceVideo, speedFactor float64, outPath string) (types.AudioTrack, error) {
	args := []string{
		"-y",
		"-i", video.Path,
		"-vn",
		"-ac", "1",
		"-ar", "16000",
	}
	if speedFactor > 1 {
		args = append(args, "-filter:a", fmt.Sprintf("atempo=%.2f", speedFactor))
	} else {
		speedFactor = 1.0
	}
	args = append(args, "-f", "wav", outPath)

	cmd := exec.CommandContext(ctx, a.ffmpeg, args...)
	if b, err := cmd.CombinedOutput(); err != nil {
		return types.AudioTrack{}, stagerun.Wrapf(stagerun.KindToolFailure, "ffmpeg extract audio", "%v\n%s", err, string(b))
	}
	return types.AudioTrack{
		SourceVideoID: video.ID,
		Path:          outPath,
		SampleRate:    16000,
		Channels:      1,
		SpeedFactor:   speedFactor,
	}, nil
}

// Cut extracts [start, end] from the source with a fast re-encode so cuts
// land on exact timestamps instead of the nearest keyframe.
func (a *Adapter) Cut(ctx context.Context, video types.SourceVideo, start, end time.Duration, outPath string) (types.Clip, error) {
	if start < 0 || end <= start || (video.Duration > 0 && end > video.Duration) {
		return types.Clip{}, stagerun.Wrapf(stagerun.KindOutOfRange, "ffmpeg cut", "bounds [%s, %s] outside source duration %s", start, end, video.Duration)
	}
	cmd := exec.CommandContext(ctx, a.ffmpeg,
		"-y",
		"-ss", fmtSeconds(start),
		"-to", fmtSeconds(end),
		"-i", video.Path,
		"-c:v", "libx264",
		"-preset", "veryfast",
		"-crf", "18",
		"-c:a", "aac",
		"-b:a", "192k",
		outPath,
	)
	if b, err := cmd.CombinedOutput(); err != nil {
		return types.Clip{}, stagerun.Wrapf(stagerun.KindToolFailure, "ffmpeg cut", "%v\n%s", err, string(b))
	}
	return types.Clip{Path: outPath, Duration: end - start}, nil
}

// Burn renders an ASS subtitle file into the clip's video stream.
func (a *Adapter) Burn(ctx context.Context, clip types.Clip, subtitlePath, outPath string) (types.Clip, error) {
	cmd := exec.CommandContext(ctx, a.ffmpeg,
		"-y",
		"-i", clip.Path,
		"-vf", "subtitles="+escapeFilterPath(subtitlePath),
		"-c:a", "copy",
		outPath,
	)
	if b, err := cmd.CombinedOutput(); err != nil {
		return types.Clip{}, stagerun.Wrapf(stagerun.KindToolFailure, "ffmpeg burn subtitles", "%v\n%s", err, string(b))
	}
	return types.Clip{HighlightID: clip.HighlightID, Path: outPath, Duration: clip.Duration}, nil
}

// Export formats the clip for one platform: 9:16 1080x1920 with the
// platform's duration cap.
func (a *Adapter) Export(ctx context.Context, clip types.Clip, platform types.Platform, outPath string) (types.Reel, error) {
	maxDur := platform.MaxDuration()
	if maxDur <= 0 {
		return types.Reel{}, stagerun.Wrapf(stagerun.KindUnsupportedSpec, "ffmpeg export", "no export spec for platform %q", platform)
	}
	args := []string{
		"-y",
		"-i", clip.Path,
		"-vf", "scale=1080:1920:force_original_aspect_ratio=decrease,pad=1080:1920:(ow-iw)/2:(oh-ih)/2",
	}
	duration := clip.Duration
	if duration > maxDur {
		args = append(args, "-t", fmtSeconds(maxDur))
		duration = maxDur
	}
	args = append(args,
		"-c:v", "libx264",
		"-preset", "veryfast",
		"-crf", "20",
		"-c:a", "aac",
		"-b:a", "192k",
		outPath,
	)
	cmd := exec.CommandContext(ctx, a.ffmpeg, args...)
	if b, err := cmd.CombinedOutput(); err != nil {
		return types.Reel{}, stagerun.Wrapf(stagerun.KindToolFailure, "ffmpeg export", "%v\n%s", err, string(b))
	}
	return types.Reel{
		HighlightID: clip.HighlightID,
		Path:        outPath,
		Duration:    duration,
		Platform:    platform,
	}, nil
}

// Duration probes the container duration of a media file.
func (a *Adapter) Duration(ctx context.Context, path string) (time.Duration, error) {
	cmd := exec.CommandContext(ctx, a.ffprobe,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	b, err := cmd.CombinedOutput()
	if err != nil {
		return 0, stagerun.Wrapf(stagerun.KindToolFailure, "ffprobe duration", "%v\n%s", err, string(b))
	}
	s := strings.TrimSpace(string(b))
	sec, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, stagerun.Wrapf(stagerun.KindToolFailure, "ffprobe duration", "parse %q: %v", s, err)
	}
	return time.Duration(sec * float64(time.Second)), nil
}

func fmtSeconds(d time.Duration) string {
	sec := float64(d) / float64(time.Second)
	return strconv.FormatFloat(sec, 'f', 3, 64)
}

func escapeFilterPath(p string) string {
	p = strings.ReplaceAll(p, "\\", "\\\\")
	p = strings.ReplaceAll(p, ":", "\\:")
	return p
}
