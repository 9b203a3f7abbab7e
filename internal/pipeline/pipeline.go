// Package pipeline turns a long-form source video into ranked,
// platform-ready highlight reels.
package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"github.com/autoreel/autoreel/internal/config"
	"github.com/autoreel/autoreel/internal/domain/subtitles"
	"github.com/autoreel/autoreel/internal/ports"
	"github.com/autoreel/autoreel/internal/ports/adapters/ffmpeg"
	"github.com/autoreel/autoreel/internal/ports/adapters/heuristic"
	"github.com/autoreel/autoreel/internal/ports/adapters/openaiasr"
	"github.com/autoreel/autoreel/internal/ports/adapters/openaidetect"
	"github.com/autoreel/autoreel/internal/ports/adapters/source"
	"github.com/autoreel/autoreel/internal/ports/adapters/whispercpp"
	"github.com/autoreel/autoreel/internal/stagerun"
)

// Run wires the configured adapters, prepares run directories, executes the
// pipeline, and writes the run manifest. The report is returned on both
// terminal states; err is non-nil only when the run aborted.
func Run(ctx context.Context, cfg config.Config, input string, logger *slog.Logger) (Report, error) {
	platforms, err := cfg.PlatformList()
	if err != nil {
		return Report{}, err
	}

	video := ffmpeg.New(cfg.FFmpegPath, cfg.FFprobePath)

	var transcriber ports.Transcriber
	switch cfg.Transcriber {
	case config.TranscriberWhisperCPP:
		transcriber = whispercpp.New(cfg.WhisperBin, cfg.WhisperModel)
	default:
		transcriber = openaiasr.New(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAITranscribeModel)
	}

	var detector ports.HighlightDetector
	switch cfg.Detector {
	case config.DetectorHeuristic:
		detector = heuristic.New()
	default:
		detector = openaidetect.New(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel)
	}

	deps := Deps{
		Source:      source.New(cfg.YTDLPPath, video),
		Audio:       video,
		Transcriber: transcriber,
		Detector:    detector,
		Clips:       video,
		Subtitles:   subtitles.Generator{},
		Burner:      video,
		Exporter:    video,
	}

	// Cached artifacts (download, audio, transcript) are keyed by input so
	// retried runs skip finished work.
	cacheDir := filepath.Join(cfg.CacheDir, "runs", hash(input))
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return Report{}, err
	}
	lock := flock.New(filepath.Join(cacheDir, ".lock"))
	locked, err := lock.TryLock()
	if err != nil {
		return Report{}, fmt.Errorf("lock cache dir: %w", err)
	}
	if !locked {
		return Report{}, fmt.Errorf("another run is already processing %s", input)
	}
	defer lock.Unlock()

	runOutDir := buildRunOutDir(cfg.OutDir, input, time.Now().UTC())
	if err := os.MkdirAll(filepath.Join(runOutDir, "reels"), 0o755); err != nil {
		return Report{}, err
	}

	speedFactor := 1.0
	if cfg.SpeedUpAudio {
		speedFactor = cfg.SpeedFactor
	}

	orch := NewOrchestrator(deps, Options{
		RunID:         uuid.NewString(),
		Input:         input,
		WorkDir:       cacheDir,
		OutDir:        runOutDir,
		MaxReels:      cfg.MaxReels,
		MinClip:       cfg.MinClip(),
		MaxClip:       cfg.MaxClip(),
		SpeedFactor:   speedFactor,
		Platforms:     platforms,
		Workers:       cfg.Workers,
		BurnSubtitles: cfg.BurnSubtitles,
		StagePolicy:   policyFromConfig(cfg.Retry, cfg.Retry.StageTimeoutSeconds),
		ClipPolicy:    policyFromConfig(cfg.Retry, cfg.Retry.ClipTimeoutSeconds),
		Logger:        logger,
	})

	report, runErr := orch.Run(ctx)

	// The manifest is written on abort too; partial reports are part of the
	// contract.
	if err := writeManifest(runOutDir, report); err != nil {
		logger.Warn("manifest not written", slog.Any("error", err))
	}
	return report, runErr
}

func policyFromConfig(r config.Retry, timeoutSeconds float64) stagerun.Policy {
	pol := stagerun.DefaultPolicy()
	pol.MaxAttempts = r.MaxAttempts
	pol.BaseDelay = time.Duration(r.BaseDelaySeconds * float64(time.Second))
	pol.BackoffMultiplier = r.BackoffMultiplier
	pol.AttemptTimeout = time.Duration(timeoutSeconds * float64(time.Second))
	return pol
}

func writeManifest(runOutDir string, report Report) error {
	b, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(runOutDir, "manifest.json"), b, 0o644)
}

func buildRunOutDir(outRoot, input string, now time.Time) string {
	name := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	name = normalizePathSegment(name)
	if name == "" {
		name = "input"
	}
	ts := now.UTC().Format("20060102-150405Z")
	runSeed := fmt.Sprintf("%s|%d", input, now.UTC().UnixNano())
	suffix := hash(runSeed)[:6]
	return filepath.Join(outRoot, fmt.Sprintf("%s-%s-%s", name, ts, suffix))
}

func normalizePathSegment(s string) string {
	var b strings.Builder
	prevDash := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			b.WriteRune(r)
			prevDash = false
		default:
			if !prevDash {
				b.WriteByte('-')
				prevDash = true
			}
		}
	}
	return strings.Trim(b.String(), "-")
}

func hash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])[:12]
}

// ensure the ffmpeg adapter covers every media port
var (
	_ ports.AudioExtractor    = (*ffmpeg.Adapter)(nil)
	_ ports.ClipExtractor     = (*ffmpeg.Adapter)(nil)
	_ ports.SubtitleBurner    = (*ffmpeg.Adapter)(nil)
	_ ports.PlatformExporter  = (*ffmpeg.Adapter)(nil)
	_ ports.VideoSource       = (*source.Adapter)(nil)
	_ ports.Transcriber       = (*openaiasr.Adapter)(nil)
	_ ports.Transcriber       = (*whispercpp.Adapter)(nil)
	_ ports.HighlightDetector = (*openaidetect.Adapter)(nil)
	_ ports.HighlightDetector = heuristic.Detector{}
	_ ports.SubtitleGenerator = subtitles.Generator{}
)
