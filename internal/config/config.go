// Package config loads and validates run configuration from an optional
// TOML file, environment variables, and CLI flag overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/autoreel/autoreel/internal/types"
)

const (
	TranscriberOpenAI     = "openai"
	TranscriberWhisperCPP = "whispercpp"

	DetectorOpenAI    = "openai"
	DetectorHeuristic = "heuristic"
)

type Config struct {
	OutDir   string `toml:"out_dir"`
	CacheDir string `toml:"cache_dir"`

	MaxReels       int      `toml:"max_reels"`
	MinClipSeconds float64  `toml:"min_clip_seconds"`
	MaxClipSeconds float64  `toml:"max_clip_seconds"`
	SpeedUpAudio   bool     `toml:"speed_up_audio"`
	SpeedFactor    float64  `toml:"speed_factor"`
	Platforms      []string `toml:"platforms"`
	Workers        int      `toml:"workers"`
	BurnSubtitles  bool     `toml:"burn_subtitles"`

	Transcriber string `toml:"transcriber"`
	Detector    string `toml:"detector"`

	FFmpegPath  string `toml:"ffmpeg_path"`
	FFprobePath string `toml:"ffprobe_path"`
	YTDLPPath   string `toml:"ytdlp_path"`

	WhisperBin   string `toml:"whisper_bin"`
	WhisperModel string `toml:"whisper_model"`

	OpenAIModel           string `toml:"openai_model"`
	OpenAITranscribeModel string `toml:"openai_transcribe_model"`

	Retry Retry `toml:"retry"`

	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"`

	// Credentials come from the environment only, never the config file.
	OpenAIAPIKey  string `toml:"-"`
	OpenAIBaseURL string `toml:"-"`
}

type Retry struct {
	MaxAttempts         int     `toml:"max_attempts"`
	BaseDelaySeconds    float64 `toml:"base_delay_seconds"`
	BackoffMultiplier   float64 `toml:"backoff_multiplier"`
	StageTimeoutSeconds float64 `toml:"stage_timeout_seconds"`
	ClipTimeoutSeconds  float64 `toml:"clip_timeout_seconds"`
}

// Default returns the baseline configuration before file, env, and flag
// overrides.
func Default() Config {
	return Config{
		OutDir:   "out",
		CacheDir: ".cache",

		MaxReels:       5,
		MinClipSeconds: 15,
		MaxClipSeconds: 60,
		SpeedUpAudio:   true,
		SpeedFactor:    2.0,
		Platforms:      []string{string(types.PlatformInstagram), string(types.PlatformTikTok), string(types.PlatformYouTubeShorts)},
		Workers:        3,
		BurnSubtitles:  true,

		Transcriber: TranscriberOpenAI,
		Detector:    DetectorOpenAI,

		FFmpegPath:  "ffmpeg",
		FFprobePath: "ffprobe",
		YTDLPPath:   "yt-dlp",

		WhisperBin:   ".cache/bin/whisper.cpp",
		WhisperModel: ".cache/models/ggml-base.bin",

		OpenAIModel:           "gpt-4o-mini",
		OpenAITranscribeModel: "whisper-1",

		Retry: Retry{
			MaxAttempts:         3,
			BaseDelaySeconds:    2,
			BackoffMultiplier:   2.0,
			StageTimeoutSeconds: 600,
			ClipTimeoutSeconds:  300,
		},

		LogLevel:  "info",
		LogFormat: "text",
	}
}

// Load reads a TOML config file over the defaults. A missing file at the
// default location is not an error; a missing explicit path is.
func Load(path string, explicit bool) (Config, error) {
	cfg := Default()
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && !explicit {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := toml.Unmarshal(b, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnv reads credentials from the process environment. Called once at
// startup, before any stage runs.
func (c *Config) ApplyEnv() {
	c.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")
	c.OpenAIBaseURL = os.Getenv("OPENAI_BASE_URL")
}

// Validate enforces the configuration error rules: invalid bounds and
// missing credentials fail here, before the pipeline starts.
func (c Config) Validate() error {
	if c.MaxReels <= 0 {
		return fmt.Errorf("max_reels must be > 0, got %d", c.MaxReels)
	}
	if c.MinClipSeconds <= 0 {
		return errors.New("min_clip_seconds must be > 0")
	}
	if c.MaxClipSeconds < c.MinClipSeconds {
		return fmt.Errorf("max_clip_seconds %v must be >= min_clip_seconds %v", c.MaxClipSeconds, c.MinClipSeconds)
	}
	if len(c.Platforms) == 0 {
		return errors.New("at least one target platform is required")
	}
	if _, err := c.PlatformList(); err != nil {
		return err
	}
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be > 0, got %d", c.Workers)
	}
	if c.SpeedUpAudio && c.SpeedFactor <= 1.0 {
		return fmt.Errorf("speed_factor must be > 1.0 when speed_up_audio is set, got %v", c.SpeedFactor)
	}

	switch c.Transcriber {
	case TranscriberOpenAI:
		if c.OpenAIAPIKey == "" {
			return errors.New("OPENAI_API_KEY is required for the openai transcriber (set it in the environment or .env)")
		}
	case TranscriberWhisperCPP:
		if c.WhisperModel == "" {
			return errors.New("whisper_model is required for the whispercpp transcriber")
		}
	default:
		return fmt.Errorf("unknown transcriber %q (supported: openai, whispercpp)", c.Transcriber)
	}

	switch c.Detector {
	case DetectorOpenAI:
		if c.OpenAIAPIKey == "" {
			return errors.New("OPENAI_API_KEY is required for the openai detector (set it in the environment or .env)")
		}
	case DetectorHeuristic:
	default:
		return fmt.Errorf("unknown detector %q (supported: openai, heuristic)", c.Detector)
	}

	if c.Retry.MaxAttempts <= 0 {
		return fmt.Errorf("retry.max_attempts must be > 0, got %d", c.Retry.MaxAttempts)
	}
	if c.Retry.BackoffMultiplier < 1.0 {
		return fmt.Errorf("retry.backoff_multiplier must be >= 1.0, got %v", c.Retry.BackoffMultiplier)
	}
	return nil
}

// PlatformList resolves the configured platform names.
func (c Config) PlatformList() ([]types.Platform, error) {
	out := make([]types.Platform, 0, len(c.Platforms))
	seen := map[types.Platform]bool{}
	for _, s := range c.Platforms {
		p, err := types.ParsePlatform(s)
		if err != nil {
			return nil, err
		}
		if seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out, nil
}

func (c Config) MinClip() time.Duration {
	return time.Duration(c.MinClipSeconds * float64(time.Second))
}

func (c Config) MaxClip() time.Duration {
	return time.Duration(c.MaxClipSeconds * float64(time.Second))
}
