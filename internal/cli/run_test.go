package cli

import (
	"testing"

	"github.com/autoreel/autoreel/internal/config"
)

func TestApplyFlags_OverridesOnlyChanged(t *testing.T) {
	root := newRoot()
	if err := root.ParseFlags([]string{
		"--reels", "4",
		"--speed-up=false",
		"--burn-subtitles=false",
		"--platforms", "tiktok",
	}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	cfg := config.Default()
	applyFlags(root, &cfg)

	if cfg.MaxReels != 4 {
		t.Fatalf("expected reels override, got %d", cfg.MaxReels)
	}
	if cfg.SpeedUpAudio {
		t.Fatal("--speed-up=false must disable audio speed-up")
	}
	if cfg.BurnSubtitles {
		t.Fatal("--burn-subtitles=false must disable burn-in")
	}
	if len(cfg.Platforms) != 1 || cfg.Platforms[0] != "tiktok" {
		t.Fatalf("expected platform override, got %v", cfg.Platforms)
	}
	// Untouched flags keep the file/env-derived values.
	if cfg.Workers != config.Default().Workers {
		t.Fatalf("workers changed without a flag: %d", cfg.Workers)
	}
}

func TestApplyFlags_DefaultsLeaveConfigAlone(t *testing.T) {
	root := newRoot()
	if err := root.ParseFlags(nil); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	cfg := config.Default()
	applyFlags(root, &cfg)

	if !cfg.SpeedUpAudio || !cfg.BurnSubtitles {
		t.Fatal("unset flags must not override config defaults")
	}
}
