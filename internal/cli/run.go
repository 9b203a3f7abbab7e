package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/autoreel/autoreel/internal/config"
	"github.com/autoreel/autoreel/internal/logging"
	"github.com/autoreel/autoreel/internal/pipeline"
	"github.com/autoreel/autoreel/internal/report"
)

func run(cmd *cobra.Command, input string) error {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configPath, cmd.Flags().Changed("config"))
	if err != nil {
		return err
	}
	cfg.ApplyEnv()
	applyFlags(cmd, &cfg)

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	logger, err := logging.New(logging.Options{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		Writer: os.Stderr,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rep, runErr := pipeline.Run(ctx, cfg, input, logger)
	report.Render(cmd.OutOrStdout(), rep)
	return runErr
}

// applyFlags layers explicit CLI flags over the file and env configuration.
func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("out") {
		cfg.OutDir, _ = flags.GetString("out")
	}
	if flags.Changed("reels") {
		cfg.MaxReels, _ = flags.GetInt("reels")
	}
	if flags.Changed("platforms") {
		cfg.Platforms, _ = flags.GetStringSlice("platforms")
	}
	if flags.Changed("workers") {
		cfg.Workers, _ = flags.GetInt("workers")
	}
	if flags.Changed("min") {
		cfg.MinClipSeconds, _ = flags.GetFloat64("min")
	}
	if flags.Changed("max") {
		cfg.MaxClipSeconds, _ = flags.GetFloat64("max")
	}
	if flags.Changed("burn-subtitles") {
		cfg.BurnSubtitles, _ = flags.GetBool("burn-subtitles")
	}
	if flags.Changed("speed-up") {
		cfg.SpeedUpAudio, _ = flags.GetBool("speed-up")
	}
	if flags.Changed("log-level") {
		cfg.LogLevel, _ = flags.GetString("log-level")
	}
	if flags.Changed("log-format") {
		cfg.LogFormat, _ = flags.GetString("log-format")
	}
}
