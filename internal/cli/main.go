package cli

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func Main() {
	_ = godotenv.Load() // best-effort: load .env if present

	root := newRoot()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRoot() *cobra.Command {
	root := &cobra.Command{
		Use:          "autoreel <input>",
		Short:        "Turn a long video into ranked, platform-ready highlight reels",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, args[0])
		},
	}

	root.SetOut(os.Stdout)
	root.SetErr(os.Stderr)
	root.SilenceErrors = true

	root.Flags().String("config", "autoreel.toml", "Config file path")
	root.Flags().String("out", "", "Output directory")
	root.Flags().Int("reels", 0, "Maximum number of reels")
	root.Flags().StringSlice("platforms", nil, "Target platforms (instagram, tiktok, youtube_shorts)")
	root.Flags().Int("workers", 0, "Parallel clip workers")
	root.Flags().Float64("min", 0, "Minimum clip duration in seconds")
	root.Flags().Float64("max", 0, "Maximum clip duration in seconds")
	root.Flags().Bool("burn-subtitles", true, "Burn subtitles into each reel")
	root.Flags().Bool("speed-up", true, "Speed up audio before transcription")
	root.Flags().String("log-level", "", "Log level (debug, info, warn, error)")
	root.Flags().String("log-format", "", "Log format (text, json)")
	return root
}
