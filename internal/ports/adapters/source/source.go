// Package source ingests local files or remote URLs into SourceVideo
// handles. Remote inputs are downloaded with yt-dlp.
package source

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/autoreel/autoreel/internal/stagerun"
	"github.com/autoreel/autoreel/internal/types"
)

// DurationProber reports a media file's duration. Satisfied by the ffmpeg
// adapter.
type DurationProber interface {
	Duration(ctx context.Context, path string) (time.Duration, error)
}

type Adapter struct {
	ytdlp  string
	prober DurationProber
}

func New(ytdlpPath string, prober DurationProber) *Adapter {
	if ytdlpPath == "" {
		ytdlpPath = "yt-dlp"
	}
	return &Adapter{ytdlp: ytdlpPath, prober: prober}
}

func (a *Adapter) Load(ctx context.Context, uriOrPath, workDir string) (types.SourceVideo, error) {
	path := uriOrPath
	if isRemote(uriOrPath) {
		dest := filepath.Join(workDir, "source.mp4")
		if _, err := os.Stat(dest); err != nil {
			// Cache hit skips the download on retried or repeated runs.
			cmd := exec.CommandContext(ctx, a.ytdlp,
				"-f", "mp4/bestvideo*+bestaudio/best",
				"--no-playlist",
				"-o", dest,
				uriOrPath,
			)
			if b, err := cmd.CombinedOutput(); err != nil {
				return types.SourceVideo{}, stagerun.Wrapf(stagerun.KindDownloadFailed, "yt-dlp", "%v\n%s", err, string(b))
			}
		}
		path = dest
	} else {
		if _, err := os.Stat(path); err != nil {
			return types.SourceVideo{}, stagerun.Wrap(stagerun.KindNotFound, "load video", err)
		}
	}

	duration, err := a.prober.Duration(ctx, path)
	if err != nil {
		return types.SourceVideo{}, err
	}
	return types.SourceVideo{
		ID:       uuid.NewString(),
		URI:      uriOrPath,
		Path:     path,
		Duration: duration,
	}, nil
}

func isRemote(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}
