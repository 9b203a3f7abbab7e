package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/autoreel/autoreel/internal/domain/subtitles"
	"github.com/autoreel/autoreel/internal/stagerun"
	"github.com/autoreel/autoreel/internal/types"
)

// clipPool fans selected highlights out to a bounded set of workers. Each
// highlight's sub-pipeline is an isolated failure domain: exhausting retries
// on any sub-stage records that highlight as failed and the pool moves on.
type clipPool struct {
	deps   Deps
	opts   Options
	exec   *stagerun.Executor
	logger *slog.Logger
}

func (p *clipPool) run(ctx context.Context, video types.SourceVideo, tr types.Transcript, highlights []types.SelectedHighlight, col *Collector) {
	workers := p.opts.Workers
	if workers > len(highlights) {
		workers = len(highlights)
	}
	if workers < 1 {
		workers = 1
	}

	jobs := make(chan types.SelectedHighlight)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for hl := range jobs {
				p.process(ctx, video, tr, hl, col)
			}
		}()
	}

	for _, hl := range highlights {
		// Cancellation is honored before each dispatch; in-flight work
		// finishes cooperatively through its own context.
		if ctx.Err() != nil {
			break
		}
		jobs <- hl
	}
	close(jobs)
	wg.Wait()
}

// process runs extract -> subtitles -> burn -> export for one highlight.
// All intermediate artifacts live in a per-highlight scratch dir released
// when the work completes or fails.
func (p *clipPool) process(ctx context.Context, video types.SourceVideo, tr types.Transcript, hl types.SelectedHighlight, col *Collector) {
	log := p.logger.With(
		slog.String("highlight", hl.ID),
		slog.Int("rank", hl.Rank),
	)

	scratch := filepath.Join(p.opts.OutDir, "tmp", hl.ID)
	if err := os.MkdirAll(scratch, 0o755); err != nil {
		col.HighlightFailed(hl, "prepare", err)
		return
	}
	defer os.RemoveAll(scratch)

	cutRes := stagerun.Execute(ctx, p.exec, "clip_extract", p.opts.ClipPolicy, func(ctx context.Context) (types.Clip, error) {
		clip, err := p.deps.Clips.Cut(ctx, video, hl.Start, hl.End, filepath.Join(scratch, "clip.mp4"))
		if err != nil {
			return types.Clip{}, err
		}
		clip.HighlightID = hl.ID
		return clip, nil
	})
	if cutRes.Failed() {
		log.Warn("highlight skipped", slog.String("stage", "clip_extract"), slog.Any("error", cutRes.Err))
		col.HighlightFailed(hl, "clip_extract", cutRes.Err)
		return
	}
	clip := cutRes.Value

	if p.opts.BurnSubtitles {
		burned, err := p.burnSubtitles(ctx, tr, hl, clip, scratch, col)
		if err != nil {
			log.Warn("highlight skipped", slog.Any("error", err))
			return
		}
		clip = burned
	}

	exported := 0
	for _, platform := range p.opts.Platforms {
		outPath := filepath.Join(p.opts.OutDir, "reels", fmt.Sprintf("%02d-%s.mp4", hl.Rank, platform))
		stageName := "platform_export_" + string(platform)
		expRes := stagerun.Execute(ctx, p.exec, stageName, p.opts.ClipPolicy, func(ctx context.Context) (types.Reel, error) {
			return p.deps.Exporter.Export(ctx, clip, platform, outPath)
		})
		if expRes.Failed() {
			log.Warn("platform export failed", slog.String("platform", string(platform)), slog.Any("error", expRes.Err))
			col.HighlightFailed(hl, stageName, expRes.Err)
			continue
		}
		reel := expRes.Value
		reel.HighlightID = hl.ID
		reel.ViralityScore = hl.Score
		reel.Title = hl.Title
		reel.Rank = hl.Rank
		col.AddReel(reel)
		exported++
	}
	if exported > 0 {
		log.Info("highlight processed", slog.Int("reels", exported))
	}
}

// burnSubtitles generates the clip-local track, writes the ASS file into the
// scratch dir, and burns it into the clip. Any permanent failure records the
// highlight and returns an error.
func (p *clipPool) burnSubtitles(ctx context.Context, tr types.Transcript, hl types.SelectedHighlight, clip types.Clip, scratch string, col *Collector) (types.Clip, error) {
	segs := subtitles.SegmentsInWindow(tr, hl.Start, hl.End)

	trackRes := stagerun.Execute(ctx, p.exec, "subtitle_generate", p.opts.ClipPolicy, func(context.Context) (types.SubtitleTrack, error) {
		return p.deps.Subtitles.Generate(segs)
	})
	if trackRes.Failed() {
		col.HighlightFailed(hl, "subtitle_generate", trackRes.Err)
		return types.Clip{}, trackRes.Err
	}

	assPath := filepath.Join(scratch, "subs.ass")
	if err := os.WriteFile(assPath, []byte(subtitles.RenderASS(trackRes.Value)), 0o644); err != nil {
		col.HighlightFailed(hl, "subtitle_generate", err)
		return types.Clip{}, err
	}

	burnRes := stagerun.Execute(ctx, p.exec, "subtitle_burn", p.opts.ClipPolicy, func(ctx context.Context) (types.Clip, error) {
		return p.deps.Burner.Burn(ctx, clip, assPath, filepath.Join(scratch, "burned.mp4"))
	})
	if burnRes.Failed() {
		col.HighlightFailed(hl, "subtitle_burn", burnRes.Err)
		return types.Clip{}, burnRes.Err
	}
	burned := burnRes.Value
	burned.HighlightID = hl.ID
	return burned, nil
}
