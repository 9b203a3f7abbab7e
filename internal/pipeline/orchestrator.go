package pipeline

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/autoreel/autoreel/internal/domain/selection"
	"github.com/autoreel/autoreel/internal/ports"
	"github.com/autoreel/autoreel/internal/stagerun"
	"github.com/autoreel/autoreel/internal/types"
)

// Deps are the external collaborators the orchestrator drives.
type Deps struct {
	Source      ports.VideoSource
	Audio       ports.AudioExtractor
	Transcriber ports.Transcriber
	Detector    ports.HighlightDetector
	Clips       ports.ClipExtractor
	Subtitles   ports.SubtitleGenerator
	Burner      ports.SubtitleBurner
	Exporter    ports.PlatformExporter
}

// Options holds the run-scoped configuration passed to every stage.
type Options struct {
	RunID   string
	Input   string
	WorkDir string
	OutDir  string

	MaxReels      int
	MinClip       time.Duration
	MaxClip       time.Duration
	SpeedFactor   float64
	Platforms     []types.Platform
	Workers       int
	BurnSubtitles bool

	StagePolicy stagerun.Policy
	ClipPolicy  stagerun.Policy

	Logger *slog.Logger
}

// Orchestrator sequences the global stages and drives the clip worker pool.
// Global stages run strictly sequentially; the fan-out over selected
// highlights is the only parallel region.
type Orchestrator struct {
	deps  Deps
	opts  Options
	exec  *stagerun.Executor
	state State
}

func NewOrchestrator(deps Deps, opts Options) *Orchestrator {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.RunID == "" {
		opts.RunID = uuid.NewString()
	}
	if opts.SpeedFactor <= 0 {
		opts.SpeedFactor = 1.0
	}
	return &Orchestrator{
		deps:  deps,
		opts:  opts,
		exec:  stagerun.New(opts.Logger),
		state: StateCreated,
	}
}

func (o *Orchestrator) State() State { return o.state }

// Run executes the pipeline. On a global stage exhausting its retries the
// run aborts and the partial report is returned with the causing error. Clip
// failures never abort the run.
func (o *Orchestrator) Run(ctx context.Context) (Report, error) {
	started := time.Now()
	col := NewCollector()
	log := o.opts.Logger.With(slog.String("run", o.opts.RunID))

	report := func() Report {
		return col.Report(o.opts.RunID, o.opts.Input, o.opts.OutDir, o.state, time.Since(started))
	}
	abort := func(err error) (Report, error) {
		o.state = StateAborted
		log.Error("run aborted", slog.Any("error", err))
		return report(), err
	}

	// Ingesting
	if err := o.transition(ctx, StateIngesting, log); err != nil {
		return abort(err)
	}
	videoRes := stagerun.Execute(ctx, o.exec, "ingest", o.opts.StagePolicy, func(ctx context.Context) (types.SourceVideo, error) {
		return o.deps.Source.Load(ctx, o.opts.Input, o.opts.WorkDir)
	})
	recordStage(col, "ingest", videoRes.Err, videoRes.Attempts, videoRes.Elapsed)
	if videoRes.Failed() {
		return abort(videoRes.Err)
	}
	video := videoRes.Value
	log.Info("video ingested", slog.Duration("duration", video.Duration))

	// ExtractingAudio
	if err := o.transition(ctx, StateExtractingAudio, log); err != nil {
		return abort(err)
	}
	audioRes := stagerun.Execute(ctx, o.exec, "extract_audio", o.opts.StagePolicy, func(ctx context.Context) (types.AudioTrack, error) {
		return o.deps.Audio.Extract(ctx, video, o.opts.SpeedFactor, filepath.Join(o.opts.WorkDir, "audio.wav"))
	})
	recordStage(col, "extract_audio", audioRes.Err, audioRes.Attempts, audioRes.Elapsed)
	if audioRes.Failed() {
		return abort(audioRes.Err)
	}
	audio := audioRes.Value

	// Transcribing
	if err := o.transition(ctx, StateTranscribing, log); err != nil {
		return abort(err)
	}
	trRes := stagerun.Execute(ctx, o.exec, "transcribe", o.opts.StagePolicy, func(ctx context.Context) (types.Transcript, error) {
		return o.deps.Transcriber.Transcribe(ctx, audio)
	})
	recordStage(col, "transcribe", trRes.Err, trRes.Attempts, trRes.Elapsed)
	if trRes.Failed() {
		return abort(trRes.Err)
	}
	// Sped-up audio produces compressed timestamps; everything downstream
	// works in original-speed time.
	transcript := rescaleTranscript(trRes.Value, audio.SpeedFactor)
	log.Info("transcription complete", slog.Int("segments", len(transcript.Segments)))

	// DetectingHighlights
	if err := o.transition(ctx, StateDetecting, log); err != nil {
		return abort(err)
	}
	candRes := stagerun.Execute(ctx, o.exec, "detect_highlights", o.opts.StagePolicy, func(ctx context.Context) ([]types.Candidate, error) {
		return o.deps.Detector.Detect(ctx, transcript, o.opts.MaxReels, o.opts.MinClip, o.opts.MaxClip)
	})
	recordStage(col, "detect_highlights", candRes.Err, candRes.Attempts, candRes.Elapsed)
	if candRes.Failed() {
		return abort(candRes.Err)
	}
	log.Info("highlights detected", slog.Int("candidates", len(candRes.Value)))

	// Selecting. Pure computation: no retry, cannot fail. Malformed
	// candidates are dropped individually and logged.
	if err := o.transition(ctx, StateSelecting, log); err != nil {
		return abort(err)
	}
	selectStarted := time.Now()
	selected, rejections := selection.Select(candRes.Value, selection.Config{
		MaxReels:    o.opts.MaxReels,
		MinDuration: o.opts.MinClip,
		MaxDuration: o.opts.MaxClip,
	}, video.Duration)
	for _, r := range rejections {
		log.Warn("candidate rejected",
			slog.Duration("start", r.Candidate.Start),
			slog.Duration("end", r.Candidate.End),
			slog.String("reason", r.Reason),
		)
	}
	for i := range selected {
		selected[i].ID = uuid.NewString()
	}
	recordStage(col, "select_highlights", nil, 1, time.Since(selectStarted))
	log.Info("highlights selected", slog.Int("selected", len(selected)))

	// Zero selections is a valid terminal outcome with no reels.
	if len(selected) == 0 {
		o.state = StateCompleted
		return report(), nil
	}

	// Processing
	if err := o.transition(ctx, StateProcessing, log); err != nil {
		return abort(err)
	}
	pool := &clipPool{deps: o.deps, opts: o.opts, exec: o.exec, logger: log}
	pool.run(ctx, video, transcript, selected, col)
	if err := ctx.Err(); err != nil {
		return abort(err)
	}

	o.state = StateCompleted
	rep := report()
	log.Info("run completed",
		slog.Int("reels", len(rep.Reels)),
		slog.Int("failures", len(rep.Failures)),
		slog.Duration("elapsed", rep.Elapsed),
	)
	return rep, nil
}

// transition moves to the next state after honoring cancellation. The
// cancellation signal is checked between stages only; in-flight collaborator
// calls finish through their own contexts.
func (o *Orchestrator) transition(ctx context.Context, next State, log *slog.Logger) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	log.Debug("stage transition", slog.String("from", string(o.state)), slog.String("to", string(next)))
	o.state = next
	return nil
}

func recordStage(col *Collector, stage string, err error, attempts int, elapsed time.Duration) {
	if err != nil {
		col.StageFailed(stage, err, attempts, elapsed)
		return
	}
	col.StageDone(stage, attempts, elapsed)
}

// rescaleTranscript converts sped-up audio timestamps back to
// original-speed time. A factor of 1 is the identity.
func rescaleTranscript(tr types.Transcript, speedFactor float64) types.Transcript {
	if speedFactor == 1.0 || speedFactor <= 0 {
		return tr
	}
	out := types.Transcript{Language: tr.Language, Segments: make([]types.Segment, len(tr.Segments))}
	for i, s := range tr.Segments {
		seg := s
		seg.Start = s.Start * speedFactor
		seg.End = s.End * speedFactor
		seg.Words = make([]types.Word, len(s.Words))
		for j, w := range s.Words {
			seg.Words[j] = types.Word{Start: w.Start * speedFactor, End: w.End * speedFactor, Word: w.Word}
		}
		out.Segments[i] = seg
	}
	return out
}
