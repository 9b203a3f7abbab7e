package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/autoreel/autoreel/internal/logging"
	"github.com/autoreel/autoreel/internal/stagerun"
	"github.com/autoreel/autoreel/internal/types"
)

func sec(s float64) time.Duration { return time.Duration(s * float64(time.Second)) }

func fastPolicy() stagerun.Policy {
	pol := stagerun.DefaultPolicy()
	pol.BaseDelay = 0
	pol.AttemptTimeout = 0
	return pol
}

func testOptions(t *testing.T) Options {
	t.Helper()
	return Options{
		RunID:       "test-run",
		Input:       "in.mp4",
		WorkDir:     t.TempDir(),
		OutDir:      t.TempDir(),
		MaxReels:    3,
		MinClip:     30 * time.Second,
		MaxClip:     90 * time.Second,
		SpeedFactor: 1.0,
		Platforms:   []types.Platform{types.PlatformTikTok},
		Workers:     2,
		StagePolicy: fastPolicy(),
		ClipPolicy:  fastPolicy(),
		Logger:      logging.NewNop(),
	}
}

func testTranscript() types.Transcript {
	return types.Transcript{Segments: []types.Segment{
		{Start: 0, End: 40, Text: "the big opening"},
		{Start: 40, End: 90, Text: "a quiet middle"},
		{Start: 90, End: 140, Text: "the payoff"},
	}}
}

type fakeSource struct {
	failures int
	calls    int32
	duration time.Duration
}

func (f *fakeSource) Load(_ context.Context, uriOrPath, _ string) (types.SourceVideo, error) {
	n := atomic.AddInt32(&f.calls, 1)
	if int(n) <= f.failures {
		return types.SourceVideo{}, stagerun.Wrapf(stagerun.KindDownloadFailed, "fake source", "transient")
	}
	d := f.duration
	if d == 0 {
		d = 300 * time.Second
	}
	return types.SourceVideo{ID: "video-1", URI: uriOrPath, Path: uriOrPath, Duration: d}, nil
}

type fakeAudio struct{}

func (fakeAudio) Extract(_ context.Context, video types.SourceVideo, speedFactor float64, outPath string) (types.AudioTrack, error) {
	return types.AudioTrack{SourceVideoID: video.ID, Path: outPath, SampleRate: 16000, Channels: 1, SpeedFactor: speedFactor}, nil
}

type fakeTranscriber struct {
	failures int
	calls    int32
	tr       types.Transcript
}

func (f *fakeTranscriber) Transcribe(context.Context, types.AudioTrack) (types.Transcript, error) {
	n := atomic.AddInt32(&f.calls, 1)
	if int(n) <= f.failures {
		return types.Transcript{}, stagerun.Wrapf(stagerun.KindTimeout, "fake transcriber", "transient")
	}
	return f.tr, nil
}

type fakeDetector struct {
	cands []types.Candidate
	seen  types.Transcript
}

func (f *fakeDetector) Detect(_ context.Context, tr types.Transcript, _ int, _, _ time.Duration) ([]types.Candidate, error) {
	f.seen = tr
	return f.cands, nil
}

type fakeClips struct {
	failStarts map[time.Duration]bool
	inFlight   int32
	maxSeen    int32
}

func (f *fakeClips) Cut(_ context.Context, _ types.SourceVideo, start, end time.Duration, outPath string) (types.Clip, error) {
	cur := atomic.AddInt32(&f.inFlight, 1)
	for {
		prev := atomic.LoadInt32(&f.maxSeen)
		if cur <= prev || atomic.CompareAndSwapInt32(&f.maxSeen, prev, cur) {
			break
		}
	}
	time.Sleep(5 * time.Millisecond)
	atomic.AddInt32(&f.inFlight, -1)

	if f.failStarts[start] {
		return types.Clip{}, stagerun.Wrapf(stagerun.KindOutOfRange, "fake cut", "scripted failure")
	}
	if err := os.WriteFile(outPath, []byte("clip"), 0o644); err != nil {
		return types.Clip{}, err
	}
	return types.Clip{Path: outPath, Duration: end - start}, nil
}

type fakeBurner struct {
	mu    sync.Mutex
	burns int
}

func (f *fakeBurner) Burn(_ context.Context, clip types.Clip, subtitlePath, outPath string) (types.Clip, error) {
	if _, err := os.Stat(subtitlePath); err != nil {
		return types.Clip{}, err
	}
	f.mu.Lock()
	f.burns++
	f.mu.Unlock()
	return types.Clip{HighlightID: clip.HighlightID, Path: outPath, Duration: clip.Duration}, nil
}

type fakeExporter struct{}

func (fakeExporter) Export(_ context.Context, clip types.Clip, platform types.Platform, outPath string) (types.Reel, error) {
	return types.Reel{HighlightID: clip.HighlightID, Path: outPath, Duration: clip.Duration, Platform: platform}, nil
}

type fakeSubtitles struct{ err error }

func (f fakeSubtitles) Generate([]types.Segment) (types.SubtitleTrack, error) {
	if f.err != nil {
		return types.SubtitleTrack{}, f.err
	}
	return types.SubtitleTrack{Cues: []types.SubtitleCue{{Start: 0, End: time.Second, Text: "hi"}}}, nil
}

func testDeps() (Deps, *fakeSource, *fakeTranscriber, *fakeDetector, *fakeClips) {
	src := &fakeSource{}
	tr := &fakeTranscriber{tr: testTranscript()}
	det := &fakeDetector{cands: []types.Candidate{
		{Start: sec(0), End: sec(40), Score: 9, Title: "opening"},
		{Start: sec(80), End: sec(120), Score: 8, Title: "payoff"},
	}}
	clips := &fakeClips{}
	deps := Deps{
		Source:      src,
		Audio:       fakeAudio{},
		Transcriber: tr,
		Detector:    det,
		Clips:       clips,
		Subtitles:   fakeSubtitles{},
		Burner:      &fakeBurner{},
		Exporter:    fakeExporter{},
	}
	return deps, src, tr, det, clips
}

func TestRun_CompletedWithRankedReels(t *testing.T) {
	deps, _, _, _, _ := testDeps()
	orch := NewOrchestrator(deps, testOptions(t))

	report, err := orch.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if orch.State() != StateCompleted || report.State != StateCompleted {
		t.Fatalf("expected completed, got %s", report.State)
	}
	if len(report.Reels) != 2 {
		t.Fatalf("expected 2 reels, got %d", len(report.Reels))
	}
	// Rank ascending means highest virality first.
	if report.Reels[0].Rank != 0 || report.Reels[0].ViralityScore != 9 {
		t.Fatalf("unexpected first reel: %+v", report.Reels[0])
	}
	if report.Reels[1].Rank != 1 || report.Reels[1].ViralityScore != 8 {
		t.Fatalf("unexpected second reel: %+v", report.Reels[1])
	}
	if len(report.Failures) != 0 {
		t.Fatalf("unexpected failures: %+v", report.Failures)
	}
	for _, want := range []string{"ingest", "extract_audio", "transcribe", "detect_highlights", "select_highlights"} {
		found := false
		for _, s := range report.Stages {
			if s.Stage == want && s.Error == "" {
				found = true
			}
		}
		if !found {
			t.Fatalf("stage %q missing from report: %+v", want, report.Stages)
		}
	}
}

func TestRun_AbortsWhenStageExhaustsRetries(t *testing.T) {
	deps, _, tr, _, _ := testDeps()
	tr.failures = 1000
	opts := testOptions(t)
	opts.StagePolicy.MaxAttempts = 2

	orch := NewOrchestrator(deps, opts)
	report, err := orch.Run(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if orch.State() != StateAborted || report.State != StateAborted {
		t.Fatalf("expected aborted, got %s", report.State)
	}
	if int(tr.calls) != 2 {
		t.Fatalf("expected 2 transcription attempts, got %d", tr.calls)
	}
	if len(report.Reels) != 0 {
		t.Fatalf("aborted run must return no reels, got %d", len(report.Reels))
	}
}

func TestRun_RecoversWithinRetryBudget(t *testing.T) {
	deps, src, tr, _, _ := testDeps()
	src.failures = 2
	tr.failures = 2
	opts := testOptions(t)
	opts.StagePolicy.MaxAttempts = 3

	orch := NewOrchestrator(deps, opts)
	report, err := orch.Run(context.Background())
	if err != nil {
		t.Fatalf("run should recover: %v", err)
	}
	if report.State != StateCompleted {
		t.Fatalf("expected completed, got %s", report.State)
	}
	for _, s := range report.Stages {
		if s.Stage == "ingest" && s.Attempts != 3 {
			t.Fatalf("expected 3 ingest attempts in report, got %d", s.Attempts)
		}
	}
}

func TestRun_ZeroSelectionsCompletesEmpty(t *testing.T) {
	deps, _, _, det, _ := testDeps()
	// Only candidate is below the minimum duration, so preprocessing drops it.
	det.cands = []types.Candidate{{Start: sec(10), End: sec(15), Score: 5}}

	orch := NewOrchestrator(deps, testOptions(t))
	report, err := orch.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.State != StateCompleted {
		t.Fatalf("expected completed, got %s", report.State)
	}
	if len(report.Reels) != 0 || len(report.Failures) != 0 {
		t.Fatalf("expected empty outcome, got %+v", report)
	}
}

func TestRun_PartialFailureIsolation(t *testing.T) {
	deps, _, _, det, clips := testDeps()
	det.cands = []types.Candidate{
		{Start: sec(0), End: sec(40), Score: 9, Title: "a"},
		{Start: sec(50), End: sec(90), Score: 8, Title: "b"},
		{Start: sec(100), End: sec(140), Score: 7, Title: "c"},
	}
	// The middle highlight's extraction fails permanently.
	clips.failStarts = map[time.Duration]bool{sec(50): true}

	orch := NewOrchestrator(deps, testOptions(t))
	report, err := orch.Run(context.Background())
	if err != nil {
		t.Fatalf("one highlight's failure must not abort the run: %v", err)
	}
	if report.State != StateCompleted {
		t.Fatalf("expected completed, got %s", report.State)
	}
	if len(report.Reels) != 2 {
		t.Fatalf("expected 2 reels from surviving highlights, got %d", len(report.Reels))
	}
	if len(report.Failures) != 1 {
		t.Fatalf("expected 1 recorded failure, got %+v", report.Failures)
	}
	if report.Failures[0].Stage != "clip_extract" {
		t.Fatalf("unexpected failure stage: %s", report.Failures[0].Stage)
	}
}

func TestRun_SpeedFactorRescalesTimestamps(t *testing.T) {
	deps, _, tr, det, _ := testDeps()
	// Transcript timestamps are in sped-up audio time: 2x compression.
	tr.tr = types.Transcript{Segments: []types.Segment{
		{Start: 0, End: 20, Text: "first"},
		{Start: 20, End: 70, Text: "second"},
	}}
	opts := testOptions(t)
	opts.SpeedFactor = 2.0

	orch := NewOrchestrator(deps, opts)
	if _, err := orch.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(det.seen.Segments) != 2 {
		t.Fatalf("detector saw %d segments", len(det.seen.Segments))
	}
	if det.seen.Segments[1].Start != 40 || det.seen.Segments[1].End != 140 {
		t.Fatalf("timestamps not rescaled to original-speed time: %+v", det.seen.Segments[1])
	}
}

func TestRun_CancelledContextAborts(t *testing.T) {
	deps, _, _, _, _ := testDeps()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	orch := NewOrchestrator(deps, testOptions(t))
	report, err := orch.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if report.State != StateAborted {
		t.Fatalf("expected aborted, got %s", report.State)
	}
}

func TestRun_PlatformFanOut(t *testing.T) {
	deps, _, _, det, _ := testDeps()
	det.cands = det.cands[:1]
	opts := testOptions(t)
	opts.Platforms = []types.Platform{types.PlatformInstagram, types.PlatformTikTok, types.PlatformYouTubeShorts}

	orch := NewOrchestrator(deps, opts)
	report, err := orch.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(report.Reels) != 3 {
		t.Fatalf("expected one reel per platform, got %d", len(report.Reels))
	}
	seen := map[types.Platform]bool{}
	for _, r := range report.Reels {
		seen[r.Platform] = true
	}
	if len(seen) != 3 {
		t.Fatalf("expected 3 distinct platforms, got %v", seen)
	}
}

func TestRun_BurnSubtitlesPassesTrackFile(t *testing.T) {
	deps, _, _, det, _ := testDeps()
	det.cands = det.cands[:1]
	burner := &fakeBurner{}
	deps.Burner = burner
	opts := testOptions(t)
	opts.BurnSubtitles = true

	orch := NewOrchestrator(deps, opts)
	report, err := orch.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if burner.burns != 1 {
		t.Fatalf("expected 1 burn, got %d", burner.burns)
	}
	if len(report.Reels) != 1 {
		t.Fatalf("expected 1 reel, got %d", len(report.Reels))
	}
}

func TestRun_SubtitleFailureSkipsHighlight(t *testing.T) {
	deps, _, _, det, _ := testDeps()
	det.cands = det.cands[:1]
	deps.Subtitles = fakeSubtitles{err: stagerun.Wrapf(stagerun.KindEncoding, "fake subtitles", "bad text")}
	opts := testOptions(t)
	opts.BurnSubtitles = true

	orch := NewOrchestrator(deps, opts)
	report, err := orch.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(report.Reels) != 0 {
		t.Fatalf("expected no reels, got %d", len(report.Reels))
	}
	if len(report.Failures) != 1 || report.Failures[0].Stage != "subtitle_generate" {
		t.Fatalf("unexpected failures: %+v", report.Failures)
	}
}

func TestPool_BoundedConcurrencyAndScratchCleanup(t *testing.T) {
	deps, _, _, det, clips := testDeps()
	det.cands = []types.Candidate{
		{Start: sec(0), End: sec(40), Score: 9},
		{Start: sec(50), End: sec(90), Score: 8},
		{Start: sec(100), End: sec(140), Score: 7},
	}
	opts := testOptions(t)
	opts.Workers = 2

	orch := NewOrchestrator(deps, opts)
	if _, err := orch.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if clips.maxSeen > 2 {
		t.Fatalf("worker bound violated: %d concurrent extractions", clips.maxSeen)
	}
	entries, err := os.ReadDir(filepath.Join(opts.OutDir, "tmp"))
	if err == nil && len(entries) != 0 {
		t.Fatalf("scratch dirs not released: %v", entries)
	}
}

func TestRescaleTranscript(t *testing.T) {
	tr := types.Transcript{Segments: []types.Segment{
		{Start: 10, End: 20, Text: "x", Words: []types.Word{{Start: 11, End: 12, Word: "x"}}},
	}}
	out := rescaleTranscript(tr, 2.0)
	if out.Segments[0].Start != 20 || out.Segments[0].End != 40 {
		t.Fatalf("segment not rescaled: %+v", out.Segments[0])
	}
	if out.Segments[0].Words[0].Start != 22 || out.Segments[0].Words[0].End != 24 {
		t.Fatalf("word not rescaled: %+v", out.Segments[0].Words[0])
	}
	// Identity factor returns the transcript untouched.
	same := rescaleTranscript(tr, 1.0)
	if same.Segments[0].Start != 10 {
		t.Fatalf("identity rescale changed data: %+v", same.Segments[0])
	}
}
