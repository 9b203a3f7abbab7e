// Package whispercpp transcribes audio with a local whisper.cpp binary.
package whispercpp

import (
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/autoreel/autoreel/internal/stagerun"
	"github.com/autoreel/autoreel/internal/types"
)

type Adapter struct {
	bin   string
	model string
}

func New(binPath, modelPath string) *Adapter {
	return &Adapter{bin: binPath, model: modelPath}
}

func (a *Adapter) Transcribe(ctx context.Context, audio types.AudioTrack) (types.Transcript, error) {
	outPrefix := filepath.Join(filepath.Dir(audio.Path), "whisper")
	args := []string{
		"-m", a.model,
		"-f", audio.Path,
		"-oj",
		"-of", outPrefix,
		"-owts",
	}
	cmd := exec.CommandContext(ctx, a.bin, args...)
	if b, err := cmd.CombinedOutput(); err != nil {
		return types.Transcript{}, stagerun.Wrapf(stagerun.KindToolFailure, "whisper.cpp", "%v\n%s", err, string(b))
	}

	jb, err := os.ReadFile(outPrefix + ".json")
	if err != nil {
		return types.Transcript{}, stagerun.Wrap(stagerun.KindToolFailure, "whisper.cpp output", err)
	}

	var tr types.Transcript
	if err := json.Unmarshal(jb, &tr); err != nil {
		return types.Transcript{}, stagerun.Wrap(stagerun.KindToolFailure, "whisper.cpp output", err)
	}
	for i := range tr.Segments {
		tr.Segments[i].Text = strings.TrimSpace(tr.Segments[i].Text)
		for j := range tr.Segments[i].Words {
			tr.Segments[i].Words[j].Word = strings.TrimSpace(tr.Segments[i].Words[j].Word)
		}
	}
	return tr, nil
}
