// Package subtitles builds clip-local subtitle tracks from transcript
// segments and renders them as ASS files for burn-in.
package subtitles

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/autoreel/autoreel/internal/stagerun"
	"github.com/autoreel/autoreel/internal/types"
)

// SegmentsInWindow returns the transcript segments overlapping
// [start, end), clamped to the window and re-based so the clip starts at 0.
// Word timestamps are re-based the same way.
func SegmentsInWindow(tr types.Transcript, start, end time.Duration) []types.Segment {
	startSec := start.Seconds()
	endSec := end.Seconds()
	var out []types.Segment
	for _, s := range tr.Segments {
		if s.End <= startSec || s.Start >= endSec {
			continue
		}
		seg := types.Segment{
			Start:      clamp(s.Start, startSec, endSec) - startSec,
			End:        clamp(s.End, startSec, endSec) - startSec,
			Text:       strings.TrimSpace(s.Text),
			Confidence: s.Confidence,
		}
		for _, w := range s.Words {
			if w.End <= startSec || w.Start >= endSec {
				continue
			}
			seg.Words = append(seg.Words, types.Word{
				Start: clamp(w.Start, startSec, endSec) - startSec,
				End:   clamp(w.End, startSec, endSec) - startSec,
				Word:  strings.TrimSpace(w.Word),
			})
		}
		out = append(out, seg)
	}
	return out
}

// Generator is the default subtitle track builder.
type Generator struct{}

// Generate builds timed cues from re-based segments. Word timestamps are
// preferred when present; they give tighter line pacing than full segments.
func (Generator) Generate(segments []types.Segment) (types.SubtitleTrack, error) {
	for _, s := range segments {
		if !utf8.ValidString(s.Text) {
			return types.SubtitleTrack{}, stagerun.Wrapf(stagerun.KindEncoding, "subtitles", "segment at %.2fs is not valid UTF-8", s.Start)
		}
	}

	words := collectWords(segments)
	if len(words) > 0 {
		return types.SubtitleTrack{Cues: packWords(words)}, nil
	}

	var cues []types.SubtitleCue
	for _, s := range segments {
		if s.Text == "" {
			continue
		}
		cues = append(cues, types.SubtitleCue{
			Start: dur(s.Start),
			End:   dur(s.End),
			Text:  s.Text,
		})
	}
	return types.SubtitleTrack{Cues: cues}, nil
}

func collectWords(segments []types.Segment) []types.SubtitleWord {
	var out []types.SubtitleWord
	for _, s := range segments {
		for _, w := range s.Words {
			if w.End <= w.Start || strings.TrimSpace(w.Word) == "" {
				continue
			}
			out = append(out, types.SubtitleWord{Start: dur(w.Start), End: dur(w.End), Text: strings.TrimSpace(w.Word)})
		}
	}
	return out
}

// packWords groups words into cue lines, keeping each word's timing on the
// cue for karaoke rendering. Hard budgets trade exact transcript grouping for
// consistently readable chunks on vertical-video layouts.
func packWords(words []types.SubtitleWord) []types.SubtitleCue {
	const (
		charBudget = 32
		wordBudget = 7
	)

	var out []types.SubtitleCue
	cur := types.SubtitleCue{Start: words[0].Start}
	var parts []string
	curLen := 0
	for i, w := range words {
		wl := len([]rune(w.Text))
		nextLen := curLen + wl
		if curLen > 0 {
			nextLen++
		}
		if len(parts) >= wordBudget || (curLen > 0 && nextLen > charBudget) {
			cur.Text = strings.Join(parts, " ")
			out = append(out, cur)
			cur = types.SubtitleCue{Start: w.Start}
			parts = parts[:0]
			curLen = 0
		}
		parts = append(parts, w.Text)
		cur.Words = append(cur.Words, w)
		if curLen > 0 {
			curLen++
		}
		curLen += wl
		cur.End = w.End
		if i == len(words)-1 {
			cur.Text = strings.Join(parts, " ")
			out = append(out, cur)
		}
	}
	return out
}

// RenderASS renders a track as an ASS subtitle file for a 1080x1920 vertical
// canvas. Cues with word timings render as karaoke with per-word highlight
// pacing; cues without fall back to plain dialogue lines.
func RenderASS(track types.SubtitleTrack) string {
	var b strings.Builder
	b.WriteString(assHeader())
	b.WriteString("\n[Events]\n")
	b.WriteString("Format: Layer, Start, End, Style, Name, MarginL, MarginR, MarginV, Effect, Text\n")
	for _, cue := range track.Cues {
		b.WriteString("Dialogue: 0,")
		b.WriteString(assTime(cue.Start))
		b.WriteString(",")
		b.WriteString(assTime(cue.End))
		b.WriteString(",Reel,,0,0,0,,")
		if len(cue.Words) > 0 {
			for _, w := range cue.Words {
				durCS := int((w.End - w.Start) / (10 * time.Millisecond))
				if durCS < 1 {
					durCS = 1
				}
				fmt.Fprintf(&b, "{\\k%d}%s ", durCS, sanitizeASS(w.Text))
			}
		} else {
			b.WriteString(sanitizeASS(cue.Text))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func assHeader() string {
	return strings.TrimSpace(`
[Script Info]
ScriptType: v4.00+
PlayResX: 1080
PlayResY: 1920
ScaledBorderAndShadow: yes

[V4+ Styles]
Format: Name, Fontname, Fontsize, PrimaryColour, SecondaryColour, OutlineColour, BackColour, Bold, Italic, Underline, StrikeOut, ScaleX, ScaleY, Spacing, Angle, BorderStyle, Outline, Shadow, Alignment, MarginL, MarginR, MarginV, Encoding
Style: Reel, Inter, 84, &H00FFFFFF, &H00FFD200, &H00000000, &H64000000, 1,0,0,0,100,100,0,0,1,6,2,2, 80,80,220,1
`)
}

func assTime(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	hs := int(d / time.Hour)
	d -= time.Duration(hs) * time.Hour
	ms := int(d / time.Minute)
	d -= time.Duration(ms) * time.Minute
	s := int(d / time.Second)
	d -= time.Duration(s) * time.Second
	cs := int(d / (10 * time.Millisecond))
	return fmt.Sprintf("%d:%02d:%02d.%02d", hs, ms, s, cs)
}

func sanitizeASS(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "{", "(")
	s = strings.ReplaceAll(s, "}", ")")
	return strings.TrimSpace(s)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func dur(sec float64) time.Duration { return time.Duration(sec * float64(time.Second)) }
