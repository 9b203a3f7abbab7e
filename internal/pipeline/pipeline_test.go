package pipeline

import (
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestBuildRunOutDir(t *testing.T) {
	now := time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)
	got := buildRunOutDir("/out", "/videos/My Talk (final).mp4", now)

	dir, base := filepath.Split(got)
	if filepath.Clean(dir) != "/out" {
		t.Fatalf("unexpected parent dir: %q", dir)
	}
	if !strings.HasPrefix(base, "my-talk-final-20260314-150926Z-") {
		t.Fatalf("unexpected run dir name: %q", base)
	}
	suffix := base[strings.LastIndex(base, "-")+1:]
	if len(suffix) != 6 {
		t.Fatalf("expected 6-char hash suffix, got %q", suffix)
	}
}

func TestBuildRunOutDir_EmptyName(t *testing.T) {
	now := time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)
	got := buildRunOutDir("/out", "/videos/???.mp4", now)
	if !strings.HasPrefix(filepath.Base(got), "input-") {
		t.Fatalf("expected fallback name, got %q", got)
	}
}

func TestNormalizePathSegment(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"My Talk (final)", "my-talk-final"},
		{"  hello  world  ", "hello-world"},
		{"already-fine", "already-fine"},
		{"___", ""},
		{"Ep. 42: Go & Concurrency!", "ep-42-go-concurrency"},
	}
	for _, c := range cases {
		if got := normalizePathSegment(c.in); got != c.want {
			t.Errorf("normalizePathSegment(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestHash(t *testing.T) {
	a := hash("https://example.com/v.mp4")
	b := hash("https://example.com/v.mp4")
	c := hash("https://example.com/other.mp4")
	if a != b {
		t.Fatal("hash must be stable")
	}
	if a == c {
		t.Fatal("distinct inputs must not collide on the short hash")
	}
	if len(a) != 12 {
		t.Fatalf("expected 12-char hash, got %q", a)
	}
}
