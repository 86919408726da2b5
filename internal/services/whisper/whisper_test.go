package whisper_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"loopforge/internal/services/whisper"
)

type fakeRunner struct {
	onRun func(name string, args []string)
	err   error
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) (string, error) {
	if f.onRun != nil {
		f.onRun(name, args)
	}
	return "", f.err
}

func TestTranscribeReturnsSRTPath(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "clip_ab12.mp4")
	wantSRT := filepath.Join(dir, "clip_ab12.srt")

	runner := &fakeRunner{onRun: func(name string, args []string) {
		if name != "whisper" {
			t.Errorf("binary = %q", name)
		}
		if !strings.Contains(strings.Join(args, " "), "--output_format srt") {
			t.Errorf("args = %v, want srt output format", args)
		}
		if err := os.WriteFile(wantSRT, []byte("1\n00:00:00,000 --> 00:00:01,000\nhi\n"), 0o644); err != nil {
			t.Errorf("write srt: %v", err)
		}
	}}

	svc := whisper.NewService("whisper", runner)
	srt, err := svc.Transcribe(context.Background(), source, dir)
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if srt != wantSRT {
		t.Fatalf("srt = %s, want %s", srt, wantSRT)
	}
}

func TestTranscribeFailsWhenSRTMissing(t *testing.T) {
	dir := t.TempDir()
	svc := whisper.NewService("whisper", &fakeRunner{})

	if _, err := svc.Transcribe(context.Background(), filepath.Join(dir, "clip.mp4"), dir); err == nil {
		t.Fatal("expected error when whisper writes nothing")
	}
}
