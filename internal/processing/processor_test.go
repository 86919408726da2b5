package processing_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"loopforge/internal/config"
	"loopforge/internal/fileutil"
	"loopforge/internal/items"
	"loopforge/internal/logging"
	"loopforge/internal/processing"
	"loopforge/internal/services"
	"loopforge/internal/services/ffmpeg"
	"loopforge/internal/services/whisper"
)

// toolRunner fakes both ffmpeg and whisper by writing the expected output
// file for each invocation.
type toolRunner struct {
	t        *testing.T
	commands []string
}

func (r *toolRunner) Run(_ context.Context, name string, args ...string) (string, error) {
	r.commands = append(r.commands, name+" "+strings.Join(args, " "))
	switch name {
	case "ffmpeg":
		dst := args[len(args)-1]
		if err := os.WriteFile(dst, []byte("video"), 0o644); err != nil {
			r.t.Errorf("write ffmpeg output: %v", err)
		}
	case "whisper":
		source := args[0]
		outputDir := args[len(args)-1]
		srt := filepath.Join(outputDir, fileutil.BaseName(source)+".srt")
		if err := os.WriteFile(srt, []byte("1\n00:00:00,000 --> 00:00:01,000\nhi\n"), 0o644); err != nil {
			r.t.Errorf("write srt: %v", err)
		}
	}
	return "", nil
}

func (r *toolRunner) ran(fragment string) bool {
	for _, cmd := range r.commands {
		if strings.Contains(cmd, fragment) {
			return true
		}
	}
	return false
}

func setup(t *testing.T, opts processing.Options) (*config.Config, *toolRunner, *processing.Processor) {
	t.Helper()
	cfg := config.Default()
	cfg.Paths.RenderedDir = t.TempDir()
	cfg.Paths.FinalDir = t.TempDir()
	cfg.Paths.BRollDir = t.TempDir()
	cfg.Paths.BrandingDir = t.TempDir()

	runner := &toolRunner{t: t}
	proc := processing.New(&cfg,
		ffmpeg.NewService("ffmpeg", runner),
		whisper.NewService("whisper", runner),
		opts,
		logging.NewNop())
	return &cfg, runner, proc
}

func renderedItem(t *testing.T, cfg *config.Config, caption string) *items.WorkItem {
	t.Helper()
	item := items.New("rain on a window", "placeholder", []string{"rain"}, items.AspectSquare)
	item.Caption = caption
	clip := filepath.Join(cfg.Paths.RenderedDir, "clip_test.mp4")
	if err := os.WriteFile(clip, []byte("rendered"), 0o644); err != nil {
		t.Fatalf("write clip: %v", err)
	}
	item.Metadata.OutputPath = clip
	if err := item.Advance(items.StatusRendered); err != nil {
		t.Fatalf("advance: %v", err)
	}
	path := filepath.Join(cfg.Paths.RenderedDir, "clip_test.json")
	if err := items.SaveTo(item, path); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, err := items.Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	return loaded
}

func writeBranding(t *testing.T, cfg *config.Config) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(cfg.Paths.BrandingDir, cfg.Video.WatermarkFile), []byte("png"), 0o644); err != nil {
		t.Fatalf("write branding: %v", err)
	}
}

func readSidecar(t *testing.T, finalPath string) []string {
	t.Helper()
	data, err := os.ReadFile(fileutil.CompanionPath(finalPath, "_steps.json"))
	if err != nil {
		t.Fatalf("read sidecar: %v", err)
	}
	var sidecar struct {
		Applied []string `json:"applied"`
	}
	if err := json.Unmarshal(data, &sidecar); err != nil {
		t.Fatalf("parse sidecar: %v", err)
	}
	return sidecar.Applied
}

func TestProcessFullChainWithCaptionText(t *testing.T) {
	cfg, runner, proc := setup(t, processing.Options{})
	writeBranding(t, cfg)
	item := renderedItem(t, cfg, "Rainy focus vibes")

	finalPath, err := proc.Process(context.Background(), item)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if !fileutil.Exists(finalPath) {
		t.Fatal("final artifact missing")
	}

	applied := readSidecar(t, finalPath)
	want := []string{processing.StepLoop, processing.StepCaptions, processing.StepWatermark}
	if strings.Join(applied, ",") != strings.Join(want, ",") {
		t.Fatalf("applied = %v, want %v", applied, want)
	}
	if !runner.ran("drawtext") {
		t.Fatal("expected drawtext invocation for caption text")
	}
	if runner.ran("whisper") {
		t.Fatal("whisper must not run when the item carries a caption")
	}

	reloaded, err := items.Load(item.Path())
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.Metadata.Status != items.StatusProcessed {
		t.Fatalf("status = %s, want processed", reloaded.Metadata.Status)
	}
	if reloaded.Metadata.FinalPath != finalPath {
		t.Fatalf("final_path = %s, want %s", reloaded.Metadata.FinalPath, finalPath)
	}

	handoff, err := items.ScanDir(cfg.Paths.FinalDir, logging.NewNop())
	if err != nil {
		t.Fatalf("scan final dir: %v", err)
	}
	if len(handoff) != 1 {
		t.Fatalf("final dir items = %d, want 1", len(handoff))
	}
}

func TestProcessTranscriptionFallback(t *testing.T) {
	cfg, runner, proc := setup(t, processing.Options{})
	cfg.Video.Watermark = false
	item := renderedItem(t, cfg, "")

	finalPath, err := proc.Process(context.Background(), item)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if !runner.ran("whisper") {
		t.Fatal("expected whisper transcription for caption-less item")
	}
	if !runner.ran("subtitles=") {
		t.Fatal("expected subtitle burn-in")
	}
	applied := readSidecar(t, finalPath)
	if !contains(applied, processing.StepCaptions) {
		t.Fatalf("applied = %v, want captions", applied)
	}
}

func TestProcessSkipsWatermarkWhenAssetMissing(t *testing.T) {
	cfg, _, proc := setup(t, processing.Options{})
	item := renderedItem(t, cfg, "cap")

	finalPath, err := proc.Process(context.Background(), item)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	applied := readSidecar(t, finalPath)
	if contains(applied, processing.StepWatermark) {
		t.Fatalf("applied = %v, watermark must be skipped without an asset", applied)
	}
}

func TestProcessBRollApplied(t *testing.T) {
	cfg, runner, proc := setup(t, processing.Options{SkipCaptions: true, SkipWatermark: true})
	cfg.Video.AutoBRoll = true
	if err := os.WriteFile(filepath.Join(cfg.Paths.BRollDir, "city.mp4"), []byte("broll"), 0o644); err != nil {
		t.Fatalf("write b-roll: %v", err)
	}
	item := renderedItem(t, cfg, "cap")

	finalPath, err := proc.Process(context.Background(), item)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	applied := readSidecar(t, finalPath)
	want := []string{processing.StepLoop, processing.StepBRoll}
	if strings.Join(applied, ",") != strings.Join(want, ",") {
		t.Fatalf("applied = %v, want %v", applied, want)
	}
	if !runner.ran("overlay") {
		t.Fatal("expected overlay invocation")
	}
}

func TestProcessBRollSkippedWhenDirEmpty(t *testing.T) {
	cfg, _, proc := setup(t, processing.Options{SkipCaptions: true, SkipWatermark: true})
	cfg.Video.AutoBRoll = true
	item := renderedItem(t, cfg, "cap")

	finalPath, err := proc.Process(context.Background(), item)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	applied := readSidecar(t, finalPath)
	if contains(applied, processing.StepBRoll) {
		t.Fatalf("applied = %v, b-roll must be skipped with an empty asset dir", applied)
	}
}

func TestProcessMissingSourceIsTerminal(t *testing.T) {
	cfg, _, proc := setup(t, processing.Options{})
	item := renderedItem(t, cfg, "cap")
	if err := os.Remove(item.Metadata.OutputPath); err != nil {
		t.Fatalf("remove source: %v", err)
	}

	_, err := proc.Process(context.Background(), item)
	if err == nil {
		t.Fatal("expected error for missing source")
	}
	if !services.IsTerminal(err) {
		t.Fatalf("error = %v, want terminal", err)
	}
}

func contains(values []string, want string) bool {
	for _, v := range values {
		if v == want {
			return true
		}
	}
	return false
}
