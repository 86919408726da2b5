package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"loopforge/internal/config"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "absent.toml")

	cfg, resolved, exists, err := config.Load(missing)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if exists {
		t.Fatal("expected exists=false for missing file")
	}
	if resolved != missing {
		t.Fatalf("resolved path = %q, want %q", resolved, missing)
	}
	if cfg.Rendering.Engine != "comfyui" {
		t.Fatalf("default engine = %q, want comfyui", cfg.Rendering.Engine)
	}
	if cfg.Generation.DefaultCount != 5 {
		t.Fatalf("default count = %d, want 5", cfg.Generation.DefaultCount)
	}
}

func TestLoadOverridesAndNormalizes(t *testing.T) {
	path := writeConfig(t, `
[rendering]
engine = "InvokeAI"
draft_resolution = "1080P"

[upload]
platforms = ["YouTube", "tiktok"]
`)

	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected exists=true")
	}
	if cfg.Rendering.Engine != "invokeai" {
		t.Fatalf("engine = %q, want invokeai", cfg.Rendering.Engine)
	}
	if cfg.Rendering.DraftResolution != "1080p" {
		t.Fatalf("draft resolution = %q, want 1080p", cfg.Rendering.DraftResolution)
	}
	if got := cfg.Upload.Platforms[0]; got != "youtube" {
		t.Fatalf("platform = %q, want youtube", got)
	}
}

func TestLoadExpandsPaths(t *testing.T) {
	path := writeConfig(t, `
[paths]
prompts_dir = "~/forge/prompts"
`)

	cfg, _, _, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		t.Fatalf("UserHomeDir: %v", err)
	}
	want := filepath.Join(home, "forge", "prompts")
	if cfg.Paths.PromptsDir != want {
		t.Fatalf("prompts dir = %q, want %q", cfg.Paths.PromptsDir, want)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(cfg *config.Config)
		fragment string
	}{
		{
			name:     "unknown engine",
			mutate:   func(cfg *config.Config) { cfg.Rendering.Engine = "blender" },
			fragment: "rendering.engine",
		},
		{
			name:     "unknown resolution",
			mutate:   func(cfg *config.Config) { cfg.Rendering.DraftResolution = "480p" },
			fragment: "rendering.draft_resolution",
		},
		{
			name:     "unknown platform",
			mutate:   func(cfg *config.Config) { cfg.Upload.Platforms = []string{"vimeo"} },
			fragment: "upload.platforms",
		},
		{
			name:     "no platforms",
			mutate:   func(cfg *config.Config) { cfg.Upload.Platforms = nil },
			fragment: "upload.platforms",
		},
		{
			name:     "opacity out of range",
			mutate:   func(cfg *config.Config) { cfg.Video.WatermarkOpacity = 1.5 },
			fragment: "watermark_opacity",
		},
		{
			name:     "bad log format",
			mutate:   func(cfg *config.Config) { cfg.Logging.Format = "xml" },
			fragment: "logging.format",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.fragment) {
				t.Fatalf("error %q missing fragment %q", err, tc.fragment)
			}
		})
	}
}

func TestSampleConfigParses(t *testing.T) {
	path := writeConfig(t, config.SampleConfig())

	cfg, _, _, err := config.Load(path)
	if err != nil {
		t.Fatalf("sample config failed to load: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("sample config failed validation: %v", err)
	}
}

func TestEnsureDirectories(t *testing.T) {
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.PromptsDir = filepath.Join(base, "prompts")
	cfg.Paths.RenderedDir = filepath.Join(base, "rendered")
	cfg.Paths.FinalDir = filepath.Join(base, "final")
	cfg.Paths.UploadsDir = filepath.Join(base, "uploads")
	cfg.Paths.LogDir = filepath.Join(base, "logs")

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	for _, dir := range []string{cfg.Paths.PromptsDir, cfg.Paths.RenderedDir, cfg.Paths.FinalDir, cfg.Paths.UploadsDir, cfg.Paths.LogDir} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("stat %s: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("%s is not a directory", dir)
		}
	}
}
