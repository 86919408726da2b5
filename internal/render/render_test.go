package render_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"loopforge/internal/config"
	"loopforge/internal/logging"
	"loopforge/internal/render"
	"loopforge/internal/services"
)

func TestDimensions(t *testing.T) {
	tests := []struct {
		tier   string
		aspect string
		width  int
		height int
		ok     bool
	}{
		{tier: "720p", aspect: "1:1", width: 720, height: 720, ok: true},
		{tier: "720p", aspect: "9:16", width: 720, height: 1280, ok: true},
		{tier: "1080p", aspect: "1:1", width: 1080, height: 1080, ok: true},
		{tier: "1080p", aspect: "9:16", width: 1080, height: 1920, ok: true},
		{tier: "480p", aspect: "1:1", width: 512, height: 512, ok: false},
		{tier: "720p", aspect: "4:3", width: 512, height: 512, ok: false},
		{tier: "", aspect: "", width: 512, height: 512, ok: false},
	}

	for _, tc := range tests {
		t.Run(tc.tier+"/"+tc.aspect, func(t *testing.T) {
			w, h, ok := render.Dimensions(tc.tier, tc.aspect)
			if w != tc.width || h != tc.height || ok != tc.ok {
				t.Fatalf("Dimensions(%q, %q) = (%d, %d, %v), want (%d, %d, %v)",
					tc.tier, tc.aspect, w, h, ok, tc.width, tc.height, tc.ok)
			}
		})
	}
}

func TestRegistryGet(t *testing.T) {
	cfg := config.Default()
	registry := render.NewRegistry(&cfg, logging.NewNop())

	for _, name := range []string{"comfyui", "invokeai", " ComfyUI "} {
		renderer, err := registry.Get(name)
		if err != nil {
			t.Fatalf("Get(%q): %v", name, err)
		}
		if renderer == nil {
			t.Fatalf("Get(%q) returned nil renderer", name)
		}
	}

	if _, err := registry.Get("blender"); err == nil {
		t.Fatal("expected error for unknown engine")
	} else if !services.IsTerminal(err) {
		t.Fatalf("unknown engine error = %v, want terminal", err)
	}
}

func writeWorkflow(t *testing.T, dir string) string {
	t.Helper()
	workflow := map[string]map[string]any{
		"3": {"class_type": "KSampler", "inputs": map[string]any{"steps": 20}},
		"5": {"class_type": "EmptyLatentImage", "inputs": map[string]any{"width": 512, "height": 512}},
		"6": {"class_type": "CLIPTextEncode", "inputs": map[string]any{"text": "placeholder"}},
	}
	data, err := json.Marshal(workflow)
	if err != nil {
		t.Fatalf("marshal workflow: %v", err)
	}
	path := filepath.Join(dir, "workflow.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write workflow: %v", err)
	}
	return path
}

func TestComfyUIRenderProducesArtifact(t *testing.T) {
	dir := t.TempDir()
	outputDir := filepath.Join(dir, "out")
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	var gotWorkflow map[string]map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Prompt   map[string]map[string]any `json:"prompt"`
			ClientID string                    `json:"client_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode submit body: %v", err)
		}
		gotWorkflow = req.Prompt
		// The backend finishes before the wait window elapses.
		if err := os.WriteFile(filepath.Join(outputDir, "render_0001.mp4"), []byte("clip"), 0o644); err != nil {
			t.Errorf("write artifact: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]string{"prompt_id": "p-1"})
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Rendering.ComfyUI.APIURL = server.URL
	cfg.Rendering.ComfyUI.OutputDir = outputDir
	cfg.Rendering.ComfyUI.WorkflowFile = writeWorkflow(t, dir)
	cfg.Rendering.ComfyUI.WaitSeconds = 0

	registry := render.NewRegistry(&cfg, logging.NewNop())
	renderer, err := registry.Get("comfyui")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	artifact, err := renderer.Render(context.Background(), render.Request{
		Prompt: "rain on a window",
		Width:  720,
		Height: 1280,
	})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if filepath.Base(artifact) != "render_0001.mp4" {
		t.Fatalf("artifact = %s", artifact)
	}

	text := gotWorkflow["6"]["inputs"].(map[string]any)["text"]
	if text != "rain on a window" {
		t.Fatalf("prompt node text = %v", text)
	}
	latent := gotWorkflow["5"]["inputs"].(map[string]any)
	if latent["width"] != float64(720) || latent["height"] != float64(1280) {
		t.Fatalf("latent dimensions = %v x %v", latent["width"], latent["height"])
	}
}

func TestComfyUIRenderMissingArtifactIsTransient(t *testing.T) {
	dir := t.TempDir()
	outputDir := filepath.Join(dir, "out")
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Accept the job but never produce a file.
		json.NewEncoder(w).Encode(map[string]string{"prompt_id": "p-1"})
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Rendering.ComfyUI.APIURL = server.URL
	cfg.Rendering.ComfyUI.OutputDir = outputDir
	cfg.Rendering.ComfyUI.WorkflowFile = writeWorkflow(t, dir)
	cfg.Rendering.ComfyUI.WaitSeconds = 0

	registry := render.NewRegistry(&cfg, logging.NewNop())
	renderer, _ := registry.Get("comfyui")

	_, err := renderer.Render(context.Background(), render.Request{Prompt: "p", Width: 512, Height: 512})
	if err == nil {
		t.Fatal("expected error when no artifact appears")
	}
	if !services.IsTransient(err) {
		t.Fatalf("missing artifact error = %v, want transient", err)
	}
}

func TestComfyUIRenderRequiresWorkflowFile(t *testing.T) {
	cfg := config.Default()
	cfg.Rendering.ComfyUI.WorkflowFile = ""

	registry := render.NewRegistry(&cfg, logging.NewNop())
	renderer, _ := registry.Get("comfyui")

	_, err := renderer.Render(context.Background(), render.Request{Prompt: "p", Width: 512, Height: 512})
	if err == nil {
		t.Fatal("expected configuration error")
	}
	if !services.IsTerminal(err) {
		t.Fatalf("error = %v, want terminal", err)
	}
}

func TestInvokeAIRenderSubmitsBatch(t *testing.T) {
	outputDir := t.TempDir()

	var got map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if err := os.WriteFile(filepath.Join(outputDir, "invoke_0001.png"), []byte("frame"), 0o644); err != nil {
			t.Errorf("write artifact: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Rendering.InvokeAI.APIURL = server.URL
	cfg.Rendering.InvokeAI.OutputDir = outputDir
	cfg.Rendering.InvokeAI.BatchSize = 4
	cfg.Rendering.InvokeAI.WaitSeconds = 0

	registry := render.NewRegistry(&cfg, logging.NewNop())
	renderer, _ := registry.Get("invokeai")

	artifact, err := renderer.Render(context.Background(), render.Request{Prompt: "p", Width: 720, Height: 720})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if filepath.Base(artifact) != "invoke_0001.png" {
		t.Fatalf("artifact = %s", artifact)
	}
	if got["batch_size"] != float64(4) {
		t.Fatalf("batch_size = %v", got["batch_size"])
	}
	if got["width"] != float64(720) {
		t.Fatalf("width = %v", got["width"])
	}
}

func TestSupportedOptions(t *testing.T) {
	cfg := config.Default()
	registry := render.NewRegistry(&cfg, logging.NewNop())
	for _, name := range registry.Names() {
		renderer, err := registry.Get(name)
		if err != nil {
			t.Fatalf("Get(%q): %v", name, err)
		}
		if len(renderer.SupportedOptions()) == 0 {
			t.Fatalf("%s reports no supported options", name)
		}
	}
}
