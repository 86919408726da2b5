package render

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"loopforge/internal/config"
	"loopforge/internal/logging"
	"loopforge/internal/services"
)

type comfyUI struct {
	cfg    config.ComfyUI
	client *http.Client
	logger *slog.Logger
}

func newComfyUI(cfg config.ComfyUI, logger *slog.Logger) *comfyUI {
	return &comfyUI{
		cfg:    cfg,
		client: &http.Client{Timeout: 30 * time.Second},
		logger: logging.NewComponentLogger(logger, "comfyui"),
	}
}

func (c *comfyUI) Name() string { return "comfyui" }

func (c *comfyUI) SupportedOptions() []string {
	return []string{"workflow_file", "wait_seconds", "width", "height"}
}

// Render rewrites the configured workflow template with the request's prompt
// and latent dimensions, submits it, and waits out the expected completion
// window before collecting the newest file from the backend's output
// directory.
func (c *comfyUI) Render(ctx context.Context, req Request) (string, error) {
	workflow, err := c.loadWorkflow()
	if err != nil {
		return "", err
	}
	if err := rewriteWorkflow(workflow, req); err != nil {
		return "", err
	}

	body, err := json.Marshal(map[string]any{
		"prompt":    workflow,
		"client_id": uuid.NewString(),
	})
	if err != nil {
		return "", services.Wrap(services.ErrValidation, "render", "encode workflow", "", err)
	}

	submitted := time.Now()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.APIURL, bytes.NewReader(body))
	if err != nil {
		return "", services.Wrap(services.ErrConfiguration, "render", "build request", "", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", services.Wrap(services.ErrTransient, "render", "submit workflow", "comfyui unreachable", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", services.Wrap(services.ErrExternalTool, "render", "submit workflow",
			fmt.Sprintf("comfyui returned %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody))), nil)
	}

	var queued struct {
		PromptID string `json:"prompt_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&queued); err == nil && queued.PromptID != "" {
		c.logger.Info("workflow queued", logging.String("prompt_id", queued.PromptID))
	}

	wait := time.Duration(c.cfg.WaitSeconds) * time.Second
	return awaitArtifact(ctx, c.cfg.OutputDir, submitted, wait)
}

// ValidateEnvironment confirms the workflow template and output directory
// exist and the backend answers its stats endpoint.
func (c *comfyUI) ValidateEnvironment(ctx context.Context) error {
	if _, err := c.loadWorkflow(); err != nil {
		return err
	}
	if strings.TrimSpace(c.cfg.OutputDir) == "" {
		return services.Wrap(services.ErrConfiguration, "render", "validate", "comfyui output_dir is not configured", nil)
	}
	if _, err := os.Stat(c.cfg.OutputDir); err != nil {
		return services.Wrap(services.ErrConfiguration, "render", "validate", "comfyui output_dir is not readable", err)
	}

	statsURL := strings.TrimSuffix(c.cfg.APIURL, "/prompt") + "/system_stats"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, statsURL, nil)
	if err != nil {
		return services.Wrap(services.ErrConfiguration, "render", "validate", "bad comfyui api_url", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return services.Wrap(services.ErrTransient, "render", "validate", "comfyui unreachable", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return services.Wrap(services.ErrExternalTool, "render", "validate",
			fmt.Sprintf("comfyui stats endpoint returned %d", resp.StatusCode), nil)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func (c *comfyUI) loadWorkflow() (map[string]map[string]any, error) {
	path := strings.TrimSpace(c.cfg.WorkflowFile)
	if path == "" {
		return nil, services.Wrap(services.ErrConfiguration, "render", "load workflow", "comfyui workflow_file is not configured", nil)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "render", "load workflow", "", err)
	}
	var workflow map[string]map[string]any
	if err := json.Unmarshal(data, &workflow); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "render", "load workflow",
			fmt.Sprintf("workflow file %s is not valid JSON", path), err)
	}
	return workflow, nil
}

// rewriteWorkflow injects the prompt into the first text-encode node (by
// convention the positive prompt) and the dimensions into every latent-image
// node.
func rewriteWorkflow(workflow map[string]map[string]any, req Request) error {
	nodeIDs := make([]string, 0, len(workflow))
	for id := range workflow {
		nodeIDs = append(nodeIDs, id)
	}
	sort.Strings(nodeIDs)

	promptSet := false
	for _, id := range nodeIDs {
		node := workflow[id]
		classType, _ := node["class_type"].(string)
		inputs, _ := node["inputs"].(map[string]any)
		if inputs == nil {
			continue
		}
		switch classType {
		case "CLIPTextEncode":
			if !promptSet {
				inputs["text"] = req.Prompt
				promptSet = true
			}
		case "EmptyLatentImage":
			inputs["width"] = req.Width
			inputs["height"] = req.Height
		}
	}
	if !promptSet {
		return services.Wrap(services.ErrConfiguration, "render", "rewrite workflow",
			"workflow has no CLIPTextEncode node to receive the prompt", nil)
	}
	return nil
}
