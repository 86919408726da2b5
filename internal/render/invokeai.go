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
	"strings"
	"time"

	"loopforge/internal/config"
	"loopforge/internal/logging"
	"loopforge/internal/services"
)

type invokeAI struct {
	cfg    config.InvokeAI
	client *http.Client
	logger *slog.Logger
}

func newInvokeAI(cfg config.InvokeAI, logger *slog.Logger) *invokeAI {
	return &invokeAI{
		cfg:    cfg,
		client: &http.Client{Timeout: 30 * time.Second},
		logger: logging.NewComponentLogger(logger, "invokeai"),
	}
}

func (i *invokeAI) Name() string { return "invokeai" }

func (i *invokeAI) SupportedOptions() []string {
	return []string{"batch_size", "wait_seconds", "width", "height"}
}

// Render submits an invocation batch and waits out the expected completion
// window before collecting the newest file from the backend's output
// directory.
func (i *invokeAI) Render(ctx context.Context, req Request) (string, error) {
	batchSize := i.cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 1
	}
	body, err := json.Marshal(map[string]any{
		"prompt":     req.Prompt,
		"width":      req.Width,
		"height":     req.Height,
		"batch_size": batchSize,
	})
	if err != nil {
		return "", services.Wrap(services.ErrValidation, "render", "encode invocation", "", err)
	}

	submitted := time.Now()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, i.cfg.APIURL, bytes.NewReader(body))
	if err != nil {
		return "", services.Wrap(services.ErrConfiguration, "render", "build request", "", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := i.client.Do(httpReq)
	if err != nil {
		return "", services.Wrap(services.ErrTransient, "render", "submit invocation", "invokeai unreachable", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", services.Wrap(services.ErrExternalTool, "render", "submit invocation",
			fmt.Sprintf("invokeai returned %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody))), nil)
	}
	_, _ = io.Copy(io.Discard, resp.Body)

	wait := time.Duration(i.cfg.WaitSeconds) * time.Second
	return awaitArtifact(ctx, i.cfg.OutputDir, submitted, wait)
}

// ValidateEnvironment confirms the output directory exists and the backend
// answers its version endpoint.
func (i *invokeAI) ValidateEnvironment(ctx context.Context) error {
	if strings.TrimSpace(i.cfg.OutputDir) == "" {
		return services.Wrap(services.ErrConfiguration, "render", "validate", "invokeai output_dir is not configured", nil)
	}
	if _, err := os.Stat(i.cfg.OutputDir); err != nil {
		return services.Wrap(services.ErrConfiguration, "render", "validate", "invokeai output_dir is not readable", err)
	}

	versionURL := strings.TrimSuffix(i.cfg.APIURL, "/api/invocations") + "/api/v1/app/version"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, versionURL, nil)
	if err != nil {
		return services.Wrap(services.ErrConfiguration, "render", "validate", "bad invokeai api_url", err)
	}
	resp, err := i.client.Do(req)
	if err != nil {
		return services.Wrap(services.ErrTransient, "render", "validate", "invokeai unreachable", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return services.Wrap(services.ErrExternalTool, "render", "validate",
			fmt.Sprintf("invokeai version endpoint returned %d", resp.StatusCode), nil)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
