package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"loopforge/internal/config"
)

const userAgent = "loopforge/0.1.0"

// Service defines the alerting surface exposed to pipeline components.
// Every method is best-effort: callers log returned errors and continue.
type Service interface {
	NotifyStageCompleted(ctx context.Context, stageName string, processed, failed int) error
	NotifyStageFailed(ctx context.Context, stageName string, err error) error
	NotifyEmptyOutput(ctx context.Context, stageName, dir string) error
	NotifyItemFailed(ctx context.Context, stageName, itemID string, err error) error
	NotifyUploadCompleted(ctx context.Context, platform, title, url string) error
	NotifyPipelineCompleted(ctx context.Context, duration time.Duration) error
	NotifyPipelineFailed(ctx context.Context, failedStage string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service from configuration. A webhook URL
// and an ntfy topic may both be set; events fan out to every configured
// backend. With neither set a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	client := &http.Client{Timeout: timeout}

	var backends []sender
	if url := strings.TrimSpace(cfg.Notifications.WebhookURL); url != "" {
		backends = append(backends, &webhookSender{endpoint: url, client: client})
	}
	if topic := strings.TrimSpace(cfg.Notifications.NtfyTopic); topic != "" {
		backends = append(backends, &ntfySender{endpoint: topic, client: client})
	}
	if len(backends) == 0 {
		return noopService{}
	}
	return &service{backends: backends}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type sender interface {
	send(ctx context.Context, data payload) error
}

type service struct {
	backends []sender
}

var platformCaser = cases.Title(language.English)

// PlatformDisplayName renders a platform key for humans, e.g. "youtube"
// becomes "Youtube".
func PlatformDisplayName(platform string) string {
	return platformCaser.String(strings.TrimSpace(platform))
}

func (s *service) NotifyStageCompleted(ctx context.Context, stageName string, processed, failed int) error {
	var message string
	if failed == 0 {
		message = fmt.Sprintf("Stage %s complete: %d items processed", stageName, processed)
	} else {
		message = fmt.Sprintf("Stage %s complete: %d succeeded, %d failed", stageName, processed, failed)
	}
	return s.publish(ctx, payload{
		title:   "LoopForge - Stage Complete",
		message: message,
		tags:    []string{"loopforge", stageName, "completed"},
	})
}

func (s *service) NotifyStageFailed(ctx context.Context, stageName string, err error) error {
	detail := "unknown"
	if err != nil {
		detail = strings.TrimSpace(err.Error())
	}
	return s.publish(ctx, payload{
		title:    "LoopForge - Stage Failed",
		message:  fmt.Sprintf("Stage %s failed: %s", stageName, detail),
		tags:     []string{"loopforge", stageName, "failed"},
		priority: "high",
	})
}

func (s *service) NotifyEmptyOutput(ctx context.Context, stageName, dir string) error {
	return s.publish(ctx, payload{
		title:   "LoopForge - Empty Output",
		message: fmt.Sprintf("Stage %s finished but produced nothing in %s", stageName, dir),
		tags:    []string{"loopforge", stageName, "warning"},
	})
}

func (s *service) NotifyItemFailed(ctx context.Context, stageName, itemID string, err error) error {
	detail := "unknown"
	if err != nil {
		detail = strings.TrimSpace(err.Error())
	}
	return s.publish(ctx, payload{
		title:    "LoopForge - Item Failed",
		message:  fmt.Sprintf("Item %s failed in %s: %s", itemID, stageName, detail),
		tags:     []string{"loopforge", stageName, "item", "failed"},
		priority: "high",
	})
}

func (s *service) NotifyUploadCompleted(ctx context.Context, platform, title, url string) error {
	message := fmt.Sprintf("Uploaded to %s: %s", PlatformDisplayName(platform), strings.TrimSpace(title))
	if url = strings.TrimSpace(url); url != "" {
		message = fmt.Sprintf("%s\n%s", message, url)
	}
	return s.publish(ctx, payload{
		title:   "LoopForge - Upload Complete",
		message: message,
		tags:    []string{"loopforge", "upload", platform},
	})
}

func (s *service) NotifyPipelineCompleted(ctx context.Context, duration time.Duration) error {
	duration = duration.Round(time.Second)
	if duration < 0 {
		duration = 0
	}
	return s.publish(ctx, payload{
		title:    "LoopForge - Pipeline Complete",
		message:  fmt.Sprintf("All stages finished in %s", duration),
		tags:     []string{"loopforge", "pipeline", "completed"},
		priority: "high",
	})
}

func (s *service) NotifyPipelineFailed(ctx context.Context, failedStage string) error {
	return s.publish(ctx, payload{
		title:    "LoopForge - Pipeline Failed",
		message:  fmt.Sprintf("Pipeline halted at stage %s; later stages were not run", failedStage),
		tags:     []string{"loopforge", "pipeline", "failed"},
		priority: "high",
	})
}

func (s *service) TestNotification(ctx context.Context) error {
	return s.publish(ctx, payload{
		title:    "LoopForge - Test",
		message:  "Notification system test",
		tags:     []string{"loopforge", "test"},
		priority: "low",
	})
}

func (s *service) publish(ctx context.Context, data payload) error {
	var firstErr error
	for _, backend := range s.backends {
		if err := backend.send(ctx, data); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

type ntfySender struct {
	endpoint string
	client   *http.Client
}

func (n *ntfySender) send(ctx context.Context, data payload) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type webhookSender struct {
	endpoint string
	client   *http.Client
}

func (w *webhookSender) send(ctx context.Context, data payload) error {
	text := data.message
	if data.title != "" {
		text = data.title + "\n" + data.message
	}
	body, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return fmt.Errorf("encode webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("send webhook notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("webhook returned %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifyStageCompleted(context.Context, string, int, int) error      { return nil }
func (noopService) NotifyStageFailed(context.Context, string, error) error            { return nil }
func (noopService) NotifyEmptyOutput(context.Context, string, string) error           { return nil }
func (noopService) NotifyItemFailed(context.Context, string, string, error) error     { return nil }
func (noopService) NotifyUploadCompleted(context.Context, string, string, string) error {
	return nil
}
func (noopService) NotifyPipelineCompleted(context.Context, time.Duration) error { return nil }
func (noopService) NotifyPipelineFailed(context.Context, string) error           { return nil }
func (noopService) TestNotification(context.Context) error                       { return nil }

// Noop returns the do-nothing service, useful as a default dependency.
func Noop() Service {
	return noopService{}
}
