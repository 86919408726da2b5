// Package ytupload wraps the yt-upload CLI and the post-upload availability
// check. Uploading hands the artifact to the external tool; verification
// polls until the platform reports the video playable, rejected, or gone.
package ytupload

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"
	"unicode"

	"loopforge/internal/config"
	"loopforge/internal/services"
)

// Availability is the lifecycle state reported by the status endpoint.
type Availability string

const (
	StatusAvailable  Availability = "available"
	StatusProcessing Availability = "processing"
	StatusRejected   Availability = "rejected"
	StatusDeleted    Availability = "deleted"
)

// Request carries everything the uploader needs for one video.
type Request struct {
	VideoPath   string
	Title       string
	Description string
	Tags        []string
}

// Client drives the uploader binary and the availability endpoint.
type Client struct {
	binary     string
	cfg        config.YouTube
	runner     services.CommandRunner
	httpClient *http.Client

	verifyAttempts int
	verifyDelay    time.Duration
	sleeper        func(time.Duration)
}

// Option customizes the client.
type Option func(*Client)

// WithRunner overrides subprocess execution.
func WithRunner(runner services.CommandRunner) Option {
	return func(c *Client) {
		if runner != nil {
			c.runner = runner
		}
	}
}

// WithHTTPClient overrides the availability-check HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithSleeper overrides how verification waits are performed.
func WithSleeper(sleeper func(time.Duration)) Option {
	return func(c *Client) {
		c.sleeper = sleeper
	}
}

// NewClient constructs the uploader client from configuration.
func NewClient(binary string, cfg config.Upload, opts ...Option) *Client {
	if binary == "" {
		binary = "yt-upload"
	}
	attempts := cfg.VerifyAttempts
	if attempts <= 0 {
		attempts = 5
	}
	delay := time.Duration(cfg.VerifyDelaySeconds) * time.Second
	if delay <= 0 {
		delay = 15 * time.Second
	}
	client := &Client{
		binary:         binary,
		cfg:            cfg.YouTube,
		runner:         services.ExecRunner{},
		httpClient:     &http.Client{Timeout: 30 * time.Second},
		verifyAttempts: attempts,
		verifyDelay:    delay,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

var videoIDPattern = regexp.MustCompile(`(?:watch\?v=|youtu\.be/|shorts/|[Vv]ideo [Ii][Dd]:?\s*)([A-Za-z0-9_-]{11})`)

// Upload runs the uploader binary and parses the assigned video identifier
// from its output.
func (c *Client) Upload(ctx context.Context, req Request) (string, error) {
	if strings.TrimSpace(c.cfg.ClientID) == "" || strings.TrimSpace(c.cfg.ClientSecret) == "" || strings.TrimSpace(c.cfg.RefreshToken) == "" {
		return "", services.Wrap(services.ErrConfiguration, "upload", "youtube", "missing client_id, client_secret, or refresh_token", nil)
	}

	args := []string{
		"--client-id", c.cfg.ClientID,
		"--client-secret", c.cfg.ClientSecret,
		"--refresh-token", c.cfg.RefreshToken,
		"--title", req.Title,
		"--description", req.Description,
		"--category", c.cfg.Category,
		"--privacy", c.cfg.PrivacyStatus,
	}
	if len(req.Tags) > 0 {
		args = append(args, "--tags", strings.Join(req.Tags, ","))
	}
	args = append(args, req.VideoPath)

	output, err := c.runner.Run(ctx, c.binary, args...)
	if err != nil {
		if looksLikeAuthFailure(output) {
			return "", services.Wrap(services.ErrTransient, "upload", "youtube", "auth token rejected, retry after refresh", err)
		}
		return "", services.Wrap(services.ErrExternalTool, "upload", "youtube", "", err)
	}

	match := videoIDPattern.FindStringSubmatch(output)
	if match == nil {
		return "", services.Wrap(services.ErrExternalTool, "upload", "youtube",
			fmt.Sprintf("uploader output contained no video id: %s", summarize(output)), nil)
	}
	return match[1], nil
}

// ShortsURL builds the public URL for an uploaded video.
func ShortsURL(videoID string) string {
	return "https://youtube.com/shorts/" + videoID
}

// Verify polls the availability endpoint until the video is playable or the
// attempt budget is spent. A "processing" answer is worth waiting out;
// "rejected" and "deleted" are final no matter how many attempts remain.
func (c *Client) Verify(ctx context.Context, videoID string) error {
	statusURL := strings.TrimSpace(c.cfg.StatusURL)
	if statusURL == "" {
		return nil
	}

	for attempt := 1; attempt <= c.verifyAttempts; attempt++ {
		availability, err := c.checkOnce(ctx, statusURL, videoID)
		if err != nil {
			return err
		}
		switch availability {
		case StatusAvailable:
			return nil
		case StatusRejected, StatusDeleted:
			return services.Wrap(services.ErrValidation, "upload", "verify",
				fmt.Sprintf("video %s was %s by the platform", videoID, availability), nil)
		case StatusProcessing:
			if attempt == c.verifyAttempts {
				break
			}
			if err := c.wait(ctx); err != nil {
				return err
			}
		}
	}
	return services.Wrap(services.ErrTransient, "upload", "verify",
		fmt.Sprintf("video %s still processing after %d checks", videoID, c.verifyAttempts), nil)
}

func (c *Client) checkOnce(ctx context.Context, statusURL, videoID string) (Availability, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, statusURL+"?id="+videoID, nil)
	if err != nil {
		return "", services.Wrap(services.ErrConfiguration, "upload", "verify", "bad status_url", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", services.Wrap(services.ErrTransient, "upload", "verify", "status endpoint unreachable", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	text := strings.ToLower(string(body))
	availability, ok := parseAvailability(text)
	if !ok {
		return "", services.Wrap(services.ErrExternalTool, "upload", "verify",
			fmt.Sprintf("unrecognized status response: %s", summarize(text)), nil)
	}
	return availability, nil
}

// parseAvailability matches whole words only, so a body saying "unavailable"
// never reads as available. Rejected and deleted take precedence over the
// waitable states when a body mentions several.
func parseAvailability(text string) (Availability, bool) {
	words := make(map[string]struct{})
	for _, word := range strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r)
	}) {
		words[word] = struct{}{}
	}
	for _, status := range []Availability{StatusRejected, StatusDeleted, StatusProcessing, StatusAvailable} {
		if _, ok := words[string(status)]; ok {
			return status, true
		}
	}
	return "", false
}

func (c *Client) wait(ctx context.Context) error {
	if c.sleeper != nil {
		c.sleeper(c.verifyDelay)
		return ctx.Err()
	}
	timer := time.NewTimer(c.verifyDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func looksLikeAuthFailure(output string) bool {
	lowered := strings.ToLower(output)
	return strings.Contains(lowered, "invalid_grant") ||
		strings.Contains(lowered, "token expired") ||
		strings.Contains(lowered, "unauthorized")
}

func summarize(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	const limit = 160
	if len(text) > limit {
		return text[:limit] + "..."
	}
	if text == "" {
		return "<empty>"
	}
	return text
}
