package ytupload_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"loopforge/internal/config"
	"loopforge/internal/services"
	"loopforge/internal/services/ytupload"
)

type fakeRunner struct {
	output string
	err    error
	calls  int
	args   []string
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) (string, error) {
	f.calls++
	f.args = args
	return f.output, f.err
}

func uploadConfig() config.Upload {
	cfg := config.Default().Upload
	cfg.YouTube.ClientID = "id"
	cfg.YouTube.ClientSecret = "secret"
	cfg.YouTube.RefreshToken = "token"
	cfg.VerifyAttempts = 3
	cfg.VerifyDelaySeconds = 1
	return cfg
}

func TestUploadParsesVideoID(t *testing.T) {
	runner := &fakeRunner{output: "Upload complete: https://youtube.com/watch?v=dQw4w9WgXcQ"}
	client := ytupload.NewClient("yt-upload", uploadConfig(), ytupload.WithRunner(runner))

	id, err := client.Upload(context.Background(), ytupload.Request{
		VideoPath: "/tmp/clip.mp4",
		Title:     "Rainy focus vibes",
		Tags:      []string{"rain", "focus"},
	})
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if id != "dQw4w9WgXcQ" {
		t.Fatalf("id = %q", id)
	}
	joined := strings.Join(runner.args, " ")
	if !strings.Contains(joined, "--tags rain,focus") {
		t.Fatalf("args = %q, want joined tags", joined)
	}
	if !strings.HasSuffix(joined, "/tmp/clip.mp4") {
		t.Fatalf("args = %q, want video path last", joined)
	}
}

func TestUploadRequiresCredentials(t *testing.T) {
	cfg := uploadConfig()
	cfg.YouTube.RefreshToken = ""
	client := ytupload.NewClient("yt-upload", cfg, ytupload.WithRunner(&fakeRunner{}))

	_, err := client.Upload(context.Background(), ytupload.Request{VideoPath: "/tmp/clip.mp4"})
	if err == nil {
		t.Fatal("expected error without credentials")
	}
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("error = %v, want configuration marker", err)
	}
}

func TestUploadAuthFailureIsTransient(t *testing.T) {
	runner := &fakeRunner{output: "error: invalid_grant", err: errors.New("exit status 1")}
	client := ytupload.NewClient("yt-upload", uploadConfig(), ytupload.WithRunner(runner))

	_, err := client.Upload(context.Background(), ytupload.Request{VideoPath: "/tmp/clip.mp4"})
	if err == nil {
		t.Fatal("expected error")
	}
	if !services.IsTransient(err) {
		t.Fatalf("auth failure = %v, want transient (refresh-then-retry)", err)
	}
}

func TestUploadNoVideoIDInOutput(t *testing.T) {
	runner := &fakeRunner{output: "done"}
	client := ytupload.NewClient("yt-upload", uploadConfig(), ytupload.WithRunner(runner))

	if _, err := client.Upload(context.Background(), ytupload.Request{VideoPath: "/tmp/clip.mp4"}); err == nil {
		t.Fatal("expected error when output has no video id")
	}
}

func verifyClient(t *testing.T, responses []string) (*ytupload.Client, *int) {
	t.Helper()
	call := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		idx := call
		if idx >= len(responses) {
			idx = len(responses) - 1
		}
		call++
		w.Write([]byte(responses[idx]))
	}))
	t.Cleanup(server.Close)

	cfg := uploadConfig()
	cfg.YouTube.StatusURL = server.URL
	client := ytupload.NewClient("yt-upload", cfg,
		ytupload.WithRunner(&fakeRunner{}),
		ytupload.WithSleeper(func(time.Duration) {}))
	return client, &call
}

func TestVerifyAvailableSucceedsImmediately(t *testing.T) {
	client, calls := verifyClient(t, []string{`{"status": "available"}`})
	if err := client.Verify(context.Background(), "dQw4w9WgXcQ"); err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if *calls != 1 {
		t.Fatalf("calls = %d, want 1", *calls)
	}
}

func TestVerifyProcessingThenAvailable(t *testing.T) {
	client, calls := verifyClient(t, []string{
		`{"status": "processing"}`,
		`{"status": "processing"}`,
		`{"status": "available"}`,
	})
	if err := client.Verify(context.Background(), "dQw4w9WgXcQ"); err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if *calls != 3 {
		t.Fatalf("calls = %d, want 3", *calls)
	}
}

func TestVerifyRejectedIsTerminal(t *testing.T) {
	client, calls := verifyClient(t, []string{`{"status": "rejected"}`})
	err := client.Verify(context.Background(), "dQw4w9WgXcQ")
	if err == nil {
		t.Fatal("expected error")
	}
	if !services.IsTerminal(err) {
		t.Fatalf("rejected = %v, want terminal", err)
	}
	if *calls != 1 {
		t.Fatalf("calls = %d, want 1 (no retries after rejection)", *calls)
	}
}

func TestVerifyStillProcessingExhaustsBudget(t *testing.T) {
	client, calls := verifyClient(t, []string{`{"status": "processing"}`})
	err := client.Verify(context.Background(), "dQw4w9WgXcQ")
	if err == nil {
		t.Fatal("expected error after budget exhausted")
	}
	if !services.IsTransient(err) {
		t.Fatalf("exhausted verify = %v, want transient", err)
	}
	if *calls != 3 {
		t.Fatalf("calls = %d, want 3 (verify_attempts)", *calls)
	}
}

func TestVerifyUnavailableIsNotAvailable(t *testing.T) {
	client, calls := verifyClient(t, []string{`{"status": "unavailable"}`})
	err := client.Verify(context.Background(), "dQw4w9WgXcQ")
	if err == nil {
		t.Fatal("an unavailable video must not verify as available")
	}
	if services.IsTerminal(err) || services.IsTransient(err) {
		t.Fatalf("unrecognized status = %v, want external tool failure", err)
	}
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("error = %v, want external tool marker", err)
	}
	if *calls != 1 {
		t.Fatalf("calls = %d, want 1", *calls)
	}
}

func TestVerifySkippedWithoutStatusURL(t *testing.T) {
	client := ytupload.NewClient("yt-upload", uploadConfig(), ytupload.WithRunner(&fakeRunner{}))
	if err := client.Verify(context.Background(), "dQw4w9WgXcQ"); err != nil {
		t.Fatalf("Verify without status_url: %v", err)
	}
}

func TestShortsURL(t *testing.T) {
	if got := ytupload.ShortsURL("abc123DEF45"); got != "https://youtube.com/shorts/abc123DEF45" {
		t.Fatalf("ShortsURL = %q", got)
	}
}
