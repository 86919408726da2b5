package notifications_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"loopforge/internal/config"
	"loopforge/internal/notifications"
)

func TestUnconfiguredServiceIsNoop(t *testing.T) {
	cfg := config.Default()
	svc := notifications.NewService(&cfg)
	if err := svc.TestNotification(context.Background()); err != nil {
		t.Fatalf("noop TestNotification returned error: %v", err)
	}
}

func TestNtfySendSetsHeaders(t *testing.T) {
	var gotTitle, gotTags, gotPriority, gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotTitle = r.Header.Get("Title")
		gotTags = r.Header.Get("Tags")
		gotPriority = r.Header.Get("Priority")
		buf := make([]byte, 1024)
		n, _ := r.Body.Read(buf)
		gotBody = string(buf[:n])
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	svc := notifications.NewService(&cfg)

	if err := svc.NotifyStageFailed(context.Background(), "render", errors.New("backend unreachable")); err != nil {
		t.Fatalf("NotifyStageFailed: %v", err)
	}
	if gotTitle != "LoopForge - Stage Failed" {
		t.Fatalf("Title = %q", gotTitle)
	}
	if !strings.Contains(gotTags, "render") {
		t.Fatalf("Tags = %q, want render tag", gotTags)
	}
	if gotPriority != "high" {
		t.Fatalf("Priority = %q, want high", gotPriority)
	}
	if !strings.Contains(gotBody, "backend unreachable") {
		t.Fatalf("body = %q, want failure detail", gotBody)
	}
}

func TestWebhookSendPostsJSON(t *testing.T) {
	var got map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.WebhookURL = server.URL
	svc := notifications.NewService(&cfg)

	if err := svc.NotifyUploadCompleted(context.Background(), "youtube", "Rainy focus vibes", "https://youtube.com/shorts/abc"); err != nil {
		t.Fatalf("NotifyUploadCompleted: %v", err)
	}
	if !strings.Contains(got["text"], "Youtube") {
		t.Fatalf("text = %q, want platform display name", got["text"])
	}
	if !strings.Contains(got["text"], "https://youtube.com/shorts/abc") {
		t.Fatalf("text = %q, want url", got["text"])
	}
}

func TestSendReportsHTTPFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "topic not found", http.StatusNotFound)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	svc := notifications.NewService(&cfg)

	err := svc.TestNotification(context.Background())
	if err == nil {
		t.Fatal("expected error for non-2xx response")
	}
	if !strings.Contains(err.Error(), "404") {
		t.Fatalf("error = %v, want status code", err)
	}
}

func TestFanOutReachesAllBackends(t *testing.T) {
	hits := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.WebhookURL = server.URL
	cfg.Notifications.NtfyTopic = server.URL
	svc := notifications.NewService(&cfg)

	if err := svc.NotifyPipelineCompleted(context.Background(), 0); err != nil {
		t.Fatalf("NotifyPipelineCompleted: %v", err)
	}
	if hits != 2 {
		t.Fatalf("backends hit = %d, want 2", hits)
	}
}

func TestPlatformDisplayName(t *testing.T) {
	if got := notifications.PlatformDisplayName("youtube"); got != "Youtube" {
		t.Fatalf("PlatformDisplayName = %q", got)
	}
}
