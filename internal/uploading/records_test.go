package uploading_test

import (
	"path/filepath"
	"testing"
	"time"

	"loopforge/internal/uploading"
)

func TestLoadRecordsMissingFile(t *testing.T) {
	records, err := uploading.LoadRecords(filepath.Join(t.TempDir(), "nope_uploads.json"))
	if err != nil {
		t.Fatalf("LoadRecords: %v", err)
	}
	if records != nil {
		t.Fatalf("records = %v, want nil", records)
	}
}

func TestAppendRecordKeepsHistory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clip_uploads.json")

	first := uploading.Record{
		Platform:  "youtube",
		Success:   false,
		Error:     "still processing after 5 checks",
		Timestamp: time.Now().UTC(),
	}
	second := uploading.Record{
		Platform:  "youtube",
		Success:   true,
		VideoID:   "abcdefghijk",
		URL:       "https://youtube.com/shorts/abcdefghijk",
		Final:     true,
		Timestamp: time.Now().UTC(),
	}
	if err := uploading.AppendRecord(path, first); err != nil {
		t.Fatalf("append first: %v", err)
	}
	if err := uploading.AppendRecord(path, second); err != nil {
		t.Fatalf("append second: %v", err)
	}

	records, err := uploading.LoadRecords(path)
	if err != nil {
		t.Fatalf("LoadRecords: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("len(records) = %d, want 2", len(records))
	}
	if records[0].Final || !records[1].Final {
		t.Fatalf("final flags = %v/%v, want false/true", records[0].Final, records[1].Final)
	}
	if records[1].VideoID != "abcdefghijk" {
		t.Fatalf("video id = %q", records[1].VideoID)
	}
}

func TestStatsRecordAttempt(t *testing.T) {
	dir := t.TempDir()
	stats, err := uploading.LoadStats(dir)
	if err != nil {
		t.Fatalf("LoadStats: %v", err)
	}

	stats.RecordAttempt("Rainy focus", uploading.Record{Platform: "youtube", Success: true})
	stats.RecordAttempt("Rainy focus", uploading.Record{Platform: "tiktok", Success: false})
	if err := stats.Save(dir); err != nil {
		t.Fatalf("Save: %v", err)
	}

	reloaded, err := uploading.LoadStats(dir)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.Total != 2 || reloaded.Successful != 1 || reloaded.Failed != 1 {
		t.Fatalf("totals = %d/%d/%d", reloaded.Total, reloaded.Successful, reloaded.Failed)
	}
	yt := reloaded.Platforms["youtube"]
	if yt.Total != 1 || yt.Successful != 1 {
		t.Fatalf("youtube stats = %+v", yt)
	}
	if len(reloaded.Recent) != 2 {
		t.Fatalf("recent = %d, want 2", len(reloaded.Recent))
	}
}

func TestStatsRecentRingIsBounded(t *testing.T) {
	stats := &uploading.Stats{Platforms: make(map[string]uploading.PlatformStats)}
	for i := 0; i < 25; i++ {
		stats.RecordAttempt("clip", uploading.Record{Platform: "youtube", Success: true, VideoID: string(rune('a' + i))})
	}
	if len(stats.Recent) != 20 {
		t.Fatalf("recent = %d, want 20", len(stats.Recent))
	}
	// The oldest five entries fall off the front.
	if stats.Recent[0].VideoID != "f" {
		t.Fatalf("oldest retained = %q, want f", stats.Recent[0].VideoID)
	}
	if stats.Total != 25 {
		t.Fatalf("total = %d, want 25", stats.Total)
	}
}
