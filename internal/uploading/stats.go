package uploading

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

const recentLimit = 20

// StatsFileName is the aggregate statistics document kept in the uploads
// directory.
const StatsFileName = "upload_stats.json"

// PlatformStats counts upload outcomes for one platform.
type PlatformStats struct {
	Total      int `json:"total"`
	Successful int `json:"successful"`
	Failed     int `json:"failed"`
}

// RecentUpload is one entry in the bounded ring of recent upload summaries.
type RecentUpload struct {
	Title     string    `json:"title"`
	Platform  string    `json:"platform"`
	Success   bool      `json:"success"`
	VideoID   string    `json:"video_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Stats is the aggregate upload statistics document.
type Stats struct {
	Total      int                      `json:"total"`
	Successful int                      `json:"successful"`
	Failed     int                      `json:"failed"`
	Platforms  map[string]PlatformStats `json:"platforms"`
	Recent     []RecentUpload           `json:"recent"`
}

// LoadStats reads the statistics document. A missing file reads as zeroed
// stats.
func LoadStats(dir string) (*Stats, error) {
	path := filepath.Join(dir, StatsFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &Stats{Platforms: make(map[string]PlatformStats)}, nil
		}
		return nil, fmt.Errorf("read upload stats %s: %w", path, err)
	}
	var stats Stats
	if err := json.Unmarshal(data, &stats); err != nil {
		return nil, fmt.Errorf("parse upload stats %s: %w", path, err)
	}
	if stats.Platforms == nil {
		stats.Platforms = make(map[string]PlatformStats)
	}
	return &stats, nil
}

// RecordAttempt folds one upload attempt into the aggregate and the recent
// ring. Dry runs count like real uploads so reporting needs no branches.
func (s *Stats) RecordAttempt(title string, record Record) {
	s.Total++
	platform := s.Platforms[record.Platform]
	platform.Total++
	if record.Success {
		s.Successful++
		platform.Successful++
	} else {
		s.Failed++
		platform.Failed++
	}
	s.Platforms[record.Platform] = platform

	s.Recent = append(s.Recent, RecentUpload{
		Title:     title,
		Platform:  record.Platform,
		Success:   record.Success,
		VideoID:   record.VideoID,
		Timestamp: record.Timestamp,
	})
	if len(s.Recent) > recentLimit {
		s.Recent = s.Recent[len(s.Recent)-recentLimit:]
	}
}

// Save writes the statistics document atomically.
func (s *Stats) Save(dir string) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("encode upload stats: %w", err)
	}
	path := filepath.Join(dir, StatsFileName)
	tmp, err := os.CreateTemp(dir, ".stats-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp stats file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write upload stats: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close upload stats: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename upload stats into place: %w", err)
	}
	return nil
}
