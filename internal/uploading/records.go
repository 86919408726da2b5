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

// Record is one upload attempt for one platform. Records are append-only;
// a retry adds a new entry rather than rewriting an old one.
type Record struct {
	Platform  string    `json:"platform"`
	Success   bool      `json:"success"`
	VideoID   string    `json:"video_id,omitempty"`
	Error     string    `json:"error,omitempty"`
	URL       string    `json:"url,omitempty"`
	DryRun    bool      `json:"dry_run,omitempty"`
	Final     bool      `json:"final"`
	Timestamp time.Time `json:"timestamp"`
}

type recordsDocument struct {
	Records []Record `json:"records"`
}

// LoadRecords reads the upload records for one artifact. A missing file
// reads as empty.
func LoadRecords(path string) ([]Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read upload records %s: %w", path, err)
	}
	var doc recordsDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse upload records %s: %w", path, err)
	}
	return doc.Records, nil
}

// AppendRecord adds one entry to the records file, creating it on first
// write. The rewrite goes through a temp file so a crash never truncates
// history.
func AppendRecord(path string, record Record) error {
	existing, err := LoadRecords(path)
	if err != nil {
		return err
	}
	doc := recordsDocument{Records: append(existing, record)}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode upload records: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".records-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp records file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write upload records: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close upload records: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename upload records into place: %w", err)
	}
	return nil
}

// finalRecordFor reports whether the platform already has a record that
// settles it, successfully or not.
func finalRecordFor(records []Record, platform string) bool {
	for _, record := range records {
		if record.Platform == platform && record.Final {
			return true
		}
	}
	return false
}
