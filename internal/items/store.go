package items

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"loopforge/internal/logging"
)

// ItemExtension is the suffix every persisted work item file carries.
const ItemExtension = ".json"

// Sidecar suffixes that share the item extension but are not work items.
var sidecarSuffixes = []string{"_uploads.json", "_steps.json", "_stats.json"}

// IsItemFile reports whether a file name looks like a work item document
// rather than a sidecar (upload records, applied-steps metadata, stats).
func IsItemFile(name string) bool {
	if !strings.HasSuffix(name, ItemExtension) {
		return false
	}
	for _, suffix := range sidecarSuffixes {
		if strings.HasSuffix(name, suffix) {
			return false
		}
	}
	return true
}

// Load reads one work item file. Malformed JSON is a validation error the
// caller can choose to skip.
func Load(path string) (*WorkItem, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read work item %s: %w", path, err)
	}

	var item WorkItem
	if err := json.Unmarshal(data, &item); err != nil {
		return nil, fmt.Errorf("parse work item %s: %w", path, err)
	}
	if item.Metadata.Status == "" {
		item.Metadata.Status = StatusPending
	}
	if _, err := ParseStatus(string(item.Metadata.Status)); err != nil {
		return nil, fmt.Errorf("work item %s: %w", path, err)
	}
	item.path = path
	return &item, nil
}

// Save writes the item back to the path it was loaded from, atomically via a
// temp file and rename so a crashed writer never leaves a truncated item.
func Save(item *WorkItem) error {
	if item.path == "" {
		return errors.New("save work item: item has no path")
	}
	return SaveTo(item, item.path)
}

// SaveTo writes the item to an explicit path and records that path on the
// item for subsequent saves.
func SaveTo(item *WorkItem, path string) error {
	data, err := json.MarshalIndent(item, "", "  ")
	if err != nil {
		return fmt.Errorf("encode work item %s: %w", item.Metadata.ID, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".item-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file for %s: %w", path, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write work item %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close work item %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename work item into place at %s: %w", path, err)
	}
	item.path = path
	return nil
}

// ScanDir lists every parseable work item in a directory in name order. A
// missing directory reads as empty; malformed files are skipped with a
// warning so one bad item cannot wedge a whole stage.
func ScanDir(dir string, logger *slog.Logger) ([]*WorkItem, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan work item directory %s: %w", dir, err)
	}

	var result []*WorkItem
	for _, entry := range entries {
		if entry.IsDir() || !IsItemFile(entry.Name()) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		item, err := Load(path)
		if err != nil {
			logger.Warn("skipping unreadable work item",
				logging.String("path", path),
				logging.Error(err))
			continue
		}
		result = append(result, item)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].path < result[j].path })
	return result, nil
}
