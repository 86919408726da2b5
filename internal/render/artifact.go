package render

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"loopforge/internal/services"
)

// Backends write finished renders into their own output directory rather
// than answering with the artifact inline. awaitArtifact sleeps out the
// backend's expected completion window, then looks for a file newer than the
// submission time. The wait is a bounded guess, not a completion signal, so
// a missing artifact afterwards is an ordinary retryable failure.
func awaitArtifact(ctx context.Context, outputDir string, since time.Time, wait time.Duration) (string, error) {
	if wait > 0 {
		timer := time.NewTimer(wait)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-timer.C:
		}
	}
	return newestArtifact(outputDir, since)
}

func newestArtifact(outputDir string, since time.Time) (string, error) {
	// Filesystem mtimes can be coarser than the wall clock used for the
	// submission timestamp.
	since = since.Truncate(time.Second)
	entries, err := os.ReadDir(outputDir)
	if err != nil {
		return "", services.Wrap(services.ErrConfiguration, "render", "scan output",
			fmt.Sprintf("cannot read backend output directory %s", outputDir), err)
	}

	var newest string
	var newestTime time.Time
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		mod := info.ModTime()
		if mod.Before(since) {
			continue
		}
		if newest == "" || mod.After(newestTime) {
			newest = filepath.Join(outputDir, entry.Name())
			newestTime = mod
		}
	}
	if newest == "" {
		return "", services.Wrap(services.ErrTransient, "render", "await artifact",
			fmt.Sprintf("no artifact appeared in %s after the wait window", outputDir), nil)
	}
	return newest, nil
}
