// Package whisper runs speech-to-text transcription as the captioning
// fallback when a work item carries no caption of its own.
package whisper

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"loopforge/internal/fileutil"
	"loopforge/internal/services"
)

// Service invokes the whisper CLI through a CommandRunner.
type Service struct {
	binary string
	model  string
	runner services.CommandRunner
}

// NewService constructs the whisper service. The base model keeps
// transcription latency tolerable for short clips.
func NewService(binary string, runner services.CommandRunner) *Service {
	if binary == "" {
		binary = "whisper"
	}
	if runner == nil {
		runner = services.ExecRunner{}
	}
	return &Service{binary: binary, model: "base", runner: runner}
}

// Transcribe produces an SRT subtitle file for the source clip in outputDir
// and returns its path.
func (s *Service) Transcribe(ctx context.Context, source, outputDir string) (string, error) {
	args := []string{
		source,
		"--model", s.model,
		"--output_format", "srt",
		"--output_dir", outputDir,
	}
	if _, err := s.runner.Run(ctx, s.binary, args...); err != nil {
		return "", services.Wrap(services.ErrExternalTool, "post-process", "transcribe", "", err)
	}

	srtPath := filepath.Join(outputDir, fileutil.BaseName(source)+".srt")
	if !fileutil.Exists(srtPath) {
		return "", services.Wrap(services.ErrExternalTool, "post-process", "transcribe",
			fmt.Sprintf("whisper exited cleanly but %s was not written", srtPath), nil)
	}
	return srtPath, nil
}

// Binary returns the configured executable name.
func (s *Service) Binary() string {
	return strings.TrimSpace(s.binary)
}
