package config

import (
	"fmt"
	"strings"
)

var supportedEngines = map[string]struct{}{
	"comfyui":  {},
	"invokeai": {},
}

var supportedResolutions = map[string]struct{}{
	"720p":  {},
	"1080p": {},
}

var supportedPlatforms = map[string]struct{}{
	"youtube": {},
	"tiktok":  {},
}

// Validate checks configuration invariants that would otherwise surface as
// confusing runtime failures. A validation error is fatal to the process.
func (c *Config) Validate() error {
	var problems []string

	if _, ok := supportedEngines[c.Rendering.Engine]; !ok {
		problems = append(problems, fmt.Sprintf("rendering.engine: unknown engine %q (supported: comfyui, invokeai)", c.Rendering.Engine))
	}
	if _, ok := supportedResolutions[c.Rendering.DraftResolution]; !ok {
		problems = append(problems, fmt.Sprintf("rendering.draft_resolution: unknown tier %q (supported: 720p, 1080p)", c.Rendering.DraftResolution))
	}
	if len(c.Upload.Platforms) == 0 {
		problems = append(problems, "upload.platforms: at least one platform is required")
	}
	for _, platform := range c.Upload.Platforms {
		if _, ok := supportedPlatforms[platform]; !ok {
			problems = append(problems, fmt.Sprintf("upload.platforms: unknown platform %q (supported: youtube, tiktok)", platform))
		}
	}
	if c.Video.WatermarkOpacity < 0 || c.Video.WatermarkOpacity > 1 {
		problems = append(problems, fmt.Sprintf("video.watermark_opacity: %v outside [0, 1]", c.Video.WatermarkOpacity))
	}
	if c.Generation.DefaultCount <= 0 {
		problems = append(problems, "generation.default_count: must be positive")
	}
	if c.Workflow.QueuePollInterval <= 0 {
		problems = append(problems, "workflow.queue_poll_interval: must be positive")
	}
	if c.Workflow.UploadPollInterval <= 0 {
		problems = append(problems, "workflow.upload_poll_interval: must be positive")
	}
	if c.Upload.VerifyAttempts <= 0 {
		problems = append(problems, "upload.verify_attempts: must be positive")
	}
	switch strings.ToLower(strings.TrimSpace(c.Logging.Format)) {
	case "console", "json":
	default:
		problems = append(problems, fmt.Sprintf("logging.format: unsupported value %q", c.Logging.Format))
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration:\n  - %s", strings.Join(problems, "\n  - "))
	}
	return nil
}
