// Package ffmpeg drives the video transformations of the post-process
// stage. Every operation reads one input file and writes a new output file;
// chaining is the caller's concern.
package ffmpeg

import (
	"context"
	"fmt"
	"strings"

	"loopforge/internal/config"
	"loopforge/internal/services"
)

// Service invokes the ffmpeg binary through a CommandRunner.
type Service struct {
	binary string
	runner services.CommandRunner
}

// NewService constructs the ffmpeg service.
func NewService(binary string, runner services.CommandRunner) *Service {
	if binary == "" {
		binary = "ffmpeg"
	}
	if runner == nil {
		runner = services.ExecRunner{}
	}
	return &Service{binary: binary, runner: runner}
}

func (s *Service) run(ctx context.Context, operation string, args []string) error {
	full := append([]string{"-y", "-hide_banner", "-loglevel", "error"}, args...)
	if _, err := s.runner.Run(ctx, s.binary, full...); err != nil {
		return services.Wrap(services.ErrExternalTool, "post-process", operation, "", err)
	}
	return nil
}

// Loop produces a seamless loop by concatenating the clip with its own
// reversal.
func (s *Service) Loop(ctx context.Context, src, dst string) error {
	return s.run(ctx, "loop", []string{
		"-i", src,
		"-filter_complex", "[0:v]reverse[r];[0:v][r]concat=n=2:v=1:a=0[out]",
		"-map", "[out]",
		dst,
	})
}

// DrawCaption burns a static caption string into the clip.
func (s *Service) DrawCaption(ctx context.Context, src, text, dst string, style config.CaptionStyle) error {
	filter := fmt.Sprintf(
		"drawtext=text='%s':fontsize=%d:fontcolor=%s:bordercolor=%s:borderw=%d:x=(w-text_w)/2:y=%s",
		escapeDrawtext(text),
		style.FontSize,
		colorOrDefault(style.Color, "white"),
		colorOrDefault(style.StrokeColor, "black"),
		style.StrokeWidth,
		captionY(style.Position),
	)
	return s.run(ctx, "caption", []string{
		"-i", src,
		"-vf", filter,
		dst,
	})
}

// BurnSubtitles burns an SRT file into the clip, styled to match the
// configured caption appearance.
func (s *Service) BurnSubtitles(ctx context.Context, src, srt, dst string, style config.CaptionStyle) error {
	forceStyle := fmt.Sprintf("FontName=%s,FontSize=%d,Outline=%d",
		fontOrDefault(style.Font), style.FontSize, style.StrokeWidth)
	filter := fmt.Sprintf("subtitles=%s:force_style='%s'", srt, forceStyle)
	return s.run(ctx, "subtitles", []string{
		"-i", src,
		"-vf", filter,
		dst,
	})
}

// OverlayBRoll composites a secondary clip into the upper-right corner for a
// short window.
func (s *Service) OverlayBRoll(ctx context.Context, src, broll, dst string) error {
	return s.run(ctx, "b-roll", []string{
		"-i", src,
		"-i", broll,
		"-filter_complex", "[1:v]scale=iw/3:-1[b];[0:v][b]overlay=W-w-20:20:enable='between(t,1,4)'[out]",
		"-map", "[out]",
		dst,
	})
}

// Watermark composites a logo image over the clip at the configured corner
// and opacity.
func (s *Service) Watermark(ctx context.Context, src, logo, dst string, opacity float64, position string) error {
	if opacity <= 0 || opacity > 1 {
		opacity = 1
	}
	filter := fmt.Sprintf(
		"[1:v]format=rgba,colorchannelmixer=aa=%.2f[wm];[0:v][wm]overlay=%s[out]",
		opacity, overlayCoords(position))
	return s.run(ctx, "watermark", []string{
		"-i", src,
		"-i", logo,
		"-filter_complex", filter,
		"-map", "[out]",
		dst,
	})
}

func overlayCoords(position string) string {
	switch strings.ToLower(strings.TrimSpace(position)) {
	case "top-left":
		return "20:20"
	case "top-right":
		return "W-w-20:20"
	case "bottom-left":
		return "20:H-h-20"
	default:
		return "W-w-20:H-h-20"
	}
}

func captionY(position string) string {
	if strings.EqualFold(strings.TrimSpace(position), "top") {
		return "h/10"
	}
	return "h-h/5"
}

func colorOrDefault(color, fallback string) string {
	if strings.TrimSpace(color) == "" {
		return fallback
	}
	return color
}

func fontOrDefault(font string) string {
	if strings.TrimSpace(font) == "" {
		return "Arial"
	}
	return font
}

func escapeDrawtext(text string) string {
	replacer := strings.NewReplacer(
		"\\", "\\\\",
		"'", "\\'",
		":", "\\:",
		"%", "\\%",
	)
	return replacer.Replace(text)
}
