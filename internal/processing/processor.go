package processing

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"loopforge/internal/config"
	"loopforge/internal/fileutil"
	"loopforge/internal/items"
	"loopforge/internal/logging"
	"loopforge/internal/services"
	"loopforge/internal/services/ffmpeg"
	"loopforge/internal/services/whisper"
	"loopforge/internal/stage"
)

// Step names recorded in the applied-steps sidecar.
const (
	StepLoop      = "loop"
	StepBRoll     = "b-roll"
	StepCaptions  = "captions"
	StepWatermark = "watermark"
)

// Options gates the optional transformations. The loop step always runs.
type Options struct {
	SkipBRoll     bool
	SkipCaptions  bool
	SkipWatermark bool
}

// Processor runs the ordered transformation chain over a rendered clip and
// promotes the result to the final directory.
type Processor struct {
	cfg    *config.Config
	video  *ffmpeg.Service
	speech *whisper.Service
	opts   Options
	logger *slog.Logger
}

// New constructs the post-process stage processor.
func New(cfg *config.Config, video *ffmpeg.Service, speech *whisper.Service, opts Options, logger *slog.Logger) *Processor {
	return &Processor{
		cfg:    cfg,
		video:  video,
		speech: speech,
		opts:   opts,
		logger: logging.NewComponentLogger(logger, "post-process"),
	}
}

func (p *Processor) Name() string { return stage.PostProcess }

// Completed reports whether the item has already been post-processed.
func (p *Processor) Completed(item *items.WorkItem) bool {
	return item.Metadata.Status.AtLeast(items.StatusProcessed)
}

// stepsSidecar records which transformations actually ran, since several are
// conditionally skipped when optional assets are missing.
type stepsSidecar struct {
	ItemID    string    `json:"item_id"`
	Source    string    `json:"source"`
	Applied   []string  `json:"applied"`
	CreatedAt time.Time `json:"created_at"`
}

// Process transforms one rendered clip. Each step reads the previous step's
// output and writes a new intermediate; the last intermediate is copied to
// the final directory together with the sidecar and an updated item copy.
func (p *Processor) Process(ctx context.Context, item *items.WorkItem) (string, error) {
	source := item.Metadata.OutputPath
	if !fileutil.Exists(source) {
		return "", services.Wrap(services.ErrNotFound, stage.PostProcess, "locate input",
			fmt.Sprintf("rendered artifact %s is missing", source), nil)
	}

	workDir, err := os.MkdirTemp("", "loopforge-post-*")
	if err != nil {
		return "", services.Wrap(services.ErrConfiguration, stage.PostProcess, "create workspace", "", err)
	}
	defer os.RemoveAll(workDir)

	applied := make([]string, 0, 4)
	current := source

	next := filepath.Join(workDir, "looped.mp4")
	if err := p.video.Loop(ctx, current, next); err != nil {
		return "", err
	}
	current = next
	applied = append(applied, StepLoop)

	if p.shouldOverlayBRoll() {
		if broll := p.pickBRollAsset(); broll != "" {
			next = filepath.Join(workDir, "broll.mp4")
			if err := p.video.OverlayBRoll(ctx, current, broll, next); err != nil {
				return "", err
			}
			current = next
			applied = append(applied, StepBRoll)
		} else {
			p.logger.Warn("b-roll requested but asset directory is empty, skipping",
				logging.String("dir", p.cfg.Paths.BRollDir))
		}
	}

	if p.cfg.Video.AddCaptions && !p.opts.SkipCaptions {
		next = filepath.Join(workDir, "captioned.mp4")
		captioned, err := p.applyCaptions(ctx, item, current, next, workDir)
		if err != nil {
			return "", err
		}
		if captioned {
			current = next
			applied = append(applied, StepCaptions)
		}
	}

	if p.cfg.Video.Watermark && !p.opts.SkipWatermark {
		if logo := p.watermarkAsset(); logo != "" {
			next = filepath.Join(workDir, "branded.mp4")
			if err := p.video.Watermark(ctx, current, logo, next, p.cfg.Video.WatermarkOpacity, p.cfg.Video.WatermarkPosition); err != nil {
				return "", err
			}
			current = next
			applied = append(applied, StepWatermark)
		} else {
			p.logger.Warn("watermark enabled but branding asset is missing, skipping",
				logging.String("file", p.cfg.Video.WatermarkFile))
		}
	}

	base := fmt.Sprintf("final_%s", shortID(item.Metadata.ID))
	finalPath := filepath.Join(p.cfg.Paths.FinalDir, base+".mp4")
	if err := fileutil.CopyFileVerified(current, finalPath); err != nil {
		return "", services.Wrap(services.ErrExternalTool, stage.PostProcess, "promote artifact", "", err)
	}

	if err := p.writeSidecar(item, source, applied, finalPath); err != nil {
		return "", err
	}

	item.Metadata.FinalPath = finalPath
	if err := item.Advance(items.StatusProcessed); err != nil {
		return "", err
	}
	if err := items.Save(item); err != nil {
		return "", services.Wrap(services.ErrConfiguration, stage.PostProcess, "update item", "", err)
	}
	if err := items.SaveTo(item, filepath.Join(p.cfg.Paths.FinalDir, base+items.ItemExtension)); err != nil {
		return "", services.Wrap(services.ErrConfiguration, stage.PostProcess, "hand off item", "", err)
	}

	p.logger.Info("clip post-processed",
		logging.String("final", finalPath),
		logging.String("steps", strings.Join(applied, ",")))
	return finalPath, nil
}

// applyCaptions prefers the caption text carried on the item and falls back
// to transcribing the clip. A failed transcription downgrades to no captions
// rather than failing the item.
func (p *Processor) applyCaptions(ctx context.Context, item *items.WorkItem, src, dst, workDir string) (bool, error) {
	if caption := strings.TrimSpace(item.Caption); caption != "" {
		if err := p.video.DrawCaption(ctx, src, caption, dst, p.cfg.Video.Caption); err != nil {
			return false, err
		}
		return true, nil
	}

	srt, err := p.speech.Transcribe(ctx, src, workDir)
	if err != nil {
		p.logger.Warn("transcription failed, continuing without captions", logging.Error(err))
		return false, nil
	}
	if err := p.video.BurnSubtitles(ctx, src, srt, dst, p.cfg.Video.Caption); err != nil {
		return false, err
	}
	return true, nil
}

func (p *Processor) shouldOverlayBRoll() bool {
	return p.cfg.Video.AutoBRoll && !p.opts.SkipBRoll
}

func (p *Processor) pickBRollAsset() string {
	entries, err := os.ReadDir(p.cfg.Paths.BRollDir)
	if err != nil {
		return ""
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	if len(names) == 0 {
		return ""
	}
	sort.Strings(names)
	return filepath.Join(p.cfg.Paths.BRollDir, names[0])
}

func (p *Processor) watermarkAsset() string {
	file := strings.TrimSpace(p.cfg.Video.WatermarkFile)
	if file == "" {
		return ""
	}
	if !filepath.IsAbs(file) {
		file = filepath.Join(p.cfg.Paths.BrandingDir, file)
	}
	if !fileutil.Exists(file) {
		return ""
	}
	return file
}

func (p *Processor) writeSidecar(item *items.WorkItem, source string, applied []string, finalPath string) error {
	sidecar := stepsSidecar{
		ItemID:    item.Metadata.ID,
		Source:    source,
		Applied:   applied,
		CreatedAt: time.Now().UTC(),
	}
	data, err := json.MarshalIndent(sidecar, "", "  ")
	if err != nil {
		return services.Wrap(services.ErrValidation, stage.PostProcess, "encode sidecar", "", err)
	}
	sidecarPath := fileutil.CompanionPath(finalPath, "_steps.json")
	if err := os.WriteFile(sidecarPath, data, 0o644); err != nil {
		return services.Wrap(services.ErrConfiguration, stage.PostProcess, "write sidecar", "", err)
	}
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
