package rendering

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"

	"loopforge/internal/config"
	"loopforge/internal/fileutil"
	"loopforge/internal/items"
	"loopforge/internal/logging"
	"loopforge/internal/render"
	"loopforge/internal/services"
	"loopforge/internal/stage"
)

// Processor turns pending work items into rendered clips. The artifact and
// an updated copy of the item document land in the rendered directory for
// the post-process stage to pick up.
type Processor struct {
	cfg      *config.Config
	renderer render.Renderer
	logger   *slog.Logger
}

// New constructs the render stage processor.
func New(cfg *config.Config, renderer render.Renderer, logger *slog.Logger) *Processor {
	return &Processor{
		cfg:      cfg,
		renderer: renderer,
		logger:   logging.NewComponentLogger(logger, "render"),
	}
}

func (p *Processor) Name() string { return stage.Render }

// Completed reports whether the item has already been rendered.
func (p *Processor) Completed(item *items.WorkItem) bool {
	return item.Metadata.Status.AtLeast(items.StatusRendered)
}

// Process renders one item and promotes it to the rendered directory.
func (p *Processor) Process(ctx context.Context, item *items.WorkItem) (string, error) {
	if err := item.Validate(); err != nil {
		return "", err
	}

	width, height, ok := render.Dimensions(p.cfg.Rendering.DraftResolution, item.AspectRatio)
	if !ok {
		p.logger.Warn("unrecognized resolution tier or aspect ratio, using fallback dimensions",
			logging.String("tier", p.cfg.Rendering.DraftResolution),
			logging.String("aspect_ratio", item.AspectRatio),
			logging.Int("width", width),
			logging.Int("height", height))
	}

	artifact, err := p.renderer.Render(ctx, render.Request{
		Prompt: item.Prompt,
		Width:  width,
		Height: height,
	})
	if err != nil {
		return "", err
	}

	base := fmt.Sprintf("clip_%s", shortID(item.Metadata.ID))
	dest := filepath.Join(p.cfg.Paths.RenderedDir, base+filepath.Ext(artifact))
	if err := fileutil.CopyFileVerified(artifact, dest); err != nil {
		return "", services.Wrap(services.ErrExternalTool, stage.Render, "promote artifact", "", err)
	}

	item.Metadata.OutputPath = dest
	if err := item.Advance(items.StatusRendered); err != nil {
		return "", err
	}
	if err := items.Save(item); err != nil {
		return "", services.Wrap(services.ErrConfiguration, stage.Render, "update item", "", err)
	}
	if err := items.SaveTo(item, filepath.Join(p.cfg.Paths.RenderedDir, base+items.ItemExtension)); err != nil {
		return "", services.Wrap(services.ErrConfiguration, stage.Render, "hand off item", "", err)
	}

	if info, err := os.Stat(dest); err == nil {
		p.logger.Info("clip rendered",
			logging.String("engine", p.renderer.Name()),
			logging.String("artifact", dest),
			logging.String("size", humanize.Bytes(uint64(info.Size()))))
	}
	return dest, nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
