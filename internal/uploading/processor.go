package uploading

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"loopforge/internal/config"
	"loopforge/internal/fileutil"
	"loopforge/internal/items"
	"loopforge/internal/logging"
	"loopforge/internal/notifications"
	"loopforge/internal/services"
	"loopforge/internal/services/ytupload"
	"loopforge/internal/stage"
)

// RecordsSuffix is appended to an artifact's base name to form its upload
// records file. The records file doubles as the reconciliation marker: its
// presence with a final record per platform means the item is done.
const RecordsSuffix = "_uploads.json"

// Options controls upload destinations and the dry-run mode.
type Options struct {
	// Platforms overrides the configured destination list when non-empty.
	Platforms []string
	// DryRun short-circuits every backend call and records synthetic
	// successes of the same shape as real ones.
	DryRun bool
}

// Processor publishes finished clips. It never advances work item status;
// completion is tracked entirely through upload records.
type Processor struct {
	cfg      *config.Config
	youtube  *ytupload.Client
	notifier notifications.Service
	opts     Options
	logger   *slog.Logger
}

// New constructs the upload stage processor.
func New(cfg *config.Config, youtube *ytupload.Client, notifier notifications.Service, opts Options, logger *slog.Logger) *Processor {
	if notifier == nil {
		notifier = notifications.Noop()
	}
	return &Processor{
		cfg:      cfg,
		youtube:  youtube,
		notifier: notifier,
		opts:     opts,
		logger:   logging.NewComponentLogger(logger, "upload"),
	}
}

func (p *Processor) Name() string { return stage.Upload }

func (p *Processor) platforms() []string {
	if len(p.opts.Platforms) > 0 {
		return p.opts.Platforms
	}
	return p.cfg.Upload.Platforms
}

// Completed reports whether every requested platform has a final record for
// the item's artifact.
func (p *Processor) Completed(item *items.WorkItem) bool {
	video := strings.TrimSpace(item.Metadata.FinalPath)
	if video == "" {
		return false
	}
	records, err := LoadRecords(fileutil.CompanionPath(video, RecordsSuffix))
	if err != nil || len(records) == 0 {
		return false
	}
	for _, platform := range p.platforms() {
		if !finalRecordFor(records, platform) {
			return false
		}
	}
	return true
}

// Process attempts each unsettled platform once. Every attempt appends an
// upload record and updates the aggregate statistics, success or not.
func (p *Processor) Process(ctx context.Context, item *items.WorkItem) (string, error) {
	video := strings.TrimSpace(item.Metadata.FinalPath)
	if video == "" || !fileutil.Exists(video) {
		return "", services.Wrap(services.ErrNotFound, stage.Upload, "locate artifact",
			fmt.Sprintf("final artifact %q is missing", video), nil)
	}
	recordsPath := fileutil.CompanionPath(video, RecordsSuffix)

	existing, err := LoadRecords(recordsPath)
	if err != nil {
		return "", services.Wrap(services.ErrValidation, stage.Upload, "load records", "", err)
	}

	title := uploadTitle(item)
	var retryable, terminal []string
	for _, platform := range p.platforms() {
		if finalRecordFor(existing, platform) {
			continue
		}

		record := p.attempt(ctx, platform, video, item, title)
		if err := AppendRecord(recordsPath, record); err != nil {
			return "", services.Wrap(services.ErrConfiguration, stage.Upload, "append record", "", err)
		}
		if err := p.updateStats(title, record); err != nil {
			p.logger.Warn("failed to update upload statistics", logging.Error(err))
		}

		if record.Success {
			if record.DryRun {
				continue
			}
			if nerr := p.notifier.NotifyUploadCompleted(ctx, platform, title, record.URL); nerr != nil {
				p.logger.Warn("upload notification failed", logging.Error(nerr))
			}
			continue
		}
		if record.Final {
			terminal = append(terminal, fmt.Sprintf("%s: %s", platform, record.Error))
		} else {
			retryable = append(retryable, fmt.Sprintf("%s: %s", platform, record.Error))
		}
	}

	if len(retryable) > 0 {
		// Marker errors from individual attempts are deliberately flattened
		// to text so one terminal platform cannot mask another's retry.
		return "", services.Wrap(services.ErrTransient, stage.Upload, "publish",
			strings.Join(append(retryable, terminal...), "; "), nil)
	}
	if len(terminal) > 0 {
		return "", services.Wrap(services.ErrValidation, stage.Upload, "publish",
			strings.Join(terminal, "; "), nil)
	}
	return video, nil
}

func (p *Processor) attempt(ctx context.Context, platform, video string, item *items.WorkItem, title string) Record {
	now := time.Now().UTC()

	if p.opts.DryRun {
		id := "dry-" + uuid.NewString()[:8]
		p.logger.Info("dry run, skipping upload",
			logging.String("platform", platform),
			logging.String("video_id", id))
		record := Record{
			Platform:  platform,
			Success:   true,
			VideoID:   id,
			DryRun:    true,
			Final:     true,
			Timestamp: now,
		}
		if platform == "youtube" {
			record.URL = ytupload.ShortsURL(id)
		}
		return record
	}

	switch platform {
	case "youtube":
		return p.uploadYouTube(ctx, video, item, title, now)
	case "tiktok":
		p.logger.Info("tiktok has no upload API, recording manual follow-up",
			logging.String("video", video))
		return Record{
			Platform:  platform,
			Success:   false,
			Error:     "manual upload required",
			Final:     true,
			Timestamp: now,
		}
	default:
		return Record{
			Platform:  platform,
			Success:   false,
			Error:     fmt.Sprintf("unsupported platform %q", platform),
			Final:     true,
			Timestamp: now,
		}
	}
}

func (p *Processor) uploadYouTube(ctx context.Context, video string, item *items.WorkItem, title string, now time.Time) Record {
	videoID, err := p.youtube.Upload(ctx, ytupload.Request{
		VideoPath:   video,
		Title:       title,
		Description: buildDescription(item, p.cfg.Upload.AffiliateDisclaimer),
		Tags:        item.Tags,
	})
	if err != nil {
		return Record{
			Platform:  "youtube",
			Success:   false,
			Error:     err.Error(),
			Final:     services.IsTerminal(err),
			Timestamp: now,
		}
	}

	if err := p.youtube.Verify(ctx, videoID); err != nil {
		return Record{
			Platform:  "youtube",
			Success:   false,
			VideoID:   videoID,
			Error:     err.Error(),
			Final:     services.IsTerminal(err),
			Timestamp: now,
		}
	}

	return Record{
		Platform:  "youtube",
		Success:   true,
		VideoID:   videoID,
		URL:       ytupload.ShortsURL(videoID),
		Final:     true,
		Timestamp: now,
	}
}

func (p *Processor) updateStats(title string, record Record) error {
	stats, err := LoadStats(p.cfg.Paths.UploadsDir)
	if err != nil {
		return err
	}
	stats.RecordAttempt(title, record)
	return stats.Save(p.cfg.Paths.UploadsDir)
}

func uploadTitle(item *items.WorkItem) string {
	if title := strings.TrimSpace(item.Title); title != "" {
		return title
	}
	return strings.TrimSpace(item.Caption)
}

func buildDescription(item *items.WorkItem, disclaimer string) string {
	parts := []string{strings.TrimSpace(item.Caption)}
	if len(item.Tags) > 0 {
		hashtags := make([]string, 0, len(item.Tags))
		for _, tag := range item.Tags {
			hashtags = append(hashtags, "#"+tag)
		}
		parts = append(parts, strings.Join(hashtags, " "))
	}
	if disclaimer = strings.TrimSpace(disclaimer); disclaimer != "" {
		parts = append(parts, disclaimer)
	}
	return strings.Join(parts, "\n\n")
}
