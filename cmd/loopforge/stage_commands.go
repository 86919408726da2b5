package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"loopforge/internal/config"
	"loopforge/internal/generating"
	"loopforge/internal/logging"
	"loopforge/internal/notifications"
	"loopforge/internal/processing"
	"loopforge/internal/render"
	"loopforge/internal/rendering"
	"loopforge/internal/services"
	"loopforge/internal/services/ffmpeg"
	"loopforge/internal/services/whisper"
	"loopforge/internal/services/ytupload"
	"loopforge/internal/stage"
	"loopforge/internal/uploading"
	"loopforge/internal/watcher"
)

// stageBuilder assembles a stage processor plus its watcher parameters.
type stageBuilder func(cfg *config.Config, logger *slog.Logger, notifier notifications.Service) (stage.Processor, string, time.Duration, error)

func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// runStage drives one stage either as a single batch or as a long-lived
// watcher. The flock guard makes concurrent invocations of the same stage
// fail fast instead of double-processing items.
func runStage(cmd *cobra.Command, cc *commandContext, once bool, build stageBuilder) error {
	cfg, logger, err := cc.ensure()
	if err != nil {
		return err
	}
	notifier := notifications.NewService(cfg)

	proc, inputDir, interval, err := build(cfg, logger, notifier)
	if err != nil {
		return err
	}

	lock := stage.NewLock(cfg.Paths.LogDir, proc.Name())
	if err := lock.Acquire(); err != nil {
		return err
	}
	defer lock.Release()

	w, err := watcher.New(inputDir, proc, interval, logger, notifier,
		watcher.WithRetryInterval(time.Duration(cfg.Workflow.ErrorRetryInterval)*time.Second))
	if err != nil {
		return err
	}

	ctx, stop := signalContext(cmd)
	defer stop()

	if once {
		result, err := w.RunOnce(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: processed %d, failed %d, dropped %d\n",
			proc.Name(), result.Processed, result.Failed, result.Dropped)
		return nil
	}
	return w.Run(ctx)
}

func pollInterval(seconds int) time.Duration {
	if seconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(seconds) * time.Second
}

func newGenerateCommand(cc *commandContext) *cobra.Command {
	var topic string
	var niche string
	var count int
	var once bool

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate prompt work items from a topic",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := cc.ensure()
			if err != nil {
				return err
			}
			ctx, stop := signalContext(cmd)
			defer stop()

			lock := stage.NewLock(cfg.Paths.LogDir, stage.Generate)
			if err := lock.Acquire(); err != nil {
				return err
			}
			defer lock.Release()

			subject := topic
			if subject == "" {
				subject = niche
			}
			notifier := notifications.NewService(cfg)
			gen := generating.New(cfg, logger)
			if err := gen.ValidateEnvironment(ctx); err != nil {
				return err
			}
			paths, err := gen.Generate(ctx, subject, count)
			if err != nil {
				return err
			}
			if nerr := notifier.NotifyStageCompleted(ctx, stage.Generate, len(paths), 0); nerr != nil {
				logger.Warn("notify stage completion", logging.Error(nerr))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "generate: wrote %d work items to %s\n", len(paths), cfg.Paths.PromptsDir)
			return nil
		},
	}

	cmd.Flags().StringVar(&topic, "topic", "", "Topic to generate ideas for (overrides --niche)")
	cmd.Flags().StringVar(&niche, "niche", "", "Content niche to generate ideas for (defaults to the configured niche)")
	cmd.Flags().IntVar(&count, "count", 0, "Number of ideas to request (defaults to the configured count)")
	// Generation is always a single batch; the flag exists so the pipeline
	// can pass --once to every stage uniformly.
	cmd.Flags().BoolVar(&once, "once", false, "Run a single batch and exit")
	return cmd
}

func newRenderCommand(cc *commandContext) *cobra.Command {
	var engine string
	var workflowFile string
	var once bool

	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render pending prompts into raw clips",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStage(cmd, cc, once, func(cfg *config.Config, logger *slog.Logger, _ notifications.Service) (stage.Processor, string, time.Duration, error) {
				name := engine
				if name == "" {
					name = cfg.Rendering.Engine
				}
				if workflowFile != "" {
					cfg.Rendering.ComfyUI.WorkflowFile = workflowFile
				}
				registry := render.NewRegistry(cfg, logger)
				renderer, err := registry.Get(name)
				if err != nil {
					return nil, "", 0, err
				}
				vctx := cmd.Context()
				if vctx == nil {
					vctx = context.Background()
				}
				if err := renderer.ValidateEnvironment(vctx); err != nil {
					return nil, "", 0, err
				}
				proc := rendering.New(cfg, renderer, logger)
				return proc, cfg.Paths.PromptsDir, pollInterval(cfg.Workflow.QueuePollInterval), nil
			})
		},
	}

	cmd.Flags().StringVar(&engine, "engine", "", "Render backend to use (comfyui or invokeai)")
	cmd.Flags().StringVar(&workflowFile, "workflow", "", "ComfyUI workflow template to use instead of the configured one")
	cmd.Flags().BoolVar(&once, "once", false, "Drain the queue once and exit instead of watching")
	return cmd
}

func newProcessCommand(cc *commandContext) *cobra.Command {
	var opts processing.Options
	var once bool

	cmd := &cobra.Command{
		Use:   "process",
		Short: "Post-process rendered clips into final videos",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStage(cmd, cc, once, func(cfg *config.Config, logger *slog.Logger, _ notifications.Service) (stage.Processor, string, time.Duration, error) {
				proc := processing.New(cfg,
					ffmpeg.NewService(cfg.FFmpegBinary(), services.ExecRunner{}),
					whisper.NewService(cfg.WhisperBinary(), services.ExecRunner{}),
					opts,
					logger)
				return proc, cfg.Paths.RenderedDir, pollInterval(cfg.Workflow.QueuePollInterval), nil
			})
		},
	}

	cmd.Flags().BoolVar(&opts.SkipCaptions, "skip-captions", false, "Skip caption burn-in")
	cmd.Flags().BoolVar(&opts.SkipBRoll, "skip-broll", false, "Skip b-roll overlay")
	cmd.Flags().BoolVar(&opts.SkipWatermark, "skip-watermark", false, "Skip the watermark")
	cmd.Flags().BoolVar(&once, "once", false, "Drain the queue once and exit instead of watching")
	return cmd
}

func newUploadCommand(cc *commandContext) *cobra.Command {
	var opts uploading.Options
	var once bool

	cmd := &cobra.Command{
		Use:   "upload",
		Short: "Publish final videos to the configured platforms",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStage(cmd, cc, once, func(cfg *config.Config, logger *slog.Logger, notifier notifications.Service) (stage.Processor, string, time.Duration, error) {
				client := ytupload.NewClient(cfg.UploaderBinary(), cfg.Upload)
				proc := uploading.New(cfg, client, notifier, opts, logger)
				return proc, cfg.Paths.FinalDir, pollInterval(cfg.Workflow.UploadPollInterval), nil
			})
		},
	}

	cmd.Flags().StringSliceVar(&opts.Platforms, "platforms", nil, "Override the configured platform list")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "Record synthetic successes without uploading")
	cmd.Flags().BoolVar(&once, "once", false, "Drain the queue once and exit instead of watching")
	return cmd
}
