package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"loopforge/internal/config"
	"loopforge/internal/items"
	"loopforge/internal/logging"
	"loopforge/internal/notifications"
	"loopforge/internal/services"
	"loopforge/internal/stage"
)

// StageResult summarizes one stage invocation for the end-of-run report.
type StageResult struct {
	Stage       string
	Duration    time.Duration
	Err         error
	EmptyOutput bool
}

// Orchestrator runs the pipeline stages as child processes of this binary,
// each in batch mode, in order. A stage failure halts the run; later stages
// never see partial input from a broken predecessor.
type Orchestrator struct {
	cfg        *config.Config
	binary     string
	configPath string
	runner     services.CommandRunner
	notifier   notifications.Service
	logger     *slog.Logger
	out        io.Writer
}

// Option customizes the orchestrator.
type Option func(*Orchestrator)

// WithRunner overrides child process execution.
func WithRunner(runner services.CommandRunner) Option {
	return func(o *Orchestrator) {
		if runner != nil {
			o.runner = runner
		}
	}
}

// WithBinary overrides the executable used to launch stages.
func WithBinary(binary string) Option {
	return func(o *Orchestrator) {
		if binary != "" {
			o.binary = binary
		}
	}
}

// WithOutput redirects the end-of-run summary table.
func WithOutput(out io.Writer) Option {
	return func(o *Orchestrator) {
		if out != nil {
			o.out = out
		}
	}
}

// New constructs a pipeline orchestrator. configPath is forwarded to every
// child so all stages resolve the same configuration file.
func New(cfg *config.Config, configPath string, notifier notifications.Service, logger *slog.Logger, opts ...Option) *Orchestrator {
	if notifier == nil {
		notifier = notifications.Noop()
	}
	binary, err := os.Executable()
	if err != nil {
		binary = "loopforge"
	}
	o := &Orchestrator{
		cfg:        cfg,
		binary:     binary,
		configPath: configPath,
		runner:     services.ExecRunner{},
		notifier:   notifier,
		logger:     logging.NewComponentLogger(logger, "pipeline"),
		out:        os.Stdout,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// commandFor maps a stage name to its subcommand.
func commandFor(stageName string) string {
	if stageName == stage.PostProcess {
		return "process"
	}
	return stageName
}

func (o *Orchestrator) outputDirFor(stageName string) string {
	switch stageName {
	case stage.Generate:
		return o.cfg.Paths.PromptsDir
	case stage.Render:
		return o.cfg.Paths.RenderedDir
	case stage.PostProcess:
		return o.cfg.Paths.FinalDir
	case stage.Upload:
		return o.cfg.Paths.UploadsDir
	default:
		return ""
	}
}

// Run executes every stage in order and reports the outcome. The summary
// table is printed even when a stage fails so the failure point is visible
// at a glance.
func (o *Orchestrator) Run(ctx context.Context) error {
	start := time.Now()
	var results []StageResult

	for _, stageName := range stage.Order() {
		result := o.runStage(ctx, stageName)
		results = append(results, result)

		if result.Err != nil {
			o.renderSummary(results)
			if nerr := o.notifier.NotifyStageFailed(ctx, stageName, result.Err); nerr != nil {
				o.logger.Warn("stage failure notification failed", logging.Error(nerr))
			}
			if nerr := o.notifier.NotifyPipelineFailed(ctx, stageName); nerr != nil {
				o.logger.Warn("pipeline failure notification failed", logging.Error(nerr))
			}
			return fmt.Errorf("pipeline halted at stage %s: %w", stageName, result.Err)
		}
		if result.EmptyOutput {
			o.logger.Warn("stage produced no output", logging.String(logging.FieldStage, stageName))
			if nerr := o.notifier.NotifyEmptyOutput(ctx, stageName, o.outputDirFor(stageName)); nerr != nil {
				o.logger.Warn("empty output notification failed", logging.Error(nerr))
			}
		}
	}

	o.renderSummary(results)
	duration := time.Since(start)
	o.logger.Info("pipeline completed", logging.Duration("duration", duration))
	if nerr := o.notifier.NotifyPipelineCompleted(ctx, duration); nerr != nil {
		o.logger.Warn("pipeline completion notification failed", logging.Error(nerr))
	}
	return nil
}

// RunSingle launches one stage in batch mode and waits for it. It is the
// "run one stage now" entry point used when stages are operated by hand.
func (o *Orchestrator) RunSingle(ctx context.Context, stageName string) error {
	known := false
	for _, name := range stage.Order() {
		if name == stageName {
			known = true
			break
		}
	}
	if !known {
		return services.Wrap(services.ErrValidation, "pipeline", "run stage",
			fmt.Sprintf("unknown stage %q", stageName), nil)
	}
	result := o.runStage(ctx, stageName)
	o.renderSummary([]StageResult{result})
	if result.Err != nil {
		if nerr := o.notifier.NotifyStageFailed(ctx, stageName, result.Err); nerr != nil {
			o.logger.Warn("stage failure notification failed", logging.Error(nerr))
		}
	}
	return result.Err
}

func (o *Orchestrator) runStage(ctx context.Context, stageName string) StageResult {
	stageCtx := ctx
	if timeout := time.Duration(o.cfg.Workflow.StageTimeout) * time.Second; timeout > 0 {
		var cancel context.CancelFunc
		stageCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	args := []string{commandFor(stageName), "--once"}
	if o.configPath != "" {
		args = append(args, "--config", o.configPath)
	}

	o.logger.Info("starting stage", logging.String(logging.FieldStage, stageName))
	start := time.Now()
	output, err := o.runner.Run(stageCtx, o.binary, args...)
	result := StageResult{Stage: stageName, Duration: time.Since(start)}

	if err != nil {
		if stageCtx.Err() == context.DeadlineExceeded {
			err = services.Wrap(services.ErrTimeout, stageName, "run",
				fmt.Sprintf("stage exceeded %ds timeout", o.cfg.Workflow.StageTimeout), err)
		}
		result.Err = err
		o.logger.Error("stage failed",
			logging.String(logging.FieldStage, stageName),
			logging.Duration("duration", result.Duration),
			logging.Error(err))
		if output != "" {
			o.logger.Debug("stage output", logging.String(logging.FieldStage, stageName), logging.String("output", output))
		}
		return result
	}

	result.EmptyOutput = o.outputDirEmpty(stageName)
	o.logger.Info("stage completed",
		logging.String(logging.FieldStage, stageName),
		logging.Duration("duration", result.Duration))
	return result
}

// outputDirEmpty reports whether a finished stage left nothing behind in its
// output directory. Only item documents count; sidecars and artifacts alone
// do not feed the next stage.
func (o *Orchestrator) outputDirEmpty(stageName string) bool {
	dir := o.outputDirFor(stageName)
	if dir == "" {
		return false
	}
	if stageName == stage.Upload {
		// The upload stage leaves records beside the artifacts, not items.
		_, err := os.Stat(dir)
		return err != nil
	}
	found, err := items.ScanDir(dir, logging.NewNop())
	if err != nil {
		return false
	}
	return len(found) == 0
}
