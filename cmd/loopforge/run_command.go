package main

import (
	"github.com/spf13/cobra"

	"loopforge/internal/notifications"
	"loopforge/internal/pipeline"
	"loopforge/internal/stage"
)

func newRunCommand(cc *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [stage]",
		Short: "Run the full pipeline, or a single stage, as a batch",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := cc.ensure()
			if err != nil {
				return err
			}
			ctx, stop := signalContext(cmd)
			defer stop()

			notifier := notifications.NewService(cfg)
			orch := pipeline.New(cfg, cc.configPath, notifier, logger,
				pipeline.WithOutput(cmd.OutOrStdout()))

			if len(args) == 1 {
				name := args[0]
				// Accept the subcommand spelling too.
				if name == "process" {
					name = stage.PostProcess
				}
				return orch.RunSingle(ctx, name)
			}
			return orch.Run(ctx)
		},
	}
	return cmd
}
