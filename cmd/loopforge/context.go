package main

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"loopforge/internal/config"
	"loopforge/internal/logging"
)

type commandContext struct {
	configFlag *string

	once       sync.Once
	config     *config.Config
	configPath string
	logger     *slog.Logger
	err        error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

// ensure loads configuration and builds the process logger exactly once.
// Every command shares the same resolved config file, so a pipeline run and
// its child stages cannot disagree about directory layout.
func (c *commandContext) ensure() (*config.Config, *slog.Logger, error) {
	c.once.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, resolvedPath, _, err := config.Load(path)
		if err != nil {
			c.err = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.err = err
			return
		}
		logger, err := logging.NewFromConfig(cfg)
		if err != nil {
			c.err = err
			return
		}
		c.config = cfg
		c.configPath = resolvedPath
		c.logger = logger
	})
	return c.config, c.logger, c.err
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
