package main

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"ampliflow/internal/config"
	"ampliflow/internal/logging"
	"ampliflow/internal/runs"
	"ampliflow/internal/services/qiime"
)

// qiimeExecutor replaces the process executor when set. Tests use it to
// answer qiime invocations without a QIIME 2 installation.
var qiimeExecutor qiime.Executor

type commandContext struct {
	configFlag *string
	verbose    *bool

	configOnce sync.Once
	config     *config.Config
	configPath string
	configErr  error
}

func newCommandContext(configFlag *string, verbose *bool) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		verbose:    verbose,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, resolved, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if c.verbose != nil && *c.verbose {
			cfg.Logging.Level = "debug"
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.configPath = resolved
	})
	return c.config, c.configErr
}

func (c *commandContext) logger() (*slog.Logger, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return logging.NewFromConfig(cfg)
}

func (c *commandContext) withStore(fn func(*runs.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	store, err := runs.Open(cfg.RunDatabasePath())
	if err != nil {
		return fmt.Errorf("open run store: %w", err)
	}
	defer store.Close()
	return fn(store)
}

func (c *commandContext) qiimeClient(logger *slog.Logger) (*qiime.Client, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	opts := []qiime.Option{qiime.WithLogger(logger)}
	if cfg.Qiime.TmpDir != "" {
		opts = append(opts, qiime.WithTmpDir(cfg.Qiime.TmpDir))
	}
	if qiimeExecutor != nil {
		opts = append(opts, qiime.WithExecutor(qiimeExecutor))
	}
	return qiime.New(cfg.QiimeBinary(), cfg.Qiime.ActionTimeout, opts...)
}

// resolveAction picks the action named in args, or the only configured
// action when args is empty.
func (c *commandContext) resolveAction(args []string) (string, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return "", err
	}
	if len(args) > 0 && strings.TrimSpace(args[0]) != "" {
		name := strings.TrimSpace(args[0])
		if _, err := cfg.Action(name); err != nil {
			return "", err
		}
		return name, nil
	}
	names := cfg.ActionNames()
	switch len(names) {
	case 0:
		return "", fmt.Errorf("no actions configured; add an [actions.<name>] section (see `ampliflow config init`)")
	case 1:
		return names[0], nil
	default:
		return "", fmt.Errorf("several actions configured (%s); name one", strings.Join(names, ", "))
	}
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
