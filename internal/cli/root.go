// Package cli wires the simforms commands.
package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"

	"github.com/neuroplatform/simforms/internal/config"
	"github.com/neuroplatform/simforms/internal/log"
	"github.com/neuroplatform/simforms/pkg/apiclient"
	"github.com/neuroplatform/simforms/pkg/orchestrator"
	"github.com/neuroplatform/simforms/pkg/render"
	"github.com/neuroplatform/simforms/pkg/renderers/tui"
	"github.com/neuroplatform/simforms/pkg/schema"
)

// Option customises the command tree, mostly for tests.
type Option func(*app)

// WithPromptDriver replaces the terminal prompts used by fill.
func WithPromptDriver(driver tui.PromptDriver) Option {
	return func(a *app) {
		a.driver = driver
	}
}

// WithLookup replaces the environment lookup used to load configuration.
func WithLookup(lookup config.LookupFunc) Option {
	return func(a *app) {
		a.lookup = lookup
	}
}

// app holds the state shared by the commands of one invocation.
type app struct {
	logger     *slog.Logger
	configPath string
	lookup     config.LookupFunc
	driver     tui.PromptDriver
}

func NewRootCmd(name string, opts ...Option) *cobra.Command {
	a := &app{logger: slog.Default()}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}

	cmd := &cobra.Command{
		Use:   name,
		Short: "Forms for the endpoints of a modeling API",
		Long: `simforms turns the request schemas of a modeling API into editable
workspaces. Run "serve" for the web front-end, or "render" and "fill" to
work with a single endpoint from the command line.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       GetVersionString(),
	}

	cmd.PersistentFlags().String("log-level", "warn", "Set the log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("log-format", "", "Set the log format (text, logfmt, json)")
	cmd.PersistentFlags().StringVar(&a.configPath, "config", "", "Path to a YAML, TOML or JSON config file")

	cmd.PersistentPreRunE = func(cc *cobra.Command, _ []string) error {
		flags := cc.Flags()

		var merr error

		logLevel, err := flags.GetString("log-level")
		if err != nil {
			merr = multierror.Append(merr, err)
		}

		logFormat, err := flags.GetString("log-format")
		if err != nil {
			merr = multierror.Append(merr, err)
		}

		if merr != nil {
			return fmt.Errorf("invalid argument: %w", merr)
		}

		h, err := log.CreateHandler(cc.ErrOrStderr(), logLevel, logFormat)
		if err != nil {
			return fmt.Errorf("failed creating log handler: %w", err)
		}
		a.logger = slog.New(h)
		slog.SetDefault(a.logger)

		return nil
	}

	cmd.AddCommand(a.newServeCmd())
	cmd.AddCommand(a.newFormsCmd())
	cmd.AddCommand(a.newRenderCmd())
	cmd.AddCommand(a.newFillCmd())
	cmd.AddCommand(a.newValidateCmd())
	cmd.AddCommand(newSchemaCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

func (a *app) loadConfig() (config.Config, error) {
	return config.Load(a.configPath, a.lookup)
}

// orchestrator builds the pipeline with the configured theme.
func (a *app) orchestrator(cfg config.Config) (*orchestrator.Orchestrator, error) {
	themes, err := render.NewThemeSet(cfg.ThemeName, cfg.ThemeVariant)
	if err != nil {
		return nil, err
	}
	return orchestrator.New(
		orchestrator.WithLogger(a.logger),
		orchestrator.WithThemeSelector(themes),
	), nil
}

// catalog loads the document named by source, or fetches it from the
// configured API when source is empty.
func (a *app) catalog(ctx context.Context, orch *orchestrator.Orchestrator, source string) (*orchestrator.Catalog, error) {
	if source != "" {
		src, err := schema.ParseSource(source)
		if err != nil {
			return nil, err
		}
		return orch.Load(ctx, src)
	}

	cfg, err := a.loadConfig()
	if err != nil {
		return nil, fmt.Errorf("no --source given: %w", err)
	}
	doc, err := apiclient.New(cfg.APIURL, apiclient.WithLogger(a.logger)).FetchSpec(ctx)
	if err != nil {
		return nil, err
	}
	return orch.Catalog(ctx, doc)
}

// sourceConfig returns the settings for commands that can run without an
// API. With a source and no config file, an unconfigured API falls back to
// the defaults.
func (a *app) sourceConfig(source string) (config.Config, error) {
	cfg, err := a.loadConfig()
	if err != nil && source != "" && a.configPath == "" {
		a.logger.Debug("using default settings", "error", err)
		return config.Default(), nil
	}
	return cfg, err
}
