package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/neuroplatform/simforms/internal/config"
	"github.com/neuroplatform/simforms/internal/server"
	"github.com/neuroplatform/simforms/pkg/orchestrator"
	"github.com/neuroplatform/simforms/pkg/render"
	"github.com/neuroplatform/simforms/pkg/renderers/tui"
)

// ErrInvalidPayload is returned by validate when the payload fails the
// request schema.
var ErrInvalidPayload = errors.New("payload does not match the request schema")

func (a *app) newServeCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the web front-end",
		Args:  cobra.NoArgs,
		RunE: func(cc *cobra.Command, _ []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Addr = addr
			}
			orch, err := a.orchestrator(cfg)
			if err != nil {
				return err
			}
			srv, err := server.New(cfg, server.WithOrchestrator(orch), server.WithLogger(a.logger))
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cc.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return srv.Run(ctx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address, overrides "+config.EnvAddr)
	return cmd
}

func (a *app) newFormsCmd() *cobra.Command {
	var source string

	cmd := &cobra.Command{
		Use:   "forms",
		Short: "List the endpoints that accept a request body",
		Args:  cobra.NoArgs,
		RunE: func(cc *cobra.Command, _ []string) error {
			cfg, err := a.sourceConfig(source)
			if err != nil {
				return err
			}
			orch, err := a.orchestrator(cfg)
			if err != nil {
				return err
			}
			catalog, err := a.catalog(cc.Context(), orch, source)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cc.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, op := range catalog.Operations().WithBody() {
				fmt.Fprintf(w, "%s\t%s\t%s\n", op.Method, op.Path, op.Summary)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&source, "source", "", "OpenAPI document file or URL (defaults to the configured API)")
	return cmd
}

func (a *app) newRenderCmd() *cobra.Command {
	var (
		source   string
		path     string
		renderer string
		output   string
		variant  string
		fragment bool
	)

	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render the workspace of one endpoint",
		Args:  cobra.NoArgs,
		RunE: func(cc *cobra.Command, _ []string) error {
			cfg, err := a.sourceConfig(source)
			if err != nil {
				return err
			}
			orch, err := a.orchestrator(cfg)
			if err != nil {
				return err
			}
			catalog, err := a.catalog(cc.Context(), orch, source)
			if err != nil {
				return err
			}
			doc := catalog.Document()
			if variant == "" {
				variant = cfg.ThemeVariant
			}

			out, err := orch.Generate(cc.Context(), orchestrator.Request{
				Document:      &doc,
				Path:          path,
				Renderer:      renderer,
				ThemeName:     cfg.ThemeName,
				ThemeVariant:  variant,
				RenderOptions: render.RenderOptions{Fragment: fragment},
			})
			if err != nil {
				return err
			}
			return writeOutput(cc.OutOrStdout(), output, out)
		},
	}
	cmd.Flags().StringVar(&source, "source", "", "OpenAPI document file or URL (defaults to the configured API)")
	cmd.Flags().StringVar(&path, "path", "", "Endpoint path, e.g. /generate/simulation-config")
	cmd.Flags().StringVar(&renderer, "renderer", "", "Renderer name (vanilla, json)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (stdout if empty)")
	cmd.Flags().StringVar(&variant, "variant", "", "Theme variant, e.g. dark")
	cmd.Flags().BoolVar(&fragment, "fragment", false, "Render only the block panel")
	_ = cmd.MarkFlagRequired("path")
	return cmd
}

func (a *app) newFillCmd() *cobra.Command {
	var (
		source   string
		path     string
		format   string
		output   string
		typeName string
	)

	cmd := &cobra.Command{
		Use:   "fill",
		Short: "Fill the workspace of one endpoint from terminal prompts",
		Args:  cobra.NoArgs,
		RunE: func(cc *cobra.Command, _ []string) error {
			driver := a.driver
			if driver == nil && !tui.Interactive(os.Stdin) {
				return errors.New("fill needs an interactive terminal")
			}
			cfg, err := a.sourceConfig(source)
			if err != nil {
				return err
			}
			orch, err := a.orchestrator(cfg)
			if err != nil {
				return err
			}
			catalog, err := a.catalog(cc.Context(), orch, source)
			if err != nil {
				return err
			}
			ws, err := orch.NewWorkspace(catalog, path)
			if err != nil {
				return err
			}

			r, err := tui.New(
				tui.WithPromptDriver(driver),
				tui.WithOutputFormat(tui.OutputFormat(format)),
				tui.WithMessageOutput(cc.ErrOrStderr()),
				tui.WithLogger(a.logger),
			)
			if err != nil {
				return err
			}
			out, err := r.Fill(cc.Context(), ws, typeName)
			if err != nil {
				return err
			}
			return writeOutput(cc.OutOrStdout(), output, out)
		},
	}
	cmd.Flags().StringVar(&source, "source", "", "OpenAPI document file or URL (defaults to the configured API)")
	cmd.Flags().StringVar(&path, "path", "", "Endpoint path, e.g. /generate/simulation-config")
	cmd.Flags().StringVar(&format, "format", string(tui.OutputFormatJSON), "Output format (json, pretty)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (stdout if empty)")
	cmd.Flags().StringVar(&typeName, "type", "", "Type tag of the payload (defaults to the root schema type)")
	_ = cmd.MarkFlagRequired("path")
	return cmd
}

func (a *app) newValidateCmd() *cobra.Command {
	var (
		source string
		path   string
	)

	cmd := &cobra.Command{
		Use:   "validate PAYLOAD",
		Short: "Check a JSON payload against the request schema of an endpoint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cc *cobra.Command, args []string) error {
			raw, err := readInput(cc.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			var payload map[string]any
			if err := json.Unmarshal(raw, &payload); err != nil {
				return fmt.Errorf("decode payload: %w", err)
			}

			cfg, err := a.sourceConfig(source)
			if err != nil {
				return err
			}
			orch, err := a.orchestrator(cfg)
			if err != nil {
				return err
			}
			catalog, err := a.catalog(cc.Context(), orch, source)
			if err != nil {
				return err
			}
			result, err := catalog.Validate(path, payload)
			if err != nil {
				return err
			}
			if result.Valid {
				fmt.Fprintln(cc.OutOrStdout(), "ok")
				return nil
			}

			issues := result.ForPrefix("")
			locations := make([]string, 0, len(issues))
			for location := range issues {
				locations = append(locations, location)
			}
			sort.Strings(locations)
			for _, location := range locations {
				name := location
				if name == "" {
					name = "(root)"
				}
				for _, message := range issues[location] {
					fmt.Fprintf(cc.OutOrStdout(), "%s: %s\n", name, message)
				}
			}
			return ErrInvalidPayload
		},
	}
	cmd.Flags().StringVar(&source, "source", "", "OpenAPI document file or URL (defaults to the configured API)")
	cmd.Flags().StringVar(&path, "path", "", "Endpoint path, e.g. /generate/simulation-config")
	_ = cmd.MarkFlagRequired("path")
	return cmd
}

func newSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON schema of the config file",
		Args:  cobra.NoArgs,
		RunE: func(cc *cobra.Command, _ []string) error {
			encoded, err := json.MarshalIndent(config.Schema(), "", "  ")
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cc.OutOrStdout(), string(encoded))
			return err
		},
	}
}

// readInput reads name, where "-" means in.
func readInput(in io.Reader, name string) ([]byte, error) {
	if strings.TrimSpace(name) == "-" {
		return io.ReadAll(in)
	}
	//nolint:gosec // G304 reading a user-named payload is the point.
	return os.ReadFile(name)
}

func writeOutput(stdout io.Writer, path string, data []byte) error {
	if path == "" {
		_, err := stdout.Write(data)
		if err == nil && len(data) > 0 && data[len(data)-1] != '\n' {
			_, err = io.WriteString(stdout, "\n")
		}
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
