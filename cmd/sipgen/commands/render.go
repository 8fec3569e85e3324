package commands

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/sipgen/internal/observability"
	"github.com/Sumatoshi-tech/sipgen/pkg/emitter"
	"github.com/Sumatoshi-tech/sipgen/pkg/generator"
)

// NewRenderCommand creates the render command.
func NewRenderCommand() *cobra.Command {
	var (
		rulesPackage  string
		traceDiscards bool
	)

	cmd := &cobra.Command{
		Use:   "render <header>",
		Short: "Render the SIP file of one header to stdout",
		Long: `Render the SIP file of one header and write it to stdout. Nothing is
written to the output directory.

The header is a path relative to the working directory, or to the source
root of the rules package when no such file exists.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var pkg []string
			if rulesPackage != "" {
				pkg = []string{rulesPackage}
			}

			cfg, err := loadConfig(cmd, pkg)
			if err != nil {
				return err
			}

			cfg.Generate.TraceDiscards = cfg.Generate.TraceDiscards || traceDiscards

			tel, err := initObservability(cmd, cfg, observability.ModeCLI, false)
			if err != nil {
				return err
			}
			defer tel.close(cmd)

			rs, err := loadRules(cfg)
			if err != nil {
				return err
			}

			gen, err := generator.New(rs, generator.Options{
				Emitter: emitter.Options{TraceDiscards: cfg.Generate.TraceDiscards},
				Check:   true,
				Diff:    io.Discard,
				Logger:  tel.Logger,
				Tracer:  tel.Tracer,
			})
			if err != nil {
				return err
			}

			out, err := gen.RenderFile(cmd.Context(), headerPath(args[0]))
			if err != nil {
				return fmt.Errorf("render %s: %w", args[0], err)
			}

			_, err = io.WriteString(cmd.OutOrStdout(), out.Text)

			return err
		},
	}

	cmd.Flags().StringVar(&rulesPackage, flagRules, "", "rules package directory")
	cmd.Flags().BoolVar(&traceDiscards, flagTraceDiscards, false, "leave a comment for every discarded item")

	return cmd
}

// headerPath makes name absolute when it exists relative to the working
// directory and leaves it relative to the source root otherwise.
func headerPath(name string) string {
	if filepath.IsAbs(name) {
		return name
	}

	if _, err := os.Stat(name); err != nil {
		return name
	}

	abs, err := filepath.Abs(name)
	if err != nil {
		return name
	}

	return abs
}
