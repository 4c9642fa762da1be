package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/madmax88/quicklisp-client/pkg/errors"
	"github.com/madmax88/quicklisp-client/pkg/export"
	"github.com/madmax88/quicklisp-client/pkg/pipeline"
)

// graphOpts holds the command-line flags for the graph command.
type graphOpts struct {
	format   string // dot, svg, png, or json
	output   string // output file path (stdout if empty)
	detailed bool   // include release and system-file info in node labels
	refresh  bool   // re-fetch distribution metadata and re-resolve
	noCache  bool   // disable the manifest cache
}

// graphCommand creates the dependency graph export command.
//
// The command resolves the closure of the named systems without
// materializing anything and writes the resulting dependency graph in the
// requested format.
func (c *CLI) graphCommand() *cobra.Command {
	opts := graphOpts{format: "dot"}

	cmd := &cobra.Command{
		Use:   "graph <system>...",
		Short: "Export the dependency graph of a system closure",
		Long: `Resolve the dependency closure of one or more systems and export it as
a graph without downloading any archives.

Examples:
  ql graph cl-ppcre
  ql graph hunchentoot --format svg -o deps.svg
  ql graph alexandria cl-ppcre --format json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runGraph(cmd, args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.format, "format", "f", opts.format, "output format: dot, svg, png, or json")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (stdout if empty)")
	cmd.Flags().BoolVar(&opts.detailed, "detailed", false, "include release and system-file info in labels")
	cmd.Flags().BoolVar(&opts.refresh, "refresh", false, "re-fetch distribution metadata")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "disable the manifest cache")

	return cmd
}

func (c *CLI) runGraph(cmd *cobra.Command, systems []string, opts graphOpts) error {
	ctx := withLogger(cmd.Context(), c.Logger)

	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	client, err := c.newDistClient(cfg)
	if err != nil {
		return err
	}

	spin := newSpinner(ctx, "Resolving dependency closure")
	spin.Start()
	snap, err := client.Snapshot(ctx, opts.refresh)
	if err != nil {
		spin.Stop()
		printError("%s", errors.UserMessage(err))
		return err
	}

	runner, err := c.newRunner(cmd, cfg, opts.noCache)
	if err != nil {
		spin.Stop()
		return err
	}
	defer runner.Close()

	manifest, err := runner.Resolve(ctx, snap, pipeline.Options{
		Systems: systems,
		Refresh: opts.refresh,
		Logger:  c.Logger,
	})
	spin.Stop()
	if err != nil {
		printError("%s", errors.UserMessage(err))
		return err
	}

	b := manifest.Bundle()

	var data []byte
	switch opts.format {
	case "dot":
		data = []byte(export.ToDOT(b, export.Options{Detailed: opts.detailed}))
	case "svg":
		dot := export.ToDOT(b, export.Options{Detailed: opts.detailed})
		data, err = export.RenderSVG(ctx, dot)
	case "png":
		dot := export.ToDOT(b, export.Options{Detailed: opts.detailed})
		data, err = export.RenderPNG(ctx, dot)
	case "json":
		if opts.output == "" {
			return export.WriteJSON(b, os.Stdout)
		}
		if err := export.ExportJSON(b, opts.output); err != nil {
			printError("%s", errors.UserMessage(err))
			return err
		}
		printSuccess("Graph written (%d systems)", b.SystemCount())
		printFile(opts.output)
		return nil
	default:
		return errors.New(errors.ErrCodeInvalidInput, "unknown format %q (want dot, svg, png, or json)", opts.format)
	}
	if err != nil {
		printError("%s", errors.UserMessage(err))
		return err
	}

	if opts.output == "" {
		_, err = os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(opts.output, data, 0o644); err != nil {
		return errors.Wrap(errors.ErrCodeIO, err, "writing %s", opts.output)
	}
	printSuccess("Graph written (%d systems)", b.SystemCount())
	printFile(opts.output)
	return nil
}
