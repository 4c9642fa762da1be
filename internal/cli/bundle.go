package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/madmax88/quicklisp-client/pkg/archive"
	"github.com/madmax88/quicklisp-client/pkg/bundle"
	"github.com/madmax88/quicklisp-client/pkg/errors"
	"github.com/madmax88/quicklisp-client/pkg/pipeline"
)

// bundleOpts holds the command-line flags for the bundle command.
type bundleOpts struct {
	target  string // target directory the bundle is materialized into
	refresh bool   // re-fetch distribution metadata and re-resolve
	noCache bool   // disable the manifest cache entirely
}

// bundleCommand creates the bundle command.
//
// The command resolves the full dependency closure of the named systems
// against the configured distribution, downloads the release archives, and
// unpacks everything into the target directory together with a system index
// and a loader script.
func (c *CLI) bundleCommand() *cobra.Command {
	opts := bundleOpts{}

	cmd := &cobra.Command{
		Use:   "bundle <system>...",
		Short: "Bundle systems and their dependencies into a directory",
		Long: `Bundle one or more systems and their full dependency closure into a
self-contained directory that loads without network access.

Examples:
  ql bundle alexandria --to ./vendor
  ql bundle cl-ppcre hunchentoot --to ./bundle --refresh`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runBundle(cmd, args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.target, "to", "t", "", "target directory for the bundle (required)")
	cmd.Flags().BoolVar(&opts.refresh, "refresh", false, "re-fetch distribution metadata")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "disable the manifest cache")
	_ = cmd.MarkFlagRequired("to")

	return cmd
}

func (c *CLI) runBundle(cmd *cobra.Command, systems []string, opts bundleOpts) error {
	ctx := withLogger(cmd.Context(), c.Logger)

	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	client, err := c.newDistClient(cfg)
	if err != nil {
		return err
	}

	spin := newSpinner(ctx, "Fetching distribution metadata")
	spin.Start()
	snap, err := client.Snapshot(ctx, opts.refresh)
	if err != nil {
		spin.Stop()
		if spin.Cancelled() {
			return ctx.Err()
		}
		printError("%s", errors.UserMessage(err))
		return err
	}
	spin.Stop()
	printInfo("Distribution %s %s", snap.Info().Name, snap.Info().Version)

	archives, err := archiveDir(cfg)
	if err != nil {
		return err
	}
	store, err := archive.NewStore(archives)
	if err != nil {
		return err
	}

	runner, err := c.newRunner(cmd, cfg, opts.noCache)
	if err != nil {
		return err
	}
	defer runner.Close()

	prog := newProgress(c.Logger)
	result, err := runner.Execute(ctx, snap, store, pipeline.Options{
		Systems: systems,
		Target:  opts.target,
		Refresh: opts.refresh,
		Logger:  c.Logger,
	})
	if err != nil {
		printError("%s", errors.UserMessage(err))
		return err
	}
	prog.done(fmt.Sprintf("Bundled %d systems", result.Stats.SystemCount))

	printSuccess("Bundle written to %s", result.Target)
	printStats(result.Stats.SystemCount, result.Stats.ReleaseCount, result.CacheInfo.ManifestHit)
	printFile(filepath.Join(result.Target, bundle.SystemIndexFile))
	printFile(filepath.Join(result.Target, bundle.LoaderFile))
	printNewline()
	printNextStep("Load the bundle from Lisp", fmt.Sprintf(`(load %q)`, filepath.Join(result.Target, bundle.LoaderFile)))

	return nil
}
