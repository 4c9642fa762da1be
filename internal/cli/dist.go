package cli

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/madmax88/quicklisp-client/pkg/errors"
)

// distCommand creates the distribution metadata command.
func (c *CLI) distCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dist",
		Short: "Inspect the configured distribution",
	}

	cmd.AddCommand(c.distInfoCommand())

	return cmd
}

// distInfoCommand creates the "dist info" subcommand.
func (c *CLI) distInfoCommand() *cobra.Command {
	var refresh bool

	cmd := &cobra.Command{
		Use:   "info",
		Short: "Show distribution metadata and index sizes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
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
			snap, err := client.Snapshot(ctx, refresh)
			spin.Stop()
			if err != nil {
				printError("%s", errors.UserMessage(err))
				return err
			}

			info := snap.Info()
			printKeyValue("Name", info.Name)
			printKeyValue("Version", info.Version)
			printKeyValue("Distinfo", info.DistinfoURL)
			printKeyValue("Subscription", info.SubscriptionURL)
			printKeyValue("Systems", strconv.Itoa(snap.SystemCount()))
			printKeyValue("Releases", strconv.Itoa(snap.ReleaseCount()))
			return nil
		},
	}

	cmd.Flags().BoolVar(&refresh, "refresh", false, "re-fetch distribution metadata")

	return cmd
}
