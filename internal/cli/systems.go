package cli

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/madmax88/quicklisp-client/pkg/bundle"
	"github.com/madmax88/quicklisp-client/pkg/dist"
	"github.com/madmax88/quicklisp-client/pkg/errors"
)

// systemsOpts holds the command-line flags for the systems command.
type systemsOpts struct {
	interactive bool // browse systems in a TUI instead of listing them
	refresh     bool // re-fetch distribution metadata
}

// systemsCommand creates the systems listing command.
func (c *CLI) systemsCommand() *cobra.Command {
	opts := systemsOpts{}

	cmd := &cobra.Command{
		Use:   "systems [query]",
		Short: "List systems available in the distribution",
		Long: `List the systems the configured distribution provides, optionally
filtered by a substring query.

Examples:
  ql systems
  ql systems ppcre
  ql systems --interactive`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := ""
			if len(args) == 1 {
				query = args[0]
			}
			return c.runSystems(cmd, query, opts)
		},
	}

	cmd.Flags().BoolVarP(&opts.interactive, "interactive", "i", false, "browse systems interactively")
	cmd.Flags().BoolVar(&opts.refresh, "refresh", false, "re-fetch distribution metadata")

	return cmd
}

func (c *CLI) runSystems(cmd *cobra.Command, query string, opts systemsOpts) error {
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
	spin.Stop()
	if err != nil {
		printError("%s", errors.UserMessage(err))
		return err
	}

	systems := matchSystems(ctx, snap, query)
	if len(systems) == 0 {
		printWarning("No systems match %q", query)
		return nil
	}

	if opts.interactive {
		return c.pickSystem(systems)
	}

	for _, s := range systems {
		fmt.Println(s.Name)
	}
	printDetail("%d of %d systems", len(systems), snap.SystemCount())
	return nil
}

// matchSystems returns the snapshot's systems whose name contains query,
// in sorted name order. An empty query matches everything.
func matchSystems(ctx context.Context, snap *dist.Snapshot, query string) []*bundle.System {
	query = strings.ToLower(query)
	var out []*bundle.System
	for _, name := range snap.SystemNames() {
		if query != "" && !strings.Contains(strings.ToLower(name), query) {
			continue
		}
		s, err := snap.LookupSystem(ctx, name)
		if err != nil {
			continue
		}
		out = append(out, s)
	}
	return out
}

// pickSystem runs the interactive browser and prints details for the
// selected system.
func (c *CLI) pickSystem(systems []*bundle.System) error {
	model := NewSystemListModel(systems)
	prog := tea.NewProgram(model)
	final, err := prog.Run()
	if err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "running system browser")
	}

	m, ok := final.(SystemListModel)
	if !ok || m.Selected == nil {
		return nil
	}

	s := m.Selected
	printNewline()
	printKeyValue("System", s.Name)
	printKeyValue("Release", s.ReleaseName)
	printKeyValue("System file", s.SystemFile)
	if len(s.Requires) > 0 {
		printKeyValue("Depends on", strings.Join(s.Requires, ", "))
	}
	printNewline()
	printNextStep("Bundle it", fmt.Sprintf("ql bundle %s --to ./bundle", s.Name))
	return nil
}
