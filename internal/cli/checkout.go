package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"refsync/internal/checkout"
	"refsync/internal/orchestrator"
	"refsync/internal/refspec"
	"refsync/internal/report"
	"refsync/internal/tui/progress"
)

type checkoutRunner struct {
	app      *App
	update   bool
	progress bool
}

func newCheckoutCommand(app *App) *cobra.Command {
	r := &checkoutRunner{app: app}
	c := &cobra.Command{
		Use:   "checkout PROJECT_FILE",
		Short: "Clone missing repositories and move every clone to its reference",
		Long: `Clone missing repositories and move every clone to the commit, branch or
tag named in the project file.

A commit is checked out with a detached HEAD. A branch is checked out as a
local branch tracking origin. A tag is checked out with a detached HEAD at
the commit it points to. Clones already at their reference are left alone.`,
		Example: `  # check out every repository of kas.yml below ./build
  refsync checkout --work-dir build kas.yml

  # also pick up new commits on followed branches and moved tags
  refsync checkout --update kas.yml`,
		Args: cobra.ExactArgs(1),
		RunE: r.runE,
	}
	c.Flags().BoolVar(&r.update, "update", false, "fetch even when the reference exists locally and move branches to origin")
	c.Flags().BoolVar(&r.progress, "progress", false, "show a live progress view (default: config progress)")
	return c
}

func (r *checkoutRunner) runE(cmd *cobra.Command, args []string) error {
	app := r.app
	p, err := app.loadProject(args[0])
	if err != nil {
		return err
	}
	backend, err := app.backend()
	if err != nil {
		return err
	}

	opts := checkout.Options{Update: r.update}
	if app.Credentials != nil {
		opts.Tokens = app.Credentials
	}
	resolver := refspec.NewResolver(app.Registry, app.Logger)
	executor := checkout.New(backend, app.Logger, opts)

	run := func(ctx context.Context, obs orchestrator.Observer) ([]orchestrator.Result, error) {
		o := orchestrator.New(resolver, executor, app.Logger, orchestrator.Options{
			Jobs:     app.cfg.Jobs,
			Observer: obs,
		})
		return o.Sync(ctx, p.Repos)
	}

	showProgress := r.progress || (app.cfg.Progress && !cmd.Flags().Changed("progress"))
	var results []orchestrator.Result
	if showProgress && app.IsTerminal != nil && app.IsTerminal() {
		names := make([]string, len(p.Repos))
		for i, spec := range p.Repos {
			names[i] = spec.Name
		}
		results, err = progress.Run(cmd.Context(), app.Err, names, app.Logger, run)
	} else {
		results, err = run(cmd.Context(), nil)
	}

	// Configuration errors stop the run before any clone is touched; the
	// error alone says what to fix.
	if !errors.Is(err, orchestrator.ErrInvalidProject) && !errors.Is(err, refspec.ErrRef) {
		fmt.Fprint(app.Out, report.RenderResults(results))
	}
	return err
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
