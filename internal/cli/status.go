package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"refsync/internal/refspec"
	"refsync/internal/report"
)

const (
	formatText     = "text"
	formatMarkdown = "markdown"
)

type statusRunner struct {
	app    *App
	format string
	width  int
}

func newStatusCommand(app *App) *cobra.Command {
	r := &statusRunner{app: app}
	c := &cobra.Command{
		Use:   "status PROJECT_FILE",
		Short: "Show how every clone compares to its requested reference",
		Long: `Show how every clone compares to its requested reference without changing
anything. Nothing is fetched, so a branch that moved upstream is reported
against the last fetched state.`,
		Args: cobra.ExactArgs(1),
		RunE: r.runE,
	}
	c.Flags().StringVar(&r.format, "format", formatText, `output format: "text" or "markdown"`)
	c.Flags().IntVar(&r.width, "width", 100, "wrap width for markdown output")
	return c
}

func (r *statusRunner) runE(cmd *cobra.Command, args []string) error {
	app := r.app
	if r.format != formatText && r.format != formatMarkdown {
		return fmt.Errorf("unknown format %q", r.format)
	}

	p, err := app.loadProject(args[0])
	if err != nil {
		return err
	}
	backend, err := app.backend()
	if err != nil {
		return err
	}

	resolver := refspec.NewResolver(app.Registry, app.Logger)
	statuses, err := report.Collect(cmd.Context(), backend, resolver, p.Repos)
	if err != nil {
		return err
	}

	if r.format == formatText {
		fmt.Fprint(app.Out, report.RenderText(statuses))
		return nil
	}
	out, err := report.RenderMarkdown(statuses, report.DetectStyle(200*time.Millisecond), r.width)
	if err != nil {
		return err
	}
	fmt.Fprint(app.Out, out)
	return nil
}
