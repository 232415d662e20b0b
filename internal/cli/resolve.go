package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"refsync/internal/refspec"
)

func newResolveCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve PROJECT_FILE",
		Short: "Print the reference each repository resolves to",
		Long: `Print the reference each repository resolves to, without touching any
clone. Configuration errors such as a repository naming no reference, or a
tag and commit that disagree, are reported here as they would be by checkout.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := app.loadProject(args[0])
			if err != nil {
				return err
			}
			resolver := refspec.NewResolver(app.Registry, app.Logger)
			resolutions, err := resolver.ResolveAll(p.Repos)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(app.Out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tKIND\tREFERENCE\tPATH")
			for _, res := range resolutions {
				ref := res.Ref.Ref()
				if ref == "" {
					ref = "-"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", res.Spec.Name, res.Ref.Kind, ref, res.Spec.Path)
			}
			return w.Flush()
		},
	}
}
