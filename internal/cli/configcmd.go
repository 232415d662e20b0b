package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"refsync/internal/config"
)

func newConfigCommand(app *App) *cobra.Command {
	c := &cobra.Command{
		Use:   "config",
		Short: "Inspect and create the refsync configuration file",
	}
	c.AddCommand(newConfigShowCommand(app), newConfigInitCommand(app))
	return c
}

func newConfigShowCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Long: `Print the effective configuration: the config file, then environment
variables, then command-line flags.`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			path, exists := config.FindConfigFile()
			source := path
			if !exists {
				source = "defaults (no file at " + path + ")"
			}
			fmt.Fprintf(app.Out, "# source: %s\n", source)

			out, err := yaml.Marshal(app.cfg)
			if err != nil {
				return fmt.Errorf("failed to encode config: %w", err)
			}
			_, err = app.Out.Write(out)
			return err
		},
	}
}

type configInitRunner struct {
	app   *App
	force bool
}

func newConfigInitCommand(app *App) *cobra.Command {
	r := &configInitRunner{app: app}
	c := &cobra.Command{
		Use:   "init",
		Short: "Write the effective configuration to the config file",
		Args:  cobra.NoArgs,
		RunE:  r.runE,
	}
	c.Flags().BoolVar(&r.force, "force", false, "overwrite an existing config file")
	return c
}

func (r *configInitRunner) runE(_ *cobra.Command, _ []string) error {
	path, exists := config.FindConfigFile()
	if path == "" {
		return fmt.Errorf("cannot determine config file location")
	}
	if exists && !r.force {
		return fmt.Errorf("config file %s already exists (use --force to overwrite)", path)
	}
	if err := r.app.cfg.SaveTo(path); err != nil {
		return err
	}
	fmt.Fprintf(r.app.Out, "Wrote %s\n", path)
	return nil
}
