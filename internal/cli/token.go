package cli

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newTokenCommand(app *App) *cobra.Command {
	c := &cobra.Command{
		Use:   "token",
		Short: "Manage HTTPS access tokens kept in the system keyring",
	}
	c.AddCommand(newTokenSetCommand(app), newTokenDeleteCommand(app))
	return c
}

type tokenSetRunner struct {
	app   *App
	token string
}

func newTokenSetCommand(app *App) *cobra.Command {
	r := &tokenSetRunner{app: app}
	c := &cobra.Command{
		Use:   "set HOST",
		Short: "Store the token used to fetch from HOST",
		Long: `Store the token used to fetch from HOST over HTTPS. Without --token the
token is read from the first line of standard input.`,
		Example: `  echo "$GITHUB_TOKEN" | refsync token set github.com`,
		Args:    cobra.ExactArgs(1),
		RunE:    r.runE,
	}
	c.Flags().StringVar(&r.token, "token", "", "token value (default: read from stdin)")
	return c
}

func (r *tokenSetRunner) runE(_ *cobra.Command, args []string) error {
	app := r.app
	if app.Credentials == nil {
		return errors.New("no credential store available")
	}
	token := r.token
	if token == "" {
		line, err := bufio.NewReader(app.In).ReadString('\n')
		if err != nil && line == "" {
			return fmt.Errorf("failed to read token from stdin: %w", err)
		}
		token = strings.TrimSpace(line)
	}
	if token == "" {
		return errors.New("token cannot be empty")
	}

	if err := app.Credentials.StoreToken(args[0], token); err != nil {
		return err
	}
	fmt.Fprintf(app.Out, "Stored token for %s\n", args[0])
	return nil
}

func newTokenDeleteCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "delete HOST",
		Short: "Remove the token stored for HOST",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			if app.Credentials == nil {
				return errors.New("no credential store available")
			}
			if err := app.Credentials.DeleteToken(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(app.Out, "Deleted token for %s\n", args[0])
			return nil
		},
	}
}
