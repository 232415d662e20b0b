// Package cli implements the refsync command line.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"refsync/internal/config"
	"refsync/internal/logging"
	"refsync/internal/project"
	"refsync/internal/repository"
	"refsync/internal/vcs"
	"refsync/internal/vcs/gitexec"
	"refsync/internal/vcs/gogit"
	"refsync/internal/warnings"
)

// Credentials stores HTTPS tokens per host and finds the one for a remote.
// *repository.CredentialManager implements it.
type Credentials interface {
	StoreToken(host, token string) error
	DeleteToken(host string) error
	TokenForURL(remoteURL string) (string, error)
}

// BackendFactory creates the version-control backend named in the config.
type BackendFactory func(name string, logger *logging.AppLogger) (vcs.Backend, error)

// App holds what commands share: streams, logger, diagnostics registry,
// credential store and the effective configuration.
type App struct {
	In  io.Reader
	Out io.Writer
	Err io.Writer

	Logger      *logging.AppLogger
	Registry    *warnings.Registry
	Credentials Credentials
	NewBackend  BackendFactory

	// IsTerminal reports whether Err is an interactive terminal, which is
	// required for the progress view.
	IsTerminal func() bool

	cfg   *config.Config
	flags globalFlags
}

type globalFlags struct {
	workDir  string
	jobs     int
	backend  string
	logLevel string
}

// NewApp returns an App wired to the process streams, the OS keyring and
// the real backends.
func NewApp() *App {
	return &App{
		In:          os.Stdin,
		Out:         os.Stdout,
		Err:         os.Stderr,
		Logger:      logging.NewAppLogger(),
		Registry:    warnings.Default(),
		Credentials: repository.NewCredentialManager(),
		NewBackend:  OpenBackend,
		IsTerminal:  func() bool { return isTerminal(os.Stderr) },
	}
}

// OpenBackend returns the backend called name.
func OpenBackend(name string, logger *logging.AppLogger) (vcs.Backend, error) {
	switch name {
	case config.BackendGoGit, "":
		return gogit.New(logger), nil
	case config.BackendGit:
		b, err := gitexec.New(logger)
		if err != nil {
			return nil, err
		}
		return b, nil
	default:
		return nil, fmt.Errorf("unknown backend %q", name)
	}
}

// NewRootCommand builds the command tree.
func NewRootCommand(app *App) *cobra.Command {
	root := &cobra.Command{
		Use:   "refsync",
		Short: "Check out the repositories of a layered build at the references its project file names",
		Long: `refsync reads a project file listing repositories and, for each one, a
commit, branch or tag. It clones what is missing and moves every clone to
its requested reference, several repositories at a time.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: app.setup,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&app.flags.workDir, "work-dir", "", "directory clones are created in (default: config work_dir or current directory)")
	flags.IntVarP(&app.flags.jobs, "jobs", "j", config.DefaultJobs, "number of repositories processed in parallel")
	flags.StringVar(&app.flags.backend, "backend", config.BackendGoGit, `version-control backend: "go-git" or "git"`)
	flags.StringVar(&app.flags.logLevel, "log-level", "warn", "log level: debug, info, warn or error (REFSYNC_DEBUG selects debug)")

	root.AddCommand(
		newCheckoutCommand(app),
		newStatusCommand(app),
		newResolveCommand(app),
		newTokenCommand(app),
		newConfigCommand(app),
	)
	return root
}

// Execute runs the command line given by args.
func Execute(ctx context.Context, app *App, args []string) error {
	root := NewRootCommand(app)
	root.SetArgs(args)
	root.SetIn(app.In)
	root.SetOut(app.Out)
	root.SetErr(app.Err)
	return root.ExecuteContext(ctx)
}

// setup loads the config file and lays the command-line flags over it.
func (app *App) setup(cmd *cobra.Command, _ []string) error {
	if cmd.Flags().Changed("log-level") {
		if err := app.Logger.SetLevel(app.flags.logLevel); err != nil {
			return err
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("work-dir") {
		cfg.WorkDir = app.flags.workDir
	}
	if cmd.Flags().Changed("jobs") {
		cfg.Jobs = app.flags.jobs
	}
	if cmd.Flags().Changed("backend") {
		cfg.Backend = app.flags.backend
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	app.cfg = cfg
	app.Logger.Debug("Effective configuration", "work_dir", cfg.WorkDir, "jobs", cfg.Jobs, "backend", cfg.Backend)
	return nil
}

func (app *App) backend() (vcs.Backend, error) {
	return app.NewBackend(app.cfg.Backend, app.Logger)
}

func (app *App) loadProject(path string) (*project.Project, error) {
	workDir, err := app.cfg.ResolvedWorkDir()
	if err != nil {
		return nil, fmt.Errorf("cannot determine work directory: %w", err)
	}
	return project.Load(path, workDir)
}
