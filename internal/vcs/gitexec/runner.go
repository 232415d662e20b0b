// Package gitexec implements the vcs interfaces by running the git
// executable. It is selected with --backend=git and is useful where the host
// git carries configuration go-git does not understand, such as credential
// helpers or proxies.
package gitexec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"refsync/internal/logging"
	"refsync/internal/vcs"
)

// Runner runs git commands in a single directory.
type Runner struct {
	// Path to the git executable.
	gitPath string

	// Dir is the directory the commands are run in.
	Dir string

	logger *logging.AppLogger
}

// RunResult holds the captured output of a command.
type RunResult struct {
	Stdout string
	Stderr string
}

// NewRunner returns a Runner for dir using the git found on PATH.
func NewRunner(dir string, logger *logging.AppLogger) (*Runner, error) {
	p, err := exec.LookPath("git")
	if err != nil {
		return nil, fmt.Errorf("no 'git' program on path: %w", err)
	}
	if logger == nil {
		logger = logging.GetDefault()
	}
	return &Runner{gitPath: p, Dir: dir, logger: logger}, nil
}

// Run runs a git command. Omit the 'git' part of the command. Failures are
// returned as *vcs.CommandError.
func (g *Runner) Run(ctx context.Context, args ...string) (RunResult, error) {
	return g.run(ctx, nil, args...)
}

// configEntry is a git configuration value set for a single command.
type configEntry struct {
	Key   string
	Value string
}

// run runs git with config passed through GIT_CONFIG_COUNT and friends, so
// values such as credentials never appear in the process arguments. Config
// values are kept out of logs and errors too.
func (g *Runner) run(ctx context.Context, config []configEntry, args ...string) (RunResult, error) {
	cmd := g.command(ctx, config, args...)

	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	g.logger.Debug("Running git", "dir", g.Dir, "args", strings.Join(args, " "))
	if err := cmd.Run(); err != nil {
		return RunResult{}, vcs.NewCommandError(ctx, args, err, stdout.String(), stderr.String())
	}
	return RunResult{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}, nil
}

// command builds the exec.Cmd for args with config in its environment.
func (g *Runner) command(ctx context.Context, config []configEntry, args ...string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, g.gitPath, args...)
	cmd.Dir = g.Dir
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0", "LC_ALL=C")
	if len(config) > 0 {
		cmd.Env = append(cmd.Env, "GIT_CONFIG_COUNT="+strconv.Itoa(len(config)))
		for i, c := range config {
			cmd.Env = append(cmd.Env,
				fmt.Sprintf("GIT_CONFIG_KEY_%d=%s", i, c.Key),
				fmt.Sprintf("GIT_CONFIG_VALUE_%d=%s", i, c.Value),
			)
		}
	}
	return cmd
}

// exitCode returns the exit status carried by err, or -1.
func exitCode(err error) int {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}
