// Package orchestrator runs resolution and checkout for every repository of
// a project with a bounded worker pool and fail-fast error handling.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"refsync/internal/checkout"
	"refsync/internal/logging"
	"refsync/internal/refspec"
	"refsync/internal/repository"
)

// DefaultJobs is the worker pool size used when none is configured.
const DefaultJobs = 4

// ErrInvalidProject wraps validation errors found before any repository is
// resolved.
var ErrInvalidProject = errors.New("invalid project")

// Observer is notified as repositories start and finish. Calls come from
// worker goroutines, so implementations must be safe for concurrent use.
type Observer interface {
	RepositoryStarted(name string)
	RepositoryFinished(result Result)
}

// Options tunes an Orchestrator.
type Options struct {
	// Jobs bounds how many repositories converge at once.
	Jobs int

	// Observer, if set, receives progress events.
	Observer Observer
}

// Orchestrator drives a set of RepoSpecs through a Resolver and an Executor.
type Orchestrator struct {
	resolver *refspec.Resolver
	executor *checkout.Executor
	logger   *logging.AppLogger
	opts     Options
}

// New returns an Orchestrator. A nil logger uses the default logger.
func New(resolver *refspec.Resolver, executor *checkout.Executor, logger *logging.AppLogger, opts Options) *Orchestrator {
	if logger == nil {
		logger = logging.GetDefault()
	}
	if opts.Jobs < 1 {
		opts.Jobs = DefaultJobs
	}
	return &Orchestrator{
		resolver: resolver,
		executor: executor,
		logger:   logger,
		opts:     opts,
	}
}

// Sync validates specs, resolves every reference in declaration order and
// then converges the clones in parallel. It returns one Result per spec, in
// input order, and the first error encountered. Once an error occurs no new
// repository is started and in-flight ones are canceled.
func (o *Orchestrator) Sync(ctx context.Context, specs []repository.RepoSpec) ([]Result, error) {
	start := time.Now()
	defer o.logger.LogPerformance("sync", start)

	results := make([]Result, len(specs))
	for i, spec := range specs {
		results[i] = Result{Name: spec.Name, Path: spec.Path}
	}

	if err := repository.ValidateAll(specs); err != nil {
		return results, fmt.Errorf("%w: %w", ErrInvalidProject, err)
	}

	// Resolution is pure, so configuration errors surface before any clone is
	// touched and diagnostics appear in declaration order.
	for i, spec := range specs {
		ref, err := o.resolver.Resolve(spec)
		if err != nil {
			results[i].Status = StatusFailed
			results[i].Error = err
			return results, err
		}
		results[i].Ref = ref
	}

	o.logger.Info("Starting checkout", "repositories", len(specs), "jobs", o.opts.Jobs)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.opts.Jobs)
	for i := range specs {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			// The pool may have been waiting for a slot while another
			// repository failed.
			if gctx.Err() != nil {
				return nil
			}
			return o.converge(gctx, specs[i], &results[i])
		})
	}
	err := g.Wait()
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}

	summary := Summarize(results)
	o.logger.Info("Checkout finished",
		"success", summary.Success,
		"failed", summary.Failed,
		"skipped", summary.Skipped,
		"pending", summary.Pending,
		"diagnostics", o.resolver.Registry().Len(),
		"duration", time.Since(start).Round(time.Millisecond),
	)
	return results, err
}

// converge runs the executor for one repository and records the outcome in
// result. Each result slot is written by exactly one goroutine.
func (o *Orchestrator) converge(ctx context.Context, spec repository.RepoSpec, result *Result) error {
	if o.opts.Observer != nil {
		o.opts.Observer.RepositoryStarted(spec.Name)
	}
	start := time.Now()

	res, err := o.executor.Converge(ctx, spec, result.Ref)
	result.Duration = time.Since(start)
	result.Checkout = res
	switch {
	case err != nil:
		result.Status = StatusFailed
		result.Error = err
		o.logger.Debug("Repository failed", "repository", spec.Name, "error", err)
	case result.Ref.Kind == refspec.Local:
		result.Status = StatusSkipped
		result.SkipReason = "local repository without reference"
	default:
		result.Status = StatusSuccess
	}

	if o.opts.Observer != nil {
		o.opts.Observer.RepositoryFinished(*result)
	}
	return err
}
