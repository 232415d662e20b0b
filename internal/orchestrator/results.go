package orchestrator

import (
	"fmt"
	"time"

	"refsync/internal/checkout"
	"refsync/internal/refspec"
)

// Status is the outcome of one repository within a sync.
type Status int

const (
	// StatusPending means the repository was not reached: the run failed
	// or was canceled before its turn.
	StatusPending Status = iota

	// StatusSuccess means the clone is at the requested reference.
	StatusSuccess

	// StatusFailed means resolution or convergence failed.
	StatusFailed

	// StatusSkipped means there was nothing to converge, as for a url-less
	// repository without a reference.
	StatusSkipped
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "Pending"
	case StatusSuccess:
		return "Success"
	case StatusFailed:
		return "Failed"
	case StatusSkipped:
		return "Skipped"
	default:
		return "Unknown"
	}
}

// Result is the outcome of one repository.
type Result struct {
	Name   string
	Path   string
	Status Status

	// Ref is the resolved reference; zero when resolution failed.
	Ref refspec.ResolvedRef

	// Checkout describes what the executor did.
	Checkout checkout.Result

	// Error is set when Status is StatusFailed.
	Error error

	// SkipReason is set when Status is StatusSkipped.
	SkipReason string

	Duration time.Duration
}

// GetMessage returns a one-line description of the result for display:
//   - Success: "detached at 907816a5c409 (checked out in 1.2s)"
//   - Failed: "failed: <error>"
//   - Skipped: "skipped: <reason>"
func (r *Result) GetMessage() string {
	switch r.Status {
	case StatusSuccess:
		action := "unchanged"
		switch {
		case r.Checkout.Cloned:
			action = "cloned"
		case r.Checkout.Changed:
			action = "checked out"
		case r.Checkout.Fetched:
			action = "fetched"
		}
		return fmt.Sprintf("%s (%s in %s)", r.Checkout.Head, action, r.Duration.Round(100*time.Millisecond))
	case StatusFailed:
		if r.Error != nil {
			return fmt.Sprintf("failed: %v", r.Error)
		}
		return "failed: unknown error"
	case StatusSkipped:
		if r.SkipReason != "" {
			return "skipped: " + r.SkipReason
		}
		return "skipped"
	default:
		return "not started"
	}
}

// Summary counts results by status.
type Summary struct {
	Success int
	Failed  int
	Skipped int
	Pending int
}

// Summarize counts results by status.
func Summarize(results []Result) Summary {
	var s Summary
	for _, r := range results {
		switch r.Status {
		case StatusSuccess:
			s.Success++
		case StatusFailed:
			s.Failed++
		case StatusSkipped:
			s.Skipped++
		default:
			s.Pending++
		}
	}
	return s
}
