package sampler

import (
	"fmt"
	"strings"

	"citisampler/internal/trips"
)

// jobResult is the outcome of sampling one shard. Exactly one of Frame or
// FailureMessage is meaningful, selected by Success.
type jobResult struct {
	Success        bool
	OriginalCount  int
	Frame          *trips.Frame // nil when the sample came out empty
	FailureMessage string
	SourcePath     string
}

// ProcessingError aggregates every shard that failed to sample. It is only
// raised after all jobs have finished, so one bad shard never hides the
// status of the others.
type ProcessingError struct {
	Failures []Failure
}

// Failure describes one failed sampling job.
type Failure struct {
	SourcePath string
	Message    string
}

func (e *ProcessingError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d sampling operation(s) failed. Details:\n", len(e.Failures))
	for _, f := range e.Failures {
		fmt.Fprintf(&b, "- %s [file: %s]\n", f.Message, f.SourcePath)
	}
	return strings.TrimRight(b.String(), "\n")
}
