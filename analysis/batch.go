package analysis

import (
	"fmt"

	"github.com/sourcegraph/conc/pool"

	"github.com/sarchlab/linecomp/trace"
)

// A Job is one trace to analyze.
type Job struct {
	Workload string

	// Open returns the reader of the trace. The reader is closed once the job
	// is done.
	Open func() (trace.Reader, error)

	// Builder configures the analyzer. A zero line size is replaced by the
	// width reported by the reader.
	Builder Builder

	// Started, if set, is called with the analyzer before its first line is
	// processed.
	Started func(a *Analyzer, r trace.Reader)

	// Finished, if set, is called with the analyzer once the trace has been
	// run, whether or not the run succeeded.
	Finished func(a *Analyzer)
}

type indexedResult struct {
	index  int
	result *Result
}

// RunBatch analyzes every job with at most workers traces in flight. Each
// job gets its own analyzer, so results do not depend on the number of
// workers. Results are returned in job order. If any job fails, the error of
// every failed job is returned and the results of those jobs are nil.
func RunBatch(jobs []Job, workers int) ([]*Result, error) {
	if workers < 1 {
		workers = 1
	}

	p := pool.NewWithResults[indexedResult]().
		WithErrors().
		WithMaxGoroutines(workers)

	for i, job := range jobs {
		p.Go(func() (indexedResult, error) {
			result, err := RunJob(job)
			if err != nil {
				return indexedResult{}, err
			}

			return indexedResult{index: i, result: result}, nil
		})
	}

	collected, err := p.Wait()

	results := make([]*Result, len(jobs))
	for _, r := range collected {
		results[r.index] = r.result
	}

	return results, err
}

// RunJob opens the trace of job, builds its analyzer, and runs it to the end.
func RunJob(job Job) (*Result, error) {
	reader, err := job.Open()
	if err != nil {
		return nil, fmt.Errorf("workload %s: %w", job.Workload, err)
	}
	defer reader.Close()

	builder := job.Builder.WithWorkload(job.Workload)
	if builder.lineSize == 0 {
		builder = builder.WithLineSize(reader.LineSize())
	}

	analyzer, err := builder.Build()
	if err != nil {
		return nil, err
	}

	if job.Started != nil {
		job.Started(analyzer, reader)
	}

	if job.Finished != nil {
		defer job.Finished(analyzer)
	}

	return analyzer.Run(reader)
}
