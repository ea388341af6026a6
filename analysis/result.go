package analysis

import (
	"time"

	"github.com/sarchlab/linecomp/linecache"
	"github.com/sarchlab/linecomp/pattern"
)

// Result is the outcome of analyzing one whole trace.
type Result struct {
	Workload string
	Stats    *pattern.Statistics
	Lines    uint64
	Cache    linecache.Stats
	Duration time.Duration
}

// Coverage returns the fraction of bytes that fell into a compressible
// category.
func (r *Result) Coverage() float64 {
	return r.Stats.Coverage()
}

// Report appends the result row to the CSV file at path, or prints it when
// path is empty.
func (r *Result) Report(path string) error {
	return r.Stats.Report(r.Workload, path)
}
