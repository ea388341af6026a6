// Package analysis drives traces through the pattern classifier and collects
// their statistics.
package analysis

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/sarchlab/linecomp/linecache"
	"github.com/sarchlab/linecomp/pattern"
	"github.com/sarchlab/linecomp/trace"
)

// ErrLineWidth is returned when a line is not as wide as the analyzer
// expects.
var ErrLineWidth = errors.New("line width does not match the line size")

// ProgressTracker counts processed lines.
type ProgressTracker interface {
	IncrementFinished(amount uint64)
}

// LineRecorder receives the outcome of every classified line.
type LineRecorder interface {
	RecordLine(workload string, req trace.Request, o pattern.Outcome) error
	Flush() error
}

// An Analyzer classifies the lines of one trace. It owns its classifier,
// history, and statistics and must only be driven by one goroutine. Snapshot
// may be called from any goroutine.
type Analyzer struct {
	workload   string
	classifier *pattern.Classifier
	stats      *pattern.Statistics
	recorder   LineRecorder

	progress         ProgressTracker
	snapshotInterval uint64
	lines            uint64
	unreported       uint64

	snapshotLock  sync.Mutex
	snapshot      *pattern.Statistics
	cacheSnapshot linecache.Stats
}

// Name returns the workload name of the analyzed trace.
func (a *Analyzer) Name() string {
	return a.workload
}

// LineSize returns the width of the lines the analyzer accepts.
func (a *Analyzer) LineSize() int {
	return a.classifier.LineSize()
}

// Lines returns the number of lines processed so far.
func (a *Analyzer) Lines() uint64 {
	return a.lines
}

// Statistics returns the live statistics. It must not be used while the
// analyzer is running on another goroutine; use Snapshot instead.
func (a *Analyzer) Statistics() *pattern.Statistics {
	return a.stats
}

// AttachProgress sets the tracker that counts processed lines.
func (a *Analyzer) AttachProgress(progress ProgressTracker) {
	a.progress = progress
}

// Process classifies one line and accounts for it.
func (a *Analyzer) Process(req trace.Request) (pattern.Outcome, error) {
	if len(req.Data) != a.LineSize() {
		return pattern.Outcome{}, fmt.Errorf(
			"%w: line %d has %d bytes, want %d",
			ErrLineWidth, req.Index, len(req.Data), a.LineSize())
	}

	o := a.classifier.Classify(req.Data)

	if a.recorder != nil {
		if err := a.recorder.RecordLine(a.workload, req, o); err != nil {
			return o, fmt.Errorf("record line %d: %w", req.Index, err)
		}
	}

	a.stats.UpdateTotal()
	a.stats.UpdateStat(o, uint64(len(req.Data)))
	a.stats.UpdateCountMap(req.Data)

	a.lines++
	a.unreported++

	if a.unreported >= a.snapshotInterval {
		a.publish()
	}

	return o, nil
}

// Run processes every line of r until the end of the trace and returns the
// result. It does not close r.
func (a *Analyzer) Run(r trace.Reader) (*Result, error) {
	if r.LineSize() != a.LineSize() {
		return nil, fmt.Errorf("%w: trace has %d-byte lines, want %d",
			ErrLineWidth, r.LineSize(), a.LineSize())
	}

	start := time.Now()

	for {
		req, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			return nil, fmt.Errorf("workload %s: %w", a.workload, err)
		}

		if _, err := a.Process(req); err != nil {
			return nil, fmt.Errorf("workload %s: %w", a.workload, err)
		}
	}

	a.publish()

	if a.recorder != nil {
		if err := a.recorder.Flush(); err != nil {
			return nil, err
		}
	}

	return &Result{
		Workload: a.workload,
		Stats:    a.stats,
		Lines:    a.lines,
		Cache:    a.classifier.History().Stats(),
		Duration: time.Since(start),
	}, nil
}

// Snapshot returns the last published copy of the statistics.
func (a *Analyzer) Snapshot() *pattern.Statistics {
	a.snapshotLock.Lock()
	defer a.snapshotLock.Unlock()

	return a.snapshot
}

// CacheStats returns the history counters as of the last published snapshot.
func (a *Analyzer) CacheStats() linecache.Stats {
	a.snapshotLock.Lock()
	defer a.snapshotLock.Unlock()

	return a.cacheSnapshot
}

func (a *Analyzer) publish() {
	snapshot := a.stats.Clone()
	cache := a.classifier.History().Stats()

	a.snapshotLock.Lock()
	a.snapshot = snapshot
	a.cacheSnapshot = cache
	a.snapshotLock.Unlock()

	if a.progress != nil && a.unreported > 0 {
		a.progress.IncrementFinished(a.unreported)
	}

	a.unreported = 0
}
