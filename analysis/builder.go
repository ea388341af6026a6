package analysis

import (
	"fmt"

	"github.com/sarchlab/linecomp/linecache"
	"github.com/sarchlab/linecomp/pattern"
)

// DefaultCacheCapacity is the number of distinct line contents kept in the
// temporal-locality history when none is configured.
const DefaultCacheCapacity = 64

const defaultSnapshotInterval = 4096

// Builder can build Analyzers.
type Builder struct {
	lineSize         int
	cacheCapacity    int
	workload         string
	recorder         LineRecorder
	progress         ProgressTracker
	snapshotInterval uint64
}

// MakeBuilder creates a Builder with default parameters.
func MakeBuilder() Builder {
	return Builder{
		cacheCapacity:    DefaultCacheCapacity,
		snapshotInterval: defaultSnapshotInterval,
	}
}

// WithLineSize sets the width of every cache line in bytes.
func (b Builder) WithLineSize(lineSize int) Builder {
	b.lineSize = lineSize
	return b
}

// WithCacheCapacity sets how many distinct line contents the
// temporal-locality history holds.
func (b Builder) WithCacheCapacity(capacity int) Builder {
	b.cacheCapacity = capacity
	return b
}

// WithWorkload sets the name reported for the analyzed trace.
func (b Builder) WithWorkload(workload string) Builder {
	b.workload = workload
	return b
}

// WithRecorder sets where per-line outcomes are recorded.
func (b Builder) WithRecorder(recorder LineRecorder) Builder {
	b.recorder = recorder
	return b
}

// WithProgressBar sets the tracker that counts processed lines.
func (b Builder) WithProgressBar(progress ProgressTracker) Builder {
	b.progress = progress
	return b
}

// WithSnapshotInterval sets how many lines are processed between two
// published statistics snapshots.
func (b Builder) WithSnapshotInterval(lines uint64) Builder {
	b.snapshotInterval = lines
	return b
}

// Build creates an Analyzer. It fails if the line size or the cache capacity
// is not positive.
func (b Builder) Build() (*Analyzer, error) {
	history, err := linecache.New(b.cacheCapacity)
	if err != nil {
		return nil, fmt.Errorf("analyzer %q: %w", b.workload, err)
	}

	classifier, err := pattern.NewClassifier(b.lineSize, history)
	if err != nil {
		return nil, fmt.Errorf("analyzer %q: %w", b.workload, err)
	}

	stats, err := pattern.NewStatistics(b.lineSize)
	if err != nil {
		return nil, fmt.Errorf("analyzer %q: %w", b.workload, err)
	}

	interval := b.snapshotInterval
	if interval == 0 {
		interval = defaultSnapshotInterval
	}

	a := &Analyzer{
		workload:         b.workload,
		classifier:       classifier,
		stats:            stats,
		recorder:         b.recorder,
		progress:         b.progress,
		snapshotInterval: interval,
	}
	a.publish()

	return a, nil
}
