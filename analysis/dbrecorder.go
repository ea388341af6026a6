package analysis

import (
	"sync"

	"github.com/sarchlab/linecomp/datarecording"
	"github.com/sarchlab/linecomp/pattern"
	"github.com/sarchlab/linecomp/trace"
)

// LinePatternTable is the table that holds one row per classified line.
const LinePatternTable = "line_patterns"

// LinePattern is the row stored for each classified line.
type LinePattern struct {
	Workload  string
	LineIndex uint64
	Address   uint64
	Kind      string
	Pattern   string
	BaseSize  int
	DeltaSize int
	Implicit  bool
}

// DBRecorder is a LineRecorder that stores outcomes through a
// datarecording.DataRecorder.
type DBRecorder struct {
	lock     sync.Mutex
	recorder datarecording.DataRecorder
}

// NewDBRecorder creates the line_patterns table in recorder.
func NewDBRecorder(recorder datarecording.DataRecorder) (*DBRecorder, error) {
	err := recorder.CreateTable(LinePatternTable, LinePattern{})
	if err != nil {
		return nil, err
	}

	return &DBRecorder{recorder: recorder}, nil
}

// RecordLine buffers the row of one line.
func (r *DBRecorder) RecordLine(
	workload string,
	req trace.Request,
	o pattern.Outcome,
) error {
	entry := LinePattern{
		Workload:  workload,
		LineIndex: req.Index,
		Address:   req.Address,
		Kind:      req.Kind.String(),
		Pattern:   o.State().String(),
	}

	if o.Kind == pattern.KindBaseDelta {
		entry.BaseSize = o.Granularity.BaseSize
		entry.DeltaSize = o.Granularity.DeltaSize
		entry.Implicit = o.Implicit
	}

	r.lock.Lock()
	defer r.lock.Unlock()

	return r.recorder.InsertData(LinePatternTable, entry)
}

// Flush writes the buffered rows.
func (r *DBRecorder) Flush() error {
	r.lock.Lock()
	defer r.lock.Unlock()

	return r.recorder.Flush()
}

// Recorders sends every line to all of its recorders.
type Recorders []LineRecorder

// RecordLine records the line in every recorder, stopping at the first error.
func (rs Recorders) RecordLine(
	workload string,
	req trace.Request,
	o pattern.Outcome,
) error {
	for _, r := range rs {
		if err := r.RecordLine(workload, req, o); err != nil {
			return err
		}
	}

	return nil
}

// Flush flushes every recorder.
func (rs Recorders) Flush() error {
	for _, r := range rs {
		if err := r.Flush(); err != nil {
			return err
		}
	}

	return nil
}
