package datarecording

import (
	"context"
	"os"
	"strings"
	"time"
)

const execTableName = "exec_info"

// ExecInfo is one property of a program execution.
type ExecInfo struct {
	Property string
	Value    string
}

// ExecRecorder records when and how the program was run.
type ExecRecorder struct {
	recorder DataRecorder
	entries  []ExecInfo
}

// NewExecRecorder creates the exec_info table in recorder.
func NewExecRecorder(recorder DataRecorder) (*ExecRecorder, error) {
	e := &ExecRecorder{recorder: recorder}

	if err := recorder.CreateTable(execTableName, ExecInfo{}); err != nil {
		return nil, err
	}

	return e, nil
}

// Start captures the start time, the command line, and the working
// directory.
func (e *ExecRecorder) Start() {
	e.Add("Start Time", timestamp())
	e.Add("Command", strings.Join(os.Args, " "))

	if cwd, err := os.Getwd(); err == nil {
		e.Add("Working Directory", cwd)
	}
}

// Add records an extra property, such as a setting of the run.
func (e *ExecRecorder) Add(property, value string) {
	e.entries = append(e.entries, ExecInfo{Property: property, Value: value})
}

// End writes the captured properties along with the exit time and flushes
// the recorder.
func (e *ExecRecorder) End() error {
	e.Add("End Time", timestamp())

	for _, entry := range e.entries {
		if err := e.recorder.InsertData(execTableName, entry); err != nil {
			return err
		}
	}

	e.entries = nil

	return e.recorder.Flush()
}

// ReadExecInfo returns the execution properties stored in a recording, in
// the order they were recorded.
func ReadExecInfo(ctx context.Context, reader DataReader) ([]ExecInfo, error) {
	reader.MapTable(execTableName, ExecInfo{})

	rows, _, err := reader.Query(ctx, execTableName,
		QueryParams{OrderBy: "rowid"})
	if err != nil {
		return nil, err
	}

	infos := make([]ExecInfo, 0, len(rows))
	for _, row := range rows {
		infos = append(infos, *row.(*ExecInfo))
	}

	return infos, nil
}

func timestamp() string {
	return time.Now().Format("2006-01-02 15:04:05.000000000")
}
