package analysis

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"sync"

	"github.com/tebeka/atexit"

	"github.com/sarchlab/linecomp/pattern"
	"github.com/sarchlab/linecomp/trace"
)

// DetailHeader lists the columns of the per-line CSV.
var DetailHeader = []string{
	"Workload", "Index", "Address", "Kind", "Pattern",
	"Base [B]", "Delta [B]", "Implicit",
}

// DetailWriter is a LineRecorder that appends one CSV row per line. It is
// safe for concurrent use.
type DetailWriter struct {
	lock      sync.Mutex
	file      *os.File
	csvWriter *csv.Writer
}

// NewDetailWriter opens path for appending. The header is written when the
// file is new. Buffered rows are flushed when the program exits through
// atexit.
func NewDetailWriter(path string) (*DetailWriter, error) {
	_, err := os.Stat(path)
	withHeader := errors.Is(err, fs.ErrNotExist)

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("file is not open: %q: %w", path, err)
	}

	d := &DetailWriter{
		file:      file,
		csvWriter: csv.NewWriter(file),
	}

	if withHeader {
		if err := d.csvWriter.Write(DetailHeader); err != nil {
			file.Close()
			return nil, err
		}
	}

	atexit.Register(func() { d.Flush() })

	return d, nil
}

// RecordLine writes the outcome of one line.
func (d *DetailWriter) RecordLine(
	workload string,
	req trace.Request,
	o pattern.Outcome,
) error {
	d.lock.Lock()
	defer d.lock.Unlock()

	if d.csvWriter == nil {
		return errors.New("detail writer is closed")
	}

	return d.csvWriter.Write(DetailRow(workload, req, o))
}

// DetailRow renders the CSV row of one line. Base, delta, and the implicit
// flag are left empty for outcomes that are not base-delta matches.
func DetailRow(workload string, req trace.Request, o pattern.Outcome) []string {
	address := ""
	if req.HasAddress {
		address = fmt.Sprintf("0x%x", req.Address)
	}

	row := []string{
		workload,
		strconv.FormatUint(req.Index, 10),
		address,
		req.Kind.String(),
		o.State().String(),
		"", "", "",
	}

	if o.Kind == pattern.KindBaseDelta {
		row[5] = strconv.Itoa(o.Granularity.BaseSize)
		row[6] = strconv.Itoa(o.Granularity.DeltaSize)
		row[7] = strconv.FormatBool(o.Implicit)
	}

	return row
}

// Flush writes buffered rows to the file.
func (d *DetailWriter) Flush() error {
	d.lock.Lock()
	defer d.lock.Unlock()

	if d.csvWriter == nil {
		return nil
	}

	d.csvWriter.Flush()

	return d.csvWriter.Error()
}

// Close flushes and closes the file.
func (d *DetailWriter) Close() error {
	if err := d.Flush(); err != nil {
		return err
	}

	d.lock.Lock()
	defer d.lock.Unlock()

	if d.file == nil {
		return nil
	}

	err := d.file.Close()
	d.file = nil
	d.csvWriter = nil

	return err
}
