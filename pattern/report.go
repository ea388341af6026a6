package pattern

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
)

// Header is the column row written once at the top of a report file.
var Header = []string{
	"Workload",
	"Entropy [b/B]",
	"Entropy except AllZeros AllWordSame [b/B]",
	"Zeros [B]",
	"Repeated Line [B]",
	"Temporal Locality [B]",
	"B8D1-Implicit [B]", "B8D1-Explicit [B]",
	"B8D2-Implicit [B]", "B8D2-Explicit [B]",
	"B8D4-Implicit [B]", "B8D4-Explicit [B]",
	"B4D1-Implicit [B]", "B4D1-Explicit [B]",
	"B4D2-Implicit [B]", "B4D2-Explicit [B]",
	"B2D1-Implicit [B]", "B2D1-Explicit [B]",
	"Undefined [B]",
	"Total Size [B]",
}

// Row renders the statistics as one report row in Header order.
func (s *Statistics) Row(workload string) []string {
	row := make([]string, 0, len(Header))
	row = append(row,
		workload,
		formatFloat(s.Entropy()),
		formatFloat(s.EntropyExceptTrivial()),
		formatUint(s.Z),
		formatUint(s.R),
		formatUint(s.T),
	)

	for i := range NumGranularities {
		row = append(row,
			formatUint(s.ImplicitCounts[i]),
			formatUint(s.ExplicitCounts[i]))
	}

	row = append(row, formatUint(s.U), formatUint(s.Total))

	return row
}

// WriteRow writes the report row of s to w, preceded by Header if withHeader
// is set.
func (s *Statistics) WriteRow(w io.Writer, workload string, withHeader bool) error {
	csvWriter := csv.NewWriter(w)

	if withHeader {
		if err := csvWriter.Write(Header); err != nil {
			return err
		}
	}

	if err := csvWriter.Write(s.Row(workload)); err != nil {
		return err
	}

	csvWriter.Flush()

	return csvWriter.Error()
}

// Report appends the row of s to the CSV file at path. A file that does not
// exist yet is created and starts with Header. An empty path writes the row to
// standard output.
//
// Failing to open path is returned as an error; callers are expected to treat
// it as fatal so that a finished run is never silently lost.
func (s *Statistics) Report(workload, path string) error {
	if path == "" {
		return s.WriteRow(os.Stdout, workload, false)
	}

	_, err := os.Stat(path)
	withHeader := errors.Is(err, fs.ErrNotExist)

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("file is not open: %q: %w", path, err)
	}

	err = s.WriteRow(file, workload, withHeader)
	if err != nil {
		file.Close()
		return fmt.Errorf("write report %q: %w", path, err)
	}

	return file.Close()
}

func formatUint(v uint64) string {
	return strconv.FormatUint(v, 10)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
