package analysis

import (
	"path"
	"path/filepath"
	"strings"

	"github.com/sarchlab/linecomp/trace"
)

// ResultFileName is the name of the summary CSV inside the output directory.
const ResultFileName = "PATTERN_results.csv"

// DetailFileName is the name of the per-line CSV inside the output directory.
const DetailFileName = "PATTERN_results_detail.csv"

// WorkloadName derives a workload name from a trace location: the name of
// the directory holding the trace, an underscore, and the file name without
// its format and compression extensions.
func WorkloadName(location string) string {
	location = strings.TrimPrefix(filepath.ToSlash(location), "s3://")

	name := trace.TrimExt(path.Base(location))
	parent := path.Base(path.Dir(location))

	if parent == "." || parent == "/" || parent == "" {
		return name
	}

	return parent + "_" + name
}

// ResultPath returns where summary rows are appended. An empty output
// directory means standard output and yields an empty path.
func ResultPath(outputDir string) string {
	if outputDir == "" {
		return ""
	}

	return filepath.Join(outputDir, ResultFileName)
}

// DetailPath returns where per-line rows are written.
func DetailPath(outputDir string) string {
	return filepath.Join(outputDir, DetailFileName)
}
