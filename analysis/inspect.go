package analysis

import (
	"context"

	"github.com/sarchlab/linecomp/datarecording"
	"github.com/sarchlab/linecomp/pattern"
)

const inspectPageSize = 10000

// PatternCount is the number of recorded lines of a workload that matched a
// pattern.
type PatternCount struct {
	Workload string
	Pattern  string
	Lines    int
}

// CountPatterns reads the line_patterns table of a recording and counts the
// lines of every workload per pattern. Workloads are listed in the order they
// were first recorded and patterns in classification priority order. A
// non-empty workload restricts the count to that workload.
func CountPatterns(
	ctx context.Context,
	reader datarecording.DataReader,
	workload string,
) ([]PatternCount, error) {
	reader.MapTable(LinePatternTable, LinePattern{})

	params := datarecording.QueryParams{
		OrderBy: "rowid",
		Limit:   inspectPageSize,
	}

	if workload != "" {
		params.Where = "Workload = ?"
		params.Args = []any{workload}
	}

	workloads := []string{}
	counts := map[string]map[string]int{}

	for {
		rows, total, err := reader.Query(ctx, LinePatternTable, params)
		if err != nil {
			return nil, err
		}

		for _, row := range rows {
			line := row.(*LinePattern)

			perPattern, found := counts[line.Workload]
			if !found {
				perPattern = map[string]int{}
				counts[line.Workload] = perPattern
				workloads = append(workloads, line.Workload)
			}

			perPattern[line.Pattern]++
		}

		params.Offset += len(rows)
		if len(rows) == 0 || params.Offset >= total {
			break
		}
	}

	result := []PatternCount{}

	for _, w := range workloads {
		for _, state := range pattern.ClassificationOrder {
			if n := counts[w][state.String()]; n > 0 {
				result = append(result, PatternCount{
					Workload: w,
					Pattern:  state.String(),
					Lines:    n,
				})
			}
		}
	}

	return result, nil
}
