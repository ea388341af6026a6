package cmd

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/sarchlab/linecomp/analysis"
	"github.com/sarchlab/linecomp/datarecording"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect [flags] RECORDING",
	Short: "Summarize a recording made with analyze --record-db.",
	Long: "`inspect RECORDING` prints how the run was made and then, as CSV, " +
		"the number of recorded lines of every workload per pattern.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		workload, _ := cmd.Flags().GetString("workload")

		return inspectRecording(cmd.Context(), os.Stdout, args[0], workload)
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)
	inspectCmd.Flags().String("workload", "",
		"Only count the lines of this workload")
}

func inspectRecording(
	ctx context.Context,
	w io.Writer,
	path, workload string,
) error {
	reader, err := datarecording.NewReader(path)
	if err != nil {
		return err
	}
	defer reader.Close()

	infos, err := datarecording.ReadExecInfo(ctx, reader)
	if err != nil {
		return err
	}

	for _, info := range infos {
		fmt.Fprintf(w, "# %s: %s\n", info.Property, info.Value)
	}

	counts, err := analysis.CountPatterns(ctx, reader, workload)
	if err != nil {
		return err
	}

	csvWriter := csv.NewWriter(w)
	if err := csvWriter.Write([]string{"Workload", "Pattern", "Lines"}); err != nil {
		return err
	}

	for _, c := range counts {
		err := csvWriter.Write([]string{c.Workload, c.Pattern, strconv.Itoa(c.Lines)})
		if err != nil {
			return err
		}
	}

	csvWriter.Flush()

	return csvWriter.Error()
}
