package cmd

import (
	"bufio"
	"os"

	"github.com/spf13/cobra"

	"github.com/sarchlab/linecomp/trace"
)

var viewCmd = &cobra.Command{
	Use:   "view [flags] TRACE",
	Short: "Print the cache lines of a trace as hexadecimal bytes.",
	Long: "`view TRACE` prints one line per cache line, prefixed by the " +
		"access kind and address when the trace records them.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		kinds, err := trace.ParseKinds(c.Filter)
		if err != nil {
			return err
		}

		r, err := trace.Open(cmd.Context(), args[0], trace.WithS3(c.S3))
		if err != nil {
			return err
		}
		defer r.Close()

		w := bufio.NewWriter(os.Stdout)
		defer w.Flush()

		return trace.Dump(w, trace.Filter(r, kinds...))
	},
}

func init() {
	rootCmd.AddCommand(viewCmd)
	viewCmd.Flags().String("filter", "all",
		"Access kinds to print: all, read, or write")
}
