// Package cmd provides the command-line interface for linecomp.
package cmd

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"

	"github.com/sarchlab/linecomp/config"
)

// envFile is the dotenv file read next to the working directory.
const envFile = ".env"

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use: "linecomp",
	Short: "linecomp measures how compressible the cache lines of memory " +
		"traces are.",
	Long: `linecomp classifies every cache line of a memory trace as zeros, ` +
		`a repeated word, a recently seen line, a base-delta encodable ` +
		`line, or none of these, and reports the bytes in each category ` +
		`together with the byte-value entropy.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().String("config", "",
		"YAML file with the run configuration")
}

// Execute adds all child commands to the root command and sets flags
// appropriately.
func Execute() {
	err := rootCmd.ExecuteContext(context.Background())
	if err != nil {
		atexit.Exit(1)
	}
}

// loadConfig reads the configuration file, the environment, and every flag
// the user set explicitly, in that order.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")

	c, err := config.Load(path, envFile)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()

	overrideInt := func(name string, dst *int) {
		if flags.Changed(name) {
			*dst, _ = flags.GetInt(name)
		}
	}
	overrideString := func(name string, dst *string) {
		if flags.Changed(name) {
			*dst, _ = flags.GetString(name)
		}
	}
	overrideBool := func(name string, dst *bool) {
		if flags.Changed(name) {
			*dst, _ = flags.GetBool(name)
		}
	}

	overrideInt("line-size", &c.LineSize)
	overrideInt("cache-capacity", &c.CacheCapacity)
	overrideInt("jobs", &c.Jobs)
	overrideInt("monitor-port", &c.Monitor.Port)
	overrideString("output", &c.OutputDir)
	overrideString("workload", &c.Workload)
	overrideString("record-db", &c.RecordDB)
	overrideString("filter", &c.Filter)
	overrideBool("detail", &c.Detail)
	overrideBool("monitor", &c.Monitor.Enabled)
	overrideBool("open-browser", &c.Monitor.OpenBrowser)

	if err := c.Validate(); err != nil {
		return nil, err
	}

	return c, nil
}
