package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"sync"

	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"

	"github.com/sarchlab/linecomp/analysis"
	"github.com/sarchlab/linecomp/config"
	"github.com/sarchlab/linecomp/datarecording"
	"github.com/sarchlab/linecomp/monitoring"
	"github.com/sarchlab/linecomp/trace"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [flags] TRACE...",
	Short: "Classify the cache lines of traces and report pattern statistics.",
	Long: "`analyze TRACE...` appends one row per trace to " +
		analysis.ResultFileName + " in the output directory, or prints " +
		"the rows when no output directory is set.",
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		if c.Workload != "" && len(args) > 1 {
			return errors.New("--workload can only name a single trace")
		}

		return runAnalyze(cmd.Context(), c, args)
	},
}

func init() {
	rootCmd.AddCommand(analyzeCmd)

	flags := analyzeCmd.Flags()
	flags.Int("line-size", 0,
		"Cache line size in bytes, 0 to use the width of the trace")
	flags.Int("cache-capacity", analysis.DefaultCacheCapacity,
		"Number of distinct lines kept for temporal locality")
	flags.StringP("output", "o", "",
		"Directory of the result files, empty to print to stdout")
	flags.String("workload", "",
		"Workload name, derived from the trace path when empty")
	flags.Bool("detail", false,
		"Write the pattern of every line to "+analysis.DetailFileName)
	flags.String("record-db", "",
		"Record the pattern of every line into this SQLite database")
	flags.String("filter", "all",
		"Access kinds to analyze: all, read, or write")
	flags.IntP("jobs", "j", 1, "Number of traces analyzed in parallel")
	flags.Bool("monitor", false, "Serve the progress over HTTP")
	flags.Int("monitor-port", 0, "Port of the monitor, 0 for a random one")
	flags.Bool("open-browser", false, "Open the monitor in a browser")
}

type run struct {
	cfg      *config.Config
	kinds    []trace.Kind
	monitor  *monitoring.Monitor
	detail   *analysis.DetailWriter
	db       datarecording.DataRecorder
	exec     *datarecording.ExecRecorder
	recorder analysis.LineRecorder

	barsLock sync.Mutex
	bars     map[*analysis.Analyzer]*monitoring.ProgressBar
}

func runAnalyze(ctx context.Context, c *config.Config, paths []string) error {
	kinds, err := trace.ParseKinds(c.Filter)
	if err != nil {
		return err
	}

	if c.OutputDir != "" {
		if err := os.MkdirAll(c.OutputDir, 0755); err != nil {
			return err
		}
	}

	r := &run{cfg: c, kinds: kinds}

	if err := r.setupRecorders(); err != nil {
		return err
	}

	if err := r.setupMonitor(); err != nil {
		return err
	}

	results, batchErr := analysis.RunBatch(r.jobs(ctx, paths), c.Jobs)

	if err := reportResults(results, analysis.ResultPath(c.OutputDir)); err != nil {
		atexit.Fatalf("%v", err)
	}

	if batchErr != nil {
		atexit.Fatalf("analysis failed: %v", batchErr)
	}

	return r.close()
}

// reportResults writes the row of every trace that was fully analyzed. Failed
// traces have nil results and are skipped.
func reportResults(results []*analysis.Result, path string) error {
	for _, result := range results {
		if result == nil {
			continue
		}

		if err := result.Report(path); err != nil {
			return err
		}

		log.Printf("%s: %d lines in %s, %.2f%% of bytes match a pattern, "+
			"%.2f%% history hit rate",
			result.Workload, result.Lines, result.Duration,
			result.Coverage()*100, result.Cache.HitRate()*100)
	}

	return nil
}

func (r *run) setupRecorders() error {
	recorders := analysis.Recorders{}

	if r.cfg.Detail {
		detail, err := analysis.NewDetailWriter(
			analysis.DetailPath(r.cfg.OutputDir))
		if err != nil {
			return err
		}

		r.detail = detail
		recorders = append(recorders, detail)
	}

	if r.cfg.RecordDB != "" {
		db, err := datarecording.New(r.cfg.RecordDB)
		if err != nil {
			return err
		}

		r.db = db

		r.exec, err = datarecording.NewExecRecorder(db)
		if err != nil {
			return err
		}

		r.exec.Start()
		r.exec.Add("Line Size", strconv.Itoa(r.cfg.LineSize))
		r.exec.Add("Cache Capacity", strconv.Itoa(r.cfg.CacheCapacity))
		r.exec.Add("Filter", r.cfg.Filter)

		lines, err := analysis.NewDBRecorder(db)
		if err != nil {
			return err
		}

		recorders = append(recorders, lines)
	}

	switch len(recorders) {
	case 0:
	case 1:
		r.recorder = recorders[0]
	default:
		r.recorder = recorders
	}

	return nil
}

func (r *run) setupMonitor() error {
	if !r.cfg.Monitor.Enabled {
		return nil
	}

	r.monitor = monitoring.NewMonitor().WithPortNumber(r.cfg.Monitor.Port)

	url, err := r.monitor.StartServer()
	if err != nil {
		return fmt.Errorf("failed to start monitor: %w", err)
	}

	if r.cfg.Monitor.OpenBrowser {
		r.monitor.OpenBrowser(url)
	}

	return nil
}

func (r *run) jobs(ctx context.Context, paths []string) []analysis.Job {
	builder := analysis.MakeBuilder().
		WithLineSize(r.cfg.LineSize).
		WithCacheCapacity(r.cfg.CacheCapacity).
		WithRecorder(r.recorder)

	jobs := make([]analysis.Job, 0, len(paths))

	for _, path := range paths {
		workload := r.cfg.Workload
		if workload == "" {
			workload = analysis.WorkloadName(path)
		}

		job := analysis.Job{
			Workload: workload,
			Builder:  builder,
			Open: func() (trace.Reader, error) {
				reader, err := trace.Open(ctx, path, trace.WithS3(r.cfg.S3))
				if err != nil {
					return nil, err
				}

				return trace.Filter(reader, r.kinds...), nil
			},
		}

		if r.monitor != nil {
			job.Started = r.track
			job.Finished = r.untrack
		}

		jobs = append(jobs, job)
	}

	return jobs
}

func (r *run) track(a *analysis.Analyzer, reader trace.Reader) {
	key := r.monitor.RegisterSource(a)

	bar := r.monitor.CreateProgressBar(key, trace.NumLines(reader))
	a.AttachProgress(bar)

	r.barsLock.Lock()
	defer r.barsLock.Unlock()

	if r.bars == nil {
		r.bars = map[*analysis.Analyzer]*monitoring.ProgressBar{}
	}

	r.bars[a] = bar
}

func (r *run) untrack(a *analysis.Analyzer) {
	r.barsLock.Lock()
	bar, found := r.bars[a]
	delete(r.bars, a)
	r.barsLock.Unlock()

	if found {
		r.monitor.CompleteProgressBar(bar)
	}
}

func (r *run) close() error {
	var errs []error

	if r.detail != nil {
		errs = append(errs, r.detail.Close())
	}

	if r.exec != nil {
		errs = append(errs, r.exec.End())
	}

	if r.db != nil {
		errs = append(errs, r.db.Close())
	}

	if r.monitor != nil {
		errs = append(errs, r.monitor.Close())
	}

	return errors.Join(errs...)
}
