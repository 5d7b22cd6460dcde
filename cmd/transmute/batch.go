package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"transmute/internal/batch"
	"transmute/internal/config"
	"transmute/internal/converter"
	"transmute/internal/engine"
	"transmute/internal/fileutil"
	"transmute/internal/formats"
	"transmute/internal/history"
	"transmute/internal/logging"
	"transmute/internal/notifications"
	"transmute/internal/preflight"
)

type batchOutput struct {
	BatchID string       `json:"batch_id"`
	Stats   batch.Stats  `json:"stats"`
	Tasks   []batch.Task `json:"tasks"`
}

type batchRequest struct {
	to        formats.Format
	from      formats.Format
	outputDir string
	workers   int
	options   converter.Options
	history   bool
	json      bool
}

func newBatchCommand(ctx *commandContext) *cobra.Command {
	var (
		toFlag      string
		fromFlag    string
		outFlag     string
		workersFlag int
		optionFlag  []string
		noHistory   bool
		jsonOutput  bool
	)

	cmd := &cobra.Command{
		Use:   "batch --to FORMAT PATH...",
		Short: "Convert many files concurrently",
		Long: "Convert every file named on the command line, and every convertible file\n" +
			"found under the named directories, into --to. Outputs land in --out or\n" +
			"next to each source.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			to := formats.Normalize(toFlag)
			if to == "" {
				return errors.New("--to is required")
			}
			opts, err := parseOptions(optionFlag)
			if err != nil {
				return err
			}
			workers := workersFlag
			if workers <= 0 {
				workers = cfg.Batch.Workers
			}
			req := batchRequest{
				to:        to,
				from:      formats.Normalize(fromFlag),
				outputDir: strings.TrimSpace(outFlag),
				workers:   workers,
				options:   opts,
				history:   cfg.History.Enabled && !noHistory,
				json:      jsonOutput,
			}
			return runBatch(cmd, ctx, cfg, req, args)
		},
	}

	cmd.Flags().StringVar(&toFlag, "to", "", "Target format for every file")
	cmd.Flags().StringVar(&fromFlag, "from", "", "Only convert files of this format")
	cmd.Flags().StringVar(&outFlag, "out", "", "Output directory (default: next to each source)")
	cmd.Flags().IntVarP(&workersFlag, "workers", "w", 0, "Concurrent conversions (default from config)")
	cmd.Flags().StringArrayVarP(&optionFlag, "option", "o", nil, "Converter option key=value (repeatable)")
	cmd.Flags().BoolVar(&noHistory, "no-history", false, "Do not record this run in the history database")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func runBatch(cmd *cobra.Command, ctx *commandContext, cfg *config.Config, req batchRequest, args []string) error {
	if failed := preflight.Failed(preflight.RunAll(cmd.Context(), cfg)); len(failed) > 0 {
		return fmt.Errorf("preflight failed: %s: %s", failed[0].Name, failed[0].Detail)
	}

	eng, err := ctx.ensureEngine(cmd.Context())
	if err != nil {
		return err
	}
	defer ctx.writeMetrics(eng)

	if req.outputDir != "" {
		lock, err := history.LockDir(req.outputDir)
		if err != nil {
			return err
		}
		defer func() { _ = lock.Unlock() }()
	}

	sources, err := collectSources(args, req.from, eng)
	if err != nil {
		return err
	}
	tasks := buildTasks(sources, req)
	if len(tasks) == 0 {
		return errors.New("no files to convert")
	}

	batchID := uuid.NewString()
	logger := logging.NewComponentLogger(ctx.logger, "cli").With(logging.String(logging.FieldBatchID, batchID))
	onProgress := progressReporter(cmd, req.json, len(tasks), logger)

	started := time.Now()
	done, runErr := batch.SubmitBatch(cmd.Context(), eng, tasks, req.workers, onProgress, nil,
		batch.WithBatchID(batchID),
		batch.WithPollInterval(cfg.PollInterval()),
		batch.WithStopTimeout(cfg.StopTimeout()),
		batch.WithOptimize(cfg.Batch.Optimize),
		batch.WithMetrics(eng.Metrics()),
		batch.WithLogger(logging.ComponentLevel(ctx.logger, cfg, "batch")),
	)
	if done == nil {
		return runErr
	}
	finished := time.Now()

	if req.history {
		recordRun(cmd.Context(), cfg, history.NewRun(batchID, started, finished, string(req.to), req.outputDir, req.workers, done), logger)
	}

	stats := summarize(done)
	notifyBatch(cmd.Context(), notifications.NewService(cfg), batchID, req.to, done, stats, finished.Sub(started), runErr, logger)

	if req.json {
		if err := writeJSON(cmd, batchOutput{BatchID: batchID, Stats: stats, Tasks: done}); err != nil {
			return err
		}
	} else {
		renderBatch(cmd, done, stats, finished.Sub(started))
	}

	if runErr != nil {
		return runErr
	}
	if stats.Failed > 0 {
		return fmt.Errorf("%d of %d conversions failed", stats.Failed, stats.Total)
	}
	return nil
}

// collectSources expands directories into the files under them that the
// registry can convert from (or that match from when given). Files named
// explicitly are kept as-is.
func collectSources(args []string, from formats.Format, eng *engine.Engine) ([]string, error) {
	accepted := eng.Registry().SupportedSources()
	matches := func(path string) bool {
		format := formats.FromPath(path)
		if from != "" {
			return format == from
		}
		return slices.Contains(accepted, format)
	}

	var sources []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", arg, err)
		}
		if !info.IsDir() {
			sources = append(sources, arg)
			continue
		}
		err = filepath.WalkDir(arg, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			name := d.Name()
			if d.IsDir() {
				if path != arg && strings.HasPrefix(name, ".") {
					return filepath.SkipDir
				}
				return nil
			}
			if strings.HasPrefix(name, ".") || !d.Type().IsRegular() {
				return nil
			}
			if matches(path) {
				sources = append(sources, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", arg, err)
		}
	}
	return sources, nil
}

func buildTasks(sources []string, req batchRequest) []batch.Task {
	tasks := make([]batch.Task, 0, len(sources))
	seen := make(map[string]struct{}, len(sources))
	for _, source := range sources {
		target := formats.TargetPath(source, req.outputDir, req.to)
		if filepath.Clean(target) == filepath.Clean(source) || fileutil.SameFile(target, source) {
			continue
		}
		if _, dup := seen[target]; dup {
			continue
		}
		seen[target] = struct{}{}
		tasks = append(tasks, batch.Task{
			SourcePath:   source,
			TargetPath:   target,
			SourceFormat: req.from,
			TargetFormat: req.to,
			Options:      req.options,
		})
	}
	return tasks
}

// progressReporter draws a bar on interactive terminals and falls back to
// sampled log lines otherwise.
func progressReporter(cmd *cobra.Command, jsonMode bool, total int, logger *slog.Logger) batch.ProgressFunc {
	if !jsonMode && stderrIsTerminal(cmd) {
		bar := progressbar.NewOptions(total,
			progressbar.OptionSetWriter(cmd.ErrOrStderr()),
			progressbar.OptionSetDescription("Converting"),
			progressbar.OptionShowCount(),
			progressbar.OptionShowElapsedTimeOnFinish(),
			progressbar.OptionSetTheme(progressbar.Theme{
				Saucer:        "=",
				SaucerHead:    ">",
				SaucerPadding: " ",
				BarStart:      "[",
				BarEnd:        "]",
			}),
		)
		return func(_ string, completed, _ int) {
			_ = bar.Set(completed)
			if completed >= total {
				_ = bar.Finish()
				fmt.Fprintln(cmd.ErrOrStderr())
			}
		}
	}

	sampler := logging.NewProgressSampler(10)
	return func(_ string, completed, total int) {
		if sampler.ShouldLog(completed, total) {
			logger.Info("batch progress",
				logging.Int("completed", completed),
				logging.Int("total", total),
			)
		}
	}
}

func stderrIsTerminal(cmd *cobra.Command) bool {
	file, ok := cmd.ErrOrStderr().(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func recordRun(ctx context.Context, cfg *config.Config, run history.Run, logger *slog.Logger) {
	store, err := history.Open(cfg.Paths.HistoryDB)
	if err != nil {
		logger.Warn("history unavailable", logging.Error(err))
		return
	}
	defer store.Close()
	if err := store.RecordBatch(context.WithoutCancel(ctx), run); err != nil {
		logger.Warn("record batch history failed", logging.Error(err))
	}
}

// notifyBatch reports the run outcome. An interrupted run is reported as an
// error rather than a completion summary.
func notifyBatch(ctx context.Context, notifier notifications.Service, batchID string, to formats.Format, tasks []batch.Task, stats batch.Stats, elapsed time.Duration, runErr error, logger *slog.Logger) {
	ctx = context.WithoutCancel(ctx)
	if runErr != nil {
		if err := notifier.NotifyError(ctx, runErr, "batch "+batchID); err != nil {
			logger.Warn("error notification failed", logging.Error(err))
		}
		return
	}
	summary := notifications.BatchSummary{
		BatchID:   batchID,
		Target:    string(to),
		Total:     stats.Total,
		Completed: stats.Completed,
		Failed:    stats.Failed,
		Duration:  elapsed,
	}
	for _, task := range tasks {
		if task.Status == batch.StatusFailed && task.Error != "" {
			summary.FirstError = task.Error
			break
		}
	}
	if err := notifier.NotifyBatchCompleted(ctx, summary); err != nil {
		logger.Warn("batch notification failed", logging.Error(err))
	}
}

func summarize(tasks []batch.Task) batch.Stats {
	var stats batch.Stats
	for _, task := range tasks {
		switch task.Status {
		case batch.StatusPending:
			stats.Pending++
		case batch.StatusProcessing:
			stats.Processing++
		case batch.StatusCompleted:
			stats.Completed++
		case batch.StatusFailed:
			stats.Failed++
		}
	}
	stats.Total = len(tasks)
	return stats
}

func renderBatch(cmd *cobra.Command, tasks []batch.Task, stats batch.Stats, elapsed time.Duration) {
	rows := make([][]string, 0, len(tasks))
	for _, task := range tasks {
		rows = append(rows, []string{
			task.SourcePath,
			task.TargetPath,
			string(task.Status),
			formatDuration(task.Duration()),
			task.Error,
		})
	}
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, renderTable(
		[]string{"Source", "Target", "Status", "Time", "Error"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
	))
	fmt.Fprintf(out, "Completed %d of %d (%d failed) in %s\n",
		stats.Completed, stats.Total, stats.Failed, elapsed.Round(time.Millisecond))
}

func formatDuration(d time.Duration) string {
	if d <= 0 {
		return "-"
	}
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	return d.Round(100 * time.Millisecond).String()
}
