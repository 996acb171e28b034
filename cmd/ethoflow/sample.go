package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/ethoflow/ethoflow/internal/model"
	"github.com/ethoflow/ethoflow/pkg/checkpoint"
	"github.com/ethoflow/ethoflow/pkg/config"
	eferrors "github.com/ethoflow/ethoflow/pkg/errors"
	"github.com/ethoflow/ethoflow/pkg/export"
	"github.com/ethoflow/ethoflow/pkg/lifecycle"
	"github.com/ethoflow/ethoflow/pkg/project"
	"github.com/ethoflow/ethoflow/pkg/sampling"
	"github.com/ethoflow/ethoflow/pkg/storage"
	"github.com/ethoflow/ethoflow/pkg/telemetry"
	"github.com/ethoflow/ethoflow/pkg/tui"
	"github.com/ethoflow/ethoflow/pkg/validation"
	"github.com/ethoflow/ethoflow/pkg/watch"
)

// Sample command flags
var (
	projectFile      string
	observationFlags []string
	subjectFlags     []string
	behaviorFlags    []string
	intervalFlag     string
	startFlag        string
	endFlag          string
	includeModifiers bool
	excludeEmpty     bool
	allowEventBounds bool
	formatFlag       string
	outputDir        string
	baseName         string
	overwriteFlag    string
	compressionFlag  string
	workersFlag      int
	resumeFlag       bool
	duckdbPath       string
	watchFlag        bool
	quietFlag        bool
)

const endAuto = "auto"

var sampleCmd = &cobra.Command{
	Use:   "sample",
	Short: "Sample state behaviors at regular instants",
	Long: `Sample the selected state behaviors of each selected observation and subject
at start, start+interval, ... before end, and export one table per pair.

Observations with unpaired state events are reported and left out.

Examples:
  ethoflow sample -p study.boris --interval 1
  ethoflow sample -p study.boris -O obs1 -s Alice -b rest -b walk -f xlsx -o results/
  ethoflow sample -p study.boris --include-modifiers --exclude-empty -o s3://lab/runs/42
  ethoflow sample -p study.yaml --end 600 --resume --duckdb samples.duckdb
  ethoflow sample -p study.boris --watch`,
	RunE: runSample,
}

func init() {
	sampleCmd.Flags().StringVarP(&projectFile, "project", "p", "", "Project file, BORIS JSON or YAML (required)")
	sampleCmd.Flags().StringArrayVarP(&observationFlags, "observation", "O", nil, "Observation id (repeatable, default all)")
	sampleCmd.Flags().StringArrayVarP(&subjectFlags, "subject", "s", nil, `Subject name (repeatable, default all plus "No focal subject")`)
	sampleCmd.Flags().StringArrayVarP(&behaviorFlags, "behavior", "b", nil, "Behavior code (repeatable, default all state behaviors)")
	sampleCmd.Flags().StringVar(&intervalFlag, "interval", "", "Sampling interval in seconds, up to 3 decimals (default from config)")
	sampleCmd.Flags().StringVar(&startFlag, "start", "0", "First sample instant (seconds or hh:mm:ss.mmm)")
	sampleCmd.Flags().StringVar(&endFlag, "end", endAuto, `Last instant bound (seconds, hh:mm:ss.mmm or "auto" for media length)`)
	sampleCmd.Flags().BoolVar(&includeModifiers, "include-modifiers", false, "One column per behavior and modifier")
	sampleCmd.Flags().BoolVar(&excludeEmpty, "exclude-empty", false, "Drop behaviors never active for the subject")
	sampleCmd.Flags().BoolVar(&allowEventBounds, "allow-event-bounds", false, "Use the last event time when media length is unknown")
	sampleCmd.Flags().StringVarP(&formatFlag, "format", "f", "", "Output format (tsv, csv, html, xlsx, ods, parquet)")
	sampleCmd.Flags().StringVarP(&outputDir, "output", "o", "", "Output directory or s3://bucket/prefix")
	sampleCmd.Flags().StringVar(&baseName, "name", "", "Base file name when a single observation is exported")
	sampleCmd.Flags().StringVar(&overwriteFlag, "overwrite", "", "Existing files: overwrite, skip or fail")
	sampleCmd.Flags().StringVar(&compressionFlag, "compression", "", "Parquet compression (none, snappy, gzip, zstd, lz4)")
	sampleCmd.Flags().IntVarP(&workersFlag, "workers", "w", 0, "Concurrent observation/subject pairs (default from config)")
	sampleCmd.Flags().BoolVar(&resumeFlag, "resume", false, "Skip files exported by an interrupted identical run")
	sampleCmd.Flags().StringVar(&duckdbPath, "duckdb", "", "Also load samples into this DuckDB database")
	sampleCmd.Flags().BoolVar(&watchFlag, "watch", false, "Re-run whenever the project file changes")
	sampleCmd.Flags().BoolVarP(&quietFlag, "quiet", "q", false, "No progress bar or summary")
	sampleCmd.MarkFlagRequired("project")

	rootCmd.AddCommand(sampleCmd)
}

// sampleRun is a fully resolved sample invocation.
type sampleRun struct {
	cfg         *config.Config
	opts        config.Options
	format      export.Format
	compression export.Compression
	policy      export.OverwritePolicy
	dest        string
}

func runSample(cmd *cobra.Command, args []string) error {
	run, err := resolveSampleRun(cmd)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if err := sampleOnce(ctx, run); err != nil {
		if !watchFlag {
			return err
		}
		logger.Error("sampling failed", "error", err)
	}
	if !watchFlag {
		return nil
	}

	// Reruns replace the tables of the previous run.
	rerun := *run
	rerun.policy = export.Overwrite
	w, err := watch.NewWatcher(func(ctx context.Context, path string) error {
		return sampleOnce(ctx, &rerun)
	}, watch.WithLogger(logger))
	if err != nil {
		return err
	}
	if err := w.Add(projectFile); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Watching %s (Ctrl+C to stop)\n", projectFile)
	if err := w.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

// resolveSampleRun merges config and flags. Flags win when set.
func resolveSampleRun(cmd *cobra.Command) (*sampleRun, error) {
	c := *cfgManager.Get()
	cfg := &c
	flags := cmd.Flags()

	if flags.Changed("interval") {
		cfg.Sampling.Interval = intervalFlag
	}
	if flags.Changed("include-modifiers") {
		cfg.Sampling.IncludeModifiers = includeModifiers
	}
	if flags.Changed("exclude-empty") {
		cfg.Sampling.ExcludeBehaviorsWithoutEvents = excludeEmpty
	}
	if flags.Changed("allow-event-bounds") {
		cfg.Sampling.AllowEventBounds = allowEventBounds
	}
	if flags.Changed("workers") {
		cfg.Sampling.Workers = workersFlag
	}
	if formatFlag != "" {
		cfg.Export.Format = formatFlag
	}
	if outputDir != "" {
		cfg.Export.Dir = outputDir
	}
	if overwriteFlag != "" {
		cfg.Export.Overwrite = overwriteFlag
	}
	if compressionFlag != "" {
		cfg.Export.Compression = compressionFlag
	}

	opts, err := cfg.SamplingOptions()
	if err != nil {
		return nil, eferrors.Wrap(err, eferrors.CodeInvalidParameters, "invalid sampling interval")
	}

	dest := cfg.Export.Dir
	checkDir := dest
	if storage.IsRemote(dest) {
		checkDir = ""
	}
	if res := validation.ValidateRunConfig(projectFile, checkDir, cfg.Export.Format, cfg.Export.Compression, opts.Interval); !res.Valid {
		return nil, res.Err()
	}

	format, err := export.ParseFormat(cfg.Export.Format)
	if err != nil {
		return nil, err
	}
	policy, err := export.ParseOverwritePolicy(cfg.Export.Overwrite)
	if err != nil {
		return nil, eferrors.Wrap(err, eferrors.CodeInvalidParameters, "invalid overwrite policy")
	}

	return &sampleRun{
		cfg:         cfg,
		opts:        opts,
		format:      format,
		compression: export.ParseCompression(cfg.Export.Compression),
		policy:      policy,
		dest:        dest,
	}, nil
}

// sampleOnce loads the project and performs one complete run.
func sampleOnce(ctx context.Context, run *sampleRun) error {
	started := time.Now()
	resources := lifecycle.NewShutdownManager(logger)
	defer resources.Shutdown(context.Background())

	p, err := project.Load(projectFile)
	if err != nil {
		return err
	}

	obsIDs, err := selectObservations(p, observationFlags)
	if err != nil {
		return err
	}
	params, err := buildParameters(p, obsIDs, run.opts)
	if err != nil {
		return err
	}

	metrics := telemetry.NewMetrics()
	engineOpts := []sampling.Option{
		sampling.WithWorkers(run.opts.Workers),
		sampling.WithLogger(logger),
		sampling.WithProgress(metrics.ObserveUnit),
	}
	if !quietFlag {
		// The bar is sized once rejected observations are known.
		var bar *progressbar.ProgressBar
		defer func() {
			if bar != nil {
				bar.Finish()
			}
		}()
		subjects := countSubjects(params.SelectedSubjects)
		engineOpts = append(engineOpts,
			sampling.WithValidated(func(b validation.BatchResult) {
				if total := progressTotal(b, subjects); total > 0 {
					bar = tui.NewProgress(os.Stderr, total, "sampling")
				}
			}),
			sampling.WithProgress(func(u sampling.UnitDone) {
				metrics.ObserveUnit(u)
				bar.Add(1)
			}),
		)
	}

	engine := sampling.NewEngine(engineOpts...)
	report, err := engine.RunValidated(ctx, p, obsIDs, params, run.opts.Interval)
	if err != nil {
		return err
	}
	if len(report.Validation.Rejected) > 0 {
		tui.PrintValidation(os.Stderr, report.Validation)
	}
	if len(report.Result) == 0 {
		fmt.Fprintln(os.Stderr, "Nothing to export: every selected observation was removed.")
		return nil
	}

	outcomes, err := exportResult(ctx, resources, run, obsIDs, params, report)
	if err != nil {
		return err
	}

	summary := tui.Summary{
		Observations: len(report.Result),
		Tables:       len(outcomes),
		Destination:  run.dest,
	}
	for _, o := range outcomes {
		switch o.Status {
		case export.StatusWritten:
			metrics.RecordFile(int64(o.Bytes))
			summary.FilesWritten++
		case export.StatusSkipped:
			metrics.RecordSkipped()
			summary.FilesSkipped++
		case export.StatusResumed:
			summary.FilesResumed++
		}
	}

	if duckdbPath != "" {
		if err := loadDuckDB(ctx, resources, report); err != nil {
			return err
		}
	}

	m := metrics.Summary()
	summary.Rows = m.Rows
	summary.BytesWritten = m.BytesWritten
	summary.Duration = time.Since(started)
	logger.Info("sampling complete",
		"tables", summary.Tables,
		"rows", m.Rows,
		"files_written", m.FilesWritten,
		"p95_unit_latency", m.P95Latency)
	if !quietFlag {
		tui.PrintSummary(os.Stdout, summary)
	}
	return nil
}

// exportResult writes every table to the destination, resuming from a
// checkpoint when requested.
func exportResult(ctx context.Context, resources *lifecycle.ShutdownManager, run *sampleRun, obsIDs []string, params sampling.Parameters, report *sampling.Report) ([]export.Outcome, error) {
	store, err := storage.Open(ctx, run.dest, run.cfg.Storage)
	if err != nil {
		return nil, eferrors.Wrap(err, eferrors.CodeExportFailure, "cannot open output destination")
	}

	encode := export.DefaultOptions()
	encode.Compression = run.compression
	writerOpts := []export.WriterOption{
		export.WithPolicy(run.policy),
		export.WithBaseName(baseName),
		export.WithExportWorkers(run.opts.Workers),
		export.WithEncodeOptions(encode),
		export.WithWriterLogger(logger),
	}

	var tracker *checkpoint.Tracker
	if resumeFlag {
		backend, err := openCheckpointBackend(ctx, resources, run.cfg.Checkpoint)
		if err != nil {
			return nil, err
		}
		key := runKey(projectFile, run, obsIDs, params)
		t, resumed, err := checkpoint.Start(ctx, backend, key, projectFile, run.dest)
		if err != nil {
			return nil, err
		}
		if resumed {
			logger.Info("resuming export", "run", t.ID(), "done", len(t.Completed()), "backend", backend.Name())
		}
		tracker = t
		writerOpts = append(writerOpts, export.WithTracker(t))
	}

	w, err := export.NewWriter(store, run.format, writerOpts...)
	if err != nil {
		return nil, err
	}
	outcomes, err := w.WriteAll(ctx, report.Result)
	if err != nil {
		return nil, err
	}

	if tracker != nil {
		if err := tracker.Complete(ctx); err != nil {
			logger.Warn("failed to complete checkpoint", "run", tracker.ID(), "error", err)
		}
	}
	return outcomes, nil
}

func openCheckpointBackend(ctx context.Context, resources *lifecycle.ShutdownManager, c config.CheckpointConfig) (checkpoint.Backend, error) {
	switch c.Backend {
	case "redis":
		rc := checkpoint.DefaultRedisConfig(c.RedisAddress)
		rc.Password = c.RedisPassword
		if c.RedisPrefix != "" {
			rc.Prefix = c.RedisPrefix
		}
		rc.TTL = c.TTL
		b, err := checkpoint.NewRedisBackend(ctx, rc)
		if err != nil {
			return nil, err
		}
		resources.RegisterCloser("redis checkpoints", b)
		return b, nil
	default:
		// --resume implies a checkpoint store even when none is configured.
		return checkpoint.NewFileBackend(c.Dir)
	}
}

func loadDuckDB(ctx context.Context, resources *lifecycle.ShutdownManager, report *sampling.Report) error {
	sink, err := export.OpenDuckDBSink(duckdbPath)
	if err != nil {
		return eferrors.Wrap(err, eferrors.CodeExportFailure, "cannot open duckdb database")
	}
	resources.RegisterCloser("duckdb", sink)

	n, err := sink.Write(ctx, report.Result)
	if err != nil {
		return eferrors.Wrap(err, eferrors.CodeExportFailure, "duckdb load failed")
	}
	logger.Info("loaded samples into duckdb", "path", duckdbPath, "rows", n)
	return nil
}

// selectObservations returns the requested ids, or every observation.
func selectObservations(p *model.Project, ids []string) ([]string, error) {
	if len(ids) == 0 {
		ids = p.ObservationIDs()
		if len(ids) == 0 {
			return nil, eferrors.InvalidParameters("project has no observations")
		}
		return ids, nil
	}
	for _, id := range ids {
		if _, ok := p.Observations[id]; !ok {
			return nil, eferrors.InvalidParameters("unknown observation").WithContext("observation", id)
		}
	}
	return ids, nil
}

// buildParameters fills subject and behavior defaults and resolves the
// sampling bounds.
func buildParameters(p *model.Project, obsIDs []string, opts config.Options) (sampling.Parameters, error) {
	subjects := subjectFlags
	if len(subjects) == 0 {
		subjects = append(p.SubjectNames(), model.NoFocalSubject)
	}
	behaviors := behaviorFlags
	if len(behaviors) == 0 {
		behaviors = p.Ethogram.StateCodes()
	}

	start, err := model.ParseTime(startFlag)
	if err != nil {
		return sampling.Parameters{}, eferrors.Wrap(err, eferrors.CodeInvalidParameters, "invalid start time")
	}

	var end model.Time
	if strings.EqualFold(endFlag, endAuto) {
		end, err = project.ObservationLength(p, obsIDs, opts.AllowEventBounds)
	} else {
		end, err = model.ParseTime(endFlag)
		if err != nil {
			err = eferrors.Wrap(err, eferrors.CodeInvalidParameters, "invalid end time")
		}
	}
	if err != nil {
		return sampling.Parameters{}, err
	}

	return sampling.Parameters{
		SelectedSubjects:              subjects,
		SelectedBehaviors:             behaviors,
		IncludeModifiers:              opts.IncludeModifiers,
		ExcludeBehaviorsWithoutEvents: opts.ExcludeBehaviorsWithoutEvents,
		StartTime:                     start,
		EndTime:                       end,
	}, nil
}

// progressTotal is the number of units sampled after validation.
func progressTotal(b validation.BatchResult, subjects int) int {
	return len(b.Kept) * subjects
}

func countSubjects(subjects []string) int {
	seen := make(map[string]struct{}, len(subjects))
	for _, s := range subjects {
		seen[model.SubjectKey(s)] = struct{}{}
	}
	return len(seen)
}

// runKey fingerprints everything that determines the exported files.
func runKey(projectPath string, run *sampleRun, obsIDs []string, params sampling.Parameters) string {
	abs, err := filepath.Abs(projectPath)
	if err != nil {
		abs = projectPath
	}
	var modTime string
	if info, err := os.Stat(abs); err == nil {
		modTime = info.ModTime().UTC().Format(time.RFC3339Nano)
	}
	return checkpoint.Fingerprint(
		abs, modTime, run.dest, string(run.format), baseName,
		run.opts.Interval.String(), params.StartTime.String(), params.EndTime.String(),
		strings.Join(obsIDs, ","),
		strings.Join(params.SelectedSubjects, ","),
		strings.Join(params.SelectedBehaviors, ","),
		fmt.Sprint(params.IncludeModifiers, params.ExcludeBehaviorsWithoutEvents),
	)
}
