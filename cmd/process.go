package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/screenpilot/cv-ranker/internal/ai/gemini"
	"github.com/screenpilot/cv-ranker/internal/extract"
	"github.com/screenpilot/cv-ranker/internal/logger"
	"github.com/screenpilot/cv-ranker/internal/notion"
	"github.com/screenpilot/cv-ranker/internal/pipeline"
	"github.com/screenpilot/cv-ranker/internal/progress"
	"github.com/screenpilot/cv-ranker/internal/report"
	"github.com/screenpilot/cv-ranker/internal/secrets"
	"github.com/screenpilot/cv-ranker/internal/uploader"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Process every position folder once: extract, score, and upload all new candidates",
	RunE: func(cmd *cobra.Command, _ []string) error {
		log, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
		if err != nil {
			return fmt.Errorf("creating logger: %w", err)
		}
		defer log.Sync() //nolint: errcheck

		log = log.With(zap.String("run_id", uuid.NewString()))

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		d, err := buildDeps(ctx, log)
		if err != nil {
			return err
		}

		p := d.newPipeline(reprocess)
		reporter := progress.New(p.Events(), log)

		summary, err := p.Run(ctx, d.jobsDir)
		reporter.Wait()
		if err != nil {
			return err
		}

		logSummary(log, summary)

		if reportFile != "" {
			if err := report.Write(reportFile, summary); err != nil {
				return fmt.Errorf("writing report: %w", err)
			}
			log.Info("report written", zap.String("file", reportFile))
		}

		return nil
	},
}

var (
	jobsDirFlag string
	reprocess   bool
	reportFile  string
)

func init() {
	rootCmd.AddCommand(processCmd)

	processCmd.Flags().StringVar(&jobsDirFlag, "jobs-dir", "", "jobs folder to process (overrides config)")
	processCmd.Flags().BoolVar(&reprocess, "reprocess", false, "ignore the processed-files logs and rescore everything")
	processCmd.Flags().StringVar(&reportFile, "report", "", "write an .xlsx run report to this file")
}

// deps is the wired dependency set shared by the process and watch commands.
type deps struct {
	log       *zap.Logger
	config    *Config
	jobsDir   string
	location  *time.Location
	evaluator *gemini.Evaluator
	store     *notion.Client
	// Pools and the uploader are shared across pipeline instances so
	// watch-mode runs that overlap still respect the global per-service
	// ceilings and the per-key upload serialization.
	uploader   *uploader.Uploader
	evalPool   *pipeline.Pool
	uploadPool *pipeline.Pool
}

// buildDeps loads configuration, resolves secrets, and constructs the
// external clients. Any failure here is run-fatal by design: without valid
// config, a reachable model, and a verified store there is nothing to do.
func buildDeps(ctx context.Context, log *zap.Logger) (*deps, error) {
	config, err := getConfig()
	if err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	jobsDir := config.JobsDir
	if jobsDirFlag != "" {
		jobsDir = jobsDirFlag
	}
	if info, err := os.Stat(jobsDir); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("jobs folder %q does not exist or is not a directory", jobsDir)
	}

	location, err := time.LoadLocation(config.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", config.Timezone, err)
	}

	geminiKey, err := secrets.Load(secrets.Source{
		Name:  "gemini api key",
		Value: config.AI.Gemini.APIKey,
		File:  config.AI.Gemini.APIKeyFile,
		Env:   "GEMINI_API_KEY",
	})
	if err != nil {
		return nil, err
	}

	notionKey, err := secrets.Load(secrets.Source{
		Name:  "notion api key",
		Value: config.Notion.APIKey,
		File:  config.Notion.APIKeyFile,
		Env:   "NOTION_API_KEY",
	})
	if err != nil {
		return nil, err
	}

	generator, err := gemini.NewGenerator(ctx, geminiKey, config.AI.Gemini.Model)
	if err != nil {
		return nil, err
	}

	log.Debug("ai evaluator configured", logger.AIFields("gemini", generator.Model())...)

	evaluator := gemini.NewEvaluator(generator, log, gemini.Config{
		Temperature:    config.AI.Gemini.Temperature,
		RequestTimeout: config.AI.Gemini.RequestTimeout,
		MaxLogLength:   config.AI.Gemini.MaxLogLength,
	})

	store := notion.New(log, notionKey, config.Notion.DatabaseID)
	if err := store.Verify(ctx); err != nil {
		return nil, err
	}

	up := uploader.New(store, log, uploader.Config{
		MaxRetries:  config.Notion.MaxRetries,
		AttachFiles: config.Notion.AttachFiles,
	})

	return &deps{
		log:        log,
		config:     config,
		jobsDir:    jobsDir,
		location:   location,
		evaluator:  evaluator,
		store:      store,
		uploader:   up,
		evalPool:   pipeline.NewPool(config.AI.Concurrency),
		uploadPool: pipeline.NewPool(config.Notion.Concurrency),
	}, nil
}

// newPipeline wires a fresh pipeline over the shared clients. Each run needs
// its own because the event stream closes when a run ends.
func (d *deps) newPipeline(reprocess bool) *pipeline.Pipeline {
	return pipeline.New(extract.New(), d.evaluator, d.uploader, d.log, pipeline.Config{
		Location:      d.location,
		EvalRetries:   d.config.AI.MaxRetries,
		Reprocess:     reprocess,
		EvaluatorPool: d.evalPool,
		UploaderPool:  d.uploadPool,
	})
}

func logSummary(log *zap.Logger, summary *pipeline.Summary) {
	fields := []zap.Field{
		zap.Int("positions", summary.Positions),
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("failed", summary.Failed()),
		zap.Int("skipped_files", summary.SkippedFiles),
		zap.Int("skipped_positions", len(summary.SkippedPositions)),
	}
	for stage, count := range summary.FailedByStage() {
		fields = append(fields, zap.Int(fmt.Sprintf("failed_%s", stage), count))
	}
	log.Info("run summary", fields...)

	for _, sp := range summary.SkippedPositions {
		log.Warn("skipped position",
			zap.String(logger.FieldPosition, sp.Name),
			zap.String("reason", sp.Reason),
		)
	}
	for _, failure := range summary.Failures {
		log.Warn("failed candidate",
			zap.String(logger.FieldPosition, failure.Position),
			zap.String(logger.FieldCandidateFile, failure.File),
			zap.String("stage", string(failure.Stage)),
			zap.String("reason", failure.Reason),
		)
	}
}
