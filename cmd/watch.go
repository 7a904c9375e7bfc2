package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/screenpilot/cv-ranker/internal/logger"
	"github.com/screenpilot/cv-ranker/internal/progress"
	"github.com/screenpilot/cv-ranker/internal/watcher"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the jobs folder and score new candidate files as they arrive",
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

		w := watcher.New(d.jobsDir, log, watcher.DefaultDebounce, func(positionDir string) {
			p := d.newPipeline(false)
			reporter := progress.New(p.Events(), log)

			summary, err := p.RunPosition(ctx, positionDir)
			reporter.Wait()
			if err != nil {
				log.Error("position run failed",
					zap.String(logger.FieldPosition, positionDir),
					zap.Error(err),
				)
				return
			}

			logSummary(log, summary)
		})

		if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}

		log.Info("watch stopped")

		return nil
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().StringVar(&jobsDirFlag, "jobs-dir", "", "jobs folder to watch (overrides config)")
}
