package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/landscape-rescale/internal/bootstrap"
	"github.com/landscape-rescale/internal/domain"
	"github.com/landscape-rescale/internal/pkg/metrics"
)

type runOptions struct {
	file       string
	workers    int
	runID      string
	noProgress bool
}

func newRunCmd(a *app) *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run [indicator...]",
		Short: "Rescale indicators to every configured unit kind",
		Example: `  rescale run CAR BLIS
  rescale run --file indicators.txt --workers 8`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd.Context(), opts, args)
		},
	}

	cmd.Flags().StringVarP(&opts.file, "file", "f", "", "file with indicator codes, one per line")
	cmd.Flags().IntVarP(&opts.workers, "workers", "w", 0, "concurrent indicators (default worker.concurrency)")
	cmd.Flags().StringVar(&opts.runID, "run-id", "", "run identifier (default random uuid)")
	cmd.Flags().BoolVar(&opts.noProgress, "no-progress", false, "disable progress bar")

	return cmd
}

func (a *app) run(ctx context.Context, opts *runOptions, args []string) error {
	indicators := append([]string{}, args...)
	if opts.file != "" {
		fromFile, err := readIndicators(opts.file)
		if err != nil {
			return err
		}
		indicators = append(indicators, fromFile...)
	}
	if len(indicators) == 0 {
		return fmt.Errorf("no indicators given: pass codes as arguments or --file")
	}

	runID := opts.runID
	if runID == "" {
		runID = uuid.NewString()
	}
	workers := opts.workers
	if workers <= 0 {
		workers = a.cfg.Worker.Concurrency
	}

	pipeline, err := bootstrap.NewPipeline(a.cfg, metrics.NewCollector("rescale"), a.log)
	if err != nil {
		return err
	}
	defer pipeline.Close()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var bar *progressbar.ProgressBar
	if !opts.noProgress {
		bar = progressbar.Default(int64(len(indicators)), "Rescaling indicators")
	}

	run := pipeline.UseCase.RunBatch(ctx, runID, indicators, workers, func(res domain.IndicatorResult) {
		if bar != nil {
			_ = bar.Add(1)
		}
		if res.Failed() {
			a.log.Warn("Indicator failed",
				zap.String("indicator", res.Indicator),
				zap.String("error", res.Error))
		}
	})
	if bar != nil {
		_ = bar.Finish()
	}

	printRun(run)

	if run.Status == domain.RunStatusFailed {
		return fmt.Errorf("run %s failed: all %d indicators failed", run.RunID, len(run.Indicators))
	}
	return nil
}

// readIndicators читает коды индикаторов по одному на строку; пустые строки и # пропускаются
func readIndicators(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open indicators file: %w", err)
	}
	defer f.Close()

	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read indicators file: %w", err)
	}
	return out, nil
}

func printRun(run *domain.RunResult) {
	fmt.Printf("\nRun %s: %s (%d indicators, %d failed)\n",
		run.RunID, run.Status, len(run.Indicators), run.FailedCount())

	for _, ind := range run.Indicators {
		if ind.Failed() {
			fmt.Printf("  %-12s FAILED  %s\n", ind.Indicator, ind.Error)
			continue
		}
		parts := make([]string, 0, len(ind.Kinds))
		for _, k := range ind.Kinds {
			parts = append(parts, fmt.Sprintf("%s:units=%d,filtered=%d", k.Kind, k.Units, k.Filtered))
		}
		fmt.Printf("  %-12s ok      n=%d %s (%s)\n",
			ind.Indicator, ind.Observations, strings.Join(parts, " "), ind.Duration.Round(time.Millisecond))
	}
}
