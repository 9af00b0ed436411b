package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/advisor-cli/internal/model"
	"github.com/sells-group/advisor-cli/internal/store"
)

var workerPollSecs int

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Process pending reports on a worker pool",
	Long:  "Polls the store for pending reports and runs each through the full pipeline. Retryable failures are retried in place by the pool.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		g, gCtx := errgroup.WithContext(ctx)
		g.Go(func() error {
			return env.Queue.Start(gCtx)
		})
		g.Go(func() error {
			defer env.Queue.Close()
			return pollPending(gCtx, env, time.Duration(workerPollSecs)*time.Second)
		})

		if err := g.Wait(); err != nil && !eris.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}

// pollPending enqueues newly created reports until the context ends.
// Already-submitted IDs are skipped; the queue handles retries itself.
func pollPending(ctx context.Context, env *pipelineEnv, interval time.Duration) error {
	log := zap.L().With(zap.String("component", "worker"))
	seen := make(map[string]struct{})

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		reports, err := env.Store.ListReports(ctx, store.ReportFilter{
			Status: model.StatusPending,
			Limit:  100,
		})
		if err != nil {
			log.Error("poll failed", zap.Error(err))
		}
		for _, r := range reports {
			if _, ok := seen[r.ID]; ok {
				continue
			}
			if err := env.Queue.EnqueueIngest(ctx, r.ID); err != nil {
				return err
			}
			seen[r.ID] = struct{}{}
			log.Info("report enqueued", zap.String("report_id", r.ID))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func init() {
	workerCmd.Flags().IntVar(&workerPollSecs, "poll-secs", 5, "seconds between store polls")
	rootCmd.AddCommand(workerCmd)
}
