package pipeline

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/advisor-cli/internal/config"
	"github.com/sells-group/advisor-cli/internal/model"
	"github.com/sells-group/advisor-cli/internal/store"
)

// Enqueuer is the hand-off point between report creation and processing.
// The in-process Queue is the reference implementation; a broker-backed
// transport would satisfy the same interface.
type Enqueuer interface {
	EnqueueIngest(ctx context.Context, reportID string) error
	EnqueueGenerate(ctx context.Context, reportID string) error
}

type jobKind int

const (
	jobIngest jobKind = iota
	jobGenerate
)

type job struct {
	reportID string
	kind     jobKind
}

// Queue is an in-process work queue that runs report jobs on a bounded
// worker pool and retries retryable failures with a minimum delay.
type Queue struct {
	pipeline *Pipeline
	store    store.Store
	cfg      config.PipelineConfig
	jobs     chan job
}

var _ Enqueuer = (*Queue)(nil)

// NewQueue creates a queue for the given pipeline.
func NewQueue(p *Pipeline, st store.Store, cfg config.PipelineConfig) *Queue {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	return &Queue{
		pipeline: p,
		store:    st,
		cfg:      cfg,
		jobs:     make(chan job, 64),
	}
}

// EnqueueIngest submits a report for the full lifecycle. It blocks only
// when the buffer is full.
func (q *Queue) EnqueueIngest(ctx context.Context, reportID string) error {
	return q.enqueue(ctx, job{reportID: reportID, kind: jobIngest})
}

// EnqueueGenerate submits artifact generation for a report whose findings
// are already imported.
func (q *Queue) EnqueueGenerate(ctx context.Context, reportID string) error {
	return q.enqueue(ctx, job{reportID: reportID, kind: jobGenerate})
}

func (q *Queue) enqueue(ctx context.Context, j job) error {
	select {
	case q.jobs <- j:
		return nil
	case <-ctx.Done():
		return eris.Wrap(ctx.Err(), "queue: enqueue")
	}
}

// Close stops accepting jobs. Workers drain the buffer and exit.
func (q *Queue) Close() {
	close(q.jobs)
}

// Start runs the worker pool until the queue is closed or the context
// is cancelled.
func (q *Queue) Start(ctx context.Context) error {
	log := zap.L().With(zap.String("component", "queue"))
	log.Info("workers starting", zap.Int("workers", q.cfg.Workers))

	g, gCtx := errgroup.WithContext(ctx)
	for i := 0; i < q.cfg.Workers; i++ {
		g.Go(func() error {
			for {
				select {
				case <-gCtx.Done():
					return gCtx.Err()
				case j, ok := <-q.jobs:
					if !ok {
						return nil
					}
					q.process(gCtx, j, log)
				}
			}
		})
	}
	return g.Wait()
}

// process runs one report, retrying in place while budget remains.
// Retries always take the full lifecycle so a failed generation re-ingests
// through the legal failed to processing edge. Job failures never take
// down the worker pool.
func (q *Queue) process(ctx context.Context, j job, log *zap.Logger) {
	delay := time.Duration(q.cfg.RetryDelaySecs) * time.Second
	reportID := j.reportID

	run := q.pipeline.Run
	if j.kind == jobGenerate {
		run = q.pipeline.RunGenerate
	}

	for {
		err := run(ctx, reportID)
		if err == nil {
			return
		}
		run = q.pipeline.Run
		if !model.IsRetryable(err) {
			log.Warn("job failed permanently",
				zap.String("report_id", reportID),
				zap.Error(err),
			)
			return
		}

		report, loadErr := q.store.GetReport(ctx, reportID)
		if loadErr != nil {
			log.Error("job state unreadable after failure",
				zap.String("report_id", reportID),
				zap.Error(loadErr),
			)
			return
		}
		if !CanRetry(report, q.cfg.MaxRetries) {
			log.Warn("job retry budget exhausted",
				zap.String("report_id", reportID),
				zap.Int("retry_count", report.RetryCount),
				zap.Error(err),
			)
			return
		}

		log.Info("job retry scheduled",
			zap.String("report_id", reportID),
			zap.Int("retry_count", report.RetryCount),
			zap.Duration("delay", delay),
		)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}
