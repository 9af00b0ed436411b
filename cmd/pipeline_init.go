package main

import (
	"context"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/advisor-cli/internal/assemble"
	"github.com/sells-group/advisor-cli/internal/pipeline"
	"github.com/sells-group/advisor-cli/internal/store"
	"github.com/sells-group/advisor-cli/pkg/blob"
	"github.com/sells-group/advisor-cli/pkg/renderer"
)

// pipelineEnv holds the store, artifact store, and pipeline needed by
// the generate/run/serve/worker commands.
type pipelineEnv struct {
	Store    store.Store
	Blobs    blob.Store
	Pipeline *pipeline.Pipeline
	Queue    *pipeline.Queue
}

// Close releases resources held by the pipeline environment.
func (pe *pipelineEnv) Close() {
	if pe.Store != nil {
		_ = pe.Store.Close()
	}
}

// initStore opens the configured database backend.
func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "advisor.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initBlobs opens the artifact directory.
func initBlobs() (blob.Store, error) {
	return blob.NewFS(cfg.Blob.Dir)
}

// initPipeline sets up the store, artifact store, renderer client, and
// assembler, and builds the Pipeline plus its work queue. Callers should
// defer env.Close().
func initPipeline(ctx context.Context) (*pipelineEnv, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	blobs, err := initBlobs()
	if err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "open artifact store")
	}

	tuning := assemble.DefaultTuning()
	if cfg.Assembly.TuningPath != "" {
		tuning, err = assemble.LoadTuning(cfg.Assembly.TuningPath)
		if err != nil {
			_ = st.Close()
			return nil, eris.Wrap(err, "load assembly tuning")
		}
		zap.L().Info("assembly tuning loaded", zap.String("path", cfg.Assembly.TuningPath))
	}

	renderClient := renderer.NewClient(cfg.Render.BaseURL,
		renderer.WithRateLimit(cfg.Render.RequestsPerSec),
		renderer.WithMaxRetries(cfg.Render.MaxRetries),
		renderer.WithHTTPClient(&http.Client{Timeout: time.Duration(cfg.Render.TimeoutSecs) * time.Second}),
	)

	p := pipeline.New(cfg, st, assemble.New(tuning), renderClient, blobs)

	return &pipelineEnv{
		Store:    st,
		Blobs:    blobs,
		Pipeline: p,
		Queue:    pipeline.NewQueue(p, st, cfg.Pipeline),
	}, nil
}
