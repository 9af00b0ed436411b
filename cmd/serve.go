package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/advisor-cli/internal/model"
	"github.com/sells-group/advisor-cli/internal/pipeline"
	"github.com/sells-group/advisor-cli/internal/store"
	"github.com/sells-group/advisor-cli/pkg/blob"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the report status server and worker pool",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		router := newRouter(env.Store, env.Blobs, env.Queue, cfg.Ingest.MaxFileBytes)
		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: router,
		}

		g, gCtx := errgroup.WithContext(ctx)
		g.Go(func() error {
			return env.Queue.Start(gCtx)
		})
		g.Go(func() error {
			zap.L().Info("starting server", zap.Int("port", port))
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return eris.Wrap(err, "server listen")
			}
			return nil
		})
		g.Go(func() error {
			<-gCtx.Done()
			zap.L().Info("shutting down server")
			env.Queue.Close()
			return srv.Shutdown(context.Background())
		})

		if err := g.Wait(); err != nil && !eris.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}

// newRouter builds the status read-model routes. The enqueuer is injected
// so tests can observe submissions without a running worker pool.
func newRouter(st store.Store, blobs blob.Store, enq pipeline.Enqueuer, maxBody int64) http.Handler {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/reports/{id}/status", func(w http.ResponseWriter, req *http.Request) {
		report, err := st.GetReport(req.Context(), chi.URLParam(req, "id"))
		if err != nil {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "report not found"})
			return
		}
		writeJSON(w, http.StatusOK, report.StatusView())
	})

	r.Get("/reports/{id}", func(w http.ResponseWriter, req *http.Request) {
		report, err := st.GetReport(req.Context(), chi.URLParam(req, "id"))
		if err != nil {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "report not found"})
			return
		}
		writeJSON(w, http.StatusOK, report)
	})

	r.Post("/reports", func(w http.ResponseWriter, req *http.Request) {
		clientID := req.URL.Query().Get("client_id")
		typ, ok := model.ParseReportType(req.URL.Query().Get("type"))
		if clientID == "" || !ok {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "client_id and a valid type query parameter are required"})
			return
		}

		data, err := io.ReadAll(http.MaxBytesReader(w, req.Body, maxBody))
		if err != nil {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "csv body too large"})
			return
		}
		if len(data) == 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "csv body is required"})
			return
		}

		report, err := st.CreateReport(req.Context(), clientID, typ, "")
		if err != nil {
			zap.L().Error("create report failed", zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "create report"})
			return
		}
		ref, err := blobs.Save(report.ID, "csv", data)
		if err != nil {
			zap.L().Error("store csv failed", zap.String("report_id", report.ID), zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "store csv"})
			return
		}
		if err := st.SetReportCSVRef(req.Context(), report.ID, ref); err != nil {
			zap.L().Error("set csv ref failed", zap.String("report_id", report.ID), zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "store csv"})
			return
		}

		if err := enq.EnqueueIngest(req.Context(), report.ID); err != nil {
			zap.L().Error("enqueue failed", zap.String("report_id", report.ID), zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "queue unavailable"})
			return
		}

		writeJSON(w, http.StatusAccepted, map[string]string{
			"id":     report.ID,
			"status": string(report.Status),
		})
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
