package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/robfig/cron/v3"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/shivas758/agriguru-sub003/internal/pricesync"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP trigger server and scheduler",
	Long: `Runs an HTTP server exposing sync triggers and status endpoints,
plus an in-process cron scheduler that syncs yesterday's prices daily and
backfills recent gaps.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		pool, err := storePool(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		orch, err := buildOrchestrator(ctx, pool)
		if err != nil {
			return err
		}
		im := pricesync.NewImporter(orch)

		if cfg.Scheduler.Enabled {
			sched := startScheduler(ctx, orch)
			defer sched.Stop()
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: newRouter(orch, im),
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			_ = srv.Shutdown(ctx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// newRouter builds the HTTP API over the sync engine.
func newRouter(orch *pricesync.Orchestrator, im *pricesync.Importer) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/sync/status", func(w http.ResponseWriter, req *http.Request) {
		report, err := orch.Health(req.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, report)
	})

	r.Get("/sync/health", func(w http.ResponseWriter, req *http.Request) {
		report, err := orch.Health(req.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		status := http.StatusOK
		if !report.Healthy {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, map[string]any{
			"healthy":      report.Healthy,
			"window_days":  report.WindowDays,
			"failed_jobs":  report.Failed,
			"success_rate": report.SuccessRate,
		})
	})

	r.Post("/sync/yesterday", func(w http.ResponseWriter, req *http.Request) {
		outcome, err := orch.SyncYesterday(req.Context())
		if err != nil {
			writeSyncError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, outcome)
	})

	r.Post("/sync/date/{date}", func(w http.ResponseWriter, req *http.Request) {
		date, err := parseDay(chi.URLParam(req, "date"))
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		outcome, err := orch.SyncDate(req.Context(), date)
		if err != nil {
			writeSyncError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, outcome)
	})

	r.Post("/sync/backfill", func(w http.ResponseWriter, req *http.Request) {
		days := 7
		if q := req.URL.Query().Get("days"); q != "" {
			n, err := strconv.Atoi(q)
			if err != nil || n <= 0 {
				writeError(w, http.StatusBadRequest, eris.Errorf("invalid days %q", q))
				return
			}
			days = n
		}
		summary, err := orch.BackfillMissingDates(req.Context(), days)
		if err != nil {
			writeSyncError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, summary)
	})

	r.Post("/import", func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			Start  string `json:"start"`
			End    string `json:"end"`
			Resume bool   `json:"resume"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, eris.New("invalid request body"))
			return
		}
		start, err := parseDay(body.Start)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		end, err := parseDay(body.End)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		if start.After(end) {
			writeError(w, http.StatusBadRequest, eris.New("start date is after end date"))
			return
		}

		// Range imports can run for hours; accept and run in the background.
		// The request context dies with the response, so detach.
		go func() {
			run := im.Run
			if body.Resume {
				run = im.Resume
			}
			summary, err := run(context.Background(), start, end)
			if err != nil {
				zap.L().Error("background import failed", zap.Error(err))
				return
			}
			zap.L().Info("background import complete",
				zap.Int("processed", summary.DatesProcessed),
				zap.Int64("records", summary.RecordsSynced),
			)
		}()

		writeJSON(w, http.StatusAccepted, map[string]string{
			"status": "accepted",
			"start":  body.Start,
			"end":    body.End,
		})
	})

	return r
}

// startScheduler registers the cron triggers and starts them.
func startScheduler(ctx context.Context, orch *pricesync.Orchestrator) *cron.Cron {
	log := zap.L().With(zap.String("component", "scheduler"))
	c := cron.New()

	_, err := c.AddFunc(cfg.Scheduler.DailySpec, func() {
		if _, err := orch.SyncYesterday(ctx); err != nil && !errors.Is(err, pricesync.ErrAlreadyRunning) {
			log.Error("scheduled daily sync failed", zap.Error(err))
		}
		if cfg.Scheduler.BackfillDays > 0 {
			if _, err := orch.BackfillMissingDates(ctx, cfg.Scheduler.BackfillDays); err != nil &&
				!errors.Is(err, pricesync.ErrAlreadyRunning) {
				log.Error("scheduled backfill failed", zap.Error(err))
			}
		}
	})
	if err != nil {
		log.Error("invalid daily cron spec", zap.String("spec", cfg.Scheduler.DailySpec), zap.Error(err))
	}

	if cfg.Scheduler.HourlySync {
		_, err := c.AddFunc(cfg.Scheduler.HourlySpec, func() {
			if _, err := orch.SyncYesterday(ctx); err != nil && !errors.Is(err, pricesync.ErrAlreadyRunning) {
				log.Error("scheduled hourly sync failed", zap.Error(err))
			}
		})
		if err != nil {
			log.Error("invalid hourly cron spec", zap.String("spec", cfg.Scheduler.HourlySpec), zap.Error(err))
		}
	}

	c.Start()
	log.Info("scheduler started",
		zap.String("daily_spec", cfg.Scheduler.DailySpec),
		zap.Bool("hourly", cfg.Scheduler.HourlySync),
	)
	return c
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// writeSyncError maps the reentrancy guard to 409, everything else to 500.
func writeSyncError(w http.ResponseWriter, err error) {
	if errors.Is(err, pricesync.ErrAlreadyRunning) {
		writeError(w, http.StatusConflict, err)
		return
	}
	writeError(w, http.StatusInternalServerError, err)
}
