package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/deusflow/musicpulse/internal/app"
	"github.com/deusflow/musicpulse/internal/logger"
)

type runReporter interface {
	LastRun() *app.RunStatus
}

func monitoringHandler(runs runReporter) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		healthHandler(w, r, runs)
	})
	mux.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
		metricsHandler(w, r, runs)
	})
	return mux
}

func startMonitoringServer(ctx context.Context, addr string, runs runReporter) {
	srv := &http.Server{
		Addr:              addr,
		Handler:           monitoringHandler(runs),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("starting monitoring server", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("monitoring server error", "error", err)
	}
}

func healthHandler(w http.ResponseWriter, _ *http.Request, runs runReporter) {
	response := map[string]interface{}{"status": "ok"}

	if last := runs.LastRun(); last != nil {
		response["last_run"] = last.FinishedAt
		if last.Err != nil {
			response["status"] = "error"
			response["last_error"] = last.Err.Error()
		}
	} else {
		response["status"] = "waiting"
	}

	w.Header().Set("Content-Type", "application/json")
	if response["status"] == "error" {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(response)
}

func metricsHandler(w http.ResponseWriter, _ *http.Request, runs runReporter) {
	stats := map[string]interface{}{}
	if last := runs.LastRun(); last != nil && last.Err == nil {
		stats = last.Diagnostics.GetStats()
		stats["last_run"] = last.FinishedAt
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(stats)
}
