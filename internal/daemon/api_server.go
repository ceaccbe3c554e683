package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"log/slog"

	"fennec/internal/logging"
)

// serveAPI exposes the ingest status endpoints until ctx ends.
func (d *Daemon) serveAPI(ctx context.Context) error {
	bind := strings.TrimSpace(d.cfg.Paths.IngestBind)
	if bind == "" {
		<-ctx.Done()
		return ctx.Err()
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", d.handleStatus)
	mux.HandleFunc("/api/scan/progress", d.handleScanProgress)
	mux.HandleFunc("/api/queue", d.handleQueue)

	server := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	listener, err := net.Listen("tcp", bind)
	if err != nil {
		return err
	}
	d.log().Info("status api listening", slog.String("address", listener.Addr().String()))

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return ctx.Err()
}

func (d *Daemon) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		d.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	state, _ := d.store.IndexerState(r.Context())
	counts, err := d.store.QueueSnapshot(r.Context())
	if err != nil {
		d.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	d.writeJSON(w, http.StatusOK, map[string]any{
		"indexer_state": state,
		"queue":         counts,
		"models":        d.registry.Readiness(),
	})
}

func (d *Daemon) handleScanProgress(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		d.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	d.writeJSON(w, http.StatusOK, d.scanner.Progress())
}

func (d *Daemon) handleQueue(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		d.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	counts, err := d.store.QueueSnapshot(r.Context())
	if err != nil {
		d.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	current, err := d.store.CurrentProcessing(r.Context())
	if err != nil {
		d.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	d.writeJSON(w, http.StatusOK, map[string]any{
		"pending":    counts.Pending,
		"processing": counts.Processing,
		"complete":   counts.Complete,
		"failed":     counts.Failed,
		"current":    current,
	})
}

func (d *Daemon) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		d.log().Error("failed to encode response", slog.String("error", err.Error()))
	}
}

func (d *Daemon) writeError(w http.ResponseWriter, status int, message string) {
	d.writeJSON(w, status, map[string]string{"error": message})
}

func (d *Daemon) log() *slog.Logger {
	return logging.NewComponentLogger(d.logger, "api-server")
}
