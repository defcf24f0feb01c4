package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/avkuzmin/techharvest/internal/ai"
	"github.com/avkuzmin/techharvest/internal/config"
	"github.com/avkuzmin/techharvest/internal/crawl"
	"github.com/avkuzmin/techharvest/internal/store"
)

// Server is the ops endpoint: health, crawl progress, and an optional AI
// summarization passthrough.
type Server struct {
	httpServer *http.Server
	store      store.DocumentStore
	stats      *crawl.Stats
	aiClient   *ai.Client
	logger     *slog.Logger
}

// NewServer wires the ops HTTP server. aiClient may be nil.
func NewServer(cfg *config.APIConfig, docStore store.DocumentStore, stats *crawl.Stats, aiClient *ai.Client, logger *slog.Logger) *Server {
	s := &Server{
		store:    docStore,
		stats:    stats,
		aiClient: aiClient,
		logger:   logger.With("component", "api"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("GET /ai", s.handleAI)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 180 * time.Second,
	}
	return s
}

// Start serves until the context is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("ops server listening", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	code := http.StatusOK
	if _, err := s.store.Count(r.Context()); err != nil {
		status = "store unavailable"
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]string{"status": status})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	count, err := s.store.Count(r.Context())
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"documents": count,
		"crawl":     s.stats.Snapshot(),
	})
}

func (s *Server) handleAI(w http.ResponseWriter, r *http.Request) {
	if s.aiClient == nil || !s.aiClient.Enabled() {
		writeJSON(w, http.StatusNotImplemented, map[string]string{"error": "ai is not configured"})
		return
	}

	prompt := r.URL.Query().Get("q")
	if prompt == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing q parameter"})
		return
	}

	answer, err := s.aiClient.Generate(r.Context(), prompt)
	if err != nil {
		s.logger.Error("ai generation failed", "error", err)
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"answer": answer})
}

func writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}
