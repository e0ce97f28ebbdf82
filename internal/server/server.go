// Package server exposes the ranking engine over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/spigell/grant-ranker/internal/logger"
	"github.com/spigell/grant-ranker/internal/matching"
	"github.com/spigell/grant-ranker/internal/metrics"
	"github.com/spigell/grant-ranker/internal/opportunity"
)

const (
	defaultMaxOpportunities = 5000
	defaultRankTimeout      = 30 * time.Second
	maxBodyBytes            = 32 << 20
)

// Config holds the HTTP transport settings.
type Config struct {
	Addr             string        `mapstructure:"addr"`
	APIKeys          []string      `mapstructure:"api-keys"`
	RankTimeout      time.Duration `mapstructure:"rank-timeout"`
	MaxOpportunities int           `mapstructure:"max-opportunities"`
	ShutdownTimeout  time.Duration `mapstructure:"shutdown-timeout"`
}

func DefaultConfig() Config {
	return Config{
		Addr:             ":8080",
		RankTimeout:      defaultRankTimeout,
		MaxOpportunities: defaultMaxOpportunities,
		ShutdownTimeout:  10 * time.Second,
	}
}

// Invalidator drops cached profiles on profile-update events.
type Invalidator interface {
	Invalidate(orgID string)
}

// Server holds the HTTP handlers.
type Server struct {
	ranker      *matching.Ranker
	invalidator Invalidator
	cfg         Config
	logger      *zap.Logger
}

func New(ranker *matching.Ranker, invalidator Invalidator, cfg Config, log *zap.Logger) *Server {
	if cfg.RankTimeout <= 0 {
		cfg.RankTimeout = defaultRankTimeout
	}
	if cfg.MaxOpportunities <= 0 {
		cfg.MaxOpportunities = defaultMaxOpportunities
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{ranker: ranker, invalidator: invalidator, cfg: cfg, logger: log}
}

// Router builds the chi router with all middleware and routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(jsonRecoverer(s.logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(requestLogMiddleware(s.logger))
	r.Use(BearerAuthMiddleware(s.cfg.APIKeys))
	r.Use(metrics.Middleware())

	r.Get("/healthz", s.health)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/organizations/{orgID}/rankings", s.rank)
		r.Post("/organizations/{orgID}/profile-events", s.profileEvent)
		r.Post("/explanations", s.explain)
	})

	return r
}

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", zap.String("addr", s.cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("received shutdown signal")
	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	s.logger.Info("server stopped gracefully")
	return nil
}

type rankRequest struct {
	Opportunities   []opportunity.FundingOpportunity `json:"opportunities"`
	IncludeFiltered bool                             `json:"include_filtered"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type profileEvent struct {
	Type string `json:"type"`
}

func (s *Server) rank(w http.ResponseWriter, r *http.Request) {
	orgID := strings.TrimSpace(chi.URLParam(r, "orgID"))
	if orgID == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "organization id is required")
		return
	}

	var req rankRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid request body: "+err.Error())
		return
	}
	if len(req.Opportunities) > s.cfg.MaxOpportunities {
		writeError(w, http.StatusBadRequest, "validation_failed",
			fmt.Sprintf("at most %d opportunities per request", s.cfg.MaxOpportunities))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.RankTimeout)
	defer cancel()

	batch, err := s.ranker.Rank(ctx, orgID, req.Opportunities, matching.RankOptions{IncludeFiltered: req.IncludeFiltered})
	if err != nil && batch == nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
		return
	}
	if err != nil {
		logger.WithBatch(s.logger, orgID, batch.ID).Warn("returning partial ranking", zap.Error(err))
	}

	writeJSON(w, http.StatusOK, batch)
}

func (s *Server) explain(w http.ResponseWriter, r *http.Request) {
	var result matching.MatchResult
	if err := decodeBody(w, r, &result); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid request body: "+err.Error())
		return
	}
	if result.OpportunityID == "" {
		writeError(w, http.StatusBadRequest, "validation_failed", "opportunity_id is required")
		return
	}

	writeJSON(w, http.StatusOK, matching.Explain(result))
}

func (s *Server) profileEvent(w http.ResponseWriter, r *http.Request) {
	orgID := strings.TrimSpace(chi.URLParam(r, "orgID"))
	if orgID == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "organization id is required")
		return
	}

	// The event body is optional, and its length may be unknown.
	var event profileEvent
	if err := decodeBody(w, r, &event); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid request body: "+err.Error())
		return
	}

	if s.invalidator != nil {
		s.invalidator.Invalidate(orgID)
	}
	s.logger.Info("profile event received",
		zap.String(logger.FieldOrganization, orgID),
		zap.String("type", event.Type),
	)

	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func decodeBody(w http.ResponseWriter, r *http.Request, target any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	return dec.Decode(target)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}
