// Package server exposes text generation over HTTP.
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
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"github.com/xupit3r/slm/internal/history"
	"github.com/xupit3r/slm/internal/inference"
	"github.com/xupit3r/slm/internal/llm"
	"github.com/xupit3r/slm/internal/logging"
)

const apiKeyHeader = "X-API-Key"

// Generator produces text for a prompt
type Generator interface {
	Generate(ctx context.Context, prompt string, opts llm.GenerateOptions) (*llm.Response, error)
}

// Options configures a Server
type Options struct {
	APIKey      string        // Expected X-API-Key; empty accepts any present key
	Development bool          // Skip API key checks
	CacheTTL    time.Duration // Zero disables the response cache
	Version     string
	Defaults    llm.GenerateOptions // Window, seed and stop settings for requests
}

// Server owns HTTP handlers and shared generation state
type Server struct {
	gen     Generator
	history *history.Store
	cache   *responseCache
	opts    Options
	log     *logrus.Entry
	now     func() time.Time
}

// New creates a server. hist may be nil to disable request history.
func New(gen Generator, hist *history.Store, opts Options) *Server {
	return &Server{
		gen:     gen,
		history: hist,
		cache:   newResponseCache(opts.CacheTTL),
		opts:    opts,
		log:     logging.For("server"),
		now:     time.Now,
	}
}

// Handler returns the routed handler with middleware applied
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/generate", s.handleGenerate)
	mux.HandleFunc("GET /api/health", s.handleHealth)
	return s.logRequests(s.requireAPIKey(mux))
}

// ListenAndServe serves on addr until ctx is cancelled
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.WithField("addr", addr).Info("server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.log.Info("shutting down server")
		return srv.Shutdown(shutdownCtx)
	}
}

// writeJSON is a helper to consistently send JSON responses
func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeProblem(w http.ResponseWriter, status int, title string, err error) {
	writeJSON(w, status, Problem{Title: title, Detail: err.Error(), Status: status})
}

// requireAPIKey rejects requests without a valid X-API-Key header.
// Health checks and development mode are exempt.
func (s *Server) requireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.opts.Development || r.URL.Path == "/api/health" || strings.HasPrefix(r.URL.Path, "/api/health/") {
			next.ServeHTTP(w, r)
			return
		}

		key, ok := r.Header[http.CanonicalHeaderKey(apiKeyHeader)]
		if !ok || len(key) == 0 {
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "API key is missing"})
			return
		}
		if s.opts.APIKey != "" && key[0] != s.opts.APIKey {
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "Invalid API key"})
			return
		}

		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.log.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   rec.status,
			"duration": time.Since(start),
		}).Debug("request")
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "Healthy",
		Timestamp: s.now().UTC(),
		Version:   s.opts.Version,
	})
}

func cacheKey(req GenerateRequest) string {
	return fmt.Sprintf("generate_%s_%d_%g_%g", req.Prompt, req.MaxLength, req.Temperature, req.TopP)
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	// Absent fields keep their defaults
	req := GenerateRequest{
		MaxLength:   s.opts.Defaults.MaxTokens,
		Temperature: s.opts.Defaults.Temperature,
		TopP:        s.opts.Defaults.TopP,
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if errors.Is(err, io.EOF) {
			err = errors.New("request body is empty")
		}
		writeProblem(w, http.StatusBadRequest, "Invalid request", err)
		return
	}

	key := cacheKey(req)
	if cached, ok := s.cache.get(key); ok {
		writeJSON(w, http.StatusOK, cached)
		return
	}

	opts := s.opts.Defaults
	opts.MaxTokens = req.MaxLength
	opts.Temperature = req.Temperature
	opts.TopP = req.TopP
	opts.IncludeTokens = req.IncludeTokens

	result, err := s.gen.Generate(r.Context(), req.Prompt, opts)
	if err != nil {
		s.log.WithError(err).Warn("generation failed")
		status := http.StatusInternalServerError
		if errors.Is(err, inference.ErrInvalidConfig) {
			status = http.StatusBadRequest
		}
		writeProblem(w, status, "Error generating text", err)
		return
	}

	elapsed := time.Since(start)
	resp := GenerateResponse{
		Prompt:        req.Prompt,
		GeneratedText: result.Text,
		Metadata: &GenerationMetadata{
			Timestamp:        s.now().UTC(),
			Temperature:      req.Temperature,
			TopP:             req.TopP,
			MaxLength:        req.MaxLength,
			GeneratedLength:  utf8.RuneCountInString(result.Text),
			ProcessingTimeMS: float64(elapsed.Microseconds()) / 1000.0,
			StopReason:       result.Reason.String(),
			Mode:             string(result.Mode),
			Model:            result.ModelID,
		},
	}
	if req.IncludeTokens {
		resp.Tokens = strings.Fields(result.Text)
	}

	s.cache.set(key, resp)
	s.record(r.Context(), req, result, elapsed)

	writeJSON(w, http.StatusOK, resp)
}

// record appends the request to the history log. Failures are logged only.
func (s *Server) record(ctx context.Context, req GenerateRequest, result *llm.Response, elapsed time.Duration) {
	if s.history == nil {
		return
	}

	_, err := s.history.Record(ctx, history.Entry{
		Source:      "server",
		Prompt:      req.Prompt,
		Output:      result.Text,
		Temperature: req.Temperature,
		TopP:        req.TopP,
		MaxLength:   req.MaxLength,
		StopReason:  result.Reason.String(),
		Steps:       result.Steps,
		Duration:    elapsed,
	})
	if err != nil {
		s.log.WithError(err).Warn("failed to record generation")
	}
}
