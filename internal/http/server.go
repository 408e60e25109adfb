// Package http exposes the ledger as a JSON API. Every read endpoint
// derives its answer from the full transaction history on request; nothing
// is cached or precomputed.
package http

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"tally/internal/log"
	"tally/internal/services"
)

type Server struct {
	http.Server
	ledger *services.LedgerService
	logger *log.Logger
}

// NewServer configures routes and returns a ready-to-run server.
func NewServer(addr string, ledger *services.LedgerService, logger *log.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		ledger: ledger,
		logger: logger.WithComponent(log.ComponentHTTP),
	}

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", handleReady)

	mux.HandleFunc("GET /api/accounts", s.withLogging(s.handleListAccounts))
	mux.HandleFunc("POST /api/accounts", s.withLogging(s.handleCreateAccount))
	mux.HandleFunc("DELETE /api/accounts/{id}", s.withLogging(s.handleArchiveAccount))

	mux.HandleFunc("POST /api/transactions", s.withLogging(s.handleCreateTransaction))
	mux.HandleFunc("DELETE /api/transactions/{id}", s.withLogging(s.handleDeleteTransaction))

	mux.HandleFunc("GET /api/summary", s.withLogging(s.handleSummary))

	mux.HandleFunc("GET /api/budgets", s.withLogging(s.handleListBudgets))
	mux.HandleFunc("POST /api/budgets", s.withLogging(s.handleCreateBudget))

	mux.HandleFunc("POST /api/categories", s.withLogging(s.handleCreateCategory))
	mux.HandleFunc("POST /api/recurring", s.withLogging(s.handleCreateRecurring))

	mux.HandleFunc("GET /api/rates", s.withLogging(s.handleGetRates))
	mux.HandleFunc("PUT /api/rates", s.withLogging(s.handlePutRates))

	return s
}

// withLogging tags each request with an id and logs start and completion.
func (s *Server) withLogging(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := generateRequestID()
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		s.logger.InfoContext(ctx, "request completed",
			"request_id", requestID,
			"method", r.Method,
			"url", r.URL.Path,
			"status", rw.statusCode,
			"duration_ms", time.Since(start).Milliseconds())
	}
}

type requestIDKey struct{}

// responseWriter captures the status code for the completion log line.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func generateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.ErrorContext(r.Context(), "response encoding failed",
			"url", r.URL.Path, log.FieldError, err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	s.writeJSON(w, r, status, map[string]string{"error": msg})
}

// decodeJSON reads a request body into dst, rejecting unknown fields so
// typos in the payload fail loudly instead of silently dropping data.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("decode request body: %w", err)
	}
	return nil
}
