// Package http exposes the ledger over a JSON API.
package http

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"dcledger/internal/core"
	"dcledger/internal/export"
	"dcledger/internal/services"
	"dcledger/internal/storage"
)

// MovementLedger is the journal surface the handlers call.
type MovementLedger interface {
	RecordInward(ctx context.Context, e core.InwardEntry) (int64, error)
	RecordOutward(ctx context.Context, e core.OutwardEntry) (int64, error)
	Delete(ctx context.Context, dir core.Direction, id int64) error
	ListMovements(ctx context.Context, dir core.Direction, f storage.Filter) ([]core.Movement, error)
	Overview(ctx context.Context, f storage.Filter) ([]services.OverviewRow, error)
	ExportFailures(ctx context.Context) ([]core.Movement, error)
}

// MasterDirectory is the customer/item surface the handlers call.
type MasterDirectory interface {
	CreateCustomer(ctx context.Context, c core.Customer) (int64, error)
	ListCustomers(ctx context.Context) ([]core.Customer, error)
	DeleteCustomer(ctx context.Context, id int64) error
	CreateItem(ctx context.Context, i core.Item) (int64, error)
	ListItems(ctx context.Context) ([]core.Item, error)
	DeleteItem(ctx context.Context, id int64) error
}

// ArchiveReader lists monthly archives and streams them for download.
type ArchiveReader interface {
	export.Lister
	export.WorkbookOpener
}

type Server struct {
	http.Server
	ledger       MovementLedger
	masters      MasterDirectory
	archives     ArchiveReader
	rateLimiter  *rateLimiter
	shutdownOnce sync.Once
}

// NewServer configures routes and returns a ready-to-run server.
func NewServer(addr string, ledger MovementLedger, masters MasterDirectory, archives ArchiveReader) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		ledger:      ledger,
		masters:     masters,
		archives:    archives,
		rateLimiter: newRateLimiter(),
	}

	mux.HandleFunc("/healthz", handleHealth)
	mux.HandleFunc("/readyz", handleReady)

	mux.HandleFunc("/api/inward", s.withRequestContext(s.handleInward))
	mux.HandleFunc("/api/outward", s.withRequestContext(s.handleOutward))
	mux.HandleFunc("/api/movements", s.withRequestContext(s.handleMovements))
	mux.HandleFunc("/api/movements/", s.withRequestContext(s.handleMovementByID))
	mux.HandleFunc("/api/overview", s.withRequestContext(s.handleOverview))
	mux.HandleFunc("/api/archives", s.withRequestContext(s.handleArchives))
	mux.HandleFunc("/api/archives/", s.withRequestContext(s.handleArchiveDownload))
	mux.HandleFunc("/api/customers", s.withRequestContext(s.handleCustomers))
	mux.HandleFunc("/api/customers/", s.withRequestContext(s.handleCustomerByID))
	mux.HandleFunc("/api/items", s.withRequestContext(s.handleItems))
	mux.HandleFunc("/api/items/", s.withRequestContext(s.handleItemByID))
	mux.HandleFunc("/api/exports/failures", s.withRequestContext(s.handleExportFailures))

	return s
}

// Shutdown stops the rate limiter cleanup goroutine and drains the
// HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if s.rateLimiter != nil {
			s.rateLimiter.stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// withRequestContext adds security headers, rate limiting on writes,
// a request id, and request logging.
func (s *Server) withRequestContext(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		clientIP := r.Header.Get("X-Forwarded-For")
		if clientIP == "" {
			clientIP = r.Header.Get("X-Real-IP")
		}
		if clientIP == "" {
			clientIP = r.RemoteAddr
		}

		requestID := generateRequestID()
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		slog.InfoContext(ctx, "Request started",
			"request_id", requestID,
			"method", r.Method,
			"url", r.URL.Path,
			"client_ip", clientIP)

		if isWrite(r.Method) && !s.rateLimiter.allow(clientIP) {
			slog.WarnContext(ctx, "Rate limit exceeded", "client_ip", clientIP, "url", r.URL.Path)
			w.Header().Set("Retry-After", "60")
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		slog.InfoContext(ctx, "Request completed",
			"request_id", requestID,
			"method", r.Method,
			"url", r.URL.Path,
			"status", rw.statusCode,
			"duration_ms", time.Since(start).Milliseconds())
	}
}

type requestIDKey struct{}

func isWrite(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodDelete:
		return true
	}
	return false
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
