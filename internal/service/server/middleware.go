package server

import (
	"bytes"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/drivehit/gallery-sync/internal/domain"
	"github.com/drivehit/gallery-sync/internal/util/ratelimiter"
)

// maxBodyBytes bounds signed request bodies; payloads here are small JSON
const maxBodyBytes = 1 << 20

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gallery_http_requests_total",
			Help: "HTTP requests by method, route pattern and status",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gallery_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// LoggingMiddleware adds request logging and Prometheus request metrics
func LoggingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(rw, r)

			route := routePattern(r)
			httpRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rw.statusCode)).Inc()
			httpRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())

			logger.Debug("HTTP request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("remote_addr", r.RemoteAddr),
				zap.Int("status", rw.statusCode),
				zap.Int64("duration_ms", time.Since(start).Milliseconds()))
		})
	}
}

// RateLimitMiddleware enforces the per-identity request quota. Identity is
// the caller's email header when present, otherwise the client IP.
func (s *Server) RateLimitMiddleware(limiter *ratelimiter.Window) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity := requestIdentity(r)
			if !limiter.Allow(identity) {
				s.logger.Warn("request rate limited",
					zap.String("identity", identity),
					zap.String("path", r.URL.Path))
				s.writeError(w, domain.ErrRateLimited)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// AuthMiddleware verifies the HMAC signature on mutating and admin requests.
// The body is buffered because it is part of the canonical string; handlers
// downstream re-read it from the restored reader.
func (s *Server) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
		if err != nil {
			s.writeError(w, domain.ErrInvalidInput)
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(body))

		if err := VerifyRequest(r, body, s.config.Secret, s.config.Freshness, time.Now()); err != nil {
			s.logger.Warn("request authentication failed",
				zap.String("path", r.URL.Path),
				zap.String("remote_addr", r.RemoteAddr),
				zap.Error(err))
			s.writeError(w, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// AdminMiddleware restricts a route to identities on the admin allow-list.
// It runs after AuthMiddleware, so the email header is signed.
func (s *Server) AdminMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		email := r.Header.Get(HeaderUserEmail)
		if email == "" || !s.isAdmin(email) {
			s.logger.Warn("admin access denied",
				zap.String("email", email),
				zap.String("path", r.URL.Path))
			s.writeError(w, domain.ErrNotAdmin)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) isAdmin(email string) bool {
	for _, admin := range s.config.AdminEmails {
		if admin == email {
			return true
		}
	}
	return false
}

// routePattern labels metrics by chi route pattern instead of the raw path,
// keeping label cardinality bounded
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return r.URL.Path
}

// requestIdentity returns the quota key for a request
func requestIdentity(r *http.Request) string {
	if email := r.Header.Get(HeaderUserEmail); email != "" {
		return email
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
