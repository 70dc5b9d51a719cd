package api

import (
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/google/uuid"

	"github.com/contractd/contractd/pkg/httputil"
	"github.com/contractd/contractd/pkg/logging"
	"github.com/contractd/contractd/pkg/ratelimit"
)

// RequestIDHeader carries the request id. A valid incoming value is kept,
// otherwise a new one is generated; it is echoed on the response.
const RequestIDHeader = "X-Request-ID"

func (s *Server) withMiddleware(mux *http.ServeMux) http.Handler {
	var h http.Handler = mux
	h = ratelimit.Middleware(s.limiter, func(w http.ResponseWriter, r *http.Request) {
		s.log.InfoContext(r.Context(), "rate limit exceeded", "remote", r.RemoteAddr)
		httputil.WriteTooManyRequests(w)
	})(h)
	h = s.recoverer(h)
	h = s.accessLog(mux, h)
	h = requestID(h)
	return h
}

// requestID attaches a request id to the response and to the log context.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		w.Header().Set("X-Content-Type-Options", "nosniff")

		ctx := logging.WithAttrs(r.Context(), slog.String("request_id", id))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// accessLog logs one line per request and records request metrics. The
// route label is the matched mux pattern, so unknown paths share one series.
func (s *Server) accessLog(mux *http.ServeMux, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		elapsed := time.Since(start)
		route := "unmatched"
		if _, pattern := mux.Handler(r); pattern != "" {
			route = pattern
		}
		s.metrics.ObserveRequest(route, r.Method, rec.status, elapsed)
		s.log.InfoContext(r.Context(), "request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"bytes", rec.bytes,
			"duration", elapsed)
	})
}

// recoverer turns a panic into a 500 if nothing was written yet.
func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec, ok := w.(*statusRecorder)
		if !ok {
			rec = &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		}
		defer func() {
			if v := recover(); v != nil {
				if v == http.ErrAbortHandler {
					panic(v)
				}
				s.log.ErrorContext(r.Context(), "panic while handling request",
					"panic", v, "stack", string(debug.Stack()))
				if !rec.wroteHeader {
					httputil.WriteInternalError(rec)
				}
			}
		}()
		next.ServeHTTP(rec, r)
	})
}

// statusRecorder captures the status code and body size.
type statusRecorder struct {
	http.ResponseWriter
	status      int
	bytes       int
	wroteHeader bool
}

func (r *statusRecorder) WriteHeader(code int) {
	if r.wroteHeader {
		return
	}
	r.status = code
	r.wroteHeader = true
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if !r.wroteHeader {
		r.WriteHeader(http.StatusOK)
	}
	n, err := r.ResponseWriter.Write(b)
	r.bytes += n
	return n, err
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}
