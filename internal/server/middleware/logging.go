package middleware

import (
	"bufio"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// RequestIDHeader carries the id Logging assigns to each request.
const RequestIDHeader = "X-Request-ID"

// Logging tags each request with an id and logs it once it completes. Health
// probes go to debug. For the bridge socket the context kind is logged, and the
// line is written when the connection ends.
func Logging(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(RequestIDHeader)
			if id == "" {
				id = uuid.NewString()
			}
			w.Header().Set(RequestIDHeader, id)

			rec := &recorder{ResponseWriter: w, status: http.StatusOK}
			start := time.Now()
			next.ServeHTTP(rec, r)

			attrs := []slog.Attr{
				slog.String("request_id", id),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", rec.status),
				slog.Int("bytes", rec.written),
				slog.Duration("duration", time.Since(start)),
				slog.String("remote_addr", r.RemoteAddr),
			}
			if rec.hijacked {
				attrs = append(attrs, slog.String("kind", r.URL.Query().Get("kind")))
			}

			level := slog.LevelInfo
			switch {
			case r.URL.Path == "/api/health":
				level = slog.LevelDebug
			case rec.status >= http.StatusInternalServerError:
				level = slog.LevelWarn
			}
			logger.LogAttrs(r.Context(), level, "http request", attrs...)
		})
	}
}

// recorder captures status and size for the access log.
type recorder struct {
	http.ResponseWriter
	status   int
	written  int
	headerOK bool
	hijacked bool
}

func (rec *recorder) WriteHeader(code int) {
	if !rec.headerOK {
		rec.status = code
		rec.headerOK = true
	}
	rec.ResponseWriter.WriteHeader(code)
}

func (rec *recorder) Write(b []byte) (int, error) {
	rec.headerOK = true
	n, err := rec.ResponseWriter.Write(b)
	rec.written += n
	return n, err
}

// Hijack lets the WebSocket upgrade pass through.
func (rec *recorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := rec.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("middleware: response writer cannot hijack")
	}
	conn, rw, err := h.Hijack()
	if err == nil {
		rec.hijacked = true
		rec.status = http.StatusSwitchingProtocols
	}
	return conn, rw, err
}
