package server

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"time"

	"pkt.systems/pslog"
)

// AccessLog logs one line per completed request. A websocket upgrade is
// logged when its hijacked connection closes, so the duration covers
// the whole session.
func AccessLog(logger pslog.Logger, next http.Handler) http.Handler {
	if logger == nil {
		logger = pslog.LoggerFromEnv()
	}
	if next == nil {
		next = http.DefaultServeMux
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &accessRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)

		status := rec.status
		if status == 0 {
			status = http.StatusOK
		}
		fields := []any{
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"bytes", rec.bytes,
			"duration", time.Since(start).String(),
			"ip", RealIP(r),
		}
		switch {
		case status >= http.StatusInternalServerError:
			logger.Error("request", fields...)
		case status >= http.StatusBadRequest:
			logger.Warn("request", fields...)
		default:
			logger.Info("request", fields...)
		}
	})
}

// accessRecorder captures the status and body size while passing Flush
// and Hijack through. Hijack must survive the wrapping or websocket
// upgrades behind AccessLog fail.
type accessRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (a *accessRecorder) WriteHeader(code int) {
	if a.status == 0 {
		a.status = code
	}
	a.ResponseWriter.WriteHeader(code)
}

func (a *accessRecorder) Write(p []byte) (int, error) {
	if a.status == 0 {
		a.status = http.StatusOK
	}
	n, err := a.ResponseWriter.Write(p)
	a.bytes += n
	return n, err
}

func (a *accessRecorder) Flush() {
	if f, ok := a.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (a *accessRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := a.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	return h.Hijack()
}
