// Package httpserver builds the *http.Server the service listens with.
package httpserver

import (
	"log/slog"
	"net/http"
	"time"
)

// New returns a server with bounded read, write and idle timeouts. Errors
// net/http would print on its own (TLS handshakes, panics in hijacked
// connections) go to logger at warn.
func New(addr string, handler http.Handler, logger *slog.Logger) *http.Server {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      45 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
	if logger != nil {
		srv.ErrorLog = slog.NewLogLogger(logger.Handler(), slog.LevelWarn)
	}
	return srv
}
