// Package httpserver builds the process's single *http.Server.
package httpserver

import (
	"log/slog"
	"net/http"
	"time"

	"nfcattend/internal/platform/config"
)

const (
	readHeaderTimeout = 5 * time.Second
	readTimeout       = 15 * time.Second
	idleTimeout       = 60 * time.Second
	writeHeadroom     = 5 * time.Second
)

// New builds the server from the server config. Write timeouts sit above the
// per-request handler timeout so a timed out handler can still answer 504.
// net/http's internal errors go to logger at warn level.
func New(cfg config.Server, handler http.Handler, logger *slog.Logger) *http.Server {
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      cfg.RequestTimeout + writeHeadroom,
		IdleTimeout:       idleTimeout,
	}
	if logger != nil {
		srv.ErrorLog = slog.NewLogLogger(logger.Handler(), slog.LevelWarn)
	}
	return srv
}
