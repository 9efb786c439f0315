package httpserver

import (
	"net/http"
	"time"
)

// New builds the registry's HTTP server. Write timeout stays above the
// per-route handler timeout so slow handlers fail inside the middleware, not
// at the socket.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      35 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
