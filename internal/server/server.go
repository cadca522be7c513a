// Package server wraps the http.Server lifecycle: production timeouts,
// optional TLS and graceful shutdown.
package server

import (
	"context"
	"crypto/tls"
	"net"
	"net/http"
	"time"

	"email-router/internal/common/logging"
)

// Server is the HTTP front of the router.
type Server struct {
	srv     *http.Server
	tlsCert string
	tlsKey  string
}

// New builds a server listening on host:port. TLS is used when both the
// certificate and key files are set.
func New(handler http.Handler, host, port, tlsCert, tlsKey string) *Server {
	return &Server{
		srv: &http.Server{
			Addr:         net.JoinHostPort(host, port),
			Handler:      handler,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		tlsCert: tlsCert,
		tlsKey:  tlsKey,
	}
}

// Addr returns the listen address the server was built with.
func (s *Server) Addr() string {
	return s.srv.Addr
}

// Start serves in the background. The returned channel yields the terminal
// listen error, or nil after a graceful Shutdown.
func (s *Server) Start() <-chan error {
	errCh := make(chan error, 1)

	go func() {
		var err error
		if s.tlsCert != "" && s.tlsKey != "" {
			s.srv.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
			logging.Info("HTTPS server listening", logging.String("addr", s.srv.Addr))
			err = s.srv.ListenAndServeTLS(s.tlsCert, s.tlsKey)
		} else {
			logging.Info("HTTP server listening", logging.String("addr", s.srv.Addr))
			err = s.srv.ListenAndServe()
		}

		if err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	return errCh
}

// Shutdown stops accepting new requests and waits for in-flight ones until
// ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
