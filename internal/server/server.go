// Package server runs the HTTPS file server: a TLS 1.3 only acceptor feeding
// an HTTP/1.1 keep-alive server that answers from the file table.
package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/wolfeidau/filedrop/internal/filetable"
	httpmiddleware "github.com/wolfeidau/filedrop/internal/http"
	"github.com/wolfeidau/filedrop/internal/logger"
	"github.com/wolfeidau/filedrop/internal/router"
	"github.com/wolfeidau/filedrop/internal/telemetry"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/net/netutil"
)

const shutdownTimeout = 5 * time.Second

// Config holds the listener and connection settings. Zero timeouts mean no
// limit and a zero MaxConns means unbounded, matching the behaviour of a
// server with no hardening applied.
type Config struct {
	Address   string
	TLSConfig *tls.Config

	MaxConns         int
	HandshakeTimeout time.Duration
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	IdleTimeout      time.Duration

	// Tracing wraps the handler with OpenTelemetry HTTP instrumentation.
	Tracing bool
}

type Server struct {
	cfg        Config
	logger     zerolog.Logger
	metrics    *telemetry.Metrics
	httpServer *http.Server
	acceptor   *Acceptor

	// conns maps each served net.Conn to its *connRecord
	conns sync.Map
}

// New builds a server answering from table. Nothing is bound until Listen.
func New(cfg Config, table *filetable.Table, log zerolog.Logger) *Server {
	s := &Server{
		cfg:     cfg,
		logger:  log,
		metrics: telemetry.GetMetrics(),
	}

	var handler http.Handler = router.NewHandler(table)
	handler = countServed(handler)
	handler = httpmiddleware.RequestMetrics(s.metrics)(handler)
	handler = httpmiddleware.RequestLogger(log)(handler)
	if cfg.Tracing {
		handler = otelhttp.NewHandler(handler, "filedrop")
	}

	s.httpServer = configureHTTPServer(cfg, handler, log)
	s.httpServer.ConnContext = func(ctx context.Context, c net.Conn) context.Context {
		rec := &connRecord{id: uuid.NewString()}
		s.conns.Store(c, rec)
		return httpmiddleware.WithConnID(withConnRecord(ctx, rec), rec.id)
	}
	s.httpServer.ConnState = s.trackConnState

	return s
}

func configureHTTPServer(cfg Config, handler http.Handler, log zerolog.Logger) *http.Server {
	return &http.Server{
		Handler:        handler,
		ReadTimeout:    cfg.ReadTimeout,
		WriteTimeout:   cfg.WriteTimeout,
		IdleTimeout:    cfg.IdleTimeout,
		MaxHeaderBytes: 8 * 1024, // 8KiB
		ErrorLog:       logger.StdLogger(log, zerolog.WarnLevel),
		// a non-nil empty map keeps net/http from enabling HTTP/2
		TLSNextProto: map[string]func(*http.Server, *tls.Conn, http.Handler){},
	}
}

// Listen binds the configured address. Errors here are startup errors.
func (s *Server) Listen() error {
	if s.cfg.TLSConfig == nil {
		return errors.New("TLS config is required")
	}

	ln, err := net.Listen("tcp", s.cfg.Address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Address, err)
	}

	if s.cfg.MaxConns > 0 {
		ln = netutil.LimitListener(ln, s.cfg.MaxConns)
	}

	s.acceptor = NewAcceptor(ln, AcceptorConfig{
		TLSConfig:        s.cfg.TLSConfig,
		HandshakeTimeout: s.cfg.HandshakeTimeout,
		Logger:           s.logger,
		Metrics:          s.metrics,
	})

	return nil
}

// Addr returns the bound address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	if s.acceptor == nil {
		return nil
	}
	return s.acceptor.Addr()
}

// Serve runs the HTTP server until Shutdown is called. It returns nil after a
// clean shutdown.
func (s *Server) Serve() error {
	if s.acceptor == nil {
		return ErrNotListening
	}

	s.logger.Info().
		Str("addr", s.acceptor.Addr().String()).
		Int("max_conns", s.cfg.MaxConns).
		Msg("Serving HTTPS")

	err := s.httpServer.Serve(s.acceptor)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops accepting, aborts pending handshakes and waits for active
// connections to go idle.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	if s.acceptor != nil {
		_ = s.acceptor.Close()
		s.acceptor.Wait()
	}
	return err
}

// Run binds, serves and shuts down when ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.Serve()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := s.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	return <-errCh
}

// trackConnState runs on the connection's own goroutine, so the record's
// state fields need no locking.
func (s *Server) trackConnState(c net.Conn, state http.ConnState) {
	log := s.logger.With().Str("remote_addr", c.RemoteAddr().String()).Logger()

	var rec *connRecord
	if v, ok := s.conns.Load(c); ok {
		rec = v.(*connRecord)
		log = log.With().Str("conn_id", rec.id).Logger()
	}

	switch state {
	case http.StateNew:
		s.metrics.ActiveConnections.Add(context.Background(), 1)
		log.Debug().Msg("Connection opened")
	case http.StateClosed, http.StateHijacked:
		s.metrics.ActiveConnections.Add(context.Background(), -1)
		s.conns.Delete(c)
		s.reportClose(log, c, rec)
		log.Debug().Msg("Connection closed")
	}

	if rec != nil {
		if state == http.StateActive && rec.last != http.StateActive {
			rec.servedAtActive = rec.served.Load()
		}
		rec.last = state
	}
}

// reportClose warns about connections that ended on an I/O error or that read
// request bytes without a request ever reaching the handler, such as a
// malformed request answered with 400 by net/http.
func (s *Server) reportClose(log zerolog.Logger, c net.Conn, rec *connRecord) {
	if err := ioError(c); err != nil {
		log.Warn().Err(err).Msg("Connection closed on I/O error")
		return
	}

	if rec != nil && rec.last == http.StateActive && rec.served.Load() == rec.servedAtActive {
		log.Warn().Int64("requests", rec.served.Load()).Msg("Connection closed before the request was served")
	}
}
