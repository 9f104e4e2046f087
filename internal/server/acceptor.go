package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"
	"github.com/wolfeidau/filedrop/internal/telemetry"
)

var _ net.Listener = (*Acceptor)(nil)

// Acceptor is a net.Listener that only hands out connections which have
// completed a TLS 1.3 handshake.
//
// Raw connections are accepted by a single loop and each handshake runs in its
// own goroutine, so a slow or hostile client never holds up other accepts.
// Failed handshakes are logged and the connection is dropped.
type Acceptor struct {
	inner            net.Listener
	tlsConfig        *tls.Config
	handshakeTimeout time.Duration
	logger           zerolog.Logger
	metrics          *telemetry.Metrics

	conns  chan *tls.Conn
	ctx    context.Context
	cancel context.CancelFunc

	closeOnce sync.Once
	done      chan struct{}
	err       error

	handshakes sync.WaitGroup
}

// AcceptorConfig configures an Acceptor.
type AcceptorConfig struct {
	TLSConfig *tls.Config
	// HandshakeTimeout bounds each handshake. Zero means no limit.
	HandshakeTimeout time.Duration
	Logger           zerolog.Logger
	Metrics          *telemetry.Metrics
}

// NewAcceptor starts accepting connections from inner.
func NewAcceptor(inner net.Listener, cfg AcceptorConfig) *Acceptor {
	ctx, cancel := context.WithCancel(context.Background())

	metrics := cfg.Metrics
	if metrics == nil {
		metrics = telemetry.GetMetrics()
	}

	a := &Acceptor{
		inner:            inner,
		tlsConfig:        cfg.TLSConfig,
		handshakeTimeout: cfg.HandshakeTimeout,
		logger:           cfg.Logger,
		metrics:          metrics,
		conns:            make(chan *tls.Conn),
		ctx:              ctx,
		cancel:           cancel,
		done:             make(chan struct{}),
	}

	go a.acceptLoop()

	return a
}

// Accept returns the next connection that completed its handshake.
func (a *Acceptor) Accept() (net.Conn, error) {
	select {
	case conn := <-a.conns:
		return conn, nil
	case <-a.done:
		return nil, a.err
	}
}

// Close stops the accept loop, aborts in flight handshakes and closes the
// underlying listener. Connections already handed out are not affected.
func (a *Acceptor) Close() error {
	return a.shutdown(net.ErrClosed)
}

func (a *Acceptor) Addr() net.Addr {
	return a.inner.Addr()
}

// Wait blocks until every in flight handshake goroutine has returned.
func (a *Acceptor) Wait() {
	a.handshakes.Wait()
}

func (a *Acceptor) shutdown(reason error) error {
	var err error
	a.closeOnce.Do(func() {
		a.err = reason
		close(a.done)
		a.cancel()
		err = a.inner.Close()
	})
	return err
}

func (a *Acceptor) acceptLoop() {
	retry := backoff.NewExponentialBackOff()
	retry.InitialInterval = 5 * time.Millisecond
	retry.MaxInterval = time.Second

	for {
		raw, err := a.inner.Accept()
		if err != nil {
			select {
			case <-a.done:
				return
			default:
			}

			if errors.Is(err, net.ErrClosed) {
				_ = a.shutdown(err)
				return
			}

			a.metrics.AcceptErrorsTotal.Add(a.ctx, 1)

			delay := retry.NextBackOff()
			if delay == backoff.Stop {
				delay = retry.MaxInterval
			}
			a.logger.Error().Err(err).Dur("retry_in", delay).Msg("Accept failed")

			select {
			case <-time.After(delay):
			case <-a.done:
				return
			}
			continue
		}

		retry.Reset()
		a.metrics.ConnectionsAcceptedTotal.Add(a.ctx, 1)

		a.handshakes.Add(1)
		go a.handshake(raw)
	}
}

func (a *Acceptor) handshake(raw net.Conn) {
	defer a.handshakes.Done()

	log := a.logger.With().Str("remote_addr", raw.RemoteAddr().String()).Logger()

	ctx := a.ctx
	if a.handshakeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.handshakeTimeout)
		defer cancel()
	}

	started := time.Now()
	conn := tls.Server(&ioErrConn{Conn: raw}, a.tlsConfig)

	if err := conn.HandshakeContext(ctx); err != nil {
		a.metrics.HandshakeErrorsTotal.Add(a.ctx, 1)
		log.Warn().Err(err).Msg("TLS handshake failed, client must support TLS 1.3")
		_ = conn.Close()
		return
	}

	state := conn.ConnectionState()
	if state.Version < tls.VersionTLS13 {
		a.metrics.HandshakeErrorsTotal.Add(a.ctx, 1)
		log.Warn().Err(fmt.Errorf("%w: %s", ErrProtocolVersion, tls.VersionName(state.Version))).
			Msg("TLS handshake rejected")
		_ = conn.Close()
		return
	}

	a.metrics.HandshakeDuration.Record(a.ctx, float64(time.Since(started))/float64(time.Millisecond))

	log.Debug().
		Str("tls_version", tls.VersionName(state.Version)).
		Str("cipher_suite", tls.CipherSuiteName(state.CipherSuite)).
		Str("server_name", state.ServerName).
		Str("alpn", state.NegotiatedProtocol).
		Dur("duration", time.Since(started)).
		Msg("TLS handshake complete")

	select {
	case a.conns <- conn:
	case <-a.done:
		_ = conn.Close()
	}
}
