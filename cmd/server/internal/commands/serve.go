package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/wolfeidau/filedrop/internal/certs"
	"github.com/wolfeidau/filedrop/internal/filetable"
	"github.com/wolfeidau/filedrop/internal/logger"
	"github.com/wolfeidau/filedrop/internal/server"
	"github.com/wolfeidau/filedrop/internal/telemetry"
)

type ServeCmd struct {
	// TLS configuration
	Key  string `help:"path to the PEM private key file" default:"ec_key.pem" env:"FILEDROP_KEY" short:"k"`
	Cert string `help:"path to the PEM certificate chain file" default:"cert.pem" env:"FILEDROP_CERT" short:"c"`

	// Server configuration
	Address string `help:"HTTPS listen address" default:"0.0.0.0:8080" env:"FILEDROP_ADDRESS" short:"a"`
	Files   string `help:"directory of files to publish, read once at startup" default:"files" env:"FILEDROP_FILES"`

	// Hardening, all disabled by default
	MaxConns         int           `help:"maximum concurrent connections (0 for unlimited)" default:"0" env:"FILEDROP_MAX_CONNS"`
	HandshakeTimeout time.Duration `help:"TLS handshake timeout (0 for none)" default:"0s" env:"FILEDROP_HANDSHAKE_TIMEOUT"`
	ReadTimeout      time.Duration `help:"HTTP request read timeout (0 for none)" default:"0s" env:"FILEDROP_READ_TIMEOUT"`
	WriteTimeout     time.Duration `help:"HTTP response write timeout (0 for none)" default:"0s" env:"FILEDROP_WRITE_TIMEOUT"`
	IdleTimeout      time.Duration `help:"keep-alive idle timeout (0 for none)" default:"0s" env:"FILEDROP_IDLE_TIMEOUT"`

	// Telemetry, exporter endpoints come from OTEL_EXPORTER_OTLP_*
	Telemetry         bool          `help:"export metrics over OTLP" default:"false" env:"FILEDROP_TELEMETRY"`
	TelemetryTracing  bool          `help:"also export request traces, requires --telemetry" default:"false" env:"FILEDROP_TELEMETRY_TRACING"`
	TelemetryInterval time.Duration `help:"metric export interval" default:"10s" env:"FILEDROP_TELEMETRY_INTERVAL"`
}

func (c *ServeCmd) Run(globals *Globals) error {
	log := logger.Setup(globals.Debug)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info().Str("version", globals.Version).Bool("debug", globals.Debug).Msg("Starting server")

	if c.Telemetry {
		shutdown, err := telemetry.Init(ctx, log, telemetry.Config{
			ServiceName:    "filedrop",
			Version:        globals.Version,
			Tracing:        c.TelemetryTracing,
			ExportInterval: c.TelemetryInterval,
		})
		if err != nil {
			log.Warn().Err(err).Msg("Failed to initialize telemetry, continuing without metrics")
			shutdown = func(ctx context.Context) error { return nil }
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(shutdownCtx); err != nil {
				log.Error().Err(err).Msg("Failed to shutdown telemetry")
			}
		}()
	}

	table, err := filetable.Load(c.Files)
	if err != nil {
		return fmt.Errorf("failed to load files: %w", err)
	}
	log.Info().Str("dir", c.Files).Int("files", table.Len()).Int64("bytes", table.Size()).Msg("Loaded files")

	pair, err := certs.Load(certs.Config{CertPath: c.Cert, KeyPath: c.Key})
	if err != nil {
		return fmt.Errorf("failed to load TLS certificate: %w", err)
	}

	tlsConfig, err := pair.TLSConfig()
	if err != nil {
		return fmt.Errorf("failed to create TLS config: %w", err)
	}

	srv := server.New(server.Config{
		Address:          c.Address,
		TLSConfig:        tlsConfig,
		MaxConns:         c.MaxConns,
		HandshakeTimeout: c.HandshakeTimeout,
		ReadTimeout:      c.ReadTimeout,
		WriteTimeout:     c.WriteTimeout,
		IdleTimeout:      c.IdleTimeout,
		Tracing:          c.Telemetry && c.TelemetryTracing,
	}, table, log)

	return srv.Run(ctx)
}
