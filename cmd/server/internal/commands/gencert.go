package commands

import (
	"fmt"
	"time"

	"github.com/wolfeidau/filedrop/internal/certs"
	"github.com/wolfeidau/filedrop/internal/logger"
)

type GencertCmd struct {
	Key      string        `help:"where to write the PEM private key" default:"ec_key.pem" short:"k"`
	Cert     string        `help:"where to write the PEM certificate" default:"cert.pem" short:"c"`
	Hosts    []string      `help:"DNS names or IP addresses the certificate is valid for" default:"localhost,127.0.0.1"`
	ValidFor time.Duration `help:"certificate lifetime" default:"8760h"`
}

func (c *GencertCmd) Run(globals *Globals) error {
	log := logger.Setup(globals.Debug)

	pair, err := certs.GenerateSelfSigned(c.Hosts, c.ValidFor)
	if err != nil {
		return fmt.Errorf("failed to generate certificate: %w", err)
	}

	if err := pair.WriteFiles(certs.Config{CertPath: c.Cert, KeyPath: c.Key}); err != nil {
		return err
	}

	log.Info().Str("cert", c.Cert).Str("key", c.Key).Strs("hosts", c.Hosts).Msg("Wrote self-signed certificate")

	return nil
}
