package main

import (
	"context"

	"github.com/alecthomas/kong"
	"github.com/wolfeidau/filedrop/cmd/server/internal/commands"
)

var (
	version = "dev"
	cli     struct {
		Debug   bool `help:"Enable debug mode." env:"FILEDROP_DEBUG"`
		Version kong.VersionFlag
		Serve   commands.ServeCmd   `cmd:"" default:"withargs" help:"Serve the files directory over HTTPS (TLS 1.3 only)"`
		Gencert commands.GencertCmd `cmd:"" help:"Generate a self-signed key and certificate for local use"`
	}
)

func main() {
	ctx := context.Background()
	cmd := kong.Parse(&cli,
		kong.Description("Publish a fixed set of files over HTTPS."),
		kong.Vars{
			"version": version,
		},
		kong.BindTo(ctx, (*context.Context)(nil)))
	err := cmd.Run(&commands.Globals{Debug: cli.Debug, Version: version})
	cmd.FatalIfErrorf(err)
}
