package main

import (
	"errors"
	"flag"
	"os"
)

// version is injected at build time with -ldflags "-X main.version=...".
var version = "dev"

// cliConfig holds user-supplied flag values prior to translation into
// rootsup.Config.
type cliConfig struct {
	listenAddr  string
	standby     bool
	storageRoot string
	exsnapPath  string
	decoderPath string
	logLevel    string
	showVersion bool
}

func parseFlags(args []string) (*cliConfig, error) {
	fs := flag.NewFlagSet("exopticon-server", flag.ContinueOnError)
	fs.SetOutput(os.Stdout)

	cfg := &cliConfig{}
	fs.StringVar(&cfg.listenAddr, "listen", ":3000", "HTTP/websocket listen address")
	fs.BoolVar(&cfg.standby, "standby", false, "Start in standby mode: skip capture and storage reaping")
	fs.StringVar(&cfg.storageRoot, "storage-root", "/var/lib/exopticon", "Root directory under which camera groups store video files")
	fs.StringVar(&cfg.exsnapPath, "exsnap", "exsnap", "Path to the capture subprocess binary")
	fs.StringVar(&cfg.decoderPath, "decoder", "exopticon-decoder", "Path to the playback decoder subprocess binary")
	fs.StringVar(&cfg.logLevel, "log-level", "info", "Log level: debug|info|warn|error")
	fs.BoolVar(&cfg.showVersion, "version", false, "Print version and exit")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	switch cfg.logLevel {
	case "debug", "info", "warn", "error":
	default:
		return nil, errors.New("invalid -log-level: " + cfg.logLevel)
	}

	return cfg, nil
}
