package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dmattli/go-exopticon/internal/config"
	"github.com/dmattli/go-exopticon/internal/db"
	"github.com/dmattli/go-exopticon/internal/logger"
	"github.com/dmattli/go-exopticon/internal/rootsup"
	"github.com/dmattli/go-exopticon/internal/wsapi"
)

func main() {
	cfg, err := parseFlags(os.Args[1:])
	if err != nil {
		os.Exit(2)
	}
	if cfg.showVersion {
		fmt.Println(version)
		return
	}

	logger.Init()
	if err := logger.SetLevel(cfg.logLevel); err != nil {
		fmt.Printf("warning: invalid log level %q, using default\n", cfg.logLevel)
	}
	log := logger.Logger().With("component", "cli")

	env, err := config.Load()
	if err != nil {
		log.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gw, err := db.Open(ctx, env.DatabaseURL, 4, log)
	if err != nil {
		log.Error("failed to open persistence gateway", "error", err)
		os.Exit(1)
	}
	defer gw.Close()

	mode := rootsup.ModeRun
	if cfg.standby {
		mode = rootsup.ModeStandby
	}
	root := rootsup.New(rootsup.Config{
		Mode:                mode,
		StorageRoot:         cfg.storageRoot,
		ExsnapPath:          cfg.exsnapPath,
		DecoderPath:         cfg.decoderPath,
		NotifierConcurrency: 10,
	}, gw, log)

	rootErrCh := make(chan error, 1)
	go func() { rootErrCh <- root.Run(ctx) }()

	mux := http.NewServeMux()
	mux.Handle("/v1/ws", wsapi.NewHandler(wsapi.ModeMsgPack, root.Bus(), root.Playback(), log.With("component", "wsapi")))
	mux.Handle("/v1/ws_json", wsapi.NewHandler(wsapi.ModeJSON, root.Bus(), root.Playback(), log.With("component", "wsapi")))

	httpServer := &http.Server{
		Addr:    cfg.listenAddr,
		Handler: mux,
	}

	go func() {
		log.Info("listening", "addr", cfg.listenAddr, "version", version, "standby", cfg.standby)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("http server error", "error", err)
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-rootErrCh:
		if err != nil {
			log.Error("root supervisor exited", "error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("http server shutdown error", "error", err)
	}
}
