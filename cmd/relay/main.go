package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/BioHazard786/liveclass/internal/config"
	"github.com/BioHazard786/liveclass/internal/logging"
	"github.com/BioHazard786/liveclass/internal/relay"
	"github.com/BioHazard786/liveclass/internal/server"
	"github.com/BioHazard786/liveclass/internal/version"
)

func main() {
	closeLog, err := logging.Init(slog.LevelInfo)
	if err != nil {
		slog.Error("logging setup failed", "error", err)
		os.Exit(1)
	}

	code := 0
	if err := run(); err != nil {
		slog.Error("relay stopped", "error", err)
		code = 1
	}
	closeLog()
	os.Exit(code)
}

func run() error {
	flags := pflag.NewFlagSet("relay", pflag.ExitOnError)
	flags.String(config.KeyAddr, "", "Listen address")
	flags.StringSlice(config.KeyAllowedOrigins, nil, "Browser origins accepted on /ws")
	flags.Int(config.KeyMaxRoomSize, 0, "Maximum members per room, 0 for no limit")
	flags.Int64(config.KeyReadLimit, 0, "Maximum inbound frame size in bytes")
	flags.String(config.KeyConfigFile, "", "Config file (yaml, json or toml)")
	flags.Parse(os.Args[1:])

	loader := config.NewLoader()
	if err := loader.BindFlags(flags); err != nil {
		return err
	}
	cfg, err := loader.LoadRelay()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The hub's select loop owns every room.
	hub := relay.NewHub(relay.WithMaxRoomSize(cfg.MaxRoomSize), relay.WithLogger(slog.Default()))
	hubDone := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(hubDone)
	}()

	srv := &http.Server{
		Addr: cfg.Addr,
		Handler: server.NewRouter(hub, server.Options{
			AllowedOrigins: cfg.AllowedOrigins,
			ReadLimit:      cfg.ReadLimit,
			Logger:         slog.Default(),
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("starting signaling relay", "addr", cfg.Addr, "version", version.Version)
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
	}

	slog.Info("shutting down signaling relay")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err = srv.Shutdown(shutdownCtx)
	stop()
	<-hubDone
	return err
}
