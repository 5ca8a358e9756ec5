package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"heartx/internal/platform/logging"
	"heartx/internal/relayserver"
)

func main() {
	configPath := pflag.String("config", "", "relay config file (YAML)")
	listen := pflag.String("listen", "", "listen address, overrides the config file")
	pflag.Parse()

	cfg, err := relayserver.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "relay:", err)
		os.Exit(1)
	}
	if *listen != "" {
		cfg.Listen = *listen
	}

	logger, err := logging.New(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Out: os.Stderr})
	if err != nil {
		fmt.Fprintln(os.Stderr, "relay:", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := relayserver.New(cfg, relayserver.WithLogger(logger)).Run(ctx); err != nil {
		logger.WithError(err).Fatal("relay stopped")
	}
	logger.Info("relay shut down")
}
