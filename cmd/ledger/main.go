// Package main is the device command line of the offline billing ledger.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"fieldledger/internal/cli"
	"fieldledger/internal/config"
	"fieldledger/internal/core/apperror"
	"fieldledger/pkg/logger"
)

func main() {
	cfg := config.Load()

	log, err := logger.New(logger.Config{
		Level:       cfg.LogLevel,
		Development: cfg.IsDevelopment(),
		OutputPaths: []string{"stderr"},
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err = cli.Execute(ctx, cli.Options{Config: &cfg, Logger: log}, os.Args[1:])
	if err == nil {
		return
	}

	if appErr, ok := apperror.AsAppError(err); ok {
		fmt.Fprintf(os.Stderr, "%s: %s\n", appErr.Code, appErr.Message)
		for k, v := range appErr.Details {
			fmt.Fprintf(os.Stderr, "  %s: %v\n", k, v)
		}
	} else {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
	}
	stop()
	os.Exit(1)
}
