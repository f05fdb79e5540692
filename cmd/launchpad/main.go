// ====================================
// File: cmd/launchpad/main.go
// ====================================
package main

import (
	"context"
	"os"

	"go.uber.org/zap"

	"github.com/rovshanmuradov/launchpad-engine/internal/logger"
	"github.com/rovshanmuradov/launchpad-engine/internal/runner"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log, err := logger.New(nil)
	if err != nil {
		os.Exit(1)
	}
	defer log.Sync()
	log.Info("Starting launchpad engine")

	r := runner.NewRunner(log)
	if err := r.Initialize(ctx, "configs/config.json"); err != nil {
		log.Fatal("Failed to initialize engine", zap.Error(err))
	}

	if err := r.Run(ctx); err != nil {
		log.Fatal("Engine execution error", zap.Error(err))
	}
}
