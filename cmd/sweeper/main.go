/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"transaction-core-go/internal/audit"
	"transaction-core-go/internal/common"
	"transaction-core-go/internal/config"
	"transaction-core-go/internal/sweeper"

	"go.uber.org/zap"
)

func main() {
	intervalFlag := flag.Duration("interval", 0, "Override sweep interval (default: SWEEPER_INTERVAL from config)")
	cutoffFlag := flag.Duration("cutoff", 0, "Override pending cutoff (default: SWEEPER_PENDING_CUTOFF from config)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		_, _ = zap.NewProduction()
		zap.L().Fatal("Failed to load configuration", zap.Error(err))
	}

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	zap.L().Info("Starting stuck-transaction sweeper")

	if *intervalFlag > 0 {
		cfg.Sweeper.Interval = *intervalFlag
	}
	if *cutoffFlag > 0 {
		cfg.Sweeper.PendingCutoff = *cutoffFlag
	}

	ledger, err := common.InitializeStoreOnly(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize ledger store", zap.Error(err))
	}
	defer ledger.Close()

	sink := audit.NewSink(cfg.Audit)
	defer sink.Close()

	s := sweeper.New(ledger, sink, cfg.Sweeper)
	s.Start(ctx)

	zap.L().Info("Sweeper running",
		zap.Duration("interval", cfg.Sweeper.Interval),
		zap.Duration("pending_cutoff", cfg.Sweeper.PendingCutoff))
	zap.L().Info("Press Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	zap.L().Info("Shutdown signal received, stopping sweeper...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()

	select {
	case <-done:
		zap.L().Info("Sweeper stopped gracefully")
	case <-shutdownCtx.Done():
		zap.L().Warn("Forced shutdown after timeout")
	}
}
