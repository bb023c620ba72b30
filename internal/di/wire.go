// Package di provides dependency injection wiring and initialization.
package di

import (
	"context"
	"fmt"

	"github.com/aristath/tierledger/internal/config"
	"github.com/rs/zerolog"
)

// Wire opens the databases, builds the ledger service, registers background jobs
// and finally reads the simulated clock once, so a ledger whose clock cannot be
// loaded fails at startup instead of on the first request.
func Wire(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Container, *JobInstances, error) {
	// Step 1: Initialize databases
	container, err := InitializeDatabases(cfg, log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize databases: %w", err)
	}

	// Step 2: Initialize services
	if err := InitializeServices(ctx, container, cfg, log); err != nil {
		container.Close()
		return nil, nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	// Step 3: Register jobs
	jobs, err := RegisterJobs(container, cfg, log)
	if err != nil {
		container.Close()
		return nil, nil, fmt.Errorf("failed to register jobs: %w", err)
	}

	today, err := container.Service.Today(ctx)
	if err != nil {
		container.Close()
		return nil, nil, fmt.Errorf("failed to read simulated clock: %w", err)
	}

	log.Info().
		Str("today", today.Format(config.DateLayout)).
		Int("jobs", len(jobs.All())).
		Msg("Dependency injection wiring completed successfully")

	return container, jobs, nil
}
