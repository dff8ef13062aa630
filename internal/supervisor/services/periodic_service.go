// Portico - Company Intranet Portal
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portico

package services

import (
	"context"
	"errors"
	"time"

	"github.com/tomtom215/portico/internal/logging"
)

// Task is one run of a periodic job.
type Task func(ctx context.Context) error

// PeriodicService runs a task on a fixed interval. Task errors are logged
// and the next tick retries; they never restart the service, since a
// restart would only run the same task again.
type PeriodicService struct {
	name     string
	interval time.Duration
	task     Task

	// RunOnStart runs the task once before the first tick.
	RunOnStart bool
}

// NewPeriodicService returns a service that idles when interval <= 0.
func NewPeriodicService(name string, interval time.Duration, task Task) *PeriodicService {
	return &PeriodicService{name: name, interval: interval, task: task}
}

// Serve implements suture.Service.
func (p *PeriodicService) Serve(ctx context.Context) error {
	if p.interval <= 0 {
		logging.Info().Str("service", p.name).Msg("periodic task disabled")
		<-ctx.Done()
		return ctx.Err()
	}

	if p.RunOnStart {
		p.runOnce(ctx)
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.runOnce(ctx)
		}
	}
}

func (p *PeriodicService) runOnce(ctx context.Context) {
	start := time.Now()
	err := p.task(ctx)
	switch {
	case err == nil:
		logging.Debug().Str("service", p.name).Dur("took", time.Since(start)).Msg("periodic task finished")
	case errors.Is(err, context.Canceled):
	default:
		logging.Error().Err(err).Str("service", p.name).Msg("periodic task failed")
	}
}

func (p *PeriodicService) String() string {
	return p.name
}
