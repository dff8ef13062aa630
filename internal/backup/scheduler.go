// Portico - Company Intranet Portal
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portico

package backup

import (
	"context"
	"time"

	"github.com/tomtom215/portico/internal/logging"
)

// Scheduler creates a backup every interval and applies retention after
// each run.
type Scheduler struct {
	m          *Manager
	interval   time.Duration
	onComplete func(info *Info, err error)
}

// NewScheduler uses the manager's configured interval.
func NewScheduler(m *Manager) *Scheduler {
	return &Scheduler{m: m, interval: m.cfg.Interval}
}

// SetOnComplete registers a callback for every scheduled run. The server
// uses it to write an audit event.
func (s *Scheduler) SetOnComplete(fn func(info *Info, err error)) {
	s.onComplete = fn
}

// RunWithContext blocks until ctx is canceled. With a zero interval the
// scheduler is idle.
func (s *Scheduler) RunWithContext(ctx context.Context) error {
	if s.interval <= 0 {
		logging.Info().Msg("scheduled backups disabled")
		<-ctx.Done()
		return ctx.Err()
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	logging.Info().Dur("interval", s.interval).Str("dir", s.m.Dir()).Msg("backup scheduler started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.run(ctx)
		}
	}
}

func (s *Scheduler) run(ctx context.Context) {
	info, err := s.m.Create(ctx, TriggerScheduled)
	if err != nil {
		logging.Error().Err(err).Msg("scheduled backup failed")
	} else if _, perr := s.m.ApplyRetention(); perr != nil {
		logging.Error().Err(perr).Msg("backup retention failed")
	}
	if s.onComplete != nil {
		s.onComplete(info, err)
	}
}
