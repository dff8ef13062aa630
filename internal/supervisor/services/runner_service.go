// Portico - Company Intranet Portal
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portico

package services

import (
	"context"
)

// ContextRunner is a component that blocks in RunWithContext until ctx is
// canceled. The WebSocket hub, the event forwarder and the backup scheduler
// all have this shape.
type ContextRunner interface {
	RunWithContext(ctx context.Context) error
}

// RunnerService adapts a ContextRunner to suture.Service under a fixed name.
type RunnerService struct {
	runner ContextRunner
	name   string
}

func NewRunnerService(name string, runner ContextRunner) *RunnerService {
	return &RunnerService{runner: runner, name: name}
}

// NewWebSocketHubService names the hub the way supervisor logs expect.
func NewWebSocketHubService(hub ContextRunner) *RunnerService {
	return NewRunnerService("websocket-hub", hub)
}

// NewEventForwarderService wraps the bus-to-hub event forwarder.
func NewEventForwarderService(fwd ContextRunner) *RunnerService {
	return NewRunnerService("event-forwarder", fwd)
}

// NewBackupSchedulerService wraps the scheduled backup loop.
func NewBackupSchedulerService(s ContextRunner) *RunnerService {
	return NewRunnerService("backup-scheduler", s)
}

// Serve implements suture.Service.
func (s *RunnerService) Serve(ctx context.Context) error {
	return s.runner.RunWithContext(ctx)
}

func (s *RunnerService) String() string {
	return s.name
}
