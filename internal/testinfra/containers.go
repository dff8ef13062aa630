// Portico - Company Intranet Portal
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portico

//go:build integration

package testinfra

import (
	"context"
	"os"
	"os/exec"
	"sync"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
)

// SkipContainersEnvVar disables container tests even when Docker is present.
const SkipContainersEnvVar = "PORTICO_SKIP_CONTAINERS"

var (
	dockerOnce      sync.Once
	dockerAvailable bool
)

// SkipIfNoDocker skips t when containers cannot be started.
func SkipIfNoDocker(t *testing.T) {
	t.Helper()
	if os.Getenv(SkipContainersEnvVar) != "" {
		t.Skipf("%s is set", SkipContainersEnvVar)
	}
	if !IsDockerAvailable() {
		t.Skip("docker daemon not reachable")
	}
}

// IsDockerAvailable runs `docker info` once per test binary.
func IsDockerAvailable() bool {
	dockerOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		dockerAvailable = exec.CommandContext(ctx, "docker", "info").Run() == nil
	})
	return dockerAvailable
}

// CleanupContainer terminates c, logging instead of failing so the test
// result reflects the code under test.
func CleanupContainer(t *testing.T, ctx context.Context, c testcontainers.Container) {
	t.Helper()
	if c == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := c.Terminate(ctx); err != nil {
		t.Logf("terminate container: %v", err)
	}
}
