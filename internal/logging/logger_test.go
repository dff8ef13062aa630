// Portico - Company Intranet Portal
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portico

package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"INFO", zerolog.InfoLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"off", zerolog.Disabled},
		{"", zerolog.InfoLevel},
		{"nonsense", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := parseLevel(tt.in); got != tt.want {
				t.Errorf("parseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestCtx_AddsRequestFields(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "debug", Format: "json", Output: &buf})
	defer Init(DefaultConfig())

	ctx := ContextWithRequestID(context.Background(), "req-1")
	ctx = ContextWithUserID(ctx, 42)
	Ctx(ctx).Info().Msg("hello")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("unmarshal log line: %v (%s)", err, buf.String())
	}
	if entry["request_id"] != "req-1" {
		t.Errorf("request_id = %v, want req-1", entry["request_id"])
	}
	if entry["user_id"] != float64(42) {
		t.Errorf("user_id = %v, want 42", entry["user_id"])
	}
	if entry["message"] != "hello" {
		t.Errorf("message = %v, want hello", entry["message"])
	}
}

func TestSlogHandler_WritesThroughZerolog(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "info", Output: &buf})
	defer Init(DefaultConfig())

	logger := slog.New(NewSlogHandler()).WithGroup("svc").With("name", "hub")
	logger.Info("service started", "restarts", 2)
	logger.Debug("suppressed")

	out := buf.String()
	if strings.Contains(out, "suppressed") {
		t.Errorf("debug record written at info level: %s", out)
	}
	for _, want := range []string{`"svc.name":"hub"`, `"svc.restarts":2`, `"message":"service started"`} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %s: %s", want, out)
		}
	}
}

func TestSanitize(t *testing.T) {
	if got := SanitizeUsername("al\x00ice\n"); got != "alice" {
		t.Errorf("SanitizeUsername() = %q, want alice", got)
	}
	if got := SanitizeLogValue("a\r\nb"); got != "ab" {
		t.Errorf("SanitizeLogValue() = %q, want ab", got)
	}
	long := strings.Repeat("x", 300)
	if got := SanitizeLogValue(long); len(got) != 203 {
		t.Errorf("SanitizeLogValue(long) length = %d, want 203", len(got))
	}
}

func TestSecurityLogger_LoginFailed(t *testing.T) {
	var buf bytes.Buffer
	sl := NewSecurityLoggerWithLogger(NewTestLogger(&buf))
	sl.LoginFailed("bob", "10.0.0.1", "bad_password")

	out := buf.String()
	for _, want := range []string{`"component":"auth"`, `"status":"failed"`, `"reason":"bad_password"`} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %s: %s", want, out)
		}
	}
}

func TestInit_ServiceFields(t *testing.T) {
	tests := []struct {
		name   string
		format string
		want   bool
	}{
		{"json carries service fields", "json", true},
		{"console omits them", "console", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			Init(Config{Level: "info", Format: tt.format, Service: "portico", Environment: "staging", Output: &buf})
			defer Init(DefaultConfig())

			logger := WithComponent("backup")
			logger.Info().Msg("archive written")
			out := buf.String()
			if got := strings.Contains(out, "staging"); got != tt.want {
				t.Errorf("environment present = %v, want %v: %s", got, tt.want, out)
			}
			if !strings.Contains(out, "backup") {
				t.Errorf("component missing: %s", out)
			}
		})
	}
}
