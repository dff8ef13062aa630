// Portico - Company Intranet Portal
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portico

package logging

import (
	"strings"
	"time"
	"unicode"

	"github.com/rs/zerolog"
)

// SecurityLogger writes authentication events with the component field set
// to "auth". Usernames and user agents are sanitized before they are logged.
type SecurityLogger struct {
	logger zerolog.Logger
}

// NewSecurityLogger uses the global logger.
func NewSecurityLogger() *SecurityLogger {
	return &SecurityLogger{logger: WithComponent("auth")}
}

// NewSecurityLoggerWithLogger is used by tests to capture output.
//
//nolint:gocritic // zerolog.Logger is passed by value by design of the library
func NewSecurityLoggerWithLogger(l zerolog.Logger) *SecurityLogger {
	return &SecurityLogger{logger: l.With().Str("component", "auth").Logger()}
}

func (s *SecurityLogger) LoginSucceeded(username, ip string) {
	s.logger.Info().
		Str("event", "login").
		Str("status", "success").
		Str("username", SanitizeUsername(username)).
		Str("ip", ip).
		Msg("")
}

func (s *SecurityLogger) LoginFailed(username, ip, reason string) {
	s.logger.Warn().
		Str("event", "login").
		Str("status", "failed").
		Str("username", SanitizeUsername(username)).
		Str("ip", ip).
		Str("reason", reason).
		Msg("")
}

func (s *SecurityLogger) AccountLocked(subject string, remaining time.Duration) {
	s.logger.Warn().
		Str("event", "lockout").
		Str("subject", SanitizeUsername(subject)).
		Dur("remaining", remaining).
		Msg("")
}

func (s *SecurityLogger) Logout(username string) {
	s.logger.Info().
		Str("event", "logout").
		Str("username", SanitizeUsername(username)).
		Msg("")
}

// Registered logs a self-registration. viaInvite distinguishes immediate
// activation from a pending approval request.
func (s *SecurityLogger) Registered(username string, viaInvite bool) {
	s.logger.Info().
		Str("event", "register").
		Str("username", SanitizeUsername(username)).
		Bool("invite", viaInvite).
		Msg("")
}

// SanitizeUsername strips control characters and caps the length at 64.
func SanitizeUsername(username string) string {
	clean := strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, username)
	return truncate(clean, 64)
}

// SanitizeLogValue removes newlines so user input cannot forge log lines.
func SanitizeLogValue(v string) string {
	v = strings.ReplaceAll(v, "\n", "")
	v = strings.ReplaceAll(v, "\r", "")
	return truncate(v, 200)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
