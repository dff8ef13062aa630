// Portico - Company Intranet Portal
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portico

package auth

import (
	"errors"
	"strings"
	"testing"
)

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("correct horse")
	if err != nil {
		t.Fatal(err)
	}
	if !CheckPassword(hash, "correct horse") {
		t.Error("matching password rejected")
	}
	if CheckPassword(hash, "battery staple") {
		t.Error("wrong password accepted")
	}
	if CheckPassword("", "correct horse") {
		t.Error("empty hash accepted")
	}
	if _, err := HashPassword(strings.Repeat("a", 73)); err == nil {
		t.Error("expected error above 72 bytes")
	}
}

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
		min      int
		tooShort bool
		wantErr  bool
	}{
		{"long enough", "abcdefgh", 8, false, false},
		{"too short", "abc", 8, true, true},
		{"runes counted not bytes", "åäöåäöåä", 8, false, false},
		{"default minimum", "abcdefg", 0, true, true},
		{"over bcrypt limit", strings.Repeat("x", 80), 8, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePassword(tt.password, tt.min)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if errors.Is(err, ErrPasswordTooShort) != tt.tooShort {
				t.Errorf("ErrPasswordTooShort match = %v", !tt.tooShort)
			}
		})
	}
}

func TestGenerateInviteCode(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		code, err := GenerateInviteCode()
		if err != nil {
			t.Fatal(err)
		}
		if len(code) != 20 || strings.ContainsAny(code, "=") {
			t.Fatalf("unexpected code %q", code)
		}
		if seen[code] {
			t.Fatalf("duplicate code %q", code)
		}
		seen[code] = true
	}
}
