// Portico - Company Intranet Portal
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portico

package query

import (
	"reflect"
	"testing"
)

func TestWhereBuilder_Empty(t *testing.T) {
	wb := NewWhereBuilder()

	if !wb.IsEmpty() {
		t.Error("Expected new builder to be empty")
	}
	if wb.Count() != 0 {
		t.Errorf("Expected count 0, got %d", wb.Count())
	}

	whereClause, args := wb.Build()
	if whereClause != "1=1" {
		t.Errorf("Expected '1=1' for empty builder, got %q", whereClause)
	}
	if len(args) != 0 {
		t.Errorf("Expected 0 args, got %d", len(args))
	}

	prefixed, _ := wb.BuildWithPrefix()
	if prefixed != "" {
		t.Errorf("Expected empty prefix clause, got %q", prefixed)
	}
}

func TestWhereBuilder_AddEquals(t *testing.T) {
	tests := []struct {
		name      string
		value     any
		wantCount int
	}{
		{"zero int64 skipped", int64(0), 0},
		{"zero int skipped", 0, 0},
		{"empty string skipped", "", 0},
		{"nil skipped", nil, 0},
		{"int64 added", int64(7), 1},
		{"string added", "issued", 1},
		{"bool added", false, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wb := NewWhereBuilder().AddEquals("col", tt.value)
			if wb.Count() != tt.wantCount {
				t.Errorf("Count() = %d, want %d", wb.Count(), tt.wantCount)
			}
		})
	}
}

func TestWhereBuilder_AddIn(t *testing.T) {
	wb := NewWhereBuilder()
	AddIn(wb, "q.status", "accepted", "invoiced")
	AddIn[string](wb, "q.other")

	whereClause, args := wb.Build()
	if whereClause != "q.status IN (?, ?)" {
		t.Errorf("Build() = %q", whereClause)
	}
	if !reflect.DeepEqual(args, []any{"accepted", "invoiced"}) {
		t.Errorf("args = %v", args)
	}
}

func TestWhereBuilder_AddSearch(t *testing.T) {
	tests := []struct {
		name       string
		term       string
		exprs      []string
		wantClause string
		wantArgs   []any
	}{
		{
			name:       "blank term skipped",
			term:       "   ",
			exprs:      []string{"LOWER(name)"},
			wantClause: "1=1",
			wantArgs:   []any{},
		},
		{
			name:       "single expression",
			term:       "Acme",
			exprs:      []string{"LOWER(name)"},
			wantClause: `LOWER(name) LIKE ? ESCAPE '\'`,
			wantArgs:   []any{"%acme%"},
		},
		{
			name:       "several expressions are grouped",
			term:       "q-2026",
			exprs:      []string{"LOWER(a)", "LOWER(b)"},
			wantClause: `(LOWER(a) LIKE ? ESCAPE '\' OR LOWER(b) LIKE ? ESCAPE '\')`,
			wantArgs:   []any{"%q-2026%", "%q-2026%"},
		},
		{
			name:       "wildcards escaped",
			term:       "50%_off",
			exprs:      []string{"LOWER(title)"},
			wantClause: `LOWER(title) LIKE ? ESCAPE '\'`,
			wantArgs:   []any{`%50\%\_off%`},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wb := NewWhereBuilder().AddSearch(tt.term, tt.exprs...)
			clause, args := wb.Build()
			if clause != tt.wantClause {
				t.Errorf("clause = %q, want %q", clause, tt.wantClause)
			}
			if !reflect.DeepEqual(args, tt.wantArgs) {
				t.Errorf("args = %v, want %v", args, tt.wantArgs)
			}
		})
	}
}

func TestWhereBuilder_Combined(t *testing.T) {
	wb := NewWhereBuilder()
	wb.AddEquals("i.status", "paid")
	wb.AddEquals("i.customer_id", int64(3))
	wb.AddClause("i.total_cents > ?", 100)

	whereClause, args := wb.BuildWithPrefix()
	expected := " WHERE i.status = ? AND i.customer_id = ? AND i.total_cents > ?"
	if whereClause != expected {
		t.Errorf("Expected %q, got %q", expected, whereClause)
	}
	if len(args) != 3 {
		t.Errorf("Expected 3 args, got %d", len(args))
	}
}
