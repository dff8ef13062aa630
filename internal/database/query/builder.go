// Portico - Company Intranet Portal
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portico

package query

import (
	"strings"
)

// WhereBuilder collects AND-joined conditions with ? placeholders.
//
// Example usage:
//
//	wb := query.NewWhereBuilder()
//	wb.AddIn("q.status", "accepted", "invoiced")
//	wb.AddSearch("overdue", "LOWER(q.title)", "LOWER(c.name)")
//	where, args := wb.BuildWithPrefix()
//	// WHERE q.status IN (?, ?) AND (LOWER(q.title) LIKE ? OR LOWER(c.name) LIKE ?)
type WhereBuilder struct {
	clauses []string
	args    []any
}

// NewWhereBuilder creates a new WhereBuilder instance.
func NewWhereBuilder() *WhereBuilder {
	return &WhereBuilder{
		clauses: []string{},
		args:    []any{},
	}
}

// AddClause adds a raw condition with its arguments.
func (wb *WhereBuilder) AddClause(clause string, args ...any) *WhereBuilder {
	wb.clauses = append(wb.clauses, clause)
	wb.args = append(wb.args, args...)
	return wb
}

// AddEquals adds "column = ?" unless value is the zero value of its type
// (0, "" or nil), which means "no filter" throughout the API.
func (wb *WhereBuilder) AddEquals(column string, value any) *WhereBuilder {
	switch v := value.(type) {
	case nil:
		return wb
	case int64:
		if v == 0 {
			return wb
		}
	case int:
		if v == 0 {
			return wb
		}
	case string:
		if v == "" {
			return wb
		}
	}
	return wb.AddClause(column+" = ?", value)
}

// AddIn adds "column IN (?, ...)". An empty list is skipped.
func AddIn[T any](wb *WhereBuilder, column string, values ...T) *WhereBuilder {
	if len(values) == 0 {
		return wb
	}
	placeholders := make([]string, len(values))
	for i, v := range values {
		placeholders[i] = "?"
		wb.args = append(wb.args, v)
	}
	wb.clauses = append(wb.clauses, column+" IN ("+strings.Join(placeholders, ", ")+")")
	return wb
}

// AddSearch adds a case-insensitive substring match over expressions, which
// must already be lower-cased (for example "LOWER(name)"). A blank term is
// skipped.
func (wb *WhereBuilder) AddSearch(term string, exprs ...string) *WhereBuilder {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" || len(exprs) == 0 {
		return wb
	}
	pattern := "%" + escapeLike(term) + "%"
	parts := make([]string, len(exprs))
	for i, e := range exprs {
		parts[i] = e + ` LIKE ? ESCAPE '\'`
		wb.args = append(wb.args, pattern)
	}
	clause := strings.Join(parts, " OR ")
	if len(parts) > 1 {
		clause = "(" + clause + ")"
	}
	wb.clauses = append(wb.clauses, clause)
	return wb
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// Build returns the AND-joined conditions (without "WHERE") and their
// arguments. An empty builder yields "1=1".
func (wb *WhereBuilder) Build() (string, []any) {
	if len(wb.clauses) == 0 {
		return "1=1", []any{}
	}
	return strings.Join(wb.clauses, " AND "), wb.args
}

// BuildWithPrefix returns " WHERE ..." ready to append to a FROM clause, or
// an empty string when there are no conditions.
func (wb *WhereBuilder) BuildWithPrefix() (string, []any) {
	if len(wb.clauses) == 0 {
		return "", []any{}
	}
	where, args := wb.Build()
	return " WHERE " + where, args
}

// Count returns the number of conditions added.
func (wb *WhereBuilder) Count() int {
	return len(wb.clauses)
}

// IsEmpty returns true if no conditions have been added.
func (wb *WhereBuilder) IsEmpty() bool {
	return len(wb.clauses) == 0
}
