package database

import (
	"fmt"
	"strings"
)

// WhereBuilder accumulates AND-ed conditions with positional ($n) arguments.
type WhereBuilder struct {
	conditions []string
	args       []any
	argIndex   int
}

// NewWhereBuilder creates an empty builder whose first placeholder is $1.
func NewWhereBuilder() *WhereBuilder {
	return &WhereBuilder{argIndex: 1}
}

// Add appends "col = $n". Empty values are skipped so zero filters match all.
func (wb *WhereBuilder) Add(col, value string) {
	if value == "" {
		return
	}
	wb.AddCompare(col, "=", value)
}

// AddCompare appends "col op $n" unconditionally.
func (wb *WhereBuilder) AddCompare(col, op string, value any) {
	wb.conditions = append(wb.conditions, fmt.Sprintf("%s %s $%d", quoteIdentifier(col), op, wb.argIndex))
	wb.args = append(wb.args, value)
	wb.argIndex++
}

// NextArgIndex returns the placeholder number the next argument will get.
func (wb *WhereBuilder) NextArgIndex() int {
	return wb.argIndex
}

// Build returns " WHERE ..." and its arguments, or "" and nil when empty.
func (wb *WhereBuilder) Build() (string, []any) {
	if len(wb.conditions) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(wb.conditions, " AND "), wb.args
}

// quoteIdentifier safely quotes a SQL identifier.
func quoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
