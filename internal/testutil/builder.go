// Package testutil builds CSV fixtures for tests.
package testutil

import (
	"strings"

	"github.com/stretchr/testify/require"
)

// TestingT is the part of *testing.T (and *rapid.T) the builder needs.
type TestingT interface {
	require.TestingT
	Helper()
}

// Builder accumulates a header and rows and renders them as CSV text,
// quoting whatever a trimming parser would otherwise alter.
type Builder struct {
	t         TestingT
	columns   []string
	rows      [][]string
	delimiter rune
	quote     rune
	lineEnd   string
}

// NewBuilder creates a builder with the given header columns.
func NewBuilder(t TestingT, columns ...string) *Builder {
	t.Helper()
	require.NotEmpty(t, columns, "a CSV fixture needs at least one column")
	return &Builder{
		t:         t,
		columns:   columns,
		delimiter: ',',
		quote:     '"',
		lineEnd:   "\n",
	}
}

// WithDelimiter sets the field delimiter.
func (b *Builder) WithDelimiter(r rune) *Builder {
	b.delimiter = r
	return b
}

// WithQuote sets the quote character. Quotes inside fields are doubled.
func (b *Builder) WithQuote(r rune) *Builder {
	b.quote = r
	return b
}

// WithCRLF ends lines with "\r\n".
func (b *Builder) WithCRLF() *Builder {
	b.lineEnd = "\r\n"
	return b
}

// WithRow adds a row; it must have one value per column.
func (b *Builder) WithRow(values ...string) *Builder {
	b.t.Helper()
	require.Len(b.t, values, len(b.columns), "row %d", len(b.rows)+1)
	b.rows = append(b.rows, values)
	return b
}

// Rows returns every row as a column-keyed map, in insertion order.
func (b *Builder) Rows() []map[string]string {
	out := make([]map[string]string, len(b.rows))
	for i, row := range b.rows {
		m := make(map[string]string, len(b.columns))
		for j, col := range b.columns {
			m[col] = row[j]
		}
		out[i] = m
	}
	return out
}

// Build renders the header and rows.
func (b *Builder) Build() string {
	var sb strings.Builder
	b.writeLine(&sb, b.columns)
	for _, row := range b.rows {
		b.writeLine(&sb, row)
	}
	return sb.String()
}

func (b *Builder) writeLine(sb *strings.Builder, fields []string) {
	for i, f := range fields {
		if i > 0 {
			sb.WriteRune(b.delimiter)
		}
		// A lone empty field would render as a blank line, which is skipped.
		if b.needsQuotes(f) || (len(fields) == 1 && f == "") {
			q := string(b.quote)
			sb.WriteString(q + strings.ReplaceAll(f, q, q+q) + q)
			continue
		}
		sb.WriteString(f)
	}
	sb.WriteString(b.lineEnd)
}

func (b *Builder) needsQuotes(f string) bool {
	if f == "" {
		return false
	}
	if strings.ContainsRune(f, b.delimiter) || strings.ContainsRune(f, b.quote) || strings.ContainsAny(f, "\r\n") {
		return true
	}
	// Surrounding whitespace is trimmed from unquoted fields.
	return strings.TrimSpace(f) != f
}
