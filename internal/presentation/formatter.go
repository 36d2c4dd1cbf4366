// Package presentation prints query results for the command line.
package presentation

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/zjrosen/csvsource/internal/datasource"
)

// Output formats.
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// Formatter handles output formatting
type Formatter struct {
	writer io.Writer
	format string
	indent int
}

// NewFormatter creates a formatter writing format ("json" or "yaml") to writer.
// An empty format means JSON.
func NewFormatter(writer io.Writer, format string, indent int) (*Formatter, error) {
	switch format {
	case "":
		format = FormatJSON
	case FormatJSON, FormatYAML:
	default:
		return nil, fmt.Errorf("unsupported output format %q (valid: json, yaml)", format)
	}
	return &Formatter{writer: writer, format: format, indent: indent}, nil
}

// FormatResult prints rs with row keys in attribute order.
func (f *Formatter) FormatResult(rs *datasource.ResultSet, attributes []string) error {
	return f.encode(FromResultSet(rs, attributes))
}

// FormatColumns prints the header columns of a payload.
func (f *Formatter) FormatColumns(columns []string) error {
	return f.encode(columns)
}

func (f *Formatter) encode(v any) error {
	if f.format == FormatYAML {
		encoder := yaml.NewEncoder(f.writer)
		if f.indent > 0 {
			encoder.SetIndent(f.indent)
		}
		if err := encoder.Encode(v); err != nil {
			return fmt.Errorf("encoding yaml: %w", err)
		}
		return encoder.Close()
	}

	encoder := json.NewEncoder(f.writer)
	encoder.SetIndent("", strings.Repeat(" ", f.indent))
	if err := encoder.Encode(v); err != nil {
		return fmt.Errorf("encoding json: %w", err)
	}
	return nil
}
