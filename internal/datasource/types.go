package datasource

import "github.com/zjrosen/csvsource/internal/csvparse"

// Handle identifies one registered payload. Handles start at 1 and are never
// reused by the Registry that issued them.
type Handle int64

// ParserOptions carries per-registration parser overrides. A zero rune means
// "not supplied" and keeps the component-wide default.
type ParserOptions struct {
	Delimiter rune
	Quote     rune
	Escape    rune
	Comment   rune
}

// merge applies the supplied overrides on top of defaults.
func (o ParserOptions) merge(defaults csvparse.Options) csvparse.Options {
	merged := defaults
	if o.Delimiter != 0 {
		merged.Delimiter = o.Delimiter
	}
	if o.Quote != 0 {
		merged.Quote = o.Quote
		// An escape default that mirrored the old quote follows the new one.
		if o.Escape == 0 && defaults.Escape == defaults.Quote {
			merged.Escape = o.Quote
		}
	}
	if o.Escape != 0 {
		merged.Escape = o.Escape
	}
	if o.Comment != 0 {
		merged.Comment = o.Comment
	}
	return merged
}

// Operator names a filter comparison. Only OperatorEqual is supported.
type Operator string

const OperatorEqual Operator = "equal"

// Clause compares one attribute against a literal value.
type Clause struct {
	Attribute string   `json:"attribute" yaml:"attribute"`
	Operator  Operator `json:"operator" yaml:"operator"`
	Value     any      `json:"value" yaml:"value"`
}

// Filter is a disjunction of conjunctions: a row matches when every clause of
// at least one group matches.
type Filter [][]Clause

// OrderTerm is accepted in requests only to be rejected.
type OrderTerm struct {
	Attribute string `json:"attribute" yaml:"attribute"`
	Direction string `json:"direction,omitempty" yaml:"direction,omitempty"`
}

// Request describes one query against a registered payload.
type Request struct {
	Handle     Handle      `json:"handle" yaml:"handle"`
	Attributes []string    `json:"attributes" yaml:"attributes"`
	Filter     Filter      `json:"filter,omitempty" yaml:"filter,omitempty"`
	Page       *int        `json:"page,omitempty" yaml:"page,omitempty"`
	Limit      *int        `json:"limit,omitempty" yaml:"limit,omitempty"`
	Order      []OrderTerm `json:"order,omitempty" yaml:"order,omitempty"`
}

// Row is a projected result row. Present cells hold a string; attributes
// missing from the source row hold nil.
type Row map[string]any

// ResultSet is the normalized query result. TotalCount is never computed.
type ResultSet struct {
	TotalCount *int  `json:"totalCount" yaml:"totalCount"`
	Data       []Row `json:"data" yaml:"data"`
}

// Notice is the payload of a lifecycle event. Columns and Rows are set on
// parsed events, Err on parse failures. A released event with a zero Handle
// means the whole data source was closed.
type Notice struct {
	Instance string
	Handle   Handle
	Bytes    int
	Columns  int
	Rows     int
	Err      error
}
