// Package csvparse reads delimited text with a header row into records keyed by
// column name. Delimiter, quote, escape and comment characters are configurable;
// every cell stays text.
package csvparse

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

var (
	ErrQuoteNotClosed      = errors.New("quote not closed")
	ErrInvalidClosingQuote = errors.New("invalid closing quote")
	ErrBareQuote           = errors.New("bare quote in unquoted field")
	ErrFieldCount          = errors.New("wrong number of fields")
	ErrInvalidOptions      = errors.New("invalid parser options")
)

// ParseError reports the position of a malformed record.
type ParseError struct {
	Line   int // 1-based line where the error was detected
	Column int // 1-based rune column
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error on line %d, column %d: %v", e.Line, e.Column, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Options configures the reader. A zero rune selects the default for that field.
type Options struct {
	Delimiter rune
	Quote     rune
	Escape    rune // defaults to Quote, i.e. a doubled quote
	Comment   rune // 0 disables comments

	Trim           bool // trim spaces and tabs around unquoted fields and outside quotes
	SkipEmptyLines bool
}

// DefaultOptions returns comma-separated, double-quoted, trimmed parsing that
// skips blank lines.
func DefaultOptions() Options {
	return Options{
		Delimiter:      ',',
		Quote:          '"',
		Escape:         '"',
		Trim:           true,
		SkipEmptyLines: true,
	}
}

func (o Options) normalized() Options {
	if o.Delimiter == 0 {
		o.Delimiter = ','
	}
	if o.Quote == 0 {
		o.Quote = '"'
	}
	if o.Escape == 0 {
		o.Escape = o.Quote
	}
	return o
}

// Validate checks that the special characters do not collide.
func (o Options) Validate() error {
	o = o.normalized()
	if isNewline(o.Delimiter) || isNewline(o.Quote) || isNewline(o.Escape) || isNewline(o.Comment) {
		return fmt.Errorf("%w: line break cannot be a special character", ErrInvalidOptions)
	}
	if o.Delimiter == o.Quote {
		return fmt.Errorf("%w: delimiter and quote are both %q", ErrInvalidOptions, o.Delimiter)
	}
	if o.Escape == o.Delimiter {
		return fmt.Errorf("%w: delimiter and escape are both %q", ErrInvalidOptions, o.Delimiter)
	}
	if o.Comment != 0 && (o.Comment == o.Delimiter || o.Comment == o.Quote || o.Comment == o.Escape) {
		return fmt.Errorf("%w: comment %q collides with another special character", ErrInvalidOptions, o.Comment)
	}
	return nil
}

// Record is one data row keyed by header column.
type Record map[string]string

// Table is the parsed form of a payload.
type Table struct {
	Columns []string
	Records []Record
}

// Len returns the number of data records.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Records)
}

// Parse reads input completely. The first non-skipped record is the header.
// Records whose field count differs from the header fail the whole parse.
func Parse(input string, opts Options) (*Table, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	r := &reader{
		in:   input,
		line: 1,
		col:  1,
		opts: opts.normalized(),
	}

	table := &Table{Records: []Record{}}
	for !r.eof() {
		fields, line, err := r.readRecord()
		if err != nil {
			return nil, err
		}
		if fields == nil {
			continue
		}

		if table.Columns == nil {
			table.Columns = fields
			continue
		}

		if len(fields) != len(table.Columns) {
			return nil, &ParseError{
				Line:   line,
				Column: 1,
				Err:    fmt.Errorf("%w: header has %d columns, record has %d", ErrFieldCount, len(table.Columns), len(fields)),
			}
		}

		rec := make(Record, len(fields))
		for i, col := range table.Columns {
			rec[col] = fields[i]
		}
		table.Records = append(table.Records, rec)
	}

	return table, nil
}

type terminator int

const (
	termDelimiter terminator = iota
	termEOL
	termEOF
)

// reader walks the input by byte offset. Field text is copied out of the
// input unchanged, so bytes that are not valid UTF-8 survive the parse.
type reader struct {
	in   string
	pos  int
	line int
	col  int
	opts Options

	lastComment int // line of the most recent comment that started a field
}

func (r *reader) eof() bool {
	return r.pos >= len(r.in)
}

// invalidByte stands for a byte that does not start valid UTF-8. It never
// equals a special character.
const invalidByte rune = -1

// at decodes the character starting at byte offset i.
func (r *reader) at(i int) (rune, int) {
	c, w := utf8.DecodeRuneInString(r.in[i:])
	if c == utf8.RuneError && w == 1 {
		return invalidByte, 1
	}
	return c, w
}

// peek returns the character offset characters ahead of the current one.
func (r *reader) peek(offset int) (rune, bool) {
	i := r.pos
	for {
		if i >= len(r.in) {
			return 0, false
		}
		c, w := r.at(i)
		if offset == 0 {
			return c, true
		}
		offset--
		i += w
	}
}

func (r *reader) advance() {
	c, w := r.at(r.pos)
	r.pos += w
	// A lone '\r' and the '\n' of "\r\n" both end a line.
	if c == '\n' || (c == '\r' && (r.pos >= len(r.in) || r.in[r.pos] != '\n')) {
		r.line++
		r.col = 1
		return
	}
	r.col++
}

func (r *reader) consumeEOL() {
	if c, ok := r.peek(0); ok && c == '\r' {
		r.advance()
	}
	if c, ok := r.peek(0); ok && c == '\n' {
		r.advance()
	}
}

func (r *reader) skipComment() {
	for !r.eof() {
		c, _ := r.at(r.pos)
		if isNewline(c) {
			r.consumeEOL()
			return
		}
		r.advance()
	}
}

func (r *reader) isSpace(c rune) bool {
	return (c == ' ' || c == '\t') && c != r.opts.Delimiter
}

func (r *reader) skipSpaces() {
	for {
		c, ok := r.peek(0)
		if !ok || !r.isSpace(c) {
			return
		}
		r.advance()
	}
}

// readRecord returns nil fields for a record that should be skipped.
func (r *reader) readRecord() ([]string, int, error) {
	line := r.line
	var fields []string
	quotedAny := false

	for {
		field, quoted, term, err := r.readField()
		if err != nil {
			return nil, line, err
		}
		fields = append(fields, field)
		quotedAny = quotedAny || quoted

		if term != termDelimiter {
			break
		}
	}

	if len(fields) == 1 && fields[0] == "" && !quotedAny {
		if r.opts.SkipEmptyLines || r.commentOnly(line) {
			return nil, line, nil
		}
	}
	return fields, line, nil
}

// commentOnly reports whether the line starting at line was consumed entirely by a comment.
func (r *reader) commentOnly(line int) bool {
	return r.opts.Comment != 0 && r.lastComment == line
}

func (r *reader) readField() (string, bool, terminator, error) {
	if r.opts.Trim {
		r.skipSpaces()
	}

	c, ok := r.peek(0)
	if !ok {
		return "", false, termEOF, nil
	}
	if r.opts.Comment != 0 && c == r.opts.Comment {
		r.lastComment = r.line
		r.skipComment()
		return "", false, termEOL, nil
	}
	if c == r.opts.Quote {
		s, term, err := r.readQuoted()
		return s, true, term, err
	}

	var b strings.Builder
	term := termEOF
loop:
	for !r.eof() {
		c, _ := r.at(r.pos)
		switch {
		case c == r.opts.Delimiter:
			r.advance()
			term = termDelimiter
			break loop
		case isNewline(c):
			r.consumeEOL()
			term = termEOL
			break loop
		case r.opts.Comment != 0 && c == r.opts.Comment:
			r.skipComment()
			term = termEOL
			break loop
		case c == r.opts.Quote:
			return "", false, term, &ParseError{Line: r.line, Column: r.col, Err: ErrBareQuote}
		default:
			r.copyTo(&b)
		}
	}

	s := b.String()
	if r.opts.Trim {
		s = strings.TrimRight(s, " \t")
	}
	return s, false, term, nil
}

func (r *reader) readQuoted() (string, terminator, error) {
	startLine, startCol := r.line, r.col
	r.advance() // opening quote

	quote, escape := r.opts.Quote, r.opts.Escape
	var b strings.Builder
	for {
		c, ok := r.peek(0)
		if !ok {
			return "", termEOF, &ParseError{Line: startLine, Column: startCol, Err: ErrQuoteNotClosed}
		}

		if c == escape && escape != quote {
			if next, ok := r.peek(1); ok && (next == quote || next == escape) {
				b.WriteRune(next)
				r.advance()
				r.advance()
				continue
			}
			r.copyTo(&b)
			continue
		}

		if c == quote {
			if next, ok := r.peek(1); ok && escape == quote && next == quote {
				b.WriteRune(quote)
				r.advance()
				r.advance()
				continue
			}
			r.advance() // closing quote
			term, err := r.afterClosingQuote()
			if err != nil {
				return "", term, err
			}
			return b.String(), term, nil
		}

		r.copyTo(&b)
	}
}

// copyTo appends the current character's raw bytes to b and advances.
func (r *reader) copyTo(b *strings.Builder) {
	start := r.pos
	r.advance()
	b.WriteString(r.in[start:r.pos])
}

func (r *reader) afterClosingQuote() (terminator, error) {
	if r.opts.Trim {
		r.skipSpaces()
	}
	c, ok := r.peek(0)
	switch {
	case !ok:
		return termEOF, nil
	case c == r.opts.Delimiter:
		r.advance()
		return termDelimiter, nil
	case isNewline(c):
		r.consumeEOL()
		return termEOL, nil
	case r.opts.Comment != 0 && c == r.opts.Comment:
		r.skipComment()
		return termEOL, nil
	default:
		return termEOF, &ParseError{Line: r.line, Column: r.col, Err: ErrInvalidClosingQuote}
	}
}

func isNewline(c rune) bool {
	return c == '\n' || c == '\r'
}
