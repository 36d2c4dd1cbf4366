package datasource

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/zjrosen/csvsource/internal/csvparse"
)

// Matches reports whether rec satisfies the filter. An empty filter matches
// every record. Every clause of a group is evaluated, so an unsupported
// operator fails on the first record that reaches its group.
func (f Filter) Matches(rec csvparse.Record) (bool, error) {
	if len(f) == 0 {
		return true, nil
	}

	for _, group := range f {
		matches := true
		for _, clause := range group {
			ok, err := clause.Matches(rec)
			if err != nil {
				return false, err
			}
			if !ok {
				matches = false
			}
		}
		if matches {
			return true, nil
		}
	}
	return false, nil
}

// Matches evaluates a single clause against rec.
func (c Clause) Matches(rec csvparse.Record) (bool, error) {
	if c.Operator != OperatorEqual {
		return false, errUnsupportedOperator(c.Operator)
	}
	cell, present := rec[c.Attribute]
	return LooseEqual(cell, present, c.Value), nil
}

// LooseEqual compares a cell against a clause literal.
//
// Strings compare as text. Numbers match a cell whose trimmed text parses to
// the same number in decimal notation, so "2" and " 2.0" both equal 2. Booleans
// compare against "true"/"false". A nil literal matches only a missing cell.
// Any other literal compares against its fmt text.
func LooseEqual(cell string, present bool, value any) bool {
	if !present {
		return value == nil
	}

	switch v := value.(type) {
	case nil:
		return false
	case string:
		return cell == v
	case bool:
		return cell == strconv.FormatBool(v)
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return cellEqualsInt(cell, i)
		}
		if f, err := v.Float64(); err == nil {
			return cellEqualsFloat(cell, f)
		}
		return cell == v.String()
	}

	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return cellEqualsInt(cell, rv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u := rv.Uint()
		if n, err := strconv.ParseUint(strings.TrimSpace(cell), 10, 64); err == nil {
			return n == u
		}
		return cellEqualsFloat(cell, float64(u))
	case reflect.Float32, reflect.Float64:
		return cellEqualsFloat(cell, rv.Float())
	}

	return cell == fmt.Sprint(value)
}

func cellEqualsInt(cell string, n int64) bool {
	if i, err := strconv.ParseInt(strings.TrimSpace(cell), 10, 64); err == nil {
		return i == n
	}
	return cellEqualsFloat(cell, float64(n))
}

func cellEqualsFloat(cell string, n float64) bool {
	s := strings.TrimSpace(cell)
	if s == "" || strings.ContainsAny(s, "xXpP_") {
		return false
	}
	f, err := strconv.ParseFloat(s, 64)
	return err == nil && f == n
}

// project keeps exactly the requested attributes, nil for missing ones.
func project(rec csvparse.Record, attributes []string) Row {
	row := make(Row, len(attributes))
	for _, attr := range attributes {
		if v, ok := rec[attr]; ok {
			row[attr] = v
		} else {
			row[attr] = nil
		}
	}
	return row
}

// paginate slices rows by page and limit. Without a limit, page is ignored.
// Pages past the end yield an empty slice.
func paginate(rows []Row, page, limit *int) []Row {
	if limit == nil {
		return rows
	}

	size := *limit
	skipPages := 0
	if page != nil {
		skipPages = *page - 1
	}

	// Compare in pages first so the offset cannot overflow.
	if skipPages > len(rows)/size {
		return []Row{}
	}
	offset := skipPages * size
	if offset >= len(rows) {
		return []Row{}
	}

	end := len(rows)
	if size < end-offset {
		end = offset + size
	}
	return rows[offset:end]
}

// evaluate runs filter, projection and pagination, in that order.
func evaluate(table *csvparse.Table, req Request) ([]Row, error) {
	rows := make([]Row, 0)
	for _, rec := range table.Records {
		ok, err := req.Filter.Matches(rec)
		if err != nil {
			return nil, err
		}
		if ok {
			rows = append(rows, project(rec, req.Attributes))
		}
	}
	return paginate(rows, req.Page, req.Limit), nil
}
