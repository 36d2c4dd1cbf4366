package datasource

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration marks requests that are invalid for this data source.
	ErrConfiguration = errors.New("configuration error")

	// ErrData marks payloads that could not be parsed.
	ErrData = errors.New("data error")
)

// ConfigError reports caller misuse. It matches ErrConfiguration.
type ConfigError struct {
	Op     string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("csvsource %s: %s", e.Op, e.Reason)
}

func (e *ConfigError) Unwrap() error {
	return ErrConfiguration
}

// DataError wraps the parser diagnostic for a malformed payload. It matches
// ErrData and the underlying parser error.
type DataError struct {
	Handle Handle
	Err    error
}

func (e *DataError) Error() string {
	return fmt.Sprintf("csvsource: parsing query %d: %v", e.Handle, e.Err)
}

func (e *DataError) Unwrap() []error {
	return []error{ErrData, e.Err}
}

func errUnsupportedOperator(op Operator) error {
	return &ConfigError{
		Op:     "filter",
		Reason: fmt.Sprintf("unsupported operator %q, only %q is supported", op, OperatorEqual),
	}
}

func errUnknownHandle(h Handle) error {
	return &ConfigError{Op: "execute", Reason: fmt.Sprintf("unknown query handle %d", h)}
}
