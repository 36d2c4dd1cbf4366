package datasource

import "fmt"

// Validate checks a request before any parsing happens. Filter operators are
// checked later, when a clause is first evaluated against a row.
func Validate(req Request) error {
	if len(req.Order) > 0 {
		return &ConfigError{Op: "order", Reason: "ordering is not supported"}
	}

	if req.Page != nil && *req.Page <= 0 {
		return &ConfigError{Op: "page", Reason: fmt.Sprintf("page must be a positive integer, got %d", *req.Page)}
	}

	if req.Limit != nil && *req.Limit <= 0 {
		return &ConfigError{Op: "limit", Reason: fmt.Sprintf("limit must be a positive integer, got %d", *req.Limit)}
	}

	if len(req.Attributes) == 0 {
		return &ConfigError{Op: "attributes", Reason: "at least one attribute is required"}
	}

	return nil
}
