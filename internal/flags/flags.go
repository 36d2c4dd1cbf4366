// Package flags holds opt-in behavior switches read from the "flags" section
// of the configuration file. Every flag is off unless set to true.
package flags

import (
	"maps"
	"slices"

	"github.com/zjrosen/csvsource/internal/log"
)

// FlagCacheParseFailures makes a failed parse permanent for its handle
// instead of retrying the parse on the next execution.
const FlagCacheParseFailures = "cache-parse-failures"

var known = []string{FlagCacheParseFailures}

// Known returns every flag name this build understands, sorted.
func Known() []string {
	return slices.Clone(known)
}

// IsKnown reports whether name is one of Known().
func IsKnown(name string) bool {
	return slices.Contains(known, name)
}

// Registry is a read-only snapshot of flag values.
type Registry struct {
	values map[string]bool
}

// New snapshots values. A nil map leaves every flag off. Names this build
// does not know are kept but logged.
func New(values map[string]bool) *Registry {
	r := &Registry{values: maps.Clone(values)}
	if r.values == nil {
		r.values = map[string]bool{}
	}
	for _, name := range r.Unknown() {
		log.Warn(log.CatConfig, "Ignoring unknown feature flag", "flag", name)
	}
	log.Debug(log.CatConfig, "Feature flags loaded", "flags", r.values)
	return r
}

// Enabled reports whether name is set to true. A nil Registry has every
// flag off.
func (r *Registry) Enabled(name string) bool {
	if r == nil {
		return false
	}
	return r.values[name]
}

// Unknown returns the configured names that are not in Known(), sorted.
func (r *Registry) Unknown() []string {
	if r == nil {
		return nil
	}
	var names []string
	for name := range r.values {
		if !IsKnown(name) {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names
}

// All returns a copy of the configured values.
func (r *Registry) All() map[string]bool {
	if r == nil {
		return map[string]bool{}
	}
	return maps.Clone(r.values)
}
