package datasource

import (
	"sync"

	"github.com/zjrosen/csvsource/internal/csvparse"
	"github.com/zjrosen/csvsource/internal/log"
)

// Query is a registered payload with its effective parser options.
type Query struct {
	Payload string
	Options csvparse.Options
}

// Registry stores raw payloads by handle. Nothing is parsed at registration.
// It is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	last     Handle
	defaults csvparse.Options
	queries  map[Handle]Query
}

// NewRegistry creates a Registry whose registrations start from defaults.
func NewRegistry(defaults csvparse.Options) *Registry {
	return &Registry{
		defaults: defaults,
		queries:  make(map[Handle]Query),
	}
}

// Register stores payload under the next handle. It never fails; an empty
// payload is stored as-is.
func (r *Registry) Register(payload string, opts ParserOptions) Handle {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.last++
	h := r.last
	r.queries[h] = Query{
		Payload: payload,
		Options: opts.merge(r.defaults),
	}

	log.Debug(log.CatRegistry, "Registered payload", "handle", h, "bytes", len(payload))
	return h
}

// Lookup returns the query registered under h.
func (r *Registry) Lookup(h Handle) (Query, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	q, ok := r.queries[h]
	return q, ok
}

// Release drops the payload stored under h. Unknown handles are ignored.
func (r *Registry) Release(h Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.queries, h)
	log.Debug(log.CatRegistry, "Released payload", "handle", h)
}

// Len returns the number of stored payloads.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.queries)
}

// Close drops every stored payload. Handle allocation continues from where it
// was, so released handles are never handed out again.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	log.Debug(log.CatRegistry, "Releasing payloads", "count", len(r.queries))
	r.queries = make(map[Handle]Query)
}
