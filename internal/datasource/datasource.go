// Package datasource answers structured queries against registered CSV text.
//
// A payload is registered once and parsed lazily on its first execution.
// Requests then select attributes, filter rows with OR-of-AND equality
// clauses and paginate with page/limit:
//
//	ds := datasource.New()
//	h := ds.Register(datasource.RegisterOptions{Data: "a,b\n1,2", Delimiter: ','})
//	rs, err := ds.Execute(ctx, datasource.Request{Handle: h, Attributes: []string{"a"}})
package datasource

import (
	"context"

	"github.com/google/uuid"

	"github.com/zjrosen/csvsource/internal/csvparse"
	"github.com/zjrosen/csvsource/internal/log"
	"github.com/zjrosen/csvsource/internal/pubsub"
)

// RegisterOptions is a payload plus optional single-character parser overrides.
type RegisterOptions struct {
	Data      string
	Delimiter rune
	Quote     rune
	Escape    rune
	Comment   rune
}

// DataSource pairs a Registry with the Executor that reads from it.
type DataSource struct {
	id       string
	registry *Registry
	executor *Executor
	events   *pubsub.Broker[Notice]
}

type settings struct {
	defaults     csvparse.Options
	executorOpts []ExecutorOption
}

// Option configures a DataSource.
type Option func(*settings)

// WithParserDefaults sets the component-wide parser options that
// registrations override field by field.
func WithParserDefaults(opts csvparse.Options) Option {
	return func(s *settings) {
		s.defaults = opts
	}
}

// WithExecutorOptions passes options through to the Executor.
func WithExecutorOptions(opts ...ExecutorOption) Option {
	return func(s *settings) {
		s.executorOpts = append(s.executorOpts, opts...)
	}
}

// New creates a DataSource with its own registry and caches.
func New(opts ...Option) *DataSource {
	s := settings{defaults: csvparse.DefaultOptions()}
	for _, opt := range opts {
		opt(&s)
	}

	id := uuid.NewString()
	registry := NewRegistry(s.defaults)
	events := pubsub.NewBroker[Notice]()
	executorOpts := append([]ExecutorOption{withInstanceID(id), WithPublisher(events)}, s.executorOpts...)

	log.Debug(log.CatQuery, "Data source created", "instance", id)
	return &DataSource{
		id:       id,
		registry: registry,
		executor: NewExecutor(registry, executorOpts...),
		events:   events,
	}
}

// ID identifies this instance in logs and spans.
func (d *DataSource) ID() string {
	return d.id
}

// Register stores opts.Data under a fresh handle. It never fails.
func (d *DataSource) Register(opts RegisterOptions) Handle {
	h := d.registry.Register(opts.Data, ParserOptions{
		Delimiter: opts.Delimiter,
		Quote:     opts.Quote,
		Escape:    opts.Escape,
		Comment:   opts.Comment,
	})
	d.events.Publish(pubsub.RegisteredEvent, Notice{Instance: d.id, Handle: h, Bytes: len(opts.Data)})
	return h
}

// Release forgets the payload and parsed table behind h. Later requests for
// h fail as unknown handles; other handles are unaffected.
func (d *DataSource) Release(ctx context.Context, h Handle) {
	d.registry.Release(h)
	d.executor.Release(ctx, h)
	d.events.Publish(pubsub.ReleasedEvent, Notice{Instance: d.id, Handle: h})
}

// Subscribe streams lifecycle events until ctx ends or the data source is
// closed. Slow subscribers miss events rather than stall queries.
func (d *DataSource) Subscribe(ctx context.Context) <-chan pubsub.Event[Notice] {
	return d.events.Subscribe(ctx)
}

// Execute runs req. See Executor.Execute.
func (d *DataSource) Execute(ctx context.Context, req Request) (*ResultSet, error) {
	return d.executor.Execute(ctx, req)
}

// Columns returns the header columns of the payload behind h.
func (d *DataSource) Columns(ctx context.Context, h Handle) ([]string, error) {
	return d.executor.Columns(ctx, h)
}

// Close releases payloads and parsed tables. It always returns nil.
func (d *DataSource) Close(ctx context.Context) error {
	d.executor.Close(ctx)
	d.registry.Close()
	d.events.Publish(pubsub.ReleasedEvent, Notice{Instance: d.id})
	d.events.Close()
	log.Debug(log.CatQuery, "Data source closed", "instance", d.id)
	return nil
}
