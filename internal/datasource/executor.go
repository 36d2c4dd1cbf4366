package datasource

import (
	"context"
	"errors"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/zjrosen/csvsource/internal/cachemanager"
	"github.com/zjrosen/csvsource/internal/csvparse"
	"github.com/zjrosen/csvsource/internal/log"
	"github.com/zjrosen/csvsource/internal/pubsub"
	"github.com/zjrosen/csvsource/internal/tracing"
)

// ParseFunc turns a registered payload into a table.
type ParseFunc func(payload string, opts csvparse.Options) (*csvparse.Table, error)

// Executor evaluates requests against registered payloads, parsing each
// payload at most once.
type Executor struct {
	registry *Registry
	tables   cachemanager.CacheManager[Handle, *csvparse.Table]
	failures cachemanager.CacheManager[Handle, error]
	loader   *cachemanager.ReadThroughCache[Handle, *csvparse.Table, Handle]

	parse         ParseFunc
	tracer        trace.Tracer
	cacheFailures bool
	instanceID    string
	events        pubsub.Publisher[Notice]
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithParseFunc replaces csvparse.Parse.
func WithParseFunc(fn ParseFunc) ExecutorOption {
	return func(e *Executor) {
		e.parse = fn
	}
}

// WithTracer records execute and parse spans on tracer.
func WithTracer(tracer trace.Tracer) ExecutorOption {
	return func(e *Executor) {
		if tracer != nil {
			e.tracer = tracer
		}
	}
}

// WithTableCache stores parsed tables in cache instead of a private go-cache.
func WithTableCache(cache cachemanager.CacheManager[Handle, *csvparse.Table]) ExecutorOption {
	return func(e *Executor) {
		e.tables = cache
	}
}

// WithParseFailureCaching makes a failed parse permanent for its handle.
// By default a failed parse is retried on the next Execute.
func WithParseFailureCaching(enabled bool) ExecutorOption {
	return func(e *Executor) {
		e.cacheFailures = enabled
	}
}

// WithPublisher reports parse outcomes to p.
func WithPublisher(p pubsub.Publisher[Notice]) ExecutorOption {
	return func(e *Executor) {
		e.events = p
	}
}

func withInstanceID(id string) ExecutorOption {
	return func(e *Executor) {
		e.instanceID = id
	}
}

// NewExecutor creates an Executor reading payloads from registry.
func NewExecutor(registry *Registry, opts ...ExecutorOption) *Executor {
	e := &Executor{
		registry: registry,
		parse:    csvparse.Parse,
		tracer:   noop.NewTracerProvider().Tracer("noop"),
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.tables == nil {
		e.tables = cachemanager.NewInMemoryCacheManager[Handle, *csvparse.Table]("tables", cachemanager.NoExpiration, cachemanager.NoCleanup)
	}
	e.failures = cachemanager.NewInMemoryCacheManager[Handle, error]("parse-failures", cachemanager.NoExpiration, cachemanager.NoCleanup)
	e.loader = cachemanager.NewReadThroughCache[Handle, *csvparse.Table, Handle](e.tables, e.load, false)

	return e
}

// Execute validates req, parses its payload on first use, then filters,
// projects and paginates. No partial result is returned with an error.
func (e *Executor) Execute(ctx context.Context, req Request) (*ResultSet, error) {
	ctx, span := e.tracer.Start(ctx, tracing.SpanExecute, trace.WithAttributes(
		attribute.String(tracing.AttrInstanceID, e.instanceID),
		attribute.Int64(tracing.AttrHandle, int64(req.Handle)),
		attribute.String(tracing.AttrAttributes, strings.Join(req.Attributes, ",")),
		attribute.Int(tracing.AttrFilterGroup, len(req.Filter)),
	))
	defer span.End()

	if req.Page != nil {
		span.SetAttributes(attribute.Int(tracing.AttrPage, *req.Page))
	}
	if req.Limit != nil {
		span.SetAttributes(attribute.Int(tracing.AttrLimit, *req.Limit))
	}

	rs, err := e.execute(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(attribute.Int(tracing.AttrResultRows, len(rs.Data)))
	span.SetStatus(codes.Ok, "")
	return rs, nil
}

func (e *Executor) execute(ctx context.Context, req Request) (*ResultSet, error) {
	log.Debug(log.CatQuery, "Executing request", "instance", e.instanceID, "handle", req.Handle,
		"attributes", req.Attributes, "groups", len(req.Filter))

	if err := Validate(req); err != nil {
		log.ErrorErr(log.CatQuery, "Validation failed", err, "handle", req.Handle)
		return nil, err
	}

	table, err := e.table(ctx, req.Handle)
	if err != nil {
		return nil, err
	}

	rows, err := evaluate(table, req)
	if err != nil {
		log.ErrorErr(log.CatQuery, "Filter evaluation failed", err, "handle", req.Handle)
		return nil, err
	}

	log.Debug(log.CatQuery, "Query complete", "handle", req.Handle, "results", len(rows))
	return &ResultSet{TotalCount: nil, Data: rows}, nil
}

// Columns returns the header of the payload behind h, parsing it if needed.
func (e *Executor) Columns(ctx context.Context, h Handle) ([]string, error) {
	table, err := e.table(ctx, h)
	if err != nil {
		return nil, err
	}
	return append([]string(nil), table.Columns...), nil
}

func (e *Executor) table(ctx context.Context, h Handle) (*csvparse.Table, error) {
	if e.cacheFailures {
		if err, ok := e.failures.Get(ctx, h); ok {
			return nil, err
		}
	}

	table, err := e.loader.Get(ctx, h, h, cachemanager.NoExpiration)
	if err != nil {
		var dataErr *DataError
		if e.cacheFailures && errors.As(err, &dataErr) {
			e.failures.Set(ctx, h, err, cachemanager.NoExpiration)
		}
		return nil, err
	}
	return table, nil
}

// load is the read-through loader; it runs at most once per handle at a time.
func (e *Executor) load(ctx context.Context, h Handle) (*csvparse.Table, error) {
	q, ok := e.registry.Lookup(h)
	if !ok {
		return nil, errUnknownHandle(h)
	}

	_, span := e.tracer.Start(ctx, tracing.SpanParse, trace.WithAttributes(
		attribute.Int64(tracing.AttrHandle, int64(h)),
		attribute.Int(tracing.AttrPayloadSize, len(q.Payload)),
	))
	defer span.End()

	log.Debug(log.CatParse, "Parsing CSV", "handle", h, "bytes", len(q.Payload))

	table, err := e.parse(q.Payload, q.Options)
	if err != nil {
		log.ErrorErr(log.CatParse, "Parse failed", err, "handle", h)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		dataErr := &DataError{Handle: h, Err: err}
		e.publish(pubsub.ParseFailedEvent, Notice{Handle: h, Bytes: len(q.Payload), Err: dataErr})
		return nil, dataErr
	}

	span.SetAttributes(attribute.Int(tracing.AttrParsedRows, table.Len()))
	log.Debug(log.CatParse, "Parsed CSV", "handle", h, "columns", len(table.Columns), "rows", table.Len())
	e.publish(pubsub.ParsedEvent, Notice{Handle: h, Bytes: len(q.Payload), Columns: len(table.Columns), Rows: table.Len()})
	return table, nil
}

func (e *Executor) publish(t pubsub.EventType, n Notice) {
	if e.events == nil {
		return
	}
	n.Instance = e.instanceID
	e.events.Publish(t, n)
}

// CachedTables returns how many parsed tables are held.
func (e *Executor) CachedTables(ctx context.Context) int {
	return e.tables.Len(ctx)
}

// Release drops the parsed table and cached failure of h. A parse of h that
// is still running finishes for its callers but is not kept.
func (e *Executor) Release(ctx context.Context, h Handle) {
	log.Debug(log.CatCache, "Releasing parsed table", "handle", h)
	_ = e.loader.Forget(ctx, h)
	_ = e.failures.Delete(ctx, h)
}

// Close releases every parsed table and cached failure, including tables
// whose parse is still running. It always succeeds.
func (e *Executor) Close(ctx context.Context) {
	log.Debug(log.CatCache, "Releasing parsed tables", "count", e.tables.Len(ctx))
	_ = e.loader.Reset(ctx)
	_ = e.failures.Flush(ctx)
}
