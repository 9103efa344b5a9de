// Package esiclient is the facade: request(), its retry policy, and
// wiring of the transport and pagination layers, per spec §4.4 and §4.6.
package esiclient

import (
	"context"
	"net/http"
	"reflect"
	"sync"
	"time"

	"github.com/evesi/esiclient/pkg/backoff"
	"github.com/evesi/esiclient/pkg/esimodel"
	"github.com/evesi/esiclient/pkg/pagination"
	"github.com/evesi/esiclient/pkg/transport"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Client is the entry point: Request() dispatches to the paginator or the
// retry loop per spec §4.6, and returns a ResponseFuture.
type Client struct {
	transport http.RoundTripper
	closer    interface{ Close() error }

	baseURL        string
	defaultHeaders map[string]string
	defaultQuery   map[string]string
	stripHeaders   []string

	maxTime    time.Duration
	maxRetries int

	retryDelayLowFactory  backoff.Factory
	retryDelayHighFactory backoff.Factory
	pageSplitDelay        backoff.PageSplitDelay

	logger zerolog.Logger
}

// New builds a Client from cfg, filling unset fields from DefaultConfig.
func New(cfg Config) (*Client, error) {
	cfg.applyDefaults()

	var rt http.RoundTripper
	var closer interface{ Close() error }
	switch {
	case cfg.Connection != nil:
		rt = cfg.Connection
	case cfg.PoolSize > 1:
		pool := transport.NewPool(cfg.PoolSize, cfg.ConnectionSettings, cfg.Logger)
		rt = pool
		closer = pool
	default:
		conn := transport.New("default", cfg.ConnectionSettings, cfg.Logger)
		rt = conn
		closer = conn
	}

	if !cfg.DisableTracing {
		rt = otelhttp.NewTransport(rt)
	}

	return &Client{
		transport:             rt,
		closer:                closer,
		baseURL:               cfg.ConnectionSettings.BaseURL,
		defaultHeaders:        cfg.DefaultHeaders,
		defaultQuery:          cfg.DefaultQuery,
		stripHeaders:          cfg.StripHeaders,
		maxTime:               cfg.MaxTime,
		maxRetries:            cfg.MaxRetries,
		retryDelayLowFactory:  cfg.RetryDelayLow,
		retryDelayHighFactory: cfg.RetryDelayHigh,
		pageSplitDelay:        cfg.PageSplitDelay,
		logger:                cfg.Logger.With().Str("component", "esiclient").Logger(),
	}, nil
}

// Close releases the underlying transport, if this Client owns one (i.e.
// Config.Connection was not supplied externally).
func (c *Client) Close() error {
	if c.closer == nil {
		return nil
	}
	return c.closer.Close()
}

// Request dispatches path/opts per spec §4.6 and returns a ResponseFuture.
// The call itself does not block; use the returned future's Result or Data
// to await completion.
func (c *Client) Request(ctx context.Context, path string, opts esimodel.RequestOptions) *ResponseFuture {
	future := newResponseFuture()
	go func() {
		resp, err := c.dispatch(ctx, path, opts)
		future.complete(resp, err)
	}()
	return future
}

func (c *Client) dispatch(ctx context.Context, path string, opts esimodel.RequestOptions) (*esimodel.Response, error) {
	method := opts.Method
	if method == "" {
		method = esimodel.MethodGET
	}

	if method == esimodel.MethodPOST && opts.BodyPageSize > 0 {
		if items, ok := asSlice(opts.Body); ok {
			return c.paginator().PaginatePOST(ctx, path, opts, items)
		}
		// body truthy but not an array: fall through to a single request,
		// per spec §9 open question (c).
	}

	if method == esimodel.MethodGET {
		return c.paginator().PaginateGET(ctx, path, opts)
	}

	return c.retryLoop(ctx, path, opts)
}

func (c *Client) paginator() *pagination.Paginator {
	return &pagination.Paginator{
		Fetch:          c.retryLoop,
		PageSplitDelay: c.pageSplitDelay,
		Logger:         c.logger,
	}
}

// asSlice reports whether v is a slice/array and returns its elements as
// a []any, preserving order.
func asSlice(v any) ([]any, bool) {
	if v == nil {
		return nil, false
	}
	if vv, ok := v.([]any); ok {
		return vv, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

// ResponseFuture is the promise-like handle returned by Request, per spec
// §4.6. Result blocks (respecting ctx) until the exchange completes; Data
// is an ergonomic shortcut for the common case of only wanting the payload.
type ResponseFuture struct {
	done chan struct{}
	once sync.Once

	mu   sync.Mutex
	resp *esimodel.Response
	err  error
}

func newResponseFuture() *ResponseFuture {
	return &ResponseFuture{done: make(chan struct{})}
}

func (f *ResponseFuture) complete(resp *esimodel.Response, err error) {
	f.mu.Lock()
	f.resp, f.err = resp, err
	f.mu.Unlock()
	f.once.Do(func() { close(f.done) })
}

// Result blocks until the exchange completes or ctx is done, whichever is
// first, and returns the outcome.
func (f *ResponseFuture) Result(ctx context.Context) (*esimodel.Response, error) {
	select {
	case <-f.done:
		f.mu.Lock()
		defer f.mu.Unlock()
		return f.resp, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Data is a shortcut for Result that returns only the payload.
func (f *ResponseFuture) Data(ctx context.Context) (any, error) {
	resp, err := f.Result(ctx)
	if err != nil {
		return nil, err
	}
	return resp.Data, nil
}

