package bridge

import (
	"io"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/viant/sqlite-vptree/alloc"
	"github.com/viant/sqlite-vptree/index"
	"github.com/viant/sqlite-vptree/index/vptree"
)

type options struct {
	factory    index.Factory
	allocator  alloc.Allocator
	logger     *slog.Logger
	registerer prometheus.Registerer
}

// Option configures a Bridge.
type Option func(*options)

// WithEngine sets the engine factory; the VP-tree is the default.
func WithEngine(factory index.Factory) Option {
	return func(o *options) { o.factory = factory }
}

// WithAllocator sets the allocator shared by the bridge and its engines.
func WithAllocator(a alloc.Allocator) Option {
	return func(o *options) { o.allocator = a }
}

// WithLogger sets the logger; the default discards.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithRegisterer registers the bridge metrics on reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) { o.registerer = reg }
}

func newOptions(opts []Option) *options {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.factory == nil {
		o.factory = vptree.Factory
	}
	if o.allocator == nil {
		o.allocator = alloc.NewPersistent(alloc.Config{})
	}
	if o.logger == nil {
		o.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return o
}
