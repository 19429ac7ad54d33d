package instrumentation

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/embedded"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

const (
	// DefaultServiceName is used when Config.ServiceName is empty
	DefaultServiceName = "oauth-client"

	// DefaultServiceVersion is the default service version used when none is provided
	DefaultServiceVersion = "unknown"

	// scopePrefix is prepended to every meter and tracer scope
	scopePrefix = "github.com/giantswarm/oauth-client/"
)

// Config holds instrumentation configuration
type Config struct {
	// ServiceName is the name of the service embedding the client
	ServiceName string

	// ServiceVersion is the version of the service
	ServiceVersion string

	// Enabled controls whether instrumentation is active.
	// When false, no-op providers are used regardless of the providers below.
	Enabled bool

	// TracerProvider receives the client's spans when Enabled.
	// Nil falls back to a no-op provider; exporting is the embedding application's job.
	TracerProvider trace.TracerProvider

	// MeterProvider receives the client's metrics when Enabled.
	MeterProvider metric.MeterProvider

	// Resource allows custom resource attributes
	// If nil, default resource is created with service name and version
	Resource *resource.Resource

	// ShutdownFuncs are called by Shutdown, e.g. SDK provider shutdowns.
	ShutdownFuncs []func(context.Context) error
}

// Instrumentation provides OpenTelemetry instrumentation components
type Instrumentation struct {
	config   Config
	resource *resource.Resource

	meterProvider  metric.MeterProvider
	tracerProvider trace.TracerProvider

	metrics *Metrics
	pending pendingSources

	// registered during New() only
	shutdownFuncs []func(context.Context) error
	shutdownOnce  sync.Once
}

// New creates a new instrumentation instance
func New(config Config) (*Instrumentation, error) {
	if config.ServiceName == "" {
		config.ServiceName = DefaultServiceName
	}
	if config.ServiceVersion == "" {
		config.ServiceVersion = DefaultServiceVersion
	}

	res := config.Resource
	if res == nil {
		var err error
		res, err = resource.New(
			context.Background(),
			resource.WithAttributes(
				semconv.ServiceName(config.ServiceName),
				semconv.ServiceVersion(config.ServiceVersion),
			),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create resource: %w", err)
		}
	}

	inst := &Instrumentation{
		config:        config,
		resource:      res,
		shutdownFuncs: config.ShutdownFuncs,
	}

	if config.Enabled {
		inst.meterProvider = config.MeterProvider
		inst.tracerProvider = config.TracerProvider
	}
	if inst.meterProvider == nil {
		inst.meterProvider = noop.NewMeterProvider()
	}
	if inst.tracerProvider == nil {
		inst.tracerProvider = tracenoop.NewTracerProvider()
	}

	var err error
	inst.metrics, err = newMetrics(inst)
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics: %w", err)
	}

	return inst, nil
}

// Noop returns instrumentation that records nothing.
func Noop() *Instrumentation {
	inst, err := New(Config{})
	if err != nil {
		// no-op providers cannot fail to create instruments
		panic(fmt.Sprintf("instrumentation: noop setup failed: %v", err))
	}
	return inst
}

// Shutdown gracefully shuts down all instrumentation providers
// This should be called when the application is terminating
func (i *Instrumentation) Shutdown(ctx context.Context) error {
	var shutdownErr error

	i.shutdownOnce.Do(func() {
		for _, fn := range i.shutdownFuncs {
			if err := fn(ctx); err != nil && shutdownErr == nil {
				shutdownErr = err
			}
		}
	})

	return shutdownErr
}

// Meter returns a named meter for the given scope
// Scopes are layer names like "client", "transport", "storage"
func (i *Instrumentation) Meter(scope string) metric.Meter {
	return i.meterProvider.Meter(scopePrefix + scope)
}

// Tracer returns a named tracer for the given scope
// Scopes are layer names like "client", "transport", "storage"
func (i *Instrumentation) Tracer(scope string) trace.Tracer {
	return i.tracerProvider.Tracer(scopePrefix + scope)
}

// Metrics returns the metrics holder for recording metric values
func (i *Instrumentation) Metrics() *Metrics {
	return i.metrics
}

// Resource returns the service resource
func (i *Instrumentation) Resource() *resource.Resource {
	return i.resource
}

// TracerProvider returns the underlying tracer provider
func (i *Instrumentation) TracerProvider() trace.TracerProvider {
	return i.tracerProvider
}

// MeterProvider returns the underlying meter provider
func (i *Instrumentation) MeterProvider() metric.MeterProvider {
	return i.meterProvider
}

// PendingOperationsCallback returns the number of in-flight token operations
type PendingOperationsCallback func() int64

// pendingSources sums the pending counts of every registered client into one
// gauge series. The meter callback exists only while a source is registered.
// regMu guards reg and is never held by the meter callback, which only takes
// mu; the SDK holds its own lock while running callbacks.
type pendingSources struct {
	regMu sync.Mutex
	reg   metric.Registration

	mu     sync.Mutex
	nextID int
	srcs   map[int]PendingOperationsCallback
}

// pendingRegistration removes one source from the gauge.
type pendingRegistration struct {
	embedded.Registration

	inst *Instrumentation
	id   int
	once sync.Once
}

func (r *pendingRegistration) Unregister() error {
	var err error
	r.once.Do(func() {
		err = r.inst.removePendingSource(r.id)
	})
	return err
}

// RegisterPendingOperationsCallback adds cb to the pending operations gauge.
// The gauge reports the sum over all registered callbacks. Unregister the
// returned registration when the caller shuts down.
func (i *Instrumentation) RegisterPendingOperationsCallback(cb PendingOperationsCallback) (metric.Registration, error) {
	if cb == nil {
		return nil, fmt.Errorf("callback cannot be nil")
	}

	p := &i.pending
	p.regMu.Lock()
	defer p.regMu.Unlock()

	if p.reg == nil {
		reg, err := i.Meter("client").RegisterCallback(i.observePending, i.metrics.PendingOperations)
		if err != nil {
			return nil, err
		}
		p.reg = reg
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.srcs == nil {
		p.srcs = make(map[int]PendingOperationsCallback)
	}
	p.nextID++
	p.srcs[p.nextID] = cb
	return &pendingRegistration{inst: i, id: p.nextID}, nil
}

func (i *Instrumentation) observePending(_ context.Context, observer metric.Observer) error {
	i.pending.mu.Lock()
	srcs := make([]PendingOperationsCallback, 0, len(i.pending.srcs))
	for _, cb := range i.pending.srcs {
		srcs = append(srcs, cb)
	}
	i.pending.mu.Unlock()

	var total int64
	for _, cb := range srcs {
		total += cb()
	}
	observer.ObserveInt64(i.metrics.PendingOperations, total)
	return nil
}

func (i *Instrumentation) removePendingSource(id int) error {
	p := &i.pending
	p.regMu.Lock()
	defer p.regMu.Unlock()

	p.mu.Lock()
	delete(p.srcs, id)
	remaining := len(p.srcs)
	p.mu.Unlock()

	if remaining > 0 || p.reg == nil {
		return nil
	}
	err := p.reg.Unregister()
	p.reg = nil
	return err
}
