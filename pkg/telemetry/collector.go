package telemetry

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Collector times kernel invocations and keeps the latest KernelMetrics
// per kernel name.
//
// StartCollection and StopCollection must be paired by the caller and
// serialized per Collector: a second StartCollection before the stop
// silently replaces the in-flight kernel and no snapshot is kept for the
// first one. Use one Collector per stream or worker. The work being
// measured must have completed (synchronized) before StopCollection, or
// the counters will not belong to it.
type Collector struct {
	clock     Clock
	log       *zap.Logger
	harvester *Harvester

	mu        sync.Mutex
	snapshots map[string]KernelMetrics
	active    string
	startedAt time.Time

	callbacks atomic.Uint64
}

type collectorOptions struct {
	clock    Clock
	log      *zap.Logger
	counters []string
	registry *Registry
}

// Option configures a Collector.
type Option func(*collectorOptions)

func WithClock(c Clock) Option {
	return func(o *collectorOptions) { o.clock = c }
}

func WithLogger(l *zap.Logger) Option {
	return func(o *collectorOptions) { o.log = l }
}

// WithCounters replaces the default counter list.
func WithCounters(names []string) Option {
	return func(o *collectorOptions) { o.counters = names }
}

// WithRegistry routes driver callbacks through r instead of the
// process-wide registry.
func WithRegistry(r *Registry) Option {
	return func(o *collectorOptions) { o.registry = r }
}

// NewCollector creates a collector and tries to bring up the counter
// backend. A nil backend, or any setup failure, leaves the collector in
// duration-only mode.
func NewCollector(backend Backend, opts ...Option) *Collector {
	o := collectorOptions{clock: SystemClock{}, log: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}

	c := &Collector{
		clock:     o.clock,
		log:       o.log,
		harvester: NewHarvester(backend, o.registry, o.counters, o.log),
		snapshots: make(map[string]KernelMetrics),
	}
	c.InitializeBackend()
	return c
}

func (c *Collector) StartCollection(name string) {
	c.harvester.Begin(name)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active != "" {
		c.log.Debug("Replacing in-flight kernel without a snapshot",
			zap.String("previous", c.active), zap.String("kernel", name))
	}
	c.active = name
	c.startedAt = c.clock.Now()
}

// StopCollection finishes the in-flight kernel and stores its snapshot.
// It does nothing when no kernel is active.
func (c *Collector) StopCollection() {
	c.mu.Lock()
	if c.active == "" {
		c.mu.Unlock()
		return
	}
	m := KernelMetrics{
		KernelName: c.active,
		DurationUs: float64(c.clock.Now().Sub(c.startedAt).Nanoseconds()) / 1e3,
	}
	c.active = ""
	c.mu.Unlock()

	c.harvester.Read(&m)

	c.mu.Lock()
	c.snapshots[m.KernelName] = m
	c.mu.Unlock()

	c.log.Debug("Kernel collected",
		zap.String("kernel", m.KernelName),
		zap.Float64("duration_us", m.DurationUs),
		zap.Uint64("elapsed_cycles", m.ElapsedCycles))
}

// GetMetrics returns the snapshot for name, or the zero KernelMetrics.
func (c *Collector) GetMetrics(name string) KernelMetrics {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshots[name]
}

// Snapshots returns every stored snapshot ordered by kernel name.
func (c *Collector) Snapshots() []KernelMetrics {
	c.mu.Lock()
	out := make([]KernelMetrics, 0, len(c.snapshots))
	for _, m := range c.snapshots {
		out = append(out, m)
	}
	c.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].KernelName < out[j].KernelName })
	return out
}

// ActiveKernel returns the in-flight kernel name, or "" when idle.
func (c *Collector) ActiveKernel() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

func (c *Collector) InitializeBackend() {
	c.harvester.Initialize(c)
}

// ShutdownBackend releases the backend. Always safe to call.
func (c *Collector) ShutdownBackend() {
	if err := c.harvester.Shutdown(); err != nil {
		c.log.Warn("Errors while shutting down profiling backend", zap.Error(err))
	}
}

func (c *Collector) IsBackendAvailable() bool {
	return c.harvester.State() == StateReady
}

func (c *Collector) BackendState() BackendState {
	return c.harvester.State()
}

// BoundCounters returns the counters the backend accepted.
func (c *Collector) BoundCounters() []string {
	return c.harvester.BoundCounters()
}

// HandleCallback receives driver notifications routed by the registry.
func (c *Collector) HandleCallback(ev CallbackEvent) {
	c.callbacks.Add(1)
	c.log.Debug("Driver callback",
		zap.String("kind", ev.Kind),
		zap.Uint64("data", ev.Data))
}

// CallbackEvents returns how many driver callbacks reached this collector.
func (c *Collector) CallbackEvents() uint64 {
	return c.callbacks.Load()
}

// Close shuts the backend down. Snapshots stay readable.
func (c *Collector) Close() error {
	c.ShutdownBackend()
	return nil
}
