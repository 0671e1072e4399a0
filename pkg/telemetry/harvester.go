package telemetry

import (
	"errors"
	"fmt"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Harvester owns the backend subscription and counter group, and reads
// raw counter values into KernelMetrics.
//
// Uninitialized moves to Ready or Unavailable on Initialize. Ready moves
// to Unavailable on Shutdown or on a failure wrapping ErrBackendLost.
// Unavailable is terminal.
type Harvester struct {
	backend  Backend
	registry *Registry
	counters []string
	log      *zap.Logger

	mu       sync.Mutex
	state    BackendState
	device   Device
	sub      Subscription
	group    Group
	hasSub   bool
	hasGroup bool
	bound    []string
}

func NewHarvester(backend Backend, registry *Registry, counters []string, log *zap.Logger) *Harvester {
	if registry == nil {
		registry = DefaultRegistry()
	}
	if len(counters) == 0 {
		counters = DefaultCounters()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Harvester{
		backend:  backend,
		registry: registry,
		counters: counters,
		log:      log,
	}
}

func (h *Harvester) State() BackendState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// BoundCounters returns the counter names that were added to the group.
func (h *Harvester) BoundCounters() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.bound...)
}

// Initialize subscribes to the backend and configures the counter group.
// It is a no-op unless the harvester is Uninitialized. owner receives the
// driver callbacks for this subscription.
func (h *Harvester) Initialize(owner CallbackHandler) BackendState {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.state != StateUninitialized {
		return h.state
	}
	if h.backend == nil {
		h.state = StateUnavailable
		h.log.Info("Profiling backend not configured, collecting durations only")
		return h.state
	}

	if err := h.initialize(owner); err != nil {
		h.state = StateUnavailable
		h.log.Info("Profiling backend unavailable, collecting durations only", zap.Error(err))
		return h.state
	}

	h.state = StateReady
	h.log.Info("Profiling backend ready",
		zap.Int("device", int(h.device)),
		zap.Strings("counters", h.bound))
	return h.state
}

func (h *Harvester) initialize(owner CallbackHandler) error {
	dev, err := h.backend.CurrentDevice()
	if err != nil {
		return fmt.Errorf("failed to resolve device context: %w", err)
	}
	h.device = dev

	sub, err := h.backend.Subscribe(h.registry.Trampoline(h.backend))
	if err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}
	h.sub, h.hasSub = sub, true
	if owner != nil {
		h.registry.Register(h.backend, sub, owner)
	}

	if err := h.backend.EnableDomain(sub, DomainRuntime); err != nil {
		h.releaseSubscription()
		return fmt.Errorf("failed to enable runtime domain: %w", err)
	}

	if err := h.setup(); err != nil {
		h.releaseSubscription()
		return err
	}
	return nil
}

// setup creates the counter group and adds every counter the device
// knows. Missing counters are skipped; an empty group is an error.
func (h *Harvester) setup() error {
	group, err := h.backend.CreateGroup(h.sub, h.device)
	if err != nil {
		return fmt.Errorf("failed to create counter group: %w", err)
	}

	bound := make([]string, 0, len(h.counters))
	for _, name := range h.counters {
		id, err := h.backend.EventID(h.device, name)
		if err != nil {
			h.log.Debug("Counter unavailable", zap.String("counter", name), zap.Error(err))
			continue
		}
		if err := h.backend.AddEvent(group, id); err != nil {
			h.log.Debug("Failed to add counter", zap.String("counter", name), zap.Error(err))
			continue
		}
		bound = append(bound, name)
	}

	if len(bound) == 0 {
		if err := h.backend.DestroyGroup(group); err != nil {
			h.log.Debug("Failed to destroy empty counter group", zap.Error(err))
		}
		return ErrNoCounters
	}

	h.group, h.hasGroup = group, true
	h.bound = bound
	return nil
}

func (h *Harvester) releaseSubscription() error {
	if !h.hasSub {
		return nil
	}
	h.registry.Unregister(h.backend, h.sub)
	err := h.backend.Unsubscribe(h.sub)
	h.sub, h.hasSub = 0, false
	if err != nil {
		return fmt.Errorf("failed to unsubscribe: %w", err)
	}
	return nil
}

// Shutdown releases every handle and leaves the harvester Unavailable.
// Safe to call in any state and more than once.
func (h *Harvester) Shutdown() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.shutdown()
}

func (h *Harvester) shutdown() error {
	var err error
	if h.hasGroup {
		if dErr := h.backend.DestroyGroup(h.group); dErr != nil {
			err = multierr.Append(err, fmt.Errorf("failed to destroy counter group: %w", dErr))
		}
		h.group, h.hasGroup = 0, false
	}
	err = multierr.Append(err, h.releaseSubscription())
	h.bound = nil

	if h.state == StateReady {
		h.log.Info("Profiling backend shut down")
	}
	h.state = StateUnavailable
	return err
}

// Begin restarts the counter window at kernel start when the backend
// samples over windows. Other backends need nothing here.
func (h *Harvester) Begin(kernel string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.state != StateReady {
		return
	}
	wm, ok := h.backend.(WindowMarker)
	if !ok {
		return
	}
	if err := wm.MarkWindow(h.group); err != nil {
		h.readFailed(kernel, "Failed to restart counter window", fmt.Errorf("failed to mark window: %w", err))
	}
}

// Read enables the group, reads every bound counter and merges the
// categorized values and derived percentages into m. Failures leave m's
// counter fields untouched. Only ErrBackendLost changes the state.
func (h *Harvester) Read(m *KernelMetrics) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.state != StateReady {
		return
	}

	raw, ok, err := h.readGroup()
	if err != nil {
		h.readFailed(m.KernelName, "Counter read failed", err)
		return
	}
	if !ok {
		return
	}

	m.ElapsedCycles = raw.ElapsedCycles
	m.BytesRead = raw.DRAMBytesRead
	m.BytesWritten = raw.DRAMBytesWritten
	m.SMUtilizationPercent = raw.SMUtilizationPercent
	m.OccupancyPercent = raw.OccupancyPercent

	attrs, err := h.deviceAttributes()
	if err != nil {
		h.readFailed(m.KernelName, "Device attributes unavailable, skipping throughput", err)
		return
	}
	d := Derive(raw, attrs)
	m.DRAMThroughputPercent = d.DRAMThroughputPercent
	m.L2ThroughputPercent = d.L2ThroughputPercent
}

// readFailed logs a per-kernel miss. A lost backend is released for good.
func (h *Harvester) readFailed(kernel, msg string, err error) {
	if !errors.Is(err, ErrBackendLost) {
		h.log.Debug(msg, zap.String("kernel", kernel), zap.Error(err))
		return
	}
	h.log.Warn("Profiling backend lost, collecting durations only",
		zap.String("kernel", kernel), zap.Error(err))
	if sErr := h.shutdown(); sErr != nil {
		h.log.Debug("Errors while releasing backend", zap.Error(sErr))
	}
}

// readGroup runs enable → count → ids → read → disable. ok is false when
// the group has no bound counters.
func (h *Harvester) readGroup() (raw RawCounters, ok bool, err error) {
	if err := h.backend.Enable(h.group); err != nil {
		return raw, false, fmt.Errorf("failed to enable counter group: %w", err)
	}
	defer func() {
		if dErr := h.backend.Disable(h.group); dErr != nil {
			err = multierr.Append(err, fmt.Errorf("failed to disable counter group: %w", dErr))
			ok = false
		}
	}()

	n, err := h.backend.EventCount(h.group)
	if err != nil {
		return raw, false, fmt.Errorf("failed to count counters: %w", err)
	}
	if n == 0 {
		return raw, false, nil
	}

	ids, err := h.backend.EventIDs(h.group)
	if err != nil {
		return raw, false, fmt.Errorf("failed to list counters: %w", err)
	}
	values, err := h.backend.ReadAll(h.group)
	if err != nil {
		return raw, false, fmt.Errorf("failed to read counters: %w", err)
	}
	if len(values) != len(ids) {
		return raw, false, fmt.Errorf("read %d values for %d counters", len(values), len(ids))
	}

	for i, id := range ids {
		name, err := h.backend.EventName(id)
		if err != nil {
			h.log.Debug("Failed to resolve counter name", zap.Uint32("id", uint32(id)), zap.Error(err))
			continue
		}
		raw.accumulate(name, values[i])
	}
	return raw, true, nil
}

func (h *Harvester) deviceAttributes() (DeviceAttributes, error) {
	var a DeviceAttributes
	for _, q := range []struct {
		attr DeviceAttribute
		dst  *int
	}{
		{AttrMemoryClockKHz, &a.MemoryClockKHz},
		{AttrMemoryBusWidthBits, &a.MemoryBusWidthBits},
		{AttrCoreClockKHz, &a.CoreClockKHz},
	} {
		v, err := h.backend.DeviceAttribute(h.device, q.attr)
		if err != nil {
			return a, fmt.Errorf("failed to query %s: %w", q.attr, err)
		}
		*q.dst = v
	}
	return a, nil
}
