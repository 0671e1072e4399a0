package collecting

import (
	"KernelProfiler/pkg/telemetry"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/NVIDIA/go-nvml/pkg/nvml"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// NvidiaBackend serves the profiling backend contract from NVML. NVML has
// no hardware counter groups, so the counters it can answer are sampled
// from clocks and utilization (see nvidiaCounters); every other name is
// reported as unavailable.
type NvidiaBackend struct {
	deviceIndex int
	log         *zap.Logger

	mu          sync.Mutex
	initialized bool
	device      nvml.Device

	nextSub atomic.Uint64
	subs    map[telemetry.Subscription]*eventSubscription

	nextGroup atomic.Uint64
	groups    map[telemetry.Group]*counterGroup
}

var _ telemetry.Backend = (*NvidiaBackend)(nil)

func NewNvidiaBackend(deviceIndex int, log *zap.Logger) *NvidiaBackend {
	if log == nil {
		log = zap.NewNop()
	}
	return &NvidiaBackend{
		deviceIndex: deviceIndex,
		log:         log,
		subs:        make(map[telemetry.Subscription]*eventSubscription),
		groups:      make(map[telemetry.Group]*counterGroup),
	}
}

func (n *NvidiaBackend) init() error {
	if n.initialized {
		return nil
	}
	if ret := nvml.Init(); !errors.Is(ret, nvml.SUCCESS) {
		return fmt.Errorf("failed to initialize NVML: %s: %w", ret.Error(), telemetry.ErrNoDevice)
	}

	count, ret := nvml.DeviceGetCount()
	if !errors.Is(ret, nvml.SUCCESS) || count == 0 {
		nvml.Shutdown()
		return fmt.Errorf("no NVIDIA devices found: %w", telemetry.ErrNoDevice)
	}
	if n.deviceIndex < 0 || n.deviceIndex >= count {
		nvml.Shutdown()
		return fmt.Errorf("device %d out of range (%d devices): %w", n.deviceIndex, count, telemetry.ErrNoDevice)
	}

	device, ret := nvml.DeviceGetHandleByIndex(n.deviceIndex)
	if !errors.Is(ret, nvml.SUCCESS) {
		nvml.Shutdown()
		return fmt.Errorf("failed to get device %d: %s: %w", n.deviceIndex, ret.Error(), telemetry.ErrNoDevice)
	}

	n.device = device
	n.initialized = true
	n.log.Debug("NVML initialized", zap.Int("device", n.deviceIndex), zap.Int("count", count))
	return nil
}

// CurrentDevice initializes NVML on first use and returns the configured
// device index.
func (n *NvidiaBackend) CurrentDevice() (telemetry.Device, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.init(); err != nil {
		return 0, err
	}
	return telemetry.Device(n.deviceIndex), nil
}

func (n *NvidiaBackend) deviceFor(dev telemetry.Device) (nvml.Device, error) {
	if !n.initialized {
		return nil, fmt.Errorf("NVML not initialized: %w", telemetry.ErrNoDevice)
	}
	if int(dev) != n.deviceIndex {
		return nil, fmt.Errorf("unknown device %d: %w", dev, telemetry.ErrNoDevice)
	}
	return n.device, nil
}

// DeviceAttribute answers the clock and bus queries from the device's
// maximum clocks. NVML reports MHz; the contract is kHz.
func (n *NvidiaBackend) DeviceAttribute(dev telemetry.Device, attr telemetry.DeviceAttribute) (int, error) {
	n.mu.Lock()
	device, err := n.deviceFor(dev)
	n.mu.Unlock()
	if err != nil {
		return 0, err
	}

	var (
		v   uint32
		ret nvml.Return
	)
	switch attr {
	case telemetry.AttrMemoryClockKHz:
		v, ret = device.GetMaxClockInfo(nvml.CLOCK_MEM)
		v *= 1000
	case telemetry.AttrCoreClockKHz:
		v, ret = device.GetMaxClockInfo(nvml.CLOCK_SM)
		v *= 1000
	case telemetry.AttrMemoryBusWidthBits:
		v, ret = device.GetMemoryBusWidth()
	default:
		return 0, fmt.Errorf("unsupported attribute %s", attr)
	}
	if err := nvmlError(ret); err != nil {
		return 0, fmt.Errorf("failed to query %s: %w", attr, err)
	}
	return int(v), nil
}

// Close stops every event loop, drops all groups and shuts NVML down.
func (n *NvidiaBackend) Close() error {
	n.mu.Lock()
	subs := make([]*eventSubscription, 0, len(n.subs))
	for id, s := range n.subs {
		subs = append(subs, s)
		delete(n.subs, id)
	}
	n.groups = make(map[telemetry.Group]*counterGroup)
	n.mu.Unlock()

	var err error
	for _, s := range subs {
		err = multierr.Append(err, s.stop())
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if n.initialized {
		if ret := nvml.Shutdown(); !errors.Is(ret, nvml.SUCCESS) {
			err = multierr.Append(err, fmt.Errorf("failed to shut down NVML: %s", ret.Error()))
		}
		n.initialized = false
	}
	return err
}

// nvmlError maps NVML return codes onto the backend's error contract.
func nvmlError(ret nvml.Return) error {
	switch {
	case errors.Is(ret, nvml.SUCCESS):
		return nil
	case errors.Is(ret, nvml.ERROR_GPU_IS_LOST),
		errors.Is(ret, nvml.ERROR_UNINITIALIZED),
		errors.Is(ret, nvml.ERROR_DRIVER_NOT_LOADED):
		return fmt.Errorf("%s: %w", ret.Error(), telemetry.ErrBackendLost)
	case errors.Is(ret, nvml.ERROR_NOT_SUPPORTED):
		return fmt.Errorf("%s: %w", ret.Error(), telemetry.ErrCounterUnavailable)
	default:
		return errors.New(ret.Error())
	}
}

func capture[T any](call func() (T, nvml.Return), dst *T) bool {
	if val, ret := call(); errors.Is(ret, nvml.SUCCESS) {
		*dst = val
		return true
	}
	return false
}

func capture2[T1, T2 any](call func() (T1, T2, nvml.Return), dst1 *T1, dst2 *T2) bool {
	if val1, val2, ret := call(); errors.Is(ret, nvml.SUCCESS) {
		*dst1, *dst2 = val1, val2
		return true
	}
	return false
}

func captureInt[T any](call func() (T, nvml.Return), dst *int, conv func(T) int) bool {
	if val, ret := call(); errors.Is(ret, nvml.SUCCESS) {
		*dst = conv(val)
		return true
	}
	return false
}

func enumToString[T comparable](val T, mapping map[T]string) string {
	if str, ok := mapping[val]; ok {
		return str
	}
	return fmt.Sprintf("Unknown(%v)", val)
}
