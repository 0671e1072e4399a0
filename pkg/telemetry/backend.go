package telemetry

import "errors"

var (
	// ErrNoDevice means no device context exists and none could be created.
	ErrNoDevice = errors.New("no device context")
	// ErrCounterUnavailable means a named counter does not exist on the device.
	ErrCounterUnavailable = errors.New("counter unavailable")
	// ErrNoCounters means none of the requested counters could be added.
	ErrNoCounters = errors.New("no counters available")
	// ErrBackendLost marks failures after which the backend cannot recover,
	// such as a lost device or an unloaded driver.
	ErrBackendLost = errors.New("profiling backend lost")
)

// Opaque handles issued by a Backend.
type (
	Device       int
	Subscription uint64
	Group        uint64
	EventID      uint32
)

// Domain selects which class of driver callbacks a subscription receives.
type Domain int

const (
	// DomainRuntime covers runtime-level driver notifications.
	DomainRuntime Domain = iota + 1
)

// DeviceAttribute names a device capability the derivation needs.
type DeviceAttribute int

const (
	AttrMemoryClockKHz DeviceAttribute = iota + 1
	AttrMemoryBusWidthBits
	AttrCoreClockKHz
)

func (a DeviceAttribute) String() string {
	switch a {
	case AttrMemoryClockKHz:
		return "memory_clock_khz"
	case AttrMemoryBusWidthBits:
		return "memory_bus_width_bits"
	case AttrCoreClockKHz:
		return "core_clock_khz"
	default:
		return "unknown"
	}
}

// CallbackEvent is one notification delivered by the driver.
type CallbackEvent struct {
	Domain Domain
	Kind   string
	Data   uint64
}

// Callback receives driver notifications on a thread the backend controls.
type Callback func(sub Subscription, ev CallbackEvent)

// Backend is the accelerator driver's profiling facility. The harvester
// owns every handle it obtains between Initialize and Shutdown.
type Backend interface {
	CurrentDevice() (Device, error)

	Subscribe(cb Callback) (Subscription, error)
	Unsubscribe(sub Subscription) error
	EnableDomain(sub Subscription, domain Domain) error

	CreateGroup(sub Subscription, dev Device) (Group, error)
	DestroyGroup(g Group) error
	EventID(dev Device, name string) (EventID, error)
	AddEvent(g Group, id EventID) error

	Enable(g Group) error
	Disable(g Group) error
	EventCount(g Group) (int, error)
	EventIDs(g Group) ([]EventID, error)
	// ReadAll returns one value per id from EventIDs, in the same order.
	ReadAll(g Group) ([]uint64, error)
	EventName(id EventID) (string, error)

	DeviceAttribute(dev Device, attr DeviceAttribute) (int, error)
}

// WindowMarker is implemented by backends whose counters accumulate over
// a sampling window rather than while the group is enabled. MarkWindow
// restarts the group's window; the collector calls it at kernel start.
type WindowMarker interface {
	MarkWindow(g Group) error
}
