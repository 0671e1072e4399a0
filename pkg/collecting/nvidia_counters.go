package collecting

import (
	"KernelProfiler/pkg/telemetry"
	"fmt"
	"time"

	"github.com/NVIDIA/go-nvml/pkg/nvml"
)

// nvidiaCounter derives one counter value from NVML. since is how long
// the group's sampling window has been open.
type nvidiaCounter struct {
	name   string
	sample func(device nvml.Device, since time.Duration) (uint64, nvml.Return)
}

// nvidiaCounters are the counter names NVML can answer. The EventID of a
// counter is its index here.
var nvidiaCounters = []nvidiaCounter{
	{
		name: telemetry.CounterElapsedCycles,
		sample: func(device nvml.Device, since time.Duration) (uint64, nvml.Return) {
			mhz, ret := device.GetClockInfo(nvml.CLOCK_SM)
			// MHz × µs = cycles
			return uint64(mhz) * uint64(since.Microseconds()), ret
		},
	},
	{
		name: telemetry.CounterSMThroughput,
		sample: func(device nvml.Device, _ time.Duration) (uint64, nvml.Return) {
			util, ret := device.GetUtilizationRates()
			return uint64(util.Gpu), ret
		},
	},
}

// counterGroup samples over the window since the last MarkWindow or read,
// or since creation, so a read at kernel stop spans the kernel.
type counterGroup struct {
	events     []telemetry.EventID
	enabled    bool
	windowFrom time.Time
}

func (n *NvidiaBackend) CreateGroup(sub telemetry.Subscription, dev telemetry.Device) (telemetry.Group, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, ok := n.subs[sub]; !ok {
		return 0, fmt.Errorf("unknown subscription %d", sub)
	}
	if _, err := n.deviceFor(dev); err != nil {
		return 0, err
	}
	id := telemetry.Group(n.nextGroup.Add(1))
	n.groups[id] = &counterGroup{windowFrom: time.Now()}
	return id, nil
}

func (n *NvidiaBackend) DestroyGroup(g telemetry.Group) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, ok := n.groups[g]; !ok {
		return fmt.Errorf("unknown group %d", g)
	}
	delete(n.groups, g)
	return nil
}

func (n *NvidiaBackend) EventID(dev telemetry.Device, name string) (telemetry.EventID, error) {
	n.mu.Lock()
	_, err := n.deviceFor(dev)
	n.mu.Unlock()
	if err != nil {
		return 0, err
	}
	for i, c := range nvidiaCounters {
		if c.name == name {
			return telemetry.EventID(i), nil
		}
	}
	return 0, fmt.Errorf("%s: %w", name, telemetry.ErrCounterUnavailable)
}

func (n *NvidiaBackend) EventName(id telemetry.EventID) (string, error) {
	if int(id) >= len(nvidiaCounters) {
		return "", fmt.Errorf("unknown event %d: %w", id, telemetry.ErrCounterUnavailable)
	}
	return nvidiaCounters[id].name, nil
}

func (n *NvidiaBackend) group(g telemetry.Group) (*counterGroup, error) {
	grp, ok := n.groups[g]
	if !ok {
		return nil, fmt.Errorf("unknown group %d", g)
	}
	return grp, nil
}

func (n *NvidiaBackend) AddEvent(g telemetry.Group, id telemetry.EventID) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	grp, err := n.group(g)
	if err != nil {
		return err
	}
	if int(id) >= len(nvidiaCounters) {
		return fmt.Errorf("unknown event %d: %w", id, telemetry.ErrCounterUnavailable)
	}
	grp.events = append(grp.events, id)
	return nil
}

func (n *NvidiaBackend) Enable(g telemetry.Group) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	grp, err := n.group(g)
	if err != nil {
		return err
	}
	grp.enabled = true
	return nil
}

func (n *NvidiaBackend) Disable(g telemetry.Group) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	grp, err := n.group(g)
	if err != nil {
		return err
	}
	grp.enabled = false
	return nil
}

func (n *NvidiaBackend) EventCount(g telemetry.Group) (int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	grp, err := n.group(g)
	if err != nil {
		return 0, err
	}
	return len(grp.events), nil
}

func (n *NvidiaBackend) EventIDs(g telemetry.Group) ([]telemetry.EventID, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	grp, err := n.group(g)
	if err != nil {
		return nil, err
	}
	return append([]telemetry.EventID(nil), grp.events...), nil
}

var _ telemetry.WindowMarker = (*NvidiaBackend)(nil)

// MarkWindow restarts the group's sampling window.
func (n *NvidiaBackend) MarkWindow(g telemetry.Group) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	grp, err := n.group(g)
	if err != nil {
		return err
	}
	grp.windowFrom = time.Now()
	return nil
}

// ReadAll samples every counter in the group and restarts its window.
func (n *NvidiaBackend) ReadAll(g telemetry.Group) ([]uint64, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	grp, err := n.group(g)
	if err != nil {
		return nil, err
	}
	if !grp.enabled {
		return nil, fmt.Errorf("group %d is not enabled", g)
	}

	now := time.Now()
	since := now.Sub(grp.windowFrom)
	values := make([]uint64, len(grp.events))
	for i, id := range grp.events {
		v, ret := nvidiaCounters[id].sample(n.device, since)
		if err := nvmlError(ret); err != nil {
			return nil, fmt.Errorf("failed to sample %s: %w", nvidiaCounters[id].name, err)
		}
		values[i] = v
	}
	grp.windowFrom = now
	return values, nil
}
