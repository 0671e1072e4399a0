package telemetry

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// fakeBackend is an in-memory Backend. Counters present in values are
// known to the device; everything else is ErrCounterUnavailable.
type fakeBackend struct {
	mu sync.Mutex

	values map[string]uint64
	attrs  map[DeviceAttribute]int

	deviceErr    error
	subscribeErr error
	domainErr    error
	groupErr     error
	enableErr    error
	disableErr   error
	countErr     error
	idsErr       error
	readErr      error
	attrErr      error

	// countOverride, when set, replaces the group's real counter count.
	countOverride *int

	nextSub   Subscription
	nextGroup Group
	callbacks map[Subscription]Callback
	groups    map[Group][]EventID
	names     []string

	subscribed   int
	unsubscribed int
	created      int
	destroyed    int
	enabled      int
	disabled     int
	reads        int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		values: map[string]uint64{
			CounterElapsedCycles: 1_000_000,
			CounterDRAMRead:      1_000_000,
			CounterDRAMWrite:     1_000_000,
		},
		attrs: map[DeviceAttribute]int{
			AttrMemoryClockKHz:     1_000_000,
			AttrMemoryBusWidthBits: 256,
			AttrCoreClockKHz:       1_000_000,
		},
		callbacks: make(map[Subscription]Callback),
		groups:    make(map[Group][]EventID),
	}
}

func (f *fakeBackend) CurrentDevice() (Device, error) {
	if f.deviceErr != nil {
		return 0, f.deviceErr
	}
	return 0, nil
}

func (f *fakeBackend) Subscribe(cb Callback) (Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subscribeErr != nil {
		return 0, f.subscribeErr
	}
	f.nextSub++
	f.subscribed++
	f.callbacks[f.nextSub] = cb
	return f.nextSub, nil
}

func (f *fakeBackend) Unsubscribe(sub Subscription) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.callbacks[sub]; !ok {
		return fmt.Errorf("unknown subscription %d", sub)
	}
	delete(f.callbacks, sub)
	f.unsubscribed++
	return nil
}

func (f *fakeBackend) EnableDomain(Subscription, Domain) error { return f.domainErr }

func (f *fakeBackend) CreateGroup(Subscription, Device) (Group, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.groupErr != nil {
		return 0, f.groupErr
	}
	f.nextGroup++
	f.created++
	f.groups[f.nextGroup] = nil
	return f.nextGroup, nil
}

func (f *fakeBackend) DestroyGroup(g Group) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.groups[g]; !ok {
		return fmt.Errorf("unknown group %d", g)
	}
	delete(f.groups, g)
	f.destroyed++
	return nil
}

func (f *fakeBackend) EventID(_ Device, name string) (EventID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.values[name]; !ok {
		return 0, ErrCounterUnavailable
	}
	for i, n := range f.names {
		if n == name {
			return EventID(i), nil
		}
	}
	f.names = append(f.names, name)
	return EventID(len(f.names) - 1), nil
}

func (f *fakeBackend) AddEvent(g Group, id EventID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.groups[g] = append(f.groups[g], id)
	return nil
}

func (f *fakeBackend) Enable(Group) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.enableErr != nil {
		return f.enableErr
	}
	f.enabled++
	return nil
}

func (f *fakeBackend) Disable(Group) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disabled++
	return f.disableErr
}

func (f *fakeBackend) EventCount(g Group) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.countErr != nil {
		return 0, f.countErr
	}
	if f.countOverride != nil {
		return *f.countOverride, nil
	}
	return len(f.groups[g]), nil
}

func (f *fakeBackend) EventIDs(g Group) ([]EventID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.idsErr != nil {
		return nil, f.idsErr
	}
	return append([]EventID(nil), f.groups[g]...), nil
}

func (f *fakeBackend) ReadAll(g Group) ([]uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	if f.readErr != nil {
		return nil, f.readErr
	}
	ids := f.groups[g]
	out := make([]uint64, len(ids))
	for i, id := range ids {
		out[i] = f.values[f.names[id]]
	}
	return out, nil
}

func (f *fakeBackend) EventName(id EventID) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if int(id) >= len(f.names) {
		return "", errors.New("unknown event")
	}
	return f.names[id], nil
}

func (f *fakeBackend) DeviceAttribute(_ Device, attr DeviceAttribute) (int, error) {
	if f.attrErr != nil {
		return 0, f.attrErr
	}
	return f.attrs[attr], nil
}

// fire delivers ev to every live subscription, as the driver would.
func (f *fakeBackend) fire(ev CallbackEvent) {
	f.mu.Lock()
	cbs := make(map[Subscription]Callback, len(f.callbacks))
	for sub, cb := range f.callbacks {
		cbs[sub] = cb
	}
	f.mu.Unlock()
	for sub, cb := range cbs {
		cb(sub, ev)
	}
}

func (f *fakeBackend) liveSubscriptions() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.callbacks)
}

func (f *fakeBackend) liveGroups() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.groups)
}

// fakeClock advances by step on every Now call.
type fakeClock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now
	c.now = c.now.Add(c.step)
	return t
}
