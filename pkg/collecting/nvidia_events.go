package collecting

import (
	"KernelProfiler/pkg/telemetry"
	"errors"
	"fmt"
	"sync"

	"github.com/NVIDIA/go-nvml/pkg/nvml"
	"go.uber.org/zap"
)

// eventWaitMs bounds each blocking wait so the loop can observe stop.
const eventWaitMs = 100

// Driver events forwarded as runtime callbacks.
var runtimeEventKinds = []struct {
	mask uint64
	kind string
}{
	{uint64(nvml.EventTypeXidCriticalError), "xid"},
	{uint64(nvml.EventTypeClock), "clock"},
	{uint64(nvml.EventTypePState), "pstate"},
}

type eventSubscription struct {
	set     nvml.EventSet
	cb      telemetry.Callback
	enabled bool
	done    chan struct{}
	wg      sync.WaitGroup
}

func (s *eventSubscription) stop() error {
	if s.enabled {
		close(s.done)
		s.wg.Wait()
		s.enabled = false
	}
	if ret := s.set.Free(); !errors.Is(ret, nvml.SUCCESS) {
		return fmt.Errorf("failed to free event set: %s", ret.Error())
	}
	return nil
}

// Subscribe creates an NVML event set; callbacks start once the runtime
// domain is enabled.
func (n *NvidiaBackend) Subscribe(cb telemetry.Callback) (telemetry.Subscription, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.init(); err != nil {
		return 0, err
	}

	set, ret := nvml.EventSetCreate()
	if err := nvmlError(ret); err != nil {
		return 0, fmt.Errorf("failed to create event set: %w", err)
	}

	id := telemetry.Subscription(n.nextSub.Add(1))
	n.subs[id] = &eventSubscription{set: set, cb: cb, done: make(chan struct{})}
	return id, nil
}

func (n *NvidiaBackend) Unsubscribe(sub telemetry.Subscription) error {
	n.mu.Lock()
	s, ok := n.subs[sub]
	delete(n.subs, sub)
	n.mu.Unlock()
	if !ok {
		return fmt.Errorf("unknown subscription %d", sub)
	}
	return s.stop()
}

// EnableDomain registers the device's supported runtime events with the
// subscription's event set and starts delivering them.
func (n *NvidiaBackend) EnableDomain(sub telemetry.Subscription, domain telemetry.Domain) error {
	if domain != telemetry.DomainRuntime {
		return fmt.Errorf("unsupported callback domain %d", domain)
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	s, ok := n.subs[sub]
	if !ok {
		return fmt.Errorf("unknown subscription %d", sub)
	}
	if s.enabled {
		return nil
	}

	supported, ret := n.device.GetSupportedEventTypes()
	if err := nvmlError(ret); err != nil {
		return fmt.Errorf("failed to query supported events: %w", err)
	}
	var mask uint64
	for _, k := range runtimeEventKinds {
		mask |= k.mask
	}
	mask &= supported
	if mask == 0 {
		return errors.New("device supports no runtime events")
	}
	if err := nvmlError(n.device.RegisterEvents(mask, s.set)); err != nil {
		return fmt.Errorf("failed to register events: %w", err)
	}

	s.enabled = true
	s.wg.Add(1)
	go n.eventLoop(sub, s)
	return nil
}

func (n *NvidiaBackend) eventLoop(sub telemetry.Subscription, s *eventSubscription) {
	defer s.wg.Done()
	for {
		select {
		case <-s.done:
			return
		default:
		}

		data, ret := s.set.Wait(eventWaitMs)
		if errors.Is(ret, nvml.ERROR_TIMEOUT) {
			continue
		}
		if err := nvmlError(ret); err != nil {
			n.log.Debug("Event loop stopped", zap.Uint64("subscription", uint64(sub)), zap.Error(err))
			return
		}
		s.cb(sub, telemetry.CallbackEvent{
			Domain: telemetry.DomainRuntime,
			Kind:   eventKind(data.EventType),
			Data:   data.EventData,
		})
	}
}

func eventKind(eventType uint64) string {
	for _, k := range runtimeEventKinds {
		if eventType&k.mask != 0 {
			return k.kind
		}
	}
	return fmt.Sprintf("event(%#x)", eventType)
}
