package telemetry

import (
	"sync"
	"sync/atomic"
	"testing"
)

type countingHandler struct{ n atomic.Int64 }

func (h *countingHandler) HandleCallback(CallbackEvent) { h.n.Add(1) }

func TestRegistryRouting(t *testing.T) {
	reg := NewRegistry()
	fb := newFakeBackend()
	a, b := &countingHandler{}, &countingHandler{}
	reg.Register(fb, 1, a)
	reg.Register(fb, 2, b)

	cb := reg.Trampoline(fb)
	cb(1, CallbackEvent{Kind: "x"})
	cb(2, CallbackEvent{Kind: "x"})
	cb(2, CallbackEvent{Kind: "x"})
	cb(3, CallbackEvent{Kind: "x"})

	if a.n.Load() != 1 || b.n.Load() != 2 {
		t.Errorf("Routed a=%d b=%d; want 1/2", a.n.Load(), b.n.Load())
	}

	reg.Unregister(fb, 2)
	cb(2, CallbackEvent{Kind: "x"})
	if b.n.Load() != 2 {
		t.Errorf("Unregistered owner received event, count=%d", b.n.Load())
	}
	if _, ok := reg.Lookup(fb, 2); ok {
		t.Error("Lookup found unregistered subscription")
	}
	if reg.Len() != 1 {
		t.Errorf("Len = %d; want 1", reg.Len())
	}
}

func TestRegistryConcurrentAccess(t *testing.T) {
	reg := NewRegistry()
	fb := newFakeBackend()
	cb := reg.Trampoline(fb)
	h := &countingHandler{}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(sub Subscription) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				reg.Register(fb, sub, h)
				cb(sub, CallbackEvent{})
				reg.Unregister(fb, sub)
				cb(sub, CallbackEvent{})
			}
		}(Subscription(i + 1))
	}
	wg.Wait()

	if got := h.n.Load(); got != 800 {
		t.Errorf("Delivered %d events; want 800", got)
	}
	if reg.Len() != 0 {
		t.Errorf("Len = %d; want 0", reg.Len())
	}
}

func TestRegistrySameHandleDifferentBackends(t *testing.T) {
	reg := NewRegistry()
	fa, fb := newFakeBackend(), newFakeBackend()
	a, b := &countingHandler{}, &countingHandler{}
	reg.Register(fa, 1, a)
	reg.Register(fb, 1, b)
	if reg.Len() != 2 {
		t.Fatalf("Len = %d; want 2", reg.Len())
	}

	reg.Trampoline(fa)(1, CallbackEvent{Kind: "x"})
	if a.n.Load() != 1 || b.n.Load() != 0 {
		t.Errorf("Routed a=%d b=%d; want 1/0", a.n.Load(), b.n.Load())
	}

	reg.Unregister(fa, 1)
	reg.Trampoline(fb)(1, CallbackEvent{Kind: "x"})
	if a.n.Load() != 1 || b.n.Load() != 1 {
		t.Errorf("After unregistering a, routed a=%d b=%d; want 1/1", a.n.Load(), b.n.Load())
	}
}
