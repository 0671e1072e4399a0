package collecting

import (
	"KernelProfiler/pkg/utils"
	"testing"

	"go.uber.org/zap"
)

func BenchmarkCollectHostInfo(b *testing.B) {
	for i := 0; i < b.N; i++ {
		CollectHostInfo("bench")
	}
}

func BenchmarkCollector_StartStop(b *testing.B) {
	cfg := utils.NewConfig()
	m := NewManagerWithBackend(cfg, nil, zap.NewNop())
	defer m.Close()
	c := m.Collector(cfg.Stream)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.StartCollection("k")
		c.StopCollection()
	}
}

func BenchmarkManager_Records(b *testing.B) {
	cfg := utils.NewConfig()
	m := NewManagerWithBackend(cfg, nil, zap.NewNop())
	defer m.Close()
	for _, stream := range []string{"w0", "w1", "w2", "w3"} {
		c := m.Collector(stream)
		for _, k := range []string{"gemm", "softmax", "layernorm"} {
			c.StartCollection(k)
			c.StopCollection()
		}
	}
	m.CollectStatic()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = m.Records()
	}
}
