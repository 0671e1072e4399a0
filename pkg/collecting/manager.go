package collecting

import (
	"KernelProfiler/pkg/exporting"
	"KernelProfiler/pkg/telemetry"
	"KernelProfiler/pkg/utils"
	"encoding/json"
	"io"
	"sort"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// StaticInfo is recorded once per run and merged into every exported
// kernel record.
type StaticInfo struct {
	RunID         string      `json:"runId"`
	CollectedAt   int64       `json:"collectedAt"`
	Host          HostInfo    `json:"host"`
	GPU           *DeviceInfo `json:"gpu,omitempty"`
	BackendState  string      `json:"backendState"`
	BoundCounters []string    `json:"boundCounters,omitempty"`
}

type deviceInfoSource interface {
	DeviceInfo() (*DeviceInfo, error)
}

// Manager owns one Collector per stream. All collectors share the backend
// but keep their own subscription, counter group and snapshots.
type Manager struct {
	backend  telemetry.Backend
	counters []string
	runID    string
	hostname string
	log      *zap.Logger

	mu         sync.RWMutex
	collectors map[string]*telemetry.Collector
	static     *StaticInfo
	staticRec  exporting.Record
}

// NewManager builds the NVML backend unless cfg disables it.
func NewManager(cfg *utils.Config, log *zap.Logger) *Manager {
	var backend telemetry.Backend
	if !cfg.DisableNvidia {
		backend = NewNvidiaBackend(cfg.DeviceIndex, log)
	}
	return NewManagerWithBackend(cfg, backend, log)
}

// NewManagerWithBackend uses backend as is. A nil backend gives
// duration-only collectors.
func NewManagerWithBackend(cfg *utils.Config, backend telemetry.Backend, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	m := &Manager{
		backend:    backend,
		counters:   cfg.Counters,
		runID:      cfg.RunID,
		hostname:   cfg.Hostname,
		log:        log,
		collectors: make(map[string]*telemetry.Collector),
	}
	m.Collector(cfg.Stream)
	return m
}

// Collector returns the collector for stream, creating it on first use.
func (m *Manager) Collector(stream string) *telemetry.Collector {
	if stream == "" {
		stream = utils.DefaultStream
	}

	m.mu.RLock()
	c, ok := m.collectors[stream]
	m.mu.RUnlock()
	if ok {
		return c
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.collectors[stream]; ok {
		return c
	}
	c = telemetry.NewCollector(m.backend,
		telemetry.WithLogger(m.log.With(zap.String("stream", stream))),
		telemetry.WithCounters(m.counters))
	m.collectors[stream] = c
	m.log.Debug("Collector created", zap.String("stream", stream), zap.Stringer("backend", c.BackendState()))
	return c
}

// Lookup returns the collector for stream without creating one.
func (m *Manager) Lookup(stream string) (*telemetry.Collector, bool) {
	if stream == "" {
		stream = utils.DefaultStream
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.collectors[stream]
	return c, ok
}

// Streams returns the stream names in sorted order.
func (m *Manager) Streams() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.collectors))
	for name := range m.collectors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CollectStatic gathers host and device info and caches it for Records.
func (m *Manager) CollectStatic() *StaticInfo {
	s := &StaticInfo{
		RunID:       m.runID,
		CollectedAt: utils.GetTimestamp(),
		Host:        CollectHostInfo(m.hostname),
	}

	def := m.Collector(utils.DefaultStream)
	s.BackendState = def.BackendState().String()
	s.BoundCounters = def.BoundCounters()

	if src, ok := m.backend.(deviceInfoSource); ok {
		if info, err := src.DeviceInfo(); err != nil {
			m.log.Debug("Device info unavailable", zap.Error(err))
		} else {
			s.GPU = info
		}
	}

	m.mu.Lock()
	m.static = s
	m.staticRec = structToRecord(s)
	m.mu.Unlock()
	return s
}

// GetStatic returns the cached static info, collecting it if needed.
func (m *Manager) GetStatic() *StaticInfo {
	m.mu.RLock()
	s := m.static
	m.mu.RUnlock()
	if s == nil {
		s = m.CollectStatic()
	}
	return s
}

// StaticRecord returns the static info as an export record.
func (m *Manager) StaticRecord() exporting.Record {
	m.GetStatic()
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.staticRec
}

// Records returns one record per stored snapshot across all streams,
// merged with the static run info.
func (m *Manager) Records() []exporting.Record {
	m.GetStatic()

	var records []exporting.Record
	for _, stream := range m.Streams() {
		for _, km := range m.Collector(stream).Snapshots() {
			records = append(records, m.Record(stream, km))
		}
	}
	return records
}

// Record converts one snapshot into an export record.
func (m *Manager) Record(stream string, km telemetry.KernelMetrics) exporting.Record {
	rec := exporting.MetricsToRecord(km)
	rec[exporting.FieldStream] = stream
	rec[exporting.FieldTimestamp] = utils.GetTimestamp()

	m.mu.RLock()
	if m.staticRec != nil {
		rec[exporting.FieldRunID] = m.staticRec["runId"]
		rec[exporting.FieldHostname] = m.hostname
		if gpu, ok := m.staticRec["gpu"].(map[string]interface{}); ok {
			rec[exporting.FieldGPUName] = gpu["gpuName"]
		}
	}
	m.mu.RUnlock()
	return rec
}

// Close shuts down every collector, then the backend.
func (m *Manager) Close() error {
	m.mu.Lock()
	collectors := make([]*telemetry.Collector, 0, len(m.collectors))
	for _, c := range m.collectors {
		collectors = append(collectors, c)
	}
	m.mu.Unlock()

	var err error
	for _, c := range collectors {
		err = multierr.Append(err, c.Close())
	}
	if closer, ok := m.backend.(io.Closer); ok {
		err = multierr.Append(err, closer.Close())
	}
	return err
}

func structToRecord(v interface{}) exporting.Record {
	data, _ := json.Marshal(v)
	var result exporting.Record
	json.Unmarshal(data, &result)
	return result
}
