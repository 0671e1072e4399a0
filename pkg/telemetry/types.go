// Package telemetry times accelerator kernels and turns hardware
// performance counters into throughput and occupancy percentages.
//
// A Collector brackets a kernel invocation with StartCollection and
// StopCollection. When the profiling backend is available, the stop also
// reads the counter group through the Harvester and derives bandwidth
// percentages from the device's clock and bus attributes. Every failure
// degrades to fewer metrics: a zero field means "not available".
package telemetry

// KernelMetrics is the latest snapshot recorded for one kernel name.
// Zero-valued derived fields mean the value was not available.
type KernelMetrics struct {
	KernelName            string  `json:"kernelName"`
	DurationUs            float64 `json:"durationUs"`
	ElapsedCycles         uint64  `json:"elapsedCycles"`
	BytesRead             uint64  `json:"bytesRead"`
	BytesWritten          uint64  `json:"bytesWritten"`
	DRAMThroughputPercent float64 `json:"dramThroughputPercent"`
	L2ThroughputPercent   float64 `json:"l2ThroughputPercent"`
	SMUtilizationPercent  float64 `json:"smUtilizationPercent"`
	OccupancyPercent      float64 `json:"occupancyPercent"`
}

// BackendState is the lifecycle state of the counter backend.
type BackendState int

const (
	StateUninitialized BackendState = iota
	StateReady
	StateUnavailable
)

func (s BackendState) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateReady:
		return "ready"
	case StateUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}
