package telemetry

import "math"

const (
	// transfers per memory clock (double data rate)
	dramTransfersPerClock = 2
	bitsPerByte           = 8
	// kHz × bytes → GB/s
	kHzBytesPerGB = 1e6
	// L2 is assumed to sustain twice the DRAM bandwidth
	l2PeakOverDRAM = 2
	maxPercent     = 100
)

// RawCounters holds categorized counter totals for one read.
type RawCounters struct {
	ElapsedCycles        uint64
	DRAMBytesRead        uint64
	DRAMBytesWritten     uint64
	L2BytesRead          uint64
	L2BytesWritten       uint64
	SMUtilizationPercent float64
	OccupancyPercent     float64
}

// DeviceAttributes are the device capabilities used by Derive.
type DeviceAttributes struct {
	MemoryClockKHz     int
	MemoryBusWidthBits int
	CoreClockKHz       int
}

func (a DeviceAttributes) valid() bool {
	return a.MemoryClockKHz > 0 && a.MemoryBusWidthBits > 0 && a.CoreClockKHz > 0
}

// Derived holds the bandwidth percentages computed by Derive.
type Derived struct {
	DRAMThroughputPercent float64
	L2ThroughputPercent   float64
}

// PeakDRAMBandwidthGBs is the theoretical DRAM bandwidth in GB/s.
func PeakDRAMBandwidthGBs(a DeviceAttributes) float64 {
	return float64(a.MemoryClockKHz) * dramTransfersPerClock * float64(a.MemoryBusWidthBits) / bitsPerByte / kHzBytesPerGB
}

// ElapsedSeconds converts device cycles to seconds at the core clock.
func ElapsedSeconds(cycles uint64, a DeviceAttributes) float64 {
	if a.CoreClockKHz <= 0 {
		return 0
	}
	return float64(cycles) / (float64(a.CoreClockKHz) * 1000)
}

// Derive computes throughput percentages. Both stay zero when the elapsed
// time is not positive or an attribute is missing; the L2 percentage also
// stays zero when no L2 traffic was counted.
func Derive(raw RawCounters, a DeviceAttributes) Derived {
	var d Derived
	if !a.valid() {
		return d
	}
	seconds := ElapsedSeconds(raw.ElapsedCycles, a)
	if seconds <= 0 {
		return d
	}

	peakDRAM := PeakDRAMBandwidthGBs(a) * 1e9
	d.DRAMThroughputPercent = throughputPercent(float64(raw.DRAMBytesRead)+float64(raw.DRAMBytesWritten), seconds, peakDRAM)

	if l2Bytes := float64(raw.L2BytesRead) + float64(raw.L2BytesWritten); l2Bytes > 0 {
		d.L2ThroughputPercent = throughputPercent(l2Bytes, seconds, peakDRAM*l2PeakOverDRAM)
	}
	return d
}

func throughputPercent(bytes, seconds, peakBytesPerSec float64) float64 {
	if peakBytesPerSec <= 0 {
		return 0
	}
	achieved := bytes / seconds
	return math.Min(maxPercent, achieved/peakBytesPerSec*100)
}
