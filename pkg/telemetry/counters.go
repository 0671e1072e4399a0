package telemetry

import "strings"

// Counter names subscribed when no explicit list is configured.
const (
	CounterDRAMRead      = "dram__bytes_read.sum"
	CounterDRAMWrite     = "dram__bytes_write.sum"
	CounterL2Read        = "lts__t_bytes_read.sum"
	CounterL2Write       = "lts__t_bytes_write.sum"
	CounterElapsedCycles = "sm__cycles_elapsed.max"
	CounterWarpsActive   = "sm__warps_active.avg.pct_of_peak_sustained_active"
	CounterSMThroughput  = "sm__throughput.avg.pct_of_peak_sustained_elapsed"
)

// DefaultCounters returns a fresh copy of the built-in counter list.
func DefaultCounters() []string {
	return []string{
		CounterDRAMRead,
		CounterDRAMWrite,
		CounterL2Read,
		CounterL2Write,
		CounterElapsedCycles,
		CounterWarpsActive,
		CounterSMThroughput,
	}
}

type counterCategory int

const (
	categoryIgnored counterCategory = iota
	categoryElapsedCycles
	categoryOccupancy
	categorySMUtilization
	categoryDRAMRead
	categoryDRAMWrite
	categoryL2Read
	categoryL2Write
)

// classifyCounter maps a counter name to the field it feeds. Rules are
// checked in order; the first match wins.
func classifyCounter(name string) counterCategory {
	n := strings.ToLower(name)
	has := func(s string) bool { return strings.Contains(n, s) }

	switch {
	case has("cycles") && has("elapsed"):
		return categoryElapsedCycles
	case has("warps_active") || has("occupancy"):
		return categoryOccupancy
	case (has("sm__") || has("sm_")) && (has("throughput") || has("utilization")):
		return categorySMUtilization
	}

	dram := has("dram") || has("fbpa")
	l2 := has("l2") || has("lts")
	switch {
	case dram && has("read"):
		return categoryDRAMRead
	case dram && has("write"):
		return categoryDRAMWrite
	case l2 && has("read"):
		return categoryL2Read
	case l2 && has("write"):
		return categoryL2Write
	}
	return categoryIgnored
}

// accumulate folds one (name, value) pair into raw.
func (raw *RawCounters) accumulate(name string, value uint64) {
	switch classifyCounter(name) {
	case categoryElapsedCycles:
		raw.ElapsedCycles = value
	case categoryOccupancy:
		raw.OccupancyPercent = float64(value)
	case categorySMUtilization:
		raw.SMUtilizationPercent = float64(value)
	case categoryDRAMRead:
		raw.DRAMBytesRead += value
	case categoryDRAMWrite:
		raw.DRAMBytesWritten += value
	case categoryL2Read:
		raw.L2BytesRead += value
	case categoryL2Write:
		raw.L2BytesWritten += value
	}
}
