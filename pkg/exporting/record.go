package exporting

import (
	"KernelProfiler/pkg/telemetry"
	"KernelProfiler/pkg/utils"
	"encoding/json"
	"sort"
)

// Record field names. Kernel fields match the KernelMetrics JSON tags.
const (
	FieldKernelName     = "kernelName"
	FieldDurationUs     = "durationUs"
	FieldElapsedCycles  = "elapsedCycles"
	FieldBytesRead      = "bytesRead"
	FieldBytesWritten   = "bytesWritten"
	FieldDRAMThroughput = "dramThroughputPercent"
	FieldL2Throughput   = "l2ThroughputPercent"
	FieldSMUtilization  = "smUtilizationPercent"
	FieldOccupancy      = "occupancyPercent"

	FieldStream    = "stream"
	FieldTimestamp = utils.TimestampField
	FieldRunID     = "runId"
	FieldHostname  = "hostname"
	FieldGPUName   = "gpuName"
)

// leadingColumns come first in delimited and columnar output.
var leadingColumns = []string{
	FieldTimestamp,
	FieldRunID,
	FieldStream,
	FieldKernelName,
	FieldDurationUs,
	FieldDRAMThroughput,
	FieldL2Throughput,
	FieldSMUtilization,
	FieldOccupancy,
	FieldElapsedCycles,
	FieldBytesRead,
	FieldBytesWritten,
}

// MetricsToRecord converts a snapshot to a record with typed values.
func MetricsToRecord(m telemetry.KernelMetrics) Record {
	return Record{
		FieldKernelName:     m.KernelName,
		FieldDurationUs:     m.DurationUs,
		FieldElapsedCycles:  m.ElapsedCycles,
		FieldBytesRead:      m.BytesRead,
		FieldBytesWritten:   m.BytesWritten,
		FieldDRAMThroughput: m.DRAMThroughputPercent,
		FieldL2Throughput:   m.L2ThroughputPercent,
		FieldSMUtilization:  m.SMUtilizationPercent,
		FieldOccupancy:      m.OccupancyPercent,
	}
}

// RecordToMetrics reads a snapshot back from any format's record.
// Missing or malformed fields stay zero.
func RecordToMetrics(r Record) telemetry.KernelMetrics {
	return telemetry.KernelMetrics{
		KernelName:            utils.ToString(r[FieldKernelName]),
		DurationUs:            utils.ToFloat64(r[FieldDurationUs]),
		ElapsedCycles:         utils.ToUint64(r[FieldElapsedCycles]),
		BytesRead:             utils.ToUint64(r[FieldBytesRead]),
		BytesWritten:          utils.ToUint64(r[FieldBytesWritten]),
		DRAMThroughputPercent: utils.ToFloat64(r[FieldDRAMThroughput]),
		L2ThroughputPercent:   utils.ToFloat64(r[FieldL2Throughput]),
		SMUtilizationPercent:  utils.ToFloat64(r[FieldSMUtilization]),
		OccupancyPercent:      utils.ToFloat64(r[FieldOccupancy]),
	}
}

// FlattenRecord lifts nested maps into the top level and encodes slices
// as JSON strings, so every value fits in a single column. A nested key
// that collides with an existing one is prefixed with its parent key.
func FlattenRecord(r Record) Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	flattenInto(out, "", r)
	return out
}

func flattenInto(out Record, parent string, r Record) {
	keys := sortedKeys(r)
	var nested []string
	for _, k := range keys {
		switch v := r[k].(type) {
		case map[string]interface{}:
			nested = append(nested, k)
		case []interface{}, []string:
			if data, err := json.Marshal(v); err == nil {
				out[flatKey(out, parent, k)] = string(data)
			}
		default:
			out[flatKey(out, parent, k)] = v
		}
	}
	// Scalars claim their names before nested maps do.
	for _, k := range nested {
		flattenInto(out, flatKey(out, parent, k), r[k].(map[string]interface{}))
	}
}

func flatKey(out Record, parent, k string) string {
	if _, taken := out[k]; taken && parent != "" {
		return parent + "." + k
	}
	return k
}

// OrderedColumns returns the record's keys with the kernel columns first
// and the rest sorted.
func OrderedColumns(r Record) []string {
	cols := make([]string, 0, len(r))
	seen := make(map[string]bool, len(leadingColumns))
	for _, c := range leadingColumns {
		if _, ok := r[c]; ok {
			cols = append(cols, c)
			seen[c] = true
		}
	}
	for _, k := range sortedKeys(r) {
		if !seen[k] {
			cols = append(cols, k)
		}
	}
	return cols
}

func sortedKeys(r Record) []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
