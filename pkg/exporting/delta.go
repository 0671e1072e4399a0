package exporting

import (
	"KernelProfiler/pkg/utils"
)

// FieldBaselineRunID names the baseline run in a delta record.
const FieldBaselineRunID = "baselineRunId"

// identity fields are copied from the current record, never subtracted.
var identityFields = map[string]bool{
	FieldKernelName: true,
	FieldStream:     true,
	FieldTimestamp:  true,
	FieldRunID:      true,
	FieldHostname:   true,
	FieldGPUName:    true,
}

// DeltaRecord returns current minus baseline for every numeric field.
// Non-numeric fields and fields missing from baseline keep current's value.
func DeltaRecord(baseline, current Record) Record {
	if baseline == nil || current == nil {
		return current
	}

	result := make(Record, len(current)+1)
	if id, ok := baseline[FieldRunID]; ok {
		result[FieldBaselineRunID] = id
	}
	for key, cur := range current {
		base, ok := baseline[key]
		if !ok || identityFields[key] {
			result[key] = cur
			continue
		}
		if delta, ok := computeDelta(base, cur); ok {
			result[key] = delta
		} else {
			result[key] = cur
		}
	}
	return result
}

func computeDelta(base, cur interface{}) (float64, bool) {
	b, ok := utils.ToFloat64Ok(base)
	if !ok {
		return 0, false
	}
	c, ok := utils.ToFloat64Ok(cur)
	if !ok {
		return 0, false
	}
	return c - b, true
}

// DiffRecords pairs records by stream and kernel name and returns one delta
// per kernel present in both runs, in current's order. When a kernel occurs
// more than once, the last occurrence in each run is used.
func DiffRecords(baseline, current []Record) []Record {
	byKey := make(map[[2]string]Record, len(baseline))
	for _, r := range baseline {
		byKey[diffKey(r)] = r
	}

	latest := make(map[[2]string]int, len(current))
	order := make([][2]string, 0, len(current))
	for i, r := range current {
		k := diffKey(r)
		if _, seen := latest[k]; !seen {
			order = append(order, k)
		}
		latest[k] = i
	}

	var out []Record
	for _, k := range order {
		base, ok := byKey[k]
		if !ok {
			continue
		}
		out = append(out, DeltaRecord(base, current[latest[k]]))
	}
	return out
}

func diffKey(r Record) [2]string {
	return [2]string{utils.ToString(r[FieldStream]), utils.ToString(r[FieldKernelName])}
}
