package exporting

import (
	"KernelProfiler/pkg/telemetry"
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func sampleMetrics() []telemetry.KernelMetrics {
	return []telemetry.KernelMetrics{
		{
			KernelName:            "gemm",
			DurationUs:            250,
			ElapsedCycles:         1000000,
			BytesRead:             1000000,
			BytesWritten:          1000000,
			DRAMThroughputPercent: 3.125,
			SMUtilizationPercent:  80,
			OccupancyPercent:      55,
		},
		{
			KernelName: "softmax",
			DurationUs: 12.5,
		},
	}
}

func sampleRecords() []Record {
	var records []Record
	for i, m := range sampleMetrics() {
		r := MetricsToRecord(m)
		r[FieldStream] = "default"
		r[FieldRunID] = "run-1"
		r[FieldTimestamp] = int64(1000 + i)
		records = append(records, r)
	}
	return records
}

// ============================================================================
// Round trips - all formats
// ============================================================================

func TestRoundTripAllFormats(t *testing.T) {
	tests := []struct {
		file   string
		format string
	}{
		{"kernels.jsonl", "jsonl"},
		{"kernels.jsonl.zst", "jsonl.zst"},
		{"kernels.csv", "csv"},
		{"kernels.tsv", "tsv"},
		{"kernels.parquet", "parquet"},
		{"kernels.cbor", "cbor"},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), tt.file)

			f, ok := GetByPath(path)
			if !ok {
				t.Fatalf("GetByPath(%q) found no format", tt.file)
			}
			if f.Name() != tt.format {
				t.Errorf("GetByPath(%q) = %s; want %s", tt.file, f.Name(), tt.format)
			}

			if err := SaveRecords(path, sampleRecords()); err != nil {
				t.Fatalf("SaveRecords failed: %v", err)
			}
			records, err := LoadRecords(path)
			if err != nil {
				t.Fatalf("LoadRecords failed: %v", err)
			}

			want := sampleMetrics()
			if len(records) != len(want) {
				t.Fatalf("Expected %d records, got %d", len(want), len(records))
			}
			for i, r := range records {
				got := RecordToMetrics(r)
				if got != want[i] {
					t.Errorf("record %d = %+v; want %+v", i, got, want[i])
				}
				if s := r[FieldStream]; s != "default" {
					t.Errorf("record %d stream = %v; want default", i, s)
				}
			}
		})
	}
}

func TestGetByPathCompoundExtension(t *testing.T) {
	tests := []struct {
		path string
		want string
		ok   bool
	}{
		{"out/run.jsonl.zst", "jsonl.zst", true},
		{"out/run.JSONL", "jsonl", true},
		{"run.v2.csv", "csv", true},
		{"run.zst", "jsonl.zst", true},
		{"run.txt", "", false},
		{"noext", "", false},
	}
	for _, tt := range tests {
		f, ok := GetByPath(tt.path)
		if ok != tt.ok {
			t.Errorf("GetByPath(%q) ok = %v; want %v", tt.path, ok, tt.ok)
			continue
		}
		if ok && f.Name() != tt.want {
			t.Errorf("GetByPath(%q) = %s; want %s", tt.path, f.Name(), tt.want)
		}
	}
}

func TestResolve(t *testing.T) {
	f, err := Resolve("out/run.csv", "parquet")
	if err != nil || f.Name() != "csv" {
		t.Errorf("Resolve by extension = %v, %v; want csv", f, err)
	}
	f, err = Resolve("out/run", "cbor")
	if err != nil || f.Name() != "cbor" {
		t.Errorf("Resolve by format = %v, %v; want cbor", f, err)
	}
	if _, err := Resolve("out/run", "xml"); err == nil {
		t.Error("Expected error for unknown format")
	}
}

func TestGetExtension(t *testing.T) {
	if ext := GetExtension("parquet"); ext != ".parquet" {
		t.Errorf("GetExtension(parquet) = %s; want .parquet", ext)
	}
	if ext := GetExtension("jsonl.zst"); ext != ".jsonl.zst" {
		t.Errorf("GetExtension(jsonl.zst) = %s; want .jsonl.zst", ext)
	}
	if ext := GetExtension("bogus"); ext != ".jsonl" {
		t.Errorf("GetExtension(bogus) = %s; want .jsonl", ext)
	}
}

// ============================================================================
// Record helpers
// ============================================================================

func TestFlattenRecord(t *testing.T) {
	in := Record{
		"kernelName": "gemm",
		"host": map[string]interface{}{
			"hostname": "node-1",
			"arch":     "amd64",
		},
		"gpu": map[string]interface{}{
			"kernelName": "shadowed",
		},
		"counters": []interface{}{"a", "b"},
	}
	got := FlattenRecord(in)
	want := Record{
		"kernelName":     "gemm",
		"hostname":       "node-1",
		"arch":           "amd64",
		"gpu.kernelName": "shadowed",
		"counters":       `["a","b"]`,
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("FlattenRecord = %v; want %v", got, want)
	}
	if FlattenRecord(nil) != nil {
		t.Error("FlattenRecord(nil) should be nil")
	}
}

func TestOrderedColumns(t *testing.T) {
	r := Record{
		"zeta":          1,
		FieldKernelName: "gemm",
		"alpha":         2,
		FieldTimestamp:  int64(1),
		FieldDurationUs: 1.0,
	}
	got := OrderedColumns(r)
	want := []string{FieldTimestamp, FieldKernelName, FieldDurationUs, "alpha", "zeta"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("OrderedColumns = %v; want %v", got, want)
	}
}

func TestRecordToMetricsTolerant(t *testing.T) {
	m := RecordToMetrics(Record{
		FieldKernelName:    "k",
		FieldDurationUs:    "12.5",
		FieldElapsedCycles: float64(-3),
		FieldBytesRead:     "not-a-number",
	})
	if m.KernelName != "k" || m.DurationUs != 12.5 {
		t.Errorf("RecordToMetrics = %+v", m)
	}
	if m.ElapsedCycles != 0 || m.BytesRead != 0 {
		t.Errorf("Expected malformed counters to be zero, got %+v", m)
	}
}

// ============================================================================
// Delta
// ============================================================================

func TestDiffRecords(t *testing.T) {
	baseline := []Record{
		{FieldStream: "s", FieldKernelName: "gemm", FieldRunID: "a", FieldDurationUs: 100.0, FieldBytesRead: int64(10)},
		{FieldStream: "s", FieldKernelName: "only-old", FieldDurationUs: 5.0},
	}
	current := []Record{
		{FieldStream: "s", FieldKernelName: "gemm", FieldRunID: "b", FieldDurationUs: 90.0, FieldBytesRead: int64(4)},
		{FieldStream: "s", FieldKernelName: "gemm", FieldRunID: "b", FieldDurationUs: 80.0, FieldBytesRead: int64(4)},
		{FieldStream: "s", FieldKernelName: "only-new", FieldDurationUs: 1.0},
	}

	got := DiffRecords(baseline, current)
	if len(got) != 1 {
		t.Fatalf("Expected 1 delta, got %d", len(got))
	}
	d := got[0]
	if d[FieldDurationUs] != -20.0 {
		t.Errorf("duration delta = %v; want -20", d[FieldDurationUs])
	}
	if d[FieldBytesRead] != -6.0 {
		t.Errorf("bytesRead delta = %v; want -6", d[FieldBytesRead])
	}
	if d[FieldRunID] != "b" || d[FieldBaselineRunID] != "a" {
		t.Errorf("run ids = %v / %v; want b / a", d[FieldRunID], d[FieldBaselineRunID])
	}
	if d[FieldKernelName] != "gemm" {
		t.Errorf("kernelName = %v; want gemm", d[FieldKernelName])
	}
}

func TestDeltaRecordNil(t *testing.T) {
	cur := Record{FieldDurationUs: 1.0}
	if got := DeltaRecord(nil, cur); !reflect.DeepEqual(got, cur) {
		t.Errorf("DeltaRecord(nil, cur) = %v; want %v", got, cur)
	}
}

// ============================================================================
// Exporter
// ============================================================================

func TestExporterBaseRecordAndStatic(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested")
	path := filepath.Join(dir, "run.jsonl.zst")

	static := Record{
		FieldRunID: "run-7",
		"host":     map[string]interface{}{"hostname": "node-1"},
	}
	exp, err := NewExporter(path, "", WithBaseRecord(static))
	if err != nil {
		t.Fatalf("NewExporter failed: %v", err)
	}
	if exp.Format() != "jsonl.zst" {
		t.Errorf("Format = %s; want jsonl.zst", exp.Format())
	}

	rec := MetricsToRecord(sampleMetrics()[0])
	rec[FieldRunID] = "override"
	if err := exp.WriteBatch([]Record{rec, MetricsToRecord(sampleMetrics()[1])}); err != nil {
		t.Fatalf("WriteBatch failed: %v", err)
	}
	if err := exp.WriteStatic(static); err != nil {
		t.Fatalf("WriteStatic failed: %v", err)
	}
	if err := exp.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	records, err := LoadRecords(path)
	if err != nil {
		t.Fatalf("LoadRecords failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(records))
	}
	if records[0][FieldRunID] != "override" {
		t.Errorf("record field should win, got runId %v", records[0][FieldRunID])
	}
	if records[1][FieldRunID] != "run-7" || records[1][FieldHostname] != "node-1" {
		t.Errorf("base fields missing: %v", records[1])
	}

	wantStatic := filepath.Join(dir, "run_static.json")
	if exp.StaticPath() != wantStatic {
		t.Errorf("StaticPath = %s; want %s", exp.StaticPath(), wantStatic)
	}
	data, err := os.ReadFile(wantStatic)
	if err != nil {
		t.Fatalf("static file: %v", err)
	}
	var got map[string]interface{}
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("static file is not JSON: %v", err)
	}
	if got[FieldRunID] != "run-7" {
		t.Errorf("static runId = %v; want run-7", got[FieldRunID])
	}
}

func TestExporterUnknownFormat(t *testing.T) {
	if _, err := NewExporter(filepath.Join(t.TempDir(), "out.bin"), "bogus"); err == nil {
		t.Error("Expected error for unknown format")
	}
}

func BenchmarkMetricsToRecord(b *testing.B) {
	m := sampleMetrics()[0]
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_ = FlattenRecord(MetricsToRecord(m))
	}
}

func TestTrimExtension(t *testing.T) {
	tests := map[string]string{
		"out/run.jsonl.zst": "run",
		"run.parquet":       "run",
		"my.run.csv":        "my.run",
		"run.txt":           "run",
		"run":               "run",
	}
	for in, want := range tests {
		if got := TrimExtension(in); got != want {
			t.Errorf("TrimExtension(%q) = %q; want %q", in, got, want)
		}
	}
}
