package render

import (
	"KernelProfiler/pkg/telemetry"
	"bytes"
	"strings"
	"testing"
)

func TestCardOmitsZeroMetrics(t *testing.T) {
	m := telemetry.KernelMetrics{KernelName: "softmax", DurationUs: 42.5}
	card := Card(m)

	if !strings.Contains(card, "Kernel: softmax") {
		t.Errorf("Card missing header:\n%s", card)
	}
	if !strings.Contains(card, "Duration") || !strings.Contains(card, "42.5 μs") {
		t.Errorf("Card missing duration:\n%s", card)
	}
	for _, label := range []string{"DRAM Throughput", "L2 Cache Throughput", "SM Compute Util", "Achieved Occupancy", "Elapsed Cycles", "Bytes Read", "Bytes Written"} {
		if strings.Contains(card, label) {
			t.Errorf("Card shows %q for a zero value:\n%s", label, card)
		}
	}
}

func TestCardShowsPositiveMetrics(t *testing.T) {
	m := telemetry.KernelMetrics{
		KernelName:            "attention",
		DurationUs:            10,
		DRAMThroughputPercent: 12.3,
		L2ThroughputPercent:   4.5,
		ElapsedCycles:         123456,
		BytesRead:             2048,
	}
	card := Card(m)

	for _, want := range []string{"DRAM Throughput", "12.3%", "L2 Cache Throughput", "4.5%", "Elapsed Cycles", "123456", "Bytes Read", "2.0 KiB"} {
		if !strings.Contains(card, want) {
			t.Errorf("Card missing %q:\n%s", want, card)
		}
	}
	if strings.Contains(card, "Bytes Written") {
		t.Errorf("Card shows Bytes Written for zero:\n%s", card)
	}
}

func TestRenderCard(t *testing.T) {
	var buf bytes.Buffer
	if err := RenderCard(&buf, telemetry.KernelMetrics{KernelName: "k"}); err != nil {
		t.Fatalf("RenderCard: %v", err)
	}
	if !strings.HasSuffix(buf.String(), "\n") {
		t.Error("RenderCard output should end with a newline")
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		in   uint64
		want string
	}{
		{0, "0 B"},
		{1023, "1023 B"},
		{1024, "1.0 KiB"},
		{1536, "1.5 KiB"},
		{1 << 20, "1.0 MiB"},
		{5 << 30, "5.0 GiB"},
	}
	for _, tt := range tests {
		if got := formatBytes(tt.in); got != tt.want {
			t.Errorf("formatBytes(%d) = %q; want %q", tt.in, got, tt.want)
		}
	}
}

func TestHeatmapEmpty(t *testing.T) {
	if got := Heatmap(nil); got != "" {
		t.Errorf("Heatmap(nil) = %q; want empty", got)
	}
	if got := Heatmap([][]float64{{}}); got != "" {
		t.Errorf("Heatmap([[]]) = %q; want empty", got)
	}
	if got := Weights(nil); got != "" {
		t.Errorf("Weights(nil) = %q; want empty", got)
	}

	var buf bytes.Buffer
	if err := RenderHeatmap(&buf, nil); err != nil || buf.Len() != 0 {
		t.Errorf("RenderHeatmap(nil) wrote %q, err %v", buf.String(), err)
	}
}

func TestHeatmapConstantRow(t *testing.T) {
	out := Heatmap([][]float64{{0.5, 0.5, 0.5, 0.5}})
	lines := strings.Split(out, "\n")

	// "", header, ruler, row, ruler, scale, "", ""
	if len(lines) < 4 {
		t.Fatalf("Unexpected output:\n%q", out)
	}
	if lines[1] != "Heatmap (1x4)" {
		t.Errorf("header = %q; want %q", lines[1], "Heatmap (1x4)")
	}
	if lines[2] != "----" {
		t.Errorf("ruler = %q; want ----", lines[2])
	}
	if lines[3] != "    " {
		t.Errorf("row = %q; want four lowest symbols", lines[3])
	}
}

func TestHeatmapGradient(t *testing.T) {
	out := Heatmap([][]float64{
		{0, 1},
		{1, 2, 3},
		{},
	})
	lines := strings.Split(out, "\n")

	if lines[1] != "Heatmap (3x2)" {
		t.Errorf("header = %q", lines[1])
	}
	if lines[3] != " @" {
		t.Errorf("row 0 = %q; want %q", lines[3], " @")
	}
	// Normalized against its own range, cut to width 2.
	if lines[4] != " =" {
		t.Errorf("row 1 = %q; want %q", lines[4], " =")
	}
	if lines[5] != "" {
		t.Errorf("row 2 = %q; want empty", lines[5])
	}
	if !strings.Contains(out, "Scale: ' ' (min) to '@' (max)") {
		t.Errorf("missing scale legend:\n%s", out)
	}
	// The legend names the symbols Level actually produces.
	if Gradient[Level(0, 0, 1)] != ' ' || Gradient[Level(1, 0, 1)] != '@' {
		t.Errorf("Level bounds = %q/%q; want ' '/'@'", Gradient[Level(0, 0, 1)], Gradient[Level(1, 0, 1)])
	}
}

func TestWeights(t *testing.T) {
	out := Weights([]float64{0.1, 0.3, 0.5, 0.7, 0.9})
	lines := strings.Split(out, "\n")
	if lines[1] != "Weights (5)" {
		t.Errorf("header = %q", lines[1])
	}
	if lines[3] != " :=*@" {
		t.Errorf("row = %q; want %q", lines[3], " :=*@")
	}
}

func TestLevel(t *testing.T) {
	tests := []struct {
		v, lo, hi float64
		want      int
	}{
		{0, 0, 1, 0},
		{1, 0, 1, 9},
		{0.5, 0, 1, 4},
		{5, 5, 5, 0},
		{2, 0, 1, 9},
		{-1, 0, 1, 0},
	}
	for _, tt := range tests {
		if got := Level(tt.v, tt.lo, tt.hi); got != tt.want {
			t.Errorf("Level(%v, %v, %v) = %d; want %d", tt.v, tt.lo, tt.hi, got, tt.want)
		}
	}
}

func BenchmarkHeatmap(b *testing.B) {
	matrix := make([][]float64, 64)
	for i := range matrix {
		matrix[i] = make([]float64, 64)
		for j := range matrix[i] {
			matrix[i][j] = float64(i*j%17) / 17
		}
	}
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_ = Heatmap(matrix)
	}
}
