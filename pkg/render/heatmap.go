package render

import (
	"fmt"
	"io"
	"slices"
	"strings"
)

// Gradient runs from the row minimum to the row maximum.
const Gradient = " .:-=+*#%@"

// Heatmap renders a matrix one row per line. Each row is normalized to its
// own min/max; a row with zero range renders as the lowest symbol. Rows
// are cut to the width of the first row. An empty matrix renders as "".
func Heatmap(matrix [][]float64) string {
	if len(matrix) == 0 || len(matrix[0]) == 0 {
		return ""
	}
	width := len(matrix[0])

	var b strings.Builder
	fmt.Fprintf(&b, "\nHeatmap (%dx%d)\n", len(matrix), width)
	ruler(&b, width)
	for _, row := range matrix {
		writeRow(&b, row, width)
	}
	ruler(&b, width)
	fmt.Fprintf(&b, "Scale: %q (min) to %q (max)\n\n", Gradient[0], Gradient[len(Gradient)-1])
	return b.String()
}

// Weights renders a single vector as one gradient line.
func Weights(weights []float64) string {
	if len(weights) == 0 {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "\nWeights (%d)\n", len(weights))
	ruler(&b, len(weights))
	writeRow(&b, weights, len(weights))
	ruler(&b, len(weights))
	return b.String()
}

func RenderHeatmap(w io.Writer, matrix [][]float64) error {
	_, err := io.WriteString(w, Heatmap(matrix))
	return err
}

func RenderWeights(w io.Writer, weights []float64) error {
	_, err := io.WriteString(w, Weights(weights))
	return err
}

// Level maps v to a gradient index given the row bounds.
func Level(v, lo, hi float64) int {
	var normalized float64
	if r := hi - lo; r > 0 {
		normalized = (v - lo) / r
	}
	level := int(normalized * float64(len(Gradient)-1))
	return max(0, min(level, len(Gradient)-1))
}

func writeRow(b *strings.Builder, row []float64, width int) {
	if len(row) == 0 {
		b.WriteByte('\n')
		return
	}
	lo, hi := slices.Min(row), slices.Max(row)
	for i := 0; i < width && i < len(row); i++ {
		b.WriteByte(Gradient[Level(row[i], lo, hi)])
	}
	b.WriteByte('\n')
}

func ruler(b *strings.Builder, width int) {
	b.WriteString(strings.Repeat("-", width))
	b.WriteByte('\n')
}
