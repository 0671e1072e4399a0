// Package render formats kernel metrics and weight matrices for terminals.
package render

import (
	"KernelProfiler/pkg/telemetry"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

const labelWidth = 20

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	cardStyle  = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("8")).
			Padding(0, 1)
)

type cardLine struct {
	label string
	value string
	show  bool
}

func cardLines(m telemetry.KernelMetrics) []cardLine {
	return []cardLine{
		{"Duration", fmt.Sprintf("%.1f μs", m.DurationUs), true},
		{"DRAM Throughput", fmt.Sprintf("%.1f%%", m.DRAMThroughputPercent), m.DRAMThroughputPercent > 0},
		{"L2 Cache Throughput", fmt.Sprintf("%.1f%%", m.L2ThroughputPercent), m.L2ThroughputPercent > 0},
		{"SM Compute Util", fmt.Sprintf("%.1f%%", m.SMUtilizationPercent), m.SMUtilizationPercent > 0},
		{"Achieved Occupancy", fmt.Sprintf("%.1f%%", m.OccupancyPercent), m.OccupancyPercent > 0},
		{"Elapsed Cycles", fmt.Sprintf("%d", m.ElapsedCycles), m.ElapsedCycles > 0},
		{"Bytes Read", formatBytes(m.BytesRead), m.BytesRead > 0},
		{"Bytes Written", formatBytes(m.BytesWritten), m.BytesWritten > 0},
	}
}

// Card renders m as a boxed summary. Duration is always shown; every other
// metric only when it is positive.
func Card(m telemetry.KernelMetrics) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Kernel: " + m.KernelName))
	for _, l := range cardLines(m) {
		if !l.show {
			continue
		}
		b.WriteByte('\n')
		b.WriteString(labelStyle.Render(fmt.Sprintf("%-*s:", labelWidth, l.label)))
		b.WriteByte(' ')
		b.WriteString(l.value)
	}
	return cardStyle.Render(b.String())
}

func RenderCard(w io.Writer, m telemetry.KernelMetrics) error {
	_, err := fmt.Fprintln(w, Card(m))
	return err
}

func formatBytes(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := uint64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
