// Package graphing renders exported kernel records as an HTML report.
package graphing

import (
	"KernelProfiler/pkg/exporting"
	"KernelProfiler/pkg/utils"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-echarts/go-echarts/v2/components"
	"go.uber.org/zap"
)

// Generator builds a report from a file of exported records.
type Generator struct {
	inputPath string
	outputDir string
	static    exporting.Record
	log       *zap.Logger
}

func NewGenerator(inputPath, outputDir string, log *zap.Logger) (*Generator, error) {
	if inputPath == "" {
		return nil, fmt.Errorf("input path is required")
	}
	if outputDir == "" {
		return nil, fmt.Errorf("output directory is required")
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Generator{inputPath: inputPath, outputDir: outputDir, log: log}, nil
}

// WithStatic attaches run info shown above the charts. Without it the
// generator looks for the exporter's "_static.json" sidecar.
func (g *Generator) WithStatic(static exporting.Record) *Generator {
	g.static = static
	return g
}

// Generate writes the report and returns its path.
func (g *Generator) Generate() (string, error) {
	records, err := exporting.LoadRecords(g.inputPath)
	if err != nil {
		return "", fmt.Errorf("failed to load records: %w", err)
	}
	static := g.static
	if static == nil {
		static = loadSidecar(g.inputPath)
	}

	path, err := WriteReportFile(g.outputDir, exporting.TrimExtension(g.inputPath), records, static)
	if err != nil {
		return "", err
	}
	g.log.Info("Generated report", zap.String("path", path), zap.Int("records", len(records)))
	return path, nil
}

func loadSidecar(inputPath string) exporting.Record {
	data, err := os.ReadFile(filepath.Join(filepath.Dir(inputPath), exporting.TrimExtension(inputPath)+"_static.json"))
	if err != nil {
		return nil
	}
	var static exporting.Record
	if err := json.Unmarshal(data, &static); err != nil {
		return nil
	}
	return static
}

// WriteReportFile writes "<name>-kernels.html" into dir.
func WriteReportFile(dir, name string, records []exporting.Record, static exporting.Record) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	path := filepath.Join(dir, sanitizeFilename(name)+"-kernels.html")
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create report: %w", err)
	}
	defer f.Close()

	if err := WriteReport(f, "Kernel Report - "+name, records, static); err != nil {
		return "", err
	}
	return path, f.Close()
}

// WriteReport renders throughput, duration and timeline charts for
// records. Records without a kernel name are ignored.
func WriteReport(w io.Writer, title string, records []exporting.Record, static exporting.Record) error {
	kernels := buildKernelSeries(records)
	if len(kernels) == 0 {
		return fmt.Errorf("no kernel records to graph")
	}

	page := components.NewPage()
	page.PageTitle = title
	page.AddCharts(createThroughputChart(kernels), createDurationChart(kernels))
	if line := createTimelineChart(records); line != nil {
		page.AddCharts(line)
	}
	return renderPage(w, page, parseStaticInfo(static))
}

// KernelSeries aggregates every record of one kernel.
type KernelSeries struct {
	Label     string
	Durations []float64
	DRAM      float64
	L2        float64
	SM        float64
	Occupancy float64
}

// MeanDuration returns the average duration in microseconds.
func (k *KernelSeries) MeanDuration() float64 {
	if len(k.Durations) == 0 {
		return 0
	}
	var sum float64
	for _, d := range k.Durations {
		sum += d
	}
	return sum / float64(len(k.Durations))
}

// buildKernelSeries groups records by stream and kernel. Percentages keep
// the latest non-zero value, matching the collector's latest-wins store.
func buildKernelSeries(records []exporting.Record) []*KernelSeries {
	streams := make(map[string]bool)
	for _, r := range records {
		streams[utils.ToString(r[exporting.FieldStream])] = true
	}

	byLabel := make(map[string]*KernelSeries)
	var order []string
	for _, r := range records {
		m := exporting.RecordToMetrics(r)
		if m.KernelName == "" {
			continue
		}
		label := m.KernelName
		if len(streams) > 1 {
			label = utils.ToString(r[exporting.FieldStream]) + "/" + label
		}
		k, ok := byLabel[label]
		if !ok {
			k = &KernelSeries{Label: label}
			byLabel[label] = k
			order = append(order, label)
		}
		k.Durations = append(k.Durations, m.DurationUs)
		keepPositive(&k.DRAM, m.DRAMThroughputPercent)
		keepPositive(&k.L2, m.L2ThroughputPercent)
		keepPositive(&k.SM, m.SMUtilizationPercent)
		keepPositive(&k.Occupancy, m.OccupancyPercent)
	}

	sort.Strings(order)
	out := make([]*KernelSeries, len(order))
	for i, label := range order {
		out[i] = byLabel[label]
	}
	return out
}

func keepPositive(dst *float64, v float64) {
	if v > 0 {
		*dst = v
	}
}

func sanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")
	name = strings.ReplaceAll(name, " ", "_")
	return strings.ToLower(name)
}
