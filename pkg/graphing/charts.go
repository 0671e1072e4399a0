package graphing

import (
	"KernelProfiler/pkg/exporting"
	"fmt"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

var heatmapColors = []string{
	"#313695", "#4575b4", "#74add1", "#abd9e9", "#e0f3f8",
	"#ffffbf", "#fee090", "#fdae61", "#f46d43", "#d73027", "#a50026",
}

func kernelLabels(kernels []*KernelSeries) []string {
	labels := make([]string, len(kernels))
	for i, k := range kernels {
		labels[i] = k.Label
	}
	return labels
}

// createThroughputChart shows one bar group per kernel with the four
// percentage metrics.
func createThroughputChart(kernels []*KernelSeries) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Throughput (%)"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "bottom"}),
		charts.WithXAxisOpts(opts.XAxis{Type: "category", AxisLabel: &opts.AxisLabel{Rotate: 45}}),
		charts.WithYAxisOpts(opts.YAxis{Type: "value", Max: 100}),
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "400px"}),
	)

	series := []struct {
		name string
		get  func(*KernelSeries) float64
	}{
		{"DRAM Throughput", func(k *KernelSeries) float64 { return k.DRAM }},
		{"L2 Cache Throughput", func(k *KernelSeries) float64 { return k.L2 }},
		{"SM Compute Util", func(k *KernelSeries) float64 { return k.SM }},
		{"Achieved Occupancy", func(k *KernelSeries) float64 { return k.Occupancy }},
	}

	bar.SetXAxis(kernelLabels(kernels))
	for _, s := range series {
		data := make([]opts.BarData, len(kernels))
		for i, k := range kernels {
			data[i] = opts.BarData{Value: s.get(k)}
		}
		bar.AddSeries(s.name, data)
	}
	return bar
}

// createDurationChart shows the mean duration per kernel.
func createDurationChart(kernels []*KernelSeries) *charts.Bar {
	bar := charts.NewBar()

	var total float64
	var calls int
	data := make([]opts.BarData, len(kernels))
	for i, k := range kernels {
		for _, d := range k.Durations {
			total += d
		}
		calls += len(k.Durations)
		data[i] = opts.BarData{Value: k.MeanDuration()}
	}

	bar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    "Mean Duration (us)",
			Subtitle: fmt.Sprintf("Total: %.1f us over %d calls", total, calls),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(false)}),
		charts.WithXAxisOpts(opts.XAxis{Type: "category", AxisLabel: &opts.AxisLabel{Rotate: 45}}),
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "400px"}),
	)
	bar.SetXAxis(kernelLabels(kernels)).AddSeries("duration", data)
	return bar
}

// createTimelineChart plots every record's duration in file order. It
// returns nil for fewer than two records.
func createTimelineChart(records []exporting.Record) *charts.Line {
	var xLabels []string
	var data []opts.LineData
	for _, r := range records {
		m := exporting.RecordToMetrics(r)
		if m.KernelName == "" {
			continue
		}
		xLabels = append(xLabels, strconv.Itoa(len(xLabels))+" "+m.KernelName)
		data = append(data, opts.LineData{Value: m.DurationUs})
	}
	if len(data) < 2 {
		return nil
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Duration Timeline (us)"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(false)}),
		charts.WithXAxisOpts(opts.XAxis{Type: "category", AxisLabel: &opts.AxisLabel{Rotate: 45}}),
		charts.WithYAxisOpts(opts.YAxis{Type: "value"}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider", Start: 0, End: 100}),
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "400px"}),
	)
	line.SetXAxis(xLabels).AddSeries("", data,
		charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(true)}),
	)
	return line
}

// createHeatmap plots a matrix with row 0 at the top. Values are raw; the
// visual map spans the global min and max.
func createHeatmap(title string, matrix [][]float64) *charts.HeatMap {
	rows := len(matrix)
	cols := len(matrix[0])

	var data []opts.HeatMapData
	lo, hi := matrix[0][0], matrix[0][0]
	for y, row := range matrix {
		for x := 0; x < cols && x < len(row); x++ {
			v := row[x]
			if v < lo {
				lo = v
			}
			if v > hi {
				hi = v
			}
			data = append(data, opts.HeatMapData{Value: [3]interface{}{x, rows - 1 - y, v}})
		}
	}

	xLabels := make([]string, cols)
	for i := range xLabels {
		xLabels[i] = strconv.Itoa(i)
	}
	yLabels := make([]string, rows)
	for i := range yLabels {
		yLabels[i] = strconv.Itoa(rows - 1 - i)
	}

	hm := charts.NewHeatMap()
	hm.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: fmt.Sprintf("%dx%d", rows, cols)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(false)}),
		charts.WithXAxisOpts(opts.XAxis{Type: "category"}),
		charts.WithYAxisOpts(opts.YAxis{Type: "category", Data: yLabels}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Calculable: opts.Bool(true),
			Min:        float32(lo),
			Max:        float32(hi),
			InRange:    &opts.VisualMapInRange{Color: heatmapColors},
		}),
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "600px"}),
	)
	hm.SetXAxis(xLabels).AddSeries("", data)
	return hm
}
