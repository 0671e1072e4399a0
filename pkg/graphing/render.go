package graphing

import (
	"KernelProfiler/pkg/exporting"
	"KernelProfiler/pkg/utils"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/go-echarts/go-echarts/v2/components"
)

// StaticInfoData is the run info shown above the charts.
type StaticInfoData struct {
	RunID         string
	Hostname      string
	OS            string
	Arch          string
	NumProcessors int
	CPUType       string
	KernelInfo    string
	BackendState  string
	BoundCounters []string
	GPU           *GPUData
}

type GPUData struct {
	Index               int
	Name                string
	UUID                string
	Brand               string
	Architecture        string
	CUDACapabilityMajor int
	CUDACapabilityMinor int
	MemoryTotalBytes    int64
	MemoryBusWidthBits  int
	MaxClockSmMhz       int
	MaxClockMemoryMhz   int
	PeakDRAMBandwidth   float64
	DriverVersion       string
	CUDAVersion         string
}

// WriteHeatmap renders matrix as a standalone echarts heatmap page.
func WriteHeatmap(w io.Writer, title string, matrix [][]float64) error {
	if len(matrix) == 0 || len(matrix[0]) == 0 {
		return fmt.Errorf("empty matrix")
	}
	page := components.NewPage()
	page.PageTitle = title
	page.AddCharts(createHeatmap(title, matrix))
	return renderPage(w, page, nil)
}

// renderPage renders the echarts page, then injects the report styles and
// the static info section.
func renderPage(w io.Writer, page *components.Page, static *StaticInfoData) error {
	var buf bytes.Buffer
	if err := page.Render(&buf); err != nil {
		return fmt.Errorf("failed to render charts: %w", err)
	}
	html := buf.String()

	var head bytes.Buffer
	if err := templates.ExecuteTemplate(&head, "head", nil); err != nil {
		return fmt.Errorf("failed to execute head template: %w", err)
	}
	html = strings.Replace(html, "</head>", head.String()+"</head>", 1)

	if static != nil {
		var body bytes.Buffer
		if err := templates.ExecuteTemplate(&body, "static_info", static); err != nil {
			return fmt.Errorf("failed to execute static_info template: %w", err)
		}
		html = strings.Replace(html, "<body>", "<body>\n"+body.String(), 1)
	}

	_, err := io.WriteString(w, html)
	return err
}

// parseStaticInfo reads the static record written by the exporter, nested
// or flattened.
func parseStaticInfo(static exporting.Record) *StaticInfoData {
	if len(static) == 0 {
		return nil
	}
	info := exporting.FlattenRecord(static)

	data := &StaticInfoData{
		RunID:         getString(info, "runId"),
		Hostname:      getString(info, "hostname"),
		OS:            getString(info, "os"),
		Arch:          getString(info, "arch"),
		NumProcessors: int(utils.ToFloat64(info["numProcessors"])),
		CPUType:       getString(info, "cpuType"),
		KernelInfo:    getString(info, "kernelInfo"),
		BackendState:  getString(info, "backendState"),
	}
	if counters := getString(info, "boundCounters"); counters != "" {
		_ = json.Unmarshal([]byte(counters), &data.BoundCounters)
	}

	if name := getString(info, "gpuName"); name != "" {
		data.GPU = &GPUData{
			Index:               int(utils.ToFloat64(info["gpuIndex"])),
			Name:                name,
			UUID:                getString(info, "gpuUuid"),
			Brand:               getString(info, "gpuBrand"),
			Architecture:        getString(info, "gpuArchitecture"),
			CUDACapabilityMajor: int(utils.ToFloat64(info["gpuCudaCapabilityMajor"])),
			CUDACapabilityMinor: int(utils.ToFloat64(info["gpuCudaCapabilityMinor"])),
			MemoryTotalBytes:    int64(utils.ToFloat64(info["gpuMemoryTotalBytes"])),
			MemoryBusWidthBits:  int(utils.ToFloat64(info["gpuMemoryBusWidthBits"])),
			MaxClockSmMhz:       int(utils.ToFloat64(info["gpuMaxClockSmMhz"])),
			MaxClockMemoryMhz:   int(utils.ToFloat64(info["gpuMaxClockMemoryMhz"])),
			PeakDRAMBandwidth:   utils.ToFloat64(info["gpuPeakDramBandwidthGBs"]),
			DriverVersion:       getString(info, "nvidiaDriverVersion"),
			CUDAVersion:         getString(info, "nvidiaCudaVersion"),
		}
	}
	return data
}

func getString(m map[string]interface{}, key string) string {
	if s, ok := m[key].(string); ok {
		return s
	}
	return ""
}
