package graphing

import (
	"KernelProfiler/pkg/utils"
	"fmt"
	"html/template"
	"strings"
)

var templates = template.Must(template.New("").Funcs(templateFuncs).Parse(`
{{define "head"}}
<style>
* {
    font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, Arial, sans-serif;
}
body {
    max-width: 1400px;
    margin: 0 auto;
    padding: 20px;
}
.static-info-container {
    margin-bottom: 20px;
}
.static-info-header {
    border-bottom: 2px solid #333;
    padding-bottom: 10px;
    margin-bottom: 15px;
}
.static-info-header h1 {
    margin: 0;
    font-size: 18px;
}
.run-id {
    font-size: 11px;
    color: #666;
    font-family: monospace;
}
.info-section {
    margin-bottom: 15px;
    padding: 15px;
    background: #f5f5f5;
    border: 1px solid #ddd;
}
.info-section h3 {
    margin: 0 0 10px 0;
    font-size: 13px;
}
.info-table {
    width: 100%;
    border-collapse: collapse;
    font-size: 12px;
}
.info-table td {
    padding: 3px 8px;
    border-bottom: 1px solid #eee;
}
.info-table td:first-child {
    width: 180px;
    color: #666;
}
.info-table td:last-child {
    font-family: monospace;
    font-size: 11px;
    word-break: break-all;
}
.info-table tr:last-child td {
    border-bottom: none;
}
.container {
    display: block !important;
    margin: 0 0 10px 0 !important;
    padding: 15px !important;
    background: #f5f5f5 !important;
    border: 1px solid #ddd !important;
}
</style>
<script>
window.addEventListener('resize', function() {
    document.querySelectorAll('[_echarts_instance_]').forEach(function(el) {
        var c = echarts.getInstanceByDom(el);
        if (c) c.resize();
    });
});
</script>
{{end}}

{{define "static_info"}}
<div class="static-info-container">
    <div class="static-info-header">
        <h1>Kernel Report</h1>
        <div class="run-id">Run: {{.RunID}}</div>
    </div>
    {{template "host_section" .}}
    {{template "gpu_section" .GPU}}
</div>
{{end}}

{{define "host_section"}}
<div class="info-section">
    <h3>Host</h3>
    <table class="info-table">
        {{template "row" dict "Label" "Hostname" "Value" .Hostname}}
        {{template "row" dict "Label" "Platform" "Value" (platform .OS .Arch)}}
        {{template "row" dict "Label" "Processors" "Value" .NumProcessors}}
        {{template "row" dict "Label" "CPU" "Value" .CPUType}}
        {{template "row" dict "Label" "Kernel" "Value" .KernelInfo}}
        {{template "row" dict "Label" "Counter Backend" "Value" .BackendState}}
        {{template "row" dict "Label" "Bound Counters" "Value" (join .BoundCounters)}}
    </table>
</div>
{{end}}

{{define "gpu_section"}}
{{if .}}
<div class="info-section">
    <h3>GPU {{.Index}}: {{.Name}}</h3>
    <table class="info-table">
        {{template "row" dict "Label" "UUID" "Value" .UUID}}
        {{template "row" dict "Label" "Brand" "Value" .Brand}}
        {{template "row" dict "Label" "Architecture" "Value" .Architecture}}
        {{if .CUDACapabilityMajor}}
        <tr><td>CUDA Capability</td><td>{{.CUDACapabilityMajor}}.{{.CUDACapabilityMinor}}</td></tr>
        {{end}}
        {{template "row_bytes" dict "Label" "Memory Total" "Value" .MemoryTotalBytes}}
        {{template "row_unit" dict "Label" "Memory Bus Width" "Value" .MemoryBusWidthBits "Unit" "bits"}}
        {{template "row_unit" dict "Label" "Max Clock SM" "Value" .MaxClockSmMhz "Unit" "MHz"}}
        {{template "row_unit" dict "Label" "Max Clock Memory" "Value" .MaxClockMemoryMhz "Unit" "MHz"}}
        {{template "row_float" dict "Label" "Peak DRAM Bandwidth" "Value" .PeakDRAMBandwidth "Format" "%.1f GB/s"}}
        {{template "row" dict "Label" "Driver Version" "Value" .DriverVersion}}
        {{template "row" dict "Label" "CUDA Version" "Value" .CUDAVersion}}
    </table>
</div>
{{end}}
{{end}}

{{define "row"}}
{{if and .Value (ne (printf "%v" .Value) "") (ne (printf "%v" .Value) "0")}}
<tr><td>{{.Label}}</td><td>{{.Value}}</td></tr>
{{end}}
{{end}}

{{define "row_unit"}}
{{if .Value}}
<tr><td>{{.Label}}</td><td>{{.Value}} {{.Unit}}</td></tr>
{{end}}
{{end}}

{{define "row_float"}}
{{if .Value}}
<tr><td>{{.Label}}</td><td>{{printf .Format .Value}}</td></tr>
{{end}}
{{end}}

{{define "row_bytes"}}
{{if .Value}}
<tr><td>{{.Label}}</td><td>{{.Value | formatBytes}}</td></tr>
{{end}}
{{end}}
`))

var templateFuncs = template.FuncMap{
	"dict":        dictFunc,
	"formatBytes": formatBytesFunc,
	"join":        func(s []string) string { return strings.Join(s, ", ") },
	"platform": func(os, arch string) string {
		if os == "" {
			return ""
		}
		return os + "/" + arch
	},
}

// dictFunc creates a map from key-value pairs for template use.
func dictFunc(values ...interface{}) map[string]interface{} {
	if len(values)%2 != 0 {
		return nil
	}
	dict := make(map[string]interface{}, len(values)/2)
	for i := 0; i < len(values); i += 2 {
		key, ok := values[i].(string)
		if !ok {
			continue
		}
		dict[key] = values[i+1]
	}
	return dict
}

func formatBytesFunc(v interface{}) string {
	bytes := utils.ToFloat64(v)
	if bytes == 0 {
		return "0 B"
	}
	units := []string{"B", "KB", "MB", "GB", "TB"}
	i := 0
	for bytes >= 1024 && i < len(units)-1 {
		bytes /= 1024
		i++
	}
	return fmt.Sprintf("%.2f %s", bytes, units[i])
}
