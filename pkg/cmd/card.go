package cmd

import (
	"KernelProfiler/pkg/exporting"
	"KernelProfiler/pkg/logutil"
	"KernelProfiler/pkg/render"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
)

// Card renders a throughput card for every record of an exported file.
func Card(args []string) {
	cfg, fs := parseFlags("card", args)
	log := logutil.GetLogger()

	if fs.NArg() < 1 {
		log.Fatal("Input file required. Usage: kprof card [--kernel name] <file>")
	}
	n, err := renderCards(os.Stdout, fs.Arg(0), cfg.Kernel)
	if err != nil {
		log.Fatal("Failed to render cards", zap.Error(err))
	}
	if n == 0 {
		log.Warn("No matching kernel records", zap.String("file", fs.Arg(0)), zap.String("kernel", cfg.Kernel))
	}
}

// renderCards writes one card per record, optionally only for kernel.
func renderCards(w io.Writer, path, kernel string) (int, error) {
	records, err := exporting.LoadRecords(path)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, r := range records {
		m := exporting.RecordToMetrics(r)
		if m.KernelName == "" || (kernel != "" && m.KernelName != kernel) {
			continue
		}
		if err := render.RenderCard(w, m); err != nil {
			return n, err
		}
		fmt.Fprintln(w)
		n++
	}
	return n, nil
}
