package cmd

import (
	"KernelProfiler/pkg/graphing"
	"KernelProfiler/pkg/logutil"
	"KernelProfiler/pkg/render"
	"KernelProfiler/pkg/tensorcheck"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// Heatmap renders a JSON matrix or vector as a terminal heatmap and,
// with --html, as an echarts page.
func Heatmap(args []string) {
	cfg, fs := parseFlags("heatmap", args)
	log := logutil.GetLogger()

	if fs.NArg() < 1 {
		log.Fatal("Input file required. Usage: kprof heatmap [--html out.html] <file.json>")
	}
	if err := renderTensorFile(os.Stdout, fs.Arg(0), cfg.HTMLOutput); err != nil {
		log.Fatal("Failed to render heatmap", zap.Error(err))
	}
	if cfg.HTMLOutput != "" {
		log.Info("Wrote heatmap", zap.String("path", cfg.HTMLOutput))
	}
}

func renderTensorFile(w io.Writer, path, htmlOut string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read tensor: %w", err)
	}
	name := filepath.Base(path)
	t, err := tensorcheck.Decode(name, data)
	if err != nil {
		return err
	}
	matrix, err := t.Matrix()
	if err != nil {
		return err
	}

	if len(t.Shape) == 1 {
		err = render.RenderWeights(w, t.Data)
	} else {
		err = render.RenderHeatmap(w, matrix)
	}
	if err != nil || htmlOut == "" {
		return err
	}

	f, err := os.Create(htmlOut)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", htmlOut, err)
	}
	defer f.Close()
	if err := graphing.WriteHeatmap(f, t.Name, matrix); err != nil {
		return err
	}
	return f.Close()
}
