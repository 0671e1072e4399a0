package cmd

import (
	"KernelProfiler/pkg/exporting"
	"KernelProfiler/pkg/logutil"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
)

// Diff compares two exported runs kernel by kernel.
func Diff(args []string) {
	cfg, fs := parseFlags("diff", args)
	log := logutil.GetLogger()

	if fs.NArg() < 2 {
		log.Fatal("Two input files required. Usage: kprof diff [-o out] <baseline> <current>")
	}
	deltas, err := diffFiles(fs.Arg(0), fs.Arg(1))
	if err != nil {
		log.Fatal("Failed to diff runs", zap.Error(err))
	}

	if cfg.OutputFile != "" {
		if err := exporting.SaveRecords(cfg.OutputFile, deltas); err != nil {
			log.Fatal("Failed to write deltas", zap.Error(err))
		}
		log.Info("Wrote deltas", zap.Int("count", len(deltas)), zap.String("path", cfg.OutputFile))
		return
	}
	if err := writeDeltas(os.Stdout, deltas); err != nil {
		log.Fatal("Failed to print deltas", zap.Error(err))
	}
}

func diffFiles(baselinePath, currentPath string) ([]exporting.Record, error) {
	baseline, err := exporting.LoadRecords(baselinePath)
	if err != nil {
		return nil, fmt.Errorf("baseline: %w", err)
	}
	current, err := exporting.LoadRecords(currentPath)
	if err != nil {
		return nil, fmt.Errorf("current: %w", err)
	}
	return exporting.DiffRecords(baseline, current), nil
}

// writeDeltas prints one JSON line per delta.
func writeDeltas(w io.Writer, deltas []exporting.Record) error {
	enc := json.NewEncoder(w)
	for _, d := range deltas {
		if err := enc.Encode(d); err != nil {
			return err
		}
	}
	return nil
}
