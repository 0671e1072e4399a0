package cmd

import (
	"KernelProfiler/pkg/logutil"
	"os"

	"go.uber.org/zap"
)

func Graph(args []string) {
	cfg, fs := parseFlags("graph", args)
	log := logutil.GetLogger()

	if fs.NArg() < 1 {
		log.Fatal("Input file required. Usage: kprof graph [--graph-dir dir] <input-file>")
	}
	inputFile := fs.Arg(0)
	if _, err := os.Stat(inputFile); err != nil {
		log.Fatal("Input file not found", zap.String("file", inputFile))
	}

	path, err := generateGraphs(inputFile, cfg.GraphDir, nil, log)
	if err != nil {
		log.Fatal("Failed to generate graphs", zap.Error(err))
	}
	log.Info("Generated report", zap.String("path", path))
}
