// Package cmd implements the kprof subcommands.
package cmd

import (
	"KernelProfiler/pkg/collecting"
	"KernelProfiler/pkg/exporting"
	"KernelProfiler/pkg/graphing"
	"KernelProfiler/pkg/logutil"
	"KernelProfiler/pkg/utils"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

// CmdContext holds initialized command resources
type CmdContext struct {
	Manager *collecting.Manager
	Config  *utils.Config
	Log     *zap.Logger
}

// parseFlags registers the shared flags, parses args, applies the config
// file and initializes the logger.
func parseFlags(name string, args []string) (*utils.Config, *pflag.FlagSet) {
	fs := pflag.NewFlagSet(name, pflag.ExitOnError)
	cfg := utils.NewConfig()
	applyFlags := utils.GetFlags(fs, cfg)
	fs.Parse(args)

	if cfg.ConfigFile == "" {
		cfg.ConfigFile = os.Getenv(utils.ConfigEnvVar)
	}
	err := applyFlags()

	logutil.InitLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		logutil.GetLogger().Fatal("Failed to load config", zap.Error(err))
	}
	return cfg, fs
}

// newContext creates the manager and collects static info.
func newContext(cfg *utils.Config) (*CmdContext, func()) {
	log := logutil.GetLogger().With(zap.String("runId", cfg.RunID))
	manager := collecting.NewManager(cfg, log)
	manager.CollectStatic()

	ctx := &CmdContext{
		Manager: manager,
		Config:  cfg,
		Log:     log,
	}
	cleanup := func() {
		if err := manager.Close(); err != nil {
			log.Warn("Shutdown incomplete", zap.Error(err))
		}
		_ = log.Sync()
	}
	return ctx, cleanup
}

// InitCmd parses flags and initializes the manager.
func InitCmd(name string, args []string) (*CmdContext, func()) {
	cfg, _ := parseFlags(name, args)
	return newContext(cfg)
}

// InitCmdWithSeparator initializes command with -- separator for sub-command args
// Returns CmdContext, cleanup func, and sub-command args after --
func InitCmdWithSeparator(name string, args []string) (*CmdContext, func(), []string) {
	flagArgs, cmdArgs := splitArgs(args)
	cfg, _ := parseFlags(name, flagArgs)
	ctx, cleanup := newContext(cfg)
	return ctx, cleanup, cmdArgs
}

func splitArgs(args []string) (flagArgs, cmdArgs []string) {
	for i, arg := range args {
		if arg == utils.CMDSeparator {
			return args[:i], args[i+1:]
		}
	}
	return args, nil
}

// GenerateOutputFilename generates a default output filename
func GenerateOutputFilename(cmdName, mode, format string) string {
	timestamp := time.Now().Format("20060102_150405")
	ext := exporting.GetExtension(format)
	if cmdName != "" {
		return mode + "_" + cmdName + "_" + timestamp + ext
	}
	return mode + "_" + timestamp + ext
}

// exportRecords writes every stored snapshot to the configured output and
// the static info to its sidecar.
func exportRecords(ctx *CmdContext) (int, error) {
	cfg := ctx.Config
	var opts []exporting.ExporterOption
	if cfg.MergeStatic {
		opts = append(opts, exporting.WithBaseRecord(ctx.Manager.StaticRecord()))
	}

	exp, err := exporting.NewExporter(cfg.OutputFile, cfg.Format, opts...)
	if err != nil {
		return 0, err
	}
	records := ctx.Manager.Records()
	if err := exp.WriteBatch(records); err != nil {
		exp.Close()
		return 0, err
	}
	if err := exp.WriteStatic(ctx.Manager.StaticRecord()); err != nil {
		exp.Close()
		return 0, err
	}
	return len(records), exp.Close()
}

func defaultGraphDir(inputPath string) string {
	return filepath.Join(filepath.Dir(inputPath), exporting.TrimExtension(inputPath)+"_graphs")
}

func generateGraphs(inputPath, outputDir string, static exporting.Record, log *zap.Logger) (string, error) {
	if outputDir == "" {
		outputDir = defaultGraphDir(inputPath)
	}
	gen, err := graphing.NewGenerator(inputPath, outputDir, log)
	if err != nil {
		return "", fmt.Errorf("failed to create generator: %w", err)
	}
	if static != nil {
		gen.WithStatic(static)
	}
	return gen.Generate()
}
