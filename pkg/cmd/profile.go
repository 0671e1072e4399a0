package cmd

import (
	"KernelProfiler/pkg/render"
	"KernelProfiler/pkg/telemetry"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

var errNoCommand = errors.New("no command specified. Usage: kprof profile [flags] -- <command> [args]")

// Profile runs a command as one kernel: collection starts before the
// command and stops once it has exited.
func Profile(args []string) {
	ctx, cleanup, cmdArgs := InitCmdWithSeparator("profile", args)
	defer cleanup()

	if err := profile(ctx, cmdArgs); err != nil {
		ctx.Log.Error("Profile failed", zap.Error(err))
	}
}

func profile(ctx *CmdContext, cmdArgs []string) error {
	cfg := ctx.Config
	log := ctx.Log

	if len(cmdArgs) == 0 {
		return errNoCommand
	}

	cmdName := filepath.Base(cmdArgs[0])
	kernel := cfg.Kernel
	if kernel == "" {
		kernel = cmdName
	}
	if cfg.OutputFile == "" {
		cfg.OutputFile = GenerateOutputFilename(cmdName, "profile", cfg.Format)
	}

	targetCmd := exec.Command(cmdArgs[0], cmdArgs[1:]...)
	targetCmd.Stdout = os.Stdout
	targetCmd.Stderr = os.Stderr
	targetCmd.Stdin = os.Stdin

	log.Info("Profiling command",
		zap.Strings("command", cmdArgs),
		zap.String("kernel", kernel),
		zap.String("stream", cfg.Stream),
		zap.Stringer("backend", ctx.Manager.Collector(cfg.Stream).BackendState()),
		zap.String("output", cfg.OutputFile))

	m, cmdErr := RunKernel(ctx, kernel, targetCmd.Run)
	if cmdErr != nil {
		log.Warn("Command exited with error", zap.Error(cmdErr))
	}
	log.Info("Command completed", zap.Duration("elapsed", time.Duration(m.DurationUs*float64(time.Microsecond))))

	if !cfg.NoCard {
		render.RenderCard(os.Stdout, m)
	}

	n, err := exportRecords(ctx)
	if err != nil {
		return fmt.Errorf("failed to export records: %w", err)
	}
	log.Info("Wrote records", zap.Int("count", n), zap.String("path", cfg.OutputFile))

	if cfg.GraphDir != "" {
		if _, err := generateGraphs(cfg.OutputFile, cfg.GraphDir, ctx.Manager.StaticRecord(), log); err != nil {
			log.Error("Failed to generate graphs", zap.Error(err))
		}
	}
	return nil
}

// RunKernel brackets run with StartCollection and StopCollection on the
// configured stream and returns the recorded snapshot with run's error.
func RunKernel(ctx *CmdContext, kernel string, run func() error) (telemetry.KernelMetrics, error) {
	c := ctx.Manager.Collector(ctx.Config.Stream)
	c.StartCollection(kernel)
	err := run()
	c.StopCollection()
	return c.GetMetrics(kernel), err
}
