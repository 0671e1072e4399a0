package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"go.uber.org/zap"
)

// Snapshot prints the host, device and backend state as JSON.
func Snapshot(args []string) {
	ctx, cleanup := InitCmd("snapshot", args)
	defer cleanup()

	output, err := json.MarshalIndent(ctx.Manager.GetStatic(), "", "  ")
	if err != nil {
		ctx.Log.Error("Failed to marshal output", zap.Error(err))
		return
	}

	if ctx.Config.OutputFile != "" {
		if err := os.WriteFile(ctx.Config.OutputFile, output, 0644); err != nil {
			ctx.Log.Error("Failed to write file", zap.Error(err))
			return
		}
		ctx.Log.Info("Wrote snapshot", zap.String("path", ctx.Config.OutputFile))
		return
	}
	fmt.Println(string(output))
}
