package main

import (
	"KernelProfiler/pkg/cmd"
	"fmt"
	"os"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "profile", "p":
		cmd.Profile(args)
	case "serve", "s":
		cmd.Serve(args)
	case "snapshot", "ss":
		cmd.Snapshot(args)
	case "card", "c":
		cmd.Card(args)
	case "heatmap", "hm":
		cmd.Heatmap(args)
	case "graph", "g":
		cmd.Graph(args)
	case "diff", "d":
		cmd.Diff(args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Print(`KernelProfiler - per-kernel timing and hardware counter metrics

Usage:
  kprof <command> [flags]

Commands:
  profile, p      Profile a command as one kernel
  serve, s        Start HTTP kernel collection server
  snapshot, ss    Print host, device and backend info
  card, c         Render throughput cards from an exported file
  heatmap, hm     Render a JSON matrix or vector as a heatmap
  graph, g        Generate an HTML report from an exported file
  diff, d         Compare two exported runs kernel by kernel

Collection Flags:
  --no-nvidia            Disable the NVIDIA counter backend (duration-only)
  --device int           GPU device index
  --counters strings     Counter names to subscribe
  --stream string        Stream/worker owning the collector (default: default)
  --kernel string        Kernel name (profile: default is the command name)

Output Flags:
  -f, --format string    jsonl, jsonl.zst, csv, tsv, parquet, cbor (default: jsonl)
  -o, --output string    Output file path
  --merge-static         Merge host and device info into every record
  --graph-dir string     Graph output directory
  --html string          Heatmap HTML output path
  --no-card              Do not print the throughput card

Other Flags:
  --config string        YAML config file (or KPROF_CONFIG)
  -p, --port int         HTTP server port (default: 8080)
  --log-level string     trace, debug, info, warn, error (default: info)
  --log-format string    console, json (default: console)

Examples:
  # Profile a command
  kprof profile --kernel gemm -o gemm.parquet -- ./bench --size 4096

  # HTTP server
  kprof serve --port 9090

  # Render cards and a report from an export
  kprof card gemm.parquet
  kprof graph --graph-dir graphs/ gemm.parquet

  # Attention weights heatmap
  kprof heatmap --html weights.html weights.json
`)
}
