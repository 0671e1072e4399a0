package utils

import (
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

type Config struct {
	DisableNvidia bool     `yaml:"disable_nvidia"`
	DeviceIndex   int      `yaml:"device_index"`
	Counters      []string `yaml:"counters"`
	Stream        string   `yaml:"stream"`
	Kernel        string   `yaml:"kernel"`
	Format        string   `yaml:"format"`
	OutputFile    string   `yaml:"output"`
	GraphDir      string   `yaml:"graph_dir"`
	Port          int      `yaml:"port"`
	LogLevel      string   `yaml:"log_level"`
	LogFormat     string   `yaml:"log_format"`
	NoCard        bool     `yaml:"no_card"`
	HTMLOutput    string   `yaml:"html"`
	MergeStatic   bool     `yaml:"merge_static"`
	ConfigFile    string   `yaml:"-"`
	RunID         string   `yaml:"-"`
	Hostname      string   `yaml:"-"`
}

func NewConfig() *Config {
	return &Config{
		Stream:    DefaultStream,
		Format:    "jsonl",
		Port:      8080,
		LogLevel:  "info",
		LogFormat: "console",
		RunID:     NewRunID(),
		Hostname:  GetHostname(),
	}
}

// GetFlags registers the shared flags on fs. The returned func must be
// called after fs.Parse; it loads the YAML file named by --config (if any)
// and then re-applies every flag the user set explicitly, so flags win
// over the file.
func GetFlags(fs *pflag.FlagSet, cfg *Config) func() error {
	fs.StringVar(&cfg.ConfigFile, "config", "", "YAML config file")
	fs.BoolVar(&cfg.DisableNvidia, "no-nvidia", cfg.DisableNvidia, "Disable the NVIDIA counter backend (duration-only mode)")
	fs.IntVar(&cfg.DeviceIndex, "device", cfg.DeviceIndex, "GPU device index")
	fs.StringSliceVar(&cfg.Counters, "counters", cfg.Counters, "Counter names to subscribe (default: built-in list)")
	fs.StringVar(&cfg.Stream, "stream", cfg.Stream, "Stream/worker name owning the collector")
	fs.StringVar(&cfg.Kernel, "kernel", cfg.Kernel, "Kernel name to record")
	fs.StringVarP(&cfg.Format, "format", "f", cfg.Format, "Output format: jsonl, jsonl.zst, csv, tsv, parquet, cbor")
	fs.StringVarP(&cfg.OutputFile, "output", "o", cfg.OutputFile, "Output file path")
	fs.StringVar(&cfg.GraphDir, "graph-dir", cfg.GraphDir, "Graph output directory")
	fs.IntVarP(&cfg.Port, "port", "p", cfg.Port, "HTTP server port")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level: trace, debug, info, warn, error")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "Log format: console, json")
	fs.BoolVar(&cfg.NoCard, "no-card", cfg.NoCard, "Do not print the throughput card")
	fs.StringVar(&cfg.HTMLOutput, "html", cfg.HTMLOutput, "Write an HTML rendering to this path")
	fs.BoolVar(&cfg.MergeStatic, "merge-static", cfg.MergeStatic, "Merge host and device info into every exported record")

	return func() error {
		if cfg.ConfigFile == "" {
			return nil
		}
		fromFlags := *cfg
		if err := LoadConfigFile(cfg.ConfigFile, cfg); err != nil {
			return err
		}
		// explicit flags win over the file
		fs.Visit(func(f *pflag.Flag) {
			if keep, ok := flagFields[f.Name]; ok {
				keep(cfg, &fromFlags)
			}
		})
		return nil
	}
}

var flagFields = map[string]func(dst, src *Config){
	"no-nvidia":    func(dst, src *Config) { dst.DisableNvidia = src.DisableNvidia },
	"device":       func(dst, src *Config) { dst.DeviceIndex = src.DeviceIndex },
	"counters":     func(dst, src *Config) { dst.Counters = src.Counters },
	"stream":       func(dst, src *Config) { dst.Stream = src.Stream },
	"kernel":       func(dst, src *Config) { dst.Kernel = src.Kernel },
	"format":       func(dst, src *Config) { dst.Format = src.Format },
	"output":       func(dst, src *Config) { dst.OutputFile = src.OutputFile },
	"graph-dir":    func(dst, src *Config) { dst.GraphDir = src.GraphDir },
	"port":         func(dst, src *Config) { dst.Port = src.Port },
	"log-level":    func(dst, src *Config) { dst.LogLevel = src.LogLevel },
	"log-format":   func(dst, src *Config) { dst.LogFormat = src.LogFormat },
	"no-card":      func(dst, src *Config) { dst.NoCard = src.NoCard },
	"html":         func(dst, src *Config) { dst.HTMLOutput = src.HTMLOutput },
	"merge-static": func(dst, src *Config) { dst.MergeStatic = src.MergeStatic },
}

// LoadConfigFile overlays the YAML file at path onto cfg.
func LoadConfigFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	cfg.Format = strings.ToLower(cfg.Format)
	return nil
}

func GetHostname() string {
	if h, err := os.Hostname(); err == nil {
		return h
	}
	return "unknown"
}

func NewRunID() string {
	return uuid.NewString()
}
