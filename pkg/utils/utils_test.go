package utils

import (
	"math"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/spf13/pflag"
)

func TestToUint64(t *testing.T) {
	tests := []struct {
		in   interface{}
		want uint64
	}{
		{uint64(42), 42},
		{int64(7), 7},
		{int64(-3), 0},
		{float64(1e9), 1_000_000_000},
		{"128921", 128921},
		{"nope", 0},
		{nil, 0},
		{math.NaN(), 0},
	}
	for _, tt := range tests {
		if got := ToUint64(tt.in); got != tt.want {
			t.Errorf("ToUint64(%v) = %d; want %d", tt.in, got, tt.want)
		}
	}
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		in   interface{}
		want string
	}{
		{nil, ""},
		{"x", "x"},
		{int64(-5), "-5"},
		{uint64(18446744073709551615), "18446744073709551615"},
		{3.125, "3.125"},
		{true, "true"},
	}
	for _, tt := range tests {
		if got := FormatValue(tt.in); got != tt.want {
			t.Errorf("FormatValue(%v) = %q; want %q", tt.in, got, tt.want)
		}
	}
}

func TestNewConfigDefaults(t *testing.T) {
	cfg := NewConfig()
	if cfg.Stream != DefaultStream {
		t.Errorf("Stream = %q; want %q", cfg.Stream, DefaultStream)
	}
	if cfg.RunID == "" {
		t.Error("RunID is empty")
	}
	if cfg.Port != 8080 {
		t.Errorf("Port = %d; want 8080", cfg.Port)
	}
}

func TestFlagsOverrideConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "kprof.yaml")
	content := []byte("port: 9090\nstream: from-file\ncounters:\n  - dram__bytes_read.sum\n  - sm__cycles_elapsed.max\n")
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatal(err)
	}

	cfg := NewConfig()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	apply := GetFlags(fs, cfg)
	if err := fs.Parse([]string{"--config", path, "--stream", "from-flag"}); err != nil {
		t.Fatal(err)
	}
	if err := apply(); err != nil {
		t.Fatal(err)
	}

	if cfg.Port != 9090 {
		t.Errorf("Port = %d; want 9090 from file", cfg.Port)
	}
	if cfg.Stream != "from-flag" {
		t.Errorf("Stream = %q; want flag value", cfg.Stream)
	}
	want := []string{"dram__bytes_read.sum", "sm__cycles_elapsed.max"}
	if !reflect.DeepEqual(cfg.Counters, want) {
		t.Errorf("Counters = %v; want %v", cfg.Counters, want)
	}
}

func TestLoadConfigFileMissing(t *testing.T) {
	if err := LoadConfigFile(filepath.Join(t.TempDir(), "absent.yaml"), NewConfig()); err == nil {
		t.Error("expected error for missing config file")
	}
}
