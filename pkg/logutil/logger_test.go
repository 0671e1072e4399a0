package logutil

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zapcore.Level
	}{
		{"trace", zapcore.DebugLevel},
		{"DEBUG", zapcore.DebugLevel},
		{"info", zapcore.InfoLevel},
		{"warning", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"bogus", zapcore.InfoLevel},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v; want %v", tt.in, got, tt.want)
		}
	}
}

func TestGetLoggerBeforeInit(t *testing.T) {
	if GetLogger() == nil {
		t.Fatal("GetLogger returned nil")
	}
}

func TestInitLogger(t *testing.T) {
	InitLogger("debug", "console")
	if !GetLogger().Core().Enabled(zapcore.DebugLevel) {
		t.Error("debug level not enabled after InitLogger(debug)")
	}
	InitLogger("warn", "json")
	if GetLogger().Core().Enabled(zapcore.InfoLevel) {
		t.Error("info level enabled after InitLogger(warn)")
	}
}
