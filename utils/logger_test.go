package utils

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNewLoggerWithLevel(t *testing.T) {
	tests := []struct {
		level string
		debug bool
		info  bool
	}{
		{"debug", true, true},
		{"INFO", false, true},
		{"error", false, false},
		{"chatty", false, true},
	}

	for _, tt := range tests {
		l := NewLoggerWithLevel(tt.level)
		core := l.sugar.Desugar().Core()
		if got := core.Enabled(zapcore.DebugLevel); got != tt.debug {
			t.Errorf("NewLoggerWithLevel(%q) debug enabled = %v; want %v", tt.level, got, tt.debug)
		}
		if got := core.Enabled(zapcore.InfoLevel); got != tt.info {
			t.Errorf("NewLoggerWithLevel(%q) info enabled = %v; want %v", tt.level, got, tt.info)
		}
	}
}

func TestNopLoggerWith(t *testing.T) {
	l := NewNopLogger().With("run_id", "abc")
	l.Info("collected %d listings", 3)
	l.Sync()
}
