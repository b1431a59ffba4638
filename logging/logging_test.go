package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNewLevels(t *testing.T) {
	tests := []struct {
		level string
		want  zapcore.Level
	}{
		{"", zapcore.InfoLevel},
		{"debug", zapcore.DebugLevel},
		{" WARN ", zapcore.WarnLevel},
		{"nonsense", zapcore.InfoLevel},
	}
	for _, tt := range tests {
		log, err := New(tt.level, "json")
		if err != nil {
			t.Fatalf("New(%q): %v", tt.level, err)
		}
		if !log.Core().Enabled(tt.want) {
			t.Errorf("New(%q): level %s not enabled", tt.level, tt.want)
		}
		if tt.want > zapcore.DebugLevel && log.Core().Enabled(tt.want-1) {
			t.Errorf("New(%q): level below %s enabled", tt.level, tt.want)
		}
	}
}

func TestNewConsole(t *testing.T) {
	if _, err := New("info", "console"); err != nil {
		t.Fatalf("New console: %v", err)
	}
}
