package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNewWritesJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "bossd.log")
	logger, err := New(path, "main", "debug")
	if err != nil {
		t.Fatal(err)
	}
	logger.Debug("hello")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	line := string(data)
	for _, want := range []string{`"msg":"hello"`, `"session":"main"`, `"ts":`} {
		if !strings.Contains(line, want) {
			t.Errorf("log line %q missing %s", line, want)
		}
	}
}

func TestNewTagsProcessAndFiltersLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bosstui.log")
	logger, err := New(path, "work", "warn", WithoutConsole(), WithProcess("bosstui"))
	if err != nil {
		t.Fatal(err)
	}
	logger.Info("dropped")
	logger.Warn("kept")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	out := string(data)
	if strings.Contains(out, "dropped") {
		t.Errorf("info entry written at warn level: %s", out)
	}
	if !strings.Contains(out, `"process":"bosstui"`) || !strings.Contains(out, `"msg":"kept"`) {
		t.Errorf("log = %s", out)
	}
}

func TestParseLevel(t *testing.T) {
	if ParseLevel("warn") != zapcore.WarnLevel {
		t.Error("warn not parsed")
	}
	if ParseLevel("nonsense") != zapcore.InfoLevel {
		t.Error("unknown level should fall back to info")
	}
}
