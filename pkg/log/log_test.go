package log

import (
	"errors"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewConfig(t *testing.T) {
	cfg := newConfig("debug", "json", "")
	if cfg.Encoding != "json" || cfg.Level.Level() != zapcore.DebugLevel {
		t.Fatalf("unexpected config: encoding=%s level=%s", cfg.Encoding, cfg.Level.Level())
	}
	if len(cfg.OutputPaths) != 1 || cfg.OutputPaths[0] != "stdout" {
		t.Fatalf("unexpected outputs %v", cfg.OutputPaths)
	}

	dir := t.TempDir()
	cfg = newConfig("nonsense", "console", dir)
	if cfg.Encoding != "console" || cfg.Level.Level() != zapcore.InfoLevel {
		t.Fatalf("unexpected config: encoding=%s level=%s", cfg.Encoding, cfg.Level.Level())
	}
	if len(cfg.OutputPaths) != 2 || filepath.Dir(cfg.OutputPaths[1]) != dir {
		t.Fatalf("expected a log file under %s, got %v", dir, cfg.OutputPaths)
	}
}

func TestStructuredFields(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	SetLogger(zap.New(core))
	defer SetLogger(zap.NewNop())

	Infow("HTTP Request Log", "statusCode", 200)
	Error("save failed", errors.New("disk full"))
	Debugf("dropped %d", 1)

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries above debug, got %d", len(entries))
	}
	if entries[0].ContextMap()["statusCode"] != int64(200) {
		t.Fatalf("unexpected fields %v", entries[0].ContextMap())
	}
	if entries[1].Level != zapcore.ErrorLevel || entries[1].ContextMap()["error"] != "disk full" {
		t.Fatalf("unexpected error entry %+v", entries[1])
	}
}
