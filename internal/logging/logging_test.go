package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestNewJSONWritesFields(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "debug", Format: "json", Output: &buf})

	log.With(String("chain", "rx")).Debug(context.Background(), "evaluated", Int("stages", 3), Bool("ok", true))

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("decode %q: %v", buf.String(), err)
	}
	if rec["msg"] != "evaluated" || rec["chain"] != "rx" || rec["stages"] != float64(3) || rec["ok"] != true {
		t.Fatalf("unexpected record: %v", rec)
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "warn", Output: &buf})
	log.Info(context.Background(), "hidden")
	log.Warn(context.Background(), "shown")

	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "shown") {
		t.Fatalf("unexpected output: %q", buf.String())
	}
}

func TestConfigFromEnvPrefersPrefixedKeys(t *testing.T) {
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("RFCASCADE_LOG_LEVEL", "debug")
	t.Setenv("RFCASCADE_LOG_FORMAT", "")
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("RFCASCADE_LOG_SOURCE", "TRUE")

	cfg := ConfigFromEnv()
	if cfg.Level != "debug" || cfg.Format != "json" || !cfg.AddSource {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

func TestRequestScopedLogger(t *testing.T) {
	ctx, id := EnsureRequestID(context.Background())
	if id == "" || RequestIDFromContext(ctx) != id {
		t.Fatalf("request id not stored")
	}
	if again, same := EnsureRequestID(ctx); same != id || again != ctx {
		t.Fatalf("existing request id replaced")
	}

	var buf bytes.Buffer
	ctx, reqLog := WithRequestLogger(ContextWithRequestID(context.Background(), "req-1"), New(Config{Output: &buf}))
	ctx = ContextWithLogger(ctx, reqLog)
	FromContext(ctx, Noop()).Info(ctx, "hello")
	if !strings.Contains(buf.String(), "request_id=req-1") {
		t.Fatalf("request id missing from %q", buf.String())
	}

	if FromContext(context.Background(), nil) == nil {
		t.Fatalf("FromContext returned nil")
	}
}

func TestConfigValidate(t *testing.T) {
	for _, cfg := range []Config{{}, {Level: "WARNING", Format: "JSON"}, {Level: "debug", Format: "text"}} {
		if err := cfg.Validate(); err != nil {
			t.Fatalf("Validate(%+v): %v", cfg, err)
		}
	}
	for _, cfg := range []Config{{Level: "loud"}, {Format: "xml"}} {
		if err := cfg.Validate(); err == nil {
			t.Fatalf("expected error for %+v", cfg)
		}
	}
}

func TestDomainFields(t *testing.T) {
	var buf bytes.Buffer
	New(Config{Format: "json", Output: &buf}).Info(context.Background(), "stage degraded",
		Chain("tx-array"), Stage(3), Duration("elapsed_seconds", 1500*time.Millisecond))

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rec["chain"] != "tx-array" || rec["stage"] != float64(3) || rec["elapsed_seconds"] != 1.5 {
		t.Fatalf("unexpected record: %v", rec)
	}
}
