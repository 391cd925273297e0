package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/agnos-rpc/restful-probe/internal/config"
)

func TestInitWritesJSONAtConfiguredLevel(t *testing.T) {
	var buf bytes.Buffer
	log, err := initWithSink(&config.Config{AppName: "probe", LogLevel: "warn"}, &buf)
	if err != nil {
		t.Fatalf("initWithSink: %v", err)
	}
	defer func() { S = nil }()

	log.InfoObj("dropped", "k", 1)
	log.WarnObj("kept", "target", map[string]any{"id": "get_class_c"})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected 1 log line, got %d: %q", len(lines), buf.String())
	}

	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("decode entry: %v", err)
	}
	if entry["msg"] != "kept" || entry["app"] != "probe" {
		t.Fatalf("unexpected entry %#v", entry)
	}
	if _, ok := entry["ts"]; !ok {
		t.Fatalf("missing ts key in %#v", entry)
	}
}

func TestErrorEntriesCarryStacktrace(t *testing.T) {
	var buf bytes.Buffer
	log, err := initWithSink(&config.Config{LogLevel: "error"}, &buf)
	if err != nil {
		t.Fatalf("initWithSink: %v", err)
	}
	defer func() { S = nil }()

	log.ErrorObj("boom", "error", "connection refused")
	if !strings.Contains(buf.String(), `"stacktrace"`) {
		t.Fatalf("expected stacktrace in %q", buf.String())
	}
}

func TestEnsureNil(t *testing.T) {
	if _, ok := Ensure(nil).(NopLogger); !ok {
		t.Fatalf("Ensure(nil) should return NopLogger")
	}
}

func TestPackageHelpersLogThroughS(t *testing.T) {
	S = nil
	InfoObj("before init", "k", 1)

	var buf bytes.Buffer
	if _, err := initWithSink(&config.Config{LogLevel: "debug"}, &buf); err != nil {
		t.Fatalf("initWithSink: %v", err)
	}
	defer func() { S = nil }()

	DebugObj("d", "k", 1)
	InfoObj("i", "k", 2)
	WarnObj("w", "k", 3)
	ErrorObj("e", "k", 4)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected 4 log lines, got %d: %q", len(lines), buf.String())
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[1]), &entry); err != nil {
		t.Fatalf("decode entry: %v", err)
	}
	caller, _ := entry["caller"].(string)
	if entry["msg"] != "i" || !strings.Contains(caller, "logger_test.go") {
		t.Fatalf("unexpected entry %#v", entry)
	}
}
