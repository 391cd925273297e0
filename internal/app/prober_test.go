package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/agnos-rpc/restful-probe/internal/config"
	"github.com/agnos-rpc/restful-probe/internal/probe"
	"github.com/agnos-rpc/restful-probe/pkg/publishers"
)

// lockedBuffer is written by the watch loop and read by the test.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func testConfig(t *testing.T, gatewayURL string) *config.Config {
	t.Helper()
	u, err := url.Parse(gatewayURL)
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	host, portStr, err := net.SplitHostPort(u.Host)
	if err != nil {
		t.Fatalf("split host: %v", err)
	}
	port, _ := strconv.Atoi(portStr)

	return &config.Config{
		AppName:                "restful-probe",
		Target:                 "get_class_c",
		GatewayHost:            host,
		GatewayPort:            port,
		StorageType:            "none",
		StorageTTL:             time.Hour,
		StorageCleanupInterval: time.Hour,
	}
}

func TestProberPrintsBodyVerbatim(t *testing.T) {
	gw := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/funcs/get_class_c" || r.URL.Query().Get("format") != "xml" {
			t.Errorf("unexpected request %s", r.URL.RequestURI())
		}
		_, _ = w.Write([]byte("<class name=\"C\"/>"))
	}))
	defer gw.Close()

	p, err := NewProber(context.Background(), testConfig(t, gw.URL), nil, Options{})
	if err != nil {
		t.Fatalf("NewProber: %v", err)
	}

	var out bytes.Buffer
	if err := p.Run(context.Background(), &out); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := out.String(); got != "<class name=\"C\"/>\n" {
		t.Fatalf("stdout = %q", got)
	}
}

func TestProberUnreachableWritesNothing(t *testing.T) {
	gw := httptest.NewServer(http.NotFoundHandler())
	cfg := testConfig(t, gw.URL)
	gw.Close()

	p, err := NewProber(context.Background(), cfg, nil, Options{})
	if err != nil {
		t.Fatalf("NewProber: %v", err)
	}

	var out bytes.Buffer
	err = p.Run(context.Background(), &out)
	var terr *probe.TransportError
	if !errors.As(err, &terr) {
		t.Fatalf("expected TransportError, got %v", err)
	}
	if out.Len() != 0 {
		t.Fatalf("expected empty stdout, got %q", out.String())
	}
}

func TestProberSelectorAndParams(t *testing.T) {
	gw := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var params map[string]any
		if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
			t.Errorf("decode params: %v", err)
		}
		_, _ = fmt.Fprintf(w, "<result><name>%v</name><name>second</name></result>", params["who"])
	}))
	defer gw.Close()

	p, err := NewProber(context.Background(), testConfig(t, gw.URL), nil, Options{
		Params:   map[string]any{"who": "first"},
		Selector: "name",
	})
	if err != nil {
		t.Fatalf("NewProber: %v", err)
	}

	var out bytes.Buffer
	if err := p.Run(context.Background(), &out); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := out.String(); got != "first\nsecond\n" {
		t.Fatalf("stdout = %q", got)
	}
}

func TestProberExtractionFailureIsRecordedAsFailed(t *testing.T) {
	oversized := bytes.Repeat([]byte("<name>x</name>"), (1<<20)/14+1)
	gw := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(oversized)
	}))
	defer gw.Close()

	var lastEvent publishers.Event
	sink := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&lastEvent); err != nil {
			t.Errorf("decode event: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer sink.Close()

	dir := t.TempDir()
	pubFile := filepath.Join(dir, "publishers.yaml")
	raw := fmt.Sprintf("publishers:\n  - id: hook\n    type: http\n    http:\n      url: %s\n", sink.URL)
	if err := os.WriteFile(pubFile, []byte(raw), 0o644); err != nil {
		t.Fatalf("write publishers file: %v", err)
	}

	cfg := testConfig(t, gw.URL)
	cfg.StorageType = "bbolt"
	cfg.BBoltPath = filepath.Join(dir, "probes.db")
	cfg.PublishersFile = pubFile

	p, err := NewProber(context.Background(), cfg, nil, Options{Selector: "name"})
	if err != nil {
		t.Fatalf("NewProber: %v", err)
	}
	var out bytes.Buffer
	err = p.Run(context.Background(), &out)
	if !errors.Is(err, probe.ErrBodyTooLarge) {
		t.Fatalf("expected ErrBodyTooLarge, got %v", err)
	}
	if out.Len() != 0 {
		t.Fatalf("expected empty stdout, got %d bytes", out.Len())
	}
	if lastEvent.Status() != "error" {
		t.Fatalf("published status = %q, want error", lastEvent.Status())
	}

	entries, err := History(cfg, 1)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(entries) != 1 || entries[0].OK() {
		t.Fatalf("history should hold a failed entry, got %#v", entries)
	}
}

func TestProberRecordsHistoryAndPublishes(t *testing.T) {
	gw := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	defer gw.Close()

	var published atomic.Int32
	var lastEvent publishers.Event
	sink := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&lastEvent); err != nil {
			t.Errorf("decode event: %v", err)
		}
		published.Add(1)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer sink.Close()

	dir := t.TempDir()
	pubFile := filepath.Join(dir, "publishers.yaml")
	raw := fmt.Sprintf("publishers:\n  - id: hook\n    type: http\n    http:\n      url: %s\n", sink.URL)
	if err := os.WriteFile(pubFile, []byte(raw), 0o644); err != nil {
		t.Fatalf("write publishers file: %v", err)
	}

	cfg := testConfig(t, gw.URL)
	cfg.StorageType = "bbolt"
	cfg.BBoltPath = filepath.Join(dir, "probes.db")
	cfg.PublishersFile = pubFile

	p, err := NewProber(context.Background(), cfg, nil, Options{})
	if err != nil {
		t.Fatalf("NewProber: %v", err)
	}
	var out bytes.Buffer
	if err := p.Run(context.Background(), &out); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if published.Load() != 1 {
		t.Fatalf("expected 1 published event, got %d", published.Load())
	}
	if lastEvent.Probe.StatusCode != http.StatusOK || lastEvent.Source != "restful-probe" {
		t.Fatalf("unexpected event %#v", lastEvent)
	}

	entries, err := History(cfg, 10)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(entries) != 1 || entries[0].Body != "ok" || entries[0].TargetID != "get_class_c" {
		t.Fatalf("unexpected history %#v", entries)
	}
}

func TestProberWatchKeepsGoingAfterFailures(t *testing.T) {
	var calls atomic.Int32
	gw := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 2 {
			http.Error(w, "flaky", http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte("tick"))
	}))
	defer gw.Close()

	cfg := testConfig(t, gw.URL)
	cfg.WatchInterval = 10 * time.Millisecond

	p, err := NewProber(context.Background(), cfg, nil, Options{})
	if err != nil {
		t.Fatalf("NewProber: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	out := &lockedBuffer{}
	go func() { done <- p.Run(ctx, out) }()

	deadline := time.After(5 * time.Second)
	for calls.Load() < 4 {
		select {
		case <-deadline:
			cancel()
			t.Fatalf("watch loop made only %d calls", calls.Load())
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()

	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.String() == "" {
		t.Fatalf("expected ticks on stdout")
	}
}

func TestHistoryRequiresBolt(t *testing.T) {
	if _, err := History(&config.Config{StorageType: "none"}, 5); err == nil {
		t.Fatalf("expected error without bbolt storage")
	}
}

func TestNewProberUnknownTarget(t *testing.T) {
	cfg := testConfig(t, "http://127.0.0.1:1")
	cfg.Target = "missing"
	if _, err := NewProber(context.Background(), cfg, nil, Options{}); err == nil {
		t.Fatalf("expected unknown target error")
	}
}
