package cli

import (
	"bytes"
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func gatewayFlags(t *testing.T, rawURL string) []string {
	t.Helper()
	u, err := url.Parse(rawURL)
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	host, port, err := net.SplitHostPort(u.Host)
	if err != nil {
		t.Fatalf("split host: %v", err)
	}
	return []string{"--host", host, "--port", port}
}

func TestRestClientPrintsResponse(t *testing.T) {
	gw := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content type = %q", ct)
		}
		_, _ = w.Write([]byte("<classC/>"))
	}))
	defer gw.Close()

	var out, errOut bytes.Buffer
	c := NewRestClient()
	c.SetOutput(&out, &errOut)
	c.SetArgs(gatewayFlags(t, gw.URL))

	if err := c.Execute(context.Background()); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got := out.String(); got != "<classC/>\n" {
		t.Fatalf("stdout = %q", got)
	}
}

func TestRestClientDefaultCallIgnoresAmbientEnv(t *testing.T) {
	t.Setenv("TARGET", "x86_64-unknown-linux-gnu")
	t.Setenv("FUNCTION", "other")
	t.Setenv("FORMAT", "json")

	gw := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/funcs/get_class_c" || r.URL.RawQuery != "format=xml" {
			t.Errorf("unexpected request %s", r.URL.RequestURI())
		}
		_, _ = w.Write([]byte("<classC/>"))
	}))
	defer gw.Close()

	var out bytes.Buffer
	c := NewRestClient()
	c.SetOutput(&out, &bytes.Buffer{})
	c.SetArgs(gatewayFlags(t, gw.URL))

	if err := c.Execute(context.Background()); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if out.String() != "<classC/>\n" {
		t.Fatalf("stdout = %q", out.String())
	}
}

func TestRestClientFailureLeavesStdoutEmpty(t *testing.T) {
	gw := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer gw.Close()

	var out bytes.Buffer
	c := NewRestClient()
	c.SetOutput(&out, &bytes.Buffer{})
	c.SetArgs(gatewayFlags(t, gw.URL))

	err := c.Execute(context.Background())
	if err == nil {
		t.Fatalf("expected error for 500 response")
	}
	if !strings.Contains(err.Error(), "500") {
		t.Fatalf("error should carry the status, got %v", err)
	}
	if out.Len() != 0 {
		t.Fatalf("stdout = %q, want empty", out.String())
	}
}

func TestRestClientRejectsBadParam(t *testing.T) {
	c := NewRestClient()
	c.SetOutput(&bytes.Buffer{}, &bytes.Buffer{})
	c.SetArgs([]string{"--param", "novalue"})
	if err := c.Execute(context.Background()); err == nil {
		t.Fatalf("expected param parse error")
	}
}

func TestRestClientTargetsListsDefault(t *testing.T) {
	var out bytes.Buffer
	c := NewRestClient()
	c.SetOutput(&out, &bytes.Buffer{})
	c.SetArgs([]string{"targets"})

	if err := c.Execute(context.Background()); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	want := "get_class_c\thttp://localhost:8877/funcs/get_class_c?format=xml\n"
	if out.String() != want {
		t.Fatalf("stdout = %q, want %q", out.String(), want)
	}
}

func TestRestClientHistoryRoundTrip(t *testing.T) {
	gw := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<r/>"))
	}))
	defer gw.Close()

	db := filepath.Join(t.TempDir(), "probes.db")
	storage := []string{"--storage", "bbolt", "--bbolt-path", db}

	c := NewRestClient()
	c.SetOutput(&bytes.Buffer{}, &bytes.Buffer{})
	c.SetArgs(append(gatewayFlags(t, gw.URL), storage...))
	if err := c.Execute(context.Background()); err != nil {
		t.Fatalf("probe: %v", err)
	}

	var out bytes.Buffer
	h := NewRestClient()
	h.SetOutput(&out, &bytes.Buffer{})
	h.SetArgs(append([]string{"history", "--limit", "5"}, storage...))
	if err := h.Execute(context.Background()); err != nil {
		t.Fatalf("history: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 1 || !strings.Contains(lines[0], `"target_id":"get_class_c"`) {
		t.Fatalf("unexpected history output %q", out.String())
	}
}

func TestPkgDescShowJSON(t *testing.T) {
	var out bytes.Buffer
	c := NewPkgDesc()
	c.SetOutput(&out, &bytes.Buffer{})
	c.SetArgs([]string{"show", "--output", "json"})

	if err := c.Execute(context.Background()); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	for _, want := range []string{
		`"name": "agnos_restful_webserver"`,
		`"version": "0.1.0"`,
		`"url": "None"`,
		`"agnos_restful_webserver": "src"`,
	} {
		if !strings.Contains(out.String(), want) {
			t.Fatalf("output missing %s:\n%s", want, out.String())
		}
	}
}

func TestPkgDescValidate(t *testing.T) {
	root := t.TempDir()

	c := NewPkgDesc()
	c.SetOutput(&bytes.Buffer{}, &bytes.Buffer{})
	c.SetArgs([]string{"validate", "--check-dirs", "--root", root})
	if err := c.Execute(context.Background()); err == nil {
		t.Fatalf("expected missing src directory error")
	}

	if err := os.Mkdir(filepath.Join(root, "src"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	var out bytes.Buffer
	c = NewPkgDesc()
	c.SetOutput(&out, &bytes.Buffer{})
	c.SetArgs([]string{"validate", "--check-dirs", "--root", root})
	if err := c.Execute(context.Background()); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if out.String() != "agnos_restful_webserver 0.1.0 ok\n" {
		t.Fatalf("stdout = %q", out.String())
	}
}

func TestPkgDescValidateRejectsIncompleteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "package.json")
	if err := os.WriteFile(path, []byte(`{"name":"x","packages":["x"]}`), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	c := NewPkgDesc()
	c.SetOutput(&bytes.Buffer{}, &bytes.Buffer{})
	c.SetArgs([]string{"--file", path, "validate"})
	if err := c.Execute(context.Background()); err == nil {
		t.Fatalf("expected validation error")
	}
}
