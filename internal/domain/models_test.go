package domain

import "testing"

func TestDefaultTargetURL(t *testing.T) {
	got := DefaultTarget().URL()
	want := "http://localhost:8877/funcs/get_class_c?format=xml"
	if got != want {
		t.Fatalf("URL() = %q, want %q", got, want)
	}
}

func TestTargetURLWithoutFormat(t *testing.T) {
	tgt := DefaultTarget()
	tgt.Format = ""
	if got := tgt.URL(); got != "http://localhost:8877/funcs/get_class_c" {
		t.Fatalf("unexpected url %q", got)
	}
}

func TestTargetBodyEmptyParams(t *testing.T) {
	for _, params := range []map[string]any{nil, {}} {
		tgt := DefaultTarget()
		tgt.Params = params
		body, err := tgt.Body()
		if err != nil {
			t.Fatalf("Body: %v", err)
		}
		if string(body) != "{}" {
			t.Fatalf("expected {} body, got %q", body)
		}
	}
}

func TestTargetCloneIsolatesMaps(t *testing.T) {
	orig := DefaultTarget()
	cp := orig.Clone()
	cp.Params["x"] = 1
	cp.Headers["X-Test"] = "1"
	if len(orig.Params) != 0 || len(orig.Headers) != 1 {
		t.Fatalf("clone leaked into original: %#v", orig)
	}
}
