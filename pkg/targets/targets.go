package targets

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/agnos-rpc/restful-probe/internal/domain"
	"gopkg.in/yaml.v3"
)

// Package targets loads named gateway call definitions from YAML/JSON files.

type registryFile struct {
	Targets []domain.Target `json:"targets" yaml:"targets"`
}

// Registry holds the targets known to the client, always including the built-in default.
type Registry struct {
	mu  sync.RWMutex
	ids []string
	idx map[string]domain.Target
}

// NewRegistry builds a registry from already-parsed targets. The built-in
// default target is added unless one of the entries reuses its id.
func NewRegistry(entries ...domain.Target) (*Registry, error) {
	reg := &Registry{idx: make(map[string]domain.Target, len(entries)+1)}

	for i := range entries {
		t := sanitizeTarget(entries[i])
		if err := validateTarget(t); err != nil {
			return nil, fmt.Errorf("targets[%d]: %w", i, err)
		}
		if _, exists := reg.idx[t.ID]; exists {
			return nil, fmt.Errorf("duplicate target id %q", t.ID)
		}
		reg.idx[t.ID] = t
		reg.ids = append(reg.ids, t.ID)
	}

	if _, ok := reg.idx[domain.DefaultTargetID]; !ok {
		reg.idx[domain.DefaultTargetID] = domain.DefaultTarget()
		reg.ids = append(reg.ids, domain.DefaultTargetID)
	}
	return reg, nil
}

// LoadRegistry loads targets from path. An empty path yields the default-only registry.
func LoadRegistry(path string) (*Registry, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return NewRegistry()
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open targets file: %w", err)
	}
	defer file.Close()

	raw, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("read targets file: %w", err)
	}

	parsed, err := parseRegistry(raw, filepath.Ext(path))
	if err != nil {
		return nil, err
	}
	if len(parsed.Targets) == 0 {
		return nil, errors.New("targets file contains no targets entries")
	}
	return NewRegistry(parsed.Targets...)
}

type unmarshalFn func([]byte, any) error

func parseRegistry(data []byte, ext string) (registryFile, error) {
	ext = strings.ToLower(strings.TrimSpace(ext))

	decoders := []struct {
		name string
		ext  string
		fn   unmarshalFn
	}{
		{name: "yaml", ext: ".yaml", fn: yaml.Unmarshal},
		{name: "yaml", ext: ".yml", fn: yaml.Unmarshal},
		{name: "json", ext: ".json", fn: json.Unmarshal},
	}

	for _, d := range decoders {
		if ext != "" && ext != d.ext {
			continue
		}
		var reg registryFile
		if err := d.fn(data, &reg); err == nil {
			return reg, nil
		}
	}

	return registryFile{}, errors.New("targets file format not recognized (expected YAML or JSON)")
}

func sanitizeTarget(t domain.Target) domain.Target {
	t.ID = strings.TrimSpace(t.ID)
	t.Host = strings.TrimSpace(t.Host)
	t.Function = strings.TrimSpace(t.Function)
	t.Format = strings.TrimSpace(t.Format)

	if t.Port == 0 {
		t.Port = domain.DefaultPort
	}
	if t.Format == "" {
		t.Format = domain.DefaultFormat
	}
	if t.Params == nil {
		t.Params = map[string]any{}
	}
	t.Headers = sanitizeHeaders(t.Headers)
	return t
}

// sanitizeHeaders trims, drops empty entries and makes sure a content type is present.
func sanitizeHeaders(headers map[string]string) map[string]string {
	out := make(map[string]string, len(headers)+1)
	hasContentType := false
	for k, v := range headers {
		key := strings.TrimSpace(k)
		val := strings.TrimSpace(v)
		if key == "" || val == "" {
			continue
		}
		if strings.EqualFold(key, domain.ContentTypeHeader) {
			hasContentType = true
		}
		out[key] = val
	}
	if !hasContentType {
		out[domain.ContentTypeHeader] = domain.ContentTypeJSON
	}
	return out
}

func validateTarget(t domain.Target) error {
	if t.ID == "" {
		return errors.New("id is required")
	}
	if t.Host == "" {
		return fmt.Errorf("host is required for target %q", t.ID)
	}
	if t.Function == "" {
		return fmt.Errorf("function is required for target %q", t.ID)
	}
	if strings.Contains(t.Function, "/") {
		return fmt.Errorf("function %q for target %q must not contain '/'", t.Function, t.ID)
	}
	if t.Port < 1 || t.Port > 65535 {
		return fmt.Errorf("port %d out of range for target %q", t.Port, t.ID)
	}
	return nil
}

// ByID returns a copy of the target with the given id.
func (r *Registry) ByID(id string) (domain.Target, bool) {
	if r == nil {
		return domain.Target{}, false
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Target{}, false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.idx[id]
	if !ok {
		return domain.Target{}, false
	}
	return t.Clone(), true
}

// IDs returns the known target ids, sorted.
func (r *Registry) IDs() []string {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	out := append([]string(nil), r.ids...)
	r.mu.RUnlock()
	sort.Strings(out)
	return out
}
