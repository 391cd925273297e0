package targets

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/agnos-rpc/restful-probe/internal/domain"
)

// Overrides replace individual fields of a resolved target. Zero values leave the field alone.
type Overrides struct {
	Host     string
	Port     int
	Function string
	Format   string
	Params   map[string]any
}

// Resolve picks target id from the registry and applies the overrides.
func (r *Registry) Resolve(id string, o Overrides) (domain.Target, error) {
	t, ok := r.ByID(id)
	if !ok {
		return domain.Target{}, fmt.Errorf("unknown target %q (known: %s)", id, strings.Join(r.IDs(), ", "))
	}

	if v := strings.TrimSpace(o.Host); v != "" {
		t.Host = v
	}
	if o.Port != 0 {
		t.Port = o.Port
	}
	if v := strings.TrimSpace(o.Function); v != "" {
		t.Function = v
	}
	if v := strings.TrimSpace(o.Format); v != "" {
		t.Format = v
	}
	for k, v := range o.Params {
		t.Params[k] = v
	}

	if err := validateTarget(t); err != nil {
		return domain.Target{}, err
	}
	return t, nil
}

// ParseParams turns key=value pairs into a params map. Values that parse as
// JSON (numbers, booleans, arrays, objects, quoted strings) keep their type;
// anything else is kept as a plain string.
func ParseParams(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, raw, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid param %q (expected key=value)", pair)
		}
		var val any
		if err := json.Unmarshal([]byte(raw), &val); err != nil {
			val = raw
		}
		out[key] = val
	}
	return out, nil
}
