package domain

import (
	"encoding/json"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"
)

// Domain contains core models shared by the probe, storage and publishers.

const (
	DefaultTargetID    = "get_class_c"
	DefaultHost        = "localhost"
	DefaultPort        = 8877
	DefaultFunction    = "get_class_c"
	DefaultFormat      = "xml"
	ContentTypeHeader  = "Content-type"
	ContentTypeJSON    = "application/json"
	functionPathPrefix = "/funcs/"
)

// Target describes one gateway function call: where it goes and what it sends.
type Target struct {
	ID       string            `json:"id" yaml:"id"`
	Host     string            `json:"host" yaml:"host"`
	Port     int               `json:"port" yaml:"port"`
	Function string            `json:"function" yaml:"function"`
	Format   string            `json:"format" yaml:"format"`
	Params   map[string]any    `json:"params" yaml:"params"`
	Headers  map[string]string `json:"headers" yaml:"headers"`
}

// DefaultTarget returns the gateway call the client makes when nothing is configured.
func DefaultTarget() Target {
	return Target{
		ID:       DefaultTargetID,
		Host:     DefaultHost,
		Port:     DefaultPort,
		Function: DefaultFunction,
		Format:   DefaultFormat,
		Params:   map[string]any{},
		Headers:  map[string]string{ContentTypeHeader: ContentTypeJSON},
	}
}

// URL renders http://<host>:<port>/funcs/<function>?format=<format>.
func (t Target) URL() string {
	u := url.URL{
		Scheme: "http",
		Host:   net.JoinHostPort(t.Host, strconv.Itoa(t.Port)),
		Path:   functionPathPrefix + t.Function,
	}
	if t.Format != "" {
		u.RawQuery = url.Values{"format": []string{t.Format}}.Encode()
	}
	return u.String()
}

// Body encodes Params as JSON. A nil or empty map encodes to "{}".
func (t Target) Body() ([]byte, error) {
	params := t.Params
	if params == nil {
		params = map[string]any{}
	}
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("encode params for %s: %w", t.Function, err)
	}
	return raw, nil
}

// Clone returns a copy whose maps can be modified without touching t.
func (t Target) Clone() Target {
	out := t
	out.Params = make(map[string]any, len(t.Params))
	for k, v := range t.Params {
		out.Params[k] = v
	}
	out.Headers = make(map[string]string, len(t.Headers))
	for k, v := range t.Headers {
		out.Headers[k] = v
	}
	return out
}

// ProbeResult is the outcome of one gateway call.
type ProbeResult struct {
	TargetID   string        `json:"target_id"`
	URL        string        `json:"url"`
	StatusCode int           `json:"status_code,omitempty"`
	Body       string        `json:"body,omitempty"`
	Error      string        `json:"error,omitempty"`
	Duration   time.Duration `json:"duration_ns"`
	ObservedAt time.Time     `json:"observed_at"`
}

// OK reports whether the call produced a usable body.
func (r ProbeResult) OK() bool {
	return r.Error == ""
}
