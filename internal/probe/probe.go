package probe

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/agnos-rpc/restful-probe/internal/domain"
	"github.com/agnos-rpc/restful-probe/pkg/httpclient"
)

// Client sends a target's call to the gateway.
type Client struct {
	http httpclient.Client
	now  func() time.Time
}

// NewClient wraps the given HTTP client. A nil client means resty with no timeout.
func NewClient(client httpclient.Client) *Client {
	if client == nil {
		client = httpclient.NewRestyClient(0)
	}
	return &Client{http: client, now: time.Now}
}

// Call posts the target's JSON params to its function URL and returns the
// response body. Transport failures and non-2xx statuses are errors; the
// returned result describes the attempt either way.
func (c *Client) Call(ctx context.Context, t domain.Target) (domain.ProbeResult, []byte, error) {
	url := t.URL()
	start := c.now()
	res := domain.ProbeResult{
		TargetID:   t.ID,
		URL:        url,
		ObservedAt: start.UTC(),
	}

	body, err := t.Body()
	if err != nil {
		res.Error = err.Error()
		return res, nil, err
	}

	resp, err := c.http.Post(ctx, url, t.Headers, body)
	res.Duration = c.now().Sub(start)
	if err != nil {
		terr := &TransportError{URL: url, Err: err}
		res.Error = terr.Error()
		return res, nil, terr
	}

	payload := resp.Body()
	res.StatusCode = resp.StatusCode()
	if res.StatusCode < 200 || res.StatusCode > 299 {
		serr := &StatusError{URL: url, StatusCode: res.StatusCode, Snippet: responseSnippet(payload)}
		res.Error = serr.Error()
		return res, nil, serr
	}

	res.Body = string(payload)
	return res, payload, nil
}

// TransportError means the request never produced an HTTP response.
type TransportError struct {
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("post %s: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// StatusError means the gateway answered with a non-2xx status.
type StatusError struct {
	URL        string
	StatusCode int
	Snippet    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("post %s returned status %d body: %s", e.URL, e.StatusCode, e.Snippet)
}

func responseSnippet(body []byte) string {
	const maxLen = 512
	s := strings.TrimSpace(string(body))
	if len(s) > maxLen {
		cut := maxLen
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		return s[:cut] + "..."
	}
	if s == "" {
		return "<empty>"
	}
	return s
}
