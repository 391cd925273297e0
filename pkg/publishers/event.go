package publishers

import (
	"time"

	"github.com/agnos-rpc/restful-probe/internal/domain"
)

// Event represents the payload published downstream for one probe outcome.
type Event struct {
	Source      string             `json:"source"`
	Probe       domain.ProbeResult `json:"probe"`
	PublishedAt time.Time          `json:"published_at"`
}

// NewEvent constructs an Event for the given probe result.
func NewEvent(source string, res domain.ProbeResult) Event {
	return Event{
		Source:      source,
		Probe:       res,
		PublishedAt: time.Now().UTC(),
	}
}

// Status is "ok" for a successful call and "error" otherwise.
func (e Event) Status() string {
	if e.Probe.OK() {
		return "ok"
	}
	return "error"
}

// attributes are the routing attributes attached to queue/topic messages.
func (e Event) attributes() map[string]string {
	return map[string]string{
		"target_id": e.Probe.TargetID,
		"status":    e.Status(),
	}
}
