package publishers

import (
	"context"
	"io"
)

// statusFilter forwards only events whose Status matches want.
type statusFilter struct {
	next Publisher
	want string
}

func withNotifyFilter(pub Publisher, notifyOn string) Publisher {
	switch notifyOn {
	case NotifyOK, NotifyError:
		return &statusFilter{next: pub, want: notifyOn}
	default:
		return pub
	}
}

func (f *statusFilter) ID() string   { return f.next.ID() }
func (f *statusFilter) Type() string { return f.next.Type() }

func (f *statusFilter) Publish(ctx context.Context, evt Event) error {
	if evt.Status() != f.want {
		return nil
	}
	return f.next.Publish(ctx, evt)
}

func (f *statusFilter) Close() error {
	if c, ok := f.next.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
