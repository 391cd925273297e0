package publishers

// Logger defines the logging surface publishers rely on.
type Logger interface {
	InfoObj(msg, key string, obj any)
	DebugObj(msg, key string, obj any)
	WarnObj(msg, key string, obj any)
	ErrorObj(msg, key string, obj any)
}

type noopLogger struct{}

func (noopLogger) InfoObj(string, string, any)  {}
func (noopLogger) DebugObj(string, string, any) {}
func (noopLogger) WarnObj(string, string, any)  {}
func (noopLogger) ErrorObj(string, string, any) {}

func ensureLogger(log Logger) Logger {
	if log == nil {
		return noopLogger{}
	}
	return log
}

// sinkLogger tags every entry with the publisher it came from.
type sinkLogger struct {
	next Logger
	id   string
	typ  string
}

func scopedLogger(log Logger, cfg PublisherConfig) Logger {
	return sinkLogger{next: ensureLogger(log), id: cfg.ID, typ: cfg.Type}
}

func (l sinkLogger) wrap(obj any) map[string]any {
	return map[string]any{"publisher_id": l.id, "publisher_type": l.typ, "detail": obj}
}

func (l sinkLogger) InfoObj(msg, key string, obj any)  { l.next.InfoObj(msg, key, l.wrap(obj)) }
func (l sinkLogger) DebugObj(msg, key string, obj any) { l.next.DebugObj(msg, key, l.wrap(obj)) }
func (l sinkLogger) WarnObj(msg, key string, obj any)  { l.next.WarnObj(msg, key, l.wrap(obj)) }
func (l sinkLogger) ErrorObj(msg, key string, obj any) { l.next.ErrorObj(msg, key, l.wrap(obj)) }
