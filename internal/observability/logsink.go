package observability

import (
	"context"
	"log/slog"
)

// LogSink writes every event it receives as a structured log line,
// routed through the control plane's slog logger so event output
// shares one sink with every other log line.
type LogSink struct {
	log *slog.Logger
}

// NewLogSink returns a Sink that logs every event at info level.
func NewLogSink(log *slog.Logger) *LogSink {
	return &LogSink{log: log}
}

func (s *LogSink) Handle(_ context.Context, ev Event) error {
	attrs := make([]any, 0, 2+2*len(ev.Data))
	attrs = append(attrs, "camera_id", ev.CameraID, "timestamp", ev.Timestamp)
	for k, v := range ev.Data {
		attrs = append(attrs, k, v)
	}
	s.log.Info(string(ev.Type), attrs...)
	return nil
}
