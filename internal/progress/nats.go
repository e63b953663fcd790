package progress

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
)

// Publisher is the subset of *nats.Conn used by NATSSink.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// NATSSink publishes events as JSON on <prefix>.<execution_id>.<type>.
type NATSSink struct {
	pub    Publisher
	prefix string
	logger *slog.Logger
}

// NewNATSSink creates a sink publishing under prefix (default "capflow").
func NewNATSSink(pub Publisher, prefix string, logger *slog.Logger) *NATSSink {
	if prefix == "" {
		prefix = "capflow"
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &NATSSink{pub: pub, prefix: strings.TrimSuffix(prefix, "."), logger: logger}
}

// Subject returns the subject an event is published on.
func (s *NATSSink) Subject(e Event) string {
	return fmt.Sprintf("%s.%s.%s", s.prefix, e.ExecutionID, e.Type)
}

func (s *NATSSink) Emit(e Event) {
	data, err := json.Marshal(e)
	if err != nil {
		s.logger.Warn("progress event not serialisable", "type", e.Type, "error", err)
		return
	}
	if err := s.pub.Publish(s.Subject(e), data); err != nil {
		s.logger.Warn("progress publish failed", "type", e.Type, "error", err)
	}
}
