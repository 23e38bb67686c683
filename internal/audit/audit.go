package audit

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"
)

// Event is the canonical audit record. Once emitted it is never mutated;
// stores append it verbatim.
type Event struct {
	ID          string            `json:"id"`
	Timestamp   time.Time         `json:"timestamp"`
	Action      string            `json:"action"`
	ActorID     string            `json:"actor_id,omitempty"`
	Table       string            `json:"table_name,omitempty"`
	RecordID    string            `json:"record_id,omitempty"`
	Description string            `json:"description,omitempty"`
	IP          string            `json:"ip,omitempty"`
	UserAgent   string            `json:"user_agent,omitempty"`
	Success     bool              `json:"success"`
	Error       string            `json:"error,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// Sink receives emitted audit events.
type Sink interface {
	Emit(ctx context.Context, event Event)
}

// NoOpSink drops audit events.
type NoOpSink struct{}

func (NoOpSink) Emit(context.Context, Event) {}

// ChannelSink writes audit events into a buffered channel.
type ChannelSink struct {
	events chan Event
}

func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelSink{
		events: make(chan Event, buffer),
	}
}

func (s *ChannelSink) Emit(ctx context.Context, event Event) {
	select {
	case s.events <- event:
	case <-ctx.Done():
	}
}

func (s *ChannelSink) Events() <-chan Event {
	return s.events
}

// JSONWriterSink writes one JSON object per line.
type JSONWriterSink struct {
	writer io.Writer
	mu     sync.Mutex
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return &JSONWriterSink{
		writer: w,
	}
}

func (s *JSONWriterSink) Emit(ctx context.Context, event Event) {
	if s == nil || s.writer == nil {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, _ = s.writer.Write(data)
	_, _ = s.writer.Write([]byte("\n"))
}

// Appender is the write half of an audit store. StoreSink uses it so the
// sink layer does not depend on query types.
type Appender interface {
	Append(ctx context.Context, event Event) error
}

// StoreSink persists events through an Appender. Append errors are
// reported to the optional error callback and otherwise swallowed; a
// failing store must never reach the audited operation.
type StoreSink struct {
	store Appender
	onErr func(error)
}

func NewStoreSink(store Appender, onErr func(error)) *StoreSink {
	return &StoreSink{store: store, onErr: onErr}
}

func (s *StoreSink) Emit(ctx context.Context, event Event) {
	if s == nil || s.store == nil {
		return
	}
	if err := s.store.Append(ctx, event); err != nil && s.onErr != nil {
		s.onErr(err)
	}
}

// MultiSink fans an event out to every child sink in order.
type MultiSink []Sink

func (m MultiSink) Emit(ctx context.Context, event Event) {
	for _, sink := range m {
		if sink != nil {
			sink.Emit(ctx, event)
		}
	}
}
