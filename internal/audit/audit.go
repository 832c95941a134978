package audit

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"
)

// Record is the canonical journal entry model used by internal dispatching and root APIs.
type Record struct {
	At        time.Time         `json:"at"`
	Action    string            `json:"action"`
	Actor     string            `json:"actor,omitempty"`
	Role      string            `json:"role,omitempty"`
	SessionID string            `json:"session_id,omitempty"`
	Origin    string            `json:"origin,omitempty"`
	Success   bool              `json:"success"`
	Error     string            `json:"error,omitempty"`
	Detail    map[string]string `json:"detail,omitempty"`
}

// Sink receives dispatched journal records.
type Sink interface {
	Write(ctx context.Context, rec Record)
}

// NoOpSink drops journal records.
type NoOpSink struct{}

func (NoOpSink) Write(context.Context, Record) {}

// ChannelSink writes journal records into a buffered channel.
type ChannelSink struct {
	records chan Record
}

func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelSink{
		records: make(chan Record, buffer),
	}
}

func (s *ChannelSink) Write(ctx context.Context, rec Record) {
	select {
	case s.records <- rec:
	case <-ctx.Done():
	}
}

func (s *ChannelSink) Records() <-chan Record {
	return s.records
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

func (s *JSONWriterSink) Write(ctx context.Context, rec Record) {
	if s == nil || s.writer == nil {
		return
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, _ = s.writer.Write(data)
	_, _ = s.writer.Write([]byte("\n"))
}
