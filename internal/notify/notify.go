// Package notify delivers user-facing messages raised by cart operations.
package notify

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

type Level string

const (
	LevelSuccess Level = "success"
	LevelInfo    Level = "info"
	LevelError   Level = "error"
)

type Message struct {
	Level Level  `json:"level"`
	Text  string `json:"text"`
}

// Sink receives notifications. Implementations must not block.
type Sink interface {
	Notify(level Level, text string)
}

// Discard drops every message.
type Discard struct{}

func (Discard) Notify(Level, string) {}

// LogSink writes notifications to a zerolog logger.
type LogSink struct {
	log zerolog.Logger
}

func NewLogSink(log zerolog.Logger) *LogSink {
	return &LogSink{log: log.With().Str("component", "notify").Logger()}
}

func (s *LogSink) Notify(level Level, text string) {
	ev := s.log.Info()
	if level == LevelError {
		ev = s.log.Warn()
	}
	ev.Str("kind", string(level)).Msg(text)
}

// Recorder buffers messages until Drain, e.g. for the lifetime of one request.
type Recorder struct {
	mu   sync.Mutex
	msgs []Message
}

func (r *Recorder) Notify(level Level, text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, Message{Level: level, Text: text})
}

// Drain returns the buffered messages and resets the buffer.
func (r *Recorder) Drain() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.msgs
	r.msgs = nil
	if out == nil {
		out = []Message{}
	}
	return out
}

// Fanout forwards every message to all sinks.
type Fanout []Sink

func (f Fanout) Notify(level Level, text string) {
	for _, s := range f {
		s.Notify(level, text)
	}
}

type sinkKey struct{}

// NewContext attaches a request scoped sink to ctx.
func NewContext(ctx context.Context, s Sink) context.Context {
	return context.WithValue(ctx, sinkKey{}, s)
}

// FromContext returns the sink attached by NewContext, or Discard.
func FromContext(ctx context.Context) Sink {
	if s, ok := ctx.Value(sinkKey{}).(Sink); ok && s != nil {
		return s
	}
	return Discard{}
}
