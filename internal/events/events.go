// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package events

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// =============================================================================
// EVENT
// =============================================================================

// Level is the severity of an event.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// String returns the string representation of the level.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "unknown"
	}
}

// MarshalText renders the level by name.
func (l Level) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

func (l Level) slogLevel() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Event is a single progress report from a workflow step.
type Event struct {
	Time    time.Time `json:"time"`
	RunID   string    `json:"run_id,omitempty"`
	Step    string    `json:"step"`
	Level   Level     `json:"level"`
	Message string    `json:"message"`
	// Attrs holds alternating key/value pairs, slog style.
	Attrs []any `json:"-"`
}

// Fields returns Attrs as a map. Odd trailing keys are dropped.
func (e Event) Fields() map[string]string {
	out := make(map[string]string, len(e.Attrs)/2)
	for i := 0; i+1 < len(e.Attrs); i += 2 {
		out[fmt.Sprint(e.Attrs[i])] = fmt.Sprint(e.Attrs[i+1])
	}
	return out
}

func newEvent(level Level, step, msg string, attrs []any) Event {
	return Event{
		Time:    time.Now(),
		Step:    step,
		Level:   level,
		Message: msg,
		Attrs:   attrs,
	}
}

// Debug builds a debug event.
func Debug(step, msg string, attrs ...any) Event { return newEvent(LevelDebug, step, msg, attrs) }

// Info builds an info event.
func Info(step, msg string, attrs ...any) Event { return newEvent(LevelInfo, step, msg, attrs) }

// Warn builds a warning event.
func Warn(step, msg string, attrs ...any) Event { return newEvent(LevelWarn, step, msg, attrs) }

// Error builds an error event.
func Error(step, msg string, attrs ...any) Event { return newEvent(LevelError, step, msg, attrs) }

// =============================================================================
// SINKS
// =============================================================================

// Sink receives events. Implementations must be safe for concurrent use.
type Sink interface {
	Emit(Event)
}

// Func adapts a plain function to Sink.
type Func func(Event)

// Emit calls f(e).
func (f Func) Emit(e Event) { f(e) }

type discard struct{}

func (discard) Emit(Event) {}

// Discard drops every event.
var Discard Sink = discard{}

type multi []Sink

func (m multi) Emit(e Event) {
	for _, s := range m {
		s.Emit(e)
	}
}

// Multi fans an event out to several sinks in order. Nil sinks are skipped.
func Multi(sinks ...Sink) Sink {
	out := make(multi, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

// WithRunID stamps every event passing through with a run identifier.
func WithRunID(s Sink, runID string) Sink {
	return Func(func(e Event) {
		e.RunID = runID
		s.Emit(e)
	})
}

// OrDiscard returns s, or Discard when s is nil.
func OrDiscard(s Sink) Sink {
	if s == nil {
		return Discard
	}
	return s
}

// -----------------------------------------------------------------------------
// slog
// -----------------------------------------------------------------------------

// SlogSink forwards events to a structured logger.
type SlogSink struct {
	logger *slog.Logger
}

// NewSlogSink wraps logger. A nil logger uses slog.Default().
func NewSlogSink(logger *slog.Logger) *SlogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogSink{logger: logger}
}

// Emit logs the event at its level with step and run_id attributes.
func (s *SlogSink) Emit(e Event) {
	attrs := make([]any, 0, len(e.Attrs)+4)
	attrs = append(attrs, "step", e.Step)
	if e.RunID != "" {
		attrs = append(attrs, "run_id", e.RunID)
	}
	attrs = append(attrs, e.Attrs...)
	s.logger.Log(context.Background(), e.Level.slogLevel(), e.Message, attrs...)
}

// -----------------------------------------------------------------------------
// Recorder
// -----------------------------------------------------------------------------

// Recorder keeps every event in memory. An optional notify channel receives a
// copy of each event without blocking the emitter.
type Recorder struct {
	mu     sync.Mutex
	events []Event
	notify chan<- Event
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Notify registers a channel that receives each event as it arrives. Events
// are dropped if the channel is full.
func (r *Recorder) Notify(ch chan<- Event) {
	r.mu.Lock()
	r.notify = ch
	r.mu.Unlock()
}

// Emit appends e.
func (r *Recorder) Emit(e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	ch := r.notify
	r.mu.Unlock()

	if ch != nil {
		select {
		case ch <- e:
		default:
		}
	}
}

// Events returns a copy of everything recorded so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Messages returns the recorded messages in order.
func (r *Recorder) Messages() []string {
	evs := r.Events()
	out := make([]string, len(evs))
	for i, e := range evs {
		out[i] = e.Message
	}
	return out
}

// ByStep returns the events emitted by one step.
func (r *Recorder) ByStep(step string) []Event {
	var out []Event
	for _, e := range r.Events() {
		if e.Step == step {
			out = append(out, e)
		}
	}
	return out
}

// Reset clears the recording.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.events = nil
	r.mu.Unlock()
}
