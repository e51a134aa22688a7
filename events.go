package guardkit

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
)

// eventPrefix marks event log lines so indexers can pick them out of
// regular output.
const eventPrefix = "EVENT_JSON:"

// Event is a structured record of one effective state change. The shape
// follows the NEP-297 events format: a standard name, a version, an event
// kind and a typed payload.
type Event struct {
	Standard string `json:"standard"`
	Version  string `json:"version"`
	Event    string `json:"event"`
	Data     any    `json:"data,omitempty"`
}

// String returns the log-line representation of the event.
func (e Event) String() string {
	data, err := json.Marshal(e)
	if err != nil {
		// Payloads are plain structs of strings; marshalling cannot fail in
		// practice. Keep the event stream alive regardless.
		return eventPrefix + `{"standard":"` + e.Standard + `","version":"` + e.Version + `","event":"` + e.Event + `"}`
	}
	return eventPrefix + string(data)
}

// Emitter broadcasts events. Emission is fire-and-forget: components never
// read events back and never let an emitter failure abort an operation.
type Emitter interface {
	Emit(ctx context.Context, event Event)
}

// SlogEmitter logs events through a slog.Logger, one line per event.
type SlogEmitter struct {
	logger *slog.Logger
}

// NewSlogEmitter creates an emitter over the given logger. A nil logger
// falls back to slog.Default().
func NewSlogEmitter(logger *slog.Logger) *SlogEmitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogEmitter{logger: logger}
}

// Emit implements Emitter.
func (e *SlogEmitter) Emit(ctx context.Context, event Event) {
	e.logger.InfoContext(ctx, event.String(),
		slog.String("standard", event.Standard),
		slog.String("event", event.Event),
	)
}

// NopEmitter discards all events.
type NopEmitter struct{}

// Emit implements Emitter.
func (NopEmitter) Emit(context.Context, Event) {}

// EventRecorder collects emitted events in memory. It is intended for
// tests and local inspection.
type EventRecorder struct {
	mu     sync.Mutex
	events []Event
}

// NewEventRecorder creates an empty recorder.
func NewEventRecorder() *EventRecorder {
	return &EventRecorder{}
}

// Emit implements Emitter.
func (r *EventRecorder) Emit(_ context.Context, event Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

// Events returns all recorded events in emission order.
func (r *EventRecorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Last returns the most recently recorded event, if any.
func (r *EventRecorder) Last() (Event, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.events) == 0 {
		return Event{}, false
	}
	return r.events[len(r.events)-1], true
}

// Reset discards all recorded events.
func (r *EventRecorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}
