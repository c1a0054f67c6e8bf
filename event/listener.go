package event

import (
	"context"
	"errors"
	"sync"
)

// ErrStopPropagation 监听器返回它时跳过后续监听器，Dispatch 仍返回 nil
var ErrStopPropagation = errors.New("event: stop propagation")

// Listener 事件监听器
type Listener interface {
	// Handle 同步分发时返回错误会中止后续监听器
	Handle(ctx context.Context, event Event) error
}

// ListenerFunc functional listener adapter
type ListenerFunc func(ctx context.Context, event Event) error

// Handle implements Listener interface
func (f ListenerFunc) Handle(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// Recorder collects events in dispatch order (for tests and the simulate command)
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Handle implements Listener
func (r *Recorder) Handle(_ context.Context, e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

// Events returns a copy of the recorded events
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Names recorded event names in order
func (r *Recorder) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.Name()
	}
	return out
}
