package event

import "github.com/KOMKZ/go-yogan-liqguard/logger"

// listener entry
type listenerEntry struct {
	id       uint64   // Unique ID (for unsubscribing)
	listener Listener // listener
	priority int      // Priority (the smaller the number, the higher the priority)
	async    bool     // Is asynchronous execution
	once     bool     // Should it be executed only once?
}

// SubscribeOption subscription options
type SubscribeOption func(*listenerEntry)

// WithPriority sets the priority, smaller runs first, default 0
func WithPriority(priority int) SubscribeOption {
	return func(e *listenerEntry) {
		e.priority = priority
	}
}

// WithAsync runs the listener on the pool even for synchronous dispatch
func WithAsync() SubscribeOption {
	return func(e *listenerEntry) {
		e.async = true
	}
}

// WithOnce unsubscribes after the first delivery
func WithOnce() SubscribeOption {
	return func(e *listenerEntry) {
		e.once = true
	}
}

// DispatcherOption Dispatcher configuration options
type DispatcherOption func(*dispatcher)

// WithPoolSize sets the size of the asynchronous goroutine pool
func WithPoolSize(size int) DispatcherOption {
	return func(d *dispatcher) {
		if size > 0 {
			d.poolSize = size
		}
	}
}

// WithSetAllSync forces every dispatch and listener to run inline
func WithSetAllSync(v bool) DispatcherOption {
	return func(d *dispatcher) {
		d.setAllSync = v
	}
}

// WithLogger injects the dispatcher logger
func WithLogger(l *logger.CtxZapLogger) DispatcherOption {
	return func(d *dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// FromConfig maps Config onto options
func FromConfig(cfg Config) []DispatcherOption {
	return []DispatcherOption{WithPoolSize(cfg.PoolSize), WithSetAllSync(cfg.SetAllSync)}
}
