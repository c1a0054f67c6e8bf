// Package event provides an in-process event dispatcher. Synchronous
// dispatch runs listeners inline in priority order; asynchronous dispatch is
// executed on an ants goroutine pool so publishers never block.
package event

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/panjf2000/ants/v2"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/KOMKZ/go-yogan-liqguard/logger"
)

// Wildcard subscribes to every event name
const Wildcard = "*"

// UnsubscribeFunc removes a subscription
type UnsubscribeFunc func()

// Dispatcher event dispatcher interface
type Dispatcher interface {
	// Subscribe to event, return unsubscribe function
	Subscribe(eventName string, listener Listener, opts ...SubscribeOption) UnsubscribeFunc

	// Dispatch runs listeners synchronously and returns the first listener error
	Dispatch(ctx context.Context, event Event) error

	// DispatchAsync hands the event to the pool and returns immediately
	DispatchAsync(ctx context.Context, event Event)

	// Close releases the pool; later dispatches are dropped
	Close()
}

// dispatcher event dispatcher implementation
type dispatcher struct {
	mu         sync.RWMutex
	listeners  map[string][]listenerEntry
	nextID     uint64
	pool       *ants.Pool
	poolSize   int
	logger     *logger.CtxZapLogger
	closed     int32
	setAllSync bool
}

// NewDispatcher creates an event dispatcher
func NewDispatcher(opts ...DispatcherOption) Dispatcher {
	d := &dispatcher{
		listeners: make(map[string][]listenerEntry),
		poolSize:  100,
		logger:    logger.GetLogger("liqguard"),
	}

	for _, opt := range opts {
		opt(d)
	}

	var err error
	d.pool, err = ants.NewPool(d.poolSize)
	if err != nil {
		d.logger.Error("创建协程池失败，使用默认配置", zap.Error(err))
		d.pool, _ = ants.NewPool(100)
	}

	return d
}

// Subscribe to event
func (d *dispatcher) Subscribe(eventName string, listener Listener, opts ...SubscribeOption) UnsubscribeFunc {
	if eventName == "" || listener == nil {
		return func() {}
	}

	entry := listenerEntry{
		id:       atomic.AddUint64(&d.nextID, 1),
		listener: listener,
	}
	for _, opt := range opts {
		opt(&entry)
	}
	if d.setAllSync {
		entry.async = false
	}

	d.mu.Lock()
	d.listeners[eventName] = append(d.listeners[eventName], entry)
	sort.SliceStable(d.listeners[eventName], func(i, j int) bool {
		return d.listeners[eventName][i].priority < d.listeners[eventName][j].priority
	})
	d.mu.Unlock()

	return func() {
		d.unsubscribe(eventName, entry.id)
	}
}

func (d *dispatcher) unsubscribe(eventName string, id uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	entries := d.listeners[eventName]
	for i, e := range entries {
		if e.id == id {
			d.listeners[eventName] = append(entries[:i:i], entries[i+1:]...)
			return
		}
	}
}

// Dispatch memory synchronous distribution
func (d *dispatcher) Dispatch(ctx context.Context, event Event) error {
	if event == nil || atomic.LoadInt32(&d.closed) == 1 {
		return nil
	}

	d.mu.RLock()
	named := d.listeners[event.Name()]
	wild := d.listeners[Wildcard]
	entries := make([]listenerEntry, 0, len(named)+len(wild))
	entries = append(entries, named...)
	entries = append(entries, wild...)
	d.mu.RUnlock()

	err := d.executeListeners(ctx, event, entries)
	d.cleanupOnceListeners(event.Name(), entries)
	d.cleanupOnceListeners(Wildcard, entries)

	if errors.Is(err, ErrStopPropagation) {
		return nil
	}
	return err
}

// DispatchAsync asynchronous memory distribution
func (d *dispatcher) DispatchAsync(ctx context.Context, event Event) {
	if event == nil || atomic.LoadInt32(&d.closed) == 1 {
		return
	}
	if d.setAllSync {
		if err := d.Dispatch(ctx, event); err != nil {
			d.logger.ErrorCtx(ctx, "事件处理失败", zap.String("event", event.Name()), zap.Error(err))
		}
		return
	}

	// keep the span so listeners log with the caller's trace id, drop cancellation
	asyncCtx := trace.ContextWithSpanContext(context.Background(), trace.SpanContextFromContext(ctx))
	eventName := event.Name()

	err := d.pool.Submit(func() {
		if err := d.Dispatch(asyncCtx, event); err != nil {
			d.logger.ErrorCtx(asyncCtx, "异步事件处理失败",
				zap.String("event", eventName),
				zap.Error(err))
		}
	})
	if err != nil {
		d.logger.ErrorCtx(ctx, "提交异步任务失败",
			zap.String("event", eventName),
			zap.Error(err))
	}
}

// executeListeners runs entries in order, recovering listener panics
func (d *dispatcher) executeListeners(ctx context.Context, event Event, entries []listenerEntry) error {
	for _, entry := range entries {
		if entry.async {
			listener := entry.listener
			eventName := event.Name()
			_ = d.pool.Submit(func() {
				if err := d.safeHandle(ctx, listener, event); err != nil && !errors.Is(err, ErrStopPropagation) {
					d.logger.ErrorCtx(ctx, "异步监听器执行失败",
						zap.String("event", eventName),
						zap.Error(err))
				}
			})
			continue
		}

		if err := d.safeHandle(ctx, entry.listener, event); err != nil {
			return err
		}
	}
	return nil
}

func (d *dispatcher) safeHandle(ctx context.Context, l Listener, event Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.ErrorCtx(ctx, "监听器 panic",
				zap.String("event", event.Name()),
				zap.Any("panic", r))
			err = nil
		}
	}()
	return l.Handle(ctx, event)
}

func (d *dispatcher) cleanupOnceListeners(eventName string, executed []listenerEntry) {
	onceIDs := make(map[uint64]bool)
	for _, e := range executed {
		if e.once {
			onceIDs[e.id] = true
		}
	}
	if len(onceIDs) == 0 {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	entries := d.listeners[eventName]
	filtered := make([]listenerEntry, 0, len(entries))
	for _, e := range entries {
		if !onceIDs[e.id] {
			filtered = append(filtered, e)
		}
	}
	d.listeners[eventName] = filtered
}

// Close stops the dispatcher and waits for the pool to drain
func (d *dispatcher) Close() {
	if !atomic.CompareAndSwapInt32(&d.closed, 0, 1) {
		return
	}
	if d.pool != nil {
		d.pool.Release()
	}
}

// ListenerCount listeners of eventName (for tests)
func (d *dispatcher) ListenerCount(eventName string) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.listeners[eventName])
}
