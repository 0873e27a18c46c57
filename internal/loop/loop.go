// Package loop provides a cooperative, single-threaded event loop.
//
// A Loop owns a deadline-ordered timer queue and a set of signal bindings.
// Run executes due callbacks and signal handlers one at a time on the
// calling goroutine and sleeps until the next deadline, signal or wake-up.
// Callbacks never preempt one another, so state touched only from
// callbacks needs no locking.
//
// Example usage:
//
//	l := loop.New(loop.WithLogger(logger))
//	defer l.Close()
//
//	l.CallSoon(func() { fmt.Println("first turn") })
//	l.Every(5*time.Second, func() { fmt.Println("still alive!") })
//	l.BindSignal(loop.Interrupt, func(loop.SignalKind) { l.Stop() })
//
//	if err := l.RunForever(); err != nil {
//		log.Fatal(err)
//	}
//
// There is no ambient default loop: whoever creates a Loop owns it and
// passes it to the code that registers callbacks.
package loop

import (
	"container/heap"
	"context"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/bebsworthy/testapps/internal/errors"
)

// State is the loop's run state.
type State int

const (
	Stopped State = iota
	Running
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	default:
		return "stopped"
	}
}

// Operation names reported to observers.
const (
	OpCallSoon  = "call_soon"
	OpCallLater = "call_later"
	OpRecurring = "recurring"
)

// Observer receives accounting events from a running loop. Methods are
// called on the loop goroutine.
type Observer interface {
	CallbackRan(operation string, duration, lateness time.Duration)
	SignalDelivered(kind string, handled bool)
}

// FailureObserver is optionally implemented by an Observer that wants to
// hear about the error that tore a loop down.
type FailureObserver interface {
	LoopFailed(ctx context.Context, code, message string)
}

// Stats is a snapshot of loop counters.
type Stats struct {
	Turns          int64
	CallbacksRun   int64
	SignalsHandled int64
	SignalsDropped int64
}

// Loop is a cooperative event loop. The zero value is not usable; call New.
type Loop struct {
	mu       sync.Mutex
	queue    timerQueue
	seq      uint64
	state    State
	stopping bool
	closed   bool
	wake     chan struct{}
	stats    Stats

	handlers map[SignalKind]SignalHandler
	sigCh    chan os.Signal

	logger   *slog.Logger
	observer Observer
}

// Option configures a Loop.
type Option func(*Loop)

// WithLogger sets the loop's diagnostic logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loop) {
		if logger != nil {
			l.logger = logger.With(slog.String("component", "loop"))
		}
	}
}

// WithObserver attaches an accounting observer.
func WithObserver(observer Observer) Option {
	return func(l *Loop) {
		l.observer = observer
	}
}

// New creates a stopped loop.
func New(opts ...Option) *Loop {
	l := &Loop{
		wake:     make(chan struct{}, 1),
		handlers: make(map[SignalKind]SignalHandler),
		sigCh:    make(chan os.Signal, 8),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// CallSoon schedules action to run on the next turn of the loop. Calls on
// a closed loop are dropped.
func (l *Loop) CallSoon(action func()) {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.pushLocked(time.Now(), OpCallSoon, action, nil)
	l.mu.Unlock()
	l.notify()
}

// CallLater schedules action to run no earlier than delay from now.
// Callbacks fire in deadline order, ties in registration order. A negative
// delay returns an error matching errors.ErrInvalidDelay and schedules
// nothing.
func (l *Loop) CallLater(delay time.Duration, action func()) error {
	if delay < 0 {
		return errors.InvalidDelay(delay).WithOperation(OpCallLater)
	}

	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return errors.ErrClosed
	}
	l.pushLocked(time.Now().Add(delay), OpCallLater, action, nil)
	l.mu.Unlock()
	l.notify()
	return nil
}

func (l *Loop) pushLocked(deadline time.Time, op string, action func(), owner *Timer) *entry {
	l.seq++
	e := &entry{
		deadline: deadline,
		seq:      l.seq,
		op:       op,
		action:   action,
		timer:    owner,
	}
	heap.Push(&l.queue, e)
	return e
}

// notify wakes a sleeping Run without blocking.
func (l *Loop) notify() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// State returns the current run state.
func (l *Loop) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Pending returns the number of queued callbacks.
func (l *Loop) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.queue.Len()
}

// Stats returns a snapshot of the loop counters.
func (l *Loop) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stats
}

// Stop asks a running loop to return once the current batch of callbacks
// has finished. It is safe to call from callbacks and from other
// goroutines, and does nothing when the loop is not running.
func (l *Loop) Stop() {
	l.mu.Lock()
	if l.state == Running {
		l.stopping = true
	}
	l.mu.Unlock()
	l.notify()
}

// Close stops the loop, drops every pending callback, including the rest
// of a batch already in progress, and releases the loop's signal
// registrations. Bound signals revert to their default
// disposition. Close is idempotent.
func (l *Loop) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	l.stopping = true
	for _, e := range l.queue {
		e.index = -1
	}
	l.queue = nil
	l.handlers = make(map[SignalKind]SignalHandler)
	l.resetNotifyLocked()
	l.mu.Unlock()

	l.notify()
	l.logger.Debug("Loop closed")
	return nil
}

// RunForever runs the loop until Stop or Close is called.
func (l *Loop) RunForever() error {
	return l.Run(context.Background())
}

// Run transitions the loop to Running and blocks, executing due callbacks
// and signal handlers on the calling goroutine. It returns nil after Stop
// or Close, and ctx.Err() when ctx is cancelled.
//
// Callbacks are not isolated from one another: a panic inside one stops
// the loop and is returned as an error with code CALLBACK_PANIC.
func (l *Loop) Run(ctx context.Context) (err error) {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return errors.ErrClosed
	}
	if l.state == Running {
		l.mu.Unlock()
		return errors.ErrAlreadyRunning
	}
	l.state = Running
	l.stopping = false
	l.mu.Unlock()

	l.logger.Debug("Loop running", slog.Int("pending", l.Pending()))

	current := ""
	defer func() {
		if r := recover(); r != nil {
			loopErr := errors.FromPanic(ctx, r).WithOperation(current)
			if fo, ok := l.observer.(FailureObserver); ok {
				fo.LoopFailed(ctx, loopErr.Code, loopErr.Error())
			}
			l.logger.Error("Callback panicked, loop stopped", slog.String("operation", current),
				slog.String("error", loopErr.Error()))
			err = loopErr
		}

		l.mu.Lock()
		l.state = Stopped
		l.stopping = false
		l.mu.Unlock()
		l.logger.Debug("Loop stopped")
	}()

	for {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if l.isStopping() {
			return nil
		}

		l.drainSignals(&current)
		if l.isStopping() {
			return nil
		}

		now := time.Now()
		l.mu.Lock()
		l.stats.Turns++
		due := l.queue.popDue(now)
		l.mu.Unlock()

		for _, e := range due {
			current = e.op
			l.runEntry(e)
		}
		current = ""

		if l.isStopping() {
			return nil
		}

		var timerC <-chan time.Time
		var timer *time.Timer
		l.mu.Lock()
		next, ok := l.queue.next()
		l.mu.Unlock()
		if ok {
			wait := time.Until(next)
			if wait <= 0 {
				continue
			}
			timer = time.NewTimer(wait)
			timerC = timer.C
		}

		select {
		case <-ctx.Done():
		case <-l.wake:
		case sig := <-l.sigCh:
			current = "signal"
			l.deliver(sig)
			current = ""
		case <-timerC:
		}
		if timer != nil {
			timer.Stop()
		}
	}
}

func (l *Loop) isStopping() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stopping
}

// runEntry invokes a popped entry. Recurring timers re-arm before their
// action runs, so the next occurrence is queued even if this one panics.
// Entries of a batch that outlive Close are dropped.
func (l *Loop) runEntry(e *entry) {
	l.mu.Lock()
	closed := l.closed
	l.mu.Unlock()
	if closed {
		return
	}

	start := time.Now()
	lateness := start.Sub(e.deadline)

	if e.timer != nil {
		if !e.timer.fire(e, start) {
			return
		}
	}

	e.action()

	duration := time.Since(start)
	l.mu.Lock()
	l.stats.CallbacksRun++
	l.mu.Unlock()
	if l.observer != nil {
		l.observer.CallbackRan(e.op, duration, lateness)
	}
}
