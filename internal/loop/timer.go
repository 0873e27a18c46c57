package loop

import (
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/robfig/cron/v3"

	"github.com/bebsworthy/testapps/internal/errors"
)

// nextFunc computes a recurring timer's next deadline from the time it
// fired. ok=false ends the recurrence.
type nextFunc func(now time.Time) (deadline time.Time, ok bool)

// Timer is a recurring timer registered on a Loop. It keeps firing until
// Stop is called, its interval policy runs out, or the loop is closed.
type Timer struct {
	loop   *Loop
	next   nextFunc
	action func()

	// guarded by loop.mu
	pending *entry
	stopped bool
	fires   int64
}

// Every registers action to run every interval, first after one interval.
func (l *Loop) Every(interval time.Duration, action func()) (*Timer, error) {
	if interval <= 0 {
		return nil, errors.InvalidDelay(interval).WithOperation("every")
	}
	return l.repeat(backoff.NewConstantBackOff(interval), action, false)
}

// EveryNow is like Every but the first run happens on the next turn.
func (l *Loop) EveryNow(interval time.Duration, action func()) (*Timer, error) {
	if interval <= 0 {
		return nil, errors.InvalidDelay(interval).WithOperation("every_now")
	}
	return l.repeat(backoff.NewConstantBackOff(interval), action, true)
}

// Repeat registers action on an arbitrary backoff policy. Each fire asks the
// policy for the next delay; backoff.Stop ends the recurrence.
func (l *Loop) Repeat(policy backoff.BackOff, action func()) (*Timer, error) {
	if policy == nil {
		return nil, errors.ErrInvalidSchedule
	}
	return l.repeat(policy, action, false)
}

func (l *Loop) repeat(policy backoff.BackOff, action func(), immediate bool) (*Timer, error) {
	policy.Reset()
	next := func(now time.Time) (time.Time, bool) {
		d := policy.NextBackOff()
		if d == backoff.Stop {
			return time.Time{}, false
		}
		if d < 0 {
			d = 0
		}
		return now.Add(d), true
	}
	return l.startTimer(next, action, immediate)
}

// Cron registers action on a cron schedule.
func (l *Loop) Cron(schedule cron.Schedule, action func()) (*Timer, error) {
	if schedule == nil {
		return nil, errors.ErrInvalidSchedule
	}
	next := func(now time.Time) (time.Time, bool) {
		t := schedule.Next(now)
		if t.IsZero() {
			return time.Time{}, false
		}
		return t, true
	}
	return l.startTimer(next, action, false)
}

// ParseSchedule parses a standard cron expression or descriptor such as
// "*/5 * * * *" or "@every 10s".
func ParseSchedule(expr string) (cron.Schedule, error) {
	schedule, err := cron.ParseStandard(expr)
	if err != nil {
		return nil, errors.ValidationError(errors.CodeInvalidSchedule,
			"Invalid recurring schedule "+expr, err)
	}
	return schedule, nil
}

func (l *Loop) startTimer(next nextFunc, action func(), immediate bool) (*Timer, error) {
	t := &Timer{loop: l, next: next, action: action}

	now := time.Now()
	deadline := now
	if !immediate {
		d, ok := next(now)
		if !ok {
			t.stopped = true
			return t, nil
		}
		deadline = d
	}

	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil, errors.ErrClosed
	}
	t.pending = l.pushLocked(deadline, OpRecurring, action, t)
	l.mu.Unlock()
	l.notify()
	return t, nil
}

// fire re-arms the timer for its next occurrence. It reports whether e is
// still the timer's live entry and should run.
func (t *Timer) fire(e *entry, now time.Time) bool {
	l := t.loop
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		t.stopped = true
		t.pending = nil
		return false
	}
	if t.stopped || t.pending != e {
		return false
	}
	t.fires++
	t.pending = nil

	if deadline, ok := t.next(now); ok {
		t.pending = l.pushLocked(deadline, OpRecurring, t.action, t)
	} else {
		t.stopped = true
	}
	return true
}

// Stop cancels the timer. A run already in progress completes.
func (t *Timer) Stop() {
	l := t.loop
	l.mu.Lock()
	defer l.mu.Unlock()

	t.stopped = true
	l.queue.remove(t.pending)
	t.pending = nil
}

// Active reports whether the timer will fire again.
func (t *Timer) Active() bool {
	l := t.loop
	l.mu.Lock()
	defer l.mu.Unlock()
	return !t.stopped && t.pending != nil && !l.closed
}

// Fires returns how many times the timer has fired.
func (t *Timer) Fires() int64 {
	l := t.loop
	l.mu.Lock()
	defer l.mu.Unlock()
	return t.fires
}
