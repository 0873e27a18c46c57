package loop

import (
	"log/slog"
	"os"
	"os/signal"

	"github.com/bebsworthy/testapps/internal/errors"
)

// SignalKind enumerates the external signals a loop can bind.
type SignalKind int

const (
	Interrupt SignalKind = iota + 1
	Terminate
)

func (k SignalKind) String() string {
	switch k {
	case Interrupt:
		return "SIGINT"
	case Terminate:
		return "SIGTERM"
	default:
		return "UNKNOWN"
	}
}

// SignalHandler runs on the loop goroutine when its signal arrives.
type SignalHandler func(kind SignalKind)

// SignalsSupported reports whether this platform delivers signals to a
// running process. It is fixed at build time.
func SignalsSupported() bool {
	return signalsSupported
}

// BindSignal installs handler for kind in place of the signal's default
// disposition, replacing any earlier binding. Signals that arrive before
// Run are delivered on its first turn.
//
// On platforms where SignalsSupported is false it returns
// errors.ErrSignalUnsupported; callers are expected to check the capability
// first. A nil handler is equivalent to UnbindSignal.
func (l *Loop) BindSignal(kind SignalKind, handler SignalHandler) error {
	if !signalsSupported {
		return errors.PlatformError(errors.CodeSignalUnsupported,
			"Signal delivery not supported on this platform", nil).
			WithDetails("signal", kind.String())
	}
	if _, ok := osSignals[kind]; !ok {
		return errors.ValidationError(errors.CodeUnknownSignal, "Unknown signal kind", nil).
			WithDetails("signal", int(kind))
	}
	if handler == nil {
		return l.UnbindSignal(kind)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return errors.ErrClosed
	}

	_, rebinding := l.handlers[kind]
	l.handlers[kind] = handler
	if !rebinding {
		signal.Notify(l.sigCh, osSignals[kind])
	}
	l.logger.Debug("Signal bound", slog.String("signal", kind.String()), slog.Bool("replaced", rebinding))
	return nil
}

// UnbindSignal removes the binding for kind, restoring the default
// disposition unless another loop has the same signal bound.
func (l *Loop) UnbindSignal(kind SignalKind) error {
	if !signalsSupported {
		return errors.ErrSignalUnsupported
	}
	if _, ok := osSignals[kind]; !ok {
		return errors.ErrUnknownSignal
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.handlers[kind]; !ok {
		return nil
	}
	delete(l.handlers, kind)
	l.resetNotifyLocked()
	for k := range l.handlers {
		signal.Notify(l.sigCh, osSignals[k])
	}
	return nil
}

// resetNotifyLocked detaches the loop's signal channel from every signal.
func (l *Loop) resetNotifyLocked() {
	if signalsSupported {
		signal.Stop(l.sigCh)
	}
}

// drainSignals delivers every signal already waiting without blocking.
func (l *Loop) drainSignals(current *string) {
	for {
		select {
		case sig := <-l.sigCh:
			*current = "signal"
			l.deliver(sig)
			*current = ""
			if l.isStopping() {
				return
			}
		default:
			return
		}
	}
}

// deliver runs the handler bound to sig, if any.
func (l *Loop) deliver(sig os.Signal) {
	kind, ok := kindOf(sig)
	l.mu.Lock()
	handler := l.handlers[kind]
	if !ok || handler == nil {
		l.stats.SignalsDropped++
		l.mu.Unlock()
		l.logger.Debug("Signal without binding dropped", slog.String("signal", sig.String()))
		if l.observer != nil {
			l.observer.SignalDelivered(kind.String(), false)
		}
		return
	}
	l.stats.SignalsHandled++
	l.mu.Unlock()

	l.logger.Debug("Signal delivered", slog.String("signal", kind.String()))
	if l.observer != nil {
		l.observer.SignalDelivered(kind.String(), true)
	}
	handler(kind)
}

func kindOf(sig os.Signal) (SignalKind, bool) {
	for kind, s := range osSignals {
		if s == sig {
			return kind, true
		}
	}
	return 0, false
}
