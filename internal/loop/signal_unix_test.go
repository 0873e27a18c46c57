//go:build unix

package loop

import (
	stderrors "errors"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bebsworthy/testapps/internal/errors"
	"github.com/bebsworthy/testapps/internal/metrics"
)

func raise(t *testing.T, sig syscall.Signal) {
	t.Helper()
	require.NoError(t, syscall.Kill(syscall.Getpid(), sig))
}

func TestSignalsSupported(t *testing.T) {
	assert.True(t, SignalsSupported())
}

func TestBindSignal_HandlerRunsOnceAndProcessSurvives(t *testing.T) {
	l := New()
	defer l.Close()

	calls := 0
	require.NoError(t, l.BindSignal(Terminate, func(kind SignalKind) {
		assert.Equal(t, Terminate, kind)
		calls++
		require.NoError(t, l.CallLater(20*time.Millisecond, l.Stop))
	}))
	l.CallSoon(func() { raise(t, syscall.SIGTERM) })

	require.NoError(t, runFor(t, l, 2*time.Second))
	assert.Equal(t, 1, calls)
	assert.Equal(t, int64(1), l.Stats().SignalsHandled)
}

func TestBindSignal_RebindReplaces(t *testing.T) {
	l := New()
	defer l.Close()

	var got []string
	require.NoError(t, l.BindSignal(Interrupt, func(SignalKind) { got = append(got, "old") }))
	require.NoError(t, l.BindSignal(Interrupt, func(SignalKind) {
		got = append(got, "new")
		l.Stop()
	}))
	l.CallSoon(func() { raise(t, syscall.SIGINT) })

	require.NoError(t, runFor(t, l, 2*time.Second))
	assert.Equal(t, []string{"new"}, got)
}

func TestBindSignal_DeliveredOnceLoopStarts(t *testing.T) {
	monitor := metrics.NewMonitor()
	l := New(WithObserver(monitor))
	defer l.Close()

	calls := 0
	require.NoError(t, l.BindSignal(Terminate, func(SignalKind) {
		calls++
		l.Stop()
	}))

	raise(t, syscall.SIGTERM)
	// Delivery to the loop's channel is asynchronous.
	require.Eventually(t, func() bool { return len(l.sigCh) > 0 }, time.Second, time.Millisecond)
	assert.Equal(t, 0, calls, "nothing runs before the loop does")

	require.NoError(t, runFor(t, l, 2*time.Second))
	assert.Equal(t, 1, calls)
	assert.Equal(t, int64(1), monitor.GetSignalMetrics("SIGTERM").Delivered)
}

func TestBindSignal_BothKinds(t *testing.T) {
	l := New()
	defer l.Close()

	seen := map[SignalKind]int{}
	handler := func(kind SignalKind) {
		seen[kind]++
		if len(seen) == 2 {
			l.Stop()
		}
	}
	require.NoError(t, l.BindSignal(Interrupt, handler))
	require.NoError(t, l.BindSignal(Terminate, handler))
	l.CallSoon(func() {
		raise(t, syscall.SIGINT)
		raise(t, syscall.SIGTERM)
	})

	require.NoError(t, runFor(t, l, 2*time.Second))
	assert.Equal(t, map[SignalKind]int{Interrupt: 1, Terminate: 1}, seen)
}

func TestBindSignal_UnknownKind(t *testing.T) {
	l := New()
	defer l.Close()

	err := l.BindSignal(SignalKind(99), func(SignalKind) {})
	assert.True(t, stderrors.Is(err, errors.ErrUnknownSignal))
	assert.True(t, stderrors.Is(l.UnbindSignal(SignalKind(99)), errors.ErrUnknownSignal))
}

func TestBindSignal_ClosedLoop(t *testing.T) {
	l := New()
	require.NoError(t, l.Close())

	err := l.BindSignal(Terminate, func(SignalKind) {})
	assert.True(t, stderrors.Is(err, errors.ErrClosed))
}

func TestUnbindSignal_KeepsOtherBindings(t *testing.T) {
	l := New()
	defer l.Close()

	calls := 0
	require.NoError(t, l.BindSignal(Interrupt, func(SignalKind) { t.Error("unbound handler ran") }))
	require.NoError(t, l.BindSignal(Terminate, func(SignalKind) {
		calls++
		l.Stop()
	}))
	require.NoError(t, l.UnbindSignal(Interrupt))
	require.NoError(t, l.UnbindSignal(Interrupt), "unbinding twice is harmless")

	l.CallSoon(func() { raise(t, syscall.SIGTERM) })

	require.NoError(t, runFor(t, l, 2*time.Second))
	assert.Equal(t, 1, calls)
}

func TestSignalKindString(t *testing.T) {
	assert.Equal(t, "SIGINT", Interrupt.String())
	assert.Equal(t, "SIGTERM", Terminate.String())
	assert.Equal(t, "UNKNOWN", SignalKind(0).String())
}
