//go:build unix

package apps

import (
	"bytes"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bebsworthy/testapps/internal/config"
	"github.com/bebsworthy/testapps/internal/loop"
)

// stopAfter stops the loop once n lines have been written.
type stopAfter struct {
	bytes.Buffer
	loop *loop.Loop
	n    int
}

func (w *stopAfter) Write(p []byte) (int, error) {
	n, err := w.Buffer.Write(p)
	if w.n--; w.n == 0 {
		w.loop.Stop()
	}
	return n, err
}

func raise(t *testing.T, sig syscall.Signal) {
	t.Helper()
	require.NoError(t, syscall.Kill(syscall.Getpid(), sig))
}

func TestStubborn_IgnoresBothSignals(t *testing.T) {
	l := loop.New()
	defer l.Close()

	out := &stopAfter{loop: l, n: 3}
	s := NewStubborn(l, config.StubbornConfig{IgnoreInterrupt: true, IgnoreTerminate: true}, nil)
	s.Out = out
	require.NoError(t, s.Start())

	l.CallSoon(func() { raise(t, syscall.SIGTERM) })
	require.NoError(t, l.CallLater(20*time.Millisecond, func() { raise(t, syscall.SIGINT) }))
	require.NoError(t, l.CallLater(40*time.Millisecond, func() { raise(t, syscall.SIGTERM) }))

	require.NoError(t, runFor(t, l, 2*time.Second))
	assert.Equal(t, []string{
		"Got SIGTERM, ignoring",
		"Got SIGINT, ignoring",
		"Got SIGTERM, ignoring",
	}, lines(&out.Buffer))
}

func TestStubborn_OnlyTerminate(t *testing.T) {
	l := loop.New()
	defer l.Close()

	out := &stopAfter{loop: l, n: -1}
	s := NewStubborn(l, config.StubbornConfig{IgnoreTerminate: true}, nil)
	s.Out = out
	require.NoError(t, s.Start())

	// Interrupt is left for the caller, e.g. StopOnInterrupt.
	require.NoError(t, StopOnInterrupt(l, nil))

	l.CallSoon(func() { raise(t, syscall.SIGTERM) })
	require.NoError(t, l.CallLater(20*time.Millisecond, func() { raise(t, syscall.SIGINT) }))

	require.NoError(t, runFor(t, l, 2*time.Second))
	assert.Equal(t, []string{"Got SIGTERM, ignoring"}, lines(&out.Buffer))
}

func TestStopOnInterrupt(t *testing.T) {
	l := loop.New()
	defer l.Close()

	require.NoError(t, StopOnInterrupt(l, nil))
	l.CallSoon(func() { raise(t, syscall.SIGINT) })

	require.NoError(t, runFor(t, l, 2*time.Second))
	assert.Equal(t, loop.Stopped, l.State())
}
