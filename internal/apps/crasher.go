// Package apps implements the test programs that run on the event loop:
// a random crasher, a signal-ignoring stubborn process and a time beeper.
//
// Each program only registers callbacks; the caller owns the loop and
// runs it.
package apps

import (
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"os"
	"time"

	"github.com/bebsworthy/testapps/internal/config"
	"github.com/bebsworthy/testapps/internal/loop"
)

// Output lines
const (
	AliveLine = "still alive!"
	CrashLine = "crashing"
)

// Crasher prints AliveLine on every tick and exits the process when a
// random draw falls below Threshold.
type Crasher struct {
	Loop      *loop.Loop
	Out       io.Writer
	Logger    *slog.Logger
	Interval  time.Duration
	Threshold float64
	ExitCode  int

	// Rand returns a value in [0, 1).
	Rand func() float64
	// Exit terminates the process. It is not expected to return.
	Exit func(code int)
}

// NewCrasher creates a crasher from configuration. A zero seed uses the
// runtime's random source; any other seed gives a repeatable sequence.
func NewCrasher(l *loop.Loop, cfg config.CrasherConfig, logger *slog.Logger) *Crasher {
	random := rand.Float64
	if cfg.Seed != 0 {
		random = rand.New(rand.NewPCG(cfg.Seed, cfg.Seed)).Float64
	}

	return &Crasher{
		Loop:      l,
		Out:       os.Stdout,
		Logger:    orDiscard(logger),
		Interval:  cfg.Interval,
		Threshold: cfg.Threshold,
		ExitCode:  cfg.ExitCode,
		Rand:      random,
		Exit:      os.Exit,
	}
}

// Start arms the crasher. The first tick runs on the loop's next turn.
func (c *Crasher) Start() (*loop.Timer, error) {
	c.Logger.Info("Crasher armed",
		slog.Duration("interval", c.Interval),
		slog.Float64("threshold", c.Threshold),
	)
	return c.Loop.EveryNow(c.Interval, c.tick)
}

func (c *Crasher) tick() {
	if draw := c.Rand(); draw < c.Threshold {
		fmt.Fprintln(c.Out, CrashLine)
		c.Logger.Warn("Simulating crash", slog.Float64("draw", draw), slog.Int("exit_code", c.ExitCode))
		c.Exit(c.ExitCode)
		return
	}
	fmt.Fprintln(c.Out, AliveLine)
}

// StopOnInterrupt binds the interrupt signal to a clean loop stop, so
// Ctrl+C ends the program with status 0 instead of the default
// disposition. It does nothing where signals are unsupported.
func StopOnInterrupt(l *loop.Loop, logger *slog.Logger) error {
	if !loop.SignalsSupported() {
		return nil
	}
	logger = orDiscard(logger)
	return l.BindSignal(loop.Interrupt, func(kind loop.SignalKind) {
		logger.Info("Interrupted, stopping loop", slog.String("signal", kind.String()))
		l.Stop()
	})
}

func orDiscard(logger *slog.Logger) *slog.Logger {
	if logger != nil {
		return logger
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
