package apps

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/bebsworthy/testapps/internal/config"
	"github.com/bebsworthy/testapps/internal/loop"
)

// Stubborn prints a line and carries on when asked to interrupt or
// terminate.
type Stubborn struct {
	Loop            *loop.Loop
	Out             io.Writer
	Logger          *slog.Logger
	IgnoreInterrupt bool
	IgnoreTerminate bool
}

// NewStubborn creates a stubborn program from configuration.
func NewStubborn(l *loop.Loop, cfg config.StubbornConfig, logger *slog.Logger) *Stubborn {
	return &Stubborn{
		Loop:            l,
		Out:             os.Stdout,
		Logger:          orDiscard(logger),
		IgnoreInterrupt: cfg.IgnoreInterrupt,
		IgnoreTerminate: cfg.IgnoreTerminate,
	}
}

// IgnoredLine is printed when kind arrives.
func IgnoredLine(kind loop.SignalKind) string {
	return fmt.Sprintf("Got %s, ignoring", kind)
}

// Start binds the configured signals. Where the platform cannot deliver
// signals nothing is bound and Start returns nil.
func (s *Stubborn) Start() error {
	if !loop.SignalsSupported() {
		s.Logger.Warn("Signal delivery not supported on this platform, nothing to ignore")
		return nil
	}

	var kinds []loop.SignalKind
	if s.IgnoreTerminate {
		kinds = append(kinds, loop.Terminate)
	}
	if s.IgnoreInterrupt {
		kinds = append(kinds, loop.Interrupt)
	}

	for _, kind := range kinds {
		if err := s.Loop.BindSignal(kind, s.ignore); err != nil {
			return fmt.Errorf("failed to bind %s: %w", kind, err)
		}
		s.Logger.Info("Ignoring signal", slog.String("signal", kind.String()))
	}
	return nil
}

func (s *Stubborn) ignore(kind loop.SignalKind) {
	fmt.Fprintln(s.Out, IgnoredLine(kind))
}
