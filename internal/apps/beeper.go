package apps

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/bebsworthy/testapps/internal/config"
	"github.com/bebsworthy/testapps/internal/loop"
)

// Beeper announces the wall-clock time once at start and then on every
// tick of its schedule.
type Beeper struct {
	Loop   *loop.Loop
	Out    io.Writer
	Logger *slog.Logger
	Now    func() time.Time

	// Schedule wins over Interval when set.
	Schedule cron.Schedule
	Interval time.Duration
}

// NewBeeper creates a beeper from configuration.
func NewBeeper(l *loop.Loop, cfg config.TimerConfig, logger *slog.Logger) (*Beeper, error) {
	b := &Beeper{
		Loop:     l,
		Out:      os.Stdout,
		Logger:   orDiscard(logger),
		Now:      time.Now,
		Interval: cfg.Interval,
	}
	if cfg.Schedule != "" {
		schedule, err := loop.ParseSchedule(cfg.Schedule)
		if err != nil {
			return nil, err
		}
		b.Schedule = schedule
	}
	return b, nil
}

// BeepLine formats the announcement for t.
func BeepLine(t time.Time) string {
	return fmt.Sprintf("At the tone, the time will be %s -- BEEP!", t.Format("15:04:05"))
}

// Start prints the first announcement on the next turn and arms the
// recurring timer.
func (b *Beeper) Start() (*loop.Timer, error) {
	b.Loop.CallSoon(b.beep)
	if b.Schedule != nil {
		b.Logger.Info("Beeper armed on schedule")
		return b.Loop.Cron(b.Schedule, b.beep)
	}
	b.Logger.Info("Beeper armed", slog.Duration("interval", b.Interval))
	return b.Loop.Every(b.Interval, b.beep)
}

func (b *Beeper) beep() {
	fmt.Fprintln(b.Out, BeepLine(b.Now()))
}
