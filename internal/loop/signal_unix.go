//go:build unix

package loop

import (
	"os"
	"syscall"
)

const signalsSupported = true

var osSignals = map[SignalKind]os.Signal{
	Interrupt: syscall.SIGINT,
	Terminate: syscall.SIGTERM,
}
