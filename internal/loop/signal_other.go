//go:build !unix

package loop

import "os"

// No POSIX signal delivery to a running process here; BindSignal fails.
const signalsSupported = false

var osSignals = map[SignalKind]os.Signal{}
