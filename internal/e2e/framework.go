//go:build unix

// Package e2e runs the testapps binary as a real child process.
//
// The suite builds the binary once, starts a program with its own systemd
// notification socket, and lets tests wait for readiness, read stdout
// line by line, deliver signals and check how the process exited.
package e2e

import (
	"bytes"
	"fmt"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"testing"
	"time"
)

var (
	buildOnce  sync.Once
	buildDir   string
	binaryPath string
	buildErr   error
	skipReason string
)

// Suite starts testapps programs for a single test.
type Suite struct {
	t          *testing.T
	binaryPath string
	tempDir    string
	socketDir  string
	started    int
}

// NewSuite builds the testapps binary if needed. The test is skipped in
// short mode or when no go toolchain is on PATH.
func NewSuite(t *testing.T) *Suite {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping end-to-end test in short mode")
	}

	buildOnce.Do(buildBinary)
	if skipReason != "" {
		t.Skip(skipReason)
	}
	if buildErr != nil {
		t.Fatalf("failed to build testapps: %v", buildErr)
	}

	// Unix socket paths are limited to about 100 bytes, so sockets get a
	// short directory of their own.
	socketDir, err := os.MkdirTemp("", "ta-")
	if err != nil {
		t.Fatalf("failed to create socket dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(socketDir) })

	return &Suite{
		t:          t,
		binaryPath: binaryPath,
		tempDir:    t.TempDir(),
		socketDir:  socketDir,
	}
}

// cleanupBinary removes the shared build directory. Called from TestMain.
func cleanupBinary() {
	if buildDir != "" {
		os.RemoveAll(buildDir)
	}
}

func buildBinary() {
	goBin, err := exec.LookPath("go")
	if err != nil {
		skipReason = "go toolchain not found on PATH"
		return
	}

	root, err := findModuleRoot()
	if err != nil {
		buildErr = err
		return
	}

	buildDir, err = os.MkdirTemp("", "testapps-e2e-")
	if err != nil {
		buildErr = fmt.Errorf("failed to create build dir: %w", err)
		return
	}
	binaryPath = filepath.Join(buildDir, "testapps")

	cmd := exec.Command(goBin, "build", "-o", binaryPath, ".")
	cmd.Dir = root
	if out, err := cmd.CombinedOutput(); err != nil {
		buildErr = fmt.Errorf("go build: %w\n%s", err, out)
	}
}

// findModuleRoot walks up from the working directory to the go.mod.
func findModuleRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get working directory: %w", err)
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("go.mod not found above working directory")
		}
		dir = parent
	}
}

// Program is a running testapps child process.
type Program struct {
	t      *testing.T
	cmd    *exec.Cmd
	stdout *lineBuffer
	stderr *syncBuffer
	notify *net.UnixConn
	done   chan struct{}
}

// Start launches testapps with args and a private NOTIFY_SOCKET.
func (s *Suite) Start(args ...string) *Program {
	s.t.Helper()

	s.started++
	socketPath := filepath.Join(s.socketDir, fmt.Sprintf("%d.sock", s.started))
	conn, err := net.ListenUnixgram("unixgram", &net.UnixAddr{Name: socketPath, Net: "unixgram"})
	if err != nil {
		s.t.Fatalf("failed to listen on notify socket: %v", err)
	}

	p := &Program{
		t:      s.t,
		cmd:    exec.Command(s.binaryPath, args...),
		stdout: newLineBuffer(),
		stderr: &syncBuffer{},
		notify: conn,
		done:   make(chan struct{}),
	}
	p.cmd.Dir = s.tempDir
	p.cmd.Env = append(os.Environ(), "NOTIFY_SOCKET="+socketPath)
	p.cmd.Stdout = p.stdout
	p.cmd.Stderr = p.stderr

	if err := p.cmd.Start(); err != nil {
		conn.Close()
		s.t.Fatalf("failed to start testapps %v: %v", args, err)
	}
	go func() {
		p.cmd.Wait()
		close(p.done)
	}()

	s.t.Cleanup(func() {
		select {
		case <-p.done:
		default:
			p.cmd.Process.Kill()
			<-p.done
		}
		conn.Close()
		if s.t.Failed() {
			s.t.Logf("testapps %v stderr:\n%s", args, p.stderr.String())
		}
	})

	s.t.Logf("Started testapps %v (PID: %d)", args, p.cmd.Process.Pid)
	return p
}

// WaitState blocks until the program sends state, e.g. "READY=1".
func (p *Program) WaitState(state string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	buf := make([]byte, 1024)
	for {
		if err := p.notify.SetReadDeadline(deadline); err != nil {
			return err
		}
		n, err := p.notify.Read(buf)
		if err != nil {
			return fmt.Errorf("waiting for %s: %w", state, err)
		}
		for _, line := range strings.Split(string(buf[:n]), "\n") {
			if line == state {
				return nil
			}
		}
	}
}

// WaitReady blocks until the program's loop has started.
func (p *Program) WaitReady(timeout time.Duration) error {
	return p.WaitState("READY=1", timeout)
}

// Lines waits until at least n lines were printed to stdout and returns
// everything printed so far.
func (p *Program) Lines(n int, timeout time.Duration) ([]string, error) {
	return p.stdout.wait(n, timeout)
}

// Output returns the stdout lines printed so far.
func (p *Program) Output() []string {
	return p.stdout.snapshot()
}

// Signal delivers sig to the program.
func (p *Program) Signal(sig syscall.Signal) error {
	return p.cmd.Process.Signal(sig)
}

// Exited reports whether the program has terminated.
func (p *Program) Exited() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// Exit describes how a program terminated.
type Exit struct {
	Code   int
	Signal syscall.Signal
}

// Signaled reports whether the program was killed by a signal.
func (e Exit) Signaled() bool {
	return e.Signal != 0
}

// Wait blocks until the program exits.
func (p *Program) Wait(timeout time.Duration) (Exit, error) {
	select {
	case <-p.done:
	case <-time.After(timeout):
		return Exit{}, fmt.Errorf("program still running after %v", timeout)
	}

	state := p.cmd.ProcessState
	exit := Exit{Code: state.ExitCode()}
	if status, ok := state.Sys().(syscall.WaitStatus); ok && status.Signaled() {
		exit.Signal = status.Signal()
	}
	return exit, nil
}

// lineBuffer collects complete lines written by the child.
type lineBuffer struct {
	mu      sync.Mutex
	partial []byte
	lines   []string
	changed chan struct{}
}

func newLineBuffer() *lineBuffer {
	return &lineBuffer{changed: make(chan struct{}, 1)}
}

func (b *lineBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	b.partial = append(b.partial, p...)
	for {
		i := bytes.IndexByte(b.partial, '\n')
		if i < 0 {
			break
		}
		b.lines = append(b.lines, string(b.partial[:i]))
		b.partial = b.partial[i+1:]
	}
	b.mu.Unlock()

	select {
	case b.changed <- struct{}{}:
	default:
	}
	return len(p), nil
}

func (b *lineBuffer) snapshot() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.lines...)
}

func (b *lineBuffer) wait(n int, timeout time.Duration) ([]string, error) {
	deadline := time.After(timeout)
	for {
		if lines := b.snapshot(); len(lines) >= n {
			return lines, nil
		}
		select {
		case <-b.changed:
		case <-deadline:
			lines := b.snapshot()
			return lines, fmt.Errorf("got %d lines, want %d: %q", len(lines), n, lines)
		}
	}
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
