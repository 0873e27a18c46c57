//go:build unix

package e2e

import (
	"os"
	"path/filepath"
	"regexp"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const timeout = 10 * time.Second

var beepPattern = regexp.MustCompile(`^At the tone, the time will be \d{2}:\d{2}:\d{2} -- BEEP!$`)

func TestStubborn_IgnoresInterruptAndTerminate(t *testing.T) {
	suite := NewSuite(t)

	p := suite.Start("stubborn")
	require.NoError(t, p.WaitReady(timeout))

	require.NoError(t, p.Signal(syscall.SIGTERM))
	_, err := p.Lines(1, timeout)
	require.NoError(t, err)

	require.NoError(t, p.Signal(syscall.SIGINT))
	lines, err := p.Lines(2, timeout)
	require.NoError(t, err)
	assert.Equal(t, []string{"Got SIGTERM, ignoring", "Got SIGINT, ignoring"}, lines)

	time.Sleep(100 * time.Millisecond)
	assert.False(t, p.Exited(), "stubborn should survive SIGINT and SIGTERM")

	require.NoError(t, p.Signal(syscall.SIGKILL))
	exit, err := p.Wait(timeout)
	require.NoError(t, err)
	assert.True(t, exit.Signaled())
	assert.Equal(t, syscall.SIGKILL, exit.Signal)
}

func TestStubborn_TerminateNotIgnored(t *testing.T) {
	suite := NewSuite(t)

	p := suite.Start("stubborn", "--ignore-terminate=false")
	require.NoError(t, p.WaitReady(timeout))

	require.NoError(t, p.Signal(syscall.SIGTERM))
	exit, err := p.Wait(timeout)
	require.NoError(t, err)
	assert.Equal(t, syscall.SIGTERM, exit.Signal)
	assert.Empty(t, p.Output())
}

func TestCrasher_CrashesWithStatusOne(t *testing.T) {
	suite := NewSuite(t)

	// Every draw in [0, 1) is below a threshold of 1.
	p := suite.Start("crasher", "--interval", "10ms", "--threshold", "1")
	exit, err := p.Wait(timeout)
	require.NoError(t, err)

	assert.Equal(t, 1, exit.Code)
	assert.Equal(t, []string{"crashing"}, p.Output())
}

func TestCrasher_CustomExitCode(t *testing.T) {
	suite := NewSuite(t)

	p := suite.Start("crasher", "--interval", "10ms", "--threshold", "1", "--exit-code", "7")
	exit, err := p.Wait(timeout)
	require.NoError(t, err)
	assert.Equal(t, 7, exit.Code)
}

func TestCrasher_EventuallyCrashes(t *testing.T) {
	suite := NewSuite(t)

	p := suite.Start("crasher", "--interval", "5ms", "--threshold", "0.5", "--seed", "7")
	exit, err := p.Wait(timeout)
	require.NoError(t, err)
	assert.Equal(t, 1, exit.Code)

	lines := p.Output()
	require.NotEmpty(t, lines)
	assert.Equal(t, "crashing", lines[len(lines)-1])
	for _, line := range lines[:len(lines)-1] {
		assert.Equal(t, "still alive!", line)
	}
}

func TestCrasher_InterruptStopsCleanly(t *testing.T) {
	suite := NewSuite(t)

	p := suite.Start("crasher", "--interval", "10ms", "--threshold", "0")
	require.NoError(t, p.WaitReady(timeout))

	lines, err := p.Lines(2, timeout)
	require.NoError(t, err)
	for _, line := range lines {
		assert.Equal(t, "still alive!", line)
	}

	require.NoError(t, p.Signal(syscall.SIGINT))
	require.NoError(t, p.WaitState("STOPPING=1", timeout))
	exit, err := p.Wait(timeout)
	require.NoError(t, err)
	assert.False(t, exit.Signaled())
	assert.Equal(t, 0, exit.Code)
}

func TestTimer_AnnouncesTime(t *testing.T) {
	suite := NewSuite(t)

	p := suite.Start("timer", "--interval", "20ms")
	require.NoError(t, p.WaitReady(timeout))

	lines, err := p.Lines(3, timeout)
	require.NoError(t, err)
	for _, line := range lines {
		assert.Regexp(t, beepPattern, line)
	}

	require.NoError(t, p.Signal(syscall.SIGINT))
	exit, err := p.Wait(timeout)
	require.NoError(t, err)
	assert.Equal(t, 0, exit.Code)
}

func TestTimer_DefaultScheduleAnnouncesAtStart(t *testing.T) {
	suite := NewSuite(t)

	p := suite.Start("timer")
	require.NoError(t, p.WaitReady(timeout))

	lines, err := p.Lines(1, timeout)
	require.NoError(t, err)
	assert.Regexp(t, beepPattern, lines[0])

	require.NoError(t, p.Signal(syscall.SIGINT))
	exit, err := p.Wait(timeout)
	require.NoError(t, err)
	assert.Equal(t, 0, exit.Code)
}

func TestConfig_MissingFileExitsTwo(t *testing.T) {
	suite := NewSuite(t)

	p := suite.Start("--config", filepath.Join(t.TempDir(), "missing.yaml"), "crasher")
	exit, err := p.Wait(timeout)
	require.NoError(t, err)
	assert.Equal(t, 2, exit.Code)
	assert.Empty(t, p.Output())
}

func TestConfig_InvalidFlagValueExitsTwo(t *testing.T) {
	suite := NewSuite(t)

	p := suite.Start("crasher", "--threshold", "2")
	exit, err := p.Wait(timeout)
	require.NoError(t, err)
	assert.Equal(t, 2, exit.Code)
	assert.Empty(t, p.Output())
}

func TestConfig_FileSetsTimerInterval(t *testing.T) {
	suite := NewSuite(t)

	path := filepath.Join(t.TempDir(), "testapps.yaml")
	require.NoError(t, os.WriteFile(path, []byte("timer:\n  schedule: \"\"\n  interval: 15ms\n"), 0o644))

	p := suite.Start("--config", path, "timer")
	lines, err := p.Lines(3, timeout)
	require.NoError(t, err)
	for _, line := range lines {
		assert.Regexp(t, beepPattern, line)
	}

	require.NoError(t, p.Signal(syscall.SIGINT))
	exit, err := p.Wait(timeout)
	require.NoError(t, err)
	assert.Equal(t, 0, exit.Code)
}
