package subprocess

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"

	"github.com/capsoftware/cap-media-server/config"
)

func TestStallWatchdogFiresAfterTimeout(t *testing.T) {
	mock := clock.NewMock()
	w := NewStallWatchdog(mock, 10*time.Second)

	mock.Add(11 * time.Second)

	select {
	case <-w.Fired():
	case <-time.After(time.Second):
		t.Fatal("watchdog did not fire")
	}
}

func TestStallWatchdogResetPreventsFiring(t *testing.T) {
	mock := clock.NewMock()
	w := NewStallWatchdog(mock, 5*time.Second)

	mock.Add(3 * time.Second)
	w.Reset(5 * time.Second)
	mock.Add(3 * time.Second)

	select {
	case <-w.Fired():
		t.Fatal("watchdog fired despite reset")
	default:
	}
	w.Stop()
}

func TestStallBoundShortensNearCompletion(t *testing.T) {
	require.Equal(t, config.StallTimeout, StallBoundFor(0.5))
	require.Equal(t, config.StallTimeoutNearComplete, StallBoundFor(0.99))
}
