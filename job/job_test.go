package job

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSnapshotReflectsCurrentState(t *testing.T) {
	j := &Job{ID: "j1", VideoID: "v1", Phase: PhaseProcessing, Progress: 42}
	snap := j.Snapshot()
	require.Equal(t, "j1", snap.JobID)
	require.Equal(t, "v1", snap.VideoID)
	require.Equal(t, PhaseProcessing, snap.Phase)
	require.Equal(t, float64(42), snap.Progress)
}

func TestAbortInvokesCancelFuncWhenSet(t *testing.T) {
	j := &Job{}
	called := false
	_, cancel := context.WithCancel(context.Background())
	j.SetAbortHandle(func() {
		called = true
		cancel()
	})
	j.abort()
	require.True(t, called)
}

func TestAbortToleratesUnsetCancelFunc(t *testing.T) {
	j := &Job{}
	require.NotPanics(t, func() { j.abort() })
}

func TestCleanupTempFilesToleratesUnsetHandles(t *testing.T) {
	j := &Job{}
	require.NotPanics(t, func() { j.cleanupTempFiles() })
}
