package subprocess

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/capsoftware/cap-media-server/errors"
)

func TestLimiterAdmitsUpToCeiling(t *testing.T) {
	l := NewLimiter("test", 2)
	require.True(t, l.TryAcquire())
	require.True(t, l.TryAcquire())
	require.False(t, l.TryAcquire())
	require.EqualValues(t, 2, l.InUse())
}

func TestLimiterReleaseFreesSlot(t *testing.T) {
	l := NewLimiter("test", 1)
	require.True(t, l.TryAcquire())
	require.False(t, l.TryAcquire())
	l.Release()
	require.True(t, l.TryAcquire())
}

func TestAcquireReturnsBusyKind(t *testing.T) {
	l := NewLimiter("test", 0)
	release, err := Acquire(l)
	require.Nil(t, release)
	require.Error(t, err)
	apiErr, ok := err.(*errors.Error)
	require.True(t, ok)
	require.Equal(t, errors.KindServerBusy, apiErr.Kind)
}

func TestAcquireReleaseRoundTripsToBaseline(t *testing.T) {
	l := NewLimiter("test", 3)
	release, err := Acquire(l)
	require.NoError(t, err)
	require.EqualValues(t, 1, l.InUse())
	release()
	require.EqualValues(t, 0, l.InUse())
}
