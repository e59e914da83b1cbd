package thumbnail

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestQualityToFfmpegInverseMapping(t *testing.T) {
	require.Equal(t, 31, qualityToFfmpeg(1))
	require.Equal(t, 2, qualityToFfmpeg(100))
	require.Equal(t, 31, qualityToFfmpeg(0))
	require.Equal(t, 2, qualityToFfmpeg(101))
}

func TestTimestampForDefaultsToQuarterDurationCappedAtOne(t *testing.T) {
	require.InDelta(t, 1.0, timestampFor(Request{Duration: 20}), 0.001)
	require.InDelta(t, 1.0, timestampFor(Request{Duration: 10}), 0.001)
}

func TestTimestampForClampsToDurationMinusOneTenth(t *testing.T) {
	ts := 9.0
	require.InDelta(t, 4.9, timestampFor(Request{Duration: 5, Timestamp: &ts}), 0.001)
}

func TestTimestampForFloorsAtZero(t *testing.T) {
	ts := -3.0
	require.Equal(t, 0.0, timestampFor(Request{Duration: 5, Timestamp: &ts}))
}

func TestScaleExprUsesDecreaseAspectRatio(t *testing.T) {
	require.Equal(t, "scale=320:-1:force_original_aspect_ratio=decrease", scaleExpr(320, -1))
}
