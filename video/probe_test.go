package video

import (
	"testing"

	"github.com/stretchr/testify/require"

	apierrors "github.com/capsoftware/cap-media-server/errors"
)

func TestReduceProbeResultPicksFirstVideoAndAudioStream(t *testing.T) {
	pr := probeResult{
		Streams: []probeStream{
			{CodecType: "audio", CodecName: "aac", Channels: 2, SampleRate: "48000"},
			{CodecType: "video", CodecName: "h264", Width: 1920, Height: 1080, RFrameRate: "30000/1001"},
			{CodecType: "video", CodecName: "vp9", Width: 640, Height: 360, RFrameRate: "24/1"},
		},
		Format: probeFormat{Duration: "12.5", Size: "1024", BitRate: "500000"},
	}

	meta, err := reduceProbeResult(pr)
	require.NoError(t, err)
	require.Equal(t, "h264", meta.VideoCodec)
	require.Equal(t, 1920, meta.Width)
	require.Equal(t, 1080, meta.Height)
	require.Equal(t, 29.97, meta.FPS)
	require.Equal(t, 12.5, meta.Duration)
	require.EqualValues(t, 1024, meta.FileSize)
	require.EqualValues(t, 500000, meta.Bitrate)
	require.True(t, meta.HasAudio())
	require.Equal(t, "aac", *meta.AudioCodec)
	require.Equal(t, 2, *meta.AudioChannels)
	require.Equal(t, 48000, *meta.SampleRate)
}

func TestReduceProbeResultNoVideoStream(t *testing.T) {
	pr := probeResult{
		Streams: []probeStream{
			{CodecType: "audio", CodecName: "aac"},
		},
	}

	_, err := reduceProbeResult(pr)
	require.Error(t, err)
	apiErr, ok := err.(*apierrors.Error)
	require.True(t, ok)
	require.Equal(t, apierrors.KindNoVideoStream, apiErr.Kind)
}

func TestReduceProbeResultNoAudioStream(t *testing.T) {
	pr := probeResult{
		Streams: []probeStream{
			{CodecType: "video", CodecName: "h264", Width: 100, Height: 100, RFrameRate: "0/0"},
		},
		Format: probeFormat{Duration: "1.0"},
	}

	meta, err := reduceProbeResult(pr)
	require.NoError(t, err)
	require.False(t, meta.HasAudio())
	require.Nil(t, meta.AudioCodec)
	require.Equal(t, 0.0, meta.FPS)
}

func TestParseFpsVariants(t *testing.T) {
	cases := []struct {
		in      string
		want    float64
		wantErr bool
	}{
		{"30/1", 30, false},
		{"30000/1001", 29.97002997002997, false},
		{"0/0", 0, false},
		{"", 0, false},
		{"30/0", 0, true},
		{"25", 25, false},
	}
	for _, c := range cases {
		got, err := parseFps(c.in)
		if c.wantErr {
			require.Error(t, err, c.in)
			continue
		}
		require.NoError(t, err, c.in)
		require.InDelta(t, c.want, got, 0.0001, c.in)
	}
}

func TestRoundTo2(t *testing.T) {
	require.Equal(t, 29.97, roundTo2(29.970029970029969))
	require.Equal(t, 30.0, roundTo2(30))
}
