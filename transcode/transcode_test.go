package transcode

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/capsoftware/cap-media-server/video"
)

func strPtr(s string) *string { return &s }

func TestDecideForcesNoReencodeWhenRemuxOnly(t *testing.T) {
	req := Request{
		RemuxOnly: true,
		Source:    video.Metadata{Width: 4000, Height: 4000, VideoCodec: "vp9", AudioCodec: strPtr("opus")},
		MaxWidth:  1920, MaxHeight: 1080,
	}
	d := decide(req)
	require.False(t, d.reencodeVideo)
	require.False(t, d.reencodeAudio)
}

func TestDecideFlagsVideoReencodeWhenOversized(t *testing.T) {
	req := Request{Source: video.Metadata{Width: 4000, Height: 4000, VideoCodec: "h264"}, MaxWidth: 1920, MaxHeight: 1080}
	require.True(t, decide(req).reencodeVideo)
}

func TestDecideFlagsVideoReencodeWhenWrongCodec(t *testing.T) {
	req := Request{Source: video.Metadata{Width: 100, Height: 100, VideoCodec: "vp9"}, MaxWidth: 1920, MaxHeight: 1080}
	require.True(t, decide(req).reencodeVideo)
}

func TestDecideFlagsAudioReencodeWhenPresentAndWrongCodec(t *testing.T) {
	req := Request{
		Source:    video.Metadata{Width: 100, Height: 100, VideoCodec: "h264", AudioCodec: strPtr("mp3")},
		MaxWidth:  1920, MaxHeight: 1080,
	}
	require.True(t, decide(req).reencodeAudio)
}

func TestDecideSkipsAudioReencodeWhenNoAudio(t *testing.T) {
	req := Request{Source: video.Metadata{Width: 100, Height: 100, VideoCodec: "h264"}, MaxWidth: 1920, MaxHeight: 1080}
	require.False(t, decide(req).reencodeAudio)
}

func TestCrfAndPresetDefaults(t *testing.T) {
	require.Equal(t, 23, crfOrDefault(0))
	require.Equal(t, 30, crfOrDefault(30))
	require.Equal(t, "medium", presetOrDefault(""))
	require.Equal(t, "fast", presetOrDefault("fast"))
}

func TestScaleFilterEnforcesEvenDimensions(t *testing.T) {
	f := scaleFilter(1920, 1080)
	require.Contains(t, f, "force_original_aspect_ratio=decrease")
	require.Contains(t, f, "trunc(iw/2)*2:trunc(ih/2)*2")
}
