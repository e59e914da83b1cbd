package renderspec

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/capsoftware/cap-media-server/compositor"
	"github.com/capsoftware/cap-media-server/video"
)

func TestComputeReturnsIdentityLayoutWhenNothingConfigured(t *testing.T) {
	layout := Compute(ProjectConfig{OutputWidth: 1080, OutputHeight: 1920}, video.Metadata{Width: 1920, Height: 1080})
	require.False(t, layout.ShouldApply)
	require.Equal(t, layout.OutputWidth, layout.InnerWidth)
	require.Equal(t, layout.OutputHeight, layout.InnerHeight)
}

func TestComputeRoundsOutputDimensionsToEven(t *testing.T) {
	layout := Compute(ProjectConfig{OutputWidth: 1081, OutputHeight: 1921}, video.Metadata{Width: 16, Height: 9})
	require.Zero(t, layout.OutputWidth%2)
	require.Zero(t, layout.OutputHeight%2)
}

func TestComputeInsetsInnerCardByPadding(t *testing.T) {
	cfg := ProjectConfig{OutputWidth: 1000, OutputHeight: 1000, PaddingRatio: 0.1, BorderRadius: 16}
	layout := Compute(cfg, video.Metadata{Width: 1000, Height: 1000})
	require.True(t, layout.ShouldApply)
	require.Less(t, layout.InnerWidth, layout.OutputWidth)
	require.Less(t, layout.InnerHeight, layout.OutputHeight)
}

func TestComputePreservesSourceAspectRatioWithinBounds(t *testing.T) {
	cfg := ProjectConfig{OutputWidth: 1000, OutputHeight: 1000, PaddingRatio: 0.05, BorderRadius: 16}
	layout := Compute(cfg, video.Metadata{Width: 1920, Height: 1080})
	gotRatio := float64(layout.InnerWidth) / float64(layout.InnerHeight)
	wantRatio := 1920.0 / 1080.0
	require.InDelta(t, wantRatio, gotRatio, 0.05)
}

func TestComputeDefaultsShadowFieldsWhenEnabled(t *testing.T) {
	cfg := ProjectConfig{OutputWidth: 1000, OutputHeight: 1000, PaddingRatio: 0.1, ShadowEnabled: true}
	layout := Compute(cfg, video.Metadata{Width: 1000, Height: 1000})
	require.True(t, layout.Shadow.Enabled)
	require.Equal(t, float64(defaultShadowBlur), layout.Shadow.Blur)
	require.Equal(t, float64(defaultShadowOpacity), layout.Shadow.Opacity)
}

func TestComputeDefaultsToOpaqueSolidBackgroundWhenUnset(t *testing.T) {
	cfg := ProjectConfig{OutputWidth: 1000, OutputHeight: 1000, PaddingRatio: 0.1}
	layout := Compute(cfg, video.Metadata{Width: 1000, Height: 1000})
	require.Equal(t, float64(1), layout.BackgroundColorAlpha)
}

func TestComputeRespectsExplicitGradientBackground(t *testing.T) {
	grad := &compositor.Gradient{From: [3]int{0, 0, 0}, To: [3]int{255, 255, 255}, Angle: 45}
	cfg := ProjectConfig{OutputWidth: 1000, OutputHeight: 1000, BackgroundGradient: grad}
	layout := Compute(cfg, video.Metadata{Width: 1000, Height: 1000})
	require.Same(t, grad, layout.BackgroundGradient)
}
