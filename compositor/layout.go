// Package compositor holds the RenderLayout value type shared by the
// ffmpeg-string filter graph builder (filtergraph) and the in-process RGBA
// compositor (canvas), per spec §3 and §4.6. Named apart from spec.md's bare
// "RenderLayout" to avoid colliding with the HTTP layer's own "layout" term.
package compositor

// Shadow describes the drop-shadow parameters of a RenderLayout, per spec §3.
type Shadow struct {
	Enabled  bool
	OffsetY  float64
	Blur     float64
	Spread   float64
	Opacity  float64
}

// Gradient describes a two-stop linear background gradient, per spec §4.4.
type Gradient struct {
	From  [3]int // 0-255 RGB
	To    [3]int
	Angle float64 // degrees
}

// RenderLayout is the layout description computed by the external
// render-spec collaborator (spec.md §9, `computeRenderSpec`) from a project
// config and the source's probed dimensions. Every rasterized buffer
// derived from it has even width/height, per spec §3's invariant.
type RenderLayout struct {
	OutputWidth  int
	OutputHeight int
	InnerWidth   int
	InnerHeight  int
	BorderRadius float64

	Shadow Shadow

	BackgroundColor      uint32 // 24-bit RGB
	BackgroundColorAlpha float64
	BackgroundGradient   *Gradient
	BackgroundImagePath  string

	// ShouldApply is false when the layout is the source frame's identity:
	// no background, no card, no rounding, no shadow.
	ShouldApply bool
}

// EvenDimension rounds d down to the nearest even integer >= 2, per spec
// §3's "even ≥ 2" rasterized-buffer invariant.
func EvenDimension(d int) int {
	if d < 2 {
		return 2
	}
	if d%2 != 0 {
		return d - 1
	}
	return d
}
