// Package renderspec is a concrete stand-in for the external render-spec
// collaborator spec.md §9 treats as a black box (`@cap/editor-render-spec`'s
// `computeRenderSpec`). spec.md explicitly excludes re-deriving its
// internals, but this module still needs *a* runnable implementation to
// produce a compositor.RenderLayout from a project's editor config and the
// probed source dimensions.
package renderspec

import (
	"math"

	"github.com/capsoftware/cap-media-server/compositor"
	"github.com/capsoftware/cap-media-server/video"
)

// ProjectConfig is the subset of an editor project's settings that feed the
// render layout: padding around the inner card, the card's corner radius,
// drop-shadow toggle, and background treatment (solid, gradient, or image —
// at most one is set; solid color is the fallback).
type ProjectConfig struct {
	OutputWidth  int
	OutputHeight int

	PaddingRatio float64 // fraction of the shorter output dimension, e.g. 0.08
	BorderRadius float64

	ShadowEnabled bool
	ShadowOffsetY float64
	ShadowBlur    float64
	ShadowSpread  float64
	ShadowOpacity float64

	BackgroundColor      uint32
	BackgroundColorAlpha float64
	BackgroundGradient   *compositor.Gradient
	BackgroundImagePath  string
}

const (
	defaultPaddingRatio = 0.08
	defaultBorderRadius = 24
	defaultShadowBlur   = 40
	defaultShadowSpread = 0
	defaultShadowOpacity = 0.35
	defaultShadowOffsetY = 12
)

// Compute derives a RenderLayout from cfg and the probed source, per spec.md
// §3's RenderLayout shape. The inner card keeps the source's aspect ratio,
// inset from the output bounds by cfg.PaddingRatio on every side; both
// output and inner dimensions are rounded to even per the rasterized-buffer
// invariant.
func Compute(cfg ProjectConfig, src video.Metadata) compositor.RenderLayout {
	outW := compositor.EvenDimension(cfg.OutputWidth)
	outH := compositor.EvenDimension(cfg.OutputHeight)

	shouldApply := cfg.PaddingRatio > 0 || cfg.BorderRadius > 0 || cfg.ShadowEnabled ||
		cfg.BackgroundGradient != nil || cfg.BackgroundImagePath != ""

	if !shouldApply {
		return compositor.RenderLayout{
			OutputWidth:  outW,
			OutputHeight: outH,
			InnerWidth:   outW,
			InnerHeight:  outH,
			ShouldApply:  false,
		}
	}

	padding := cfg.PaddingRatio
	if padding <= 0 {
		padding = defaultPaddingRatio
	}
	shortSide := math.Min(float64(outW), float64(outH))
	inset := padding * shortSide

	maxInnerW := float64(outW) - 2*inset
	maxInnerH := float64(outH) - 2*inset

	srcAspect := 1.0
	if src.Height > 0 {
		srcAspect = float64(src.Width) / float64(src.Height)
	}

	innerW, innerH := maxInnerW, maxInnerW/srcAspect
	if innerH > maxInnerH {
		innerH = maxInnerH
		innerW = innerH * srcAspect
	}

	radius := cfg.BorderRadius
	if radius <= 0 && shouldApply {
		radius = defaultBorderRadius
	}

	layout := compositor.RenderLayout{
		OutputWidth:          outW,
		OutputHeight:         outH,
		InnerWidth:           compositor.EvenDimension(int(math.Round(innerW))),
		InnerHeight:          compositor.EvenDimension(int(math.Round(innerH))),
		BorderRadius:         radius,
		BackgroundColor:      cfg.BackgroundColor,
		BackgroundColorAlpha: cfg.BackgroundColorAlpha,
		BackgroundGradient:   cfg.BackgroundGradient,
		BackgroundImagePath:  cfg.BackgroundImagePath,
		ShouldApply:          true,
	}
	if layout.BackgroundColorAlpha == 0 && layout.BackgroundGradient == nil && layout.BackgroundImagePath == "" {
		layout.BackgroundColorAlpha = 1
	}

	if cfg.ShadowEnabled {
		layout.Shadow = compositor.Shadow{
			Enabled: true,
			OffsetY: valueOrDefault(cfg.ShadowOffsetY, defaultShadowOffsetY),
			Blur:    valueOrDefault(cfg.ShadowBlur, defaultShadowBlur),
			Spread:  valueOrDefault(cfg.ShadowSpread, defaultShadowSpread),
			Opacity: valueOrDefault(cfg.ShadowOpacity, defaultShadowOpacity),
		}
	}

	return layout
}

func valueOrDefault(v, def float64) float64 {
	if v == 0 {
		return def
	}
	return v
}
