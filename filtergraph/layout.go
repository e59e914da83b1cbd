package filtergraph

import (
	"fmt"
	"math"

	"github.com/capsoftware/cap-media-server/compositor"
)

// BuildLayoutGraph renders the background/inner-card/rounded-mask/shadow
// overlay graph from a RenderLayout, per spec §4.4. inputLabel names the
// already-trimmed/concatenated video stream label (e.g. "vout"); the
// returned label names the final composited video output. Returns
// (nil, inputLabel) unchanged when layout.ShouldApply is false, per spec
// §3's identity invariant.
func BuildLayoutGraph(layout compositor.RenderLayout, inputLabel string, duration float64) (Graph, string) {
	if !layout.ShouldApply {
		return nil, inputLabel
	}

	var g Graph
	bgLabel := buildBackground(&g, layout, duration)
	cardLabel := buildInnerCard(&g, layout, inputLabel)

	if layout.BorderRadius > 0 {
		cardLabel = buildRoundedMask(&g, layout, cardLabel)
	}

	if layout.Shadow.Enabled {
		bgLabel = buildShadow(&g, layout, bgLabel, cardLabel)
	}

	final := "layoutout"
	g = append(g, Node{
		Inputs: []string{bgLabel, cardLabel},
		Filter: "overlay",
		Args: []Param{
			{Key: "x", Value: "(W-w)/2"},
			{Key: "y", Value: "(H-h)/2"},
		},
		Outputs: []string{final},
	})
	return g, final
}

// buildBackground produces the "[bg]" source at output resolution for the
// target duration: image (scale+crop to cover), gradient (nullsrc+geq), or
// solid color with optional alpha, per spec §4.4 step 1.
func buildBackground(g *Graph, layout compositor.RenderLayout, duration float64) string {
	const label = "bg"
	switch {
	case layout.BackgroundImagePath != "":
		*g = append(*g, Node{
			Filter: fmt.Sprintf("movie=%s,scale=%d:%d:force_original_aspect_ratio=increase,crop=%d:%d",
				escapePath(layout.BackgroundImagePath), layout.OutputWidth, layout.OutputHeight, layout.OutputWidth, layout.OutputHeight),
			Outputs: []string{label},
		})
	case layout.BackgroundGradient != nil:
		r, gExpr, b := gradientExprs(*layout.BackgroundGradient)
		*g = append(*g, Node{
			Filter: fmt.Sprintf("nullsrc=size=%dx%d:duration=%s", layout.OutputWidth, layout.OutputHeight, formatNum(duration)),
			Outputs: []string{"bgsrc"},
		})
		*g = append(*g, Node{
			Inputs: []string{"bgsrc"},
			Filter: "geq",
			Args: []Param{
				{Key: "r", Value: "'" + r + "'"},
				{Key: "g", Value: "'" + gExpr + "'"},
				{Key: "b", Value: "'" + b + "'"},
			},
			Outputs: []string{label},
		})
	default:
		r, gr, b := splitRGB(layout.BackgroundColor)
		*g = append(*g, Node{
			Filter: fmt.Sprintf("color=c=0x%02x%02x%02x@%s:size=%dx%d:duration=%s", r, gr, b, formatNum(layout.BackgroundColorAlpha), layout.OutputWidth, layout.OutputHeight, formatNum(duration)),
			Outputs: []string{label},
		})
	}
	return label
}

// buildInnerCard scales the source video to the inner rect preserving
// aspect ratio, then pads/centers it, producing "[vscaled]", per spec §4.4
// step 2.
func buildInnerCard(g *Graph, layout compositor.RenderLayout, inputLabel string) string {
	const label = "vscaled"
	*g = append(*g, Node{
		Inputs: []string{inputLabel},
		Filter: fmt.Sprintf("scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2",
			layout.InnerWidth, layout.InnerHeight, layout.InnerWidth, layout.InnerHeight),
		Outputs: []string{label},
	})
	return label
}

// buildRoundedMask applies a rounded-corner alpha mask via a geq expression
// testing both corner quadrants, per spec §4.4 step 3.
func buildRoundedMask(g *Graph, layout compositor.RenderLayout, inputLabel string) string {
	const label = "vrounded"
	r := formatNum(layout.BorderRadius)
	// Tests distance from each corner's arc centre against the radius in the
	// four corner squares: pixels there farther than the radius get alpha 0,
	// every other pixel 255.
	cornerTest := fmt.Sprintf(
		"if(lt(X,%s)*lt(Y,%s),if(lte(hypot(%s-X,%s-Y),%s),255,0),"+
			"if(gt(X,W-%s)*lt(Y,%s),if(lte(hypot(X-(W-%s),%s-Y),%s),255,0),"+
			"if(lt(X,%s)*gt(Y,H-%s),if(lte(hypot(%s-X,Y-(H-%s)),%s),255,0),"+
			"if(gt(X,W-%s)*gt(Y,H-%s),if(lte(hypot(X-(W-%s),Y-(H-%s)),%s),255,0),255))))",
		r, r, r, r, r,
		r, r, r, r, r,
		r, r, r, r, r,
		r, r, r, r, r,
	)
	*g = append(*g, Node{
		Inputs:  []string{inputLabel},
		Filter:  "geq",
		Args:    []Param{{Key: "lum", Value: "'p(X,Y)'"}, {Key: "a", Value: "'" + cornerTest + "'"}},
		Outputs: []string{label},
	})
	return label
}

// buildShadow splits the card into main/shadow branches, extracts alpha,
// dilates and blurs it, merges with a constant color plate, and overlays it
// onto the background centered with offsetY, per spec §4.4 step 4. Returns
// the background label with the shadow composited onto it; the caller
// overlays the card on top separately.
func buildShadow(g *Graph, layout compositor.RenderLayout, bgLabel, cardLabel string) string {
	s := layout.Shadow
	blurRadius := math.Max(1, math.Round(s.Blur/4))

	*g = append(*g, Node{Inputs: []string{cardLabel}, Filter: "split", Outputs: []string{"cardmain", "cardshadow"}})
	*g = append(*g, Node{Inputs: []string{"cardshadow"}, Filter: "alphaextract", Outputs: []string{"shadowalpha"}})

	shadowSrc := "shadowalpha"
	for i := 0; i < int(s.Spread); i++ {
		next := fmt.Sprintf("shadowdilate%d", i)
		*g = append(*g, Node{Inputs: []string{shadowSrc}, Filter: "dilation", Outputs: []string{next}})
		shadowSrc = next
	}

	*g = append(*g, Node{
		Inputs:  []string{shadowSrc},
		Filter:  "boxblur",
		Args:    []Param{{Key: "luma_radius", Value: formatNum(blurRadius)}},
		Outputs: []string{"shadowblurred"},
	})

	*g = append(*g, Node{
		Filter: fmt.Sprintf("color=c=black@%s:size=%dx%d", formatNum(s.Opacity), layout.OutputWidth, layout.OutputHeight),
		Outputs: []string{"shadowplate"},
	})
	*g = append(*g, Node{
		Inputs:  []string{"shadowplate", "shadowblurred"},
		Filter:  "alphamerge",
		Outputs: []string{"shadowcard"},
	})
	*g = append(*g, Node{
		Inputs: []string{bgLabel, "shadowcard"},
		Filter: "overlay",
		Args: []Param{
			{Key: "x", Value: "(W-w)/2"},
			{Key: "y", Value: fmt.Sprintf("(H-h)/2+%s", formatNum(s.OffsetY))},
		},
		Outputs: []string{"bgwithshadow"},
	})
	return "bgwithshadow"
}

// gradientExprs builds per-channel geq expressions for a linear gradient
// along the requested angle, clamping the interpolation factor to [0,1],
// per spec §4.4 step 1.
func gradientExprs(grad compositor.Gradient) (r, g, b string) {
	angle := grad.Angle * math.Pi / 180
	dx, dy := math.Cos(angle), math.Sin(angle)
	t := fmt.Sprintf("max(0,min(1,((X/W)*%s+(Y/H)*%s)))", formatNum(dx), formatNum(dy))
	mix := func(from, to int) string {
		return fmt.Sprintf("(%d+(%d-%d)*%s)", from, to, from, t)
	}
	return mix(grad.From[0], grad.To[0]), mix(grad.From[1], grad.To[1]), mix(grad.From[2], grad.To[2])
}

func splitRGB(c uint32) (r, g, b uint8) {
	return uint8((c >> 16) & 0xff), uint8((c >> 8) & 0xff), uint8(c & 0xff)
}

func escapePath(p string) string {
	escaped := ""
	for _, r := range p {
		if r == ':' || r == '\\' || r == '\'' {
			escaped += "\\"
		}
		escaped += string(r)
	}
	return escaped
}
