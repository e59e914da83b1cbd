package filtergraph

import (
	"fmt"
	"math"
)

// decomposeAtempo splits a timescale factor into a chain of atempo factors
// each within ffmpeg's [0.5, 2] constraint, per spec §4.4: halve while
// ts > 2, double while ts < 0.5, then a final atempo=remaining if it differs
// from 1 by more than 1e-6.
func decomposeAtempo(ts float64) []float64 {
	var factors []float64
	remaining := ts
	for remaining > 2 {
		factors = append(factors, 2)
		remaining /= 2
	}
	for remaining < 0.5 {
		factors = append(factors, 0.5)
		remaining *= 2
	}
	if math.Abs(remaining-1) > 1e-6 {
		factors = append(factors, remaining)
	}
	return factors
}

// BuildAudioGraph renders the audio trim/tempo/concat graph from normalized
// segments, per spec §4.4: each segment becomes
// "[k:a]atrim=start=s:end=e,asetpts=PTS-STARTPTS[,atempo=...chain][ai]",
// concatenated with "concat=n=N:v=0:a=1[aout]".
func BuildAudioGraph(segments []TimelineSegment, audioStreamIndex int) (Graph, string) {
	var g Graph
	labels := make([]string, len(segments))
	for i, seg := range segments {
		label := fmt.Sprintf("a%d", i)
		labels[i] = label
		filter := fmt.Sprintf("atrim=start=%s:end=%s,asetpts=PTS-STARTPTS", formatNum(seg.Start), formatNum(seg.End))
		for _, f := range decomposeAtempo(seg.Timescale) {
			filter += fmt.Sprintf(",atempo=%s", formatNum(f))
		}
		g = append(g, Node{
			Inputs:  []string{fmt.Sprintf("%d:a", audioStreamIndex)},
			Filter:  filter,
			Outputs: []string{label},
		})
	}
	if len(segments) == 1 {
		return g, labels[0]
	}
	g = append(g, Node{
		Inputs:  labels,
		Filter:  "concat",
		Args:    []Param{{Key: "n", Value: fmt.Sprintf("%d", len(segments))}, {Key: "v", Value: "0"}, {Key: "a", Value: "1"}},
		Outputs: []string{"aout"},
	})
	return g, "aout"
}
