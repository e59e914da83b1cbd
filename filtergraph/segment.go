// Package filtergraph builds ffmpeg filter-graph strings from normalized
// timeline segments and from a RenderLayout, per spec §4.4. Redesigned per
// spec.md §9 as a small AST (Node{Inputs, Filter, Args, Outputs}) rendered to ffmpeg's
// `;`-joined filter syntax, rather than the teacher's ad hoc string building
// in video/transmux.go.
package filtergraph

import "sort"

// TimelineSegment is spec.md §3's TimelineSegment value record.
type TimelineSegment struct {
	Start     float64
	End       float64
	Timescale float64
}

const minSegmentDuration = 0.01 // 10ms, per spec §3

// NormalizeSegments clamps segments to [0, duration], drops any shorter than
// 10ms, sorts by start, and substitutes a single identity segment spanning
// [0, max(duration, 0.1)] if none remain, per spec §3.
func NormalizeSegments(segments []TimelineSegment, duration float64) []TimelineSegment {
	out := make([]TimelineSegment, 0, len(segments))
	for _, s := range segments {
		start := clamp(s.Start, 0, duration)
		end := clamp(s.End, 0, duration)
		if end <= start {
			continue
		}
		if end-start < minSegmentDuration {
			continue
		}
		ts := s.Timescale
		if ts <= 0 {
			ts = 1
		}
		out = append(out, TimelineSegment{Start: start, End: end, Timescale: ts})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Start < out[j].Start })

	if len(out) == 0 {
		d := duration
		if d < 0.1 {
			d = 0.1
		}
		out = append(out, TimelineSegment{Start: 0, End: d, Timescale: 1})
	}
	return out
}

// TotalDuration sums each segment's scaled output duration, used to derive
// the trimmed timeline duration per spec §4.5 ("enforces a trimmed duration
// of max(totalSegmentDuration, 0.1)").
func TotalDuration(segments []TimelineSegment) float64 {
	var total float64
	for _, s := range segments {
		total += (s.End - s.Start) / s.Timescale
	}
	if total < 0.1 {
		return 0.1
	}
	return total
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
