package filtergraph

import "fmt"

// BuildVideoGraph renders the video trim/concat graph from normalized
// segments, per spec §4.4: each segment becomes
// "[0:v]trim=start=s:end=e,setpts=(PTS-STARTPTS)/ts[vi]", concatenated with
// "concat=n=N:v=1:a=0[vout]".
func BuildVideoGraph(segments []TimelineSegment) (Graph, string) {
	var g Graph
	labels := make([]string, len(segments))
	for i, seg := range segments {
		label := fmt.Sprintf("v%d", i)
		labels[i] = label
		g = append(g, Node{
			Inputs: []string{"0:v"},
			Filter: fmt.Sprintf("trim=start=%s:end=%s,setpts=(PTS-STARTPTS)/%s", formatNum(seg.Start), formatNum(seg.End), formatNum(seg.Timescale)),
			Outputs: []string{label},
		})
	}
	if len(segments) == 1 {
		return g, labels[0]
	}
	g = append(g, Node{
		Inputs:  labels,
		Filter:  "concat",
		Args:    []Param{{Key: "n", Value: fmt.Sprintf("%d", len(segments))}, {Key: "v", Value: "1"}, {Key: "a", Value: "0"}},
		Outputs: []string{"vout"},
	})
	return g, "vout"
}
