package job

// Phase is one state in the job lifecycle state machine, per spec §4.8:
//
//	queued → downloading → probing → processing → uploading
//	                                 ↘ generating_thumbnail
//	                                   ↘ complete
//	any non-terminal → error | cancelled
type Phase string

const (
	PhaseQueued              Phase = "queued"
	PhaseDownloading         Phase = "downloading"
	PhaseProbing             Phase = "probing"
	PhaseProcessing          Phase = "processing"
	PhaseUploading           Phase = "uploading"
	PhaseGeneratingThumbnail Phase = "generating_thumbnail"
	PhaseComplete            Phase = "complete"
	PhaseError               Phase = "error"
	PhaseCancelled           Phase = "cancelled"
)

// Terminal reports whether phase is one of the state machine's terminal
// states, per spec §3 ("phase ∈ {complete,error,cancelled} is terminal").
func (p Phase) Terminal() bool {
	return p == PhaseComplete || p == PhaseError || p == PhaseCancelled
}

// forwardOrder ranks the non-terminal happy-path phases so transitions can
// be checked for monotonicity, per spec §4.8 ("transitions are monotonic:
// never go backwards except to a terminal state").
var forwardOrder = map[Phase]int{
	PhaseQueued:              0,
	PhaseDownloading:         1,
	PhaseProbing:             2,
	PhaseProcessing:          3,
	PhaseUploading:           4,
	PhaseGeneratingThumbnail: 5,
	PhaseComplete:            6,
}

// canTransition reports whether moving from `from` to `to` is legal: any
// non-terminal state may move to error or cancelled, complete is reachable
// only from uploading or generating_thumbnail, and otherwise the move must
// advance strictly forward along forwardOrder.
func canTransition(from, to Phase) bool {
	if from.Terminal() {
		return false
	}
	if to == PhaseError || to == PhaseCancelled {
		return true
	}
	if to == PhaseComplete {
		return from == PhaseUploading || from == PhaseGeneratingThumbnail
	}
	fromRank, fromOK := forwardOrder[from]
	toRank, toOK := forwardOrder[to]
	if !fromOK || !toOK {
		return false
	}
	return toRank > fromRank
}
