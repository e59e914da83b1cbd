// Package job implements the in-memory job registry, phase transitions, and
// TTL/grace-window eviction, per spec §4.8. Grounded on cache/cache.go's
// generic Cache[T] pattern (composed here, not replaced, since the generic
// cache has no notion of TTL or deletion scheduling on its own).
package job

import (
	"context"
	"sync"
	"time"

	"github.com/capsoftware/cap-media-server/tempfile"
)

// Job is spec.md §3's Job record.
type Job struct {
	mu sync.Mutex

	ID        string
	RequestID string
	VideoID   string
	UserID    string
	WebhookURL string

	Phase    Phase
	Progress float64
	Message  string
	Error    string
	Metadata map[string]interface{}
	OutputURL string

	CreatedAt time.Time
	UpdatedAt time.Time

	InputTempFile  *tempfile.Handle
	OutputTempFile *tempfile.Handle

	cancel context.CancelFunc
}

// Progress is the wire-level JobProgress snapshot, used both for the status
// endpoint (§6) and the webhook payload (§6).
type Progress struct {
	JobID     string                 `json:"jobId"`
	VideoID   string                 `json:"videoId"`
	Phase     Phase                  `json:"phase"`
	Progress  float64                `json:"progress"`
	Message   string                 `json:"message,omitempty"`
	Error     string                 `json:"error,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	OutputURL string                 `json:"outputUrl,omitempty"`
}

// Snapshot returns a Progress view of the job's current state.
func (j *Job) Snapshot() Progress {
	j.mu.Lock()
	defer j.mu.Unlock()
	return Progress{
		JobID:     j.ID,
		VideoID:   j.VideoID,
		Phase:     j.Phase,
		Progress:  j.Progress,
		Message:   j.Message,
		Error:     j.Error,
		Metadata:  j.Metadata,
		OutputURL: j.OutputURL,
	}
}

// SetAbortHandle wires the cancellation function the registry's Cancel
// calls into, per spec §3's "abortHandle".
func (j *Job) SetAbortHandle(cancel context.CancelFunc) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.cancel = cancel
}

func (j *Job) abort() {
	j.mu.Lock()
	cancel := j.cancel
	j.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// cleanupTempFiles releases both temp-file handles owned by the job,
// tolerating either being unset, per spec §3's ownership-transfer rule.
func (j *Job) cleanupTempFiles() {
	j.mu.Lock()
	in, out := j.InputTempFile, j.OutputTempFile
	j.mu.Unlock()
	if in != nil {
		_ = in.Cleanup()
	}
	if out != nil {
		_ = out.Cleanup()
	}
}
