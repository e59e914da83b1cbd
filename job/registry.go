package job

import (
	"context"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"

	"github.com/capsoftware/cap-media-server/cache"
	"github.com/capsoftware/cap-media-server/config"
	apierrors "github.com/capsoftware/cap-media-server/errors"
	"github.com/capsoftware/cap-media-server/log"
)

// Notifier posts a job's current Progress to its webhook URL, best-effort.
// Implemented by the clients package; kept as an interface here so job does
// not depend on the HTTP client stack.
type Notifier interface {
	Notify(ctx context.Context, webhookURL string, p Progress)
}

type noopNotifier struct{}

func (noopNotifier) Notify(context.Context, string, Progress) {}

// Registry is the in-memory JobRegistry from spec §3: map from jobId to
// Job, with TTL-based eviction and a grace window after completion.
type Registry struct {
	jobs     *cache.Cache[*Job]
	notifier Notifier
	clock    clock.Clock

	stop chan struct{}
}

func NewRegistry(notifier Notifier) *Registry {
	if notifier == nil {
		notifier = noopNotifier{}
	}
	return &Registry{
		jobs:     cache.New[*Job](),
		notifier: notifier,
		clock:    config.Clock,
		stop:     make(chan struct{}),
	}
}

// Create allocates a new job in PhaseQueued, per spec §4.8.
func (r *Registry) Create(requestID, videoID, userID, webhookURL string) *Job {
	now := r.clock.Now()
	j := &Job{
		ID:         uuid.NewString(),
		RequestID:  requestID,
		VideoID:    videoID,
		UserID:     userID,
		WebhookURL: webhookURL,
		Phase:      PhaseQueued,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	r.jobs.Store(j.ID, j)
	return j
}

func (r *Registry) Get(jobID string) (*Job, bool) {
	return r.jobs.Get(jobID)
}

// Transition moves job to phase with the given progress/message, enforcing
// monotonicity, per spec §4.8. It always updates updatedAt and fires a
// best-effort webhook. Deletion of completed jobs is scheduled after
// config.JobGraceWindow.
func (r *Registry) Transition(ctx context.Context, j *Job, phase Phase, progress float64, message string) error {
	j.mu.Lock()
	if !canTransition(j.Phase, phase) {
		from := j.Phase
		j.mu.Unlock()
		return apierrors.New(apierrors.KindInvalidState, "illegal job phase transition from "+string(from)+" to "+string(phase))
	}
	if progress > j.Progress {
		j.Progress = progress
	}
	j.Phase = phase
	j.Message = message
	j.UpdatedAt = r.clock.Now()
	snap := j.snapshotLocked()
	j.mu.Unlock()

	r.notify(ctx, j, snap)

	// Only successfully completed jobs get the 5-min grace-window deletion
	// per spec §4.8 ("successfully completed jobs are scheduled for
	// deletion after a 5-min grace"); error/cancelled jobs are left for the
	// TTL sweep, which reclaims anything idle past config.JobTTL regardless
	// of phase.
	if phase == PhaseComplete {
		r.scheduleDeletion(j.ID)
	}
	return nil
}

// Complete sets j's output URL and transitions it to PhaseComplete, per
// spec §4.8. outputURL is set before the transition's webhook notification
// fires so the final JobProgress snapshot carries it.
func (r *Registry) Complete(ctx context.Context, j *Job, outputURL string) error {
	j.mu.Lock()
	if !canTransition(j.Phase, PhaseComplete) {
		from := j.Phase
		j.mu.Unlock()
		return apierrors.New(apierrors.KindInvalidState, "illegal job phase transition from "+string(from)+" to complete")
	}
	j.OutputURL = outputURL
	j.Progress = 100
	j.Phase = PhaseComplete
	j.Message = "complete"
	j.UpdatedAt = r.clock.Now()
	snap := j.snapshotLocked()
	j.mu.Unlock()

	r.notify(ctx, j, snap)
	r.scheduleDeletion(j.ID)
	return nil
}

// UpdateProgress reports a progress tick without a phase change, per spec
// §4.8 ("webhook posting is attempted after every transition and after any
// progress update"). progress is clamped to be monotonically non-decreasing
// per spec §3.
func (r *Registry) UpdateProgress(ctx context.Context, j *Job, progress float64, message string) {
	j.mu.Lock()
	if progress > j.Progress {
		j.Progress = progress
	}
	if message != "" {
		j.Message = message
	}
	j.UpdatedAt = r.clock.Now()
	snap := j.snapshotLocked()
	j.mu.Unlock()

	r.notify(ctx, j, snap)
}

// Fail transitions job to PhaseError with the given error message, cleans
// up its temp files, per spec §7's recovery policy.
func (r *Registry) Fail(ctx context.Context, j *Job, errMsg string) {
	j.mu.Lock()
	j.Error = errMsg
	j.mu.Unlock()
	_ = r.Transition(ctx, j, PhaseError, j.Snapshot().Progress, "")
	j.cleanupTempFiles()
}

// Cancel rejects cancellation of a terminal job with INVALID_STATE;
// otherwise aborts the job's subprocess via its abort handle, transitions
// to cancelled, and cleans up, per spec §4.8.
func (r *Registry) Cancel(ctx context.Context, jobID string) error {
	j, ok := r.Get(jobID)
	if !ok {
		return apierrors.New(apierrors.KindNotFound, "unknown job id "+jobID)
	}
	j.mu.Lock()
	terminal := j.Phase.Terminal()
	j.mu.Unlock()
	if terminal {
		return apierrors.New(apierrors.KindInvalidState, "job "+jobID+" is already terminal")
	}

	j.abort()
	if err := r.Transition(ctx, j, PhaseCancelled, j.Snapshot().Progress, "cancelled"); err != nil {
		return err
	}
	j.cleanupTempFiles()
	return nil
}

func (j *Job) snapshotLocked() Progress {
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

func (r *Registry) notify(ctx context.Context, j *Job, snap Progress) {
	if j.WebhookURL == "" {
		return
	}
	go r.notifier.Notify(ctx, j.WebhookURL, snap)
}

func (r *Registry) scheduleDeletion(jobID string) {
	go func() {
		select {
		case <-r.clock.After(config.JobGraceWindow):
			r.jobs.Remove("", jobID)
		case <-r.stop:
		}
	}()
}

// List returns a Progress summary of every job currently registered, per
// the /video/status endpoint contract in spec §6.
func (r *Registry) List() []Progress {
	var out []Progress
	r.jobs.Range(func(_ string, j *Job) {
		out = append(out, j.Snapshot())
	})
	return out
}

// StartTTLSweep runs a background loop evicting jobs idle for more than
// config.JobTTL, every config.TTLSweepInterval, per spec §4.8. Call Stop to
// end it.
func (r *Registry) StartTTLSweep(requestID string) {
	go func() {
		ticker := r.clock.Ticker(config.TTLSweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				r.sweep(requestID)
			case <-r.stop:
				return
			}
		}
	}()
}

func (r *Registry) sweep(requestID string) {
	now := r.clock.Now()
	var stale []*Job
	r.jobs.Range(func(_ string, j *Job) {
		j.mu.Lock()
		idle := now.Sub(j.UpdatedAt)
		j.mu.Unlock()
		if idle > config.JobTTL {
			stale = append(stale, j)
		}
	})
	for _, j := range stale {
		j.abort()
		j.cleanupTempFiles()
		r.jobs.Remove(requestID, j.ID)
		log.Log(requestID, "evicted stale job", "jobId", j.ID, "phase", j.Phase)
	}
}

// Stop halts the TTL sweep and any pending grace-window deletions.
func (r *Registry) Stop() {
	close(r.stop)
}
