// Package transcode runs single-process ffmpeg encodes with progress
// parsing and stall detection, per spec §4.5. Grounded on
// pipeline/ffmpeg.go's exec.Command invocation shape and transcode.go's
// struct-request orchestration shape (without its retries: each encode runs
// once), adapted from the teacher's HLS/VOD transcode model to a single-file
// in/single-file-out model driving ffmpeg directly.
package transcode

import (
	"context"
	"fmt"

	"github.com/capsoftware/cap-media-server/compositor"
	"github.com/capsoftware/cap-media-server/config"
	apierrors "github.com/capsoftware/cap-media-server/errors"
	"github.com/capsoftware/cap-media-server/filtergraph"
	"github.com/capsoftware/cap-media-server/subprocess"
	"github.com/capsoftware/cap-media-server/video"
)

// Request is the simple processVideo request from spec §4.5.
type Request struct {
	InputPath  string
	OutputPath string
	Source     video.Metadata

	MaxWidth  int
	MaxHeight int
	CRF       int
	Preset    string
	RemuxOnly bool
}

const (
	defaultCRF    = 23
	defaultPreset = "medium"
)

type decision struct {
	reencodeVideo bool
	reencodeAudio bool
}

// decide determines which streams need re-encoding, per spec §4.5: video
// needs re-encode if the source exceeds maxWidth/maxHeight or its codec
// isn't h264; audio needs re-encode if present and its codec isn't aac;
// remuxOnly forces both false.
func decide(req Request) decision {
	if req.RemuxOnly {
		return decision{}
	}
	d := decision{}
	if req.Source.Width > req.MaxWidth || req.Source.Height > req.MaxHeight || req.Source.VideoCodec != "h264" {
		d.reencodeVideo = true
	}
	if req.Source.HasAudio() && *req.Source.AudioCodec != "aac" {
		d.reencodeAudio = true
	}
	return d
}

func crfOrDefault(crf int) int {
	if crf <= 0 {
		return defaultCRF
	}
	return crf
}

func presetOrDefault(preset string) string {
	if preset == "" {
		return defaultPreset
	}
	return preset
}

// scaleFilter preserves aspect ratio within maxWidth/maxHeight, then forces
// even dimensions via scale=trunc(iw/2)*2:trunc(ih/2)*2, per spec §4.5.
func scaleFilter(maxWidth, maxHeight int) string {
	return fmt.Sprintf("scale='min(%d,iw)':'min(%d,ih)':force_original_aspect_ratio=decrease,scale=trunc(iw/2)*2:trunc(ih/2)*2", maxWidth, maxHeight)
}

// Engine runs ffmpeg transcodes under the shared encode pool.
type Engine struct {
	Pool *subprocess.Pool
}

func New(pool *subprocess.Pool) *Engine {
	return &Engine{Pool: pool}
}

// ProcessVideo re-encodes (or remuxes) req.InputPath to req.OutputPath per
// spec §4.5's simple processVideo.
func (e *Engine) ProcessVideo(ctx context.Context, requestID string, req Request, onProgress func(float64)) error {
	d := decide(req)
	args := []string{"-i", req.InputPath}
	if d.reencodeVideo {
		args = append(args, "-vf", scaleFilter(req.MaxWidth, req.MaxHeight), "-c:v", "libx264", "-preset", presetOrDefault(req.Preset), "-crf", fmt.Sprintf("%d", crfOrDefault(req.CRF)))
	} else {
		args = append(args, "-c:v", "copy")
	}
	if req.Source.HasAudio() {
		if d.reencodeAudio {
			args = append(args, "-c:a", "aac")
		} else {
			args = append(args, "-c:a", "copy")
		}
	}
	args = append(args, "-movflags", "+faststart", "-progress", "pipe:2", "-y", req.OutputPath)

	return e.run(ctx, requestID, args, req.Source.Duration, onProgress)
}

// ProcessVideoWithTimeline prepends the timeline filter graph and, if
// applicable, the layout overlay graph, enforcing a trimmed duration of
// max(totalSegmentDuration, 0.1), per spec §4.5.
func (e *Engine) ProcessVideoWithTimeline(ctx context.Context, requestID string, req Request, segments []filtergraph.TimelineSegment, layout compositor.RenderLayout, onProgress func(float64)) error {
	normalized := filtergraph.NormalizeSegments(segments, req.Source.Duration)
	duration := filtergraph.TotalDuration(normalized)

	var graph filtergraph.Graph
	vGraph, vLabel := filtergraph.BuildVideoGraph(normalized)
	graph = append(graph, vGraph...)

	var audioLabel string
	if req.Source.HasAudio() {
		aGraph, lbl := filtergraph.BuildAudioGraph(normalized, 0)
		graph = append(graph, aGraph...)
		audioLabel = lbl
	}

	layoutGraph, finalVideoLabel := filtergraph.BuildLayoutGraph(layout, vLabel, duration)
	graph = append(graph, layoutGraph...)

	args := []string{"-i", req.InputPath, "-filter_complex", graph.String(), "-map", "[" + finalVideoLabel + "]"}
	if audioLabel != "" {
		args = append(args, "-map", "["+audioLabel+"]", "-c:a", "aac")
	}
	args = append(args, "-c:v", "libx264", "-preset", presetOrDefault(req.Preset), "-crf", fmt.Sprintf("%d", crfOrDefault(req.CRF)))
	args = append(args, "-movflags", "+faststart", "-progress", "pipe:2", "-y", req.OutputPath)

	return e.run(ctx, requestID, args, duration, onProgress)
}

// run spawns ffmpeg under the encode pool with the absolute 30-min timeout
// and the progress-stall watchdog, per spec §4.5 ("both enforce the
// absolute 30-min timeout and the progress-stall watchdog; on stall the
// error message identifies the stall rather than the exit code").
func (e *Engine) run(ctx context.Context, requestID string, args []string, durationSeconds float64, onProgress func(float64)) error {
	release, err := subprocess.Acquire(e.Pool.Encode)
	if err != nil {
		return err
	}
	defer release()

	ctx, cancel := subprocess.WithAbsoluteTimeout(ctx, config.TranscodeTimeout)
	defer cancel()

	watchdog := subprocess.NewStallWatchdog(config.Clock, config.StallTimeout)
	defer watchdog.Stop()

	tracker := subprocess.NewProgressTracker(durationSeconds, func(pct float64) {
		watchdog.Reset(subprocess.StallBoundFor(pct / 100))
		if onProgress != nil {
			onProgress(pct)
		}
	})

	// No retries here: spec.md's recovery policy is explicit that failed
	// background jobs get no automatic retries.
	return e.runOnce(ctx, args, tracker, watchdog)
}

func (e *Engine) runOnce(ctx context.Context, args []string, tracker *subprocess.ProgressTracker, watchdog *subprocess.StallWatchdog) error {
	h, err := subprocess.Spawn(ctx, "ffmpeg", args, subprocess.Options{OnStderrLine: tracker.HandleLine})
	if err != nil {
		return apierrors.Wrap(apierrors.KindFFmpegError, "failed to start ffmpeg", err)
	}

	waitc := make(chan error, 1)
	go func() { waitc <- h.Wait() }()

	select {
	case waitErr := <-waitc:
		if waitErr != nil {
			if ctx.Err() != nil {
				return apierrors.New(apierrors.KindTimeout, "transcode timed out")
			}
			return apierrors.WithDetails(apierrors.KindFFmpegError, "ffmpeg exited with an error", apierrors.BoundedTail(h.StderrTail(), config.StderrTailMaxBytes))
		}
		return nil
	case <-watchdog.Fired():
		h.Kill()
		<-waitc
		return apierrors.New(apierrors.KindProgressStalled, "transcode progress stalled")
	case <-ctx.Done():
		h.Kill()
		<-waitc
		return apierrors.New(apierrors.KindTimeout, "transcode timed out")
	}
}
