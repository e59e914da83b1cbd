// Package thumbnail generates a single bounded-size JPEG frame from a
// source video, per spec §4.7. Grounded directly on
// thumbnails/thumbnails.go's ffmpeg invocation, adapted from VTT-sprite
// generation (HLS segments) to the single-JPEG-frame contract here.
package thumbnail

import (
	"context"
	"io"
	"math"
	"net/http"
	"strconv"

	"github.com/capsoftware/cap-media-server/config"
	apierrors "github.com/capsoftware/cap-media-server/errors"
	"github.com/capsoftware/cap-media-server/subprocess"
)

// Request describes one thumbnail extraction, per the /video/thumbnail
// endpoint contract in spec §6.
type Request struct {
	InputPath string
	Duration  float64 // source duration in seconds, from probed metadata
	Timestamp *float64
	Width     int
	Height    int
	Quality   int // 1-100, inverse-mapped to ffmpeg's 2-31 scale

	// Header carries the loopback bridge's Host override when InputPath is
	// itself a (rewritten) URL rather than a local path, per spec §4.11.
	Header http.Header
}

// Generator runs ffmpeg thumbnail extraction under the shared audio/ffmpeg
// pool (thumbnails share the general ffmpeg-process ceiling, per spec §4.1).
type Generator struct {
	Pool *subprocess.Limiter
}

func New(pool *subprocess.Limiter) *Generator {
	return &Generator{Pool: pool}
}

// qualityToFfmpeg inversely maps a 1-100 quality score to ffmpeg's -q:v
// 2-31 scale (lower is better), per spec §4.7.
func qualityToFfmpeg(quality int) int {
	if quality < 1 {
		quality = 1
	}
	if quality > 100 {
		quality = 100
	}
	return 31 - int(math.Round(float64(quality-1)/99*29))
}

// timestampFor resolves the extraction point: min(duration/4, 1) by
// default, clamped to duration-0.1, per spec §4.7.
func timestampFor(req Request) float64 {
	t := math.Min(req.Duration/4, 1)
	if req.Timestamp != nil {
		t = *req.Timestamp
	}
	max := req.Duration - 0.1
	if max < 0 {
		max = 0
	}
	if t > max {
		t = max
	}
	if t < 0 {
		t = 0
	}
	return t
}

// GenerateThumbnail runs
// "ffmpeg -ss T -i <url> -vframes 1 -vf scale=...:decrease -q:v Q -f image2 pipe:1"
// and returns the JPEG bytes, per spec §4.7's 60s absolute timeout. Spawned
// through subprocess.Spawn (rather than a builder library) so the absolute
// timeout or caller cancellation actually kills the ffmpeg child via
// exec.CommandContext, mirroring audio.ExtractAudio's lifecycle instead of
// abandoning a still-running process when ctx.Done() fires.
func (g *Generator) GenerateThumbnail(ctx context.Context, requestID string, req Request) ([]byte, error) {
	release, err := subprocess.Acquire(g.Pool)
	if err != nil {
		return nil, err
	}
	defer release()

	ctx, cancel := subprocess.WithAbsoluteTimeout(ctx, config.ThumbnailTimeout)
	defer cancel()

	ts := timestampFor(req)
	width, height := req.Width, req.Height
	if width <= 0 {
		width = -1
	}
	if height <= 0 {
		height = -1
	}

	args := subprocess.HeaderArgs(req.Header)
	args = append(args, "-ss", strconv.FormatFloat(ts, 'f', 3, 64), "-i", req.InputPath,
		"-vframes", "1", "-vf", scaleExpr(width, height), "-q:v", strconv.Itoa(qualityToFfmpeg(req.Quality)),
		"-f", "image2", "pipe:1")
	h, err := subprocess.Spawn(ctx, "ffmpeg", args, subprocess.Options{NeedStdout: true})
	if err != nil {
		return nil, apierrors.Wrap(apierrors.KindFFmpegError, "failed to start ffmpeg", err)
	}

	out, readErr := io.ReadAll(h.Stdout)

	waitErr := h.Wait()
	if waitErr != nil {
		if ctx.Err() != nil {
			return nil, apierrors.New(apierrors.KindTimeout, "thumbnail extraction timed out")
		}
		return nil, apierrors.WithDetails(apierrors.KindFFmpegError, "ffmpeg thumbnail extraction failed", apierrors.BoundedTail(h.StderrTail(), config.StderrTailMaxBytes))
	}
	if readErr != nil {
		return nil, apierrors.Wrap(apierrors.KindFFmpegError, "failed to read ffmpeg output", readErr)
	}

	return out, nil
}

func scaleExpr(width, height int) string {
	return "scale=" + strconv.Itoa(width) + ":" + strconv.Itoa(height) + ":force_original_aspect_ratio=decrease"
}
