package canvas

import (
	"context"
	"fmt"
	"io"

	"github.com/capsoftware/cap-media-server/compositor"
	"github.com/capsoftware/cap-media-server/config"
	apierrors "github.com/capsoftware/cap-media-server/errors"
	"github.com/capsoftware/cap-media-server/subprocess"
)

// Request describes one canvas-pipeline render, per spec §4.6. The decoder's
// filter graph (timeline trim/concat plus any camera vstack) is built by the
// filtergraph package and handed in as a rendered string, so this package
// owns only process orchestration, not filter-graph text.
type Request struct {
	InputPath  string
	CameraPath string // "" when there is no camera overlay

	DecoderFilterComplex string // may be empty when no filters are needed
	DecoderOutputLabel   string // e.g. "vout"; ignored if DecoderFilterComplex is empty

	Layout   compositor.RenderLayout
	FPS      float64
	Duration float64

	// AudioArgs are appended to the encoder's ffmpeg invocation verbatim,
	// e.g. {"-i", inputPath, "-map", "1:a", "-c:a", "aac"}; empty for a
	// silent output.
	AudioArgs []string

	OutputPath string
}

// Engine drives the decoder/compositor/encoder chain. CompositorBinary, when
// set, names an external worker invoked with a config JSON path (per spec
// §4.6); when empty, compositing happens in-process via the Compositor type.
type Engine struct {
	Pool             *subprocess.Pool
	CompositorBinary string
}

func New(pool *subprocess.Pool, compositorBinary string) *Engine {
	return &Engine{Pool: pool, CompositorBinary: compositorBinary}
}

// Render runs one canvas pipeline to completion, reporting progress from the
// encoder's out_time_* lines only, per spec §4.6. On any stage failing, the
// entire pipeline's subprocesses are killed; the same happens if ctx is
// cancelled (the caller's abortSignal).
func (e *Engine) Render(ctx context.Context, requestID string, req Request, onProgress func(float64)) error {
	release, err := subprocess.Acquire(e.Pool.Encode)
	if err != nil {
		return err
	}
	defer release()

	ctx, cancel := subprocess.WithAbsoluteTimeout(ctx, config.TranscodeTimeout)
	defer cancel()

	decoder, err := e.spawnDecoder(ctx, req)
	if err != nil {
		return apierrors.Wrap(apierrors.KindFFmpegError, "failed to start canvas decoder", err)
	}

	watchdog := subprocess.NewStallWatchdog(config.Clock, config.StallTimeout)
	defer watchdog.Stop()
	tracker := subprocess.NewProgressTracker(req.Duration, func(pct float64) {
		watchdog.Reset(subprocess.StallBoundFor(pct / 100))
		if onProgress != nil {
			onProgress(pct)
		}
	})

	var compositorHandle *subprocess.Handle
	encoderStdinSrc, cleanup, err := e.wireCompositor(ctx, req, decoder, &compositorHandle)
	if err != nil {
		decoder.Kill()
		return apierrors.Wrap(apierrors.KindFFmpegError, "failed to start canvas compositor", err)
	}
	defer cleanup()

	encoder, err := e.spawnEncoder(ctx, req, tracker)
	if err != nil {
		decoder.Kill()
		if compositorHandle != nil {
			compositorHandle.Kill()
		}
		return apierrors.Wrap(apierrors.KindFFmpegError, "failed to start canvas encoder", err)
	}

	pumpErrc := make(chan error, 1)
	go func() {
		_, copyErr := io.Copy(encoder.Stdin, encoderStdinSrc)
		_ = encoder.Stdin.Close()
		pumpErrc <- copyErr
	}()

	killAll := func() {
		decoder.Kill()
		if compositorHandle != nil {
			compositorHandle.Kill()
		}
		encoder.Kill()
	}

	waitc := make(chan error, 1)
	go func() { waitc <- encoder.Wait() }()

	select {
	case waitErr := <-waitc:
		if waitErr != nil {
			killAll()
		}
		<-pumpErrc
		decErr := decoder.Wait()
		var compErr error
		if compositorHandle != nil {
			compErr = compositorHandle.Wait()
		}
		if waitErr != nil {
			if ctx.Err() != nil {
				return apierrors.New(apierrors.KindTimeout, "canvas render timed out")
			}
			return apierrors.WithDetails(apierrors.KindFFmpegError, "canvas encoder exited with an error", apierrors.BoundedTail(encoder.StderrTail(), config.StderrTailMaxBytes))
		}
		if decErr != nil || compErr != nil {
			return apierrors.WithDetails(apierrors.KindFFmpegError, "canvas decoder or compositor exited with an error", apierrors.BoundedTail(decoder.StderrTail(), config.StderrTailMaxBytes))
		}
		return nil
	case <-watchdog.Fired():
		killAll()
		<-waitc
		return apierrors.New(apierrors.KindProgressStalled, "canvas render progress stalled")
	case <-ctx.Done():
		killAll()
		<-waitc
		return apierrors.New(apierrors.KindTimeout, "canvas render timed out")
	}
}

func decoderArgs(req Request) []string {
	args := []string{"-i", req.InputPath}
	if req.CameraPath != "" {
		args = append(args, "-i", req.CameraPath)
	}
	if req.DecoderFilterComplex != "" {
		args = append(args, "-filter_complex", req.DecoderFilterComplex, "-map", "["+req.DecoderOutputLabel+"]")
	}
	args = append(args,
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"-s", fmt.Sprintf("%dx%d", req.Layout.InnerWidth, req.Layout.InnerHeight),
		"-r", fmt.Sprintf("%g", req.FPS),
		"pipe:1",
	)
	return args
}

func (e *Engine) spawnDecoder(ctx context.Context, req Request) (*subprocess.Handle, error) {
	return subprocess.Spawn(ctx, "ffmpeg", decoderArgs(req), subprocess.Options{NeedStdout: true})
}

// wireCompositor starts the compositor stage (external process or in-process
// goroutine) and returns the io.Reader the encoder's stdin should copy from.
func (e *Engine) wireCompositor(ctx context.Context, req Request, decoder *subprocess.Handle, handle **subprocess.Handle) (io.Reader, func(), error) {
	if e.CompositorBinary != "" {
		cfgHandle, err := writeExternalConfig(externalConfig{Layout: req.Layout})
		if err != nil {
			return nil, func() {}, err
		}
		h, err := subprocess.Spawn(ctx, e.CompositorBinary, []string{cfgHandle.Path}, subprocess.Options{NeedStdin: true, NeedStdout: true})
		if err != nil {
			_ = cfgHandle.Cleanup()
			return nil, func() {}, err
		}
		*handle = h
		go func() {
			_, _ = io.Copy(h.Stdin, decoder.Stdout)
			_ = h.Stdin.Close()
		}()
		return h.Stdout, func() { _ = cfgHandle.Cleanup() }, nil
	}

	c, err := NewCompositor(req.Layout)
	if err != nil {
		return nil, func() {}, err
	}

	pr, pw := io.Pipe()
	go runInProcessCompositor(c, decoder.Stdout, pw)
	return pr, func() {}, nil
}

// runInProcessCompositor reads InnerWidth*InnerHeight*4-byte RGBA frames
// from src, composites each with c, and writes OutputWidth*OutputHeight*4
// bytes to dst, until src is exhausted or errors.
func runInProcessCompositor(c *Compositor, src io.Reader, dst *io.PipeWriter) {
	inSize := c.layout.InnerWidth * c.layout.InnerHeight * 4
	outSize := c.layout.OutputWidth * c.layout.OutputHeight * 4
	inBuf := make([]byte, inSize)
	outBuf := make([]byte, outSize)

	for {
		if _, err := io.ReadFull(src, inBuf); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				_ = dst.Close()
				return
			}
			_ = dst.CloseWithError(err)
			return
		}
		if err := c.Composite(outBuf, inBuf); err != nil {
			_ = dst.CloseWithError(err)
			return
		}
		if _, err := dst.Write(outBuf); err != nil {
			return
		}
	}
}

func encoderArgs(req Request) []string {
	args := []string{
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"-s", fmt.Sprintf("%dx%d", req.Layout.OutputWidth, req.Layout.OutputHeight),
		"-r", fmt.Sprintf("%g", req.FPS),
		"-i", "pipe:0",
	}
	args = append(args, req.AudioArgs...)
	args = append(args,
		"-c:v", "libx264",
		"-pix_fmt", "yuv420p",
		"-progress", "pipe:2",
		"-y", req.OutputPath,
	)
	return args
}

func (e *Engine) spawnEncoder(ctx context.Context, req Request, tracker *subprocess.ProgressTracker) (*subprocess.Handle, error) {
	return subprocess.Spawn(ctx, "ffmpeg", encoderArgs(req), subprocess.Options{NeedStdin: true, OnStderrLine: tracker.HandleLine})
}
