// Package audio implements the audio subsystem: presence checks and
// extraction, per spec §4.3.
package audio

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/capsoftware/cap-media-server/config"
	apierrors "github.com/capsoftware/cap-media-server/errors"
	"github.com/capsoftware/cap-media-server/subprocess"
)

// Subsystem runs audio operations under the shared audio pool.
type Subsystem struct {
	Pool *subprocess.Limiter
}

func New(pool *subprocess.Limiter) *Subsystem {
	return &Subsystem{Pool: pool}
}

// overflowBuffer accumulates writes up to max bytes and then flags overflow
// instead of truncating silently, since exceeding it is a hard failure
// (AUDIO_TOO_LARGE), unlike subprocess's bounded stderr tail which discards.
type overflowBuffer struct {
	buf      bytes.Buffer
	max      int
	overflow bool
}

func (b *overflowBuffer) Write(p []byte) (int, error) {
	if b.overflow {
		return len(p), nil
	}
	if b.buf.Len()+len(p) > b.max {
		b.overflow = true
		return len(p), nil
	}
	return b.buf.Write(p)
}

// CheckHasAudioTrack runs ffmpeg against url with no output and inspects
// its stderr banner for an "Audio:" stream line, per spec §4.3. header
// carries the loopback bridge's Host override, per spec §4.11.
func (s *Subsystem) CheckHasAudioTrack(ctx context.Context, requestID, url string, header http.Header) (bool, error) {
	release, err := subprocess.Acquire(s.Pool)
	if err != nil {
		return false, err
	}
	defer release()

	ctx, cancel := subprocess.WithAbsoluteTimeout(ctx, config.ProbeTimeout)
	defer cancel()

	args := subprocess.HeaderArgs(header)
	args = append(args, "-i", url, "-hide_banner")
	h, err := subprocess.Spawn(ctx, "ffmpeg", args, subprocess.Options{NeedStdout: false})
	if err != nil {
		return false, apierrors.Wrap(apierrors.KindFFmpegError, "failed to start ffmpeg", err)
	}
	// ffmpeg exits non-zero here since no output is given; only the banner
	// printed to stderr before that matters.
	_ = h.Wait()
	return strings.Contains(h.StderrTail(), "Audio:"), nil
}

// ExtractAudio produces an MP3 at 128k from url's audio track, bounded to
// config.AudioBufferMaxBytes, per spec §4.3. Spawned through
// subprocess.Spawn (rather than the u2takey/ffmpeg-go builder) so a timeout
// or cancellation actually kills the ffmpeg child via exec.CommandContext,
// mirroring transcode.Engine.runOnce's lifecycle instead of abandoning a
// still-running process when ctx.Done() fires.
func (s *Subsystem) ExtractAudio(ctx context.Context, requestID, url string, header http.Header) ([]byte, error) {
	release, err := subprocess.Acquire(s.Pool)
	if err != nil {
		return nil, err
	}
	defer release()

	ctx, cancel := subprocess.WithAbsoluteTimeout(ctx, config.AudioExtractTimeout)
	defer cancel()

	args := subprocess.HeaderArgs(header)
	args = append(args, "-i", url, "-vn", "-acodec", "libmp3lame", "-b:a", "128k", "-f", "mp3", "pipe:1")
	h, err := subprocess.Spawn(ctx, "ffmpeg", args, subprocess.Options{NeedStdout: true})
	if err != nil {
		return nil, apierrors.Wrap(apierrors.KindFFmpegError, "failed to start ffmpeg", err)
	}

	out := &overflowBuffer{max: config.AudioBufferMaxBytes}
	_, readErr := io.Copy(out, h.Stdout)

	waitErr := h.Wait()
	if waitErr != nil {
		if ctx.Err() != nil {
			return nil, apierrors.New(apierrors.KindTimeout, "audio extraction timed out")
		}
		return nil, apierrors.WithDetails(apierrors.KindFFmpegError, "ffmpeg audio extraction failed", apierrors.BoundedTail(h.StderrTail(), config.StderrTailMaxBytes))
	}
	if readErr != nil {
		return nil, apierrors.Wrap(apierrors.KindFFmpegError, "failed to read ffmpeg output", readErr)
	}

	if out.overflow {
		return nil, apierrors.New(apierrors.KindAudioTooLarge, fmt.Sprintf("extracted audio exceeds %d bytes", config.AudioBufferMaxBytes))
	}
	return out.buf.Bytes(), nil
}

// streamChunkQueueDepth bounds the producer/consumer queue used by
// ExtractAudioStream to a small high-water mark, per spec §4.3.
const streamChunkQueueDepth = 4

// Stream wraps a running ffmpeg audio extraction as an io.Reader. Cancel,
// downstream abort, subprocess exit, and the absolute timeout all converge
// on the same idempotent Close path.
type Stream struct {
	handle  *subprocess.Handle
	release func()
	cancel  context.CancelFunc

	chunks  chan []byte
	errc    chan error
	pending []byte

	closed chan struct{}
	once   sync.Once

	// reaped closes once handle.Wait() has returned, mirroring
	// transcode.Engine.runOnce's waitc drain on every exit path so the
	// ffmpeg child is never left unreaped, per spec §8 scenario 3.
	reaped chan struct{}
}

// ExtractAudioStream starts ffmpeg audio extraction and returns a Stream the
// caller reads from, plus the idempotent cleanup the caller must defer.
func (s *Subsystem) ExtractAudioStream(ctx context.Context, requestID, url string, header http.Header) (*Stream, error) {
	release, err := subprocess.Acquire(s.Pool)
	if err != nil {
		return nil, err
	}

	ctx, cancel := subprocess.WithAbsoluteTimeout(ctx, config.AudioExtractTimeout)

	args := subprocess.HeaderArgs(header)
	args = append(args, "-i", url, "-vn", "-acodec", "libmp3lame", "-b:a", "128k", "-f", "mp3", "pipe:1")
	h, err := subprocess.Spawn(ctx, "ffmpeg", args, subprocess.Options{NeedStdout: true})
	if err != nil {
		cancel()
		release()
		return nil, apierrors.Wrap(apierrors.KindFFmpegError, "failed to start ffmpeg", err)
	}

	st := &Stream{
		handle:  h,
		release: release,
		cancel:  cancel,
		chunks:  make(chan []byte, streamChunkQueueDepth),
		errc:    make(chan error, 1),
		closed:  make(chan struct{}),
		reaped:  make(chan struct{}),
	}
	go func() {
		_ = st.handle.Wait()
		close(st.reaped)
	}()
	go st.pump()
	return st, nil
}

func (st *Stream) pump() {
	buf := make([]byte, 32*1024)
	for {
		n, err := st.handle.Stdout.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			select {
			case st.chunks <- chunk:
			case <-st.closed:
				return
			}
		}
		if err != nil {
			if err != io.EOF {
				select {
				case st.errc <- err:
				default:
				}
			}
			close(st.chunks)
			// Natural completion: stdout EOFs once ffmpeg exits, but the
			// exit status itself is only reaped once handle.Wait() (above)
			// returns. Block until that happens so the child never lingers
			// as a zombie after the caller finishes reading.
			<-st.reaped
			return
		}
	}
}

// Read implements io.Reader over the underlying ffmpeg stdout pipe.
func (st *Stream) Read(p []byte) (int, error) {
	if len(st.pending) == 0 {
		chunk, ok := <-st.chunks
		if !ok {
			select {
			case err := <-st.errc:
				return 0, err
			default:
				return 0, io.EOF
			}
		}
		st.pending = chunk
	}
	n := copy(p, st.pending)
	st.pending = st.pending[n:]
	return n, nil
}

// Close releases the reader lock, kills the child if still running, waits
// for it to be reaped, and then decrements the pool counter. Safe to call
// from multiple goroutines and multiple times.
func (st *Stream) Close() error {
	st.once.Do(func() {
		close(st.closed)
		if st.handle != nil {
			st.handle.Kill()
			<-st.reaped
		}
		if st.cancel != nil {
			st.cancel()
		}
		if st.release != nil {
			st.release()
		}
	})
	return nil
}
