package video

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/capsoftware/cap-media-server/config"
	apierrors "github.com/capsoftware/cap-media-server/errors"
	"github.com/capsoftware/cap-media-server/log"
	"github.com/capsoftware/cap-media-server/subprocess"
)

// probeStream/probeFormat model ffprobe's JSON output. Field shapes follow
// other_examples' maruel-serve-mp4 ffmpeg.go Stream/Format structs, since
// this module re-derives ffprobe parsing locally rather than depending on
// gopkg.in/vansante/go-ffprobe.v2 (an unlisted transitive dependency in the
// teacher's own go.mod — see DESIGN.md).
type probeStream struct {
	Index        int    `json:"index"`
	CodecName    string `json:"codec_name"`
	CodecType    string `json:"codec_type"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	RFrameRate   string `json:"r_frame_rate"`
	AvgFrameRate string `json:"avg_frame_rate"`
	BitRate      string `json:"bit_rate"`
	Channels     int    `json:"channels"`
	SampleRate   string `json:"sample_rate"`
}

type probeFormat struct {
	FormatName string `json:"format_name"`
	Duration   string `json:"duration"`
	Size       string `json:"size"`
	BitRate    string `json:"bit_rate"`
}

type probeResult struct {
	Streams []probeStream `json:"streams"`
	Format  probeFormat   `json:"format"`
}

// Prober invokes ffprobe under the process pool, per spec §4.2.
type Prober struct {
	Pool *subprocess.Limiter
}

func NewProber(pool *subprocess.Limiter) *Prober {
	return &Prober{Pool: pool}
}

// ProbeFile runs ffprobe against url and reduces its output to Metadata,
// respecting the probe pool and the 30s absolute timeout, per spec §4.1/§4.2.
// header carries the loopback bridge's Host override (empty when url is a
// local path or the bridge made no rewrite), per spec §4.11.
func (p *Prober) ProbeFile(ctx context.Context, requestID, url string, header http.Header) (Metadata, error) {
	release, err := subprocess.Acquire(p.Pool)
	if err != nil {
		return Metadata{}, err
	}
	defer release()

	var meta Metadata
	operation := func() error {
		m, probeErr := p.runProbe(ctx, url, header)
		if probeErr != nil {
			return probeErr
		}
		meta = m
		return nil
	}

	backOff := backoff.NewExponentialBackOff()
	backOff.InitialInterval = 500 * time.Millisecond
	backOff.MaxInterval = 2 * time.Second
	backOff.MaxElapsedTime = 0

	if err := backoff.Retry(operation, backoff.WithMaxRetries(backOff, 3)); err != nil {
		return Metadata{}, err
	}
	log.Log(requestID, "probed file", "duration", meta.Duration, "videoCodec", meta.VideoCodec)
	return meta, nil
}

func (p *Prober) runProbe(ctx context.Context, url string, header http.Header) (Metadata, error) {
	ctx, cancel := subprocess.WithAbsoluteTimeout(ctx, config.ProbeTimeout)
	defer cancel()

	args := subprocess.HeaderArgs(header)
	args = append(args, "-v", "quiet", "-print_format", "json", "-show_format", "-show_streams", "-i", url)
	h, err := subprocess.Spawn(ctx, "ffprobe", args, subprocess.Options{NeedStdout: true})
	if err != nil {
		return Metadata{}, apierrors.Wrap(apierrors.KindFFprobeError, "failed to start ffprobe", err)
	}

	raw, readErr := io.ReadAll(io.LimitReader(h.Stdout, config.ProbeStdoutMaxBytes))
	waitErr := h.Wait()
	if waitErr != nil {
		if ctx.Err() != nil {
			return Metadata{}, apierrors.New(apierrors.KindTimeout, "ffprobe timed out")
		}
		return Metadata{}, apierrors.WithDetails(apierrors.KindFFprobeError, "ffprobe exited with an error", apierrors.BoundedTail(h.StderrTail(), config.StderrTailMaxBytes))
	}
	if readErr != nil {
		return Metadata{}, apierrors.Wrap(apierrors.KindFFprobeError, "failed to read ffprobe output", readErr)
	}

	var pr probeResult
	if err := json.Unmarshal(raw, &pr); err != nil {
		return Metadata{}, apierrors.Wrap(apierrors.KindFFprobeError, "failed to parse ffprobe JSON", err)
	}
	return reduceProbeResult(pr)
}

func reduceProbeResult(pr probeResult) (Metadata, error) {
	var videoStream, audioStream *probeStream
	for i := range pr.Streams {
		s := &pr.Streams[i]
		switch s.CodecType {
		case "video":
			if videoStream == nil {
				videoStream = s
			}
		case "audio":
			if audioStream == nil {
				audioStream = s
			}
		}
	}
	if videoStream == nil {
		return Metadata{}, apierrors.New(apierrors.KindNoVideoStream, "no video stream found")
	}

	fps, err := parseFps(videoStream.RFrameRate)
	if err != nil {
		return Metadata{}, apierrors.Wrap(apierrors.KindFFprobeError, "failed to parse r_frame_rate", err)
	}
	if fps == 0 {
		fps, err = parseFps(videoStream.AvgFrameRate)
		if err != nil {
			return Metadata{}, apierrors.Wrap(apierrors.KindFFprobeError, "failed to parse avg_frame_rate", err)
		}
	}

	duration, _ := strconv.ParseFloat(pr.Format.Duration, 64)
	if duration < 0 {
		duration = 0
	}

	bitrate, _ := strconv.ParseInt(pr.Format.BitRate, 10, 64)
	size, _ := strconv.ParseInt(pr.Format.Size, 10, 64)

	meta := Metadata{
		Duration:   duration,
		Width:      videoStream.Width,
		Height:     videoStream.Height,
		FPS:        roundTo2(fps),
		VideoCodec: videoStream.CodecName,
		Bitrate:    bitrate,
		FileSize:   size,
	}

	if audioStream != nil {
		codec := audioStream.CodecName
		channels := audioStream.Channels
		meta.AudioCodec = &codec
		meta.AudioChannels = &channels
		if sr, err := strconv.Atoi(audioStream.SampleRate); err == nil {
			meta.SampleRate = &sr
		}
	}

	return meta, nil
}

// parseFps computes num/den from an ffprobe "N/D" frame-rate string, per
// spec §4.2, grounded on video/probe.go's parseFps (preserving its 0/0 and
// non-zero/0 edge-case handling).
func parseFps(framerate string) (float64, error) {
	if framerate == "" {
		return 0, nil
	}
	parts := strings.SplitN(framerate, "/", 2)
	if len(parts) < 2 {
		v, err := strconv.ParseFloat(framerate, 64)
		if err != nil {
			return 0, fmt.Errorf("parsing framerate %q: %w", framerate, err)
		}
		return v, nil
	}
	num, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("parsing framerate numerator %q: %w", framerate, err)
	}
	den, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("parsing framerate denominator %q: %w", framerate, err)
	}
	if den == 0 {
		if num == 0 {
			return 0, nil
		}
		return 0, fmt.Errorf("invalid framerate denominator 0 for %q", framerate)
	}
	return float64(num) / float64(den), nil
}

func roundTo2(v float64) float64 {
	return float64(int64(v*100+0.5)) / 100
}
