package handlers

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/julienschmidt/httprouter"

	"github.com/capsoftware/cap-media-server/canvas"
	"github.com/capsoftware/cap-media-server/compositor"
	apierrors "github.com/capsoftware/cap-media-server/errors"
	"github.com/capsoftware/cap-media-server/filtergraph"
	"github.com/capsoftware/cap-media-server/job"
	"github.com/capsoftware/cap-media-server/log"
	"github.com/capsoftware/cap-media-server/renderspec"
	"github.com/capsoftware/cap-media-server/tempfile"
	"github.com/capsoftware/cap-media-server/thumbnail"
	"github.com/capsoftware/cap-media-server/transcode"
	"github.com/capsoftware/cap-media-server/video"
)

type videoProcessRequest struct {
	VideoID               string `json:"videoId"`
	UserID                string `json:"userId"`
	VideoURL              string `json:"videoUrl"`
	OutputPresignedURL    string `json:"outputPresignedUrl"`
	ThumbnailPresignedURL string `json:"thumbnailPresignedUrl"`
	WebhookURL            string `json:"webhookUrl"`
	MaxWidth              int    `json:"maxWidth"`
	MaxHeight             int    `json:"maxHeight"`
	CRF                   int    `json:"crf"`
	Preset                string `json:"preset"`
	RemuxOnly             bool   `json:"remuxOnly"`
}

type timelineSegmentDTO struct {
	Start     float64 `json:"start"`
	End       float64 `json:"end"`
	Timescale float64 `json:"timescale"`
}

type timelineDTO struct {
	Segments []timelineSegmentDTO `json:"segments"`
}

type gradientDTO struct {
	From  [3]int  `json:"from"`
	To    [3]int  `json:"to"`
	Angle float64 `json:"angle"`
}

type projectConfigDTO struct {
	Timeline timelineDTO `json:"timeline"`
	CameraURL string `json:"cameraUrl"`

	OutputWidth  int     `json:"outputWidth"`
	OutputHeight int     `json:"outputHeight"`
	PaddingRatio float64 `json:"paddingRatio"`
	BorderRadius float64 `json:"borderRadius"`

	ShadowEnabled bool    `json:"shadowEnabled"`
	ShadowOffsetY float64 `json:"shadowOffsetY"`
	ShadowBlur    float64 `json:"shadowBlur"`
	ShadowSpread  float64 `json:"shadowSpread"`
	ShadowOpacity float64 `json:"shadowOpacity"`

	BackgroundColor      uint32       `json:"backgroundColor"`
	BackgroundColorAlpha float64      `json:"backgroundColorAlpha"`
	BackgroundGradient   *gradientDTO `json:"backgroundGradient"`
	BackgroundImageURL   string       `json:"backgroundImageUrl"`
}

type videoEditorProcessRequest struct {
	VideoID            string           `json:"videoId"`
	UserID             string           `json:"userId"`
	VideoURL           string           `json:"videoUrl"`
	OutputPresignedURL string           `json:"outputPresignedUrl"`
	WebhookURL         string           `json:"webhookUrl"`
	ProjectConfig      projectConfigDTO `json:"projectConfig"`
}

type jobQueuedResponse struct {
	JobID  string `json:"jobId"`
	Status string `json:"status"`
}

// VideoProcess serves POST /video/process per spec §6: validates, creates a
// queued job, and returns immediately while a background goroutine drives
// the job through download→probe→process→upload.
func (c *Collection) VideoProcess() httprouter.Handle {
	return func(w http.ResponseWriter, req *http.Request, _ httprouter.Params) {
		requestID := newRequestID()
		log.AddContext(requestID, "endpoint", "video/process")

		var body videoProcessRequest
		if !decodeAndValidate(w, requestID, "videoProcess", req, &body) {
			return
		}

		j := c.Registry.Create(requestID, body.VideoID, body.UserID, body.WebhookURL)
		go c.runSimpleProcessJob(requestID, j, body)

		writeJSON(w, http.StatusOK, jobQueuedResponse{JobID: j.ID, Status: "queued"})
	}
}

// VideoEditorProcess serves POST /video/editor/process per spec §6: same
// queued-job shape as VideoProcess, but drives the timeline/layout pipeline
// (ffmpeg filter graph, or the canvas three-process pipeline when
// CAP_CANVAS_RENDERER is set).
func (c *Collection) VideoEditorProcess() httprouter.Handle {
	return func(w http.ResponseWriter, req *http.Request, _ httprouter.Params) {
		requestID := newRequestID()
		log.AddContext(requestID, "endpoint", "video/editor/process")

		var body videoEditorProcessRequest
		if !decodeAndValidate(w, requestID, "videoEditorProcess", req, &body) {
			return
		}

		j := c.Registry.Create(requestID, body.VideoID, body.UserID, body.WebhookURL)
		go c.runEditorProcessJob(requestID, j, body)

		writeJSON(w, http.StatusOK, jobQueuedResponse{JobID: j.ID, Status: "queued"})
	}
}

// VideoProcessCancel and VideoEditorProcessCancel share one implementation:
// cancellation doesn't care which pipeline a job is running.
func (c *Collection) VideoProcessCancel() httprouter.Handle {
	return c.cancelJob()
}

func (c *Collection) VideoEditorProcessCancel() httprouter.Handle {
	return c.cancelJob()
}

func (c *Collection) cancelJob() httprouter.Handle {
	return func(w http.ResponseWriter, req *http.Request, params httprouter.Params) {
		requestID := newRequestID()
		jobID := params.ByName("jobId")
		if err := c.Registry.Cancel(req.Context(), jobID); err != nil {
			writeEndpointError(w, requestID, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"success": true})
	}
}

// downloadToTemp pulls url into a new scratch file, per spec §4.8's
// "downloading" phase. header carries the loopback bridge's Host override
// for url, per spec §4.11.
func (c *Collection) downloadToTemp(ctx context.Context, requestID, url, ext string, header http.Header) (*tempfile.Handle, error) {
	handle, err := tempfile.New(ext)
	if err != nil {
		return nil, apierrors.Wrap(apierrors.KindInvalidState, "failed to allocate scratch file", err)
	}

	body, err := c.Transfer.DownloadFromURL(ctx, requestID, url, header)
	if err != nil {
		_ = handle.Cleanup()
		return nil, err
	}
	defer body.Close()

	out, err := os.Create(handle.Path)
	if err != nil {
		_ = handle.Cleanup()
		return nil, apierrors.Wrap(apierrors.KindInvalidState, "failed to create scratch file", err)
	}
	defer out.Close()

	if _, err := out.ReadFrom(body); err != nil {
		_ = handle.Cleanup()
		return nil, apierrors.Wrap(apierrors.KindUploadFailed, "failed to download source", err)
	}
	return handle, nil
}

func (c *Collection) uploadResult(ctx context.Context, requestID, presignedURL string, handle *tempfile.Handle) error {
	f, err := os.Open(handle.Path)
	if err != nil {
		return apierrors.Wrap(apierrors.KindUploadFailed, "failed to open render output", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return apierrors.Wrap(apierrors.KindUploadFailed, "failed to stat render output", err)
	}

	rewritten, header, err := c.Loopback.RewriteString(presignedURL)
	if err != nil {
		return apierrors.Wrap(apierrors.KindInvalidRequest, "invalid outputPresignedUrl", err)
	}

	return c.Transfer.UploadFileToS3(ctx, requestID, rewritten, "video/mp4", info.Size(), f, header)
}

// runSimpleProcessJob backs POST /video/process, per spec §4.5/§4.8.
func (c *Collection) runSimpleProcessJob(requestID string, j *job.Job, body videoProcessRequest) {
	ctx, cancel := context.WithCancel(context.Background())
	j.SetAbortHandle(cancel)
	defer cancel()

	videoURL, videoHeader, err := c.Loopback.RewriteString(body.VideoURL)
	if err != nil {
		c.Registry.Fail(ctx, j, err.Error())
		return
	}

	_ = c.Registry.Transition(ctx, j, job.PhaseDownloading, 0, "downloading source")
	input, err := c.downloadToTemp(ctx, requestID, videoURL, ".mp4", videoHeader)
	if err != nil {
		c.Registry.Fail(ctx, j, err.Error())
		return
	}
	j.InputTempFile = input

	_ = c.Registry.Transition(ctx, j, job.PhaseProbing, 10, "probing source")
	meta, err := c.Prober.ProbeFile(ctx, requestID, input.Path, nil)
	if err != nil {
		c.Registry.Fail(ctx, j, err.Error())
		return
	}

	output, err := tempfile.New(".mp4")
	if err != nil {
		c.Registry.Fail(ctx, j, err.Error())
		return
	}
	j.OutputTempFile = output

	_ = c.Registry.Transition(ctx, j, job.PhaseProcessing, 15, "transcoding")
	maxWidth, maxHeight := body.MaxWidth, body.MaxHeight
	if maxWidth <= 0 {
		maxWidth = meta.Width
	}
	if maxHeight <= 0 {
		maxHeight = meta.Height
	}

	err = c.Transcode.ProcessVideo(ctx, requestID, transcode.Request{
		InputPath:  input.Path,
		OutputPath: output.Path,
		Source:     meta,
		MaxWidth:   maxWidth,
		MaxHeight:  maxHeight,
		CRF:        body.CRF,
		Preset:     body.Preset,
		RemuxOnly:  body.RemuxOnly,
	}, func(pct float64) {
		c.Registry.UpdateProgress(ctx, j, 15+pct*0.65, "transcoding")
	})
	if err != nil {
		c.Registry.Fail(ctx, j, err.Error())
		return
	}

	c.finishProcessJob(ctx, requestID, j, output, body.OutputPresignedURL, body.ThumbnailPresignedURL, meta)
}

// runEditorProcessJob backs POST /video/editor/process, per spec §4.4/§4.6/§4.8.
func (c *Collection) runEditorProcessJob(requestID string, j *job.Job, body videoEditorProcessRequest) {
	ctx, cancel := context.WithCancel(context.Background())
	j.SetAbortHandle(cancel)
	defer cancel()

	videoURL, videoHeader, err := c.Loopback.RewriteString(body.VideoURL)
	if err != nil {
		c.Registry.Fail(ctx, j, err.Error())
		return
	}

	_ = c.Registry.Transition(ctx, j, job.PhaseDownloading, 0, "downloading source")
	input, err := c.downloadToTemp(ctx, requestID, videoURL, ".mp4", videoHeader)
	if err != nil {
		c.Registry.Fail(ctx, j, err.Error())
		return
	}
	j.InputTempFile = input

	var cameraPath string
	if body.ProjectConfig.CameraURL != "" {
		cameraURL, cameraHeader, err := c.Loopback.RewriteString(body.ProjectConfig.CameraURL)
		if err != nil {
			c.Registry.Fail(ctx, j, err.Error())
			return
		}
		cameraHandle, err := c.downloadToTemp(ctx, requestID, cameraURL, ".mp4", cameraHeader)
		if err != nil {
			c.Registry.Fail(ctx, j, err.Error())
			return
		}
		cameraPath = cameraHandle.Path
		defer cameraHandle.Cleanup()
	}

	_ = c.Registry.Transition(ctx, j, job.PhaseProbing, 10, "probing source")
	meta, err := c.Prober.ProbeFile(ctx, requestID, input.Path, nil)
	if err != nil {
		c.Registry.Fail(ctx, j, err.Error())
		return
	}

	segments := make([]filtergraph.TimelineSegment, len(body.ProjectConfig.Timeline.Segments))
	for i, s := range body.ProjectConfig.Timeline.Segments {
		segments[i] = filtergraph.TimelineSegment{Start: s.Start, End: s.End, Timescale: s.Timescale}
	}
	normalized := filtergraph.NormalizeSegments(segments, meta.Duration)
	duration := filtergraph.TotalDuration(normalized)

	backgroundImagePath, err := c.resolveBackgroundImage(ctx, requestID, body.ProjectConfig.BackgroundImageURL)
	if err != nil {
		// Degrades to solid color on failure, per spec §4.5.
		log.LogError(requestID, "background image download failed, degrading to solid color", err)
		backgroundImagePath = ""
	} else if backgroundImagePath != "" {
		defer os.Remove(backgroundImagePath)
	}

	cfg := renderspec.ProjectConfig{
		OutputWidth:          body.ProjectConfig.OutputWidth,
		OutputHeight:         body.ProjectConfig.OutputHeight,
		PaddingRatio:         body.ProjectConfig.PaddingRatio,
		BorderRadius:         body.ProjectConfig.BorderRadius,
		ShadowEnabled:        body.ProjectConfig.ShadowEnabled,
		ShadowOffsetY:        body.ProjectConfig.ShadowOffsetY,
		ShadowBlur:           body.ProjectConfig.ShadowBlur,
		ShadowSpread:         body.ProjectConfig.ShadowSpread,
		ShadowOpacity:        body.ProjectConfig.ShadowOpacity,
		BackgroundColor:      body.ProjectConfig.BackgroundColor,
		BackgroundColorAlpha: body.ProjectConfig.BackgroundColorAlpha,
		BackgroundImagePath:  backgroundImagePath,
	}
	if body.ProjectConfig.BackgroundGradient != nil {
		cfg.BackgroundGradient = &compositor.Gradient{
			From:  body.ProjectConfig.BackgroundGradient.From,
			To:    body.ProjectConfig.BackgroundGradient.To,
			Angle: body.ProjectConfig.BackgroundGradient.Angle,
		}
	}
	if cfg.OutputWidth <= 0 {
		cfg.OutputWidth = meta.Width
	}
	if cfg.OutputHeight <= 0 {
		cfg.OutputHeight = meta.Height
	}
	layout := renderspec.Compute(cfg, meta)

	output, err := tempfile.New(".mp4")
	if err != nil {
		c.Registry.Fail(ctx, j, err.Error())
		return
	}
	j.OutputTempFile = output

	_ = c.Registry.Transition(ctx, j, job.PhaseProcessing, 15, "rendering")
	onProgress := func(pct float64) {
		c.Registry.UpdateProgress(ctx, j, 15+pct*0.65, "rendering")
	}

	if c.canvasEnabled() {
		err = c.renderWithCanvas(ctx, requestID, input.Path, cameraPath, output.Path, normalized, layout, meta, duration, onProgress)
	} else {
		err = c.Transcode.ProcessVideoWithTimeline(ctx, requestID, transcode.Request{
			InputPath:  input.Path,
			OutputPath: output.Path,
			Source:     meta,
		}, normalized, layout, onProgress)
	}
	if err != nil {
		c.Registry.Fail(ctx, j, err.Error())
		return
	}

	c.finishProcessJob(ctx, requestID, j, output, body.OutputPresignedURL, "", meta)
}

// canvasEnabled reports whether CAP_CANVAS_RENDERER selects the canvas
// pipeline for editor renders, per spec §6's environment table.
func (c *Collection) canvasEnabled() bool {
	v := os.Getenv("CAP_CANVAS_RENDERER")
	return v != "" && v != "0" && v != "false"
}

func (c *Collection) renderWithCanvas(ctx context.Context, requestID, inputPath, cameraPath, outputPath string, segments []filtergraph.TimelineSegment, layout compositor.RenderLayout, meta video.Metadata, duration float64, onProgress func(float64)) error {
	vGraph, vLabel := filtergraph.BuildVideoGraph(segments)
	decoderFilter := vGraph.String()
	decoderLabel := vLabel

	// Per DESIGN.md's resolved open question: the decoder stage applies the
	// timeline filters and, when a camera track is present, vstacks it onto
	// the decoded display frames before handing RGBA frames to the
	// compositor.
	if cameraPath != "" {
		decoderFilter = fmt.Sprintf(
			"%s;[1:v]scale=%d:-2[cam];[%s][cam]vstack=inputs=2[stacked];[stacked]scale=%d:%d[sized]",
			decoderFilter, layout.InnerWidth, decoderLabel, layout.InnerWidth, layout.InnerHeight,
		)
		decoderLabel = "sized"
	}

	fps := meta.FPS
	if fps <= 0 {
		fps = 30
	}

	var audioArgs []string
	if meta.HasAudio() {
		// The encoder's only other input is pipe:0 (decoded RGBA), so the
		// audio source is re-opened here as input index 1.
		audioArgs = []string{"-i", inputPath, "-map", "1:a", "-c:a", "aac"}
	}

	return c.Canvas.Render(ctx, requestID, canvas.Request{
		InputPath:             inputPath,
		CameraPath:            cameraPath,
		DecoderFilterComplex:  decoderFilter,
		DecoderOutputLabel:    decoderLabel,
		Layout:                layout,
		FPS:                   fps,
		Duration:              duration,
		AudioArgs:             audioArgs,
		OutputPath:            outputPath,
	}, onProgress)
}

func (c *Collection) resolveBackgroundImage(ctx context.Context, requestID, url string) (string, error) {
	if url == "" {
		return "", nil
	}
	rewritten, header, err := c.Loopback.RewriteString(url)
	if err != nil {
		return "", apierrors.Wrap(apierrors.KindInvalidRequest, "invalid backgroundImageUrl", err)
	}
	handle, err := c.downloadToTemp(ctx, requestID, rewritten, ".img", header)
	if err != nil {
		return "", err
	}
	return handle.Path, nil
}

// finishProcessJob uploads the rendered output (and optional thumbnail),
// transitions the job to complete, and cleans up scratch files, per spec
// §4.8.
func (c *Collection) finishProcessJob(ctx context.Context, requestID string, j *job.Job, output *tempfile.Handle, outputPresignedURL, thumbnailPresignedURL string, meta video.Metadata) {
	_ = c.Registry.Transition(ctx, j, job.PhaseUploading, 85, "uploading result")
	if err := c.uploadResult(ctx, requestID, outputPresignedURL, output); err != nil {
		c.Registry.Fail(ctx, j, err.Error())
		return
	}

	if thumbnailPresignedURL != "" {
		_ = c.Registry.Transition(ctx, j, job.PhaseGeneratingThumbnail, 95, "generating thumbnail")
		jpeg, err := c.Thumbnails.GenerateThumbnail(ctx, requestID, thumbnail.Request{
			InputPath: output.Path,
			Duration:  meta.Duration,
		})
		if err != nil {
			log.LogError(requestID, "thumbnail generation failed, continuing without it", err)
		} else if rewritten, header, err := c.Loopback.RewriteString(thumbnailPresignedURL); err != nil {
			log.LogError(requestID, "invalid thumbnailPresignedUrl, continuing", err)
		} else if err := c.Transfer.UploadToS3(ctx, requestID, rewritten, "image/jpeg", int64(len(jpeg)), bytes.NewReader(jpeg), header); err != nil {
			log.LogError(requestID, "thumbnail upload failed, continuing", err)
		}
	}

	_ = c.Registry.Complete(ctx, j, outputPresignedURL)
	_ = j.InputTempFile.Cleanup()
	_ = j.OutputTempFile.Cleanup()
}
