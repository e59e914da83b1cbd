package handlers

import (
	"net/http"

	"github.com/julienschmidt/httprouter"

	apierrors "github.com/capsoftware/cap-media-server/errors"
	"github.com/capsoftware/cap-media-server/log"
	"github.com/capsoftware/cap-media-server/thumbnail"
	"github.com/capsoftware/cap-media-server/video"
)

type videoStatusResponse struct {
	Audio     poolStatusResponse `json:"audio"`
	Probe     poolStatusResponse `json:"probe"`
	Encode    poolStatusResponse `json:"encode"`
	ActiveJobs int               `json:"activeJobs"`
}

// VideoStatus serves GET /video/status per spec §6.
func (c *Collection) VideoStatus() httprouter.Handle {
	return func(w http.ResponseWriter, req *http.Request, _ httprouter.Params) {
		jobs := c.Registry.List()
		active := 0
		for _, j := range jobs {
			if !j.Phase.Terminal() {
				active++
			}
		}
		writeJSON(w, http.StatusOK, videoStatusResponse{
			Audio:      poolStatusResponse{ActiveProcesses: c.Pool.Audio.InUse(), CanAcceptNewProcess: c.Pool.Audio.CanAccept()},
			Probe:      poolStatusResponse{ActiveProcesses: c.Pool.Probe.InUse(), CanAcceptNewProcess: c.Pool.Probe.CanAccept()},
			Encode:     poolStatusResponse{ActiveProcesses: c.Pool.Encode.InUse(), CanAcceptNewProcess: c.Pool.Encode.CanAccept()},
			ActiveJobs: active,
		})
	}
}

type videoProbeRequest struct {
	VideoURL string `json:"videoUrl"`
}

type videoProbeResponse struct {
	Metadata video.Metadata `json:"metadata"`
}

// VideoProbe serves POST /video/probe per spec §6.
func (c *Collection) VideoProbe() httprouter.Handle {
	return func(w http.ResponseWriter, req *http.Request, _ httprouter.Params) {
		requestID := newRequestID()
		log.AddContext(requestID, "endpoint", "video/probe")

		var body videoProbeRequest
		if !decodeAndValidate(w, requestID, "videoProbe", req, &body) {
			return
		}

		rewritten, header, err := c.Loopback.RewriteString(body.VideoURL)
		if err != nil {
			apierrors.WriteHTTP(w, requestID, apierrors.Wrap(apierrors.KindInvalidRequest, "invalid videoUrl", err))
			return
		}

		meta, err := c.Prober.ProbeFile(req.Context(), requestID, rewritten, header)
		if err != nil {
			writeEndpointError(w, requestID, err)
			return
		}
		writeJSON(w, http.StatusOK, videoProbeResponse{Metadata: meta})
	}
}

type videoThumbnailRequest struct {
	VideoURL  string   `json:"videoUrl"`
	Timestamp *float64 `json:"timestamp"`
	Width     int      `json:"width"`
	Height    int      `json:"height"`
	Quality   int      `json:"quality"`
}

// VideoThumbnail serves POST /video/thumbnail per spec §6. ffmpeg reads the
// video URL directly (ffmpeg's -i accepts any URL ffmpeg itself supports),
// so no download step is needed: probe first for the source duration, then
// extract straight from videoUrl.
func (c *Collection) VideoThumbnail() httprouter.Handle {
	return func(w http.ResponseWriter, req *http.Request, _ httprouter.Params) {
		requestID := newRequestID()
		log.AddContext(requestID, "endpoint", "video/thumbnail")

		var body videoThumbnailRequest
		if !decodeAndValidate(w, requestID, "videoThumbnail", req, &body) {
			return
		}

		rewritten, header, err := c.Loopback.RewriteString(body.VideoURL)
		if err != nil {
			apierrors.WriteHTTP(w, requestID, apierrors.Wrap(apierrors.KindInvalidRequest, "invalid videoUrl", err))
			return
		}

		meta, err := c.Prober.ProbeFile(req.Context(), requestID, rewritten, header)
		if err != nil {
			writeEndpointError(w, requestID, err)
			return
		}

		quality := body.Quality
		if quality <= 0 {
			quality = 80
		}

		jpeg, err := c.Thumbnails.GenerateThumbnail(req.Context(), requestID, thumbnail.Request{
			InputPath: rewritten,
			Duration:  meta.Duration,
			Timestamp: body.Timestamp,
			Width:     body.Width,
			Height:    body.Height,
			Quality:   quality,
			Header:    header,
		})
		if err != nil {
			writeEndpointError(w, requestID, err)
			return
		}

		w.Header().Set("Content-Type", "image/jpeg")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(jpeg)
	}
}
