package handlers

import (
	"io"
	"net/http"

	"github.com/julienschmidt/httprouter"

	apierrors "github.com/capsoftware/cap-media-server/errors"
	"github.com/capsoftware/cap-media-server/log"
)

type poolStatusResponse struct {
	ActiveProcesses     int64 `json:"activeProcesses"`
	CanAcceptNewProcess bool  `json:"canAcceptNewProcess"`
}

// AudioStatus serves GET /audio/status per spec §6.
func (c *Collection) AudioStatus() httprouter.Handle {
	return func(w http.ResponseWriter, req *http.Request, _ httprouter.Params) {
		writeJSON(w, http.StatusOK, poolStatusResponse{
			ActiveProcesses:     c.Pool.Audio.InUse(),
			CanAcceptNewProcess: c.Pool.Audio.CanAccept(),
		})
	}
}

type audioCheckRequest struct {
	VideoURL string `json:"videoUrl"`
}

type audioCheckResponse struct {
	HasAudio bool `json:"hasAudio"`
}

// AudioCheck serves POST /audio/check per spec §6.
func (c *Collection) AudioCheck() httprouter.Handle {
	return func(w http.ResponseWriter, req *http.Request, _ httprouter.Params) {
		requestID := newRequestID()
		log.AddContext(requestID, "endpoint", "audio/check")

		var body audioCheckRequest
		if !decodeAndValidate(w, requestID, "audioCheck", req, &body) {
			return
		}

		rewritten, header, err := c.Loopback.RewriteString(body.VideoURL)
		if err != nil {
			apierrors.WriteHTTP(w, requestID, apierrors.Wrap(apierrors.KindInvalidRequest, "invalid videoUrl", err))
			return
		}

		hasAudio, err := c.Audio.CheckHasAudioTrack(req.Context(), requestID, rewritten, header)
		if err != nil {
			writeEndpointError(w, requestID, err)
			return
		}
		writeJSON(w, http.StatusOK, audioCheckResponse{HasAudio: hasAudio})
	}
}

type audioExtractRequest struct {
	VideoURL string `json:"videoUrl"`
	Stream   *bool  `json:"stream"`
}

// AudioExtract serves POST /audio/extract per spec §6. Defaults to
// streaming the MP3 body as it's produced; stream=false buffers the whole
// extraction first.
func (c *Collection) AudioExtract() httprouter.Handle {
	return func(w http.ResponseWriter, req *http.Request, _ httprouter.Params) {
		requestID := newRequestID()
		log.AddContext(requestID, "endpoint", "audio/extract")

		var body audioExtractRequest
		if !decodeAndValidate(w, requestID, "audioExtract", req, &body) {
			return
		}

		rewritten, header, err := c.Loopback.RewriteString(body.VideoURL)
		if err != nil {
			apierrors.WriteHTTP(w, requestID, apierrors.Wrap(apierrors.KindInvalidRequest, "invalid videoUrl", err))
			return
		}

		stream := body.Stream == nil || *body.Stream

		if !stream {
			data, err := c.Audio.ExtractAudio(req.Context(), requestID, rewritten, header)
			if err != nil {
				writeEndpointError(w, requestID, err)
				return
			}
			w.Header().Set("Content-Type", "audio/mpeg")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write(data)
			return
		}

		s, err := c.Audio.ExtractAudioStream(req.Context(), requestID, rewritten, header)
		if err != nil {
			writeEndpointError(w, requestID, err)
			return
		}
		defer s.Close()

		w.Header().Set("Content-Type", "audio/mpeg")
		w.WriteHeader(http.StatusOK)
		if flusher, ok := w.(http.Flusher); ok {
			flushingCopy(w, s, flusher)
			return
		}
		_, _ = io.Copy(w, s)
	}
}

func flushingCopy(w http.ResponseWriter, r io.Reader, flusher http.Flusher) {
	buf := make([]byte, 32*1024)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				return
			}
			flusher.Flush()
		}
		if err != nil {
			return
		}
	}
}

// writeEndpointError unwraps an *errors.Error (or wraps a plain one) and
// writes the matching HTTP response, per spec §7's kind->status mapping.
func writeEndpointError(w http.ResponseWriter, requestID string, err error) {
	if apiErr, ok := err.(*apierrors.Error); ok {
		apierrors.WriteHTTP(w, requestID, apiErr)
		return
	}
	apierrors.WriteHTTP(w, requestID, apierrors.Wrap(apierrors.KindFFmpegError, "unexpected error", err))
}
