package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/julienschmidt/httprouter"

	"github.com/capsoftware/cap-media-server/config"
	apierrors "github.com/capsoftware/cap-media-server/errors"
	"github.com/capsoftware/cap-media-server/job"
)

// VideoProcessStatus and VideoEditorProcessStatus share one implementation:
// a job's status contract doesn't depend on which pipeline produced it.
func (c *Collection) VideoProcessStatus() httprouter.Handle {
	return c.jobStatus()
}

func (c *Collection) VideoEditorProcessStatus() httprouter.Handle {
	return c.jobStatus()
}

// jobStatus serves GET /video/process/:jobId/status and its editor
// counterpart, per spec §6: a single JSON snapshot, or an SSE stream ticking
// every config.SSETickInterval until the job reaches a terminal phase, when
// the client negotiates Accept: text/event-stream.
func (c *Collection) jobStatus() httprouter.Handle {
	return func(w http.ResponseWriter, req *http.Request, params httprouter.Params) {
		requestID := newRequestID()
		jobID := params.ByName("jobId")

		j, ok := c.Registry.Get(jobID)
		if !ok {
			apierrors.WriteHTTP(w, requestID, apierrors.New(apierrors.KindNotFound, "unknown job id "+jobID))
			return
		}

		if wantsSSE(req) {
			c.streamJobStatus(w, req, j)
			return
		}
		writeJSON(w, http.StatusOK, j.Snapshot())
	}
}

func wantsSSE(req *http.Request) bool {
	return strings.Contains(req.Header.Get("Accept"), "text/event-stream")
}

func (c *Collection) streamJobStatus(w http.ResponseWriter, req *http.Request, j *job.Job) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusOK, j.Snapshot())
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	writeSSEEvent(w, j.Snapshot())
	flusher.Flush()
	if j.Snapshot().Phase.Terminal() {
		return
	}

	ticker := config.Clock.Ticker(config.SSETickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-req.Context().Done():
			return
		case <-ticker.C:
			snap := j.Snapshot()
			writeSSEEvent(w, snap)
			flusher.Flush()
			if snap.Phase.Terminal() {
				return
			}
		}
	}
}

func writeSSEEvent(w http.ResponseWriter, snap job.Progress) {
	body, err := json.Marshal(snap)
	if err != nil {
		return
	}
	_, _ = w.Write([]byte("data: "))
	_, _ = w.Write(body)
	_, _ = w.Write([]byte("\n\n"))
}
