package handlers

import (
	"bytes"
	"context"
	"net/http"
	"os/exec"

	"github.com/julienschmidt/httprouter"

	"github.com/capsoftware/cap-media-server/config"
)

var endpointList = []string{
	"GET /",
	"GET /health",
	"GET /audio/status",
	"POST /audio/check",
	"POST /audio/extract",
	"GET /video/status",
	"POST /video/probe",
	"POST /video/thumbnail",
	"POST /video/process",
	"POST /video/editor/process",
	"GET /video/process/:jobId/status",
	"GET /video/editor/process/:jobId/status",
	"POST /video/process/:jobId/cancel",
	"POST /video/editor/process/:jobId/cancel",
	"POST /video/cleanup",
}

type rootResponse struct {
	Name      string   `json:"name"`
	Version   string   `json:"version"`
	Endpoints []string `json:"endpoints"`
}

// Root serves GET / per spec §6.
func (c *Collection) Root() httprouter.Handle {
	return func(w http.ResponseWriter, req *http.Request, _ httprouter.Params) {
		writeJSON(w, http.StatusOK, rootResponse{
			Name:      "cap-media-server",
			Version:   config.Version,
			Endpoints: endpointList,
		})
	}
}

type healthFFmpeg struct {
	Available bool   `json:"available"`
	Version   string `json:"version"`
}

type healthResponse struct {
	Status string       `json:"status"`
	FFmpeg healthFFmpeg `json:"ffmpeg"`
}

// Health serves GET /health per spec §6, probing ffmpeg's own -version
// output directly rather than through the managed subprocess pool, since a
// health check must not compete with real work for pool admission.
func (c *Collection) Health() httprouter.Handle {
	return func(w http.ResponseWriter, req *http.Request, _ httprouter.Params) {
		ffmpegVersion, available := probeFFmpegVersion(req.Context())

		status := "healthy"
		if !available {
			status = "degraded"
		}

		writeJSON(w, http.StatusOK, healthResponse{
			Status: status,
			FFmpeg: healthFFmpeg{Available: available, Version: ffmpegVersion},
		})
	}
}

func probeFFmpegVersion(ctx context.Context) (string, bool) {
	out, err := exec.CommandContext(ctx, "ffmpeg", "-version").Output()
	if err != nil {
		return "", false
	}
	line := out
	if i := bytes.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	return string(line), true
}
