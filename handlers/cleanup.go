package handlers

import (
	"net/http"

	"github.com/julienschmidt/httprouter"

	"github.com/capsoftware/cap-media-server/config"
	"github.com/capsoftware/cap-media-server/tempfile"
)

type cleanupResponse struct {
	Success      bool `json:"success"`
	CleanedFiles int  `json:"cleanedFiles"`
}

// VideoCleanup serves POST /video/cleanup per spec §6: purges scratch files
// older than config.JobTTL (the same 60-minute horizon the job TTL sweep
// uses).
func (c *Collection) VideoCleanup() httprouter.Handle {
	return func(w http.ResponseWriter, req *http.Request, _ httprouter.Params) {
		requestID := newRequestID()
		cleaned, err := tempfile.PurgeOlderThan(config.JobTTL)
		if err != nil {
			writeEndpointError(w, requestID, err)
			return
		}
		writeJSON(w, http.StatusOK, cleanupResponse{Success: true, CleanedFiles: cleaned})
	}
}
