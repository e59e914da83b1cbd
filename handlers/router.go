package handlers

import (
	"github.com/julienschmidt/httprouter"
)

// NewRouter wires every endpoint onto a fresh httprouter.Router, grounded on
// the teacher's StartCatalystAPIRouter (cmd/http-server/http-server.go):
// one route registration per handler method, no middleware chain (spec.md
// has no auth layer of its own).
func NewRouter(c *Collection) *httprouter.Router {
	router := httprouter.New()

	router.GET("/", c.Root())
	router.GET("/health", c.Health())

	router.GET("/audio/status", c.AudioStatus())
	router.POST("/audio/check", c.AudioCheck())
	router.POST("/audio/extract", c.AudioExtract())

	router.GET("/video/status", c.VideoStatus())
	router.POST("/video/probe", c.VideoProbe())
	router.POST("/video/thumbnail", c.VideoThumbnail())
	router.POST("/video/process", c.VideoProcess())
	router.POST("/video/editor/process", c.VideoEditorProcess())
	router.GET("/video/process/:jobId/status", c.VideoProcessStatus())
	router.GET("/video/editor/process/:jobId/status", c.VideoEditorProcessStatus())
	router.POST("/video/process/:jobId/cancel", c.VideoProcessCancel())
	router.POST("/video/editor/process/:jobId/cancel", c.VideoEditorProcessCancel())
	router.POST("/video/cleanup", c.VideoCleanup())

	return router
}
