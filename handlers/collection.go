// Package handlers implements the HTTP endpoint surface from spec §6,
// grounded on the teacher's CatalystAPIHandlersCollection pattern
// (handlers/handlers.go): one method per endpoint on a shared collection
// struct, returning an httprouter.Handle closure.
package handlers

import (
	"time"

	"github.com/google/uuid"

	"github.com/capsoftware/cap-media-server/audio"
	"github.com/capsoftware/cap-media-server/canvas"
	"github.com/capsoftware/cap-media-server/clients"
	"github.com/capsoftware/cap-media-server/job"
	"github.com/capsoftware/cap-media-server/loopback"
	"github.com/capsoftware/cap-media-server/subprocess"
	"github.com/capsoftware/cap-media-server/thumbnail"
	"github.com/capsoftware/cap-media-server/transcode"
	"github.com/capsoftware/cap-media-server/video"
)

// Collection holds every dependency an endpoint needs, constructed once at
// startup and threaded through httprouter.Handle closures.
type Collection struct {
	Pool *subprocess.Pool

	Prober     *video.Prober
	Audio      *audio.Subsystem
	Thumbnails *thumbnail.Generator
	Transcode  *transcode.Engine
	Canvas     *canvas.Engine

	Transfer *clients.TransferClient
	Webhook  *clients.WebhookClient
	Registry *job.Registry
	Loopback *loopback.Bridge

	StartedAt time.Time
}

func New(pool *subprocess.Pool, registry *job.Registry, loopbackBridge *loopback.Bridge, canvasBinary string) *Collection {
	return &Collection{
		Pool:       pool,
		Prober:     video.NewProber(pool.Probe),
		Audio:      audio.New(pool.Audio),
		Thumbnails: thumbnail.New(pool.Audio),
		Transcode:  transcode.New(pool),
		Canvas:     canvas.New(pool, canvasBinary),
		Transfer:   clients.NewTransferClient(),
		Webhook:    clients.NewWebhookClient(),
		Registry:   registry,
		Loopback:   loopbackBridge,
		StartedAt:  time.Now(),
	}
}

// newRequestID mints a request-scoped id for logging and temp-file naming,
// grounded on the teacher's google/uuid usage for request/stream ids.
func newRequestID() string {
	return uuid.NewString()
}
