// Package config holds the process-wide tunables for the media server:
// pool ceilings, watchdog timeouts, and scratch-directory layout. Mirrors the
// teacher's package-level-var tunable pattern (config/config.go), pruned to
// the knobs this service actually has.
package config

import (
	"time"

	"github.com/benbjohnson/clock"
)

var Version = "dev"

// Clock is overridden in tests to control time deterministically, mirroring
// config.Clock in the teacher (there a custom TimestampGenerator; here the
// benbjohnson/clock.Clock interface already used by the subprocess watchdogs
// and job TTL sweeper).
var Clock clock.Clock = clock.New()

// Default HTTP listen port, per spec §6.
const DefaultPort = 3456

// ScratchDirName is the fixed subfolder under the OS temp dir, per spec §6's
// on-disk layout: <tempdir>/cap-media-server/<uuid>.<ext>.
const ScratchDirName = "cap-media-server"

// Process pool ceilings, per spec §4.1.
const (
	AudioPoolSize = 6
	ProbePoolSize = 6
	EncodePoolSize = 3
)

// Absolute watchdog timeouts, per spec §4.1.
const (
	ProbeTimeout        = 30 * time.Second
	ThumbnailTimeout    = 60 * time.Second
	AudioExtractTimeout = 120 * time.Second
	DownloadTimeout     = 10 * time.Minute
	TranscodeTimeout    = 30 * time.Minute
)

// Progress-stall watchdog, per spec §4.1.
const (
	StallTimeout             = 180 * time.Second
	StallTimeoutNearComplete = 60 * time.Second
	NearCompleteThreshold    = 0.98
)

// Bounded buffers, per spec §4.1/§4.3.
const (
	StderrTailMaxBytes  = 64 * 1024
	ProbeStdoutMaxBytes = 1 * 1024 * 1024
	AudioBufferMaxBytes = 100 * 1024 * 1024
)

// Job lifecycle timing, per spec §4.8.
const (
	JobTTL           = 60 * time.Minute
	JobGraceWindow   = 5 * time.Minute
	TTLSweepInterval = 5 * time.Minute
	SSETickInterval  = 1 * time.Second
)

// Loopback hostnames rewritten by the loopback bridge, per spec §4.11.
var LoopbackHostnames = map[string]bool{
	"localhost": true,
	"127.0.0.1": true,
	"::1":       true,
}
