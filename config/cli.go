package config

import "net/url"

// Cli holds flag-backed process configuration, grounded on the teacher's
// config.Cli struct pattern (a plain struct of fields populated by flag.*Var
// calls in cmd/media-server/main.go).
type Cli struct {
	Port              int
	CanvasRenderer    bool
	HostAliasOverride string
	LoopbackMarkerPath string
	Version           string

	PrivateBucketURL *url.URL
}
