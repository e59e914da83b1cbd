package canvas

import (
	"encoding/json"
	"os"

	"github.com/capsoftware/cap-media-server/compositor"
	"github.com/capsoftware/cap-media-server/tempfile"
)

// externalConfig is the JSON document written to a temp file and passed as
// the sole argument to an external compositor binary, per spec §4.6
// ("external worker process invoked with a config JSON path").
type externalConfig struct {
	Layout      compositor.RenderLayout `json:"layout"`
	InputWidth  int                     `json:"inputWidth"`
	InputHeight int                     `json:"inputHeight"`
}

// writeExternalConfig serializes cfg to a fresh scratch file, returning its
// path for use as the compositor binary's argv[1].
func writeExternalConfig(cfg externalConfig) (*tempfile.Handle, error) {
	h, err := tempfile.New(".json")
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(cfg)
	if err != nil {
		_ = h.Cleanup()
		return nil, err
	}
	if err := os.WriteFile(h.Path, body, 0o644); err != nil {
		_ = h.Cleanup()
		return nil, err
	}
	return h, nil
}
