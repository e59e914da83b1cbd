// Package video implements the probe engine: invoking ffprobe and reducing
// its JSON output to a VideoMetadata record, per spec §3/§4.2.
package video

// Metadata is the VideoMetadata value record from spec §3. Invariants:
// Duration >= 0; AudioCodec == nil implies no other audio field is set;
// FPS is rounded to 2 decimals.
type Metadata struct {
	Duration      float64 `json:"duration"`
	Width         int     `json:"width"`
	Height        int     `json:"height"`
	FPS           float64 `json:"fps"`
	VideoCodec    string  `json:"videoCodec"`
	AudioCodec    *string `json:"audioCodec,omitempty"`
	AudioChannels *int    `json:"audioChannels,omitempty"`
	SampleRate    *int    `json:"sampleRate,omitempty"`
	Bitrate       int64   `json:"bitrate"`
	FileSize      int64   `json:"fileSize"`
}

func (m Metadata) HasAudio() bool {
	return m.AudioCodec != nil
}
