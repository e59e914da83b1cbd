package canvas

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/capsoftware/cap-media-server/compositor"
)

func testRequest() Request {
	return Request{
		InputPath:  "/tmp/in.mp4",
		OutputPath: "/tmp/out.mp4",
		Layout: compositor.RenderLayout{
			OutputWidth: 1080, OutputHeight: 1920,
			InnerWidth: 1000, InnerHeight: 1800,
		},
		FPS:      30,
		Duration: 12.5,
	}
}

func TestDecoderArgsOmitsFilterComplexWhenEmpty(t *testing.T) {
	args := decoderArgs(testRequest())
	require.NotContains(t, args, "-filter_complex")
	require.Contains(t, args, "1000x1800")
	require.Contains(t, args, "rawvideo")
}

func TestDecoderArgsIncludesCameraInputAndFilterGraph(t *testing.T) {
	req := testRequest()
	req.CameraPath = "/tmp/camera.mp4"
	req.DecoderFilterComplex = "[0:v][1:v]vstack[vout]"
	req.DecoderOutputLabel = "vout"

	args := decoderArgs(req)
	require.Contains(t, args, "/tmp/camera.mp4")
	require.Contains(t, args, "-filter_complex")
	require.Contains(t, args, "[vout]")
}

func TestEncoderArgsIncludesOutputDimensionsAndAudioArgs(t *testing.T) {
	req := testRequest()
	req.AudioArgs = []string{"-i", "/tmp/in.mp4", "-map", "1:a", "-c:a", "aac"}

	args := encoderArgs(req)
	require.Contains(t, args, "1080x1920")
	require.Contains(t, args, "-progress")
	require.Contains(t, args, "pipe:2")
	require.Contains(t, args, "/tmp/out.mp4")

	// audio args land between the rawvideo input and the video codec flags.
	foundAudio := false
	for i, a := range args {
		if a == "1:a" && i > 0 && args[i-1] == "-map" {
			foundAudio = true
		}
	}
	require.True(t, foundAudio)
}

func TestEncoderArgsOmitAudioWhenSilent(t *testing.T) {
	args := encoderArgs(testRequest())
	require.NotContains(t, args, "-map")
}

func TestRunInProcessCompositorWritesCompositedFrames(t *testing.T) {
	layout := compositor.RenderLayout{
		OutputWidth: 6, OutputHeight: 6,
		InnerWidth: 2, InnerHeight: 2,
		BackgroundColor: 0x000000, BackgroundColorAlpha: 1,
	}
	c, err := NewCompositor(layout)
	require.NoError(t, err)

	frame := bytes.Repeat([]byte{0xff, 0xff, 0xff, 0xff}, 2*2)
	src := bytes.NewReader(append(append([]byte{}, frame...), frame...))

	pr, pw := io.Pipe()
	done := make(chan struct{})
	go func() {
		runInProcessCompositor(c, src, pw)
		close(done)
	}()

	outSize := layout.OutputWidth * layout.OutputHeight * 4
	buf := make([]byte, outSize)
	_, err = io.ReadFull(pr, buf)
	require.NoError(t, err)
	// inner card origin is (2,2) for a 2x2 card centered in a 6x6 canvas.
	centerIdx := (2*layout.OutputWidth + 2) * 4
	require.Equal(t, uint8(0xff), buf[centerIdx])
	require.Equal(t, uint8(0x00), buf[0])

	_, err = io.ReadFull(pr, buf)
	require.NoError(t, err)

	_, err = io.ReadFull(pr, buf)
	require.Error(t, err)
	<-done
}
