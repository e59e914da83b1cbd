package loopback

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/capsoftware/cap-media-server/config"
)

func TestRewritePassthroughWhenNotContainerized(t *testing.T) {
	b := Detect(config.Cli{LoopbackMarkerPath: "/nonexistent-marker-for-test"})
	u, _ := url.Parse("http://127.0.0.1:8080/foo")
	out, header := b.Rewrite(u)
	require.Equal(t, "127.0.0.1:8080", out.Host)
	require.Empty(t, header)
}

func TestRewriteLoopbackWhenContainerized(t *testing.T) {
	b := &Bridge{containerized: true, alias: "host.docker.internal"}
	u, _ := url.Parse("http://localhost:9000/path?x=1")
	out, header := b.Rewrite(u)
	require.Equal(t, "host.docker.internal:9000", out.Host)
	require.Equal(t, "localhost:9000", header.Get("Host"))
	require.Equal(t, "/path", out.Path)
}

func TestRewriteIgnoresNonLoopbackHosts(t *testing.T) {
	b := &Bridge{containerized: true, alias: "host.docker.internal"}
	u, _ := url.Parse("https://example.com/video.mp4")
	out, header := b.Rewrite(u)
	require.Equal(t, "example.com", out.Host)
	require.Empty(t, header)
}
