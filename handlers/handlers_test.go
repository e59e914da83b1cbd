package handlers

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/require"

	"github.com/capsoftware/cap-media-server/config"
	"github.com/capsoftware/cap-media-server/job"
	"github.com/capsoftware/cap-media-server/loopback"
	"github.com/capsoftware/cap-media-server/subprocess"
)

func testCollection(t *testing.T) *Collection {
	t.Helper()
	pool := &subprocess.Pool{
		Audio:  subprocess.NewLimiter("audio", 2),
		Probe:  subprocess.NewLimiter("probe", 2),
		Encode: subprocess.NewLimiter("encode", 1),
	}
	bridge := loopback.Detect(config.Cli{LoopbackMarkerPath: "/does-not-exist-in-test"})
	registry := job.NewRegistry(nil)
	return New(pool, registry, bridge, "")
}

func doRequest(h httprouter.Handle, method, path, body string, params httprouter.Params) *httptest.ResponseRecorder {
	var reqBody *bytes.Reader
	if body != "" {
		reqBody = bytes.NewReader([]byte(body))
	} else {
		reqBody = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reqBody)
	rec := httptest.NewRecorder()
	h(rec, req, params)
	return rec
}

func TestRootListsEveryEndpoint(t *testing.T) {
	c := testCollection(t)
	rec := doRequest(c.Root(), http.MethodGet, "/", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"POST /video/editor/process"`)
	require.Contains(t, rec.Body.String(), `"GET /health"`)
}

func TestHealthReportsDegradedWhenFfmpegMissing(t *testing.T) {
	c := testCollection(t)
	oldPath := os.Getenv("PATH")
	defer os.Setenv("PATH", oldPath)
	require.NoError(t, os.Setenv("PATH", t.TempDir()))

	rec := doRequest(c.Health(), http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"status":"degraded"`)
	require.Contains(t, rec.Body.String(), `"available":false`)
}

func TestAudioStatusReportsPoolCounters(t *testing.T) {
	c := testCollection(t)
	rec := doRequest(c.AudioStatus(), http.MethodGet, "/audio/status", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"activeProcesses":0,"canAcceptNewProcess":true}`, rec.Body.String())
}

func TestAudioCheckRejectsMissingVideoURL(t *testing.T) {
	c := testCollection(t)
	rec := doRequest(c.AudioCheck(), http.MethodPost, "/audio/check", `{}`, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), `"code":"INVALID_REQUEST"`)
}

func TestAudioExtractRejectsMalformedJSON(t *testing.T) {
	c := testCollection(t)
	rec := doRequest(c.AudioExtract(), http.MethodPost, "/audio/extract", `not json`, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestVideoProbeRejectsMissingVideoURL(t *testing.T) {
	c := testCollection(t)
	rec := doRequest(c.VideoProbe(), http.MethodPost, "/video/probe", `{}`, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestVideoThumbnailRejectsOversizedWidth(t *testing.T) {
	c := testCollection(t)
	rec := doRequest(c.VideoThumbnail(), http.MethodPost, "/video/thumbnail", `{"videoUrl":"https://example.com/a.mp4","width":99999}`, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestVideoProcessRejectsMissingRequiredFields(t *testing.T) {
	c := testCollection(t)
	rec := doRequest(c.VideoProcess(), http.MethodPost, "/video/process", `{"videoId":"v1"}`, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestVideoEditorProcessRejectsMissingProjectConfig(t *testing.T) {
	c := testCollection(t)
	body := `{"videoId":"v1","userId":"u1","videoUrl":"https://example.com/a.mp4","outputPresignedUrl":"https://example.com/out"}`
	rec := doRequest(c.VideoEditorProcess(), http.MethodPost, "/video/editor/process", body, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestVideoStatusReportsZeroActiveJobsInitially(t *testing.T) {
	c := testCollection(t)
	rec := doRequest(c.VideoStatus(), http.MethodGet, "/video/status", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"activeJobs":0`)
}

func TestJobStatusReturns404ForUnknownJob(t *testing.T) {
	c := testCollection(t)
	params := httprouter.Params{{Key: "jobId", Value: "does-not-exist"}}
	rec := doRequest(c.VideoProcessStatus(), http.MethodGet, "/video/process/does-not-exist/status", "", params)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestJobStatusReturnsSnapshotJSONByDefault(t *testing.T) {
	c := testCollection(t)
	j := c.Registry.Create("req-1", "video-1", "user-1", "")
	params := httprouter.Params{{Key: "jobId", Value: j.ID}}
	rec := doRequest(c.VideoProcessStatus(), http.MethodGet, "/video/process/"+j.ID+"/status", "", params)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"phase":"queued"`)
}

func TestCancelUnknownJobReturns404(t *testing.T) {
	c := testCollection(t)
	params := httprouter.Params{{Key: "jobId", Value: "nope"}}
	rec := doRequest(c.VideoProcessCancel(), http.MethodPost, "/video/process/nope/cancel", "", params)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCancelQueuedJobSucceeds(t *testing.T) {
	c := testCollection(t)
	j := c.Registry.Create("req-1", "video-1", "user-1", "")
	params := httprouter.Params{{Key: "jobId", Value: j.ID}}
	rec := doRequest(c.VideoProcessCancel(), http.MethodPost, "/video/process/"+j.ID+"/cancel", "", params)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"success":true}`, rec.Body.String())
}

func TestCleanupReportsSuccess(t *testing.T) {
	c := testCollection(t)
	rec := doRequest(c.VideoCleanup(), http.MethodPost, "/video/cleanup", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"success":true`)
}

func TestWantsSSERequiresEventStreamAccept(t *testing.T) {
	plain := httptest.NewRequest(http.MethodGet, "/x", nil)
	require.False(t, wantsSSE(plain))

	sse := httptest.NewRequest(http.MethodGet, "/x", nil)
	sse.Header.Set("Accept", "text/event-stream")
	require.True(t, wantsSSE(sse))
}

func TestCanvasEnabledReadsEnvVar(t *testing.T) {
	c := testCollection(t)
	defer os.Unsetenv("CAP_CANVAS_RENDERER")

	require.NoError(t, os.Unsetenv("CAP_CANVAS_RENDERER"))
	require.False(t, c.canvasEnabled())

	require.NoError(t, os.Setenv("CAP_CANVAS_RENDERER", "1"))
	require.True(t, c.canvasEnabled())

	require.NoError(t, os.Setenv("CAP_CANVAS_RENDERER", "false"))
	require.False(t, c.canvasEnabled())
}

func TestNewRouterRegistersEveryRoute(t *testing.T) {
	c := testCollection(t)
	router := NewRouter(c)

	rec := doRequest(func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		router.ServeHTTP(w, r)
	}, http.MethodGet, "/", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	for _, ep := range endpointList {
		method, path, _ := strings.Cut(ep, " ")
		h, _, _ := router.Lookup(method, path)
		require.NotNil(t, h, ep)
	}
}
