package clients

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/capsoftware/cap-media-server/job"
)

func TestWebhookClientPostsProgressPayload(t *testing.T) {
	var mu sync.Mutex
	var got job.Progress
	svr := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer svr.Close()

	c := NewWebhookClient()
	c.Notify(context.Background(), svr.URL, job.Progress{JobID: "j1", Phase: job.PhaseProcessing, Progress: 50})

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, "j1", got.JobID)
	require.Equal(t, job.PhaseProcessing, got.Phase)
}

func TestWebhookClientToleratesUnreachableHost(t *testing.T) {
	c := NewWebhookClient()
	require.NotPanics(t, func() {
		c.Notify(context.Background(), "http://127.0.0.1:1", job.Progress{JobID: "j1"})
	})
}
