// Package clients holds outbound HTTP clients: webhook delivery and the
// presigned-URL S3 transfer helpers. Grounded on the teacher's clients
// package, pruned to the fire-and-forget webhook and plain HTTP PUT/GET
// transfer shapes spec.md actually needs (no Mist, broadcaster, or transcode
// provider clients survive here).
package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/capsoftware/cap-media-server/job"
	"github.com/capsoftware/cap-media-server/log"
	"github.com/capsoftware/cap-media-server/metrics"
)

// WebhookClient posts a job's Progress snapshot to its configured webhook
// URL, best-effort. Grounded on clients/callback_client.go's
// PeriodicCallbackClient, simplified to one-shot POSTs per call since
// spec.md's webhook cadence is "after every transition", not periodic.
type WebhookClient struct {
	httpClient *http.Client
}

// NewWebhookClient builds the retryablehttp-backed client, configured the
// same way the teacher's PeriodicCallbackClient configures its retries.
func NewWebhookClient() *WebhookClient {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 2
	rc.RetryWaitMin = 200 * time.Millisecond
	rc.RetryWaitMax = 1 * time.Second
	rc.CheckRetry = metrics.HTTPRetryHook
	rc.Logger = log.NewRetryableHTTPLogger()
	rc.HTTPClient = &http.Client{Timeout: 5 * time.Second}

	return &WebhookClient{httpClient: rc.StandardClient()}
}

// Notify implements job.Notifier. Failures are logged and otherwise
// swallowed: webhook delivery is best-effort and never alters job state,
// per spec.md §4.8.
func (w *WebhookClient) Notify(ctx context.Context, webhookURL string, p job.Progress) {
	body, err := json.Marshal(p)
	if err != nil {
		log.LogNoRequestID("failed to marshal webhook payload", "jobId", p.JobID, "err", err)
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhookURL, bytes.NewReader(body))
	if err != nil {
		log.LogNoRequestID("failed to build webhook request", "jobId", p.JobID, "err", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := metrics.MonitorRequest(metrics.Metrics.WebhookClient, w.httpClient, req)
	if err != nil {
		log.LogNoRequestID("webhook delivery failed", "jobId", p.JobID, "webhookUrl", log.RedactURL(webhookURL), "err", err)
		return
	}
	defer res.Body.Close()

	if res.StatusCode >= 300 {
		log.LogNoRequestID("webhook delivery rejected", "jobId", p.JobID, "status", fmt.Sprint(res.StatusCode))
	}
}

var _ job.Notifier = (*WebhookClient)(nil)
