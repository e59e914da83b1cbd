package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

type retries struct {
	count          int
	lastStatusCode int
}

// MonitorRequest wraps an outbound HTTP call with retry/duration metrics,
// grounded on clients/callback_client.go's retryablehttp usage and
// metrics/monitor_request.go's Retries-in-context pattern.
func MonitorRequest(cm ClientMetrics, client *http.Client, r *http.Request) (*http.Response, error) {
	ctx := context.WithValue(r.Context(), RetriesKey, &retries{count: -1})
	req := r.WithContext(ctx)

	start := time.Now()
	res, err := client.Do(req)
	duration := time.Since(start)

	rs := ctx.Value(RetriesKey).(*retries)
	if rs.lastStatusCode >= 400 {
		cm.FailureCount.WithLabelValues(req.URL.Host, fmt.Sprint(rs.lastStatusCode)).Inc()
		return res, err
	}

	cm.RequestDuration.WithLabelValues(req.URL.Host).Observe(duration.Seconds())
	cm.RetryCount.WithLabelValues(req.URL.Host).Set(float64(rs.count))
	return res, err
}

// HTTPRetryHook records retry attempts into the request context before
// delegating to the default retry policy.
func HTTPRetryHook(ctx context.Context, res *http.Response, err error) (bool, error) {
	rs, ok := ctx.Value(RetriesKey).(*retries)
	if ok {
		if res == nil {
			rs.lastStatusCode = 999
		} else {
			rs.lastStatusCode = res.StatusCode
		}
		rs.count++
	}
	return retryablehttp.DefaultRetryPolicy(ctx, res, err)
}
