package clients

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/capsoftware/cap-media-server/config"
	apierrors "github.com/capsoftware/cap-media-server/errors"
	"github.com/capsoftware/cap-media-server/log"
	"github.com/capsoftware/cap-media-server/metrics"
	"github.com/capsoftware/cap-media-server/subprocess"
)

// TransferClient uploads/downloads against presigned URLs. Grounded on
// clients/callback_client.go's retryablehttp configuration; unlike the
// teacher's clients/s3.go (aws-sdk-go, bucket/key API) this module never
// signs requests itself — spec.md §4.10 treats the signer as an external
// collaborator and presigned URLs arrive pre-authorized.
type TransferClient struct {
	httpClient *http.Client
}

func NewTransferClient() *TransferClient {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 3
	rc.RetryWaitMin = 500 * time.Millisecond
	rc.RetryWaitMax = 5 * time.Second
	rc.CheckRetry = metrics.HTTPRetryHook
	rc.Logger = log.NewRetryableHTTPLogger()

	return &TransferClient{httpClient: rc.StandardClient()}
}

// UploadToS3 PUTs data to a presigned URL, setting Content-Type and
// Content-Length. header's Host (set by loopback.Bridge.Rewrite when
// presignedURL points at a loopback address) is applied to the outgoing
// request's wire-level Host, per spec §4.11 — req.Header.Set("Host", ...)
// alone does not change what net/http sends on the wire. Any non-2xx
// response is reported as KindUploadFailed.
func (c *TransferClient) UploadToS3(ctx context.Context, requestID, presignedURL, contentType string, size int64, data io.Reader, header http.Header) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, presignedURL, data)
	if err != nil {
		return apierrors.Wrap(apierrors.KindUploadFailed, "failed to build upload request", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.ContentLength = size
	if host := header.Get("Host"); host != "" {
		req.Host = host
	}

	res, err := metrics.MonitorRequest(metrics.Metrics.UploadClient, c.httpClient, req)
	if err != nil {
		return apierrors.Wrap(apierrors.KindUploadFailed, "upload request failed", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		log.Log(requestID, "upload rejected", "url", log.RedactURL(presignedURL), "status", res.StatusCode)
		return apierrors.New(apierrors.KindUploadFailed, "upload returned non-2xx status")
	}
	return nil
}

// UploadFileToS3 is UploadToS3 reading its body from an *os.File-like
// io.ReadSeeker so retryablehttp's internal retry can rewind it between
// attempts without buffering the whole payload in memory.
func (c *TransferClient) UploadFileToS3(ctx context.Context, requestID, presignedURL, contentType string, size int64, f io.ReadSeeker, header http.Header) error {
	return c.UploadToS3(ctx, requestID, presignedURL, contentType, size, f, header)
}

// DownloadFromURL GETs the body at url, bounded by config.DownloadTimeout
// (per spec §4.1), returning it unread. Callers must Close the returned
// ReadCloser; doing so also releases the timeout context. header's Host (set
// by loopback.Bridge.Rewrite when url points at a loopback address) is
// applied to the outgoing request's wire-level Host, per spec §4.11.
func (c *TransferClient) DownloadFromURL(ctx context.Context, requestID, url string, header http.Header) (io.ReadCloser, error) {
	ctx, cancel := subprocess.WithAbsoluteTimeout(ctx, config.DownloadTimeout)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		cancel()
		return nil, apierrors.Wrap(apierrors.KindInvalidRequest, "failed to build download request", err)
	}
	if host := header.Get("Host"); host != "" {
		req.Host = host
	}

	res, err := metrics.MonitorRequest(metrics.Metrics.UploadClient, c.httpClient, req)
	if err != nil {
		cancel()
		if ctx.Err() != nil {
			return nil, apierrors.New(apierrors.KindTimeout, "download timed out")
		}
		return nil, apierrors.Wrap(apierrors.KindUploadFailed, "download request failed", err)
	}

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		res.Body.Close()
		cancel()
		log.Log(requestID, "download rejected", "url", log.RedactURL(url), "status", res.StatusCode)
		return nil, apierrors.New(apierrors.KindUploadFailed, "download returned non-2xx status")
	}
	return &cancelOnCloseReader{ReadCloser: res.Body, cancel: cancel}, nil
}

// cancelOnCloseReader releases a context's resources when the wrapped body
// is closed, since DownloadFromURL's absolute timeout must stay in force for
// as long as the caller is still reading the response.
type cancelOnCloseReader struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (r *cancelOnCloseReader) Close() error {
	defer r.cancel()
	return r.ReadCloser.Close()
}
