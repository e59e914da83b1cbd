package clients

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUploadToS3SucceedsOn2xx(t *testing.T) {
	var gotContentType string
	var gotBody []byte
	svr := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer svr.Close()

	c := NewTransferClient()
	payload := []byte("hello world")
	err := c.UploadToS3(context.Background(), "req1", svr.URL, "video/mp4", int64(len(payload)), bytes.NewReader(payload), nil)
	require.NoError(t, err)
	require.Equal(t, "video/mp4", gotContentType)
	require.Equal(t, payload, gotBody)
}

func TestUploadToS3AppliesHostHeaderOverride(t *testing.T) {
	var gotHost string
	svr := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHost = r.Host
		w.WriteHeader(http.StatusOK)
	}))
	defer svr.Close()

	c := NewTransferClient()
	header := http.Header{}
	header.Set("Host", "original.example.com")
	err := c.UploadToS3(context.Background(), "req1", svr.URL, "video/mp4", 0, bytes.NewReader(nil), header)
	require.NoError(t, err)
	require.Equal(t, "original.example.com", gotHost)
}

func TestUploadToS3ReturnsUploadFailedOnNon2xx(t *testing.T) {
	svr := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer svr.Close()

	c := NewTransferClient()
	err := c.UploadToS3(context.Background(), "req1", svr.URL, "video/mp4", 0, bytes.NewReader(nil), nil)
	require.Error(t, err)
}

func TestDownloadFromURLReturnsBodyOn2xx(t *testing.T) {
	svr := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("payload"))
	}))
	defer svr.Close()

	c := NewTransferClient()
	rc, err := c.DownloadFromURL(context.Background(), "req1", svr.URL, nil)
	require.NoError(t, err)
	defer rc.Close()

	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.Equal(t, "payload", string(body))
}

func TestDownloadFromURLAppliesHostHeaderOverride(t *testing.T) {
	var gotHost string
	svr := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHost = r.Host
		_, _ = w.Write([]byte("payload"))
	}))
	defer svr.Close()

	c := NewTransferClient()
	header := http.Header{}
	header.Set("Host", "original.example.com")
	rc, err := c.DownloadFromURL(context.Background(), "req1", svr.URL, header)
	require.NoError(t, err)
	defer rc.Close()
	require.Equal(t, "original.example.com", gotHost)
}

func TestDownloadFromURLReturnsErrorOnNon2xx(t *testing.T) {
	svr := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer svr.Close()

	c := NewTransferClient()
	_, err := c.DownloadFromURL(context.Background(), "req1", svr.URL, nil)
	require.Error(t, err)
}
