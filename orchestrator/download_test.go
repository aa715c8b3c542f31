package orchestrator

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDownloader(t *testing.T, opts ...DownloaderOption) (*Downloader, string) {
	t.Helper()
	dir := t.TempDir()
	base := []DownloaderOption{WithTempDir(dir), WithBaseDelay(time.Millisecond)}
	return NewDownloader(append(base, opts...)...), dir
}

func dirEntries(t *testing.T, dir string) int {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	return len(entries)
}

// flakyServer fails the first n requests with status, then serves body.
func flakyServer(t *testing.T, n int32, status int, body string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= n {
			w.WriteHeader(status)
			return
		}
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestFetch_Success(t *testing.T) {
	srv, calls := flakyServer(t, 0, 0, "# Resource: aws_vpc\n")
	d, dir := newTestDownloader(t)

	path, cleanup, err := d.Fetch(context.Background(), srv.URL+"/r/vpc.html.markdown")
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "# Resource: aws_vpc\n", string(data))
	assert.Equal(t, ".markdown", filepath.Ext(path))
	assert.Equal(t, int32(1), calls.Load())

	cleanup()
	cleanup()
	assert.Zero(t, dirEntries(t, dir))
}

func TestFetch_RetriesTransientStatus(t *testing.T) {
	tests := []struct {
		name   string
		status int
	}{
		{"too many requests", http.StatusTooManyRequests},
		{"internal error", http.StatusInternalServerError},
		{"bad gateway", http.StatusBadGateway},
		{"unavailable", http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, calls := flakyServer(t, 2, tt.status, "ok")
			d, _ := newTestDownloader(t)

			path, cleanup, err := d.Fetch(context.Background(), srv.URL+"/doc.md")
			require.NoError(t, err)
			defer cleanup()

			data, err := os.ReadFile(path)
			require.NoError(t, err)
			assert.Equal(t, "ok", string(data))
			assert.Equal(t, int32(3), calls.Load())
		})
	}
}

func TestFetch_GivesUpAfterMaxAttempts(t *testing.T) {
	srv, calls := flakyServer(t, 100, http.StatusServiceUnavailable, "")
	d, dir := newTestDownloader(t)

	path, cleanup, err := d.Fetch(context.Background(), srv.URL+"/doc.md")
	require.Error(t, err)
	cleanup()
	assert.Empty(t, path)
	assert.ErrorIs(t, err, ErrDownload)

	var derr *DownloadError
	require.True(t, errors.As(err, &derr))
	assert.Equal(t, http.StatusServiceUnavailable, derr.StatusCode)
	assert.Equal(t, DefaultMaxAttempts, derr.Attempts)
	assert.Equal(t, int32(DefaultMaxAttempts), calls.Load())
	assert.Zero(t, dirEntries(t, dir), "temp file must be removed on failure")
}

func TestFetch_BodyTooLarge(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{"at limit", "0123456789", false},
		{"over limit", "0123456789A", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, calls := flakyServer(t, 0, 0, tt.body)
			d, dir := newTestDownloader(t, WithMaxBodyBytes(10))

			path, cleanup, err := d.Fetch(context.Background(), srv.URL+"/big.md")
			if !tt.wantErr {
				require.NoError(t, err)
				defer cleanup()
				data, err := os.ReadFile(path)
				require.NoError(t, err)
				assert.Equal(t, tt.body, string(data))
				return
			}
			assert.ErrorIs(t, err, ErrDownload)
			assert.ErrorIs(t, err, ErrBodyTooLarge)
			assert.Equal(t, int32(1), calls.Load(), "an oversized body is not retried")
			assert.Zero(t, dirEntries(t, dir))
		})
	}
}

func TestFetch_ClientErrorNotRetried(t *testing.T) {
	srv, calls := flakyServer(t, 100, http.StatusNotFound, "")
	d, dir := newTestDownloader(t)

	_, _, err := d.Fetch(context.Background(), srv.URL+"/missing.md")
	var derr *DownloadError
	require.True(t, errors.As(err, &derr))
	assert.Equal(t, http.StatusNotFound, derr.StatusCode)
	assert.Equal(t, 1, derr.Attempts)
	assert.Equal(t, int32(1), calls.Load())
	assert.Zero(t, dirEntries(t, dir))
}

func TestFetch_NetworkErrorRetried(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL + "/doc.md"
	srv.Close()

	d, dir := newTestDownloader(t, WithMaxAttempts(2))
	_, _, err := d.Fetch(context.Background(), url)

	var derr *DownloadError
	require.True(t, errors.As(err, &derr))
	assert.Zero(t, derr.StatusCode)
	assert.Equal(t, 2, derr.Attempts)
	assert.Zero(t, dirEntries(t, dir))
}

func TestFetch_Cancelled(t *testing.T) {
	srv, _ := flakyServer(t, 0, 0, "ok")
	d, dir := newTestDownloader(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := d.Fetch(ctx, srv.URL+"/doc.md")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, dirEntries(t, dir))
}

func TestIsRemote(t *testing.T) {
	assert.True(t, IsRemote("https://example.com/a.md"))
	assert.True(t, IsRemote("http://example.com/a.md"))
	assert.False(t, IsRemote("/tmp/a.md"))
	assert.False(t, IsRemote("docs/README.md"))
}
