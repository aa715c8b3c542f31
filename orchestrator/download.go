package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"
	"time"
)

const (
	// DefaultMaxAttempts is the number of fetch attempts per document.
	DefaultMaxAttempts = 3

	// DefaultBaseDelay is the wait before the first retry.
	DefaultBaseDelay = time.Second

	// DefaultTimeout bounds a single HTTP request.
	DefaultTimeout = 10 * time.Second

	// DefaultMaxBodyBytes caps the size of a downloaded document.
	DefaultMaxBodyBytes = 10 << 20

	userAgent = "tfknowledge/1.0"
)

// Downloader fetches remote documents into temporary files with bounded retry.
// Only network errors, 429 and 5xx responses are retried.
type Downloader struct {
	client      *http.Client
	maxAttempts int
	baseDelay   time.Duration
	maxBody     int64
	tempDir     string
	logger      *slog.Logger
}

// DownloaderOption configures a Downloader.
type DownloaderOption func(*Downloader)

// WithHTTPClient replaces the default client. Its Timeout is left as is.
func WithHTTPClient(client *http.Client) DownloaderOption {
	return func(d *Downloader) {
		if client != nil {
			d.client = client
		}
	}
}

// WithMaxAttempts sets the number of attempts per document. Values below 1 are ignored.
func WithMaxAttempts(n int) DownloaderOption {
	return func(d *Downloader) {
		if n > 0 {
			d.maxAttempts = n
		}
	}
}

// WithBaseDelay sets the wait before the first retry. It doubles on each retry.
func WithBaseDelay(delay time.Duration) DownloaderOption {
	return func(d *Downloader) {
		if delay >= 0 {
			d.baseDelay = delay
		}
	}
}

// WithTimeout sets the per-request timeout of the default client.
func WithTimeout(timeout time.Duration) DownloaderOption {
	return func(d *Downloader) {
		if timeout > 0 {
			d.client = &http.Client{Timeout: timeout}
		}
	}
}

// WithMaxBodyBytes sets the largest accepted response body. Values below 1 are ignored.
func WithMaxBodyBytes(n int64) DownloaderOption {
	return func(d *Downloader) {
		if n > 0 {
			d.maxBody = n
		}
	}
}

// WithTempDir sets the directory temporary files are created in.
func WithTempDir(dir string) DownloaderOption {
	return func(d *Downloader) {
		d.tempDir = dir
	}
}

// WithDownloadLogger sets a custom logger.
func WithDownloadLogger(logger *slog.Logger) DownloaderOption {
	return func(d *Downloader) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// NewDownloader creates a Downloader.
func NewDownloader(opts ...DownloaderOption) *Downloader {
	d := &Downloader{
		client:      &http.Client{Timeout: DefaultTimeout},
		maxAttempts: DefaultMaxAttempts,
		baseDelay:   DefaultBaseDelay,
		maxBody:     DefaultMaxBodyBytes,
		logger:      slog.Default().With("component", "downloader"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// IsRemote reports whether source is an http(s) URL.
func IsRemote(source string) bool {
	return strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://")
}

// Fetch downloads rawURL into a temporary file and returns its path. The
// returned cleanup removes the file; it is never nil and is safe to call
// more than once. On error no file is left behind.
func (d *Downloader) Fetch(ctx context.Context, rawURL string) (string, func(), error) {
	noop := func() {}

	f, err := os.CreateTemp(d.tempDir, "tfk-*"+tempSuffix(rawURL))
	if err != nil {
		return "", noop, &DownloadError{URL: rawURL, Err: err}
	}
	name := f.Name()
	cleanup := func() { _ = os.Remove(name) }

	var status int
	attempts, err := retryWithBackoff(ctx, d.logger, func(int) error {
		var fetchErr error
		status, fetchErr = d.fetchOnce(ctx, rawURL, f)
		return fetchErr
	}, d.maxAttempts, d.baseDelay)
	closeErr := f.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		cleanup()
		derr := &DownloadError{URL: rawURL, Attempts: attempts, Err: err}
		if status != http.StatusOK {
			derr.StatusCode = status
		}
		return "", noop, derr
	}

	d.logger.Debug("downloaded document", "url", rawURL, "path", name, "attempts", attempts)
	return name, cleanup, nil
}

// fetchOnce performs one GET and writes the body into f from the start.
// Errors that a retry cannot fix are wrapped with permanent.
func (d *Downloader) fetchOnce(ctx context.Context, rawURL string, f *os.File) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return 0, permanent(fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := d.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return 0, permanent(ctx.Err())
		}
		return 0, fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		statusErr := fmt.Errorf("HTTP %d", resp.StatusCode)
		if retryableStatus(resp.StatusCode) {
			return resp.StatusCode, statusErr
		}
		return resp.StatusCode, permanent(statusErr)
	}

	if err := f.Truncate(0); err != nil {
		return resp.StatusCode, permanent(err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return resp.StatusCode, permanent(err)
	}
	n, err := io.Copy(f, io.LimitReader(resp.Body, d.maxBody+1))
	if err != nil {
		var pathErr *os.PathError
		if errors.As(err, &pathErr) {
			return resp.StatusCode, permanent(fmt.Errorf("write temp file: %w", err))
		}
		return resp.StatusCode, fmt.Errorf("read body: %w", err)
	}
	if n > d.maxBody {
		return resp.StatusCode, permanent(fmt.Errorf("%w: more than %d bytes", ErrBodyTooLarge, d.maxBody))
	}
	return resp.StatusCode, nil
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}

// tempSuffix keeps the URL's extension so loaders can pick a format.
func tempSuffix(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ".md"
	}
	if ext := path.Ext(u.Path); ext != "" && len(ext) <= 10 {
		return ext
	}
	return ".md"
}
