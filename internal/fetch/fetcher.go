package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// ErrNotRegistered is returned for files missing from the registry.
var ErrNotRegistered = errors.New("file not in registry")

// IntegrityError reports a downloaded file whose digest does not match the
// registry.
type IntegrityError struct {
	Name string
	Want Digest
	Got  Digest
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("%s: digest mismatch: want %s, got %s", e.Name, e.Want, e.Got)
}

// Fetcher resolves registered file names to verified local copies, keeping
// downloads in a cache directory.
type Fetcher struct {
	logger    *slog.Logger
	client    *Client
	baseURL   string
	cacheDir  string
	registry  Registry
	retryWait time.Duration
}

// DefaultCacheDir returns the per-user cache directory for downloads.
func DefaultCacheDir() (string, error) {
	dir, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "seagliderOG1"), nil
}

// NewFetcher creates a fetcher for files under baseURL.
func NewFetcher(logger *slog.Logger, client *Client, baseURL, cacheDir string, registry Registry) (*Fetcher, error) {
	if _, err := url.Parse(baseURL); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return nil, err
	}
	return &Fetcher{
		logger:    logger,
		client:    client,
		baseURL:   baseURL,
		cacheDir:  cacheDir,
		registry:  registry,
		retryWait: time.Second,
	}, nil
}

// Fetch returns the path of a verified local copy of name. A cached copy with
// the registered digest is reused. Otherwise the file is downloaded; a digest
// mismatch is retried once before an *IntegrityError is returned. Transport
// errors are returned as they are.
func (f *Fetcher) Fetch(ctx context.Context, name string) (string, error) {
	want, ok := f.registry[name]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrNotRegistered, name)
	}
	path := filepath.Join(f.cacheDir, name)
	if got, err := FileDigest(path, want.Alg); err == nil && got == want {
		f.logger.Debug("Using cached file", "file", name)
		return path, nil
	}

	src, err := url.JoinPath(f.baseURL, name)
	if err != nil {
		return "", err
	}
	download := func() error {
		if err := f.download(ctx, src, path); err != nil {
			return backoff.Permanent(err)
		}
		got, err := FileDigest(path, want.Alg)
		if err != nil {
			return backoff.Permanent(err)
		}
		if got != want {
			os.Remove(path)
			return &IntegrityError{Name: name, Want: want, Got: got}
		}
		return nil
	}
	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(f.retryWait), 1), ctx)
	err = backoff.RetryNotify(download, b, func(err error, d time.Duration) {
		f.logger.Warn("Integrity check failed, downloading again", "file", name, "in", d, "err", err)
	})
	if err != nil {
		return "", err
	}
	f.logger.Info("Downloaded", "file", name)
	return path, nil
}

// download writes src to path through a temporary file in the same
// directory so a partial download never looks like a cached file.
func (f *Fetcher) download(ctx context.Context, src, path string) error {
	tmp, err := os.CreateTemp(f.cacheDir, filepath.Base(path)+".part*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	err = f.client.get(ctx, src, func(body io.Reader) error {
		_, err := io.Copy(tmp, body)
		return err
	})
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
