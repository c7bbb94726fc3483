// Package fetch retrieves dive files from a remote basestation archive. It
// lists directory index pages, downloads files into a local cache and checks
// them against a registry of content digests.
package fetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"
)

// StatusError reports a non-2xx HTTP response.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %d %s", e.URL, e.Code, http.StatusText(e.Code))
}

// Client is an HTTP client for basestation archives. Every request is bound
// by the client's timeout in addition to the caller's context.
type Client struct {
	logger  *slog.Logger
	httpCli *http.Client
	timeout time.Duration
}

// NewClient creates a new archive client. A zero timeout leaves requests
// bounded only by the caller's context.
func NewClient(logger *slog.Logger, maxConns int, timeout time.Duration) *Client {
	return &Client{
		logger: logger,
		httpCli: &http.Client{
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout:   30 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				MaxIdleConns:        maxConns,
				IdleConnTimeout:     30 * time.Second,
				MaxIdleConnsPerHost: maxConns,
				MaxConnsPerHost:     maxConns,
			},
		},
		timeout: timeout,
	}
}

// get issues a GET request and hands the body of a 2xx response to fn.
func (c *Client) get(ctx context.Context, url string, fn func(io.Reader) error) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	c.logger.Debug("Fetching", "url", url)
	res, err := c.httpCli.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		if _, err := io.Copy(io.Discard, res.Body); err != nil {
			c.logger.Debug("Failed to drain response body", "err", err)
		}
		res.Body.Close()
	}()
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return &StatusError{URL: url, Code: res.StatusCode}
	}
	return fn(res.Body)
}
