// Package fetch downloads result artifacts over plain HTTP
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/UnendingLoop/CrystalUpscaler/internal/applog"
)

type Client struct {
	httpClient *http.Client
}

// New returns a client; a nil httpClient gets one with the given timeout.
func New(httpClient *http.Client, timeout time.Duration) *Client {
	if httpClient == nil {
		if timeout <= 0 {
			timeout = 2 * time.Minute
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{httpClient: httpClient}
}

// Get downloads rawURL and returns the body with its Content-Type. Any non-2xx status is an error.
func (c *Client) Get(ctx context.Context, rawURL string) ([]byte, string, error) {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, "", fmt.Errorf("invalid download url %q", rawURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, parsed.String(), nil)
	if err != nil {
		return nil, "", fmt.Errorf("build download request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("download %s: %w", parsed.Redacted(), err)
	}
	defer closeFileFlow(ctx, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, "", fmt.Errorf("download %s: %d %s", parsed.Redacted(), resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("read downloaded image: %w", err)
	}

	return data, resp.Header.Get("Content-Type"), nil
}

func closeFileFlow(ctx context.Context, res io.Closer) {
	if err := res.Close(); err != nil {
		logger := applog.LoggerFromContext(ctx)
		logger.Debug().Err(err).Msg("Failed to close download body")
	}
}
