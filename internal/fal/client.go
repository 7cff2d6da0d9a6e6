// Package fal talks to the fal.ai REST storage and queue APIs.
package fal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/UnendingLoop/CrystalUpscaler/internal/applog"
)

// ErrMissingAPIKey indicates that the client was configured without credentials.
var ErrMissingAPIKey = errors.New("fal: api key is required")

const (
	defaultQueueURL     = "https://queue.fal.run"
	defaultRestURL      = "https://rest.alpha.fal.ai"
	defaultPollInterval = time.Second
	defaultTimeout      = 2 * time.Minute
)

// Options configures the fal client.
type Options struct {
	APIKey       string
	QueueURL     string
	RestURL      string
	PollInterval time.Duration
	// JobTimeout bounds one Subscribe call from submit to result; zero means no bound.
	JobTimeout time.Duration
	HTTPClient *http.Client
	Timeout    time.Duration
}

// Client performs HTTP calls against fal storage and queue endpoints.
type Client struct {
	apiKey       string
	queueURL     string
	restURL      string
	pollInterval time.Duration
	jobTimeout   time.Duration
	httpClient   *http.Client
}

type errorResponse struct {
	Detail any    `json:"detail"`
	Error  string `json:"error"`
}

// NewClient constructs a client with sane defaults and injected dependencies.
func NewClient(opts Options) (*Client, error) {
	apiKey := strings.TrimSpace(opts.APIKey)
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	queueURL := strings.TrimRight(opts.QueueURL, "/")
	if queueURL == "" {
		queueURL = defaultQueueURL
	}
	restURL := strings.TrimRight(opts.RestURL, "/")
	if restURL == "" {
		restURL = defaultRestURL
	}
	poll := opts.PollInterval
	if poll <= 0 {
		poll = defaultPollInterval
	}
	return &Client{
		apiKey:       apiKey,
		queueURL:     queueURL,
		restURL:      restURL,
		pollInterval: poll,
		jobTimeout:   opts.JobTimeout,
		httpClient:   httpClient,
	}, nil
}

// doJSON sends body (if any) as JSON and decodes a 2xx response into out (if any).
func (c *Client) doJSON(ctx context.Context, method, endpoint string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("fal: encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("fal: build request: %w", err)
	}
	req.Header.Set("Authorization", "Key "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("fal: http request: %w", err)
	}
	defer closeBody(ctx, resp.Body)

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("fal: read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return statusError(resp.StatusCode, raw)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("fal: decode response: %w", err)
	}
	return nil
}

func statusError(code int, raw []byte) error {
	var detail errorResponse
	if err := json.Unmarshal(raw, &detail); err == nil {
		switch d := detail.Detail.(type) {
		case string:
			if d != "" {
				return fmt.Errorf("fal: status %d: %s", code, d)
			}
		case nil:
		default:
			if b, err := json.Marshal(d); err == nil {
				return fmt.Errorf("fal: status %d: %s", code, b)
			}
		}
		if detail.Error != "" {
			return fmt.Errorf("fal: status %d: %s", code, detail.Error)
		}
	}
	return fmt.Errorf("fal: status %d: %s", code, strings.TrimSpace(string(raw)))
}

func closeBody(ctx context.Context, body io.Closer) {
	if err := body.Close(); err != nil {
		logger := applog.LoggerFromContext(ctx)
		logger.Debug().Err(err).Msg("fal: failed to close response body")
	}
}
