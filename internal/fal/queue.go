package fal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/UnendingLoop/CrystalUpscaler/internal/applog"
	"github.com/UnendingLoop/CrystalUpscaler/internal/model"
)

// Queue statuses reported by the status endpoint.
const (
	StatusInQueue    = "IN_QUEUE"
	StatusInProgress = "IN_PROGRESS"
	StatusCompleted  = "COMPLETED"
)

type submitResponse struct {
	RequestID   string `json:"request_id"`
	StatusURL   string `json:"status_url"`
	ResponseURL string `json:"response_url"`
}

type statusResponse struct {
	Status        string     `json:"status"`
	QueuePosition *int       `json:"queue_position,omitempty"`
	ResponseURL   string     `json:"response_url"`
	Logs          []logEntry `json:"logs"`
	Error         string     `json:"error"`
}

type logEntry struct {
	Message   string `json:"message"`
	Level     string `json:"level"`
	Timestamp string `json:"timestamp"`
}

// Subscribe submits arguments to the app queue and blocks until the request completes,
// returning the raw result payload. Polling is bounded by the client's job timeout.
func (c *Client) Subscribe(ctx context.Context, app string, arguments any) (json.RawMessage, error) {
	app = strings.Trim(app, "/")
	if app == "" {
		return nil, errors.New("fal: application id is required")
	}
	if c.jobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.jobTimeout)
		defer cancel()
	}
	logger := applog.LoggerFromContext(ctx)

	var submitted submitResponse
	if err := c.doJSON(ctx, http.MethodPost, c.queueURL+"/"+app, arguments, &submitted); err != nil {
		return nil, timeoutAware(fmt.Errorf("fal: submit request: %w", err))
	}
	if submitted.RequestID == "" {
		return nil, errors.New("fal: submit returned no request id")
	}
	statusURL := submitted.StatusURL
	if statusURL == "" {
		statusURL = c.queueURL + "/" + app + "/requests/" + submitted.RequestID + "/status"
	}
	responseURL := submitted.ResponseURL
	if responseURL == "" {
		responseURL = c.queueURL + "/" + app + "/requests/" + submitted.RequestID
	}
	logger.Info().Str("request_id", submitted.RequestID).Str("app", app).Msg("fal: request submitted")

	seenLogs := 0
	for {
		var st statusResponse
		if err := c.doJSON(ctx, http.MethodGet, withLogs(statusURL), nil, &st); err != nil {
			return nil, timeoutAware(fmt.Errorf("fal: poll status: %w", err))
		}

		for ; seenLogs < len(st.Logs); seenLogs++ {
			logger.Debug().Str("request_id", submitted.RequestID).Msg("fal: " + st.Logs[seenLogs].Message)
		}

		switch st.Status {
		case StatusCompleted:
			if st.Error != "" {
				return nil, fmt.Errorf("%w: %s", model.ErrJobFailed, st.Error)
			}
			if st.ResponseURL != "" {
				responseURL = st.ResponseURL
			}
			var result json.RawMessage
			if err := c.doJSON(ctx, http.MethodGet, responseURL, nil, &result); err != nil {
				return nil, timeoutAware(fmt.Errorf("fal: fetch result: %w", err))
			}
			logger.Info().Str("request_id", submitted.RequestID).Msg("fal: request completed")
			return result, nil
		case StatusInQueue:
			ev := logger.Debug().Str("request_id", submitted.RequestID)
			if st.QueuePosition != nil {
				ev = ev.Int("queue_position", *st.QueuePosition)
			}
			ev.Msg("fal: request queued")
		case StatusInProgress:
		default:
			return nil, fmt.Errorf("%w: unexpected status %q", model.ErrJobFailed, st.Status)
		}

		if err := sleep(ctx, c.pollInterval); err != nil {
			return nil, timeoutAware(err)
		}
	}
}

// Job binds the client to a single fal application.
type Job struct {
	client *Client
	app    string
}

// Job returns a runner for app, e.g. "clarityai/crystal-upscaler".
func (c *Client) Job(app string) *Job {
	return &Job{client: c, app: app}
}

// Run submits an upscaling job, waits for it and decodes its result.
func (j *Job) Run(ctx context.Context, args model.JobArguments) (*model.JobResult, error) {
	raw, err := j.client.Subscribe(ctx, j.app, args)
	if err != nil {
		return nil, err
	}
	var result model.JobResult
	if len(raw) > 0 && string(raw) != "null" {
		if err := json.Unmarshal(raw, &result); err != nil {
			return nil, fmt.Errorf("fal: decode job result: %w", err)
		}
	}
	return &result, nil
}

func withLogs(statusURL string) string {
	u, err := url.Parse(statusURL)
	if err != nil {
		return statusURL
	}
	q := u.Query()
	q.Set("logs", "1")
	u.RawQuery = q.Encode()
	return u.String()
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func timeoutAware(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", model.ErrJobTimeout, err)
	}
	return err
}
