package fal

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/UnendingLoop/CrystalUpscaler/internal/applog"
	"github.com/google/uuid"
)

const storageType = "fal-cdn-v3"

type initiateUploadRequest struct {
	ContentType string `json:"content_type"`
	FileName    string `json:"file_name"`
}

type initiateUploadResponse struct {
	UploadURL string `json:"upload_url"`
	FileURL   string `json:"file_url"`
}

// Upload stores data on the fal CDN and returns a publicly fetchable URL.
func (c *Client) Upload(ctx context.Context, data []byte, contentType, fileName string) (string, error) {
	if len(data) == 0 {
		return "", errors.New("fal: nothing to upload")
	}
	fileName = strings.TrimSpace(fileName)
	if fileName == "" {
		fileName = uuid.NewString()
	}

	var initiated initiateUploadResponse
	endpoint := c.restURL + "/storage/upload/initiate?storage_type=" + storageType
	if err := c.doJSON(ctx, http.MethodPost, endpoint, initiateUploadRequest{
		ContentType: contentType,
		FileName:    fileName,
	}, &initiated); err != nil {
		return "", fmt.Errorf("fal: initiate upload: %w", err)
	}
	if initiated.UploadURL == "" || initiated.FileURL == "" {
		return "", errors.New("fal: initiate upload returned no urls")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, initiated.UploadURL, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("fal: build upload request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.ContentLength = int64(len(data))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fal: upload file: %w", err)
	}
	defer closeBody(ctx, resp.Body)

	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("fal: upload status %d", resp.StatusCode)
	}

	logger := applog.LoggerFromContext(ctx)
	logger.Debug().
		Str("file_url", initiated.FileURL).
		Str("content_type", contentType).
		Int("bytes", len(data)).
		Msg("fal: uploaded source image")

	return initiated.FileURL, nil
}
