// Package storage wires the result mirror
package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/UnendingLoop/CrystalUpscaler/internal/applog"
	"github.com/UnendingLoop/CrystalUpscaler/internal/config"
	"github.com/UnendingLoop/CrystalUpscaler/internal/storage/miniostorage"
	"github.com/wb-go/wbf/retry"
)

var connectStrategy = retry.Strategy{
	Attempts: 3,
	Delay:    time.Second,
	Backoff:  2,
}

// NewImgMirror connects to the configured object storage. It returns nil, nil when mirroring is disabled.
func NewImgMirror(ctx context.Context, cfg config.MirrorConfig) (*miniostorage.MinioImageStorage, error) {
	if !cfg.Enabled() {
		return nil, nil
	}
	logger := applog.LoggerFromContext(ctx)

	var (
		client  *miniostorage.MinioImageStorage
		attempt int
	)
	err := retry.DoContext(ctx, connectStrategy, func() error {
		attempt++
		logger.Debug().Str("endpoint", cfg.Endpoint).Int("attempt", attempt).Msg("Connecting to IMG-storage...")
		c, err := miniostorage.NewMinioClient(ctx, cfg)
		if err != nil {
			logger.Warn().Err(err).Int("attempt", attempt).Msg("Failed to init connection to IMG-storage")
			return err
		}
		client = c
		return nil
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("connect to IMG-storage after %d attempts: %w", attempt, err)
	}

	logger.Debug().Str("bucket", cfg.Bucket).Msg("Successfully connected IMG-storage!")
	return client, nil
}
