// Package service provides business-logic for the app
package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/UnendingLoop/CrystalUpscaler/internal/applog"
	"github.com/UnendingLoop/CrystalUpscaler/internal/imageproc"
	"github.com/UnendingLoop/CrystalUpscaler/internal/model"
)

// Uploader - контракт для загрузки исходника на удаленный хост
type Uploader interface {
	Upload(ctx context.Context, data []byte, contentType, fileName string) (string, error)
}

// JobRunner submits the job and blocks until it reaches a terminal state.
type JobRunner interface {
	Run(ctx context.Context, args model.JobArguments) (*model.JobResult, error)
}

// Fetcher downloads the produced image.
type Fetcher interface {
	Get(ctx context.Context, url string) (data []byte, contentType string, err error)
}

// ArtifactStore persists the result next to the source.
type ArtifactStore interface {
	Save(ctx context.Context, path string, data []byte) error
}

// ImageMirror - контракт для работы с хранилищем копий результата
type ImageMirror interface {
	Put(ctx context.Context, key string, size int64, contentType string, r io.Reader) error
}

type UpscaleService struct {
	uploader        Uploader
	job             JobRunner
	fetcher         Fetcher
	store           ArtifactStore
	mirror          ImageMirror
	resultKeyPrefix string
}

func NewUpscaleService(up Uploader, job JobRunner, f Fetcher, store ArtifactStore) *UpscaleService {
	return &UpscaleService{
		uploader: up,
		job:      job,
		fetcher:  f,
		store:    store,
	}
}

// WithMirror enables copying every result into object storage under prefix+file name.
func (s *UpscaleService) WithMirror(m ImageMirror, prefix string) *UpscaleService {
	s.mirror = m
	s.resultKeyPrefix = prefix
	return s
}

// Upscale runs the whole pipeline for one image and returns the path of the written result.
// Errors are *model.Error values whose Stage is the last stage reached before the failure.
func (s *UpscaleService) Upscale(ctx context.Context, imagePath string, scaleFactor, creativity int) (string, error) {
	logger := applog.LoggerFromContext(ctx)

	req := &model.JobRequest{
		SourcePath:  imagePath,
		ScaleFactor: scaleFactor,
		Creativity:  creativity,
	}
	if err := req.Validate(); err != nil {
		return "", model.Wrap(model.KindInput, model.StageStart, err)
	}

	// читаем исходник
	data, err := os.ReadFile(imagePath)
	if err != nil {
		return "", model.Wrap(model.KindInput, model.StageStart, err)
	}
	if len(data) == 0 {
		return "", model.Wrap(model.KindInput, model.StageStart, fmt.Errorf("%w: %s is empty", model.ErrEmptySource, imagePath))
	}
	req.Data = data
	req.ContentType = imageproc.ContentType(imagePath)
	logStage(ctx, model.StageRead, req.Data)

	// заливаем на CDN
	imageURL, err := s.uploader.Upload(ctx, req.Data, req.ContentType, filepath.Base(imagePath))
	if err != nil {
		return "", model.Wrap(model.KindTransport, model.StageRead, fmt.Errorf("upload image: %w", err))
	}
	logger.Info().Str("stage", string(model.StageUploaded)).Str("image_url", imageURL).Msg("Source image uploaded")

	// запускаем апскейл и ждем завершения
	result, err := s.job.Run(ctx, model.JobArguments{
		ImageURL:    imageURL,
		ScaleFactor: req.ScaleFactor,
		Creativity:  req.Creativity,
	})
	if err != nil {
		return "", model.Wrap(model.KindTransport, model.StageUploaded, fmt.Errorf("run upscale job: %w", err))
	}

	outputURL, err := result.FirstImageURL()
	if err != nil {
		return "", model.Wrap(model.KindRemoteResult, model.StageJobComplete, err)
	}
	logger.Info().Str("stage", string(model.StageJobComplete)).Str("output_url", outputURL).Msg("Upscale job finished")

	// скачиваем результат
	out, cType, err := s.fetcher.Get(ctx, outputURL)
	if err != nil {
		return "", model.Wrap(model.KindTransport, model.StageJobComplete, err)
	}
	logStage(ctx, model.StageDownloaded, out)
	if cType != "" && cType != model.PNG {
		logger.Debug().Str("content_type", cType).Msg("Result is not PNG, saving verbatim anyway")
	}

	// сохраняем рядом с исходником
	outputPath := imageproc.OutputPath(imagePath)
	if err := s.store.Save(ctx, outputPath, out); err != nil {
		return "", model.Wrap(model.KindInput, model.StageDownloaded, err)
	}
	logger.Info().Str("stage", string(model.StageSaved)).Str("path", outputPath).Msg("Upscaled image saved")

	s.mirrorResult(ctx, outputPath, out)

	return outputPath, nil
}

// UpscaleAll runs Upscale for every path one after another with the same parameters.
// Duplicate paths are processed once. A failed item never stops the batch; a cancelled
// context does, leaving the remaining items pending.
func (s *UpscaleService) UpscaleAll(ctx context.Context, paths []string, scaleFactor, creativity int) model.BatchSummary {
	logger := applog.LoggerFromContext(ctx)

	seen := make(map[string]struct{}, len(paths))
	summary := model.BatchSummary{Items: make([]model.BatchItem, 0, len(paths))}
	for _, p := range paths {
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		summary.Items = append(summary.Items, model.BatchItem{SourcePath: p, Status: model.StatusPending})
	}

	for i := range summary.Items {
		if ctx.Err() != nil {
			break
		}
		item := &summary.Items[i]
		item.Status = model.StatusProcessing
		logger.Info().Int("current", i+1).Int("total", len(summary.Items)).Str("path", item.SourcePath).Msg("Processing image")

		outputPath, err := s.Upscale(ctx, item.SourcePath, scaleFactor, creativity)
		if err != nil {
			item.Status = model.StatusError
			item.Stage = model.StageFailed
			item.Err = err
			var perr *model.Error
			if errors.As(err, &perr) {
				item.FailedAt = perr.Stage
			}
			summary.Failed++
			logger.Warn().Err(err).Str("path", item.SourcePath).Msg("Image failed")
			continue
		}
		item.Status = model.StatusComplete
		item.Stage = model.StageSaved
		item.OutputPath = outputPath
		summary.Completed++
	}

	logger.Info().Int("completed", summary.Completed).Int("failed", summary.Failed).Msg(summary.Message())
	return summary
}

func (s *UpscaleService) mirrorResult(ctx context.Context, outputPath string, data []byte) {
	if s.mirror == nil {
		return
	}
	logger := applog.LoggerFromContext(ctx)

	key := s.resultKeyPrefix + filepath.Base(outputPath)
	if err := s.mirror.Put(ctx, key, int64(len(data)), model.PNG, bytes.NewReader(data)); err != nil {
		logger.Warn().Err(err).Str("key", key).Msg("Failed to mirror result to storage")
		return
	}
	logger.Debug().Str("key", key).Msg("Result mirrored to storage")
}

func logStage(ctx context.Context, stage model.Stage, data []byte) {
	logger := applog.LoggerFromContext(ctx)
	ev := logger.Debug().Str("stage", string(stage)).Int("bytes", len(data))
	if meta, err := imageproc.Probe(data); err == nil {
		ev = ev.Int("width", meta.Width).Int("height", meta.Height).Str("format", meta.Format)
	}
	ev.Msg("Image stage reached")
}
