// Package main provides the upscale command: one local image in, one upscaled image next to it out
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/UnendingLoop/CrystalUpscaler/internal/applog"
	"github.com/UnendingLoop/CrystalUpscaler/internal/config"
	"github.com/UnendingLoop/CrystalUpscaler/internal/fal"
	"github.com/UnendingLoop/CrystalUpscaler/internal/fetch"
	"github.com/UnendingLoop/CrystalUpscaler/internal/model"
	"github.com/UnendingLoop/CrystalUpscaler/internal/service"
	"github.com/UnendingLoop/CrystalUpscaler/internal/storage"
	"github.com/UnendingLoop/CrystalUpscaler/internal/storage/localstore"
)

const usage = "Usage: upscale <image_path> <scale_factor> <creativity>"

// exitCodes is the only place where error kinds become process exit codes.
var exitCodes = map[model.Kind]int{
	model.KindUsage:        1,
	model.KindConfig:       1,
	model.KindInput:        1,
	model.KindTransport:    1,
	model.KindRemoteResult: 1,
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Stdout, os.Stderr, os.Args[1:], config.DefaultOptions())
	stop()
	os.Exit(code)
}

// run executes one invocation and returns the exit code. stdout only ever receives the result path.
func run(ctx context.Context, stdout, stderr io.Writer, args []string, opts config.Options) int {
	if len(args) != 3 {
		fmt.Fprintln(stderr, usage)
		return exitCodes[model.KindUsage]
	}
	imagePath := args[0]

	scaleFactor, err := parseIntArg("scale_factor", args[1])
	if err != nil {
		return report(stderr, model.Wrap(model.KindUsage, model.StageStart, err))
	}
	creativity, err := parseIntArg("creativity", args[2])
	if err != nil {
		return report(stderr, model.Wrap(model.KindUsage, model.StageStart, err))
	}

	// конфиг собирается явно, окружение процесса не меняется
	cfg, err := config.Load(opts)
	if err != nil {
		return report(stderr, model.Wrap(model.KindConfig, model.StageStart, err))
	}

	ctx, _ = applog.WithRunID(ctx, applog.New(stderr, cfg.LogLevel, cfg.AppEnv))
	logger := applog.LoggerFromContext(ctx)
	logger.Debug().
		Str("env_file", cfg.EnvFile).
		Str("image", imagePath).
		Int("scale_factor", scaleFactor).
		Int("creativity", creativity).
		Msg("Starting upscale")

	svc, err := buildService(ctx, cfg)
	if err != nil {
		return report(stderr, model.Wrap(model.KindConfig, model.StageStart, err))
	}

	out, err := svc.Upscale(ctx, imagePath, scaleFactor, creativity)
	if err != nil {
		logger.Debug().Err(err).Str("kind", string(model.KindOf(err))).Msg("Upscale failed")
		return report(stderr, err)
	}

	fmt.Fprintln(stdout, out)
	return 0
}

func buildService(ctx context.Context, cfg *config.Config) (ImageUpscaler, error) {
	client, err := fal.NewClient(fal.Options{
		APIKey:       cfg.FalKey,
		QueueURL:     cfg.QueueURL,
		RestURL:      cfg.RestURL,
		PollInterval: cfg.PollInterval,
		JobTimeout:   cfg.JobTimeout,
		Timeout:      cfg.HTTPTimeout,
	})
	if err != nil {
		return nil, err
	}

	svc := service.NewUpscaleService(client, client.Job(cfg.FalApp), fetch.New(nil, cfg.HTTPTimeout), localstore.New())

	// зеркало в S3 опционально и никогда не валит запуск
	mirror, err := storage.NewImgMirror(ctx, cfg.Mirror)
	if err != nil {
		logger := applog.LoggerFromContext(ctx)
		logger.Warn().Err(err).Msg("Result mirror disabled: storage unavailable")
	}
	if mirror != nil {
		svc = svc.WithMirror(mirror, cfg.Mirror.ResultKey)
	}

	return svc, nil
}

func parseIntArg(name, raw string) (int, error) {
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", name, raw, err)
	}
	return v, nil
}

func report(stderr io.Writer, err error) int {
	fmt.Fprintf(stderr, "Error: %v\n", err)
	code, ok := exitCodes[model.KindOf(err)]
	if !ok {
		return 1
	}
	return code
}
