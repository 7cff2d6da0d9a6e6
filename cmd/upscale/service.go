package main

import "context"

type ImageUpscaler interface {
	Upscale(ctx context.Context, imagePath string, scaleFactor, creativity int) (string, error)
}
