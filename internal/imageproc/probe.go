package imageproc

import (
	"bytes"
	"errors"
	"fmt"
	"image"

	_ "golang.org/x/image/webp"
)

// Meta is what the logs need to know about an image without decoding its pixels.
type Meta struct {
	Width  int
	Height int
	Format string
}

// Probe reads only the image header.
func Probe(data []byte) (Meta, error) {
	if len(data) == 0 {
		return Meta{}, errors.New("empty image data provided to Probe")
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Meta{}, fmt.Errorf("failed to decode image header: %w", err)
	}

	return Meta{Width: cfg.Width, Height: cfg.Height, Format: format}, nil
}
