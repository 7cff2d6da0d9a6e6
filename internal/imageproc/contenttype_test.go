package imageproc

import (
	"path/filepath"
	"testing"

	"github.com/UnendingLoop/CrystalUpscaler/internal/model"
	"github.com/stretchr/testify/require"
)

func TestContentType(t *testing.T) {
	tests := []struct {
		name string
		path string
		want string
	}{
		{"jpg", "photo.jpg", model.JPEG},
		{"JPG upper", "photo.JPG", model.JPEG},
		{"jpeg", "dir/photo.jpeg", model.JPEG},
		{"JpEg mixed", "photo.JpEg", model.JPEG},
		{"png", "photo.png", model.PNG},
		{"PNG upper", "photo.PNG", model.PNG},
		{"webp", "photo.webp", model.WEBP},
		{"WEBP upper", "photo.WEBP", model.WEBP},
		{"gif defaults to png", "anim.gif", model.PNG},
		{"tiff defaults to png", "scan.tiff", model.PNG},
		{"unknown defaults to png", "notes.txt", model.PNG},
		{"no extension", "photo", model.PNG},
		{"dot in dir only", "my.dir/photo", model.PNG},
		{"dotfile named like extension", ".webp", model.PNG},
		{"dotfile with extension", ".hidden.webp", model.WEBP},
		{"trailing dot", "photo.", model.PNG},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, ContentType(tt.path))
		})
	}
}

func TestOutputPath(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"bare file", "photo.JPG", "photo_Upscaled.png"},
		{"relative dir", filepath.Join("imgs", "cat.webp"), filepath.Join("imgs", "cat_Upscaled.png")},
		{"absolute dir", filepath.Join("/tmp", "a", "b.png"), filepath.Join("/tmp", "a", "b_Upscaled.png")},
		{"double extension", "archive.tar.jpg", "archive.tar_Upscaled.png"},
		{"no extension", "raw", "raw_Upscaled.png"},
		{"dotfile", ".hidden", ".hidden_Upscaled.png"},
		{"dotfile named like extension", ".webp", ".webp_Upscaled.png"},
		{"dotfile with extension", ".hidden.png", ".hidden_Upscaled.png"},
		{"trailing dot", "photo.", "photo._Upscaled.png"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, OutputPath(tt.input))
		})
	}
}
