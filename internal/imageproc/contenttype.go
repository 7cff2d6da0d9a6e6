// Package imageproc provides helpers for source and result images: content-type inference and metadata probing.
package imageproc

import (
	"path/filepath"
	"strings"

	"github.com/UnendingLoop/CrystalUpscaler/internal/model"
	"github.com/disintegration/imaging"
)

// ContentType guesses the MIME type of an image from its file extension.
// The guess is not checked against the file contents; anything unknown is treated as PNG.
func ContentType(path string) string {
	ext := strings.ToLower(extension(filepath.Base(path)))
	if ext == ".webp" {
		// imaging has no webp codec, so it never maps this extension
		return model.WEBP
	}

	format, err := imaging.FormatFromExtension(ext)
	if err != nil {
		return model.PNG
	}
	if cType, ok := model.GetCType[format]; ok {
		return cType
	}
	return model.PNG
}

// OutputPath returns <dir>/<stem>_Upscaled.png for the given input path.
func OutputPath(inputPath string) string {
	return filepath.Join(filepath.Dir(inputPath), stem(filepath.Base(inputPath))+model.OutputSuffix)
}

// extension ignores leading dots, so ".webp" is a name without extension.
func extension(base string) string {
	name := strings.TrimLeft(base, ".")
	i := strings.LastIndex(name, ".")
	if i < 0 {
		return ""
	}
	return name[i:]
}

// stem drops the last extension only when the dot is neither the first nor the last character:
// ".hidden" and "photo." are kept whole.
func stem(base string) string {
	i := strings.LastIndex(base, ".")
	if i > 0 && i < len(base)-1 {
		return base[:i]
	}
	return base
}
