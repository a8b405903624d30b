package chart

import (
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
)

const (
	ImagePNG  Format = "png"
	ImageJPEG Format = "jpeg"
)

// Format is the encoding of the chart image
type Format string

// FormatFromPath picks the image format from the file extension
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return ImagePNG, nil
	case ".jpg", ".jpeg":
		return ImageJPEG, nil
	default:
		return "", fmt.Errorf("unsupported image format %q: use .png or .jpg", filepath.Ext(path))
	}
}

// Encode writes the image in the given format
func Encode(w io.Writer, format Format, img image.Image) error {
	switch format {
	case ImagePNG:
		return png.Encode(w, img)
	case ImageJPEG:
		return jpeg.Encode(w, img, &jpeg.Options{
			Quality: 98,
		})
	default:
		return fmt.Errorf("unsupported image format %q", format)
	}
}

// writeImage replaces path with the encoded image. The image is written to a
// temporary file in the same directory first so readers never see a partial file.
func writeImage(path string, format Format, img image.Image) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temporary image: %w", err)
	}
	defer func() {
		if err != nil {
			err = errors.Join(err, os.Remove(tmp.Name()))
		}
	}()

	if err = Encode(tmp, format, img); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("encoding image: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("closing temporary image: %w", err)
	}

	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replacing %s: %w", path, err)
	}
	return nil
}
