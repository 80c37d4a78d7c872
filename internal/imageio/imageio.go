// Package imageio encodes and decodes frame images by file extension.
package imageio

import (
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

// Format names a supported on-disk image format.
type Format string

const (
	JPEG Format = "jpeg"
	PNG  Format = "png"
	BMP  Format = "bmp"
	TIFF Format = "tiff"
)

// DefaultQuality matches the simulator's own JPEG output.
const DefaultQuality = 90

// Encoder writes an image to w.
type Encoder interface {
	Encode(w io.Writer, img image.Image) error
	Ext() string
}

// ParseFormat accepts a format name or file extension, with or without dot.
func ParseFormat(value string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(value), ".")) {
	case "jpeg", "jpg":
		return JPEG, nil
	case "png":
		return PNG, nil
	case "bmp":
		return BMP, nil
	case "tiff", "tif":
		return TIFF, nil
	default:
		return "", fmt.Errorf("unsupported image format %q", value)
	}
}

// FormatOf returns the format implied by a file name's extension.
func FormatOf(path string) (Format, error) {
	return ParseFormat(filepath.Ext(path))
}

// NewEncoder returns an encoder for format. quality only applies to JPEG and
// is clamped to 1-100.
func NewEncoder(format Format, quality int) (Encoder, error) {
	switch format {
	case JPEG:
		if quality < 1 {
			quality = 1
		}
		if quality > 100 {
			quality = 100
		}
		return jpegEncoder{quality: quality}, nil
	case PNG:
		return pngEncoder{}, nil
	case BMP:
		return bmpEncoder{}, nil
	case TIFF:
		return tiffEncoder{}, nil
	default:
		return nil, fmt.Errorf("unsupported image format %q", format)
	}
}

type jpegEncoder struct {
	quality int
}

func (e jpegEncoder) Encode(w io.Writer, img image.Image) error {
	return jpeg.Encode(w, img, &jpeg.Options{Quality: e.quality})
}

func (jpegEncoder) Ext() string { return "jpeg" }

type pngEncoder struct{}

func (pngEncoder) Encode(w io.Writer, img image.Image) error { return png.Encode(w, img) }
func (pngEncoder) Ext() string                               { return "png" }

type bmpEncoder struct{}

func (bmpEncoder) Encode(w io.Writer, img image.Image) error { return bmp.Encode(w, img) }
func (bmpEncoder) Ext() string                               { return "bmp" }

type tiffEncoder struct{}

func (tiffEncoder) Encode(w io.Writer, img image.Image) error {
	return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate})
}
func (tiffEncoder) Ext() string { return "tiff" }

// Decode reads any supported image from r.
func Decode(r io.Reader) (image.Image, error) {
	img, _, err := image.Decode(r)
	return img, err
}

// DecodeFile opens and decodes the image at path.
func DecodeFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Decode(f)
}

// WriteFile encodes img to path through a temporary file in the same
// directory, so readers never observe a partially written image.
func WriteFile(path string, enc Encoder, img image.Image) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if err := enc.Encode(tmp, img); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return nil
}
