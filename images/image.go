// Package images - Image definition for processing utilities.
package images

import (
	"bytes"
	"image"
	_ "image/gif"  // Register GIF decoder.
	_ "image/jpeg" // Register JPEG decoder.
	_ "image/png"  // Register PNG decoder.
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/pkg/errors"
	_ "golang.org/x/image/bmp"  // Register BMP decoder.
	_ "golang.org/x/image/tiff" // Register TIFF decoder.
	_ "golang.org/x/image/webp" // Register WebP decoder.
)

// ErrUnsupportedFormat is returned when the bytes do not look like a supported image.
var ErrUnsupportedFormat = errors.New("unsupported image format")

// Image describes an encoded image as read from its header.
type Image struct {
	// The format of the image.
	Format ImageFormat `json:"format" yaml:"format"`
	// The width of the image in pixels.
	Width int `json:"width" yaml:"width"`
	// The height of the image in pixels.
	Height int `json:"height" yaml:"height"`
}

// Pixels returns Width x Height.
func (i Image) Pixels() int64 {
	return int64(i.Width) * int64(i.Height)
}

// ImageFormat represents supported image formats
type ImageFormat string

// ImageFormat constants
const (
	// FormatJPEG is the JPEG image format.
	FormatJPEG ImageFormat = "jpeg"
	// FormatPNG is the PNG image format.
	FormatPNG ImageFormat = "png"
	// FormatGIF is the GIF image format.
	FormatGIF ImageFormat = "gif"
	// FormatBMP is the BMP image format.
	FormatBMP ImageFormat = "bmp"
	// FormatWebP is the WebP image format.
	FormatWebP ImageFormat = "webp"
	// FormatTIFF is the TIFF image format.
	FormatTIFF ImageFormat = "tiff"
)

var mimeFormats = map[string]ImageFormat{
	"image/jpeg": FormatJPEG,
	"image/png":  FormatPNG,
	"image/gif":  FormatGIF,
	"image/bmp":  FormatBMP,
	"image/webp": FormatWebP,
	"image/tiff": FormatTIFF,
}

// DetectFormat sniffs the encoding of raw image bytes.
//
// Arguments:
//   - data: The encoded image.
//
// Returns:
//   - ImageFormat: The detected format.
//   - error: ErrUnsupportedFormat if the bytes are empty or not a known image type.
func DetectFormat(data []byte) (ImageFormat, error) {
	if len(data) == 0 {
		return "", errors.Wrap(ErrUnsupportedFormat, "image data is empty")
	}

	mime := strings.Split(mimetype.Detect(data).String(), ";")[0]
	format, ok := mimeFormats[mime]
	if !ok {
		return "", errors.Wrapf(ErrUnsupportedFormat, "detected %s", mime)
	}
	return format, nil
}

// Inspect sniffs the format and reads the dimensions from the image header
// without decoding any pixels.
//
// Arguments:
//   - data: The encoded image.
//
// Returns:
//   - *Image: Format, width and height.
//   - error: ErrUnsupportedFormat if the type is unknown or the header is unreadable.
//
// Example:
//
// ```go
//
//	info, err := images.Inspect(data)
//	if err != nil {
//		return err
//	}
//	if info.Pixels() > limit {
//		return errTooLarge
//	}
//
// ```
func Inspect(data []byte) (*Image, error) {
	format, err := DetectFormat(data)
	if err != nil {
		return nil, err
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrapf(ErrUnsupportedFormat, "%s header: %v", format, err)
	}
	return &Image{Format: format, Width: cfg.Width, Height: cfg.Height}, nil
}
