package marcher

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

	"github.com/disintegration/imaging"
	"golang.org/x/image/bmp"
)

// Image wraps the RGBA bytes into an image.NRGBA without copying.
// The result aliases the render buffer; callers that keep rendering
// should copy before mutating.
func (r *RenderResult) Image() *image.NRGBA {
	return &image.NRGBA{
		Pix:    r.RGBA,
		Stride: r.Width * RGBAPixelSize,
		Rect:   image.Rect(0, 0, r.Width, r.Height),
	}
}

// Upscale resizes the result to the given dimensions with nearest-neighbor
// sampling. Used to blow quick-preview frames up to display size.
func (r *RenderResult) Upscale(width, height int) *image.NRGBA {
	if r.Width == width && r.Height == height {
		return r.Image()
	}
	return imaging.Resize(r.Image(), width, height, imaging.NearestNeighbor)
}

// Save writes the result to the destination path, with the format picked
// by file extension (png, jpg, bmp, gif, tif).
func (r *RenderResult) Save(path string) error {
	return imaging.Save(r.Image(), path)
}

// EncodeImg encodes an image to a destination of type io.Writer.
// Writing to a pipe defaults to png, since the format cannot be inferred.
func EncodeImg(w io.Writer, img image.Image) error {
	switch w := w.(type) {
	case *os.File:
		ext := strings.ToLower(filepath.Ext(w.Name()))
		switch ext {
		case ".jpg", ".jpeg":
			return jpeg.Encode(w, img, &jpeg.Options{Quality: 100})
		case ".bmp":
			return bmp.Encode(w, img)
		case "", ".png":
			return png.Encode(w, img)
		default:
			return fmt.Errorf("unsupported image format: %q", ext)
		}
	default:
		return png.Encode(w, img)
	}
}

// DecodeImg decodes an image file to type image.Image.
func DecodeImg(src string) (image.Image, error) {
	file, err := os.Open(src)
	if err != nil {
		return nil, fmt.Errorf("could not open the image file: %v", err)
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("could not decode the image file: %v", err)
	}
	return img, nil
}

var errBufferSize = errors.New("rgba buffer length does not match the image dimensions")

// ValidateResult checks that the RGBA byte count matches the dimensions.
func ValidateResult(r *RenderResult) error {
	if len(r.RGBA) != r.Width*r.Height*RGBAPixelSize {
		return errBufferSize
	}
	return nil
}
