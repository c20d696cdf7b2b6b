// Package processing handles the image I/O around the annotation core:
// decoding dataset images (including WebP), preparing downscaled base64
// payloads for vision models, cutting per-annotation patches, and rendering
// review overlays.
package processing

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"os"
	"strings"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"

	"github.com/menta2k/yolo-annotator/pkg/geometry"
	"github.com/menta2k/yolo-annotator/pkg/types"
)

// Processor handles image processing operations.
type Processor struct{}

// NewProcessor creates a new image processor.
func NewProcessor() *Processor {
	return &Processor{}
}

// LoadImage loads an image from a file path with WebP support.
func (p *Processor) LoadImage(path string) (image.Image, error) {
	// Try imaging.Open (registered decoders)
	if img, err := imaging.Open(path); err == nil {
		return img, nil
	}

	// Fallback: explicit WebP decode
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if img, err := webp.Decode(f); err == nil {
		return img, nil
	}
	if _, err := f.Seek(0, 0); err == nil {
		if img, _, err := image.Decode(f); err == nil {
			return img, nil
		}
	}
	return nil, fmt.Errorf("image: unknown format for %s", path)
}

// DecodeDimensions populates the dataset image's pixel dimensions from the
// decoded image. Dimensions stay zero until this runs, and the rest of the
// core tolerates that.
func (p *Processor) DecodeDimensions(img *types.DatasetImage, decoded image.Image) {
	b := decoded.Bounds()
	img.Width = b.Dx()
	img.Height = b.Dy()
}

// PrepareImageForModel converts an image to base64 for sending to vision
// models, downscaling so the long side does not exceed maxDim (0 keeps the
// original size).
func (p *Processor) PrepareImageForModel(img image.Image, format string, maxDim, quality int) (string, error) {
	if maxDim > 0 {
		b := img.Bounds()
		w, h := b.Dx(), b.Dy()
		if w > maxDim || h > maxDim {
			if w >= h {
				img = imaging.Resize(img, maxDim, 0, imaging.Lanczos)
			} else {
				img = imaging.Resize(img, 0, maxDim, imaging.Lanczos)
			}
		}
	}

	var buf bytes.Buffer
	switch strings.ToLower(format) {
	case "png":
		enc := png.Encoder{CompressionLevel: png.BestCompression}
		if err := enc.Encode(&buf, img); err != nil {
			return "", err
		}
	default: // jpg
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
			return "", err
		}
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// CropAnnotation cuts the image patch covered by an annotation, for dataset
// review or classifier training. The box is clamped into the frame first.
func (p *Processor) CropAnnotation(img image.Image, box types.Box) (image.Image, error) {
	bounds := img.Bounds()
	fw, fh := float64(bounds.Dx()), float64(bounds.Dy())
	if fw == 0 || fh == 0 {
		return nil, fmt.Errorf("empty source image")
	}

	r := geometry.ToPixelRect(geometry.ClampBox(box), fw, fh)
	rect := image.Rect(
		int(r.X+0.5), int(r.Y+0.5),
		int(r.X+r.W+0.5), int(r.Y+r.H+0.5),
	).Intersect(bounds)
	if rect.Empty() {
		return nil, fmt.Errorf("empty crop rectangle")
	}
	return imaging.Crop(img, rect), nil
}

// SaveImage saves an image with the format implied by the extension.
func (p *Processor) SaveImage(img image.Image, path string, quality int) error {
	if strings.HasSuffix(strings.ToLower(path), ".webp") {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		return webp.Encode(f, img, &webp.Options{Quality: float32(quality)})
	}
	return imaging.Save(img, path, imaging.JPEGQuality(quality))
}
