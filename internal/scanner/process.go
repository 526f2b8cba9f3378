package scanner

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"io"

	"github.com/disintegration/imaging"
	"github.com/rwcarlsen/goexif/exif"
)

// Page is the output canvas size in pixels
type Page struct {
	Width  int
	Height int
}

// Pipeline tuning
const (
	denoiseSigma = 0.8
	contrast     = 35
	sharpenSigma = 1.2
	jpegQuality  = 90
)

// ScanImage turns a photo of a document into a grayscale page.
// The photo is turned upright from its EXIF orientation, cleaned up, and centred
// on a white page of the given size.
func ScanImage(r io.Reader, page Page) (image.Image, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	img = applyOrientation(img, readOrientation(data))

	doc := imaging.Grayscale(img)
	doc = imaging.Blur(doc, denoiseSigma)
	doc = imaging.AdjustContrast(doc, contrast)
	doc = imaging.Sharpen(doc, sharpenSigma)
	doc = imaging.Fit(doc, page.Width, page.Height, imaging.Lanczos)

	canvas := imaging.New(page.Width, page.Height, color.White)
	return imaging.PasteCenter(canvas, doc), nil
}

// EncodeJPEG writes img as a JPEG
func EncodeJPEG(w io.Writer, img image.Image) error {
	return imaging.Encode(w, img, imaging.JPEG, imaging.JPEGQuality(jpegQuality))
}

// readOrientation returns the EXIF orientation tag, 1 when absent
func readOrientation(data []byte) int {
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return 1
	}
	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return 1
	}
	v, err := tag.Int(0)
	if err != nil || v < 1 || v > 8 {
		return 1
	}
	return v
}

func applyOrientation(img image.Image, orientation int) image.Image {
	switch orientation {
	case 2:
		return imaging.FlipH(img)
	case 3:
		return imaging.Rotate180(img)
	case 4:
		return imaging.FlipV(img)
	case 5:
		return imaging.Transpose(img)
	case 6:
		return imaging.Rotate270(img)
	case 7:
		return imaging.Transverse(img)
	case 8:
		return imaging.Rotate90(img)
	default:
		return img
	}
}
