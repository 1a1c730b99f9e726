/**
 * Image preprocessing
 *
 * Colour scans are flattened to grayscale and sharpened before OCR:
 * out = 1.5*gray - 0.2*blur(gray, sigma 1). Scans that are already
 * grayscale go to OCR untouched.
 */

package processor

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"math"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

const (
	blurSigma    = 1.0
	sharpenAlpha = 1.5
	sharpenBeta  = -0.2
)

// decodeImage decodes any registered format without EXIF rotation;
// report coordinates refer to the stored pixel layout.
func decodeImage(data []byte) (image.Image, error) {
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}

// encodePNG encodes img losslessly for the OCR engine
func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), nil
}

// IsGrayscale reports whether every pixel has equal red, green and blue
func IsGrayscale(img image.Image) bool {
	switch img.(type) {
	case *image.Gray, *image.Gray16:
		return true
	}

	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			if r != g || r != bl {
				return false
			}
		}
	}
	return true
}

// Sharpen converts img to grayscale and applies the unsharp weighting
func Sharpen(img image.Image) *image.NRGBA {
	gray := imaging.Grayscale(img)
	blur := imaging.Blur(gray, blurSigma)

	out := image.NewNRGBA(gray.Bounds())
	for i := 0; i+3 < len(gray.Pix); i += 4 {
		v := saturate(sharpenAlpha*float64(gray.Pix[i]) + sharpenBeta*float64(blur.Pix[i]))
		out.Pix[i] = v
		out.Pix[i+1] = v
		out.Pix[i+2] = v
		out.Pix[i+3] = gray.Pix[i+3]
	}
	return out
}

func saturate(v float64) uint8 {
	v = math.Round(v)
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}
