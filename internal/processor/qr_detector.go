/**
 * QR code detection
 *
 * gozxing finds one code per decode, so found codes are painted over and
 * the image is scanned again until nothing more decodes.
 */

package processor

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/qrcode"

	"github.com/adverant/nexus/ocrr-worker/internal/redaction"
)

const maxQRCodes = 4

// QRDetector locates QR codes in a decoded image
type QRDetector interface {
	Detect(img image.Image) ([]redaction.Rectangle, error)
}

// ZXingQRDetector detects QR codes with gozxing
type ZXingQRDetector struct {
	hints map[gozxing.DecodeHintType]interface{}
}

// NewZXingQRDetector creates a detector that tries hard on low-contrast scans
func NewZXingQRDetector() *ZXingQRDetector {
	return &ZXingQRDetector{
		hints: map[gozxing.DecodeHintType]interface{}{
			gozxing.DecodeHintType_TRY_HARDER: true,
		},
	}
}

// Detect returns one box per decoded QR code, in detection order
func (d *ZXingQRDetector) Detect(img image.Image) ([]redaction.Rectangle, error) {
	bounds := img.Bounds()
	canvas := image.NewRGBA(bounds)
	draw.Draw(canvas, bounds, img, bounds.Min, draw.Src)

	var found []redaction.Rectangle
	for len(found) < maxQRCodes {
		bmp, err := gozxing.NewBinaryBitmapFromImage(canvas)
		if err != nil {
			return found, err
		}

		result, err := qrcode.NewQRCodeReader().Decode(bmp, d.hints)
		if err != nil {
			// NotFound, checksum and format errors all mean no further readable code
			break
		}

		box, ok := qrBox(result.GetResultPoints(), bounds)
		if !ok {
			break
		}
		found = append(found, box)

		draw.Draw(canvas,
			image.Rect(box.X1, box.Y1, box.X2, box.Y2),
			image.NewUniform(color.White), image.Point{}, draw.Src)
	}
	return found, nil
}

// qrBox turns finder-pattern centres into a box around the whole symbol.
// Centres sit 3.5 modules inside the symbol edge, so the span is padded by a
// quarter on each side and clamped to the image.
func qrBox(points []gozxing.ResultPoint, bounds image.Rectangle) (redaction.Rectangle, bool) {
	if len(points) == 0 {
		return redaction.Rectangle{}, false
	}

	minX, minY := points[0].GetX(), points[0].GetY()
	maxX, maxY := minX, minY
	for _, p := range points[1:] {
		minX = min(minX, p.GetX())
		minY = min(minY, p.GetY())
		maxX = max(maxX, p.GetX())
		maxY = max(maxY, p.GetY())
	}

	pad := max(maxX-minX, maxY-minY) / 4
	r := image.Rect(
		int(minX-pad), int(minY-pad),
		int(maxX+pad+0.5), int(maxY+pad+0.5),
	).Intersect(bounds)
	if r.Empty() {
		return redaction.Rectangle{}, false
	}
	return redaction.Rectangle{X1: r.Min.X, Y1: r.Min.Y, X2: r.Max.X, Y2: r.Max.Y}, true
}
