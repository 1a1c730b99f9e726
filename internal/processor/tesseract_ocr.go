/**
 * Tesseract OCR
 *
 * Word boxes and plain text through gosseract. Each call owns its client so
 * passes can run concurrently on the same image.
 */

package processor

import (
	"context"
	"fmt"
	"strings"

	"github.com/otiai10/gosseract/v2"

	"github.com/adverant/nexus/ocrr-worker/internal/logging"
	"github.com/adverant/nexus/ocrr-worker/internal/redaction"
)

// OCREngine reads text and word boxes from an encoded image
type OCREngine interface {
	Tokens(ctx context.Context, image []byte, pass Pass) (redaction.TokenStream, error)
	Text(ctx context.Context, image []byte, pass Pass) (string, error)
}

// TesseractOCR handles OCR using Tesseract
type TesseractOCR struct {
	config *TesseractConfig
	logger *logging.Logger
}

// TesseractConfig holds Tesseract configuration
type TesseractConfig struct {
	// TessdataPrefix overrides the traineddata location when set
	TessdataPrefix string
	// Language for PassDefault, "eng" when empty
	Language string
	// RegionalLanguage for PassRegional, "hin+eng" when empty
	RegionalLanguage string
}

// NewTesseractOCR creates a new Tesseract OCR instance
func NewTesseractOCR(cfg *TesseractConfig, logger *logging.Logger) *TesseractOCR {
	if cfg == nil {
		cfg = &TesseractConfig{}
	}
	if cfg.Language == "" {
		cfg.Language = "eng"
	}
	if cfg.RegionalLanguage == "" {
		cfg.RegionalLanguage = "hin+eng"
	}
	if logger == nil {
		logger = logging.NewLogger("tesseract")
	}
	return &TesseractOCR{config: cfg, logger: logger}
}

// Languages returns the tesseract language list for a pass
func (t *TesseractOCR) Languages(pass Pass) []string {
	lang := t.config.Language
	if pass == PassRegional {
		lang = t.config.RegionalLanguage
	}
	return strings.Split(lang, "+")
}

// Text returns the plain-text rendering of the image
func (t *TesseractOCR) Text(ctx context.Context, image []byte, pass Pass) (string, error) {
	client, err := t.newClient(ctx, image, pass)
	if err != nil {
		return "", err
	}
	defer client.Close()

	text, err := client.Text()
	if err != nil {
		return "", fmt.Errorf("tesseract %s text failed: %w", pass, err)
	}
	return text, nil
}

// Tokens returns every recognized word with its pixel box, in reading order
func (t *TesseractOCR) Tokens(ctx context.Context, image []byte, pass Pass) (redaction.TokenStream, error) {
	client, err := t.newClient(ctx, image, pass)
	if err != nil {
		return nil, err
	}
	defer client.Close()

	boxes, err := client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return nil, fmt.Errorf("tesseract %s word boxes failed: %w", pass, err)
	}

	words := make([]OCRWord, 0, len(boxes))
	for _, b := range boxes {
		words = append(words, OCRWord{
			Text:       b.Word,
			Confidence: b.Confidence / 100.0,
			BoundingBox: BoundingBox{
				X:      b.Box.Min.X,
				Y:      b.Box.Min.Y,
				Width:  b.Box.Dx(),
				Height: b.Box.Dy(),
			},
		})
	}

	t.logger.Debug("Tesseract pass complete",
		"pass", pass.String(),
		"words", len(words),
		"confidence", meanConfidence(words))
	return toTokens(words), nil
}

func (t *TesseractOCR) newClient(ctx context.Context, image []byte, pass Pass) (*gosseract.Client, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	client := gosseract.NewClient()
	if t.config.TessdataPrefix != "" {
		if err := client.SetTessdataPrefix(t.config.TessdataPrefix); err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to set tessdata prefix: %w", err)
		}
	}
	if err := client.SetLanguage(t.Languages(pass)...); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to set languages: %w", err)
	}
	if err := client.SetImageFromBytes(image); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to set image: %w", err)
	}
	return client, nil
}
