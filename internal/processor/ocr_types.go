/**
 * OCR Types - Shared data structures for OCR operations
 *
 * Word boxes as reported by the OCR engine and their conversion into the
 * token streams the redaction core scans.
 */

package processor

import (
	"strings"
	"unicode"

	"github.com/adverant/nexus/ocrr-worker/internal/redaction"
)

// Pass selects the language configuration of an OCR run
type Pass int

const (
	// PassDefault reads the primary script
	PassDefault Pass = iota
	// PassRegional reads the regional script together with the primary one
	PassRegional
)

func (p Pass) String() string {
	if p == PassRegional {
		return "regional"
	}
	return "default"
}

// OCRWord represents a single word with bounding box
type OCRWord struct {
	Text        string
	Confidence  float64
	BoundingBox BoundingBox
}

// BoundingBox represents coordinates of a region
type BoundingBox struct {
	X      int
	Y      int
	Width  int
	Height int
}

// toTokens converts OCR words into a token stream, keeping reading order.
// Blank words are dropped.
func toTokens(words []OCRWord) redaction.TokenStream {
	stream := make(redaction.TokenStream, 0, len(words))
	for _, w := range words {
		text := strings.TrimSpace(w.Text)
		if text == "" {
			continue
		}
		b := w.BoundingBox
		stream = append(stream, redaction.Token{
			X1:   b.X,
			Y1:   b.Y,
			X2:   b.X + b.Width,
			Y2:   b.Y + b.Height,
			Text: text,
		})
	}
	return stream
}

// filterTokens returns the tokens whose text satisfies keep, in order
func filterTokens(stream redaction.TokenStream, keep func(string) bool) redaction.TokenStream {
	out := make(redaction.TokenStream, 0, len(stream))
	for _, t := range stream {
		if keep(t.Text) {
			out = append(out, t)
		}
	}
	return out
}

// hasWordRune is the default-stream filter: punctuation-only tokens carry nothing to redact
func hasWordRune(text string) bool {
	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return true
		}
	}
	return false
}

// meanConfidence averages word confidences on a 0..1 scale
func meanConfidence(words []OCRWord) float64 {
	if len(words) == 0 {
		return 0
	}
	var sum float64
	for _, w := range words {
		sum += w.Confidence
	}
	return sum / float64(len(words))
}
