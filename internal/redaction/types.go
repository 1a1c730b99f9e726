/**
 * Redaction Core - Data Model
 *
 * Token streams produced by the OCR passes, the rectangles derived from them,
 * and the per-field / per-document results handed to the output side.
 */

package redaction

import (
	"encoding/json"
	"fmt"
)

// Token is a single OCR-recognized text fragment with its pixel box
type Token struct {
	X1   int
	Y1   int
	X2   int
	Y2   int
	Text string
}

// Box returns the token's bounding box
func (t Token) Box() Rectangle {
	return Rectangle{X1: t.X1, Y1: t.Y1, X2: t.X2, Y2: t.Y2}
}

// TokenStream is an ordered sequence of tokens for one (image, pass) combination.
// Order is OCR reading order.
type TokenStream []Token

// Rectangle is a pixel region to be blacked out
type Rectangle struct {
	X1 int
	Y1 int
	X2 int
	Y2 int
}

// MarshalJSON encodes the rectangle as [x1, y1, x2, y2]
func (r Rectangle) MarshalJSON() ([]byte, error) {
	return json.Marshal([4]int{r.X1, r.Y1, r.X2, r.Y2})
}

// UnmarshalJSON decodes a [x1, y1, x2, y2] array
func (r *Rectangle) UnmarshalJSON(data []byte) error {
	var coords [4]int
	if err := json.Unmarshal(data, &coords); err != nil {
		return fmt.Errorf("rectangle must be a 4-element array: %w", err)
	}
	r.X1, r.Y1, r.X2, r.Y2 = coords[0], coords[1], coords[2], coords[3]
	return nil
}

// FieldResult is the outcome of one field extractor
type FieldResult struct {
	Label      string      `json:"label"`
	Value      string      `json:"value"`
	Rectangles []Rectangle `json:"rectangles"`
}

// NotFound is the canonical empty result for a field
func NotFound(label string) FieldResult {
	return FieldResult{Label: label}
}

// Found reports whether the field produced at least one rectangle
func (f FieldResult) Found() bool {
	return len(f.Rectangles) > 0
}

// DocumentType identifies which pipeline handles a document
type DocumentType string

const (
	DocumentCDSL           DocumentType = "CDSL"
	DocumentEPAN           DocumentType = "E-PAN"
	DocumentPAN            DocumentType = "PAN"
	DocumentEAadhaar       DocumentType = "E-Aadhaar"
	DocumentAadhaar        DocumentType = "Aadhaar"
	DocumentPassport       DocumentType = "Passport"
	DocumentDrivingLicense DocumentType = "DrivingLicense"
	DocumentUnidentified   DocumentType = "Unidentified"
)

// Status is the terminal state of a document run
type Status string

const (
	StatusRedacted Status = "REDACTED"
	StatusRejected Status = "REJECTED"
)

// Decision is the aggregated outcome for one document
type Decision struct {
	Status       Status        `json:"status"`
	Message      string        `json:"message"`
	DocumentType DocumentType  `json:"documentType"`
	Fields       []FieldResult `json:"fields"`
}

// Rectangles flattens every field's rectangles in field order
func (d *Decision) Rectangles() []Rectangle {
	var rects []Rectangle
	for _, f := range d.Fields {
		rects = append(rects, f.Rectangles...)
	}
	return rects
}

// Document holds the materialized OCR output for one image.
// Streams and text are read-only once built.
type Document struct {
	// Default is the primary-script pass with punctuation-only tokens removed
	Default TokenStream
	// Regional is the secondary-script (hin+eng) pass
	Regional TokenStream
	// Raw is the primary-script pass without filtering
	Raw TokenStream

	DefaultText  string
	RegionalText string

	// QRCodes are the detector's boxes, in image coordinates
	QRCodes []Rectangle

	Width  int
	Height int
}
