package redaction

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	reDate      = regexp.MustCompile(`\d{2}/\d{2}/\d{4}|\d{2}-\d{2}-\d{4}`)
	reDateSlash = regexp.MustCompile(`\d{2}/\d{2}/\d{4}`)
	reGender    = regexp.MustCompile(`(?i)male|female`)
)

// firstToken returns the first token satisfying pred, cropped when fraction > 0
func firstToken(stream TokenStream, pred Predicate, fraction float64) FieldResult {
	i, ok := FindAnchor(stream, pred)
	if !ok {
		return FieldResult{}
	}
	tok := stream[i]
	box := tok.Box()
	if fraction > 0 {
		box = CropWidth(box, fraction)
	}
	return FieldResult{Value: tok.Text, Rectangles: []Rectangle{box}}
}

// everyToken returns all tokens satisfying pred, values space-joined, cropped when fraction > 0
func everyToken(stream TokenStream, pred Predicate, fraction float64) FieldResult {
	var matched []Token
	for _, tok := range stream {
		if pred(tok.Text) {
			matched = append(matched, tok)
		}
	}
	if len(matched) == 0 {
		return FieldResult{}
	}

	rects := boxes(matched)
	if fraction > 0 {
		rects = croppedBoxes(matched, fraction)
	}
	return FieldResult{Value: strings.Join(texts(matched), " "), Rectangles: rects}
}

// containsValidDate reports whether text carries a real dd/mm/yyyy or dd-mm-yyyy date
func containsValidDate(text string) bool {
	for _, m := range reDate.FindAllString(text, -1) {
		sep := "/"
		if strings.Contains(m, "-") {
			sep = "-"
		}
		if IsDate(m, sep) {
			return true
		}
	}
	return false
}

// mergedName turns name words into a single merged rectangle over the matching tokens.
// The trailing word is dropped when more than one word is present.
func mergedName(stream TokenStream, words []string) FieldResult {
	kept := DropTrailingWord(words)
	if len(kept) == 0 {
		return FieldResult{}
	}
	matched := collectWordTokens(stream, kept)
	if len(matched) == 0 {
		return FieldResult{}
	}
	return FieldResult{
		Value:      strings.Join(kept, " "),
		Rectangles: []Rectangle{MergeBoxes(matched)},
	}
}

// tokenwiseName redacts every token equal to one of the kept name words, box by box
func tokenwiseName(stream TokenStream, words []string) FieldResult {
	kept := DropTrailingWord(words)
	if len(kept) == 0 {
		return FieldResult{}
	}
	matched := allWordTokens(stream, kept)
	if len(matched) == 0 {
		return FieldResult{}
	}
	return FieldResult{Value: strings.Join(kept, " "), Rectangles: boxes(matched)}
}

// qrTopHalf masks the upper half of every detected QR code
func qrTopHalf(doc *Document) FieldResult {
	if len(doc.QRCodes) == 0 {
		return FieldResult{}
	}
	rects := make([]Rectangle, 0, len(doc.QRCodes))
	for _, qr := range doc.QRCodes {
		rects = append(rects, Rectangle{X1: qr.X1, Y1: qr.Y1, X2: qr.X2, Y2: (qr.Y1 + qr.Y2) / 2})
	}
	return FieldResult{Value: fmt.Sprintf("Found %d QR Codes", len(rects)), Rectangles: rects}
}

// places redacts every token naming a state, union territory or major city
func places(stream TokenStream) FieldResult {
	return everyToken(stream, IsPlace, 0)
}

// pincodes redacts every 6-digit token to 30% of its width
func pincodes(stream TokenStream) FieldResult {
	return everyToken(stream, func(s string) bool { return IsAllDigits(s, 6) }, FractionPincode)
}

// firstPincode redacts the first 6-digit token to 30% of its width
func firstPincode(stream TokenStream) FieldResult {
	return firstToken(stream, func(s string) bool { return IsAllDigits(s, 6) }, FractionPincode)
}

// aadhaarNumber collects the first three 4-digit groups at or after start, skipping
// groups beginning with "19" (years). The last group read stays visible, so at
// most the first two are redacted.
func aadhaarNumber(stream TokenStream, start int) FieldResult {
	var groups []Token
	for i := start; i < len(stream) && len(groups) < 3; i++ {
		text := stream[i].Text
		if IsAllDigits(text, 4) && !strings.HasPrefix(text, "19") {
			groups = append(groups, stream[i])
		}
	}
	if len(groups) == 0 {
		return FieldResult{}
	}

	redact := groups[:len(groups)-1]
	return FieldResult{Value: strings.Join(texts(groups), " "), Rectangles: boxes(redact)}
}

// lineWords splits a text line into words
func lineWords(line string) []string {
	return strings.Fields(line)
}

func lineIndex(lines []string, pred func(line string) bool) (int, bool) {
	for i, line := range lines {
		if pred(line) {
			return i, true
		}
	}
	return -1, false
}
