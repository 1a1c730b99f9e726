/**
 * PAN Card Pipeline
 *
 * Physical PAN cards come in two layouts. Pattern 1 prints "Name" and
 * "Father's Name" labels above the values; pattern 2 prints the holder's
 * name under the department header and the father's name above the date
 * of birth, without labels.
 */

package redaction

import (
	"regexp"
	"strings"
)

// PANPattern identifies the physical PAN card layout
type PANPattern int

const (
	PANPatternLabelled   PANPattern = 1
	PANPatternUnlabelled PANPattern = 2
)

var (
	rePANAnchor = regexp.MustCompile(`\b(?:permanent|pe@fanent|pe@ffignent|pertianent|account|number|card|perenent|accoun|pormanent|petraancnt)\b`)

	panLayoutKeywords = EqualsAnyFold("name", "father's", "father", "/eather's", "uiname")

	rePANUsernameLabel = wordAnchor("name", "uiname")
	rePANFatherLabel   = wordAnchor("father's name", "father", "/eather's")

	// header lines under which pattern 2 prints the holder's name. Case-sensitive.
	panHeaderKeywords = []string{"OF INDIA", "GOVT. OF INDIA", " GOVT.", "INDIA", "INCOME", "TAX", "DEPARTMENT", "DEPARTNENT", "INCOME TAX DEPARTNENT"}

	rePANHeaderLine = regexp.MustCompile(`(?i)\b(?:department|departnent|income|sires|account|card|tax|govt|are|an|ad|z|of india)\b|[-=\d]+`)
	rePANBirthLine  = regexp.MustCompile(`(?i)\d{2}/\d{2}/\d{4}|\d{2}-\d{2}-\d{4}|bonn|birth`)

	panSignatureLabels = EqualsAnyFold("signature", "nature")

	reHasAlnum = regexp.MustCompile(`[a-zA-Z0-9]`)
)

var panPipeline = register(&Pipeline{
	Type:    DocumentPAN,
	Success: "Successfully Redacted PAN Card Document",
	Failure: "Unable to extract Pancard information",
	Fields: []Extractor{
		required("Pancard Number", "Unable to extract Pancard Number", panNumber),
		required("Pancard DOB", "Unable to extract DOB from Pancard Document", panDOB),
		required("Pancard Username", "Unable to extract Username from Pancard document", panUsername),
		required("Pancard Father's Name", "Unable to extract Father's name from Pancard document", panFatherName),
		supporting("Pancard Signature", panSignature),
		supporting("Pancard QR Code", qrTopHalf),
	},
})

// IdentifyPANPattern returns the labelled layout when any label keyword is present
func IdentifyPANPattern(stream TokenStream) PANPattern {
	if _, ok := FindAnchor(stream, panLayoutKeywords); ok {
		return PANPatternLabelled
	}
	return PANPatternUnlabelled
}

// panNumber looks for the 10-character number from the "Permanent Account Number"
// header onwards, or anywhere when the header was not read
func panNumber(doc *Document) FieldResult {
	start, ok := FindAnchor(doc.Default, func(s string) bool {
		return rePANAnchor.MatchString(strings.ToLower(s))
	})
	if !ok {
		start = 0
	}

	for _, tok := range doc.Default[start:] {
		value := ""
		switch {
		case IsAlnumUpper(tok.Text, 10):
			value = tok.Text
		case IsAlnum(tok.Text, 10):
			value = capitalize(tok.Text)
		default:
			continue
		}
		return FieldResult{Value: value, Rectangles: []Rectangle{CropWidth(tok.Box(), FractionPAN)}}
	}
	return FieldResult{}
}

func panDOB(doc *Document) FieldResult {
	return firstToken(doc.Default, MatchRegexp(reDate), FractionDate)
}

func panUsername(doc *Document) FieldResult {
	if IdentifyPANPattern(doc.Default) == PANPatternLabelled {
		return labelledPANName(doc, rePANUsernameLabel)
	}
	return unlabelledPANUsername(doc)
}

func panFatherName(doc *Document) FieldResult {
	if IdentifyPANPattern(doc.Default) == PANPatternLabelled {
		return labelledPANName(doc, rePANFatherLabel)
	}
	return unlabelledPANFatherName(doc)
}

// labelledPANName takes the first upper-case line after the label line
func labelledPANName(doc *Document, anchor *regexp.Regexp) FieldResult {
	lines := SplitLines(doc.DefaultText)
	idx, ok := lineIndex(lines, anchor.MatchString)
	if !ok {
		return FieldResult{}
	}
	return upperLineName(doc.Default, lines[idx+1:])
}

// unlabelledPANUsername takes the first upper-case line under the department header
// that is not itself part of the header
func unlabelledPANUsername(doc *Document) FieldResult {
	lines := SplitLines(doc.DefaultText)
	idx, ok := lineIndex(lines, func(line string) bool {
		for _, k := range panHeaderKeywords {
			if strings.Contains(line, k) {
				return true
			}
		}
		return false
	})
	if !ok {
		return FieldResult{}
	}

	var candidates []string
	for _, line := range lines[idx:] {
		if rePANHeaderLine.MatchString(strings.ToLower(line)) {
			continue
		}
		candidates = append(candidates, line)
	}
	return upperLineName(doc.Default, candidates)
}

// unlabelledPANFatherName walks up from the date-of-birth line to the first upper-case line.
// A single-character line directly above the date is OCR noise and skipped.
func unlabelledPANFatherName(doc *Document) FieldResult {
	lines := SplitLines(doc.DefaultText)
	reversed := make([]string, len(lines))
	for i, line := range lines {
		reversed[len(lines)-1-i] = line
	}

	idx, ok := lineIndex(reversed, rePANBirthLine.MatchString)
	if !ok || idx+1 >= len(reversed) {
		return FieldResult{}
	}
	next := idx + 1
	if len(reversed[next]) == 1 {
		next++
	}
	if next >= len(reversed) {
		return FieldResult{}
	}
	return upperLineName(doc.Default, reversed[next:])
}

// upperLineName picks the first upper-case line and merges the boxes of its words
func upperLineName(stream TokenStream, lines []string) FieldResult {
	for _, line := range lines {
		if !IsUpperText(line) {
			continue
		}
		var words []string
		for _, w := range lineWords(line) {
			if reHasAlnum.MatchString(w) {
				words = append(words, w)
			}
		}
		return mergedName(stream, words)
	}
	return FieldResult{}
}

// panSignature masks the signature next to its label on the regional pass.
// Labelled cards print the signature after the label, unlabelled cards before it.
func panSignature(doc *Document) FieldResult {
	stream := doc.Regional
	var rects []Rectangle

	if IdentifyPANPattern(doc.Default) == PANPatternLabelled {
		for i, tok := range stream {
			if panSignatureLabels(tok.Text) && i+1 < len(stream) {
				rects = append(rects, stream[i+1].Box())
			}
		}
	} else {
		for i, tok := range stream {
			if panSignatureLabels(tok.Text) {
				if i > 0 {
					rects = append(rects, stream[i-1].Box())
				}
				break
			}
		}
	}

	if len(rects) == 0 {
		return FieldResult{}
	}
	return FieldResult{Value: "User Signature", Rectangles: rects}
}

// wordAnchor matches any of the phrases as whole words, ignoring case
func wordAnchor(phrases ...string) *regexp.Regexp {
	quoted := make([]string, len(phrases))
	for i, p := range phrases {
		quoted[i] = regexp.QuoteMeta(p)
	}
	return regexp.MustCompile(`(?i)\b(?:` + strings.Join(quoted, "|") + `)\b`)
}

// capitalize upper-cases the first letter and lower-cases the rest
func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
}
