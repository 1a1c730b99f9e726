package redaction

import (
	"strings"
)

var ePANPipeline = register(&Pipeline{
	Type:    DocumentEPAN,
	Success: "Successfully Redacted E-PAN Card Document",
	Failure: "Unable to extract E-Pancard information",
	Fields: []Extractor{
		required("E-Pancard Number", "Unable to extract E-Pancard Number", ePANNumber),
		required("E-Pancard DOB", "Unable to extract E-Pancard DOB", panDOB),
		required("E-Pancard Gender", "Unable to extract E-Pancard Gender", func(doc *Document) FieldResult {
			return firstToken(doc.Default, MatchRegexp(reGender), 0)
		}),
		required("E-Pancard Name", "Unable to extract E-Pancard User name", func(doc *Document) FieldResult {
			return labelFollowedName(doc, "ata /Name")
		}),
		required("E-Pancard Father's Name", "Unable to extract E-Pancard Father's name", func(doc *Document) FieldResult {
			return labelFollowedName(doc, "Father")
		}),
		required("E-Pancard QR Code", "Unable to extract E-Pancard QR-Code", qrTopHalf),
		supporting("E-Pancard", ePANBottomBlock),
	},
})

// ePANNumber requires a digit so upper-case words of the same length are skipped
func ePANNumber(doc *Document) FieldResult {
	return firstToken(doc.Default, func(s string) bool {
		return IsAlnumUpper(s, 10) && HasDigit(s)
	}, FractionPAN)
}

// labelFollowedName takes the line after the first line containing label
func labelFollowedName(doc *Document, label string) FieldResult {
	lines := SplitLines(doc.DefaultText)
	idx, ok := lineIndex(lines, func(line string) bool { return strings.Contains(line, label) })
	if !ok || idx+1 >= len(lines) {
		return FieldResult{}
	}
	return mergedName(doc.Default, lineWords(lines[idx+1]))
}

// ePANBottomBlock masks the left half of the bottom fifth, where the signature and photo sit
func ePANBottomBlock(doc *Document) FieldResult {
	if doc.Width <= 0 || doc.Height <= 0 {
		return FieldResult{}
	}
	return FieldResult{
		Value: "E-Pancard",
		Rectangles: []Rectangle{{
			X1: 0,
			Y1: int(0.8 * float64(doc.Height)),
			X2: doc.Width / 2,
			Y2: doc.Height,
		}},
	}
}
