package redaction

import (
	"regexp"
	"strings"
)

const (
	// label lines printed under the surname and given-name values, as OCR reads them
	passportGivenNamesLabel = "faa ora arr /given names"
	passportSexLabel        = "fier /sex"
	passportSpouseLabel     = "name of spouse"
)

var rePassportAnchor = regexp.MustCompile(`(?i)passport`)

var passportPipeline = register(&Pipeline{
	Type:    DocumentPassport,
	Success: "Successfully Redacted Passport Document",
	Failure: "Unable to extract Passport information",
	Fields: []Extractor{
		required("Passport Number", "Unable to extract passport number", passportNumber),
		required("Passport Dates", "Unable to extract dates from passport document", func(doc *Document) FieldResult {
			return everyToken(doc.Default, MatchRegexp(reDateSlash), FractionDate)
		}),
		required("Passport Gender", "Unable to extract gender from passport", func(doc *Document) FieldResult {
			return firstToken(doc.Default, func(s string) bool { return s == "M" || s == "F" }, 0)
		}),
		required("Passport Surname", "Unable to extract surname from passport document", passportSurname),
		required("Passport Given Name", "Unable to extract given name from passport", passportGivenName),
		required("Passport Father Name", "Unable to extract father's name from passport", func(doc *Document) FieldResult {
			return passportParentName(doc, "Father", func(line string) bool {
				return strings.Contains(strings.ToLower(line), "mother")
			})
		}),
		required("Passport Mother Name", "Unable to extract mother name", func(doc *Document) FieldResult {
			return passportParentName(doc, "Mother", func(line string) bool {
				return strings.Contains(strings.ToLower(line), passportSpouseLabel)
			})
		}),
		required("Passport IND Name", "Unable to extract IND name from Passport", func(doc *Document) FieldResult {
			return firstToken(doc.Default, func(s string) bool {
				return strings.Contains(s, "IND") && strings.Contains(s, "<")
			}, FractionPassportName)
		}),
		required("Passport Pincode", "Unable to extract Pincode from Passport", func(doc *Document) FieldResult {
			return firstPincode(doc.Default)
		}),
		required("Passport Place", "Unable to extract Place name from Passport", func(doc *Document) FieldResult {
			return places(doc.Default)
		}),
	},
})

// passportNumber masks the number on the data page and its repeat in the machine readable zone
func passportNumber(doc *Document) FieldResult {
	anchor, ok := FindAnchor(doc.Default, MatchRegexp(rePassportAnchor))
	if !ok {
		return FieldResult{}
	}

	top := -1
	for i := anchor; i < len(doc.Default); i++ {
		if IsAlnumUpper(doc.Default[i].Text, 8) {
			top = i
			break
		}
	}
	if top < 0 {
		return FieldResult{}
	}

	number := doc.Default[top].Text
	rects := []Rectangle{doc.Default[top].Box()}
	for _, tok := range doc.Default[top+1:] {
		if strings.Contains(tok.Text, number) {
			rects = append(rects, tok.Box())
			break
		}
	}
	return FieldResult{Value: number, Rectangles: rects}
}

// passportSurname collects the lines between the surname label and the given-names label
func passportSurname(doc *Document) FieldResult {
	lines := SplitLines(doc.DefaultText)
	idx, ok := lineIndex(lines, func(line string) bool { return strings.Contains(line, "Surname") })
	if !ok || idx+2 > len(lines) {
		return FieldResult{}
	}
	return passportLineTokens(doc.Default, linesUntilLabel(lines[idx+2:], passportGivenNamesLabel))
}

// passportGivenName collects the lines between the given-names label and the sex label
func passportGivenName(doc *Document) FieldResult {
	lines := SplitLines(doc.DefaultText)
	idx, ok := lineIndex(lines, func(line string) bool { return strings.Contains(line, "Names") })
	if !ok {
		return FieldResult{}
	}
	return passportLineTokens(doc.Default, linesUntilLabel(lines[idx+1:], passportSexLabel))
}

// linesUntilLabel returns lines up to the first one that is a fragment of label
func linesUntilLabel(lines []string, label string) []string {
	var out []string
	for _, line := range lines {
		if strings.Contains(label, strings.ToLower(line)) {
			break
		}
		out = append(out, line)
	}
	return out
}

// passportLineTokens masks every token that reads as one of the collected lines
func passportLineTokens(stream TokenStream, lines []string) FieldResult {
	if len(lines) == 0 {
		return FieldResult{}
	}
	matched := allWordTokens(stream, lines)
	if len(matched) == 0 {
		return FieldResult{}
	}
	return FieldResult{
		Value:      strings.Join(texts(matched), " "),
		Rectangles: croppedBoxes(matched, FractionPassportName),
	}
}

// passportParentName collects the words after the label line until stop matches a line
func passportParentName(doc *Document, label string, stop func(line string) bool) FieldResult {
	lines := SplitLines(doc.DefaultText)
	idx, ok := lineIndex(lines, func(line string) bool { return strings.Contains(line, label) })
	if !ok {
		return FieldResult{}
	}

	var words []string
	for _, line := range lines[idx+1:] {
		if stop(line) {
			break
		}
		words = append(words, lineWords(line)...)
	}

	kept := DropTrailingWord(words)
	if len(kept) == 0 {
		return FieldResult{}
	}
	matched := collectWordTokens(doc.Default, kept)
	if len(matched) == 0 {
		return FieldResult{}
	}
	return FieldResult{
		Value:      strings.Join(kept, " "),
		Rectangles: croppedBoxes(matched, FractionPassportName),
	}
}
