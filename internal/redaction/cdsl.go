package redaction

import (
	"regexp"
	"strings"
)

var reCDSLPanLine = regexp.MustCompile(`(?i)\bpan no\b`)

var cdslPipeline = register(&Pipeline{
	Type:    DocumentCDSL,
	Success: "Successfully Redacted CDSL Document",
	Failure: "Unable to extract CDSL information",
	Fields: []Extractor{
		required("CDSL Pancard Number", "Unable to extract Pancard Number from CDSL", func(doc *Document) FieldResult {
			return firstToken(doc.Default, func(s string) bool { return IsAlnumUpper(s, 10) }, FractionPAN)
		}),
		required("CDSL Name", "Unable to extract Name from CDSL", cdslName),
	},
})

// cdslName reads the line after the "PAN No" line, minus its "Name :" label
func cdslName(doc *Document) FieldResult {
	lines := SplitLines(doc.DefaultText)
	idx, ok := lineIndex(lines, reCDSLPanLine.MatchString)
	if !ok || idx+1 >= len(lines) {
		return FieldResult{}
	}

	var words []string
	for _, w := range lineWords(lines[idx+1]) {
		switch strings.ToLower(w) {
		case "name", ":":
			continue
		}
		words = append(words, w)
	}
	return mergedName(doc.Default, words)
}
