package redaction

import (
	"regexp"
	"strings"
)

type typePredicate struct {
	docType DocumentType
	pattern *regexp.Regexp
}

// classifierOrder is evaluated top to bottom. Electronic variants come before their
// physical counterparts because their text also satisfies the physical predicate.
var classifierOrder = []typePredicate{
	{DocumentCDSL, regexp.MustCompile(`(?i)\b(?: cdsl|ventures|limited|kyc)\b`)},
	{DocumentEPAN, regexp.MustCompile(`(?i)\b(?: e-pan)\b`)},
	{DocumentPAN, regexp.MustCompile(`(?i)\b(?: account|petraancnt|income|tax|incometax|department|permanent|petianent|incometaxdepartment|incombtaxdepartment|pormanent|perenent|tincometaxdepakinent)\b`)},
	{DocumentEAadhaar, regexp.MustCompile(`(?i)\b(?:enrollment|enrolment|enroliment|/enrolment)\b`)},
	{DocumentAadhaar, regexp.MustCompile(`(?i)\b(?:uidal.gov.in|male|female|government of india)\b`)},
	{DocumentPassport, regexp.MustCompile(`(?i)\b(?:republic|jpassport|passport)\b`)},
	{DocumentDrivingLicense, regexp.MustCompile(`(?i)\b(?:union|driving|motor)\b`)},
}

// CleanLines lower-cases and trims text, dropping blank lines
func CleanLines(text string) []string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.ToLower(strings.TrimSpace(line))
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// Classify returns the first document type whose predicate matches any line
func Classify(lines []string) DocumentType {
	for _, p := range classifierOrder {
		for _, line := range lines {
			if p.pattern.MatchString(line) {
				return p.docType
			}
		}
	}
	return DocumentUnidentified
}
