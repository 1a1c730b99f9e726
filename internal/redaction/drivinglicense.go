package redaction

import (
	"regexp"
	"strings"
)

var (
	reDLNameLabel = regexp.MustCompile(`(?i)\bname\b`)

	// relation markers printed after the holder's name (S/D/W of)
	dlRelationMarkers = EqualsAnyFold("s/dmw", "dmw", "s/")
)

var drivingLicensePipeline = register(&Pipeline{
	Type:    DocumentDrivingLicense,
	Success: "Successfully Redacted Driving License Document",
	Failure: "Unable to extract driving license information",
	Fields: []Extractor{
		required("Driving License Number", "Unable to extract driving license number", func(doc *Document) FieldResult {
			return firstToken(doc.Default, func(s string) bool { return IsAllDigits(s, 11) }, 0)
		}),
		required("Driving License Dates", "Unable to extract dates from driving license", func(doc *Document) FieldResult {
			return everyToken(doc.Default, MatchRegexp(reDate), FractionDate)
		}),
		required("Driving License Pincode", "Unable to extract pincode from driving license", func(doc *Document) FieldResult {
			return firstPincode(doc.Default)
		}),
		required("Driving License Place", "Unable to extract place from driving license", func(doc *Document) FieldResult {
			return places(doc.Default)
		}),
		required("Driving License Name", "Unable to extract name from driving license", drivingLicenseName),
	},
})

// drivingLicenseName merges the tokens between the name label and the relation marker
func drivingLicenseName(doc *Document) FieldResult {
	anchor, ok := FindAnchor(doc.Default, MatchRegexp(reDLNameLabel))
	if !ok {
		return FieldResult{}
	}

	name := ScanForward(doc.Default, anchor, dlRelationMarkers, nil)
	if len(name) == 0 {
		return FieldResult{}
	}
	return FieldResult{
		Value:      strings.Join(texts(name), " "),
		Rectangles: []Rectangle{MergeBoxes(name)},
	}
}
