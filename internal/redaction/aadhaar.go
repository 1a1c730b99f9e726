package redaction

import (
	"regexp"
)

var (
	reAadhaarNameAnchor = regexp.MustCompile(`(?i)DOB|\d{1,2}/\d{1,2}/\d{4}|\d{4}`)
	reYearOfBirth       = EqualsAnyFold("year", "birth", "yob", "birth:", "yob:")
)

var aadhaarPipeline = register(&Pipeline{
	Type:    DocumentAadhaar,
	Success: "Successfully Redacted Aadhaar Card Document",
	Failure: "Unable to extract Aadhaar information",
	Fields: []Extractor{
		required("Aadhaar DOB", "Unable to extract DOB from Aadhaar Document", aadhaarDOB),
		required("Aadhaar Gender", "Unable to extract Gender from Aadhaar Document", aadhaarGender),
		required("Aadhaar Number", "Unable to extract Aadhaar Number", aadhaarNumberField),
		required("Aadhaar Name", "Unable to extract Aadhaar Name", aadhaarName),
		required("Aadhaar Regional Name", "Unable to extract Aadhaar Name in regional language", aadhaarRegionalName),
		optional("Aadhaar Place Name", func(doc *Document) FieldResult { return places(doc.Default) }),
		optional("Aadhaar Pincode", func(doc *Document) FieldResult { return pincodes(doc.Default) }),
		optional("Aadhaar QR Code", qrTopHalf),
	},
})

// aadhaarDOB finds the first valid date. Cards printing only the year of birth
// fall back to the 4-digit token following a "Year of Birth" label.
func aadhaarDOB(doc *Document) FieldResult {
	if res := firstToken(doc.Default, containsValidDate, FractionDate); res.Found() {
		return res
	}

	anchor, ok := FindAnchor(doc.Default, reYearOfBirth)
	if !ok {
		return FieldResult{}
	}
	// "Year of Birth :" puts up to four tokens between the anchor and the year
	for i := anchor + 1; i < len(doc.Default) && i <= anchor+4; i++ {
		tok := doc.Default[i]
		if IsAllDigits(tok.Text, 4) {
			return FieldResult{Value: tok.Text, Rectangles: []Rectangle{CropWidth(tok.Box(), FractionDate)}}
		}
	}
	return FieldResult{}
}

func aadhaarGender(doc *Document) FieldResult {
	return firstToken(doc.Default, MatchRegexp(reGender), 0)
}

// aadhaarNumberField reads the number groups printed below the last gender
// label; without one the number is not found
func aadhaarNumberField(doc *Document) FieldResult {
	start, ok := FindLastAnchor(doc.Default, MatchRegexp(reGender))
	if !ok {
		return FieldResult{}
	}
	return aadhaarNumber(doc.Default, start)
}

// aadhaarName takes the line printed above the date-of-birth line
func aadhaarName(doc *Document) FieldResult {
	lines := SplitLines(doc.DefaultText)
	for i := 1; i < len(lines); i++ {
		if reAadhaarNameAnchor.MatchString(lines[i]) {
			return mergedName(doc.Default, lineWords(lines[i-1]))
		}
	}
	return FieldResult{}
}

// aadhaarRegionalName takes the regional line two above the gender line
func aadhaarRegionalName(doc *Document) FieldResult {
	lines := SplitLines(doc.RegionalText)
	i, ok := lineIndex(lines, reGender.MatchString)
	if !ok || i < 2 {
		return FieldResult{}
	}
	return mergedName(doc.Regional, lineWords(lines[i-2]))
}
