package redaction

import (
	"regexp"
	"strings"
)

var (
	eAadhaarGenderWords = EqualsAnyFold("male", "female", "femalp")
	eAadhaarGenderStop  = regexp.MustCompile(`^\d{2}/\d{2}/\d{4}$|^\d{4}$`)

	// substrings that mark the date-of-birth line, including common misreads
	eAadhaarBirthKeywords = []string{"dob", "birth", "bith", "year", "binh"}

	// the letter's "To" address header as printed and as commonly misread
	reEAadhaarAddressee = regexp.MustCompile(`(?i)\b(?:ata arate tahar|ace|ta|ata|arate|tahar|to)\b`)

	reEAadhaarRegionalAnchor = regexp.MustCompile(`(?i)\b(?:dob|birth|bith|year|binh|008)\b`)
)

var eAadhaarPipeline = register(&Pipeline{
	Type:    DocumentEAadhaar,
	Success: "Successfully Redacted E-Aadhaar Card Document",
	Failure: "Unable to extract E-Aadhaar information",
	Fields: []Extractor{
		required("E-Aadhaar Regional Name", "Unable to extract name in regional from E-Aadhaar Document", eAadhaarRegionalName),
		required("E-Aadhaar Name", "Unable to extract name in english from E-Aadhaar Document", eAadhaarName),
		required("E-Aadhaar DOB", "Unable to extract DOB from E-Aadhaar Document", eAadhaarDOB),
		required("E-Aadhaar Gender", "Unable to extract gender from E-Aadhaar Document", eAadhaarGender),
		required("E-Aadhaar Number", "Unable to extract aadhaar card number", eAadhaarNumber),
		required("E-Aadhaar Mobile Number", "Unable to extract aadhaar mobile number", eAadhaarMobile),
		required("E-Aadhaar Pincode", "Unable to extract aadhaar pincode", func(doc *Document) FieldResult { return pincodes(doc.Raw) }),
		required("E-Aadhaar QR Code", "Unable to extract aadhaar QR-Code", qrTopHalf),
		optional("E-Aadhaar Place Name", func(doc *Document) FieldResult { return places(doc.Raw) }),
	},
})

func isSlashDate(text string) bool {
	return IsDate(text, "/")
}

func eAadhaarDOB(doc *Document) FieldResult {
	if res := firstToken(doc.Default, isSlashDate, FractionDate); res.Found() {
		return res
	}
	return firstToken(doc.Raw, isSlashDate, FractionDate)
}

// eAadhaarGender spans from the gender word back to the token after the date of birth,
// covering the regional gender word printed before it
func eAadhaarGender(doc *Document) FieldResult {
	idx := -1
	for i := 1; i < len(doc.Default); i++ {
		if eAadhaarGenderWords(doc.Default[i].Text) {
			idx = i
			break
		}
	}
	if idx < 0 {
		return FieldResult{}
	}

	gender := doc.Default[idx]
	earliest := gender
	for i := idx - 1; i >= 0; i-- {
		if eAadhaarGenderStop.MatchString(doc.Default[i].Text) {
			break
		}
		earliest = doc.Default[i]
	}

	return FieldResult{
		Value:      gender.Text,
		Rectangles: []Rectangle{{X1: earliest.X1, Y1: earliest.Y1, X2: gender.X2, Y2: gender.Y2}},
	}
}

func eAadhaarNumber(doc *Document) FieldResult {
	start, ok := FindLastAnchor(doc.Raw, eAadhaarGenderWords)
	if !ok {
		return FieldResult{}
	}
	return aadhaarNumber(doc.Raw, start)
}

// eAadhaarName reads the line above the date of birth, or failing that the
// first capitalised line after the addressee header
func eAadhaarName(doc *Document) FieldResult {
	lines := SplitLines(doc.DefaultText)

	var words []string
	for i, line := range lines {
		if containsAny(strings.ToLower(line), eAadhaarBirthKeywords) {
			if i > 0 {
				words = lineWords(lines[i-1])
			}
			break
		}
	}

	if len(words) == 0 {
		start, ok := lineIndex(lines, reEAadhaarAddressee.MatchString)
		if !ok {
			return FieldResult{}
		}
		for _, line := range lines[start+1:] {
			candidate := lineWords(line)
			if !hasLowerWord(candidate) {
				words = candidate
				break
			}
		}
	}
	if len(words) == 0 {
		return FieldResult{}
	}
	return tokenwiseName(doc.Raw, words)
}

func eAadhaarRegionalName(doc *Document) FieldResult {
	lines := SplitLines(doc.RegionalText)
	i, ok := lineIndex(lines, reEAadhaarRegionalAnchor.MatchString)
	if !ok || i < 2 {
		return FieldResult{}
	}
	return tokenwiseName(doc.Regional, lineWords(lines[i-2]))
}

// eAadhaarMobile masks the leading digits of the first 10-digit number
func eAadhaarMobile(doc *Document) FieldResult {
	return firstToken(doc.Raw, func(s string) bool { return IsAllDigits(s, 10) }, FractionDate)
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func hasLowerWord(words []string) bool {
	for _, w := range words {
		if IsLowerText(w) {
			return true
		}
	}
	return false
}
