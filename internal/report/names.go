package report

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

var reFramedName = regexp.MustCompile(`^[0-9]+F[0-9a-fA-Z_-]+`)

// IDs are the frame and document identifiers encoded in an uploaded file name
type IDs struct {
	FrameID    int
	DocumentID string
}

// ParseIDs derives frame and document IDs from a document file name.
//
// Framed names look like "12F3a-4567X_page.jpg": the frame is the leading number
// minus one and the document ID is the segment after the first '-' without its
// last character ("4567"). Any other name has frame 0 and uses the segment
// before the first '_' without its last character.
func ParseIDs(documentName string) IDs {
	name := filepath.Base(documentName)
	head := strings.SplitN(name, "_", 2)[0]

	if reFramedName.MatchString(name) {
		framePart := strings.SplitN(baseName(name), "-", 2)[0]
		frame, err := strconv.Atoi(strings.SplitN(framePart, "F", 2)[0])
		if err == nil {
			if parts := strings.SplitN(head, "-", 2); len(parts) == 2 {
				return IDs{FrameID: frame - 1, DocumentID: dropLast(parts[1])}
			}
		}
	}
	return IDs{FrameID: 0, DocumentID: dropLast(head)}
}

// RedactionsFileName is the document name with its extension replaced by .xml
func RedactionsFileName(documentName string) string {
	return baseName(filepath.Base(documentName)) + ".xml"
}

// IndexValuesFileName inserts "-RD" before the first '_' of the document name
// and keeps only the following segment: "4567X_page_2.jpg" becomes "4567X-RD_page.xml"
func IndexValuesFileName(documentName string) string {
	parts := strings.Split(filepath.Base(documentName), "_")
	if len(parts) < 2 {
		return baseName(parts[0]) + "-RD.xml"
	}
	return baseName(parts[0]+"-RD_"+parts[1]) + ".xml"
}

// baseName cuts the name at its first '.'
func baseName(name string) string {
	return strings.SplitN(name, ".", 2)[0]
}

func dropLast(s string) string {
	r := []rune(s)
	if len(r) == 0 {
		return ""
	}
	return string(r[:len(r)-1])
}
