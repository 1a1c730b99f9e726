/**
 * Redaction Report Writer
 *
 * Serializes a redaction decision into the two XML files consumed by the
 * downstream redaction tool:
 * - <name>.xml: one DatabaseRedaction record per rectangle, in field order
 * - <prefix>-RD_<rest>.xml: one indexvalue record per extracted field
 */

package report

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/adverant/nexus/ocrr-worker/internal/logging"
	"github.com/adverant/nexus/ocrr-worker/internal/redaction"
)

const xmlDeclaration = "<?xml version='1.0' encoding='utf-8'?>\n"

type database struct {
	XMLName     xml.Name        `xml:"DataBase"`
	Count       int             `xml:"Count"`
	Redactions  *redactionList  `xml:"DatabaseRedactions,omitempty"`
	IndexValues *indexValueList `xml:"indexvalues,omitempty"`
}

type redactionList struct {
	Records []record `xml:"DatabaseRedaction"`
}

type indexValueList struct {
	Records []record `xml:"indexvalue"`
}

type record struct {
	ID   int    `xml:"ID,attr"`
	Text string `xml:",chardata"`
}

// Writer writes report files into output directories
type Writer struct {
	logger *logging.Logger
}

// NewWriter creates a report writer
func NewWriter(logger *logging.Logger) *Writer {
	if logger == nil {
		logger = logging.NewLogger("report")
	}
	return &Writer{logger: logger}
}

// RedactionRecord formats one rectangle as a DatabaseRedaction record body
func RedactionRecord(ids IDs, index int, r redaction.Rectangle) string {
	return fmt.Sprintf("0,0,0,,,,0,0,0,0,0,0,,vv,CVDPS,vv,%d,%s,0,%d,%d,%d,%d,%d,0,0,",
		ids.FrameID, ids.DocumentID, index, r.X1, r.Y1, r.X2, r.Y2)
}

// IndexValueRecord formats one field as an indexvalue record body
func IndexValueRecord(ids IDs, f redaction.FieldResult) string {
	return fmt.Sprintf(`"Title": "%s", "FrameID": "%d", "DocID": "%s", "Value": "%s"`,
		f.Label, ids.FrameID, ids.DocumentID, f.Value)
}

// EncodeRedactions writes the redactions document for rects
func EncodeRedactions(w io.Writer, ids IDs, rects []redaction.Rectangle) error {
	list := &redactionList{Records: make([]record, 0, len(rects))}
	for i, r := range rects {
		list.Records = append(list.Records, record{ID: i + 1, Text: RedactionRecord(ids, i+1, r)})
	}
	return encode(w, database{Count: len(list.Records), Redactions: list})
}

// EncodeIndexValues writes the index-values document for fields
func EncodeIndexValues(w io.Writer, ids IDs, fields []redaction.FieldResult) error {
	list := &indexValueList{Records: make([]record, 0, len(fields))}
	for i, f := range fields {
		list.Records = append(list.Records, record{ID: i + 1, Text: IndexValueRecord(ids, f)})
	}
	return encode(w, database{Count: len(list.Records), IndexValues: list})
}

func encode(w io.Writer, doc database) error {
	if _, err := io.WriteString(w, xmlDeclaration); err != nil {
		return err
	}
	return xml.NewEncoder(w).Encode(doc)
}

// WriteRedacted writes both report files for a REDACTED decision and returns their paths
func (w *Writer) WriteRedacted(dir, documentName string, decision *redaction.Decision) ([]string, error) {
	ids := ParseIDs(documentName)

	redactionsPath := filepath.Join(dir, RedactionsFileName(documentName))
	if err := w.writeFile(redactionsPath, func(out io.Writer) error {
		return EncodeRedactions(out, ids, decision.Rectangles())
	}); err != nil {
		return nil, err
	}

	indexPath := filepath.Join(dir, IndexValuesFileName(documentName))
	if err := w.writeFile(indexPath, func(out io.Writer) error {
		return EncodeIndexValues(out, ids, decision.Fields)
	}); err != nil {
		return nil, err
	}

	w.logger.Info("Redaction report written",
		"document", documentName,
		"frameId", ids.FrameID,
		"documentId", ids.DocumentID,
		"rectangles", len(decision.Rectangles()))
	return []string{redactionsPath, indexPath}, nil
}

// WriteRejected writes a single-record redactions file covering region
func (w *Writer) WriteRejected(dir, documentName string, region redaction.Rectangle) (string, error) {
	ids := ParseIDs(documentName)
	path := filepath.Join(dir, RedactionsFileName(documentName))
	if err := w.writeFile(path, func(out io.Writer) error {
		return EncodeRedactions(out, ids, []redaction.Rectangle{region})
	}); err != nil {
		return "", err
	}

	w.logger.Info("Rejection report written", "document", documentName, "path", path)
	return path, nil
}

// writeFile replaces path atomically with the output of fill
func (w *Writer) writeFile(path string, fill func(io.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create report directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".report-*.xml")
	if err != nil {
		return fmt.Errorf("failed to create report file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := fill(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to encode report %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to flush report %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to move report into place: %w", err)
	}
	return nil
}
