/**
 * Redaction Engine
 *
 * Entry point of the redaction core: classify a document from its default-pass
 * text, then run the matching pipeline through the aggregator.
 */

package redaction

import (
	"github.com/adverant/nexus/ocrr-worker/internal/logging"
)

// UnidentifiedMessage is the rejection message for documents no classifier matched
const UnidentifiedMessage = "Unidentified Document"

// Engine classifies and redacts documents under a fixed mode
type Engine struct {
	aggregator *Aggregator
	logger     *logging.Logger
}

// NewEngine creates an engine. A nil logger falls back to a "redaction" component logger.
func NewEngine(mode Mode, logger *logging.Logger) *Engine {
	if logger == nil {
		logger = logging.NewLogger("redaction")
	}
	return &Engine{
		aggregator: NewAggregator(mode, logger),
		logger:     logger,
	}
}

// Mode returns the engine's aggregation policy
func (e *Engine) Mode() Mode {
	return e.aggregator.Mode()
}

// Classify identifies the document type from its default-pass text
func (e *Engine) Classify(doc *Document) DocumentType {
	return Classify(CleanLines(doc.DefaultText))
}

// Redact classifies the document and runs its pipeline
func (e *Engine) Redact(doc *Document) Decision {
	docType := e.Classify(doc)
	return e.RedactAs(docType, doc)
}

// RedactAs runs the pipeline for a known document type
func (e *Engine) RedactAs(docType DocumentType, doc *Document) Decision {
	pipeline, ok := PipelineFor(docType)
	if !ok {
		e.logger.Warn("document not identified", "documentType", docType)
		return Decision{Status: StatusRejected, Message: UnidentifiedMessage, DocumentType: DocumentUnidentified}
	}

	decision := e.aggregator.Run(pipeline, doc)
	e.logger.Info("document processed",
		"documentType", docType,
		"status", decision.Status,
		"fields", len(decision.Fields),
		"mode", e.aggregator.Mode().String())
	return decision
}

// RejectedRegion is the block drawn over a rejected document: the full width,
// top three quarters of the height
func RejectedRegion(width, height int) Rectangle {
	return Rectangle{X1: 0, Y1: 0, X2: width, Y2: int(0.75 * float64(height))}
}
