/**
 * Redaction Aggregator
 *
 * Runs a pipeline against a document and folds the per-field results into a
 * single Decision. Permissive mode redacts whatever was found; strict mode
 * rejects on the first missing required field.
 */

package redaction

import (
	"fmt"
	"strings"

	"github.com/adverant/nexus/ocrr-worker/internal/logging"
)

// Mode selects the aggregation policy
type Mode int

const (
	// ModeStrict rejects on the first empty required field
	ModeStrict Mode = 0
	// ModePermissive redacts every available field
	ModePermissive Mode = 1
)

func (m Mode) String() string {
	if m == ModePermissive {
		return "permissive"
	}
	return "strict"
}

// ParseMode accepts "1"/"permissive" and "0"/"strict"
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "permissive":
		return ModePermissive, nil
	case "0", "strict":
		return ModeStrict, nil
	}
	return ModeStrict, fmt.Errorf("unknown document mode %q", s)
}

// Aggregator runs pipelines under one mode
type Aggregator struct {
	mode   Mode
	logger *logging.Logger
}

// NewAggregator creates an aggregator with an injected mode and logger
func NewAggregator(mode Mode, logger *logging.Logger) *Aggregator {
	if logger == nil {
		logger = logging.NewLogger("redaction")
	}
	return &Aggregator{mode: mode, logger: logger}
}

// Mode returns the aggregation policy
func (a *Aggregator) Mode() Mode {
	return a.mode
}

// Run executes the pipeline and returns the decision
func (a *Aggregator) Run(p *Pipeline, doc *Document) Decision {
	if a.mode == ModeStrict {
		return a.runStrict(p, doc)
	}
	return a.runPermissive(p, doc)
}

func (a *Aggregator) runPermissive(p *Pipeline, doc *Document) Decision {
	fields := make([]FieldResult, 0, len(p.Fields))
	for _, ex := range p.Fields {
		res := a.extract(p.Type, ex, doc)
		if !res.Found() {
			a.logger.Warn("field not found", "document", p.Type, "field", ex.Label)
		}
		fields = append(fields, res)
	}

	if !hasEvidence(p, fields) {
		return Decision{Status: StatusRejected, Message: p.Failure, DocumentType: p.Type}
	}
	return Decision{Status: StatusRedacted, Message: p.Success, DocumentType: p.Type, Fields: fields}
}

func (a *Aggregator) runStrict(p *Pipeline, doc *Document) Decision {
	fields := make([]FieldResult, 0, len(p.Fields))
	for _, ex := range p.Fields {
		res := a.extract(p.Type, ex, doc)
		if !res.Found() {
			if ex.Required {
				a.logger.Error("required field not found", "document", p.Type, "field", ex.Label)
				return Decision{Status: StatusRejected, Message: ex.Missing, DocumentType: p.Type, Fields: fields}
			}
			a.logger.Warn("field not found", "document", p.Type, "field", ex.Label)
		}
		fields = append(fields, res)
	}

	if !hasEvidence(p, fields) {
		return Decision{Status: StatusRejected, Message: p.Failure, DocumentType: p.Type}
	}
	return Decision{Status: StatusRedacted, Message: p.Success, DocumentType: p.Type, Fields: fields}
}

// extract runs one extractor, converting a panic into a not-found result
func (a *Aggregator) extract(t DocumentType, ex Extractor, doc *Document) (res FieldResult) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("extractor failed", "document", t, "field", ex.Label, "error", r)
			res = NotFound(ex.Label)
		}
	}()

	res = ex.Extract(doc)
	res.Label = ex.Label
	if !res.Found() {
		return NotFound(ex.Label)
	}
	return res
}

// hasEvidence reports whether any non-supporting field was found.
// fields is aligned with p.Fields up to its length.
func hasEvidence(p *Pipeline, fields []FieldResult) bool {
	for i, f := range fields {
		if i < len(p.Fields) && p.Fields[i].Supporting {
			continue
		}
		if f.Found() {
			return true
		}
	}
	return false
}
