package redaction

// ExtractFunc locates one field in a document. It returns NotFound for expected absence.
type ExtractFunc func(doc *Document) FieldResult

// Extractor binds an extraction function to its label and aggregation policy
type Extractor struct {
	Label string

	// Missing is the rejection message used when a required field is empty in strict mode
	Missing string

	// Required fields abort a strict run when empty
	Required bool

	// Supporting fields never count as evidence that anything was extracted
	Supporting bool

	Extract ExtractFunc
}

// Pipeline is the ordered extractor list for one document type
type Pipeline struct {
	Type DocumentType

	// Success is the REDACTED message
	Success string

	// Failure is the generic REJECTED message when nothing was extracted
	Failure string

	Fields []Extractor
}

var pipelines = map[DocumentType]*Pipeline{}

func register(p *Pipeline) *Pipeline {
	pipelines[p.Type] = p
	return p
}

// PipelineFor returns the pipeline bound to a document type
func PipelineFor(t DocumentType) (*Pipeline, bool) {
	p, ok := pipelines[t]
	return p, ok
}

func required(label, missing string, fn ExtractFunc) Extractor {
	return Extractor{Label: label, Missing: missing, Required: true, Extract: fn}
}

func optional(label string, fn ExtractFunc) Extractor {
	return Extractor{Label: label, Missing: "Unable to extract " + label, Extract: fn}
}

func supporting(label string, fn ExtractFunc) Extractor {
	return Extractor{Label: label, Missing: "Unable to extract " + label, Supporting: true, Extract: fn}
}
