package core

import (
	"slices"
	"time"
)

// SchemaKind selects the structured record an extraction targets.
type SchemaKind string

const (
	SchemaResource     SchemaKind = "resource"
	SchemaBestPractice SchemaKind = "best_practice"
)

// ExtractionMethod tags which source won a merge.
type ExtractionMethod string

const (
	MethodLLM  ExtractionMethod = "llm"
	MethodRule ExtractionMethod = "rule"
)

// Provenance fixes where, when and how a record was derived.
type Provenance struct {
	Source            string    `json:"source"`
	ChunkID           string    `json:"chunk_id"`
	ExtractionTime    time.Time `json:"extraction_time"`
	ExtractorIdentity string    `json:"extractor_identity"`
	PipelineVersion   string    `json:"pipeline_version"`
}

// Record is implemented by ResourceRecord and BestPracticeRecord.
type Record interface {
	// Schema reports which schema the record conforms to.
	Schema() SchemaKind

	// Score returns the self-assessed confidence.
	Score() float64

	// Stamp attaches provenance. A record that already carries provenance is left unchanged.
	Stamp(p Provenance)

	// Method returns the merge tag, empty before merging.
	Method() ExtractionMethod

	// Backfill copies fields from other into fields of the receiver that are empty.
	// Records of a different schema are ignored.
	Backfill(other Record)

	// Clone returns a deep copy.
	Clone() Record

	// Validate checks the record against its schema.
	Validate() error

	tag(m ExtractionMethod)
}

// Tag returns a copy of r tagged with the given extraction method.
func Tag(r Record, m ExtractionMethod) Record {
	c := r.Clone()
	c.tag(m)
	return c
}

// Argument is a resource input parameter.
type Argument struct {
	Name        string `json:"name"`
	Type        string `json:"type,omitempty"`
	Required    bool   `json:"required"`
	Description string `json:"description,omitempty"`
}

// Attribute is a resource output property.
type Attribute struct {
	Name        string `json:"name"`
	Type        string `json:"type,omitempty"`
	Description string `json:"description,omitempty"`
}

// ResourceRecord describes a Terraform resource or data source.
type ResourceRecord struct {
	ResourceType     string           `json:"resource_type"`
	Type             string           `json:"type,omitempty"`
	Service          string           `json:"service,omitempty"`
	Description      string           `json:"description,omitempty"`
	Arguments        []Argument       `json:"arguments"`
	Attributes       []Attribute      `json:"attributes"`
	Examples         []string         `json:"examples"`
	Notes            []string         `json:"notes"`
	Confidence       float64          `json:"confidence"`
	Provenance       *Provenance      `json:"provenance,omitempty"`
	ExtractionMethod ExtractionMethod `json:"extraction_method,omitempty"`
}

var _ Record = (*ResourceRecord)(nil)

func (r *ResourceRecord) Schema() SchemaKind       { return SchemaResource }
func (r *ResourceRecord) Score() float64           { return r.Confidence }
func (r *ResourceRecord) Method() ExtractionMethod { return r.ExtractionMethod }
func (r *ResourceRecord) tag(m ExtractionMethod)   { r.ExtractionMethod = m }

func (r *ResourceRecord) Stamp(p Provenance) {
	if r.Provenance == nil {
		r.Provenance = &p
	}
}

func (r *ResourceRecord) Backfill(other Record) {
	o, ok := other.(*ResourceRecord)
	if !ok || o == nil {
		return
	}
	fillString(&r.ResourceType, o.ResourceType)
	fillString(&r.Type, o.Type)
	fillString(&r.Service, o.Service)
	fillString(&r.Description, o.Description)
	if len(r.Arguments) == 0 {
		r.Arguments = slices.Clone(o.Arguments)
	}
	if len(r.Attributes) == 0 {
		r.Attributes = slices.Clone(o.Attributes)
	}
	fillSlice(&r.Examples, o.Examples)
	fillSlice(&r.Notes, o.Notes)
	if r.Provenance == nil && o.Provenance != nil {
		p := *o.Provenance
		r.Provenance = &p
	}
}

func (r *ResourceRecord) Clone() Record {
	c := *r
	c.Arguments = slices.Clone(r.Arguments)
	c.Attributes = slices.Clone(r.Attributes)
	c.Examples = slices.Clone(r.Examples)
	c.Notes = slices.Clone(r.Notes)
	if r.Provenance != nil {
		p := *r.Provenance
		c.Provenance = &p
	}
	return &c
}

// BestPracticeRecord holds recommendations extracted for a resource or context.
type BestPracticeRecord struct {
	Title            string           `json:"title"`
	ResourceType     string           `json:"resource_type"`
	BestPractices    []string         `json:"best_practices"`
	Security         []string         `json:"security"`
	Compliance       []string         `json:"compliance"`
	Pitfalls         []string         `json:"pitfalls"`
	Confidence       float64          `json:"confidence"`
	Provenance       *Provenance      `json:"provenance,omitempty"`
	ExtractionMethod ExtractionMethod `json:"extraction_method,omitempty"`
}

var _ Record = (*BestPracticeRecord)(nil)

func (r *BestPracticeRecord) Schema() SchemaKind       { return SchemaBestPractice }
func (r *BestPracticeRecord) Score() float64           { return r.Confidence }
func (r *BestPracticeRecord) Method() ExtractionMethod { return r.ExtractionMethod }
func (r *BestPracticeRecord) tag(m ExtractionMethod)   { r.ExtractionMethod = m }

func (r *BestPracticeRecord) Stamp(p Provenance) {
	if r.Provenance == nil {
		r.Provenance = &p
	}
}

func (r *BestPracticeRecord) Backfill(other Record) {
	o, ok := other.(*BestPracticeRecord)
	if !ok || o == nil {
		return
	}
	fillString(&r.Title, o.Title)
	fillString(&r.ResourceType, o.ResourceType)
	fillSlice(&r.BestPractices, o.BestPractices)
	fillSlice(&r.Security, o.Security)
	fillSlice(&r.Compliance, o.Compliance)
	fillSlice(&r.Pitfalls, o.Pitfalls)
	if r.Provenance == nil && o.Provenance != nil {
		p := *o.Provenance
		r.Provenance = &p
	}
}

func (r *BestPracticeRecord) Clone() Record {
	c := *r
	c.BestPractices = slices.Clone(r.BestPractices)
	c.Security = slices.Clone(r.Security)
	c.Compliance = slices.Clone(r.Compliance)
	c.Pitfalls = slices.Clone(r.Pitfalls)
	if r.Provenance != nil {
		p := *r.Provenance
		c.Provenance = &p
	}
	return &c
}

func fillString(dst *string, src string) {
	if *dst == "" {
		*dst = src
	}
}

func fillSlice(dst *[]string, src []string) {
	if len(*dst) == 0 {
		*dst = slices.Clone(src)
	}
}
