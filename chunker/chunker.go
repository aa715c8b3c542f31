// Package chunker splits one structured record into topic-scoped semantic
// chunks that share the record's identity metadata.
package chunker

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/talkops-ai/tfknowledge/core"
)

// DefaultProvider is stamped on every chunk unless overridden.
const DefaultProvider = "aws"

const bestPracticeService = "best_practice"

var (
	resourceSections     = []core.ChunkType{core.ChunkTypeOverview, core.ChunkTypeArguments, core.ChunkTypeAttributes, core.ChunkTypeExamples, core.ChunkTypeNotes}
	bestPracticeSections = []core.ChunkType{core.ChunkTypeOverview, core.ChunkTypeBestPractices, core.ChunkTypeSecurity, core.ChunkTypeCompliance, core.ChunkTypePitfalls}
)

// Chunker renders records into SemanticChunks. It performs no I/O.
type Chunker struct {
	provider string
}

// Option configures a Chunker.
type Option func(*Chunker)

// WithProvider sets the provider name written into every chunk header.
func WithProvider(provider string) Option {
	return func(c *Chunker) {
		if provider != "" {
			c.provider = provider
		}
	}
}

// New creates a Chunker.
func New(opts ...Option) *Chunker {
	c := &Chunker{provider: DefaultProvider}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Chunk dispatches on the record's schema.
func (c *Chunker) Chunk(rec core.Record) []core.SemanticChunk {
	switch r := rec.(type) {
	case *core.ResourceRecord:
		return c.ChunkResource(r)
	case *core.BestPracticeRecord:
		return c.ChunkBestPractice(r)
	}
	return nil
}

// ChunkResource emits the overview chunk followed by one chunk for each
// non-empty section among arguments, attributes, examples and notes.
// List items keep their input order.
func (c *Chunker) ChunkResource(r *core.ResourceRecord) []core.SemanticChunk {
	kind := r.Type
	if kind == "" {
		kind = string(core.DocTypeResource)
	}
	h := header{provider: c.provider, service: r.Service, name: r.ResourceType, kind: kind}

	overview := h.String()
	if r.Description != "" {
		overview += "\nDescription: " + r.Description
	}

	sections := map[core.ChunkType]string{
		core.ChunkTypeOverview:   overview,
		core.ChunkTypeArguments:  h.section("Arguments:", renderArguments(r.Arguments)),
		core.ChunkTypeAttributes: h.section("Attributes:", renderAttributes(r.Attributes)),
		core.ChunkTypeExamples:   h.section("Examples:", renderExamples(r.Examples)),
		core.ChunkTypeNotes:      h.section("Notes:", bullets(r.Notes)),
	}
	return h.emit(resourceSections, sections)
}

// ChunkBestPractice emits the overview chunk followed by one chunk for each
// non-empty list among best practices, security, compliance and pitfalls.
func (c *Chunker) ChunkBestPractice(r *core.BestPracticeRecord) []core.SemanticChunk {
	h := header{
		provider:     c.provider,
		service:      bestPracticeService,
		name:         r.Title,
		kind:         string(core.DocTypeBestPractice),
		resourceType: r.ResourceType,
		hasResource:  true,
	}

	overview := h.String() + "\nConfidence: " + strconv.FormatFloat(r.Confidence, 'f', -1, 64)

	sections := map[core.ChunkType]string{
		core.ChunkTypeOverview:      overview,
		core.ChunkTypeBestPractices: h.section("Best Practice Recommendations:", numbered(r.BestPractices)),
		core.ChunkTypeSecurity:      h.section("Security Recommendations:", numbered(r.Security)),
		core.ChunkTypeCompliance:    h.section("Compliance Requirements:", numbered(r.Compliance)),
		core.ChunkTypePitfalls:      h.section("Common Pitfalls to Avoid:", numbered(r.Pitfalls)),
	}
	return h.emit(bestPracticeSections, sections)
}

// header is the identity block shared by every chunk of one record.
type header struct {
	provider     string
	service      string
	name         string
	kind         string
	resourceType string
	hasResource  bool
}

func (h header) String() string {
	s := fmt.Sprintf("Provider: %s\nService: %s\nName: %s\nType: %s", h.provider, h.service, h.name, h.kind)
	if h.hasResource {
		s += "\nResource Type: " + h.resourceType
	}
	return s
}

// section returns the header, a blank line, the title and the lines, or "" when
// there are no lines.
func (h header) section(title string, lines []string) string {
	if len(lines) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(h.String())
	b.WriteString("\n\n")
	b.WriteString(title)
	for _, l := range lines {
		b.WriteByte('\n')
		b.WriteString(l)
	}
	return b.String()
}

func (h header) emit(order []core.ChunkType, content map[core.ChunkType]string) []core.SemanticChunk {
	out := make([]core.SemanticChunk, 0, len(order))
	for _, ct := range order {
		text := content[ct]
		if text == "" {
			continue
		}
		out = append(out, core.SemanticChunk{
			Content:   text,
			Provider:  h.provider,
			Service:   h.service,
			Name:      h.name,
			Type:      h.kind,
			ChunkType: ct,
		})
	}
	return out
}

func renderArguments(args []core.Argument) []string {
	lines := make([]string, 0, len(args))
	for _, a := range args {
		line := "- " + a.Name
		if a.Required {
			line += " (required)"
		}
		if a.Type != "" {
			line += " - " + a.Type
		}
		if a.Description != "" {
			line += ": " + a.Description
		}
		lines = append(lines, line)
	}
	return lines
}

func renderAttributes(attrs []core.Attribute) []string {
	lines := make([]string, 0, len(attrs))
	for _, a := range attrs {
		line := "- " + a.Name
		if a.Type != "" {
			line += " (" + a.Type + ")"
		}
		if a.Description != "" {
			line += ": " + a.Description
		}
		lines = append(lines, line)
	}
	return lines
}

func renderExamples(examples []string) []string {
	lines := make([]string, 0, 3*len(examples))
	for i, ex := range examples {
		lines = append(lines, fmt.Sprintf("Example %d:", i+1), ex, "")
	}
	return lines
}

func bullets(items []string) []string {
	lines := make([]string, 0, len(items))
	for _, it := range items {
		lines = append(lines, "- "+it)
	}
	return lines
}

func numbered(items []string) []string {
	lines := make([]string, 0, len(items))
	for i, it := range items {
		lines = append(lines, fmt.Sprintf("%d. %s", i+1, it))
	}
	return lines
}
