package extraction

import (
	"fmt"

	"github.com/talkops-ai/tfknowledge/core"
)

const resourceSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "title": "TerraformResource",
  "type": "object",
  "properties": {
    "resource_type": {"type": "string", "description": "Terraform resource type, e.g. aws_s3_bucket"},
    "type": {"type": "string", "enum": ["resource", "data_source"]},
    "service": {"type": "string"},
    "description": {"type": "string"},
    "arguments": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "name": {"type": "string"},
          "type": {"type": "string"},
          "required": {"type": "boolean"},
          "description": {"type": "string"}
        },
        "required": ["name"]
      }
    },
    "attributes": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "name": {"type": "string"},
          "type": {"type": "string"},
          "description": {"type": "string"}
        },
        "required": ["name"]
      }
    },
    "examples": {"type": "array", "items": {"type": "string"}},
    "notes": {"type": "array", "items": {"type": "string"}},
    "confidence": {"type": "number", "minimum": 0.0, "maximum": 1.0}
  },
  "required": ["resource_type", "confidence"]
}`

const bestPracticeSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "title": "BestPractice",
  "type": "object",
  "properties": {
    "title": {"type": "string", "description": "concise descriptive title, 3-12 words"},
    "resource_type": {"type": "string", "description": "Terraform resource or context this applies to"},
    "best_practices": {"type": "array", "items": {"type": "string"}},
    "security": {"type": "array", "items": {"type": "string"}},
    "compliance": {"type": "array", "items": {"type": "string"}},
    "pitfalls": {"type": "array", "items": {"type": "string"}},
    "confidence": {"type": "number", "minimum": 0.0, "maximum": 1.0}
  },
  "required": ["title", "resource_type", "confidence"]
}`

const confidenceInstructions = `Include a field "confidence" (number, 0.0-1.0) indicating how certain you are about the correctness of this extraction.
A confidence of 1.0 means you are completely certain; 0.0 means you are guessing.`

const resourcePromptTemplate = `You are an expert in Terraform documentation extraction.
Extract the following information from the provided text and respond ONLY with a JSON object matching this schema.
Do not include any preamble or explanation. Start your response with { and end it with }.
%s

%s

Text:
%s
`

const bestPracticePromptTemplate = `You are an expert in Terraform security and best practices.
For the best practice described in the text, extract:
- "title": a concise, descriptive title (required, 3-12 words).
- "resource_type": the Terraform resource or context this applies to.
- "best_practices": list of recommendations.
- "security", "compliance" and "pitfalls": lists of the matching guidance.
Respond ONLY with a JSON object matching this schema. Start your response with { and end it with }.
%s

%s

Text:
%s
`

// BuildPrompt returns the extraction prompt for text under schema.
// The output depends only on its inputs.
func BuildPrompt(text string, schema core.SchemaKind) (string, error) {
	switch schema {
	case core.SchemaResource:
		return fmt.Sprintf(resourcePromptTemplate, confidenceInstructions, resourceSchema, text), nil
	case core.SchemaBestPractice:
		return fmt.Sprintf(bestPracticePromptTemplate, confidenceInstructions, bestPracticeSchema, text), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownSchema, schema)
}
