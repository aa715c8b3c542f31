package extraction

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/talkops-ai/tfknowledge/core"
)

var requiredKeys = map[core.SchemaKind][]string{
	core.SchemaResource:     {"resource_type", "confidence"},
	core.SchemaBestPractice: {"title", "resource_type", "confidence"},
}

// ParseResponse extracts the first JSON object from a raw extractor response and
// decodes it into a record of the given schema.
//
// Malformed or missing JSON wraps ErrParse. JSON that decodes but fails the schema
// wraps ErrSchemaValidation. Provenance and extraction method claimed by the
// response are discarded.
func ParseResponse(raw string, schema core.SchemaKind) (core.Record, error) {
	keys, ok := requiredKeys[schema]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSchema, schema)
	}

	obj, err := locateObject(raw)
	if err != nil {
		return nil, err
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(obj), &fields); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrParse, err)
	}
	for _, k := range keys {
		v, ok := fields[k]
		if !ok || bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
			return nil, fmt.Errorf("%w: missing required field %q", ErrSchemaValidation, k)
		}
	}

	var rec core.Record
	switch schema {
	case core.SchemaResource:
		r := &core.ResourceRecord{}
		if err := json.Unmarshal([]byte(obj), r); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrSchemaValidation, err)
		}
		r.Provenance, r.ExtractionMethod = nil, ""
		rec = r
	case core.SchemaBestPractice:
		r := &core.BestPracticeRecord{}
		if err := json.Unmarshal([]byte(obj), r); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrSchemaValidation, err)
		}
		r.Provenance, r.ExtractionMethod = nil, ""
		rec = r
	}

	if err := rec.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSchemaValidation, err)
	}
	return rec, nil
}

// locateObject finds a syntactically valid JSON object in raw, repairing the
// response once if the first attempt fails.
func locateObject(raw string) (string, error) {
	text := stripFences(raw)
	if obj, ok := firstObject(text); ok && json.Valid([]byte(obj)) {
		return obj, nil
	}
	if obj, ok := firstObject(repairJSON(text)); ok && json.Valid([]byte(obj)) {
		return obj, nil
	}
	if !strings.Contains(text, "{") {
		return "", fmt.Errorf("%w: no JSON object in response", ErrParse)
	}
	return "", fmt.Errorf("%w: unbalanced or invalid JSON object", ErrParse)
}

// firstObject returns the first balanced {...} span in s. Braces inside JSON
// strings do not count.
func firstObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString, escaped := false, false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}
