package loader

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/talkops-ai/tfknowledge/core"
)

// BestPracticeConfidence is the confidence of a keyword-bucketed extraction.
const BestPracticeConfidence = 0.5

// GeneralResourceType is used when a best-practice text names no resource.
const GeneralResourceType = "general"

var (
	resourceTypeRe = regexp.MustCompile(`\baws_[a-z0-9_]+\b`)
	numberedRe     = regexp.MustCompile(`^\d+[.)]\s+`)
	markdownHeadRe = regexp.MustCompile(`^#{1,6}\s+`)
)

type bucket int

const (
	bucketBestPractices bucket = iota
	bucketSecurity
	bucketCompliance
	bucketPitfalls
)

// bucketFor classifies a heading by keyword.
func bucketFor(heading string) bucket {
	h := strings.ToLower(heading)
	switch {
	case strings.Contains(h, "pitfall"), strings.Contains(h, "avoid"), strings.Contains(h, "mistake"):
		return bucketPitfalls
	case strings.Contains(h, "security"):
		return bucketSecurity
	case strings.Contains(h, "compliance"):
		return bucketCompliance
	}
	return bucketBestPractices
}

// BestPracticeRule is the rule extractor for the best-practice schema. Bullets
// are sorted into lists by the keyword of the nearest heading above them.
func BestPracticeRule(chunk core.Chunk) (core.Record, error) {
	rec := &core.BestPracticeRecord{
		ResourceType: GeneralResourceType,
		Confidence:   BestPracticeConfidence,
	}
	if m := resourceTypeRe.FindString(chunk.Text); m != "" {
		rec.ResourceType = m
	}

	current := bucketBestPractices
	for _, line := range strings.Split(chunk.Text, "\n") {
		trimmed := strings.TrimSpace(line)
		if markdownHeadRe.MatchString(trimmed) {
			heading := strings.TrimSpace(markdownHeadRe.ReplaceAllString(trimmed, ""))
			if rec.Title == "" {
				rec.Title = heading
			}
			current = bucketFor(heading)
			continue
		}
		item, ok := bulletText(trimmed)
		if !ok {
			continue
		}
		switch current {
		case bucketSecurity:
			rec.Security = append(rec.Security, item)
		case bucketCompliance:
			rec.Compliance = append(rec.Compliance, item)
		case bucketPitfalls:
			rec.Pitfalls = append(rec.Pitfalls, item)
		default:
			rec.BestPractices = append(rec.BestPractices, item)
		}
	}

	if rec.Title == "" {
		rec.Title = fallbackTitle(chunk)
	}
	if rec.Title == "" {
		return nil, fmt.Errorf("%w: no title in chunk %s", ErrEmptyDocument, chunk.ID)
	}
	if err := rec.Validate(); err != nil {
		return nil, err
	}
	return rec, nil
}

func bulletText(line string) (string, bool) {
	for _, marker := range []string{"- ", "* ", "+ "} {
		if strings.HasPrefix(line, marker) {
			return strings.TrimSpace(line[len(marker):]), true
		}
	}
	if loc := numberedRe.FindStringIndex(line); loc != nil {
		return strings.TrimSpace(line[loc[1]:]), true
	}
	return "", false
}

func fallbackTitle(chunk core.Chunk) string {
	if chunk.Metadata.Name != "" {
		return chunk.Metadata.Name
	}
	base := filepath.Base(chunk.Metadata.Source)
	if base == "." || base == "/" {
		return ""
	}
	return strings.TrimSuffix(base, filepath.Ext(base))
}
