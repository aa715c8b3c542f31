package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResourceRecord_Validate(t *testing.T) {
	tests := []struct {
		name    string
		record  ResourceRecord
		wantErr error
	}{
		{
			name:   "valid",
			record: ResourceRecord{ResourceType: "aws_s3_bucket", Confidence: 0.8, Arguments: []Argument{{Name: "bucket"}}},
		},
		{
			name:    "missing resource type",
			record:  ResourceRecord{Confidence: 0.8},
			wantErr: ErrMissingIdentity,
		},
		{
			name:    "confidence above one",
			record:  ResourceRecord{ResourceType: "aws_s3_bucket", Confidence: 1.2},
			wantErr: ErrConfidenceRange,
		},
		{
			name:    "negative confidence",
			record:  ResourceRecord{ResourceType: "aws_s3_bucket", Confidence: -0.1},
			wantErr: ErrConfidenceRange,
		},
		{
			name:    "unnamed argument",
			record:  ResourceRecord{ResourceType: "aws_s3_bucket", Arguments: []Argument{{Description: "x"}}},
			wantErr: ErrUnnamedField,
		},
		{
			name:    "unnamed attribute",
			record:  ResourceRecord{ResourceType: "aws_s3_bucket", Attributes: []Attribute{{Type: "string"}}},
			wantErr: ErrUnnamedField,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.record.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, ErrInvalidRecord)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestBestPracticeRecord_Validate(t *testing.T) {
	assert.NoError(t, (&BestPracticeRecord{Title: "S3", ResourceType: "aws_s3_bucket", Confidence: 1}).Validate())
	assert.ErrorIs(t, (&BestPracticeRecord{ResourceType: "aws_s3_bucket"}).Validate(), ErrMissingIdentity)
	assert.ErrorIs(t, (&BestPracticeRecord{Title: "S3"}).Validate(), ErrMissingIdentity)
	assert.ErrorIs(t, (&BestPracticeRecord{Title: "S3", ResourceType: "general", Confidence: 2}).Validate(), ErrConfidenceRange)
}

func TestResourceRecord_Backfill(t *testing.T) {
	llm := &ResourceRecord{
		ResourceType: "aws_s3_bucket",
		Description:  "from llm",
		Notes:        []string{},
		Confidence:   0.9,
	}
	rule := &ResourceRecord{
		ResourceType: "ignored",
		Service:      "S3",
		Description:  "from rule",
		Arguments:    []Argument{{Name: "bucket", Required: true}},
		Notes:        []string{"note"},
		Confidence:   0.2,
	}

	llm.Backfill(rule)

	assert.Equal(t, "aws_s3_bucket", llm.ResourceType)
	assert.Equal(t, "from llm", llm.Description)
	assert.Equal(t, "S3", llm.Service)
	assert.Equal(t, []Argument{{Name: "bucket", Required: true}}, llm.Arguments)
	assert.Equal(t, []string{"note"}, llm.Notes)
	assert.Equal(t, 0.9, llm.Confidence)

	// The source must not alias the receiver.
	rule.Arguments[0].Name = "changed"
	assert.Equal(t, "bucket", llm.Arguments[0].Name)
}

func TestBackfill_IgnoresOtherSchema(t *testing.T) {
	r := &ResourceRecord{}
	r.Backfill(&BestPracticeRecord{Title: "x", ResourceType: "aws_s3_bucket"})
	assert.Empty(t, r.ResourceType)
}

func TestBestPracticeRecord_Clone(t *testing.T) {
	orig := &BestPracticeRecord{
		Title:         "S3",
		ResourceType:  "aws_s3_bucket",
		BestPractices: []string{"enable versioning"},
		Provenance:    &Provenance{Source: "a.md"},
	}

	c := orig.Clone().(*BestPracticeRecord)
	c.BestPractices[0] = "changed"
	c.Provenance.Source = "b.md"

	assert.Equal(t, "enable versioning", orig.BestPractices[0])
	assert.Equal(t, "a.md", orig.Provenance.Source)
}

func TestStampAndTag(t *testing.T) {
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	r := &ResourceRecord{ResourceType: "aws_s3_bucket"}

	r.Stamp(Provenance{Source: "first", ExtractionTime: now})
	r.Stamp(Provenance{Source: "second"})
	require.NotNil(t, r.Provenance)
	assert.Equal(t, "first", r.Provenance.Source)

	tagged := Tag(r, MethodRule)
	assert.Equal(t, MethodRule, tagged.Method())
	assert.Empty(t, r.Method())
	assert.Equal(t, SchemaResource, tagged.Schema())
}
