package core

import (
	"fmt"
	"math"
)

// Validate checks that the ResourceRecord satisfies the resource schema.
func (r *ResourceRecord) Validate() error {
	if r.ResourceType == "" {
		return fmt.Errorf("%w: %w: resource_type", ErrInvalidRecord, ErrMissingIdentity)
	}
	if err := validateConfidence(r.Confidence); err != nil {
		return err
	}
	for i, a := range r.Arguments {
		if a.Name == "" {
			return fmt.Errorf("%w: %w: arguments[%d]", ErrInvalidRecord, ErrUnnamedField, i)
		}
	}
	for i, a := range r.Attributes {
		if a.Name == "" {
			return fmt.Errorf("%w: %w: attributes[%d]", ErrInvalidRecord, ErrUnnamedField, i)
		}
	}
	return nil
}

// Validate checks that the BestPracticeRecord satisfies the best-practice schema.
func (r *BestPracticeRecord) Validate() error {
	if r.Title == "" {
		return fmt.Errorf("%w: %w: title", ErrInvalidRecord, ErrMissingIdentity)
	}
	if r.ResourceType == "" {
		return fmt.Errorf("%w: %w: resource_type", ErrInvalidRecord, ErrMissingIdentity)
	}
	return validateConfidence(r.Confidence)
}

func validateConfidence(c float64) error {
	if math.IsNaN(c) || c < 0 || c > 1 {
		return fmt.Errorf("%w: %w: %v", ErrInvalidRecord, ErrConfidenceRange, c)
	}
	return nil
}
