// Package filter describes the tag pre-filter applied before KNN ranking.
package filter

import (
	"errors"
	"fmt"
)

// MaxTerms bounds the number of terms in one filter.
const MaxTerms = 16

// Term is an exact match on a tag field.
type Term struct {
	Field string
	Value string
}

// Tags is a conjunction: every required term must hold and no excluded term
// may hold. The zero value matches everything. Methods return copies, so a
// base filter can be extended without aliasing.
type Tags struct {
	required []Term
	excluded []Term
}

// Require adds a term the candidate must match.
func (t Tags) Require(field, value string) Tags {
	t.required = append(t.required[:len(t.required):len(t.required)], Term{field, value})
	return t
}

// Exclude adds a term the candidate must not match. An empty value adds nothing,
// which lets callers pass optional exclusions straight through.
func (t Tags) Exclude(field, value string) Tags {
	if value == "" {
		return t
	}
	t.excluded = append(t.excluded[:len(t.excluded):len(t.excluded)], Term{field, value})
	return t
}

// Required returns the terms that must match.
func (t Tags) Required() []Term { return t.required }

// Excluded returns the terms that must not match.
func (t Tags) Excluded() []Term { return t.excluded }

// Empty reports whether the filter has no terms.
func (t Tags) Empty() bool { return len(t.required) == 0 && len(t.excluded) == 0 }

// Validate rejects blank fields or required values and oversized filters.
func (t Tags) Validate() error {
	if n := len(t.required) + len(t.excluded); n > MaxTerms {
		return fmt.Errorf("filter has %d terms, max %d", n, MaxTerms)
	}
	for _, term := range t.required {
		if term.Field == "" {
			return errors.New("filter field is required")
		}
		if term.Value == "" {
			return fmt.Errorf("filter value is required for %q", term.Field)
		}
	}
	for _, term := range t.excluded {
		if term.Field == "" {
			return errors.New("filter field is required")
		}
	}
	return nil
}
