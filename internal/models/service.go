package models

import "strings"

// Service is the atomic unit of work extracted from a document: a line
// item with a description, quantity, and unit, optionally tagged with a
// hierarchical item code.
type Service struct {
	ItemCode    *string  `json:"item_code,omitempty"`
	Description string   `json:"description"`
	Quantity    *float64 `json:"quantity"`
	Unit        string   `json:"unit"`
}

// IsComplete reports whether the service has everything required to enter
// a completed job's services list: a positive quantity and a non-empty unit.
func (s Service) IsComplete() bool {
	return s.Quantity != nil && *s.Quantity > 0 && strings.TrimSpace(s.Unit) != ""
}

// ServiceKey is the key used to detect duplicates: it is computed by the
// caller from (canonical description, normalized unit), never from the
// item code, so two services with different item codes but identical
// descriptive key are treated as the same line.
type ServiceKey struct {
	CanonicalDescription string
	NormalizedUnit       string
}
