package models

// Requirement is a quantitative demand from a procurement notice that
// attestations are matched against.
type Requirement struct {
	Code            string   `json:"code,omitempty"`
	Description     string   `json:"description"`
	RequiredQty     float64  `json:"required_quantity"`
	Unit            string   `json:"unit"`
	AllowSum        *bool    `json:"allow_sum,omitempty"` // nil means the default (true) applies
	ActivityTag     string   `json:"activity_tag,omitempty"`
	MandatoryTerms  []string `json:"mandatory_terms,omitempty"`
}

// SumAllowed resolves the AllowSum policy field: the source format defaults
// to "sum allowed" and exposes no implicit override, so a nil field means
// true. A tender notice that wants single-attestation coverage must set an
// explicit false.
func (r Requirement) SumAllowed() bool {
	if r.AllowSum == nil {
		return true
	}
	return *r.AllowSum
}
