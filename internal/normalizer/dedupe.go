package normalizer

import "github.com/procurematch/attestation-pipeline/internal/models"

// Dedupe merges services that share an equal (canonical-description,
// normalized-unit) key, per spec.md §3/§4.4 step 5. Quantities are summed
// and the longest original description is preserved; item codes are not
// part of the merge key and the first-seen item code wins. Order of first
// occurrence is preserved in the output.
func Dedupe(services []models.Service) []models.Service {
	type bucket struct {
		svc   models.Service
		order int
	}

	buckets := make(map[models.ServiceKey]*bucket)
	var order []models.ServiceKey

	for i, s := range services {
		key := models.ServiceKey{
			CanonicalDescription: NormalizeDescription(s.Description),
			NormalizedUnit:       NormalizeUnit(s.Unit),
		}

		if existing, ok := buckets[key]; ok {
			if s.Quantity != nil {
				if existing.svc.Quantity == nil {
					q := *s.Quantity
					existing.svc.Quantity = &q
				} else {
					sum := *existing.svc.Quantity + *s.Quantity
					existing.svc.Quantity = &sum
				}
			}
			if len(s.Description) > len(existing.svc.Description) {
				existing.svc.Description = s.Description
			}
			if existing.svc.ItemCode == nil && s.ItemCode != nil {
				existing.svc.ItemCode = s.ItemCode
			}
			continue
		}

		cp := s
		buckets[key] = &bucket{svc: cp, order: i}
		order = append(order, key)
	}

	out := make([]models.Service, 0, len(order))
	for _, key := range order {
		out = append(out, buckets[key].svc)
	}
	return out
}
