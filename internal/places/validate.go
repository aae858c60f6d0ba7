// Package places promotes raw backend place records to renderable Places.
package places

import "github.com/pindapp/pind/internal/domain"

// Validate accepts a raw record iff both coordinates are present.
// Rejected records are not an error; they are simply not promoted.
func Validate(raw domain.RawPlace) (domain.Place, bool) {
	if raw.Lat == nil || raw.Lng == nil {
		return domain.Place{}, false
	}
	return domain.Place{Name: raw.Name, Lat: *raw.Lat, Lng: *raw.Lng}, true
}

// FilterValid runs Validate over a batch, preserving the relative order
// of accepted records.
func FilterValid(raws []domain.RawPlace) []domain.Place {
	valid := make([]domain.Place, 0, len(raws))
	for _, raw := range raws {
		if p, ok := Validate(raw); ok {
			valid = append(valid, p)
		}
	}
	return valid
}
