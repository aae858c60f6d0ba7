package places

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pindapp/pind/internal/domain"
)

func f(v float64) *float64 { return &v }

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		raw  domain.RawPlace
		ok   bool
	}{
		{"both coordinates", domain.RawPlace{Name: "A", Lat: f(1), Lng: f(2)}, true},
		{"missing lat", domain.RawPlace{Name: "B", Lng: f(3)}, false},
		{"missing lng", domain.RawPlace{Name: "C", Lat: f(4)}, false},
		{"missing both", domain.RawPlace{Name: "D"}, false},
		{"zero coordinates are valid", domain.RawPlace{Name: "E", Lat: f(0), Lng: f(0)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, ok := Validate(tt.raw)
			assert.Equal(t, tt.ok, ok)
			if ok {
				assert.Equal(t, tt.raw.Name, p.Name)
				assert.Equal(t, *tt.raw.Lat, p.Lat)
				assert.Equal(t, *tt.raw.Lng, p.Lng)
			}
		})
	}
}

func TestFilterValidPreservesOrder(t *testing.T) {
	raws := []domain.RawPlace{
		{Name: "first", Lat: f(1), Lng: f(1)},
		{Name: "dropped", Lat: nil, Lng: f(2)},
		{Name: "second", Lat: f(3), Lng: f(3)},
		{Name: "third", Lat: f(4), Lng: f(4)},
	}

	valid := FilterValid(raws)

	assert.Len(t, valid, 3)
	assert.Equal(t, "first", valid[0].Name)
	assert.Equal(t, "second", valid[1].Name)
	assert.Equal(t, "third", valid[2].Name)
}

func TestFilterValidEmpty(t *testing.T) {
	assert.Empty(t, FilterValid(nil))
	assert.Empty(t, FilterValid([]domain.RawPlace{{Name: "x"}}))
}
