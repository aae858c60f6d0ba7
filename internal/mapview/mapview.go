// Package mapview turns a validated place list into what a map widget
// needs: one marker per place and a viewport fitted around all of them.
package mapview

import (
	"errors"
	"fmt"
	"math"

	"github.com/pindapp/pind/internal/domain"
)

// ErrNoPlaces is returned instead of fitting an undefined bound. The
// caller should present an empty-state message.
var ErrNoPlaces = errors.New("no places to display")

// EmptyStateMessage is the user-facing empty-state text.
const EmptyStateMessage = "No places to display."

// FitPadding is the fixed viewport padding, in pixels per side.
const FitPadding = 100

// tileSize is the projected world size in pixels at zoom 0.
const tileSize = 256.0

// maxFitZoom caps the zoom when the bound degenerates to a point.
const maxFitZoom = 17.0

// Marker is one renderable place. Keys stay unique under duplicate
// names, so every record gets its own visually distinct marker.
type Marker struct {
	Key   string       `json:"key"`
	Place domain.Place `json:"place"`
}

// Markers builds one marker per place, keyed by name and position.
func Markers(places []domain.Place) []Marker {
	markers := make([]Marker, len(places))
	for i, p := range places {
		markers[i] = Marker{Key: fmt.Sprintf("%s-%d", p.Name, i), Place: p}
	}
	return markers
}

// Bounds is the smallest box covering a set of coordinates.
type Bounds struct {
	MinLat float64 `json:"min_lat"`
	MaxLat float64 `json:"max_lat"`
	MinLng float64 `json:"min_lng"`
	MaxLng float64 `json:"max_lng"`
}

// Extend grows the bounds to include the given coordinate.
func (b *Bounds) Extend(lat, lng float64) {
	b.MinLat = math.Min(b.MinLat, lat)
	b.MaxLat = math.Max(b.MaxLat, lat)
	b.MinLng = math.Min(b.MinLng, lng)
	b.MaxLng = math.Max(b.MaxLng, lng)
}

// BoundsOf computes the bounding box of every place.
func BoundsOf(places []domain.Place) (Bounds, error) {
	if len(places) == 0 {
		return Bounds{}, ErrNoPlaces
	}
	b := Bounds{
		MinLat: places[0].Lat, MaxLat: places[0].Lat,
		MinLng: places[0].Lng, MaxLng: places[0].Lng,
	}
	for _, p := range places[1:] {
		b.Extend(p.Lat, p.Lng)
	}
	return b, nil
}

// Viewport is a fitted map view: center coordinate plus zoom level in
// the usual web-map scale, where each level doubles the resolution.
type Viewport struct {
	CenterLat float64 `json:"center_lat"`
	CenterLng float64 `json:"center_lng"`
	Zoom      float64 `json:"zoom"`
	Bounds    Bounds  `json:"bounds"`
}

// FitBounds computes the viewport that shows every place inside a
// width x height pixel view with FitPadding on all sides.
func FitBounds(places []domain.Place, width, height int) (Viewport, error) {
	bounds, err := BoundsOf(places)
	if err != nil {
		return Viewport{}, err
	}

	availW := float64(width - 2*FitPadding)
	availH := float64(height - 2*FitPadding)
	if availW < 1 {
		availW = 1
	}
	if availH < 1 {
		availH = 1
	}

	// Project to mercator world fractions and fit each axis.
	north := projectLat(bounds.MaxLat)
	south := projectLat(bounds.MinLat)
	latFraction := south - north

	// A set straddling the antimeridian fits the short way around.
	lngSpan := bounds.MaxLng - bounds.MinLng
	centerLng := (bounds.MinLng + bounds.MaxLng) / 2
	if lngSpan > 180 {
		lngSpan = 360 - lngSpan
		centerLng += 180
		if centerLng > 180 {
			centerLng -= 360
		}
	}
	lngFraction := lngSpan / 360

	zoom := math.Min(zoomFor(availH, latFraction), zoomFor(availW, lngFraction))
	if zoom > maxFitZoom {
		zoom = maxFitZoom
	}
	if zoom < 0 {
		zoom = 0
	}

	// Center on the projected midpoint so both edges sit at equal
	// pixel distance from the center.
	return Viewport{
		CenterLat: unprojectLat((north + south) / 2),
		CenterLng: centerLng,
		Zoom:      zoom,
		Bounds:    bounds,
	}, nil
}

// unprojectLat is the inverse of projectLat.
func unprojectLat(y float64) float64 {
	return (2*math.Atan(math.Exp((0.5-y)*2*math.Pi)) - math.Pi/2) * 180 / math.Pi
}

// projectLat maps a latitude to its mercator world-y fraction in [0,1].
func projectLat(lat float64) float64 {
	sin := math.Sin(lat * math.Pi / 180)
	// Clamp away from the poles where the projection diverges.
	sin = math.Max(math.Min(sin, 0.9999), -0.9999)
	return 0.5 - math.Log((1+sin)/(1-sin))/(4*math.Pi)
}

// zoomFor gives the zoom at which a world fraction spans the given
// number of pixels.
func zoomFor(px, fraction float64) float64 {
	if fraction <= 0 {
		return maxFitZoom
	}
	return math.Log2(px / (tileSize * fraction))
}
