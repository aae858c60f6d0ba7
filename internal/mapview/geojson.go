package mapview

// geojsonFeature is a GeoJSON Point feature for one marker.
type geojsonFeature struct {
	Type       string         `json:"type"`
	ID         string         `json:"id"`
	Geometry   geojsonPoint   `json:"geometry"`
	Properties map[string]any `json:"properties"`
}

type geojsonPoint struct {
	Type        string     `json:"type"`
	Coordinates [2]float64 `json:"coordinates"` // lng, lat
}

// FeatureCollection is a GeoJSON FeatureCollection over a marker set.
type FeatureCollection struct {
	Type     string           `json:"type"`
	Features []geojsonFeature `json:"features"`
}

// GeoJSON exports the markers as a FeatureCollection. An empty input
// yields an empty, still valid collection.
func GeoJSON(markers []Marker) FeatureCollection {
	features := make([]geojsonFeature, len(markers))
	for i, m := range markers {
		features[i] = geojsonFeature{
			Type: "Feature",
			ID:   m.Key,
			Geometry: geojsonPoint{
				Type:        "Point",
				Coordinates: [2]float64{m.Place.Lng, m.Place.Lat},
			},
			Properties: map[string]any{"name": m.Place.Name},
		}
	}
	return FeatureCollection{Type: "FeatureCollection", Features: features}
}
