package geometry

import (
	"fmt"
	"strconv"
	"strings"

	"estate/server/internal/models"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// ParseBound parses "minLon,minLat,maxLon,maxLat".
func ParseBound(s string) (orb.Bound, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return orb.Bound{}, fmt.Errorf("bbox must have 4 comma separated values, got %d", len(parts))
	}

	var v [4]float64
	for i, part := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return orb.Bound{}, fmt.Errorf("invalid bbox value %q: %v", part, err)
		}
		v[i] = f
	}
	if v[0] > v[2] || v[1] > v[3] {
		return orb.Bound{}, fmt.Errorf("bbox minimum exceeds maximum")
	}

	return orb.Bound{
		Min: orb.Point{v[0], v[1]},
		Max: orb.Point{v[2], v[3]},
	}, nil
}

// Contains reports whether the coordinates lie inside b. Missing
// coordinates are never inside.
func Contains(b orb.Bound, lat, lon *float64) bool {
	if lat == nil || lon == nil {
		return false
	}
	return b.Contains(orb.Point{*lon, *lat})
}

// ListingFeatures converts listings with coordinates to a GeoJSON collection.
func ListingFeatures(properties []models.Property) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, p := range properties {
		if p.Latitude == nil || p.Longitude == nil {
			continue
		}
		f := geojson.NewFeature(orb.Point{*p.Longitude, *p.Latitude})
		f.ID = p.ID
		f.Properties["name"] = p.Name
		f.Properties["state"] = string(p.State)
		f.Properties["postcode"] = p.Postcode
		f.Properties["expected_price"] = p.ExpectedPrice
		f.Properties["best_offer"] = p.BestOffer
		f.Properties["total_area"] = p.TotalArea
		fc.Append(f)
	}
	return fc
}
