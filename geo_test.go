package gtfs

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHaversineDistance(t *testing.T) {
	type point struct{ lat, lon float64 }
	nyc := point{40.7, -74.1}
	philly := point{40.0, -75.2}
	sf := point{37.8, -122.5}
	la := point{34.0, -118.5}
	sto := point{59.3, 17.9}

	for _, tc := range []struct {
		name     string
		a, b     point
		distance float64
	}{
		{"nyc-philly", nyc, philly, 121.438585},
		{"nyc-sf", nyc, sf, 4127.311071},
		{"philly-la", philly, la, 3864.146847},
		{"sf-la", sf, la, 555.165790},
		{"la-sto", la, sto, 8891.306919},
		{"same place", sto, sto, 0},
	} {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.distance, haversineDistance(tc.a.lat, tc.a.lon, tc.b.lat, tc.b.lon), 0.001)
			assert.InDelta(t, tc.distance, haversineDistance(tc.b.lat, tc.b.lon, tc.a.lat, tc.a.lon), 0.001)
		})
	}
}
