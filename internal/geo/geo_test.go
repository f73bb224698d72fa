package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"roadwatch/internal/models"
)

func TestDistance_SamePoint(t *testing.T) {
	p := models.Location{Latitude: 52.2297, Longitude: 21.0122}
	assert.Equal(t, 0.0, Distance(p, p))
}

func TestDistance_KnownPair(t *testing.T) {
	// Warsaw -> Krakow, roughly 252 km.
	warsaw := models.Location{Latitude: 52.2297, Longitude: 21.0122}
	krakow := models.Location{Latitude: 50.0647, Longitude: 19.9450}

	d := Distance(warsaw, krakow)
	assert.InDelta(t, 252000, d, 3000)
}

func TestDistance_ShortRange(t *testing.T) {
	// Two points ~15m apart along a meridian (1 deg lat ~= 111.32 km).
	a := models.Location{Latitude: 50.0, Longitude: 20.0}
	b := models.Location{Latitude: 50.0 + 15.0/111320.0, Longitude: 20.0}

	assert.InDelta(t, 15.0, Distance(a, b), 0.1)
}
