package geo

import (
	"math"
	"testing"

	"github.com/gatdilshan/railway-safety-research/internal/model"
)

func TestDistance_SamePoint(t *testing.T) {
	v := model.Vertex{Lat: 28.7041, Lon: 77.1025}
	if got := Distance(v, v); got != 0 {
		t.Errorf("Distance(same point) = %v, want 0", got)
	}
}

func TestDistance_Symmetric(t *testing.T) {
	a := model.Vertex{Lat: 28.6315, Lon: 77.2167}
	b := model.Vertex{Lat: 28.5562, Lon: 77.0889}
	if got, want := Distance(a, b), Distance(b, a); math.Abs(got-want) > 1e-9 {
		t.Errorf("Distance not symmetric: %v vs %v", got, want)
	}
}

func TestDistance_KnownDistance(t *testing.T) {
	// ~0.0001 degrees of latitude is roughly 11.1 meters.
	a := model.Vertex{Lat: 0, Lon: 0}
	b := model.Vertex{Lat: 0.0001, Lon: 0}
	got := Distance(a, b)
	if got < 10 || got > 13 {
		t.Errorf("Distance = %.2f m, want ~11.1 m", got)
	}
}

func TestDistance_BoundaryThreshold(t *testing.T) {
	// 30 m north of the equator at lon 0.
	const thresholdM = 30.0
	dLat := thresholdM / EarthRadiusM * (180 / math.Pi)
	a := model.Vertex{Lat: 0, Lon: 0}
	b := model.Vertex{Lat: dLat, Lon: 0}
	got := Distance(a, b)
	if math.Abs(got-thresholdM) > 0.5 {
		t.Errorf("Distance = %.4f m, want ~%.1f m", got, thresholdM)
	}
}

func TestNearest_PicksClosestAndBreaksTiesByIndex(t *testing.T) {
	line := []model.Vertex{
		{Lat: 0, Lon: 0},
		{Lat: 0.001, Lon: 0},
		{Lat: 0.002, Lon: 0},
	}
	idx, dist := Nearest(model.Vertex{Lat: 0.00095, Lon: 0}, line)
	if idx != 1 {
		t.Errorf("Nearest index = %d, want 1", idx)
	}
	if dist <= 0 {
		t.Errorf("Nearest distance = %v, want > 0", dist)
	}

	// 0.0005 is equidistant from vertices 0 and 1: the lower index wins.
	if idx, _ := Nearest(model.Vertex{Lat: 0.0005, Lon: 0}, line); idx != 0 {
		t.Errorf("Nearest tie index = %d, want 0", idx)
	}
}

func TestNearest_TwoVertexPolylineOnlyReturnsZeroOrOne(t *testing.T) {
	line := []model.Vertex{
		{Lat: 0, Lon: 0},
		{Lat: 0.001, Lon: 0},
	}
	for _, p := range []model.Vertex{
		{Lat: -1, Lon: 0},
		{Lat: 0.0005, Lon: 0},
		{Lat: 5, Lon: 5},
	} {
		idx, _ := Nearest(p, line)
		if idx != 0 && idx != 1 {
			t.Errorf("Nearest(%v) index = %d, want 0 or 1", p, idx)
		}
	}
}
