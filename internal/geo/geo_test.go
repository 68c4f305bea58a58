package geo

import (
	"math"
	"testing"

	"github.com/example/ride-dispatch/internal/models"
)

func TestHaversineZero(t *testing.T) {
	p := models.Coord{Lat: 12.9716, Lng: 77.5946}
	if d := Haversine(p, p); d != 0 {
		t.Fatalf("expected 0, got %f", d)
	}
}

func TestHaversineSymmetry(t *testing.T) {
	a := models.Coord{Lat: 12.9716, Lng: 77.5946}
	b := models.Coord{Lat: 12.9352, Lng: 77.6245}
	if d1, d2 := Haversine(a, b), Haversine(b, a); math.Abs(d1-d2) > 1e-12 {
		t.Fatalf("asymmetric: %f vs %f", d1, d2)
	}
}

func TestHaversineBangalore(t *testing.T) {
	a := models.Coord{Lat: 12.9716, Lng: 77.5946}
	b := models.Coord{Lat: 12.9352, Lng: 77.6245}
	d := Haversine(a, b)
	if math.Abs(d-5.1847) > 0.01 {
		t.Fatalf("expected ~5.1847 km, got %f", d)
	}
}

func TestNearbyFilters(t *testing.T) {
	origin := models.Coord{Lat: 0, Lng: 0}
	cands := []models.DriverLocationSnapshot{
		{DriverID: "close", Lat: 0.01, Lng: 0, IsAvailable: true},          // ~1.1 km
		{DriverID: "far", Lat: 1, Lng: 1, IsAvailable: true},               // ~157 km
		{DriverID: "offline", Lat: 0.01, Lng: 0, IsAvailable: false},
		{DriverID: "nan", Lat: math.NaN(), Lng: 0, IsAvailable: true},
		{DriverID: "badlat", Lat: 95, Lng: 0, IsAvailable: true},
		{DriverID: "badlng", Lat: 0, Lng: 181, IsAvailable: true},
	}
	got := Nearby(origin, cands, 3)
	if len(got) != 1 || got[0].DriverID != "close" {
		t.Fatalf("expected only close, got %v", got)
	}
}

func TestNearbyBoundaryInclusive(t *testing.T) {
	origin := models.Coord{Lat: 0, Lng: 0}
	exact := models.DriverLocationSnapshot{DriverID: "edge", Lat: 0.02, Lng: 0, IsAvailable: true}
	radius := Haversine(origin, models.Coord{Lat: exact.Lat, Lng: exact.Lng})
	got := Nearby(origin, []models.DriverLocationSnapshot{exact}, radius)
	if len(got) != 1 {
		t.Fatalf("boundary candidate should be included")
	}
}

func TestNearbyDefaultRadius(t *testing.T) {
	origin := models.Coord{Lat: 0, Lng: 0}
	cands := []models.DriverLocationSnapshot{
		{DriverID: "in", Lat: 0.02, Lng: 0, IsAvailable: true},  // ~2.2 km
		{DriverID: "out", Lat: 0.04, Lng: 0, IsAvailable: true}, // ~4.4 km
	}
	got := Nearby(origin, cands, 0)
	if len(got) != 1 || got[0].DriverID != "in" {
		t.Fatalf("default radius should keep only the 2.2km driver, got %v", got)
	}
}

func TestIndexWithin(t *testing.T) {
	idx := NewIndex()
	ctx := t.Context()
	_ = idx.Upsert(ctx, models.DriverLocationSnapshot{DriverID: "a", Lat: 0.01, Lng: 0, IsAvailable: true})
	_ = idx.Upsert(ctx, models.DriverLocationSnapshot{DriverID: "b", Lat: 2, Lng: 2, IsAvailable: true})
	got, err := idx.Within(ctx, models.Coord{Lat: 0, Lng: 0}, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].DriverID != "a" {
		t.Fatalf("expected a, got %v", got)
	}
	// availability change takes effect on the next pass
	_ = idx.Upsert(ctx, models.DriverLocationSnapshot{DriverID: "a", Lat: 0.01, Lng: 0, IsAvailable: false})
	got, _ = idx.Within(ctx, models.Coord{Lat: 0, Lng: 0}, 3)
	if len(got) != 0 {
		t.Fatalf("expected none, got %v", got)
	}
}
